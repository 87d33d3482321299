// Package sqlite is the durable backend: a database/sql-based
// storage.Store implementation over modernc.org/sqlite, with WAL
// pragmas, a connection pool, a per-connection prepared-statement LRU,
// LZ4 compression for large blobs, and backoff-based retry on
// transient busy/locked errors: schema-per-entity, pragma-tuned
// connections, and a wrapDBError-style error taxonomy.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
	"github.com/memoryd/engine/internal/pattern"
	"github.com/memoryd/engine/internal/relationship"
	"github.com/memoryd/engine/internal/storage"
)

// Store is the durable, SQLite-backed storage.Store implementation.
type Store struct {
	pool *pool
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if absent) the SQLite database at path, applies
// any pending migrations, and returns a ready Store.
func Open(ctx context.Context, path string, cfg PoolConfig) (*Store, error) {
	p, err := openPool(path, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		p.close()
		return nil, errs.Storage("set WAL journal mode", err)
	}
	if err := runMigrations(ctx, p.db); err != nil {
		p.close()
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() error { return s.pool.close() }

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

func nullableUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func toNullableTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// --- Episodes ---------------------------------------------------------

func (s *Store) PutEpisode(ctx context.Context, e *episode.Episode) error {
	stepsJSON, err := json.Marshal(e.Steps)
	if err != nil {
		return errs.Storage("marshal episode steps", err)
	}
	stepsBlob, err := encodeBlob(stepsJSON)
	if err != nil {
		return err
	}

	var salientBlob []byte
	if e.SalientFeatures != nil {
		sfJSON, err := json.Marshal(e.SalientFeatures)
		if err != nil {
			return errs.Storage("marshal salient features", err)
		}
		salientBlob, err = encodeBlob(sfJSON)
		if err != nil {
			return err
		}
	}

	contextTags, _ := json.Marshal(e.Context.Tags)
	patternIDs, _ := json.Marshal(e.PatternIDs)
	heuristicIDs, _ := json.Marshal(e.HeuristicIDs)
	appliedPatterns, _ := json.Marshal(e.AppliedPatterns)
	metadata, _ := json.Marshal(e.Metadata)

	var outcomeKind, outcomeVerdict, outcomeArtifacts, outcomeReason sql.NullString
	if e.Outcome != nil {
		outcomeKind = sql.NullString{String: string(e.Outcome.Kind), Valid: true}
		outcomeVerdict = sql.NullString{String: e.Outcome.Verdict, Valid: true}
		artJSON, _ := json.Marshal(e.Outcome.Artifacts)
		outcomeArtifacts = sql.NullString{String: string(artJSON), Valid: true}
		outcomeReason = sql.NullString{String: e.Outcome.Reason, Valid: true}
	}

	var reward sql.NullFloat64
	if e.Reward != nil {
		reward = sql.NullFloat64{Float64: *e.Reward, Valid: true}
	}
	var reflection sql.NullString
	if e.Reflection != nil {
		reflection = sql.NullString{String: *e.Reflection, Valid: true}
	}

	now := unixNano(time.Now())

	op := func() error {
		return s.pool.withConn(ctx, func(lc *leasedConn) error {
			stmt, err := lc.prepared(ctx, `
INSERT INTO episodes (
	id, task_type, task_description, domain, language, framework, complexity, context_tags,
	start_time, end_time, steps_blob, outcome_kind, outcome_verdict, outcome_artifacts, outcome_reason,
	reward, reflection, pattern_ids, heuristic_ids, applied_patterns, salient_features, metadata,
	created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	task_type=excluded.task_type, task_description=excluded.task_description, domain=excluded.domain,
	language=excluded.language, framework=excluded.framework, complexity=excluded.complexity,
	context_tags=excluded.context_tags, start_time=excluded.start_time, end_time=excluded.end_time,
	steps_blob=excluded.steps_blob, outcome_kind=excluded.outcome_kind, outcome_verdict=excluded.outcome_verdict,
	outcome_artifacts=excluded.outcome_artifacts, outcome_reason=excluded.outcome_reason, reward=excluded.reward,
	reflection=excluded.reflection, pattern_ids=excluded.pattern_ids, heuristic_ids=excluded.heuristic_ids,
	applied_patterns=excluded.applied_patterns, salient_features=excluded.salient_features,
	metadata=excluded.metadata, updated_at=excluded.updated_at
`)
			if err != nil {
				return err
			}
			_, err = stmt.ExecContext(ctx,
				e.ID, string(e.TaskType), e.TaskDescription, e.Context.Domain, e.Context.Language, e.Context.Framework,
				string(e.Context.Complexity), string(contextTags), unixNano(e.StartTime), nullableUnixNano(e.EndTime),
				stepsBlob, outcomeKind, outcomeVerdict, outcomeArtifacts, outcomeReason, reward, reflection,
				string(patternIDs), string(heuristicIDs), string(appliedPatterns), salientBlob, string(metadata), now, now,
			)
			return err
		})
	}
	if err := withRetry(ctx, op); err != nil {
		return errs.Storage("put episode", err)
	}
	return nil
}

func (s *Store) GetEpisode(ctx context.Context, id string) (*episode.Episode, error) {
	var (
		taskType, taskDesc, domain, language, framework, complexity string
		contextTags                                                 string
		startTime                                                   int64
		endTime                                                     sql.NullInt64
		stepsBlob, salientBlob                                      []byte
		outcomeKind, outcomeVerdict, outcomeArtifacts, outcomeReason sql.NullString
		reward                                                      sql.NullFloat64
		reflection                                                  sql.NullString
		patternIDs, heuristicIDs, appliedPatterns, metadata         string
	)

	err := s.pool.withConn(ctx, func(lc *leasedConn) error {
		stmt, err := lc.prepared(ctx, `
SELECT task_type, task_description, domain, language, framework, complexity, context_tags,
	start_time, end_time, steps_blob, outcome_kind, outcome_verdict, outcome_artifacts, outcome_reason,
	reward, reflection, pattern_ids, heuristic_ids, applied_patterns, salient_features, metadata
FROM episodes WHERE id = ?`)
		if err != nil {
			return err
		}
		row := stmt.QueryRowContext(ctx, id)
		return row.Scan(&taskType, &taskDesc, &domain, &language, &framework, &complexity, &contextTags,
			&startTime, &endTime, &stepsBlob, &outcomeKind, &outcomeVerdict, &outcomeArtifacts, &outcomeReason,
			&reward, &reflection, &patternIDs, &heuristicIDs, &appliedPatterns, &salientBlob, &metadata)
	})
	if err != nil {
		return nil, wrapDBError("get episode", "episode", id, err)
	}

	stepsJSON, err := decodeBlob(stepsBlob)
	if err != nil {
		return nil, err
	}
	var steps []episode.ExecutionStep
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &steps); err != nil {
			return nil, errs.Storage("unmarshal episode steps", err)
		}
	}

	e := &episode.Episode{
		ID:              id,
		TaskType:        episode.TaskType(taskType),
		TaskDescription: taskDesc,
		Context: episode.TaskContext{
			Domain:     domain,
			Language:   language,
			Framework:  framework,
			Complexity: episode.Complexity(complexity),
		},
		StartTime: fromUnixNano(startTime),
		EndTime:   toNullableTime(endTime),
		Steps:     steps,
	}
	json.Unmarshal([]byte(contextTags), &e.Context.Tags)
	json.Unmarshal([]byte(patternIDs), &e.PatternIDs)
	json.Unmarshal([]byte(heuristicIDs), &e.HeuristicIDs)
	json.Unmarshal([]byte(appliedPatterns), &e.AppliedPatterns)
	if metadata != "" && metadata != "null" {
		json.Unmarshal([]byte(metadata), &e.Metadata)
	}

	if outcomeKind.Valid {
		o := &episode.Outcome{
			Kind:    episode.OutcomeKind(outcomeKind.String),
			Verdict: outcomeVerdict.String,
			Reason:  outcomeReason.String,
		}
		if outcomeArtifacts.Valid {
			json.Unmarshal([]byte(outcomeArtifacts.String), &o.Artifacts)
		}
		e.Outcome = o
	}
	if reward.Valid {
		r := reward.Float64
		e.Reward = &r
	}
	if reflection.Valid {
		r := reflection.String
		e.Reflection = &r
	}
	if len(salientBlob) > 0 {
		sfJSON, err := decodeBlob(salientBlob)
		if err != nil {
			return nil, err
		}
		var sf episode.SalientFeatures
		if err := json.Unmarshal(sfJSON, &sf); err != nil {
			return nil, errs.Storage("unmarshal salient features", err)
		}
		e.SalientFeatures = &sf
	}

	tagRows, err := s.pool.db.QueryContext(ctx, `SELECT tag FROM episode_tags WHERE episode_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, errs.Storage("query episode tags", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var t string
		if err := tagRows.Scan(&t); err != nil {
			return nil, errs.Storage("scan episode tag", err)
		}
		e.Tags = append(e.Tags, t)
	}

	return e, nil
}

func (s *Store) DeleteEpisode(ctx context.Context, id string) error {
	op := func() error {
		_, err := s.pool.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
		return err
	}
	if err := withRetry(ctx, op); err != nil {
		return errs.Storage("delete episode", err)
	}
	return nil
}

func (s *Store) QueryEpisodesSince(ctx context.Context, since time.Time, limit int) ([]*episode.Episode, error) {
	q := `SELECT id FROM episodes WHERE start_time >= ? ORDER BY start_time ASC`
	args := []interface{}{unixNano(since)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEpisodeIDs(ctx, q, args...)
}

func (s *Store) QueryEpisodesByMetadata(ctx context.Context, key, value string, limit int) ([]*episode.Episode, error) {
	q := `SELECT id FROM episodes WHERE json_extract(metadata, '$.' || ?) = ? ORDER BY start_time ASC`
	args := []interface{}{key, value}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEpisodeIDs(ctx, q, args...)
}

func (s *Store) queryEpisodeIDs(ctx context.Context, q string, args ...interface{}) ([]*episode.Episode, error) {
	rows, err := s.pool.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Storage("query episode ids", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.Storage("scan episode id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]*episode.Episode, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEpisode(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// --- Tags ---------------------------------------------------------------

func (s *Store) ReplaceEpisodeTags(ctx context.Context, episodeID string, tags []string) error {
	op := func() error {
		tx, err := s.pool.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		var old []string
		rows, err := tx.QueryContext(ctx, `SELECT tag FROM episode_tags WHERE episode_id = ?`, episodeID)
		if err != nil {
			tx.Rollback()
			return err
		}
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				rows.Close()
				tx.Rollback()
				return err
			}
			old = append(old, t)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, `DELETE FROM episode_tags WHERE episode_id = ?`, episodeID); err != nil {
			tx.Rollback()
			return err
		}
		for _, t := range old {
			if _, err := tx.ExecContext(ctx, `UPDATE tag_metadata SET usage_count = usage_count - 1 WHERE tag = ?`, t); err != nil {
				tx.Rollback()
				return err
			}
		}
		for _, t := range tags {
			if _, err := tx.ExecContext(ctx, `INSERT INTO episode_tags (episode_id, tag) VALUES (?, ?)`, episodeID, t); err != nil {
				tx.Rollback()
				return err
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO tag_metadata (tag, usage_count) VALUES (?, 1)
ON CONFLICT(tag) DO UPDATE SET usage_count = usage_count + 1`, t); err != nil {
				tx.Rollback()
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tag_metadata WHERE usage_count <= 0`); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	}
	if err := withRetry(ctx, op); err != nil {
		return errs.Storage("replace episode tags", err)
	}
	return nil
}

func (s *Store) TagUsageCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT tag, usage_count FROM tag_metadata`)
	if err != nil {
		return nil, errs.Storage("query tag usage", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return nil, errs.Storage("scan tag usage row", err)
		}
		out[t] = c
	}
	return out, nil
}

// --- Patterns -------------------------------------------------------------

type patternPayload struct {
	ToolSequence  *pattern.ToolSequencePayload  `json:"tool_sequence,omitempty"`
	ErrorRecovery *pattern.ErrorRecoveryPayload `json:"error_recovery,omitempty"`
	Decision      *pattern.DecisionPayload      `json:"decision,omitempty"`
}

func (s *Store) PutPattern(ctx context.Context, p *pattern.Pattern) error {
	payloadJSON, err := json.Marshal(patternPayload{ToolSequence: p.ToolSequence, ErrorRecovery: p.ErrorRecovery, Decision: p.Decision})
	if err != nil {
		return errs.Storage("marshal pattern payload", err)
	}
	payloadBlob, err := encodeBlob(payloadJSON)
	if err != nil {
		return err
	}

	op := func() error {
		_, err := s.pool.db.ExecContext(ctx, `
INSERT INTO patterns (
	id, kind, domain, description, source_episode_id, occurrence_count, avg_latency_ms,
	created_at, updated_at, eff_retrieval_count, eff_application_count, eff_success_count,
	eff_failure_count, eff_last_applied_at, eff_last_retrieved_at, eff_score, payload_blob
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	kind=excluded.kind, domain=excluded.domain, description=excluded.description,
	source_episode_id=excluded.source_episode_id, occurrence_count=excluded.occurrence_count,
	avg_latency_ms=excluded.avg_latency_ms, updated_at=excluded.updated_at,
	eff_retrieval_count=excluded.eff_retrieval_count, eff_application_count=excluded.eff_application_count,
	eff_success_count=excluded.eff_success_count, eff_failure_count=excluded.eff_failure_count,
	eff_last_applied_at=excluded.eff_last_applied_at, eff_last_retrieved_at=excluded.eff_last_retrieved_at,
	eff_score=excluded.eff_score, payload_blob=excluded.payload_blob
`,
			p.ID, string(p.Kind), p.Domain, p.Description, p.SourceEpisodeID, p.OccurrenceCount, p.AvgLatencyMS,
			unixNano(p.CreatedAt), unixNano(time.Now()), p.Effectiveness.RetrievalCount, p.Effectiveness.ApplicationCount,
			p.Effectiveness.SuccessCount, p.Effectiveness.FailureCount, nullableUnixNano(p.Effectiveness.LastAppliedAt),
			nullableUnixNano(p.Effectiveness.LastRetrievedAt), p.Effectiveness.Score, payloadBlob,
		)
		return err
	}
	if err := withRetry(ctx, op); err != nil {
		return errs.Storage("put pattern", err)
	}
	return nil
}

func (s *Store) scanPattern(row *sql.Row, id string) (*pattern.Pattern, error) {
	var (
		kind, domain, description, sourceEpisodeID string
		occurrenceCount                            int
		avgLatencyMS                                int64
		createdAt, updatedAt                        int64
		retrievalCount, applicationCount            int
		successCount, failureCount                  int
		lastAppliedAt, lastRetrievedAt               sql.NullInt64
		score                                        float64
		payloadBlob                                  []byte
	)
	if err := row.Scan(&kind, &domain, &description, &sourceEpisodeID, &occurrenceCount, &avgLatencyMS,
		&createdAt, &updatedAt, &retrievalCount, &applicationCount, &successCount, &failureCount,
		&lastAppliedAt, &lastRetrievedAt, &score, &payloadBlob); err != nil {
		return nil, wrapDBError("get pattern", "pattern", id, err)
	}

	payloadJSON, err := decodeBlob(payloadBlob)
	if err != nil {
		return nil, err
	}
	var pl patternPayload
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &pl); err != nil {
			return nil, errs.Storage("unmarshal pattern payload", err)
		}
	}

	return &pattern.Pattern{
		ID: id, Kind: pattern.Kind(kind), Domain: domain, Description: description,
		SourceEpisodeID: sourceEpisodeID, OccurrenceCount: occurrenceCount, AvgLatencyMS: avgLatencyMS,
		CreatedAt: fromUnixNano(createdAt), UpdatedAt: fromUnixNano(updatedAt),
		Effectiveness: pattern.Effectiveness{
			RetrievalCount: retrievalCount, ApplicationCount: applicationCount,
			SuccessCount: successCount, FailureCount: failureCount,
			LastAppliedAt: toNullableTime(lastAppliedAt), LastRetrievedAt: toNullableTime(lastRetrievedAt),
			Score: score,
		},
		ToolSequence: pl.ToolSequence, ErrorRecovery: pl.ErrorRecovery, Decision: pl.Decision,
	}, nil
}

func (s *Store) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	row := s.pool.db.QueryRowContext(ctx, `
SELECT kind, domain, description, source_episode_id, occurrence_count, avg_latency_ms,
	created_at, updated_at, eff_retrieval_count, eff_application_count, eff_success_count,
	eff_failure_count, eff_last_applied_at, eff_last_retrieved_at, eff_score, payload_blob
FROM patterns WHERE id = ?`, id)
	return s.scanPattern(row, id)
}

func (s *Store) DeletePattern(ctx context.Context, id string) error {
	_, err := s.pool.db.ExecContext(ctx, `DELETE FROM patterns WHERE id = ?`, id)
	if err != nil {
		return errs.Storage("delete pattern", err)
	}
	return nil
}

func (s *Store) ListPatterns(ctx context.Context, domain string, limit int) ([]*pattern.Pattern, error) {
	q := `SELECT id FROM patterns`
	var args []interface{}
	if domain != "" {
		q += ` WHERE domain = ?`
		args = append(args, domain)
	}
	q += ` ORDER BY eff_score DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.pool.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Storage("list patterns", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.Storage("scan pattern id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]*pattern.Pattern, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPattern(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// --- Heuristics -------------------------------------------------------------

func (s *Store) PutHeuristic(ctx context.Context, h *pattern.Heuristic) error {
	srcJSON, _ := json.Marshal(h.SourcePatternIDs)
	_, err := s.pool.db.ExecContext(ctx, `
INSERT INTO heuristics (id, domain, statement, source_pattern_ids, application_count, created_at)
VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET domain=excluded.domain, statement=excluded.statement,
	source_pattern_ids=excluded.source_pattern_ids, application_count=excluded.application_count
`, h.ID, h.Domain, h.Statement, string(srcJSON), h.ApplicationCount, unixNano(h.CreatedAt))
	if err != nil {
		return errs.Storage("put heuristic", err)
	}
	return nil
}

func (s *Store) GetHeuristic(ctx context.Context, id string) (*pattern.Heuristic, error) {
	var domain, statement, srcJSON string
	var applicationCount int
	var createdAt int64
	row := s.pool.db.QueryRowContext(ctx, `SELECT domain, statement, source_pattern_ids, application_count, created_at FROM heuristics WHERE id = ?`, id)
	if err := row.Scan(&domain, &statement, &srcJSON, &applicationCount, &createdAt); err != nil {
		return nil, wrapDBError("get heuristic", "heuristic", id, err)
	}
	h := &pattern.Heuristic{ID: id, Domain: domain, Statement: statement, ApplicationCount: applicationCount, CreatedAt: fromUnixNano(createdAt)}
	json.Unmarshal([]byte(srcJSON), &h.SourcePatternIDs)
	return h, nil
}

func (s *Store) DeleteHeuristic(ctx context.Context, id string) error {
	_, err := s.pool.db.ExecContext(ctx, `DELETE FROM heuristics WHERE id = ?`, id)
	if err != nil {
		return errs.Storage("delete heuristic", err)
	}
	return nil
}

// --- Embeddings -------------------------------------------------------------

func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func (s *Store) PutEmbedding(ctx context.Context, e *storage.Embedding) error {
	vecBlob, err := encodeBlob(encodeVector(e.Vector))
	if err != nil {
		return err
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.pool.db.ExecContext(ctx, `
INSERT INTO embeddings (id, owner_id, vector, dim, model, created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET owner_id=excluded.owner_id, vector=excluded.vector, dim=excluded.dim, model=excluded.model
`, e.ID, e.OwnerID, vecBlob, e.Dim, e.Model, unixNano(createdAt))
	if err != nil {
		return errs.Storage("put embedding", err)
	}
	return nil
}

func (s *Store) scanEmbedding(row *sql.Row, id string) (*storage.Embedding, error) {
	var ownerID, model string
	var dim int
	var createdAt int64
	var vecBlob []byte
	if err := row.Scan(&ownerID, &vecBlob, &dim, &model, &createdAt); err != nil {
		return nil, wrapDBError("get embedding", "embedding", id, err)
	}
	raw, err := decodeBlob(vecBlob)
	if err != nil {
		return nil, err
	}
	return &storage.Embedding{ID: id, OwnerID: ownerID, Vector: decodeVector(raw, dim), Dim: dim, Model: model, CreatedAt: fromUnixNano(createdAt)}, nil
}

func (s *Store) GetEmbedding(ctx context.Context, id string) (*storage.Embedding, error) {
	row := s.pool.db.QueryRowContext(ctx, `SELECT owner_id, vector, dim, model, created_at FROM embeddings WHERE id = ?`, id)
	return s.scanEmbedding(row, id)
}

func (s *Store) DeleteEmbedding(ctx context.Context, id string) error {
	_, err := s.pool.db.ExecContext(ctx, `DELETE FROM embeddings WHERE id = ?`, id)
	if err != nil {
		return errs.Storage("delete embedding", err)
	}
	return nil
}

func (s *Store) PutEmbeddingsBatch(ctx context.Context, es []*storage.Embedding) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("begin embeddings batch", err)
	}
	for _, e := range es {
		vecBlob, err := encodeBlob(encodeVector(e.Vector))
		if err != nil {
			tx.Rollback()
			return err
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO embeddings (id, owner_id, vector, dim, model, created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET owner_id=excluded.owner_id, vector=excluded.vector, dim=excluded.dim, model=excluded.model
`, e.ID, e.OwnerID, vecBlob, e.Dim, e.Model, unixNano(createdAt)); err != nil {
			tx.Rollback()
			return errs.Storage("put embedding in batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Storage("commit embeddings batch", err)
	}
	return nil
}

func (s *Store) GetEmbeddingsBatch(ctx context.Context, ids []string) ([]*storage.Embedding, error) {
	out := make([]*storage.Embedding, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEmbedding(ctx, id)
		if errs.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// --- Relationships -----------------------------------------------------

func (s *Store) PutRelationship(ctx context.Context, r relationship.Relationship) error {
	var priority sql.NullInt64
	if r.Priority != nil {
		priority = sql.NullInt64{Int64: int64(*r.Priority), Valid: true}
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.db.ExecContext(ctx, `
INSERT INTO relationships (id, from_id, to_id, type, reason, priority, creator, created_at)
VALUES (?,?,?,?,?,?,?,?)
`, r.ID, r.From, r.To, string(r.Type), r.Reason, priority, r.Creator, unixNano(createdAt))
	if err != nil {
		return wrapDBError("put relationship", "relationship", r.ID, err)
	}
	return nil
}

func scanRelationship(rows *sql.Rows) (relationship.Relationship, error) {
	var r relationship.Relationship
	var typ string
	var priority sql.NullInt64
	var createdAt int64
	if err := rows.Scan(&r.ID, &r.From, &r.To, &typ, &r.Reason, &priority, &r.Creator, &createdAt); err != nil {
		return r, err
	}
	r.Type = relationship.Type(typ)
	r.CreatedAt = fromUnixNano(createdAt)
	if priority.Valid {
		p := int(priority.Int64)
		r.Priority = &p
	}
	return r, nil
}

func (s *Store) GetRelationship(ctx context.Context, id string) (*relationship.Relationship, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT id, from_id, to_id, type, reason, priority, creator, created_at FROM relationships WHERE id = ?`, id)
	if err != nil {
		return nil, errs.Storage("get relationship", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, errs.NotFound("relationship", id)
	}
	r, err := scanRelationship(rows)
	if err != nil {
		return nil, errs.Storage("scan relationship", err)
	}
	return &r, nil
}

func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	_, err := s.pool.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return errs.Storage("delete relationship", err)
	}
	return nil
}

func (s *Store) ListRelationships(ctx context.Context, episodeID string, dir relationship.Direction) ([]relationship.Relationship, error) {
	var q string
	switch dir {
	case relationship.DirectionOut:
		q = `SELECT id, from_id, to_id, type, reason, priority, creator, created_at FROM relationships WHERE from_id = ?`
	case relationship.DirectionIn:
		q = `SELECT id, from_id, to_id, type, reason, priority, creator, created_at FROM relationships WHERE to_id = ?`
	default:
		q = `SELECT id, from_id, to_id, type, reason, priority, creator, created_at FROM relationships WHERE from_id = ? OR to_id = ?`
	}
	args := []interface{}{episodeID}
	if dir == relationship.DirectionBoth {
		args = append(args, episodeID)
	}
	rows, err := s.pool.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Storage("list relationships", err)
	}
	defer rows.Close()
	var out []relationship.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, errs.Storage("scan relationship", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) ListAllRelationships(ctx context.Context) ([]relationship.Relationship, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT id, from_id, to_id, type, reason, priority, creator, created_at FROM relationships`)
	if err != nil {
		return nil, errs.Storage("list all relationships", err)
	}
	defer rows.Close()
	var out []relationship.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, errs.Storage("scan relationship", err)
		}
		out = append(out, r)
	}
	return out, nil
}
