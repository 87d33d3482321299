package engine

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/errs"
)

// recencyHalfLife is the ~30-day half-life shared by both relevance
// ranking's recency term and the effectiveness tracker's decay.
const recencyHalfLife = 30 * 24 * time.Hour

// RelevanceWeights are the configurable weights combined into one
// episode's relevance score. The defaults are chosen so each signal
// contributes monotonically (a strictly better episode under any one
// signal, all else equal, never scores lower).
type RelevanceWeights struct {
	TextOverlap    float64
	TagJaccard     float64
	DomainEquality float64
	Recency        float64
	OutcomeSuccess float64
}

// DefaultRelevanceWeights returns the engine's baseline relevance
// weighting. The five terms sum to 1.0.
func DefaultRelevanceWeights() RelevanceWeights {
	return RelevanceWeights{
		TextOverlap:    0.35,
		TagJaccard:     0.2,
		DomainEquality: 0.15,
		Recency:        0.2,
		OutcomeSuccess: 0.1,
	}
}

// RetrieveRelevantContext returns up to limit episodes ordered by
// relevance to queryText/ctx, highest first. It scores every episode
// in the durable store; it does not read through the hot cache and
// does not limit candidates to a recent window. Returned episodes
// are independent clones, so their bytes remain stable while a caller
// holds a result after a later mutation.
func (e *Engine) RetrieveRelevantContext(ctx context.Context, queryText string, tc episode.TaskContext, limit int) ([]*episode.Episode, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, errs.InvalidInput("query must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	candidates, err := e.store.QueryEpisodesSince(ctx, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	queryVec, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	type scored struct {
		ep    *episode.Episode
		score float64
	}
	out := make([]scored, 0, len(candidates))
	for _, ep := range candidates {
		s := e.relevanceScore(ctx, queryText, queryVec, tc, ep, now)
		out = append(out, scored{ep: ep, score: s})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > limit {
		out = out[:limit]
	}

	results := make([]*episode.Episode, 0, len(out))
	for _, s := range out {
		results = append(results, s.ep.Clone())
	}
	return results, nil
}

func (e *Engine) relevanceScore(ctx context.Context, queryText string, queryVec []float32, tc episode.TaskContext, ep *episode.Episode, now time.Time) float64 {
	w := e.cfg.RelevanceWeights

	textScore := textOverlap(queryText, ep.TaskDescription)
	if epVec, err := e.embedder.Embed(ctx, ep.TaskDescription); err == nil {
		if cos := cosineSimilarity(queryVec, epVec); cos > textScore {
			textScore = cos
		}
	}

	tagScore := jaccard(tc.Tags, ep.Tags)

	var domainScore float64
	if tc.Domain != "" && tc.Domain == ep.Context.Domain {
		domainScore = 1
	}

	recencyScore := 0.0
	if !ep.StartTime.IsZero() {
		age := now.Sub(ep.StartTime)
		if age < 0 {
			age = 0
		}
		recencyScore = math.Exp(-math.Ln2 * age.Hours() / recencyHalfLife.Hours())
	}

	var outcomeScore float64
	if ep.Outcome != nil && ep.Outcome.Kind == episode.OutcomeSuccess {
		outcomeScore = 1
	} else if ep.Outcome != nil && ep.Outcome.Kind == episode.OutcomePartial {
		outcomeScore = 0.5
	}

	return w.TextOverlap*textScore +
		w.TagJaccard*tagScore +
		w.DomainEquality*domainScore +
		w.Recency*recencyScore +
		w.OutcomeSuccess*outcomeScore
}

// textOverlap is the fraction of query's distinct lowercased words
// that also appear in target, a deterministic lexical-overlap signal
// computed alongside (and taking the max with) the embedding cosine
// term so retrieval still ranks sensibly when the embedder's bag-of-
// words vector collides two unrelated words into the same bucket.
func textOverlap(query, target string) float64 {
	qWords := wordSet(query)
	if len(qWords) == 0 {
		return 0
	}
	tWords := wordSet(target)
	var hits int
	for w := range qWords {
		if tWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(qWords))
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

// jaccard returns the Jaccard similarity of a and b treated as sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	as := make(map[string]bool, len(a))
	for _, t := range a {
		as[t] = true
	}
	bs := make(map[string]bool, len(b))
	for _, t := range b {
		bs[t] = true
	}
	var inter int
	for t := range as {
		if bs[t] {
			inter++
		}
	}
	union := len(as)
	for t := range bs {
		if !as[t] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
