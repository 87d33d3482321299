// Package pattern defines the extracted, reusable unit the extraction
// pipeline produces from completed episodes: a Pattern is a closed
// tagged variant (tool sequence, error recovery, or decision), plus the
// Heuristic type for the higher-level natural-language policy an agent
// can distill from many patterns.
//
// Like episode.StepResult, Pattern models its variant as a Kind string
// plus per-kind payload fields rather than an interface hierarchy, so a
// Pattern round-trips through JSON and SQL storage without a registry.
package pattern

import "time"

// Kind is a closed enum of the pattern shapes the extraction pipeline
// recognizes.
type Kind string

const (
	KindToolSequence  Kind = "tool_sequence"
	KindErrorRecovery Kind = "error_recovery"
	KindDecision      Kind = "decision"
)

// Valid reports whether k is one of the known pattern kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindToolSequence, KindErrorRecovery, KindDecision:
		return true
	}
	return false
}

// ToolSequencePayload is the variant body for KindToolSequence: a
// contiguous run of tool invocations observed together often enough to
// be worth surfacing as a unit.
type ToolSequencePayload struct {
	Tools []string `json:"tools"`
}

// ErrorRecoveryPayload is the variant body for KindErrorRecovery: an
// error on Tool followed, later in the same episode, by a success on
// the same tool.
type ErrorRecoveryPayload struct {
	Tool          string `json:"tool"`
	ErrorSummary  string `json:"error_summary"`
	RecoveryNotes string `json:"recovery_notes,omitempty"`
}

// DecisionPayload is the variant body for KindDecision: a situation and
// the choice an agent made among alternatives.
type DecisionPayload struct {
	Situation string `json:"situation"`
	Choice    string `json:"choice"`
}

// Effectiveness is the mutable scorecard the effectiveness tracker
// maintains for a pattern. It is embedded in Pattern rather than kept
// in a side table so a single storage round-trip returns both the
// pattern and its current standing.
type Effectiveness struct {
	RetrievalCount   int        `json:"retrieval_count"`
	ApplicationCount int        `json:"application_count"`
	SuccessCount     int        `json:"success_count"`
	FailureCount     int        `json:"failure_count"`
	LastAppliedAt    *time.Time `json:"last_applied_at,omitempty"`
	LastRetrievedAt  *time.Time `json:"last_retrieved_at,omitempty"`
	Score            float64    `json:"score"`
}

// ApplicationRate returns ApplicationCount as a fraction of
// RetrievalCount, the "was it actually used when surfaced" term of the
// effectiveness formula. It returns 0 when the pattern has never been
// retrieved.
func (e Effectiveness) ApplicationRate() float64 {
	if e.RetrievalCount == 0 {
		return 0
	}
	return float64(e.ApplicationCount) / float64(e.RetrievalCount)
}

// SuccessRate returns SuccessCount as a fraction of the applications
// with a recorded helped/hindered verdict. It returns 0 when no
// application has been scored yet.
func (e Effectiveness) SuccessRate() float64 {
	total := e.SuccessCount + e.FailureCount
	if total == 0 {
		return 0
	}
	return float64(e.SuccessCount) / float64(total)
}

// Pattern is one reusable unit of agent behavior extracted from one or
// more episodes. Exactly one of ToolSequence, ErrorRecovery, or
// Decision is populated, selected by Kind.
type Pattern struct {
	ID              string               `json:"pattern_id"`
	Kind            Kind                 `json:"kind"`
	Domain          string               `json:"domain"`
	Description     string               `json:"description"`
	SourceEpisodeID string               `json:"source_episode_id"`
	OccurrenceCount int                  `json:"occurrence_count"`
	AvgLatencyMS    int64                `json:"avg_latency_ms"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Effectiveness   Effectiveness        `json:"effectiveness"`
	ToolSequence    *ToolSequencePayload  `json:"tool_sequence,omitempty"`
	ErrorRecovery   *ErrorRecoveryPayload `json:"error_recovery,omitempty"`
	Decision        *DecisionPayload      `json:"decision,omitempty"`
}

// Heuristic is a natural-language policy an agent or operator distills
// from the behavior of one or more patterns — the engine's highest
// level of abstraction over accumulated experience.
type Heuristic struct {
	ID               string    `json:"heuristic_id"`
	Domain           string    `json:"domain"`
	Statement        string    `json:"statement"`
	SourcePatternIDs []string  `json:"source_pattern_ids,omitempty"`
	ApplicationCount int       `json:"application_count"`
	CreatedAt        time.Time `json:"created_at"`
}
