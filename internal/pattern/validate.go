package pattern

import "github.com/memoryd/engine/internal/errs"

// ValidatePattern checks that p carries exactly the payload its Kind
// requires and nothing else, the tagged-union invariant a hand-rolled
// sum type must enforce itself since the compiler cannot.
func ValidatePattern(p *Pattern) error {
	if !p.Kind.Valid() {
		return errs.InvalidInput("pattern kind " + quote(string(p.Kind)) + " is not recognized")
	}
	if p.Domain == "" {
		return errs.InvalidInput("pattern domain must not be empty")
	}

	present := 0
	if p.ToolSequence != nil {
		present++
	}
	if p.ErrorRecovery != nil {
		present++
	}
	if p.Decision != nil {
		present++
	}
	if present != 1 {
		return errs.InvalidInput("pattern must carry exactly one variant payload")
	}

	switch p.Kind {
	case KindToolSequence:
		if p.ToolSequence == nil {
			return errs.InvalidInput("tool_sequence pattern missing ToolSequence payload")
		}
		if len(p.ToolSequence.Tools) < 2 {
			return errs.InvalidInput("tool_sequence pattern needs at least two tools")
		}
	case KindErrorRecovery:
		if p.ErrorRecovery == nil {
			return errs.InvalidInput("error_recovery pattern missing ErrorRecovery payload")
		}
		if p.ErrorRecovery.Tool == "" {
			return errs.InvalidInput("error_recovery pattern must name a tool")
		}
	case KindDecision:
		if p.Decision == nil {
			return errs.InvalidInput("decision pattern missing Decision payload")
		}
		if p.Decision.Situation == "" || p.Decision.Choice == "" {
			return errs.InvalidInput("decision pattern must set situation and choice")
		}
	}
	return nil
}

func quote(s string) string {
	return "\"" + s + "\""
}
