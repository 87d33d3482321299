package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/memoryd/engine/internal/episode"
	"github.com/memoryd/engine/internal/quality"
)

// ReflectionGenerator derives the free-text reflection complete_episode
// attaches to a completed episode. The engine calls it synchronously on
// the completion path, so implementations that reach out to a network
// service must bound their own latency.
type ReflectionGenerator interface {
	Reflect(ctx context.Context, ep *episode.Episode, a quality.Assessment) (string, error)
}

// DefaultReflectionGenerator synthesizes a deterministic reflection
// from the episode's outcome, step count, and quality assessment — no
// network calls, used unless an engine is built WithReflectionGenerator.
type DefaultReflectionGenerator struct{}

// Reflect implements ReflectionGenerator.
func (DefaultReflectionGenerator) Reflect(_ context.Context, ep *episode.Episode, a quality.Assessment) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s completed %s with %d step(s) (quality score %.2f).",
		ep.TaskType, outcomeWord(ep.Outcome.Kind), len(ep.Steps), a.Score)
	if a.ErrorRecovery > 0 {
		b.WriteString(" Recovered from at least one tool error during execution.")
	}
	if ep.Outcome.Verdict != "" {
		fmt.Fprintf(&b, " Verdict: %s.", ep.Outcome.Verdict)
	}
	return b.String(), nil
}

func outcomeWord(k episode.OutcomeKind) string {
	switch k {
	case episode.OutcomeSuccess:
		return "success"
	case episode.OutcomePartial:
		return "partial success"
	default:
		return "failure"
	}
}

// reflectionPromptTemplate is the prompt AnthropicReflectionGenerator
// renders before calling the Messages API: a single text/template-free
// format string since the substitution here is a flat set of episode
// fields, not conditional sections.
const reflectionPromptTemplate = "Summarize in one or two sentences what an autonomous agent learned while completing this task.\nTask: %s\nOutcome: %s\nSteps taken: %d\nVerdict: %s\n"

// AnthropicReflectionGenerator calls the Anthropic Messages API to
// produce a richer natural-language reflection than
// DefaultReflectionGenerator's template, grounded directly on the
// teacher's internal/compact.haikuClient: same API-key resolution
// order (explicit key, then ANTHROPIC_API_KEY), retried with a
// backoff.ExponentialBackOff (1s initial interval, up to 3 retries)
// from the same backoff library internal/storage/sqlite's pool uses.
type AnthropicReflectionGenerator struct {
	client         anthropic.Client
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
	fallback       ReflectionGenerator
}

// NewAnthropicReflectionGenerator builds a generator that calls model
// with apiKey (or ANTHROPIC_API_KEY if apiKey is empty), falling back
// to DefaultReflectionGenerator if the call fails after retries.
func NewAnthropicReflectionGenerator(apiKey string, model anthropic.Model) *AnthropicReflectionGenerator {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &AnthropicReflectionGenerator{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          model,
		maxRetries:     3,
		initialBackoff: time.Second,
		fallback:       DefaultReflectionGenerator{},
	}
}

// Reflect implements ReflectionGenerator.
func (g *AnthropicReflectionGenerator) Reflect(ctx context.Context, ep *episode.Episode, a quality.Assessment) (string, error) {
	prompt := fmt.Sprintf(reflectionPromptTemplate, ep.TaskDescription, outcomeWord(ep.Outcome.Kind), len(ep.Steps), ep.Outcome.Verdict)

	var result string
	op := func() error {
		msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     g.model,
			MaxTokens: 256,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return err
		}
		result = concatTextBlocks(msg)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.maxRetries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		// Reflection generation is an enrichment, not a correctness
		// requirement: a failed call falls back to the deterministic
		// template rather than blocking complete_episode.
		return g.fallback.Reflect(ctx, ep, a)
	}
	return result, nil
}

func concatTextBlocks(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
