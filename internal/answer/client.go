package answer

import (
	"context"
	"errors"

	"github.com/inktime/support-backend/internal/platform/logger"
	"github.com/inktime/support-backend/internal/platform/openrouter"
)

// ErrAllModelsExhausted means every attempted model failed. Callers must
// substitute a static fallback message, never surface this to the end user.
var ErrAllModelsExhausted = errors.New("all model attempts failed")

// Completer is the one wire contract the answer path depends on.
type Completer interface {
	ChatCompletion(ctx context.Context, req openrouter.ChatRequest) (*openrouter.Completion, error)
}

// Result is a successful generation: the text and the model that produced it.
type Result struct {
	Content string
	Model   string
}

// Client races the candidate models concurrently and returns the first
// success. Each attempt runs under its own timeout; losers are abandoned
// (their results are discarded, not awaited), so total latency is bounded by
// the slowest attempted timeout rather than the sum.
type Client struct {
	log         *logger.Logger
	completer   Completer
	models      []ModelDescriptor
	maxAttempts int
}

func NewClient(log *logger.Logger, completer Completer, models []ModelDescriptor, maxAttempts int) (*Client, error) {
	if completer == nil {
		return nil, errors.New("completer required")
	}
	if len(models) == 0 {
		models = DefaultModels()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		log:         log.With("service", "AnswerClient"),
		completer:   completer,
		models:      models,
		maxAttempts: maxAttempts,
	}, nil
}

type attemptOutcome struct {
	model  string
	result *openrouter.Completion
	err    error
}

// Generate dispatches one request per candidate model and returns the first
// success. preferredModel, when set and known, is raced first-class along
// with the rest; an empty string means plain priority order.
func (c *Client) Generate(ctx context.Context, messages []openrouter.Message, preferredModel string) (*Result, error) {
	candidates := selectCandidates(c.models, preferredModel, c.maxAttempts)
	if len(candidates) == 0 {
		return nil, ErrAllModelsExhausted
	}

	// Buffered so abandoned attempts can still send and exit.
	outcomes := make(chan attemptOutcome, len(candidates))
	for _, candidate := range candidates {
		candidate := candidate
		go func() {
			attemptCtx, cancel := context.WithTimeout(ctx, candidate.Timeout())
			defer cancel()
			completion, err := c.completer.ChatCompletion(attemptCtx, openrouter.ChatRequest{
				Model:       candidate.Name,
				Messages:    messages,
				Temperature: candidate.Temperature,
				MaxTokens:   candidate.MaxTokens,
			})
			outcomes <- attemptOutcome{model: candidate.Name, result: completion, err: err}
		}()
	}

	for remaining := len(candidates); remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case outcome := <-outcomes:
			if outcome.err != nil {
				c.logAttemptFailure(outcome.model, outcome.err)
				continue
			}
			c.log.Info("Model responded", "model", outcome.result.Model)
			return &Result{Content: outcome.result.Content, Model: outcome.result.Model}, nil
		}
	}
	c.log.Error("All model attempts failed", "attempts", len(candidates))
	return nil, ErrAllModelsExhausted
}

// Timeout, rate-limit and payment-required failures all mean the same thing
// operationally (that attempt is dead, hope another wins) but are logged
// distinctly so quota and capacity problems are visible.
func (c *Client) logAttemptFailure(model string, err error) {
	switch {
	case openrouter.IsTimeout(err):
		c.log.Warn("Model attempt timed out", "model", model)
	case openrouter.IsRateLimited(err):
		c.log.Warn("Model attempt rate limited", "model", model)
	case openrouter.IsPaymentRequired(err):
		c.log.Warn("Model attempt rejected for billing", "model", model)
	default:
		c.log.Warn("Model attempt failed", "model", model, "error", err)
	}
}
