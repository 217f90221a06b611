// Package explain wraps the external completion call used to justify
// bandit picks: retries with exponential backoff, wall-clock latency
// accounting, and a structured result for the explanation record.
package explain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ayuboiii/AILAB/internal/inference"
)

const systemPrompt = "You explain bandit decisions concisely."

// ErrNotConfigured means no inference caller or credential was configured.
// It is fatal: no retry is attempted.
var ErrNotConfigured = errors.New("explanation caller not configured")

// UnavailableError is returned after all retries are exhausted. It carries
// the last underlying failure.
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("explanation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Result is one successful explanation.
type Result struct {
	Text      string
	Tokens    map[string]int
	LatencyMs int64
	Model     string
}

// Options tune the retry loop; zero values take defaults.
type Options struct {
	Model          string
	Retries        int           // total attempts, default 3
	Backoff        time.Duration // base backoff, default 500ms, doubled per attempt
	AttemptTimeout time.Duration // per-attempt deadline, default 30s
	MaxTokens      int           // default 800
	Temperature    float32       // default 0.2
}

// Client calls the inference API to produce pick rationales.
type Client struct {
	caller inference.Caller
	opts   Options
	logger *slog.Logger
	sleep  func(time.Duration) // replaced in tests
}

// NewClient builds a client over the given transport. caller may be nil
// when no credential is configured; Explain then fails with
// ErrNotConfigured.
func NewClient(caller inference.Caller, opts Options, logger *slog.Logger) *Client {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{caller: caller, opts: opts, logger: logger, sleep: time.Sleep}
}

// Explain asks the model to justify a decision described by contextText.
// Each attempt is individually measured and bounded; transport and remote
// failures are retried with backoff·2^attempt waits in between. After the
// configured attempts it fails with an UnavailableError wrapping the last
// cause.
func (c *Client) Explain(ctx context.Context, contextText string) (*Result, error) {
	if c.caller == nil {
		return nil, ErrNotConfigured
	}

	req := inference.Request{
		Messages: []inference.Message{
			{Role: inference.RoleSystem, Content: systemPrompt},
			{Role: inference.RoleUser, Content: contextText},
		},
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.Retries; attempt++ {
		if attempt > 0 {
			c.sleep(c.opts.Backoff * (1 << (attempt - 1)))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
		start := time.Now()
		completion, err := c.caller.Complete(attemptCtx, req)
		latency := time.Since(start)
		cancel()

		if err != nil {
			lastErr = err
			c.logger.Warn("explanation call failed",
				"attempt", attempt+1, "retries", c.opts.Retries, "error", err)
			continue
		}

		return &Result{
			Text: completion.Text,
			Tokens: map[string]int{
				"prompt_tokens":     completion.Usage.PromptTokens,
				"completion_tokens": completion.Usage.CompletionTokens,
				"total_tokens":      completion.Usage.TotalTokens,
			},
			LatencyMs: latency.Milliseconds(),
			Model:     completion.Model,
		}, nil
	}

	return nil, &UnavailableError{Attempts: c.opts.Retries, Err: lastErr}
}
