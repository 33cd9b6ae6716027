package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DiagnosticPrefix marks text that describes a failure rather than model output.
const DiagnosticPrefix = "⚠️ AI error: "

// GenerationResult is either model text or a failure. It is returned instead
// of an error so callers always get something displayable.
type GenerationResult struct {
	Model    string
	Text     string
	Attempts int
	Failure  error
}

func (r GenerationResult) OK() bool {
	return r.Failure == nil
}

// Diagnostic is the human readable failure, prefixed with DiagnosticPrefix.
func (r GenerationResult) Diagnostic() string {
	if r.Failure == nil {
		return ""
	}
	return DiagnosticPrefix + describeFailure(r.Failure)
}

// Display returns the text on success and the diagnostic otherwise.
func (r GenerationResult) Display() string {
	if r.OK() {
		return r.Text
	}
	return r.Diagnostic()
}

func IsDiagnostic(text string) bool {
	return strings.HasPrefix(text, DiagnosticPrefix)
}

type ModelHandleResolver interface {
	Resolve(ctx context.Context) string
	Reset()
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// MinInterval spaces consecutive provider calls so a chain of prompts
	// does not burst the provider's rate limiter.
	MinInterval time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     8 * time.Second,
		MinInterval: time.Second,
	}
}

// TextGenerator is what the analysis pipeline needs from the client.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) GenerationResult
}

type GenerationClient struct {
	generator   ContentGenerator
	resolver    ModelHandleResolver
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

func NewGenerationClient(generator ContentGenerator, resolver ModelHandleResolver, policy RetryPolicy) *GenerationClient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	limit := rate.Inf
	if policy.MinInterval > 0 {
		limit = rate.Every(policy.MinInterval)
	}

	return &GenerationClient{
		generator:   generator,
		resolver:    resolver,
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: policy.MaxAttempts,
		backoff:     policy.Backoff,
	}
}

// Generate calls the provider with bounded retry on transient overload.
// A blank prompt yields an empty successful result without any call.
func (c *GenerationClient) Generate(ctx context.Context, prompt string) GenerationResult {
	if strings.TrimSpace(prompt) == "" {
		return GenerationResult{}
	}

	model := c.resolver.Resolve(ctx)
	result := GenerationResult{Model: model}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result.Attempts = attempt

		if err := c.limiter.Wait(ctx); err != nil {
			result.Failure = fmt.Errorf("waiting for provider slot: %w", err)
			return result
		}

		start := time.Now()
		text, err := c.generator.GenerateContent(ctx, model, prompt)
		generationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())

		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				generationAttemptsTotal.WithLabelValues(model, "success").Inc()
				result.Text = text
				return result
			}
			err = ErrEmptyResponse
		}

		lastErr = err
		if !IsTransient(err) {
			generationAttemptsTotal.WithLabelValues(model, failureOutcome(err)).Inc()
			if isModelNotFound(err) {
				c.resolver.Reset()
			}
			result.Failure = err
			return result
		}

		generationAttemptsTotal.WithLabelValues(model, "transient").Inc()
		if attempt == c.maxAttempts {
			break
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Dur("backoff", c.backoff).
			Msg("⚠️ Provider overloaded, retrying")

		if err := sleepContext(ctx, c.backoff); err != nil {
			result.Failure = fmt.Errorf("retry cancelled: %w", err)
			return result
		}
	}

	result.Failure = fmt.Errorf("gave up after %d attempts: %w", c.maxAttempts, lastErr)
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failureOutcome(err error) string {
	if errors.Is(err, ErrEmptyResponse) {
		return "empty"
	}
	return "permanent"
}

func isModelNotFound(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Code == http.StatusNotFound
}

func describeFailure(err error) string {
	var providerErr *ProviderError
	switch {
	case errors.Is(err, context.Canceled):
		return "the request was cancelled before the model answered"
	case errors.Is(err, context.DeadlineExceeded):
		return "the model did not answer in time"
	case errors.Is(err, ErrEmptyResponse):
		return err.Error()
	case errors.As(err, &providerErr) && providerErr.Transient():
		return "the AI provider is rate limiting requests, please try again in a minute (" + err.Error() + ")"
	}
	return err.Error()
}
