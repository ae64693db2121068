// Package ratelimit throttles calls to an LLM service with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// LLMService wraps another LLMService and waits for a token before each
// generation call. Ping, ModelName and Close pass straight through.
type LLMService struct {
	next    driven.LLMService
	limiter *rate.Limiter
}

// Wrap returns svc throttled to requestsPerSecond with a burst of
// max(1, ceil(requestsPerSecond)). A non-positive rate returns svc unchanged.
func Wrap(svc driven.LLMService, requestsPerSecond float64) driven.LLMService {
	if svc == nil || requestsPerSecond <= 0 {
		return svc
	}
	burst := max(1, int(math.Ceil(requestsPerSecond)))
	return &LLMService{
		next:    svc,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (s *LLMService) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Generate waits for the limiter then delegates.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return s.next.Generate(ctx, prompt, opts)
}

// GenerateStream waits for the limiter then delegates.
func (s *LLMService) GenerateStream(
	ctx context.Context, prompt string, opts driven.GenerateOptions, onFragment func(string) error,
) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.next.GenerateStream(ctx, prompt, opts, onFragment)
}

// ModelName returns the wrapped service's model name.
func (s *LLMService) ModelName() string {
	return s.next.ModelName()
}

// Ping delegates without consuming a token.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped service.
func (s *LLMService) Close() error {
	return s.next.Close()
}
