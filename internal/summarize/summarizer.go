package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/aggregate"
)

// ErrNotConfigured is returned when no provider is set up.
var ErrNotConfigured = errors.New("summarizer not configured")

// DefaultTimeout bounds one summarization call.
const DefaultTimeout = 60 * time.Second

// Request is one text generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Completer is a text-in, text-out generation service.
type Completer interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// Summarizer runs the build, call, clean and parse pipeline.
type Summarizer struct {
	Completer   Completer
	Builder     Builder
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	TopP        float64
	Logger      *slog.Logger
}

// Summarize summarizes aggregates. Every failure is returned as a wrapped
// error; a reply that is not valid timesheet JSON is still a Result.
func (s *Summarizer) Summarize(ctx context.Context, aggs []activity.DomainAggregate) (*Result, error) {
	if s == nil || s.Completer == nil {
		return nil, ErrNotConfigured
	}
	prompt, err := s.Builder.Build(aggs, aggregate.TotalMinutes(aggs))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, prompt)
}

// SummarizeEntries summarizes raw entries instead of aggregates.
func (s *Summarizer) SummarizeEntries(ctx context.Context, entries []activity.Entry) (*Result, error) {
	if s == nil || s.Completer == nil {
		return nil, ErrNotConfigured
	}
	prompt, err := s.Builder.BuildFromEntries(entries)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, prompt)
}

func (s *Summarizer) run(ctx context.Context, prompt string) (*Result, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.Completer.Complete(ctx, Request{
		System:      s.Builder.SystemPrompt(),
		Prompt:      prompt,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		TopP:        s.TopP,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("summarization timed out after %s: %w", timeout, err)
		}
		return nil, fmt.Errorf("summarization request failed: %w", err)
	}

	text, err := reply.Text()
	if err != nil {
		return nil, fmt.Errorf("unusable summarizer reply (%s): %w", reply.Kind, err)
	}

	res := ParseReply(text)
	s.logger().Info("summary generated",
		"kind", reply.Kind.String(),
		"structured", res.Timesheet != nil,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if res.ParseError != nil {
		s.logger().Warn("summary is not timesheet JSON", "err", res.ParseError)
	}
	return &res, nil
}

func (s *Summarizer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
