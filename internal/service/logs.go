package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/limiter"
	"github.com/and161185/passkit-server/internal/model"
	"github.com/and161185/passkit-server/internal/repository"
)

// LogService defines device diagnostic log intake.
type LogService interface {
	// SubmitLogs stores messages in order on behalf of the client at remote.
	SubmitLogs(ctx context.Context, remote string, messages []string) error
}

// RateLimitError reports a throttled submission and when the client may retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return "rate limited, retry after " + e.RetryAfter.String() }

func (e *RateLimitError) Unwrap() error { return errs.ErrRateLimited }

type LogServiceImpl struct {
	logs repository.LogRepository
	lim  limiter.Limiter
	salt []byte
}

// NewLogService constructs LogService. lim may be nil to disable throttling.
func NewLogService(logs repository.LogRepository, lim limiter.Limiter, salt []byte) *LogServiceImpl {
	return &LogServiceImpl{logs: logs, lim: lim, salt: salt}
}

// SubmitLogs persists each message as its own entry.
func (s *LogServiceImpl) SubmitLogs(ctx context.Context, remote string, messages []string) error {
	if messages == nil {
		return fmt.Errorf("%w: missing logs", errs.ErrBadRequest)
	}
	if s.lim != nil {
		allowed, retry, err := s.lim.Allow(ctx, limiter.HashClient(s.salt, remote))
		if err != nil {
			return err
		}
		if !allowed {
			return &RateLimitError{RetryAfter: retry}
		}
	}
	entries := make([]model.LogEntry, len(messages))
	for i, m := range messages {
		entries[i] = model.LogEntry{Message: m}
	}
	return s.logs.SaveLogs(ctx, entries)
}
