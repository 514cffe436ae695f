package repository

import (
	"context"

	"github.com/and161185/passkit-server/internal/model"
)

// LogRepository persists device diagnostic lines.
type LogRepository interface {
	// SaveLogs stores entries in the given order.
	SaveLogs(ctx context.Context, entries []model.LogEntry) error
	// RecentLogs returns up to limit latest entries, oldest first.
	RecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error)
}
