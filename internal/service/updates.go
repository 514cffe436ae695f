package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/repository"
)

// SerialNumbers is the answer of the incremental update query.
type SerialNumbers struct {
	LastUpdated   string   `json:"lastUpdated"`
	SerialNumbers []string `json:"serialNumbers"`
}

// UpdateService defines the "which passes changed" query.
type UpdateService interface {
	// ListUpdated returns the most recently changed cohort of the device's passes.
	// since == nil means no lower bound.
	ListUpdated(ctx context.Context, deviceID, passTypeID string, since *time.Time) (SerialNumbers, error)
}

type UpdateServiceImpl struct {
	regs repository.RegistrationRepository
}

// NewUpdateService constructs UpdateService.
func NewUpdateService(regs repository.RegistrationRepository) *UpdateServiceImpl {
	return &UpdateServiceImpl{regs: regs}
}

// ListUpdated reports errs.ErrNotFound when the device has no registrations for
// passTypeID and errs.ErrNoUpdates when nothing is strictly newer than since.
// Only passes sharing the newest update second are returned; older changes are
// found by polling again with the returned LastUpdated.
func (s *UpdateServiceImpl) ListUpdated(
	ctx context.Context, deviceID, passTypeID string, since *time.Time,
) (SerialNumbers, error) {
	stamps, err := s.regs.PassesForDevice(ctx, deviceID, passTypeID)
	if err != nil {
		return SerialNumbers{}, fmt.Errorf("list updated: %w", err)
	}
	if len(stamps) == 0 {
		return SerialNumbers{}, errs.ErrNotFound
	}

	var (
		latest  time.Time
		serials []string
	)
	for _, st := range stamps {
		ts := seconds(st.UpdatedAt)
		if since != nil && !ts.After(seconds(*since)) {
			continue
		}
		switch {
		case serials == nil || ts.After(latest):
			latest = ts
			serials = []string{st.SerialNumber}
		case ts.Equal(latest):
			serials = append(serials, st.SerialNumber)
		}
	}
	if len(serials) == 0 {
		return SerialNumbers{}, errs.ErrNoUpdates
	}
	sort.Strings(serials)
	return SerialNumbers{LastUpdated: FormatTimestamp(latest), SerialNumbers: serials}, nil
}
