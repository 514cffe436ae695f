package repository

import (
	"context"

	"github.com/and161185/passkit-server/internal/model"
)

// RegistrationRepository manages device<->pass associations.
type RegistrationRepository interface {
	// CreateIfAbsent atomically inserts a registration unless one already exists
	// for (DeviceID, PassID). It reports whether a row was created.
	CreateIfAbsent(ctx context.Context, reg *model.Registration) (created bool, err error)

	// Delete removes all registrations of deviceID for passID and returns the
	// push tokens of the removed rows. Removing nothing is not an error.
	Delete(ctx context.Context, deviceID string, passID int64) ([]string, error)

	// PassesForDevice lists serials and update stamps of every pass of passTypeID
	// the device is registered for.
	PassesForDevice(ctx context.Context, deviceID, passTypeID string) ([]model.PassStamp, error)
}
