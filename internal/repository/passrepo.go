// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/passkit-server/internal/model"
)

// PassRepository provides read access to stored passes.
type PassRepository interface {
	// FindPass loads a pass by its type identifier and serial number.
	FindPass(ctx context.Context, passTypeID, serial string) (*model.Pass, error)
}
