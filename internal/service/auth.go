// Package service implements the PassKit web service operations on top of
// repository interfaces and injected lookup/render strategies.
package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
)

// AuthScheme prefixes the pass authentication token in the Authorization header.
const AuthScheme = "ApplePass "

// Authenticate checks header against "ApplePass <token>" for p.
// A nil pass is rejected the same way as a wrong token.
func Authenticate(header string, p *model.Pass) error {
	if p == nil || p.AuthenticationToken == "" {
		return errs.ErrUnauthorized
	}
	want := AuthScheme + p.AuthenticationToken
	if subtle.ConstantTimeCompare([]byte(header), []byte(want)) != 1 {
		return errs.ErrUnauthorized
	}
	return nil
}

// Resolver looks passes up and authorizes access to them.
type Resolver struct {
	lookup        PassLookup
	revealMissing bool
}

// NewResolver constructs a Resolver. With revealMissing=false an unknown pass
// is indistinguishable from a wrong token.
func NewResolver(lookup PassLookup, revealMissing bool) *Resolver {
	return &Resolver{lookup: lookup, revealMissing: revealMissing}
}

// Find resolves a pass, mapping a miss to ErrNotFound or ErrUnauthorized.
// A lookup returning a nil pass without error counts as a miss.
func (r *Resolver) Find(ctx context.Context, passTypeID, serial string) (*model.Pass, error) {
	p, err := r.lookup.Lookup(ctx, passTypeID, serial)
	if err == nil && p == nil {
		err = errs.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) && !r.revealMissing {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	return p, nil
}

// Authorize resolves a pass and checks the Authorization header against it.
func (r *Resolver) Authorize(ctx context.Context, passTypeID, serial, header string) (*model.Pass, error) {
	p, err := r.Find(ctx, passTypeID, serial)
	if err != nil {
		return nil, err
	}
	if err := Authenticate(header, p); err != nil {
		return nil, err
	}
	return p, nil
}
