package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
	"github.com/and161185/passkit-server/internal/repository"
)

// PassLookup resolves a pass by type identifier and serial number.
type PassLookup interface {
	Lookup(ctx context.Context, passTypeID, serial string) (*model.Pass, error)
}

// PassRenderer produces the .pkpass bytes served for a pass.
type PassRenderer interface {
	Render(ctx context.Context, p *model.Pass) ([]byte, error)
}

// LookupFunc adapts a function to PassLookup.
type LookupFunc func(ctx context.Context, passTypeID, serial string) (*model.Pass, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, passTypeID, serial string) (*model.Pass, error) {
	return f(ctx, passTypeID, serial)
}

// RenderFunc adapts a function to PassRenderer.
type RenderFunc func(ctx context.Context, p *model.Pass) ([]byte, error)

// Render calls f.
func (f RenderFunc) Render(ctx context.Context, p *model.Pass) ([]byte, error) { return f(ctx, p) }

// RepoLookup is the default lookup backed by pass storage.
func RepoLookup(repo repository.PassRepository) PassLookup {
	return LookupFunc(repo.FindPass)
}

// RawRenderer is the default renderer: it serves the stored bytes as is.
type RawRenderer struct{}

// Render returns p.Data, which may be empty.
func (RawRenderer) Render(_ context.Context, p *model.Pass) ([]byte, error) {
	return p.Data, nil
}

// DirRenderer serves pre-built files laid out as <Root>/<passTypeID>/<serial>.pkpass.
type DirRenderer struct {
	Root string
}

// Render reads the pass file from disk.
func (d DirRenderer) Render(_ context.Context, p *model.Pass) ([]byte, error) {
	if !safeName(p.PassTypeID) || !safeName(p.SerialNumber) {
		return nil, fmt.Errorf("%w: unsafe pass identifier", errs.ErrBadRequest)
	}
	b, err := os.ReadFile(filepath.Join(d.Root, p.PassTypeID, p.SerialNumber+".pkpass"))
	if err != nil {
		return nil, fmt.Errorf("render %s/%s: %w", p.PassTypeID, p.SerialNumber, err)
	}
	return b, nil
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
