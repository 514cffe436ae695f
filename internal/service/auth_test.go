package service

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
)

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	p := mkPass(1, "A", baseTime)

	cases := []struct {
		name   string
		header string
		pass   *model.Pass
		ok     bool
	}{
		{"exact", goodAuth, p, true},
		{"missing", "", p, false},
		{"wrong scheme", "Bearer " + token, p, false},
		{"lowercase scheme", "applepass " + token, p, false},
		{"wrong token", "ApplePass nope", p, false},
		{"trailing space", goodAuth + " ", p, false},
		{"unknown pass", goodAuth, nil, false},
		{"empty pass token", "ApplePass ", &model.Pass{}, false},
	}
	for _, tc := range cases {
		err := Authenticate(tc.header, tc.pass)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected err %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("%s: want ErrUnauthorized, got %v", tc.name, err)
		}
	}
}

func TestResolver_MissingPassOpacity(t *testing.T) {
	t.Parallel()
	repo := newFakePassRepo(mkPass(1, "A", baseTime))
	ctx := context.Background()

	opaque := NewResolver(RepoLookup(repo), false)
	_, errMissing := opaque.Authorize(ctx, passType, "nope", goodAuth)
	_, errWrong := opaque.Authorize(ctx, passType, "A", "ApplePass bad")
	if !errors.Is(errMissing, errs.ErrUnauthorized) || !errors.Is(errWrong, errs.ErrUnauthorized) {
		t.Fatalf("opaque: missing=%v wrong=%v", errMissing, errWrong)
	}

	reveal := NewResolver(RepoLookup(repo), true)
	if _, err := reveal.Authorize(ctx, passType, "nope", goodAuth); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("reveal: want ErrNotFound, got %v", err)
	}
}

func TestResolver_StorageErrorNotMasked(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	repo := newFakePassRepo()
	repo.err = boom

	_, err := NewResolver(RepoLookup(repo), false).Authorize(context.Background(), passType, "A", goodAuth)
	if !errors.Is(err, boom) {
		t.Fatalf("want storage error, got %v", err)
	}
}
