package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
)

func newRegFixture(ps ...*model.Pass) (*RegistrationServiceImpl, *fakeRegRepo, *recNotifier) {
	passes := newFakePassRepo(ps...)
	regs := &fakeRegRepo{passes: passes}
	n := &recNotifier{}
	return NewRegistrationService(NewResolver(RepoLookup(passes), false), regs, n), regs, n
}

func TestRegister_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, regs, n := newRegFixture(mkPass(1, "A", baseTime))

	res, err := s.Register(ctx, "dev1", passType, "A", "push-1", goodAuth)
	if err != nil || res != Created {
		t.Fatalf("first register: res=%v err=%v", res, err)
	}
	res, err = s.Register(ctx, "dev1", passType, "A", "push-2", goodAuth)
	if err != nil || res != AlreadyRegistered {
		t.Fatalf("second register: res=%v err=%v", res, err)
	}
	if regs.count() != 1 {
		t.Fatalf("want exactly one row, got %d", regs.count())
	}
	if regs.rows[0].PushToken != "push-1" {
		t.Fatalf("push token must not be updated, got %q", regs.rows[0].PushToken)
	}
	if len(n.events) != 1 || n.events[0].Kind != model.EventRegistered || n.events[0].PushToken != "push-1" {
		t.Fatalf("want one Registered event, got %+v", n.events)
	}
}

func TestRegister_ConcurrentSameDevice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, regs, n := newRegFixture(mkPass(1, "A", baseTime))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Register(ctx, "dev1", passType, "A", "push", goodAuth)
			if err != nil {
				t.Errorf("register: %v", err)
				return
			}
			if res == Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 || regs.count() != 1 || len(n.events) != 1 {
		t.Fatalf("created=%d rows=%d events=%d", created, regs.count(), len(n.events))
	}
}

func TestRegister_AuthFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, regs, n := newRegFixture(mkPass(1, "A", baseTime))

	_, errWrong := s.Register(ctx, "dev1", passType, "A", "push", "ApplePass wrong")
	_, errMissing := s.Register(ctx, "dev1", passType, "missing", "push", goodAuth)
	if !errors.Is(errWrong, errs.ErrUnauthorized) || !errors.Is(errMissing, errs.ErrUnauthorized) {
		t.Fatalf("want same failure class: wrong=%v missing=%v", errWrong, errMissing)
	}
	if regs.count() != 0 || len(n.events) != 0 {
		t.Fatalf("nothing must be stored or emitted")
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, _ := newRegFixture(mkPass(1, "A", baseTime))

	if _, err := s.Register(ctx, "", passType, "A", "push", goodAuth); !errors.Is(err, errs.ErrBadRequest) {
		t.Fatalf("empty device: %v", err)
	}
	if _, err := s.Register(ctx, "dev1", passType, "A", "", goodAuth); !errors.Is(err, errs.ErrBadRequest) {
		t.Fatalf("empty push token: %v", err)
	}
}

func TestRegister_StorageErrorPropagates(t *testing.T) {
	t.Parallel()
	s, regs, n := newRegFixture(mkPass(1, "A", baseTime))
	boom := errors.New("insert failed")
	regs.err = boom

	if _, err := s.Register(context.Background(), "dev1", passType, "A", "push", goodAuth); !errors.Is(err, boom) {
		t.Fatalf("want storage error, got %v", err)
	}
	if len(n.events) != 0 {
		t.Fatalf("no event on failed write")
	}
}

func TestUnregister_IdempotentDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, regs, n := newRegFixture(mkPass(1, "A", baseTime))

	if err := s.Unregister(ctx, "dev1", passType, "A", goodAuth); err != nil {
		t.Fatalf("unregister without registration: %v", err)
	}
	if len(n.events) != 1 || n.events[0].Kind != model.EventUnregistered || n.events[0].PushToken != "" {
		t.Fatalf("unexpected events: %+v", n.events)
	}

	if _, err := s.Register(ctx, "dev1", passType, "A", "push", goodAuth); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Unregister(ctx, "dev1", passType, "A", goodAuth); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if regs.count() != 0 {
		t.Fatalf("row not deleted")
	}
	last := n.events[len(n.events)-1]
	if last.Kind != model.EventUnregistered || last.PushToken != "push" || last.DeviceID != "dev1" {
		t.Fatalf("unexpected last event: %+v", last)
	}
}

func TestUnregister_AuthFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, n := newRegFixture(mkPass(1, "A", baseTime))

	errWrong := s.Unregister(ctx, "dev1", passType, "A", "")
	errMissing := s.Unregister(ctx, "dev1", passType, "missing", goodAuth)
	if !errors.Is(errWrong, errs.ErrUnauthorized) || !errors.Is(errMissing, errs.ErrUnauthorized) {
		t.Fatalf("wrong=%v missing=%v", errWrong, errMissing)
	}
	if len(n.events) != 0 {
		t.Fatalf("no event on rejected unregister")
	}
}
