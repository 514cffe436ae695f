package service

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
	"github.com/and161185/passkit-server/internal/repository"
)

type fakePassRepo struct {
	mu     sync.Mutex
	passes map[string]*model.Pass
	err    error
	calls  int
}

var _ repository.PassRepository = (*fakePassRepo)(nil)

func newFakePassRepo(ps ...*model.Pass) *fakePassRepo {
	f := &fakePassRepo{passes: map[string]*model.Pass{}}
	for _, p := range ps {
		f.passes[p.PassTypeID+"/"+p.SerialNumber] = p
	}
	return f
}

func (f *fakePassRepo) FindPass(_ context.Context, passTypeID, serial string) (*model.Pass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.passes[passTypeID+"/"+serial]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// fakeRegRepo mimics the unique (device, pass) constraint of the real table.
type fakeRegRepo struct {
	mu     sync.Mutex
	rows   []model.Registration
	passes *fakePassRepo
	err    error
}

var _ repository.RegistrationRepository = (*fakeRegRepo)(nil)

func (f *fakeRegRepo) CreateIfAbsent(_ context.Context, reg *model.Registration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.rows {
		if r.DeviceID == reg.DeviceID && r.PassID == reg.PassID {
			return false, nil
		}
	}
	f.rows = append(f.rows, *reg)
	return true, nil
}

func (f *fakeRegRepo) Delete(_ context.Context, deviceID string, passID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var (
		kept []model.Registration
		toks []string
	)
	for _, r := range f.rows {
		if r.DeviceID == deviceID && r.PassID == passID {
			toks = append(toks, r.PushToken)
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return toks, nil
}

func (f *fakeRegRepo) PassesForDevice(_ context.Context, deviceID, passTypeID string) ([]model.PassStamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.PassStamp
	for _, r := range f.rows {
		if r.DeviceID != deviceID {
			continue
		}
		for _, p := range f.passes.passes {
			if p.ID == r.PassID && p.PassTypeID == passTypeID {
				out = append(out, model.PassStamp{SerialNumber: p.SerialNumber, UpdatedAt: p.UpdatedAt})
			}
		}
	}
	return out, nil
}

func (f *fakeRegRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type recNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (n *recNotifier) Notify(_ context.Context, ev model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type fakeLogRepo struct {
	saved []model.LogEntry
	err   error
}

var _ repository.LogRepository = (*fakeLogRepo)(nil)

func (f *fakeLogRepo) SaveLogs(_ context.Context, entries []model.LogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, entries...)
	return nil
}

func (f *fakeLogRepo) RecentLogs(_ context.Context, limit int) ([]model.LogEntry, error) {
	if limit > len(f.saved) {
		limit = len(f.saved)
	}
	return append([]model.LogEntry(nil), f.saved[len(f.saved)-limit:]...), nil
}

type fakeLimiter struct {
	allow bool
	err   error
	seen  [][]byte
}

func (f *fakeLimiter) Allow(_ context.Context, h []byte) (bool, time.Duration, error) {
	f.seen = append(f.seen, h)
	if f.allow {
		return true, 0, f.err
	}
	return false, time.Second, f.err
}

const (
	passType = "pass.com.example.ticket"
	token    = "s3cr3t"
	goodAuth = "ApplePass " + token
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func mkPass(id int64, serial string, updated time.Time) *model.Pass {
	return &model.Pass{
		ID:                  id,
		PassTypeID:          passType,
		SerialNumber:        serial,
		AuthenticationToken: token,
		Data:                []byte("pkpass-" + serial),
		UpdatedAt:           updated,
	}
}
