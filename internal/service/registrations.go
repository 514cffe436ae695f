package service

import (
	"context"
	"fmt"

	"github.com/and161185/passkit-server/internal/errs"
	"github.com/and161185/passkit-server/internal/model"
	"github.com/and161185/passkit-server/internal/repository"
)

// Notifier receives registration lifecycle events. Implementations must not
// block the caller on push delivery.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event)
}

// RegisterResult tells a fresh registration from an idempotent repeat.
type RegisterResult int

const (
	// Created means a new registration row was stored.
	Created RegisterResult = iota + 1
	// AlreadyRegistered means the device was registered before; nothing changed.
	AlreadyRegistered
)

// RegistrationService defines device registration operations.
type RegistrationService interface {
	// Register subscribes a device to push updates for a pass.
	Register(ctx context.Context, deviceID, passTypeID, serial, pushToken, authHeader string) (RegisterResult, error)
	// Unregister removes the device's subscription to a pass.
	Unregister(ctx context.Context, deviceID, passTypeID, serial, authHeader string) error
}

type RegistrationServiceImpl struct {
	passes   *Resolver
	regs     repository.RegistrationRepository
	notifier Notifier
}

// NewRegistrationService constructs RegistrationService with its collaborators.
func NewRegistrationService(passes *Resolver, regs repository.RegistrationRepository, notifier Notifier) *RegistrationServiceImpl {
	return &RegistrationServiceImpl{passes: passes, regs: regs, notifier: notifier}
}

// Register stores a registration unless one exists. An existing registration
// keeps its original push token.
func (s *RegistrationServiceImpl) Register(
	ctx context.Context, deviceID, passTypeID, serial, pushToken, authHeader string,
) (RegisterResult, error) {
	if deviceID == "" {
		return 0, fmt.Errorf("%w: empty device id", errs.ErrBadRequest)
	}
	p, err := s.passes.Authorize(ctx, passTypeID, serial, authHeader)
	if err != nil {
		return 0, err
	}
	if pushToken == "" {
		return 0, fmt.Errorf("%w: empty push token", errs.ErrBadRequest)
	}

	created, err := s.regs.CreateIfAbsent(ctx, &model.Registration{
		DeviceID:  deviceID,
		PushToken: pushToken,
		PassID:    p.ID,
	})
	if err != nil {
		return 0, err
	}
	if !created {
		return AlreadyRegistered, nil
	}
	s.notifier.Notify(ctx, model.Event{
		Kind:      model.EventRegistered,
		Pass:      *p,
		DeviceID:  deviceID,
		PushToken: pushToken,
	})
	return Created, nil
}

// Unregister deletes every registration of deviceID for the pass. Deleting
// nothing still succeeds and still raises an event.
func (s *RegistrationServiceImpl) Unregister(ctx context.Context, deviceID, passTypeID, serial, authHeader string) error {
	p, err := s.passes.Authorize(ctx, passTypeID, serial, authHeader)
	if err != nil {
		return err
	}
	tokens, err := s.regs.Delete(ctx, deviceID, p.ID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, tok := range tokens {
		s.notifier.Notify(ctx, model.Event{
			Kind:      model.EventUnregistered,
			Pass:      *p,
			DeviceID:  deviceID,
			PushToken: tok,
		})
	}
	return nil
}
