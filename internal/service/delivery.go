package service

import (
	"context"
	"fmt"
	"time"
)

// Delivery is the result of a conditional fetch. When NotModified is set
// Body is nil.
type Delivery struct {
	NotModified  bool
	Body         []byte
	LastModified time.Time
}

// DeliveryService defines conditional retrieval of the latest pass version.
type DeliveryService interface {
	// FetchCurrent returns the current pass bytes unless the client copy is fresh.
	FetchCurrent(ctx context.Context, passTypeID, serial, authHeader string, ifModifiedSince *time.Time) (Delivery, error)
}

type DeliveryServiceImpl struct {
	passes   *Resolver
	renderer PassRenderer
}

// NewDeliveryService constructs DeliveryService.
func NewDeliveryService(passes *Resolver, renderer PassRenderer) *DeliveryServiceImpl {
	return &DeliveryServiceImpl{passes: passes, renderer: renderer}
}

// FetchCurrent evaluates If-Modified-Since before authentication, so a fresh
// client copy is answered without checking the token or rendering.
func (s *DeliveryServiceImpl) FetchCurrent(
	ctx context.Context, passTypeID, serial, authHeader string, ifModifiedSince *time.Time,
) (Delivery, error) {
	p, err := s.passes.Find(ctx, passTypeID, serial)
	if err != nil {
		return Delivery{}, err
	}
	modified := seconds(p.UpdatedAt)
	if ifModifiedSince != nil && !seconds(*ifModifiedSince).Before(modified) {
		return Delivery{NotModified: true, LastModified: modified}, nil
	}
	if err := Authenticate(authHeader, p); err != nil {
		return Delivery{}, err
	}
	body, err := s.renderer.Render(ctx, p)
	if err != nil {
		return Delivery{}, fmt.Errorf("render: %w", err)
	}
	return Delivery{Body: body, LastModified: modified}, nil
}
