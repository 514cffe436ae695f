// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Pass is a versioned wallet document identified by (PassTypeID, SerialNumber).
type Pass struct {
	ID                  int64
	PassTypeID          string
	SerialNumber        string
	AuthenticationToken string    // per-pass secret presented as "ApplePass <token>"
	Data                []byte    // pre-rendered .pkpass bytes, may be empty when a renderer override is used
	UpdatedAt           time.Time // monotonic per pass; the only change signal
}

// PassStamp is the minimal projection used by the incremental update query.
type PassStamp struct {
	SerialNumber string
	UpdatedAt    time.Time
}

// Registration links a device to a pass for push notifications.
type Registration struct {
	ID        uuid.UUID
	DeviceID  string // deviceLibraryIdentifier
	PushToken string
	PassID    int64 // FK -> passes.id
	CreatedAt time.Time
}

// LogEntry is a single diagnostic line submitted by a device.
type LogEntry struct {
	ID        uuid.UUID
	Message   string
	CreatedAt time.Time
}

// EventKind distinguishes registration lifecycle events.
type EventKind int

const (
	// EventRegistered is raised after a new registration row is stored.
	EventRegistered EventKind = iota + 1
	// EventUnregistered is raised after registrations for a device were removed.
	EventUnregistered
)

func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "registered"
	case EventUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Event reports a registration change to the push transport.
type Event struct {
	Kind      EventKind
	Pass      Pass
	DeviceID  string
	PushToken string // empty when an unregister removed no rows
}
