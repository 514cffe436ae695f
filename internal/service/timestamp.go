package service

import (
	"fmt"
	"time"

	"github.com/and161185/passkit-server/internal/errs"
)

// TimestampLayout is the wire format of passesUpdatedSince and lastUpdated.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in UTC at second resolution.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a wire timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", errs.ErrBadRequest, s)
	}
	return t, nil
}

// seconds drops sub-second precision; all change comparisons happen at this resolution.
func seconds(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }
