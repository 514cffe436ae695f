// Package limiter throttles unauthenticated submissions per client.
package limiter

import (
	"context"
	"net"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Limiter decides whether a client may submit another request.
type Limiter interface {
	// Allow records a hit for clientHash and reports whether it is within budget,
	// with the time left until the budget resets when it is not.
	Allow(ctx context.Context, clientHash []byte) (bool, time.Duration, error)
}

// HashClient returns a salted hash of the remote host so raw addresses are never stored.
// The port is dropped; all connections from one host share a budget.
func HashClient(salt []byte, remote string) []byte {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	buf := make([]byte, 0, len(salt)+len(host))
	buf = append(buf, salt...)
	buf = append(buf, host...)
	sum := blake2b.Sum256(buf)
	return sum[:]
}
