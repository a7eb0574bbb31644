// Package catbox provides a byte-bounded, time-expiring key/value store as a
// set of interchangeable connections: an in-process LRU (Memory), an external
// store (Redis), and a chaining combinator (Tiered).
package catbox

import (
	"context"
	"errors"
	"strings"
	"time"
)

// keySeparator joins a segment and an id into one storage token. Neither
// field may contain it, so distinct keys map to distinct tokens.
const keySeparator = "\x00"

// MaxTTL is the largest time-to-live Set accepts: 2^31-1 milliseconds, the
// widest delay a millisecond timer can represent.
const MaxTTL = time.Duration(1<<31-1) * time.Millisecond

// DefaultMaxBytes is the Memory connection's payload budget when none is
// configured.
const DefaultMaxBytes int64 = 100 * 1024 * 1024

var (
	// ErrNotStarted is returned by data operations on a connection that has
	// not been started, or has been stopped.
	ErrNotStarted = errors.New("catbox: connection is not started")

	// ErrInvalidTTL is returned by Set when the ttl is negative or exceeds
	// MaxTTL. No mutation happens in that case.
	ErrInvalidTTL = errors.New("catbox: ttl must be between 0 and MaxTTL")
)

// SerializationError reports a value that could not be encoded at Set time.
// Nothing is stored when it is returned.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "catbox: cannot serialize value: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }

// CorruptionError reports a stored payload that could not be decoded at Get
// time. The entry is left in place; removal stays with the expiration and
// eviction paths.
type CorruptionError struct {
	Err error
}

func (e *CorruptionError) Error() string {
	return "catbox: corrupted payload: " + e.Err.Error()
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Key identifies a cached value: a caller-defined segment namespace plus an
// id within it.
type Key struct {
	Segment string
	ID      string
}

func (k Key) validate() error {
	if err := validateSegmentName(k.Segment); err != nil {
		return err
	}
	if strings.Contains(k.ID, keySeparator) {
		return errors.New("catbox: id contains a reserved character")
	}
	return nil
}

// token is the single lookup string for the key.
func (k Key) token() string {
	return k.Segment + keySeparator + k.ID
}

// Cached is the result of a successful Get: the reconstructed value plus the
// insertion time and ttl it was stored with.
type Cached struct {
	Item   any
	Stored time.Time
	TTL    time.Duration
}

// Connection is the storage contract consumed by the caching layer above.
// Memory, Redis and Tiered implement it.
type Connection interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsReady() bool
	ValidateSegmentName(name string) error
	Get(ctx context.Context, key Key) (*Cached, error)
	Set(ctx context.Context, key Key, value any, ttl time.Duration) error
	Drop(ctx context.Context, key Key) error
}

func validateSegmentName(name string) error {
	if name == "" {
		return errors.New("catbox: empty segment name")
	}
	if strings.Contains(name, keySeparator) {
		return errors.New("catbox: segment name contains a reserved character")
	}
	return nil
}

func validTTL(ttl time.Duration) bool {
	return ttl >= 0 && ttl <= MaxTTL
}
