package catbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// MemoryOptions configures a Memory connection.
//
// MaxBytes: resident payload budget, defaults to DefaultMaxBytes.
// AllowMixedContent: lets []byte values bypass the text encoding.
// Weigher: per-envelope weight override, defaults to payload length.
//
// There is deliberately no ttl option here; the ttl belongs to each Set call.
type MemoryOptions struct {
	MaxBytes          int64
	AllowMixedContent bool
	Weigher           Weigher
}

// Memory is the in-process connection: a byte-bounded LRU where every
// resident envelope carries its own expiration timer. All operations and
// timer fires serialize on one mutex, so a fire and an in-flight operation
// on the same key can never race.
type Memory struct {
	maxBytes int64
	weigher  Weigher
	codec    codec

	mu    sync.Mutex
	store *lruStore
}

var _ Connection = (*Memory)(nil)

func NewMemory(options *MemoryOptions) (*Memory, error) {
	if options == nil {
		options = &MemoryOptions{}
	}
	if options.MaxBytes < 0 {
		return nil, errors.New("catbox: MaxBytes must not be negative")
	}
	maxBytes := options.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	weigher := options.Weigher
	if weigher == nil {
		weigher = defaultWeigher
	}
	return &Memory{
		maxBytes: maxBytes,
		weigher:  weigher,
		codec:    codec{allowMixedContent: options.AllowMixedContent},
	}, nil
}

// Start allocates the bounded store. Starting an already started connection
// is a no-op that preserves existing entries.
func (m *Memory) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		m.store = newLRUStore(m.maxBytes, m.weigher, m.retire)
	}
	return nil
}

// Stop cancels every outstanding expiration timer, clears the store and
// releases it. Data operations fail with ErrNotStarted until the next Start.
// Stopping an already stopped connection is a no-op.
func (m *Memory) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		m.store.purge()
		m.store = nil
	}
	return nil
}

func (m *Memory) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store != nil
}

func (m *Memory) ValidateSegmentName(name string) error {
	return validateSegmentName(name)
}

// retire is the single removal hook: every path an envelope leaves the store
// by (drop, replacement, capacity eviction, purge, timer fire) runs through
// it, so no path can leak an armed timer.
func (m *Memory) retire(_ string, e *Envelope) {
	e.cancelTimer()
}

// Get returns the cached value under key, or nil with no error on a miss.
// An envelope past its expiration instant is a miss even if its timer has
// not fired yet; removal stays with the timer.
func (m *Memory) Get(_ context.Context, key Key) (*Cached, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil, ErrNotStarted
	}
	e, ok := m.store.get(key.token())
	if !ok {
		return nil, nil
	}
	if e.expired(time.Now()) {
		return nil, nil
	}
	item, err := m.codec.decode(e.payload, e.raw)
	if err != nil {
		return nil, err
	}
	return &Cached{Item: item, Stored: e.stored, TTL: e.ttl}, nil
}

// Set stores value under key for ttl. Replacing an existing key cancels the
// old envelope's timer before the new one is armed, so a stale timer can
// never remove the replacement. Inserting may evict least-recently-used
// entries to stay within the byte budget.
func (m *Memory) Set(_ context.Context, key Key, value any, ttl time.Duration) error {
	if err := key.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNotStarted
	}
	if !validTTL(ttl) {
		return ErrInvalidTTL
	}
	e, err := buildEnvelope(value, m.codec)
	if err != nil {
		return err
	}
	token := key.token()
	m.store.delete(token)
	e.ttl = ttl
	e.timer = time.AfterFunc(ttl, func() { m.expire(token, e) })
	m.store.set(token, e)
	return nil
}

// Drop removes the entry under key, cancelling its timer. Dropping an absent
// key is a successful no-op.
func (m *Memory) Drop(_ context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNotStarted
	}
	m.store.delete(key.token())
	return nil
}

// DropSegment removes every entry in the segment.
func (m *Memory) DropSegment(_ context.Context, segment string) error {
	if err := validateSegmentName(segment); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return ErrNotStarted
	}
	prefix := segment + keySeparator
	for _, token := range m.store.tokens() {
		if strings.HasPrefix(token, prefix) {
			m.store.delete(token)
		}
	}
	return nil
}

// expire is the timer fire path. It re-checks that the envelope under the
// token is the one the timer was armed for; a fire that lost the race with
// drop, replacement, eviction or stop is a no-op.
func (m *Memory) expire(token string, e *Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return
	}
	if cur, ok := m.store.peek(token); !ok || cur != e {
		return
	}
	m.store.delete(token)
}
