package catbox

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// lruStore bounds resident envelopes by total payload weight instead of
// entry count: the recency bookkeeping comes from golang-lru, the byte
// accounting lives here, and oldest entries are shed until the weight fits.
// Every removal, whichever path triggered it, reports through onEvict.
type lruStore struct {
	lru      *simplelru.LRU[string, *Envelope]
	maxBytes int64
	bytes    int64
	weigher  Weigher
	onEvict  func(token string, e *Envelope)
}

func newLRUStore(maxBytes int64, weigher Weigher, onEvict func(string, *Envelope)) *lruStore {
	s := &lruStore{
		maxBytes: maxBytes,
		weigher:  weigher,
		onEvict:  onEvict,
	}
	// The count limit is effectively unlimited; only weight evicts.
	s.lru, _ = simplelru.NewLRU[string, *Envelope](int(^uint(0)>>1), s.evicted)
	return s
}

func (s *lruStore) evicted(token string, e *Envelope) {
	s.bytes -= s.weigher(e)
	if s.onEvict != nil {
		s.onEvict(token, e)
	}
}

// set inserts the envelope as most recently used and evicts from the cold
// end until the resident weight is within budget. The token must not be
// present; replacement is delete-then-set so the old envelope retires
// through the eviction callback.
func (s *lruStore) set(token string, e *Envelope) {
	s.bytes += s.weigher(e)
	s.lru.Add(token, e)
	for s.bytes > s.maxBytes && s.lru.Len() > 0 {
		s.lru.RemoveOldest()
	}
}

// get looks the token up and marks it recently used.
func (s *lruStore) get(token string) (*Envelope, bool) {
	return s.lru.Get(token)
}

// peek looks the token up without disturbing recency.
func (s *lruStore) peek(token string) (*Envelope, bool) {
	return s.lru.Peek(token)
}

func (s *lruStore) delete(token string) bool {
	return s.lru.Remove(token)
}

func (s *lruStore) tokens() []string {
	return s.lru.Keys()
}

// purge drops every entry, retiring each through the eviction callback.
func (s *lruStore) purge() {
	s.lru.Purge()
}

func (s *lruStore) len() int {
	return s.lru.Len()
}

func (s *lruStore) weight() int64 {
	return s.bytes
}
