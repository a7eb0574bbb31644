package catbox

import "time"

// Envelope is the stored record: the encoded payload plus the metadata and
// expiration timer that travel with it through the bounded store.
type Envelope struct {
	payload []byte
	raw     bool
	stored  time.Time
	ttl     time.Duration
	timer   *time.Timer
}

// Weigher reports an envelope's weight against the byte budget.
type Weigher func(e *Envelope) int64

// defaultWeigher counts payload bytes only; metadata never weighs in.
func defaultWeigher(e *Envelope) int64 {
	return int64(len(e.payload))
}

// Size is the payload length in bytes.
func (e *Envelope) Size() int { return len(e.payload) }

// Stored is the insertion time.
func (e *Envelope) Stored() time.Time { return e.stored }

// TTL is the time-to-live the envelope was stored with.
func (e *Envelope) TTL() time.Duration { return e.ttl }

func (e *Envelope) expired(now time.Time) bool {
	return !now.Before(e.stored.Add(e.ttl))
}

// cancelTimer disarms the expiration timer if one is armed. Calling it on an
// envelope whose timer already fired is harmless; the fire handler re-checks
// envelope identity before acting.
func (e *Envelope) cancelTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func buildEnvelope(value any, c codec) (*Envelope, error) {
	payload, raw, err := c.encode(value)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		payload: payload,
		raw:     raw,
		stored:  time.Now(),
	}, nil
}
