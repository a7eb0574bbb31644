package catbox

import "encoding/json"

// codec converts values to and from stored payloads. The default mode keeps
// everything as JSON text. With mixed content enabled, []byte values skip
// encoding and are copied instead, so the cache never aliases a caller-owned
// buffer in either direction.
type codec struct {
	allowMixedContent bool
}

func (c codec) encode(value any) (payload []byte, raw bool, err error) {
	if c.allowMixedContent {
		if b, ok := value.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			return cp, true, nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false, &SerializationError{Err: err}
	}
	return data, false, nil
}

func (c codec) decode(payload []byte, raw bool) (any, error) {
	if raw {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return cp, nil
	}
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, &CorruptionError{Err: err}
	}
	return value, nil
}
