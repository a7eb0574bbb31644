package catbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisOptions configures a Redis connection.
type RedisOptions struct {
	// RedisOptions configures the underlying client. Required.
	RedisOptions *redis.Options
	// KeyPrefix namespaces this cache's keys on a shared instance.
	KeyPrefix string
	// AllowMixedContent lets []byte values bypass the text encoding.
	AllowMixedContent bool
	// ScanCount is the COUNT hint for segment scans. Defaults to 100.
	ScanCount int64
}

// Redis is the external-store connection. Envelopes are msgpack-encoded on
// the wire and expiry uses the store's native per-key ttl, so there are no
// timers to manage here.
type Redis struct {
	options   *RedisOptions
	codec     codec
	scanCount int64

	mu     sync.Mutex
	client *redis.Client
}

var _ Connection = (*Redis)(nil)

// redisEnvelope is the wire form of a stored record.
type redisEnvelope struct {
	Payload []byte `msgpack:"p"`
	Raw     bool   `msgpack:"r"`
	Stored  int64  `msgpack:"s"` // unix milliseconds
	TTL     int64  `msgpack:"t"` // milliseconds
}

func NewRedis(options *RedisOptions) (*Redis, error) {
	if options == nil || options.RedisOptions == nil {
		return nil, errors.New("catbox: RedisOptions is required")
	}
	scanCount := options.ScanCount
	if scanCount <= 0 {
		scanCount = 100
	}
	return &Redis{
		options:   options,
		codec:     codec{allowMixedContent: options.AllowMixedContent},
		scanCount: scanCount,
	}, nil
}

// Start connects and instruments the client. Starting an already started
// connection is a no-op.
func (r *Redis) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return nil
	}
	client := redis.NewClient(r.options.RedisOptions)
	if err := redisotel.InstrumentTracing(client); err != nil {
		client.Close()
		return err
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		client.Close()
		return err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}
	r.client = client
	return nil
}

func (r *Redis) Stop(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *Redis) IsReady() bool {
	return r.ready() != nil
}

func (r *Redis) ready() *redis.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

func (r *Redis) ValidateSegmentName(name string) error {
	return validateSegmentName(name)
}

func (r *Redis) storageKey(token string) string {
	if r.options.KeyPrefix == "" {
		return token
	}
	return r.options.KeyPrefix + ":" + token
}

func (r *Redis) Get(ctx context.Context, key Key) (*Cached, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	client := r.ready()
	if client == nil {
		return nil, ErrNotStarted
	}
	data, err := client.Get(ctx, r.storageKey(key.token())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env redisEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, &CorruptionError{Err: err}
	}
	item, err := r.codec.decode(env.Payload, env.Raw)
	if err != nil {
		return nil, err
	}
	return &Cached{
		Item:   item,
		Stored: time.UnixMilli(env.Stored),
		TTL:    time.Duration(env.TTL) * time.Millisecond,
	}, nil
}

func (r *Redis) Set(ctx context.Context, key Key, value any, ttl time.Duration) error {
	if err := key.validate(); err != nil {
		return err
	}
	client := r.ready()
	if client == nil {
		return ErrNotStarted
	}
	if !validTTL(ttl) {
		return ErrInvalidTTL
	}
	storageKey := r.storageKey(key.token())
	if ttl == 0 {
		// A zero ttl expires immediately; redis would treat it as "no
		// expiry", so remove any previous entry instead of storing one.
		return client.Del(ctx, storageKey).Err()
	}
	payload, raw, err := r.codec.encode(value)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(&redisEnvelope{
		Payload: payload,
		Raw:     raw,
		Stored:  time.Now().UnixMilli(),
		TTL:     ttl.Milliseconds(),
	})
	if err != nil {
		return &SerializationError{Err: err}
	}
	return client.Set(ctx, storageKey, data, ttl).Err()
}

func (r *Redis) Drop(ctx context.Context, key Key) error {
	if err := key.validate(); err != nil {
		return err
	}
	client := r.ready()
	if client == nil {
		return ErrNotStarted
	}
	return client.Del(ctx, r.storageKey(key.token())).Err()
}

// DropSegment removes every entry in the segment, scanning in batches and
// deleting in chunks.
func (r *Redis) DropSegment(ctx context.Context, segment string) error {
	if err := validateSegmentName(segment); err != nil {
		return err
	}
	client := r.ready()
	if client == nil {
		return ErrNotStarted
	}

	pattern := r.storageKey(segment+keySeparator) + "*"
	var cursor uint64
	var keys []string
	for {
		var batch []string
		var err error
		batch, cursor, err = client.Scan(ctx, cursor, pattern, r.scanCount).Result()
		if err != nil {
			return err
		}
		keys = append(keys, batch...)
		if cursor == 0 {
			break
		}
	}

	var errs []error
	for i := 0; i < len(keys); i += 1000 {
		end := i + 1000
		if end > len(keys) {
			end = len(keys)
		}
		if err := client.Del(ctx, keys[i:end]...).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
