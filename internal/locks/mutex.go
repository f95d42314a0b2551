package locks

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotHeld occurs when releasing a lease whose token no longer matches
	// the stored value, meaning the lease expired and someone else owns the
	// key now.
	ErrNotHeld = errors.New("lock not held by this lease")
)

const (
	// DefaultTTL must stay comfortably above the longest expected tick batch
	// for a one-minute-driven scheduler.
	DefaultTTL = 90 * time.Second
	// DefaultRetries is the number of extra acquisition attempts after the
	// first one fails.
	DefaultRetries = 2
	// DefaultRetryDelay is the fixed pause between acquisition attempts.
	DefaultRetryDelay = 200 * time.Millisecond

	keyPrefix = "lock:"
)

// releaseScript deletes the key only while we still own it, so a holder whose
// lease expired cannot delete a lock that has since been re-acquired.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Store is the minimal key/value surface the mutex needs: atomic
// conditional-set and script execution for conditional-delete.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// Options tunes one acquisition attempt.
type Options struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Retries < 0 {
		o.Retries = DefaultRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// Lease is the opaque credential returned by a successful acquisition. Only
// the holder of the lease can release the underlying key.
type Lease struct {
	key   string
	token string
}

// Key returns the prefixed store key the lease guards.
func (l *Lease) Key() string { return l.key }

// Mutex is a distributed mutual-exclusion primitive over a shared key/value
// store. Contention and store unavailability are expected outcomes signalled
// by a false acquisition result, never by an error: the scheduler's policy is
// "skip this tick", not "run unlocked".
type Mutex struct {
	store Store
}

// New creates a mutex over the given store.
func New(store Store) *Mutex {
	return &Mutex{store: store}
}

// NewWithClient creates a mutex backed by a Redis client.
func NewWithClient(client *redis.Client) *Mutex {
	return New(redisStore{client})
}

// Acquire attempts an atomic set-if-not-exists with expiry using a fresh
// random token. On contention it retries up to opts.Retries more times with a
// fixed delay. Returns the lease and true on success, nil and false when the
// key is held elsewhere or the store is unreachable.
func (m *Mutex) Acquire(ctx context.Context, key string, opts Options) (*Lease, bool) {
	opts = opts.withDefaults()
	lockKey := keyPrefix + key
	token := uuid.New().String()

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(opts.RetryDelay):
			}
		}

		acquired, err := m.store.SetNX(ctx, lockKey, token, opts.TTL)
		if err != nil {
			log.Printf("[LOCK] store error acquiring %s (attempt %d/%d): %v",
				lockKey, attempt+1, opts.Retries+1, err)
			continue
		}
		if acquired {
			return &Lease{key: lockKey, token: token}, true
		}
	}

	return nil, false
}

// Release deletes the key if the lease still owns it. A missing key or a
// token mismatch returns ErrNotHeld; store failures are returned as-is.
func (m *Mutex) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return ErrNotHeld
	}

	result, err := m.store.Eval(ctx, releaseScript, []string{lease.key}, lease.token)
	if err != nil {
		return err
	}

	if deleted, ok := result.(int64); !ok || deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// RunWithLock acquires the key, runs fn under it and always releases
// afterwards. Returns (false, nil) when the lock could not be acquired; fn's
// error is passed through untouched.
func (m *Mutex) RunWithLock(ctx context.Context, key string, opts Options, fn func() error) (bool, error) {
	lease, ok := m.Acquire(ctx, key, opts)
	if !ok {
		return false, nil
	}

	defer func() {
		if err := m.Release(ctx, lease); err != nil && !errors.Is(err, ErrNotHeld) {
			log.Printf("[LOCK] failed to release %s: %v", lease.key, err)
		}
	}()

	return true, fn()
}

// redisStore adapts a go-redis client to the Store interface.
type redisStore struct {
	client *redis.Client
}

func (s redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s redisStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return s.client.Eval(ctx, script, keys, args...).Result()
}
