package locks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeStore is an in-process Store with optional artificial latency, used to
// simulate a slow shared backend.
type fakeStore struct {
	mu      sync.Mutex
	values  map[string]string
	latency time.Duration
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (s *fakeStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false, errors.New("store unavailable")
	}
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *fakeStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store unavailable")
	}
	// The only script in use is compare-and-delete.
	key := keys[0]
	token, _ := args[0].(string)
	if s.values[key] == token {
		delete(s.values, key)
		return int64(1), nil
	}
	return int64(0), nil
}

func (s *fakeStore) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *fakeStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func TestAcquireRelease(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	ctx := context.Background()

	lease, ok := m.Acquire(ctx, "session-1", Options{})
	if !ok {
		t.Fatal("expected first acquisition to succeed")
	}

	if _, exists := store.get("lock:session-1"); !exists {
		t.Fatal("expected lock key in store after acquire")
	}

	if err := m.Release(ctx, lease); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, exists := store.get("lock:session-1"); exists {
		t.Fatal("expected lock key gone after release")
	}
}

func TestAcquireContention(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	ctx := context.Background()

	if _, ok := m.Acquire(ctx, "session-1", Options{}); !ok {
		t.Fatal("expected first acquisition to succeed")
	}

	_, ok := m.Acquire(ctx, "session-1", Options{Retries: 1, RetryDelay: time.Millisecond})
	if ok {
		t.Fatal("expected second acquisition to fail while held")
	}
}

func TestAcquireStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	m := New(store)

	_, ok := m.Acquire(context.Background(), "session-1", Options{Retries: 1, RetryDelay: time.Millisecond})
	if ok {
		t.Fatal("expected acquisition to fail when the store is unreachable")
	}
}

// TestSafeRelease verifies a lease whose token no longer matches the stored
// value must not delete the key (the expiry/re-acquisition case).
func TestSafeRelease(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	ctx := context.Background()

	lease, ok := m.Acquire(ctx, "session-1", Options{})
	if !ok {
		t.Fatal("expected acquisition to succeed")
	}

	// Simulate TTL expiry followed by another holder taking the key.
	store.set("lock:session-1", "someone-else")

	err := m.Release(ctx, lease)
	if !errors.Is(err, ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}

	if v, _ := store.get("lock:session-1"); v != "someone-else" {
		t.Fatalf("stale lease deleted another holder's lock, value now %q", v)
	}
}

// TestRunWithLockMutualExclusion races many RunWithLock calls against a slow
// backend and asserts the callback never overlaps with itself.
func TestRunWithLockMutualExclusion(t *testing.T) {
	store := newFakeStore()
	store.latency = 2 * time.Millisecond
	m := New(store)
	ctx := context.Background()

	var inside int32
	var overlaps int32
	var executed int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.RunWithLock(ctx, "session-1", Options{Retries: 0}, func() error {
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				atomic.AddInt32(&executed, 1)
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("RunWithLock returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if overlaps != 0 {
		t.Fatalf("callback executed concurrently %d times", overlaps)
	}
	if executed == 0 {
		t.Fatal("expected at least one callback execution")
	}
}

func TestRunWithLockSkipsWhenHeld(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	ctx := context.Background()

	if _, ok := m.Acquire(ctx, "session-1", Options{}); !ok {
		t.Fatal("expected acquisition to succeed")
	}

	ran, err := m.RunWithLock(ctx, "session-1", Options{Retries: 0}, func() error {
		t.Error("callback must not run while the lock is held elsewhere")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Fatal("expected ran=false while the lock is held")
	}
}

func TestRunWithLockReleasesAfterError(t *testing.T) {
	store := newFakeStore()
	m := New(store)
	ctx := context.Background()

	wantErr := errors.New("stage failed")
	ran, err := m.RunWithLock(ctx, "session-1", Options{}, func() error {
		return wantErr
	})
	if !ran {
		t.Fatal("expected ran=true")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error passed through, got %v", err)
	}

	// Lock must be free again even though the callback failed.
	if _, ok := m.Acquire(ctx, "session-1", Options{Retries: 0}); !ok {
		t.Fatal("expected lock to be released after callback error")
	}
}
