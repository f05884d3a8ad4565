package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLocalAcquire(t *testing.T) {
	reg := NewLocal()

	release, err := reg.Acquire(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := reg.Acquire(context.Background(), "req-1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if _, err := reg.Acquire(context.Background(), "req-2"); err != nil {
		t.Fatalf("other ids must not be blocked: %v", err)
	}

	release()
	release()
	if reg.Len() != 1 {
		t.Fatalf("expected one held id, got %d", reg.Len())
	}
	if _, err := reg.Acquire(context.Background(), "req-1"); err != nil {
		t.Fatalf("released id must be free again: %v", err)
	}
}

func TestLocalAcquireRejectsBadInput(t *testing.T) {
	reg := NewLocal()
	if _, err := reg.Acquire(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := reg.Acquire(ctx, "req"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestLocalSingleWinner(t *testing.T) {
	reg := NewLocal()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Acquire(context.Background(), "same"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

type fakeLockStore struct {
	mu      sync.Mutex
	keys    map[string]string
	ttls    map[string]time.Duration
	setErr  error
	delErr  error
	ctxErrs []error
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{keys: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeLockStore) SetNX(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = token
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeLockStore) CompareAndDelete(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.delErr != nil {
		return f.delErr
	}
	if f.keys[key] == token {
		delete(f.keys, key)
	}
	return nil
}

func TestRedisAcquire(t *testing.T) {
	store := newFakeLockStore()
	reg := newRedis(store, RedisConfig{TTL: time.Minute}, nil)

	release, err := reg.Acquire(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if store.ttls[defaultPrefix+"req-1"] != time.Minute {
		t.Fatalf("expected ttl to be applied, got %v", store.ttls)
	}
	if _, err := reg.Acquire(context.Background(), "req-1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	release()
	if _, ok := store.keys[defaultPrefix+"req-1"]; ok {
		t.Fatal("release must delete the key")
	}
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	store := newFakeLockStore()
	reg := newRedis(store, RedisConfig{}, nil)

	release, err := reg.Acquire(context.Background(), "req-1")
	if err != nil {
		t.Fatal(err)
	}
	// The entry expired and another process took it over.
	store.keys[defaultPrefix+"req-1"] = "someone-else"

	release()
	if store.keys[defaultPrefix+"req-1"] != "someone-else" {
		t.Fatal("release must not delete an entry held by another token")
	}
}

func TestRedisReleaseAfterCancel(t *testing.T) {
	store := newFakeLockStore()
	reg := newRedis(store, RedisConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	release, err := reg.Acquire(ctx, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	release()

	if len(store.ctxErrs) != 1 || store.ctxErrs[0] != nil {
		t.Fatal("release must run with a live context after cancellation")
	}
	if _, ok := store.keys[defaultPrefix+"req-1"]; ok {
		t.Fatal("entry must be released after cancellation")
	}
}

func TestRedisErrors(t *testing.T) {
	store := newFakeLockStore()
	store.setErr = errors.New("connection refused")
	reg := newRedis(store, RedisConfig{}, nil)

	if _, err := reg.Acquire(context.Background(), "req-1"); err == nil || errors.Is(err, ErrInFlight) {
		t.Fatalf("expected store error, got %v", err)
	}

	core, logs := observer.New(zap.WarnLevel)
	store = newFakeLockStore()
	store.delErr = errors.New("connection refused")
	reg = newRedis(store, RedisConfig{}, zap.New(core))

	release, err := reg.Acquire(context.Background(), "req-2")
	if err != nil {
		t.Fatal(err)
	}
	release()
	if logs.FilterMessage("failed to release in-flight entry").Len() != 1 {
		t.Fatal("expected release failure to be logged")
	}
}
