package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/coinpulse/internal/cache"
)

func TestOfDeterministic(t *testing.T) {
	text := "Bitcoin rallied past a new high on Tuesday."
	if Of(text) != Of(text) {
		t.Fatalf("Of not deterministic")
	}
	if got := len(Of(text)); got != 32 {
		t.Fatalf("fingerprint length = %d, want 32", got)
	}
	if Of("a") == Of("b") {
		t.Fatalf("different texts share a fingerprint")
	}
}

func TestOfUsesOnlyPrefix(t *testing.T) {
	head := strings.Repeat("x", PrefixRunes)
	if Of(head+" tail one") != Of(head+" completely different tail") {
		t.Fatalf("text after the first %d characters must not change the fingerprint", PrefixRunes)
	}

	changed := "y" + head[1:]
	if Of(head) == Of(changed) {
		t.Fatalf("change inside the prefix must change the fingerprint")
	}
}

func TestOfCountsCharactersNotBytes(t *testing.T) {
	head := strings.Repeat("ü", PrefixRunes) // 2 bytes each
	if Of(head+"A") != Of(head+"B") {
		t.Fatalf("prefix must be measured in characters")
	}
	if Of(head[:len(head)-2]+"A") == Of(head[:len(head)-2]+"B") {
		t.Fatalf("last character of the prefix must count")
	}
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newMemoryCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.New(cache.WithClock(clock.Now))
	return NewCache(store), clock
}

func TestMarkSeenThenNotUnique(t *testing.T) {
	c, _ := newMemoryCache(t)
	ctx := context.Background()
	fp := Of("some article text")

	unique, err := c.IsUnique(ctx, fp)
	if err != nil || !unique {
		t.Fatalf("IsUnique before mark = %v, %v; want true, nil", unique, err)
	}

	if err := c.MarkSeen(ctx, fp); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := c.MarkSeen(ctx, fp); err != nil {
		t.Fatalf("second MarkSeen: %v", err)
	}

	unique, err = c.IsUnique(ctx, fp)
	if err != nil || unique {
		t.Fatalf("IsUnique after mark = %v, %v; want false, nil", unique, err)
	}
}

func TestRecordExpiresAfterTTL(t *testing.T) {
	c, clock := newMemoryCache(t)
	ctx := context.Background()
	fp := Of("expiring article")

	if c.TTL() != 604800*time.Second {
		t.Fatalf("default TTL = %v, want 604800s", c.TTL())
	}
	if err := c.MarkSeen(ctx, fp); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	clock.now = clock.now.Add(c.TTL() - time.Second)
	if unique, _ := c.IsUnique(ctx, fp); unique {
		t.Fatalf("record gone before TTL elapsed")
	}

	clock.now = clock.now.Add(time.Second)
	if unique, _ := c.IsUnique(ctx, fp); !unique {
		t.Fatalf("record still live after TTL elapsed")
	}
}

func TestKeyPrefix(t *testing.T) {
	store := cache.New()
	c := NewCache(store, WithKeyPrefix("seen:"), WithTTL(time.Hour))
	fp := Of("prefixed")

	if err := c.MarkSeen(context.Background(), fp); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if _, ok := store.Get("seen:" + fp.String()); !ok {
		t.Fatalf("expected key with prefix in store")
	}
}

type brokenStore struct{ err error }

func (b brokenStore) Exists(context.Context, string) (bool, error) { return false, b.err }
func (b brokenStore) SetEX(context.Context, string, time.Duration) error { return b.err }
func (b brokenStore) Ping(context.Context) error { return b.err }

func TestStoreFailureIsFailClosed(t *testing.T) {
	c := NewCache(brokenStore{err: errors.New("connection refused")})
	ctx := context.Background()
	fp := Of("anything")

	unique, err := c.IsUnique(ctx, fp)
	if unique {
		t.Fatalf("IsUnique must report false when the store is down")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("IsUnique err = %v, want ErrStoreUnavailable", err)
	}
	if err := c.MarkSeen(ctx, fp); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("MarkSeen err = %v, want ErrStoreUnavailable", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Ping err = %v, want ErrStoreUnavailable", err)
	}
}

func TestZeroFingerprintRejected(t *testing.T) {
	c, _ := newMemoryCache(t)
	if _, err := c.IsUnique(context.Background(), ""); !errors.Is(err, ErrZeroFingerprint) {
		t.Fatalf("IsUnique(\"\") err = %v", err)
	}
	if err := c.MarkSeen(context.Background(), ""); !errors.Is(err, ErrZeroFingerprint) {
		t.Fatalf("MarkSeen(\"\") err = %v", err)
	}
}
