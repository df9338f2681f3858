package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/deusflow/coinpulse/internal/dedup"
	"github.com/deusflow/coinpulse/internal/logger"
)

func TestRedisStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	c := dedup.NewCache(store)
	fp := dedup.Of("Ether gas fees dropped to a yearly low.")

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if unique, err := c.IsUnique(ctx, fp); err != nil || !unique {
		t.Fatalf("IsUnique before mark = %v, %v", unique, err)
	}
	if err := c.MarkSeen(ctx, fp); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if got := mr.TTL(fp.String()); got != 604800*time.Second {
		t.Fatalf("redis TTL = %v, want 604800s", got)
	}
	if v, _ := mr.Get(fp.String()); v != "1" {
		t.Fatalf("stored value = %q, want %q", v, "1")
	}
	if unique, _ := c.IsUnique(ctx, fp); unique {
		t.Fatalf("IsUnique after mark = true")
	}

	mr.FastForward(604800 * time.Second)
	if unique, err := c.IsUnique(ctx, fp); err != nil || !unique {
		t.Fatalf("IsUnique after TTL = %v, %v; want true, nil", unique, err)
	}
}

func TestRedisStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	defer store.Close()
	mr.Close()

	c := dedup.NewCache(store, dedup.WithTimeout(time.Second))
	unique, err := c.IsUnique(context.Background(), dedup.Of("x"))
	if unique || !errors.Is(err, dedup.ErrStoreUnavailable) {
		t.Fatalf("IsUnique with store down = %v, %v", unique, err)
	}
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	if _, err := NewRedisStore(RedisOptions{}); err == nil {
		t.Fatalf("expected error without address")
	}
	if _, err := NewRedisStore(RedisOptions{URL: "::not a url"}); err == nil {
		t.Fatalf("expected error for bad url")
	}
	s, err := NewRedisStore(RedisOptions{URL: "rediss://:secret@cache.example.com:6380/0", InsecureTLS: true})
	if err != nil {
		t.Fatalf("NewRedisStore(url): %v", err)
	}
	opts := s.client.Options()
	if opts.TLSConfig == nil || !opts.TLSConfig.InsecureSkipVerify {
		t.Fatalf("rediss url should enable TLS with insecure verify")
	}
	_ = s.Close()
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewPostgresStoreFromDB(db, logger.Discard())
	store.now = func() time.Time { return now }
	return store, mock, now
}

func TestPostgresStoreExists(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM seen_fingerprints")).
		WithArgs("abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.Exists(context.Background(), "abc")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreSetEXUpsertsAndPrunesOnce(t *testing.T) {
	store, mock, now := newMockStore(t)
	ttl := 7 * 24 * time.Hour

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seen_fingerprints")).
		WithArgs("abc", now, now.Add(ttl)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM seen_fingerprints")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seen_fingerprints")).
		WithArgs("abc", now, now.Add(ttl)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := store.SetEX(ctx, "abc", ttl); err != nil {
		t.Fatalf("SetEX: %v", err)
	}
	// second mark within the prune interval must not prune again
	if err := store.SetEX(ctx, "abc", ttl); err != nil {
		t.Fatalf("second SetEX: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreQueryError(t *testing.T) {
	store, mock, _ := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("conn reset"))

	if _, err := store.Exists(context.Background(), "abc"); err == nil {
		t.Fatalf("expected error")
	}
}
