// Package dedup decides whether article content has already been published.
//
// Identity is a digest of the article's opening text (see Of). Published
// fingerprints live in an external Store with a retention TTL; absence of a record
// is the only signal that content is new.
//
// When the store cannot be reached IsUnique fails closed: it reports the content as
// not unique together with an error wrapping ErrStoreUnavailable, so a flapping
// store never floods the channel with repeats.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTTL     = 7 * 24 * time.Hour
	DefaultTimeout = 5 * time.Second
)

var (
	ErrStoreUnavailable = errors.New("dedup store unavailable")
	ErrZeroFingerprint  = errors.New("zero fingerprint")
)

// Store is the key/expiry backend. Every call must be atomic per key.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	SetEX(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
}

type Cache struct {
	store   Store
	ttl     time.Duration
	prefix  string
	timeout time.Duration
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces keys in a shared store.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewCache(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) key(fp Fingerprint) string {
	return c.prefix + string(fp)
}

// IsUnique reports whether no live record exists for fp.
func (c *Cache) IsUnique(ctx context.Context, fp Fingerprint) (bool, error) {
	if fp.IsZero() {
		return false, ErrZeroFingerprint
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	exists, err := c.store.Exists(ctx, c.key(fp))
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrStoreUnavailable, fp, err)
	}
	return !exists, nil
}

// MarkSeen records fp as published for the cache TTL. Marking again resets the expiry.
func (c *Cache) MarkSeen(ctx context.Context, fp Fingerprint) error {
	if fp.IsZero() {
		return ErrZeroFingerprint
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.SetEX(ctx, c.key(fp), c.ttl); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStoreUnavailable, fp, err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
