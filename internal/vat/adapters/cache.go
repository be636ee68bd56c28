package adapters

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"vatgate/internal/vat"
)

// Cached decorates another adapter with a Redis result cache. Only
// successful Validate results are cached; errors and status checks always
// go through. The decorator is opt-in: the default wiring never uses it.
type Cached struct {
	inner  Adapter
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCached wraps inner with a TTL-bounded Redis cache.
func NewCached(inner Adapter, client redis.UniversalClient, ttl time.Duration) *Cached {
	return &Cached{inner: inner, client: client, ttl: ttl}
}

func (c *Cached) ID() string { return c.inner.ID() }

func (c *Cached) Capabilities() CapabilitySet { return c.inner.Capabilities() }

func (c *Cached) SupportsCountry(code string) bool { return c.inner.SupportsCountry(code) }

func (c *Cached) ValidateFormat(id vat.ID) error { return c.inner.ValidateFormat(id) }

func (c *Cached) CheckStatus(ctx context.Context) (*vat.Status, error) {
	return c.inner.CheckStatus(ctx)
}

// Validate serves from cache when possible. Trader-matching requests bypass
// the cache entirely: match outcomes depend on the submitted trader fields,
// not just the identifier.
func (c *Cached) Validate(ctx context.Context, id vat.ID, opts Options) (*vat.ValidationResult, error) {
	if hasTraderFields(opts) {
		return c.inner.Validate(ctx, id, opts)
	}

	key := c.key(id, opts.TestMode)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached vat.ValidationResult
		if json.Unmarshal(raw, &cached) == nil {
			return cached.WithDetail("cache_hit", true), nil
		}
	}

	res, err := c.inner.Validate(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(res); err == nil {
		// Best effort: a cache write failure never fails the validation.
		c.client.Set(ctx, key, raw, c.ttl)
	}
	return res, nil
}

func (c *Cached) key(id vat.ID, testMode bool) string {
	k := "vatgate:validate:" + c.inner.ID() + ":" + id.CountryCode + ":" + id.Number
	if testMode {
		k += ":test"
	}
	return k
}

func hasTraderFields(opts Options) bool {
	return opts.TraderName != "" || opts.TraderStreet != "" || opts.TraderPostalCode != "" ||
		opts.TraderCity != "" || opts.TraderCompanyType != ""
}
