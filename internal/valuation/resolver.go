package valuation

import (
	"context"
	"log"
	"time"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/observability"
	"solana-wallet-notifier/internal/storage"
)

// Default configuration values.
const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultFallbackTTL   = 1 * time.Hour
	DefaultLookupTimeout = 3 * time.Second

	// DefaultNativePriceUSD is the hardcoded last resort for the native
	// asset when every other layer fails.
	DefaultNativePriceUSD = 150.0
)

// Oracle is the external price source.
type Oracle interface {
	// PriceUSD returns the current USD price for a mint.
	PriceUSD(ctx context.Context, mint string) (float64, error)
}

// Resolver resolves USD prices through three layers: process-local TTL
// cache, persisted fallback row, external oracle. Each success writes back
// to the faster layers. Resolution never returns an error.
type Resolver struct {
	cache    Cache[float64]
	fallback storage.PriceStore
	oracle   Oracle

	fallbackTTL time.Duration
	timeout     time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	Cache    Cache[float64]     // defaults to a 5-minute TTLCache
	Fallback storage.PriceStore // persisted last-known prices, may be nil
	Oracle   Oracle             // external price source, may be nil

	FallbackTTL time.Duration // how fresh a persisted row must be, default 1h
	Timeout     time.Duration // per-oracle-call timeout, default 3s
	Logger      *log.Logger
}

// NewResolver creates a price resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		cache:       opts.Cache,
		fallback:    opts.Fallback,
		oracle:      opts.Oracle,
		fallbackTTL: opts.FallbackTTL,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         time.Now,
	}
	if r.cache == nil {
		r.cache = NewTTLCache[float64](DefaultCacheTTL)
	}
	if r.fallbackTTL <= 0 {
		r.fallbackTTL = DefaultFallbackTTL
	}
	if r.timeout <= 0 {
		r.timeout = DefaultLookupTimeout
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// PriceOf returns the best-effort USD price for a mint.
func (r *Resolver) PriceOf(ctx context.Context, mint string) float64 {
	if price, ok := r.cache.Get(mint); ok {
		observability.RecordPriceLookup("cache")
		return price
	}

	// Persisted fallback, if fresh enough.
	var stale *domain.PriceRecord
	if r.fallback != nil {
		rec, err := r.fallback.Get(ctx, mint)
		switch {
		case err == nil && r.now().UnixMilli()-rec.ObservedAt <= r.fallbackTTL.Milliseconds():
			r.cache.Set(mint, rec.PriceUSD)
			observability.RecordPriceLookup("fallback")
			return rec.PriceUSD
		case err == nil:
			stale = rec
		}
	}

	if r.oracle != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		price, err := r.oracle.PriceUSD(lookupCtx, mint)
		observability.ObserveOracleLatency(time.Since(start).Seconds())
		cancel()
		if err == nil && price > 0 {
			observability.RecordPriceLookup("oracle")
			r.cache.Set(mint, price)
			if r.fallback != nil {
				rec := &domain.PriceRecord{Mint: mint, PriceUSD: price, ObservedAt: r.now().UnixMilli()}
				if err := r.fallback.Upsert(ctx, rec); err != nil {
					r.logger.Printf("persist price for %s: %v", mint, err)
				}
			}
			return price
		}
		if err != nil {
			r.logger.Printf("price oracle for %s: %v", mint, err)
		}
	}

	// Oracle unavailable: a stale persisted price beats a made-up one.
	if stale != nil {
		observability.RecordPriceLookup("stale")
		return stale.PriceUSD
	}
	observability.RecordPriceLookup("default")
	if mint == domain.WrappedSOLMint {
		return DefaultNativePriceUSD
	}
	return 0
}

// ValueUSD returns the best-effort USD value of an asset amount.
func (r *Resolver) ValueUSD(ctx context.Context, mint string, amount float64) float64 {
	return r.PriceOf(ctx, mint) * amount
}
