package valuation

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-wallet-notifier/internal/domain"
)

// SymbolSource is the external symbol-resolution service.
type SymbolSource interface {
	// Symbol returns the human-readable ticker for a mint.
	Symbol(ctx context.Context, mint string) (string, error)
}

// SymbolResolver resolves display tickers with a TTL cache in front of the
// external source and a deterministic fallback when unresolved.
type SymbolResolver struct {
	cache   Cache[string]
	source  SymbolSource
	timeout time.Duration
	logger  *log.Logger
}

// NewSymbolResolver creates a symbol resolver. source may be nil, in which
// case every lookup resolves to the deterministic fallback.
func NewSymbolResolver(cache Cache[string], source SymbolSource, logger *log.Logger) *SymbolResolver {
	if cache == nil {
		cache = NewTTLCache[string](DefaultCacheTTL)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SymbolResolver{
		cache:   cache,
		source:  source,
		timeout: DefaultLookupTimeout,
		logger:  logger,
	}
}

// FallbackSymbol is the deterministic ticker used when resolution fails:
// the first four characters of the mint, upper-cased.
func FallbackSymbol(mint string) string {
	if mint == domain.WrappedSOLMint {
		return "SOL"
	}
	if len(mint) > 4 {
		mint = mint[:4]
	}
	return strings.ToUpper(mint)
}

// Resolve returns the ticker for one mint. Never fails.
func (r *SymbolResolver) Resolve(ctx context.Context, mint string) string {
	if mint == domain.WrappedSOLMint {
		return "SOL"
	}
	if symbol, ok := r.cache.Get(mint); ok {
		return symbol
	}

	if r.source != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		symbol, err := r.source.Symbol(lookupCtx, mint)
		cancel()
		if err == nil && symbol != "" {
			r.cache.Set(mint, symbol)
			return symbol
		}
		if err != nil {
			r.logger.Printf("symbol lookup for %s: %v", mint, err)
		}
	}
	return FallbackSymbol(mint)
}

// ResolveMany resolves a set of mints in parallel, one lookup per distinct
// mint, and returns the full mint-to-ticker map.
func (r *SymbolResolver) ResolveMany(ctx context.Context, mints []string) map[string]string {
	distinct := make(map[string]struct{}, len(mints))
	for _, mint := range mints {
		if mint != "" {
			distinct[mint] = struct{}{}
		}
	}

	var mu sync.Mutex
	result := make(map[string]string, len(distinct))

	g, gctx := errgroup.WithContext(ctx)
	for mint := range distinct {
		g.Go(func() error {
			symbol := r.Resolve(gctx, mint)
			mu.Lock()
			result[mint] = symbol
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // Resolve never returns an error

	return result
}
