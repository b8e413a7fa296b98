// Package main runs the wallet-activity notification service:
// - Inbound webhook: receives enhanced transaction events for monitored wallets
// - Fan-out: classifies activity and writes per-watcher notifications
// - Push: delivers to registered endpoints and prunes dead ones
// - Resync: rebuilds the reverse indexes from the account registry
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-wallet-notifier/internal/fanout"
	"solana-wallet-notifier/internal/monitor"
	"solana-wallet-notifier/internal/push"
	"solana-wallet-notifier/internal/registry"
	"solana-wallet-notifier/internal/server"
	"solana-wallet-notifier/internal/storage"
	"solana-wallet-notifier/internal/storage/memory"
	"solana-wallet-notifier/internal/storage/migrations"
	pgstore "solana-wallet-notifier/internal/storage/postgres"
	"solana-wallet-notifier/internal/valuation"
)

// allStores holds all storage implementations.
type allStores struct {
	watcherRegistry storage.WatcherRegistryStore
	followerIndex   storage.FollowerIndexStore
	notifications   storage.NotificationStore
	pushEndpoints   storage.PushEndpointStore
	prices          storage.PriceStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	webhookSecret := flag.String("webhook-secret", os.Getenv("WEBHOOK_SECRET"), "Shared secret for webhook auth")
	providerURL := flag.String("provider-url", os.Getenv("PROVIDER_API_URL"), "Blockchain event provider API base URL")
	providerAPIKey := flag.String("provider-api-key", os.Getenv("PROVIDER_API_KEY"), "Blockchain event provider API key")
	providerWebhookID := flag.String("provider-webhook-id", os.Getenv("PROVIDER_WEBHOOK_ID"), "Provider-side webhook subscription id")
	directoryURL := flag.String("directory-url", os.Getenv("DIRECTORY_URL"), "Account registry internal API base URL")
	directoryAPIKey := flag.String("directory-api-key", os.Getenv("DIRECTORY_API_KEY"), "Account registry API key")
	priceAPIURL := flag.String("price-api-url", os.Getenv("PRICE_API_URL"), "External price API base URL")
	multicastURL := flag.String("push-multicast-url", os.Getenv("PUSH_MULTICAST_URL"), "Multicast push delivery endpoint")
	pushServerKey := flag.String("push-server-key", os.Getenv("PUSH_SERVER_KEY"), "Multicast push server key")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *webhookSecret == "" {
		logger.Fatal("--webhook-secret is required")
	}
	if *directoryURL == "" {
		logger.Fatal("--directory-url is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Upstream address monitor (optional: without it, resync only rebuilds
	// the local indexes)
	var addressMonitor monitor.AddressMonitor
	if *providerURL != "" && *providerAPIKey != "" && *providerWebhookID != "" {
		addressMonitor = monitor.NewClient(*providerURL, *providerAPIKey, *providerWebhookID)
		logger.Printf("Monitoring via provider webhook %s", *providerWebhookID)
	} else {
		logger.Println("Provider credentials not set, upstream monitor sync disabled")
	}

	directory := registry.NewDirectoryClient(*directoryURL, *directoryAPIKey)
	synchronizer := registry.NewSynchronizer(registry.Options{
		Registry:  stores.watcherRegistry,
		Followers: stores.followerIndex,
		Directory: directory,
		Monitor:   addressMonitor,
		Logger:    log.New(os.Stdout, "[registry] ", log.LstdFlags),
	})

	// Valuation: price API is optional, everything degrades to fallbacks
	var oracle valuation.Oracle
	var symbolSource valuation.SymbolSource
	if *priceAPIURL != "" {
		priceAPI := valuation.NewPriceAPIClient(*priceAPIURL)
		oracle = priceAPI
		symbolSource = priceAPI
	}
	priceResolver := valuation.NewResolver(valuation.ResolverOptions{
		Fallback: stores.prices,
		Oracle:   oracle,
		Logger:   log.New(os.Stdout, "[valuation] ", log.LstdFlags),
	})
	symbolResolver := valuation.NewSymbolResolver(nil, symbolSource, log.New(os.Stdout, "[valuation] ", log.LstdFlags))

	// Push delivery
	var multicastSender push.MulticastSender
	if *multicastURL != "" {
		multicastSender = push.NewMulticastClient(*multicastURL, *pushServerKey)
	} else {
		logger.Println("Multicast push endpoint not set, token-based delivery disabled")
	}
	pushService := push.NewService(multicastSender, push.NewWebPushClient(), log.New(os.Stdout, "[push] ", log.LstdFlags))

	engine := fanout.NewEngine(fanout.Options{
		Registry:      stores.watcherRegistry,
		Notifications: stores.notifications,
		Endpoints:     stores.pushEndpoints,
		Prices:        priceResolver,
		Symbols:       symbolResolver,
		Deliverer:     pushService,
		Logger:        log.New(os.Stdout, "[fanout] ", log.LstdFlags),
	})

	srv := server.New(*webhookSecret, engine, synchronizer, logger)
	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Graceful shutdown failed: %v", err)
		}
		cancel()
	}()

	logger.Printf("Starting HTTP server on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			watcherRegistry: memory.NewWatcherRegistryStore(),
			followerIndex:   memory.NewFollowerIndexStore(),
			notifications:   memory.NewNotificationStore(),
			pushEndpoints:   memory.NewPushEndpointStore(),
			prices:          memory.NewPriceStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	stores := &allStores{
		watcherRegistry: pgstore.NewWatcherRegistryStore(pool),
		followerIndex:   pgstore.NewFollowerIndexStore(pool),
		notifications:   pgstore.NewNotificationStore(pool),
		pushEndpoints:   pgstore.NewPushEndpointStore(pool),
		prices:          pgstore.NewPriceStore(pool),
	}
	return stores, pool.Close, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
