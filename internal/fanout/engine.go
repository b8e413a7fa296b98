// Package fanout turns a batch of wallet activity events into per-watcher
// notifications and push deliveries.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-wallet-notifier/internal/classifier"
	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/idhash"
	"solana-wallet-notifier/internal/observability"
	"solana-wallet-notifier/internal/push"
	"solana-wallet-notifier/internal/storage"
	"solana-wallet-notifier/internal/valuation"
	"solana-wallet-notifier/internal/wallet"
)

// MaxPushConcurrency bounds parallel per-recipient push deliveries.
const MaxPushConcurrency = 8

// Deliverer sends one message to a recipient's endpoints and reports the
// permanently dead ones.
type Deliverer interface {
	Deliver(ctx context.Context, endpoints []*domain.PushEndpoint, msg *push.Message) []*domain.PushEndpoint
}

// Engine orchestrates one webhook batch: watcher resolution,
// classification, valuation, idempotent persistence and push dispatch.
type Engine struct {
	registry      storage.WatcherRegistryStore
	notifications storage.NotificationStore
	endpoints     storage.PushEndpointStore
	prices        *valuation.Resolver
	symbols       *valuation.SymbolResolver
	deliverer     Deliverer
	logger        *log.Logger
	now           func() time.Time
}

// Options configures an Engine.
type Options struct {
	Registry      storage.WatcherRegistryStore
	Notifications storage.NotificationStore
	Endpoints     storage.PushEndpointStore
	Prices        *valuation.Resolver
	Symbols       *valuation.SymbolResolver
	Deliverer     Deliverer // may be nil, in which case nothing is pushed
	Logger        *log.Logger
	Now           func() time.Time
}

// NewEngine creates a fan-out engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		registry:      opts.Registry,
		notifications: opts.Notifications,
		endpoints:     opts.Endpoints,
		prices:        opts.Prices,
		symbols:       opts.Symbols,
		deliverer:     opts.Deliverer,
		logger:        logger,
		now:           now,
	}
}

// ProcessBatch handles one webhook delivery. Each event/watcher pair is
// processed independently so one bad event cannot block siblings; only a
// whole-batch storage failure is returned as an error. The returned count
// is the number of events that produced at least one notification attempt.
func (e *Engine) ProcessBatch(ctx context.Context, events []*domain.ActivityEvent) (int, error) {
	start := e.now()
	defer func() {
		observability.DefaultMetrics.FanoutDuration.Observe(e.now().Sub(start).Seconds())
	}()

	swaps := filterSwapEvents(events)
	if len(swaps) == 0 {
		return 0, nil
	}

	records, err := e.registry.GetMany(ctx, distinctActors(swaps))
	if err != nil {
		return 0, fmt.Errorf("fetch watcher records: %w", err)
	}

	var symbols map[string]string
	if e.symbols != nil {
		symbols = e.symbols.ResolveMany(ctx, distinctMints(swaps))
	}

	seen := make(map[string]struct{}) // signature|recipient pairs in this batch
	byRecipient := make(map[string][]outbound)
	processed := 0

	for _, event := range swaps {
		record := records[event.FeePayer]
		if record == nil || len(record.Watchers) == 0 {
			continue
		}

		result := classifier.Classify(event, event.FeePayer)
		if result.Skipped() {
			observability.RecordEventSkipped(result.SkipReason)
			continue
		}
		trade := result.Trade

		created := e.notifyWatchers(ctx, event, trade, record, symbols, seen)
		for recipient, o := range created {
			byRecipient[recipient] = append(byRecipient[recipient], o)
		}
		processed++
		observability.RecordEventProcessed()
	}

	e.pushToRecipients(ctx, byRecipient)
	return processed, nil
}

// outbound is one freshly created notification plus the best-effort USD
// value of its paid amount, carried through to the push payload.
type outbound struct {
	n        *domain.Notification
	valueUSD float64
}

// notifyWatchers writes one notification per watcher of the event's actor
// and returns the newly created ones keyed by recipient. Duplicate inserts
// mean a retried delivery already handled that pair and are absorbed.
func (e *Engine) notifyWatchers(
	ctx context.Context,
	event *domain.ActivityEvent,
	trade *domain.TradeSummary,
	record *domain.WatcherRecord,
	symbols map[string]string,
	seen map[string]struct{},
) map[string]outbound {
	paidSymbol := e.symbolFor(symbols, trade.PaidMint)
	primarySymbol := e.symbolFor(symbols, trade.PrimaryMint)

	// Best-effort valuation: a notification without a perfect price is
	// still useful, so a zero here never blocks the write.
	var paidValueUSD float64
	if e.prices != nil {
		paidValueUSD = e.prices.ValueUSD(ctx, trade.PaidMint, trade.PaidAmount)
	}

	created := make(map[string]outbound)
	for _, recipient := range sortedWatchers(record) {
		dedupeKey := event.Signature + "|" + recipient
		if _, dup := seen[dedupeKey]; dup {
			continue
		}
		seen[dedupeKey] = struct{}{}

		info := record.Watchers[recipient]
		name := info.Nickname
		if name == "" {
			name = wallet.Shorten(event.FeePayer)
		}

		n := &domain.Notification{
			ID:           idhash.ComputeNotificationID(event.Signature, recipient),
			RecipientID:  recipient,
			ActorAddress: event.FeePayer,
			Type:         trade.NotificationType(),
			Title:        "Wallet activity",
			Message:      buildMessage(name, trade, paidSymbol, primarySymbol),
			Signature:    event.Signature,
			PrimaryMint:  trade.PrimaryMint,
			PaidAmount:   trade.PaidAmount,
			PaidSymbol:   paidSymbol,
			CreatedAt:    e.now().UnixMilli(),
		}

		err := e.notifications.Insert(ctx, n)
		switch {
		case err == nil:
			created[recipient] = outbound{n: n, valueUSD: paidValueUSD}
			observability.RecordNotificationCreated()
		case errors.Is(err, storage.ErrDuplicateKey):
			observability.RecordNotificationDuplicate()
		default:
			// Isolated to this watcher; siblings still succeed.
			observability.RecordFanoutError("notification_insert")
			e.logger.Printf("[fanout] insert notification for %s: %v", recipient, err)
		}
	}
	return created
}

// pushToRecipients delivers each recipient's freshly created notifications
// in parallel across recipients and prunes endpoints reported dead.
func (e *Engine) pushToRecipients(ctx context.Context, byRecipient map[string][]outbound) {
	if e.deliverer == nil || len(byRecipient) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxPushConcurrency)

	var mu sync.Mutex
	var dead []*domain.PushEndpoint

	for recipient, outbounds := range byRecipient {
		g.Go(func() error {
			endpoints, err := e.endpoints.GetByUser(gctx, recipient)
			if err != nil {
				observability.RecordFanoutError("endpoint_lookup")
				e.logger.Printf("[fanout] load endpoints for %s: %v", recipient, err)
				return nil
			}
			if len(endpoints) == 0 {
				return nil
			}

			for _, o := range outbounds {
				n := o.n
				data := map[string]string{
					"notificationId": n.ID,
					"signature":      n.Signature,
					"type":           n.Type,
				}
				if o.valueUSD > 0 {
					data["paidValueUsd"] = strconv.FormatFloat(o.valueUSD, 'f', 2, 64)
				}
				invalid := e.deliverer.Deliver(gctx, endpoints, &push.Message{
					Title:    n.Title,
					Body:     n.Message,
					DeepLink: "/wallet/" + n.ActorAddress,
					Data:     data,
				})
				if len(invalid) > 0 {
					mu.Lock()
					dead = append(dead, invalid...)
					mu.Unlock()
					endpoints = withoutDead(endpoints, invalid)
				}
			}
			return nil
		})
	}
	g.Wait()

	e.pruneDead(ctx, dead)
}

// pruneDead deletes permanently invalid endpoints. Deletion is idempotent
// so repeated reports of the same endpoint are harmless.
func (e *Engine) pruneDead(ctx context.Context, dead []*domain.PushEndpoint) {
	for _, ep := range dead {
		if err := e.endpoints.Delete(ctx, ep.UserID, ep.Token); err != nil {
			observability.RecordFanoutError("endpoint_prune")
			e.logger.Printf("[fanout] prune endpoint for %s: %v", ep.UserID, err)
			continue
		}
		observability.RecordEndpointPruned()
		e.logger.Printf("[fanout] pruned dead endpoint for user %s", ep.UserID)
	}
}

func (e *Engine) symbolFor(symbols map[string]string, mint string) string {
	if mint == "" {
		return ""
	}
	if s, ok := symbols[mint]; ok && s != "" {
		return s
	}
	return valuation.FallbackSymbol(mint)
}

// buildMessage renders the human-readable notification body, e.g.
// "Whale bought 1.2000 SOL of TKN".
func buildMessage(name string, trade *domain.TradeSummary, paidSymbol, primarySymbol string) string {
	var verb string
	switch trade.Direction {
	case domain.DirectionBuy:
		verb = "bought"
	case domain.DirectionSell:
		verb = "sold"
	default:
		verb = "swapped"
	}

	msg := fmt.Sprintf("%s %s %.4f %s", name, verb, trade.PaidAmount, paidSymbol)
	if primarySymbol != "" && primarySymbol != paidSymbol {
		msg += " of " + primarySymbol
	}
	return msg
}

func filterSwapEvents(events []*domain.ActivityEvent) []*domain.ActivityEvent {
	var out []*domain.ActivityEvent
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.Type == domain.EventTypeSwap {
			out = append(out, ev)
		}
	}
	return out
}

func distinctActors(events []*domain.ActivityEvent) []string {
	seen := make(map[string]struct{}, len(events))
	var out []string
	for _, ev := range events {
		if ev.FeePayer == "" {
			continue
		}
		if _, ok := seen[ev.FeePayer]; !ok {
			seen[ev.FeePayer] = struct{}{}
			out = append(out, ev.FeePayer)
		}
	}
	return out
}

// distinctMints collects every asset id an event batch can reference so
// symbols resolve once per id, not once per event.
func distinctMints(events []*domain.ActivityEvent) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(mint string) {
		if mint == "" {
			return
		}
		if _, ok := seen[mint]; !ok {
			seen[mint] = struct{}{}
			out = append(out, mint)
		}
	}

	add(domain.WrappedSOLMint)
	for _, ev := range events {
		for _, t := range ev.TokenTransfers {
			add(t.Mint)
		}
		if ev.Events != nil && ev.Events.Swap != nil {
			for _, leg := range ev.Events.Swap.TokenInputs {
				add(leg.Mint)
			}
			for _, leg := range ev.Events.Swap.TokenOutputs {
				add(leg.Mint)
			}
		}
	}
	return out
}

// sortedWatchers returns a record's watcher ids in stable order so a
// batch's notification writes are deterministic.
func sortedWatchers(record *domain.WatcherRecord) []string {
	out := make([]string, 0, len(record.Watchers))
	for id := range record.Watchers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func withoutDead(endpoints, dead []*domain.PushEndpoint) []*domain.PushEndpoint {
	drop := make(map[string]struct{}, len(dead))
	for _, d := range dead {
		drop[d.Token] = struct{}{}
	}
	kept := make([]*domain.PushEndpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if _, ok := drop[ep.Token]; !ok {
			kept = append(kept, ep)
		}
	}
	return kept
}
