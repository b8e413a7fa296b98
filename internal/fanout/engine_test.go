package fanout

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/idhash"
	"solana-wallet-notifier/internal/push"
	"solana-wallet-notifier/internal/storage"
	"solana-wallet-notifier/internal/storage/memory"
	"solana-wallet-notifier/internal/valuation"
)

const (
	actorW  = "4Nd1mYvM7jZhCkzYShkmQNjcQyUEUKu4GRnoCuB2cwvf"
	tknMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	sig1    = "5KtP3mYvN8jZhCkzYShkmQNjcQyUEUKu4GRnoCuB2sig1"
)

type stubSymbols struct{}

func (stubSymbols) Symbol(ctx context.Context, mint string) (string, error) {
	if mint == tknMint {
		return "TKN", nil
	}
	return "", errors.New("unknown mint")
}

type recordedDelivery struct {
	endpoints []*domain.PushEndpoint
	msg       *push.Message
}

type stubDeliverer struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
	deadTokens map[string]bool
}

func (d *stubDeliverer) Deliver(ctx context.Context, endpoints []*domain.PushEndpoint, msg *push.Message) []*domain.PushEndpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, recordedDelivery{endpoints: endpoints, msg: msg})

	var dead []*domain.PushEndpoint
	for _, e := range endpoints {
		if d.deadTokens[e.Token] {
			dead = append(dead, e)
		}
	}
	return dead
}

func (d *stubDeliverer) messagesFor(userID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, rec := range d.deliveries {
		for _, e := range rec.endpoints {
			if e.UserID == userID {
				out = append(out, rec.msg.Body)
				break
			}
		}
	}
	return out
}

type testFixture struct {
	engine        *Engine
	registry      storage.WatcherRegistryStore
	notifications storage.NotificationStore
	endpoints     storage.PushEndpointStore
	deliverer     *stubDeliverer
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	registry := memory.NewWatcherRegistryStore()
	notifications := memory.NewNotificationStore()
	endpoints := memory.NewPushEndpointStore()
	deliverer := &stubDeliverer{deadTokens: map[string]bool{}}

	engine := NewEngine(Options{
		Registry:      registry,
		Notifications: notifications,
		Endpoints:     endpoints,
		Prices:        valuation.NewResolver(valuation.ResolverOptions{Logger: logger}),
		Symbols:       valuation.NewSymbolResolver(nil, stubSymbols{}, logger),
		Deliverer:     deliverer,
		Logger:        logger,
		Now:           func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	return &testFixture{
		engine:        engine,
		registry:      registry,
		notifications: notifications,
		endpoints:     endpoints,
		deliverer:     deliverer,
	}
}

// buyEvent is a structured swap where the actor spends 1.2 SOL for 500 TKN.
func buyEvent(signature string) *domain.ActivityEvent {
	return &domain.ActivityEvent{
		Type:      domain.EventTypeSwap,
		Signature: signature,
		FeePayer:  actorW,
		Events: &domain.EventDetails{
			Swap: &domain.SwapDetails{
				TokenInputs:  []domain.SwapLeg{{Mint: domain.WrappedSOLMint, TokenAmount: 1.2}},
				TokenOutputs: []domain.SwapLeg{{Mint: tknMint, TokenAmount: 500}},
			},
		},
		AccountData: []domain.AccountData{
			{Account: actorW, NativeBalanceChange: -1_200_000_000},
		},
	}
}

func watch(t *testing.T, f *testFixture, userID, nickname string) {
	t.Helper()
	err := f.registry.UpsertWatcher(context.Background(), actorW, userID, domain.WatcherInfo{Nickname: nickname})
	if err != nil {
		t.Fatalf("UpsertWatcher: %v", err)
	}
}

func TestProcessBatch_BuyScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	watch(t, f, "u1", "Whale")
	watch(t, f, "u2", "")
	if err := f.endpoints.Insert(ctx, &domain.PushEndpoint{UserID: "u1", Token: "tok-u1", Channel: domain.ChannelMulticast}); err != nil {
		t.Fatalf("Insert endpoint: %v", err)
	}
	if err := f.endpoints.Insert(ctx, &domain.PushEndpoint{UserID: "u2", Token: "tok-u2", Channel: domain.ChannelMulticast}); err != nil {
		t.Fatalf("Insert endpoint: %v", err)
	}

	processed, err := f.engine.ProcessBatch(ctx, []*domain.ActivityEvent{buyEvent(sig1)})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	n1, err := f.notifications.GetByID(ctx, idhash.ComputeNotificationID(sig1, "u1"))
	if err != nil {
		t.Fatalf("notification for u1: %v", err)
	}
	if n1.Type != domain.NotificationTypeBuy {
		t.Errorf("type = %q, want buy", n1.Type)
	}
	if n1.Message != "Whale bought 1.2000 SOL of TKN" {
		t.Errorf("unexpected message: %q", n1.Message)
	}
	if n1.PaidAmount != 1.2 {
		t.Errorf("paid amount = %v, want 1.2", n1.PaidAmount)
	}
	if n1.PaidSymbol != "SOL" {
		t.Errorf("paid symbol = %q, want SOL", n1.PaidSymbol)
	}

	n2, err := f.notifications.GetByID(ctx, idhash.ComputeNotificationID(sig1, "u2"))
	if err != nil {
		t.Fatalf("notification for u2: %v", err)
	}
	if n2.Message != "4Nd1...cwvf bought 1.2000 SOL of TKN" {
		t.Errorf("unexpected message: %q", n2.Message)
	}

	if got := f.deliverer.messagesFor("u1"); len(got) != 1 {
		t.Errorf("expected 1 delivery to u1, got %v", got)
	}
	if got := f.deliverer.messagesFor("u2"); len(got) != 1 {
		t.Errorf("expected 1 delivery to u2, got %v", got)
	}
}

func TestProcessBatch_FanoutCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u3"} {
		watch(t, f, u, "")
	}

	if _, err := f.engine.ProcessBatch(ctx, []*domain.ActivityEvent{buyEvent(sig1)}); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := f.notifications.GetByID(ctx, idhash.ComputeNotificationID(sig1, u)); err != nil {
			t.Errorf("missing notification for %s: %v", u, err)
		}
	}
	if _, err := f.notifications.GetByID(ctx, idhash.ComputeNotificationID(sig1, "u4")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unrelated user notified: %v", err)
	}
}

func TestProcessBatch_RetriedDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	watch(t, f, "u1", "Whale")

	batch := []*domain.ActivityEvent{buyEvent(sig1)}
	for i := 0; i < 2; i++ {
		if _, err := f.engine.ProcessBatch(ctx, batch); err != nil {
			t.Fatalf("ProcessBatch #%d: %v", i+1, err)
		}
	}

	rows, err := f.notifications.GetByRecipient(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetByRecipient: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification after retried delivery, got %d", len(rows))
	}
}

func TestProcessBatch_IntraBatchDedup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	watch(t, f, "u1", "Whale")

	// same signature appearing twice in one delivery
	batch := []*domain.ActivityEvent{buyEvent(sig1), buyEvent(sig1)}
	if _, err := f.engine.ProcessBatch(ctx, batch); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	rows, err := f.notifications.GetByRecipient(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetByRecipient: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 notification per signature per watcher, got %d", len(rows))
	}
}

func TestProcessBatch_IgnoresNonSwapEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	watch(t, f, "u1", "")

	ev := buyEvent(sig1)
	ev.Type = "TRANSFER"
	processed, err := f.engine.ProcessBatch(ctx, []*domain.ActivityEvent{ev})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if rows, _ := f.notifications.GetByRecipient(ctx, "u1", 0); len(rows) != 0 {
		t.Errorf("non-swap event produced notifications: %d", len(rows))
	}
}

func TestProcessBatch_PrunesDeadEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	watch(t, f, "u1", "")

	if err := f.endpoints.Insert(ctx, &domain.PushEndpoint{UserID: "u1", Token: "tok-dead", Channel: domain.ChannelMulticast}); err != nil {
		t.Fatalf("Insert endpoint: %v", err)
	}
	if err := f.endpoints.Insert(ctx, &domain.PushEndpoint{UserID: "u1", Token: "tok-live", Channel: domain.ChannelMulticast}); err != nil {
		t.Fatalf("Insert endpoint: %v", err)
	}
	f.deliverer.deadTokens["tok-dead"] = true

	if _, err := f.engine.ProcessBatch(ctx, []*domain.ActivityEvent{buyEvent(sig1)}); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	remaining, err := f.endpoints.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Token != "tok-live" {
		t.Fatalf("expected only live endpoint to remain, got %+v", remaining)
	}
}

func TestProcessBatch_BadEventDoesNotBlockSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	watch(t, f, "u1", "")

	broken := &domain.ActivityEvent{
		Type:      domain.EventTypeSwap,
		Signature: "", // unclassifiable
		FeePayer:  actorW,
	}
	good := buyEvent(sig1)

	processed, err := f.engine.ProcessBatch(ctx, []*domain.ActivityEvent{broken, good})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
	if _, err := f.notifications.GetByID(ctx, idhash.ComputeNotificationID(sig1, "u1")); err != nil {
		t.Errorf("good event not processed: %v", err)
	}
}
