package classifier

import (
	"testing"

	"solana-wallet-notifier/internal/domain"
)

const (
	actor    = "ActorWallet11111111111111111111111111111111"
	tknMint  = "TKNMint111111111111111111111111111111111111"
	otherMnt = "OtherMint1111111111111111111111111111111111"
	sig      = "5UfDuX94A1QfqkQvg5WBvM3WUgdyRZCDSJYmY5JLLuRr"
)

func swapEvent(inputs, outputs []domain.SwapLeg) *domain.ActivityEvent {
	return &domain.ActivityEvent{
		Type:      domain.EventTypeSwap,
		Signature: sig,
		FeePayer:  actor,
		Events: &domain.EventDetails{
			Swap: &domain.SwapDetails{TokenInputs: inputs, TokenOutputs: outputs},
		},
	}
}

func TestClassify_StructuredSwap_NonNativeOutputIsBuy(t *testing.T) {
	event := swapEvent(
		[]domain.SwapLeg{{Mint: domain.WrappedSOLMint}},
		[]domain.SwapLeg{{Mint: tknMint}},
	)
	event.AccountData = []domain.AccountData{{Account: actor, NativeBalanceChange: -1_200_000_000}}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionBuy {
		t.Errorf("Direction = %s, want buy", result.Trade.Direction)
	}
	if result.Trade.PrimaryMint != tknMint {
		t.Errorf("PrimaryMint = %s, want %s", result.Trade.PrimaryMint, tknMint)
	}
}

func TestClassify_StructuredSwap_NonNativeInputIsSell(t *testing.T) {
	event := swapEvent(
		[]domain.SwapLeg{{Mint: tknMint}},
		[]domain.SwapLeg{{Mint: domain.WrappedSOLMint}},
	)
	event.AccountData = []domain.AccountData{{Account: actor, NativeBalanceChange: 500_000_000}}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionSell {
		t.Errorf("Direction = %s, want sell", result.Trade.Direction)
	}
	if result.Trade.PrimaryMint != tknMint {
		t.Errorf("PrimaryMint = %s, want %s", result.Trade.PrimaryMint, tknMint)
	}
}

func TestClassify_StructuredSwap_NativeBothSidesIsSwap(t *testing.T) {
	// wSOL on both legs falls through to the directional net; with no
	// transfers referencing the actor the classification stays ambiguous.
	event := swapEvent(
		[]domain.SwapLeg{{Mint: domain.WrappedSOLMint}},
		[]domain.SwapLeg{{Mint: domain.WrappedSOLMint}},
	)

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionSwap {
		t.Errorf("Direction = %s, want swap", result.Trade.Direction)
	}
	// Both legs native: first available leg of either side is taken.
	if result.Trade.PrimaryMint != domain.WrappedSOLMint {
		t.Errorf("PrimaryMint = %s, want wSOL", result.Trade.PrimaryMint)
	}
}

func TestClassify_FallbackNet_ReceiveTokenIsBuy(t *testing.T) {
	// Actor receives 100 X and sends 2 wSOL, no structured swap data.
	event := &domain.ActivityEvent{
		Signature: sig,
		FeePayer:  actor,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: tknMint, TokenAmount: 100, To: actor},
			{Mint: domain.WrappedSOLMint, TokenAmount: 2, From: actor},
		},
	}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionBuy {
		t.Errorf("Direction = %s, want buy", result.Trade.Direction)
	}
	if result.Trade.PrimaryMint != tknMint {
		t.Errorf("PrimaryMint = %s, want %s", result.Trade.PrimaryMint, tknMint)
	}
	if result.Trade.PaidMint != domain.WrappedSOLMint {
		t.Errorf("PaidMint = %s, want wSOL", result.Trade.PaidMint)
	}
	// Paid amount comes from the directional net (no balance delta present).
	if result.Trade.PaidAmount != 2 {
		t.Errorf("PaidAmount = %f, want 2", result.Trade.PaidAmount)
	}
}

func TestClassify_FallbackNet_SendTokenIsSell(t *testing.T) {
	event := &domain.ActivityEvent{
		Signature: sig,
		FeePayer:  actor,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: tknMint, TokenAmount: 50, From: actor},
			{Mint: domain.WrappedSOLMint, TokenAmount: 1.5, To: actor},
		},
	}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionSell {
		t.Errorf("Direction = %s, want sell", result.Trade.Direction)
	}
	if result.Trade.PaidAmount != 1.5 {
		t.Errorf("PaidAmount = %f, want 1.5", result.Trade.PaidAmount)
	}
}

func TestClassify_NoDirectionalSignalIsSwap(t *testing.T) {
	// Transfers exist but none references the acting wallet.
	event := &domain.ActivityEvent{
		Signature: sig,
		FeePayer:  actor,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: tknMint, TokenAmount: 10, From: "someoneElse", To: "thirdParty"},
		},
	}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionSwap {
		t.Errorf("Direction = %s, want swap", result.Trade.Direction)
	}
}

func TestClassify_PaidAmountWaterfall_NativeTransferLastResort(t *testing.T) {
	// Native balance delta is absent and no wSOL token transfer exists,
	// but a native transfer of 1.2 SOL is present: the last-resort sum
	// of native transfers must resolve, not zero.
	event := swapEvent(
		[]domain.SwapLeg{{Mint: domain.WrappedSOLMint}},
		[]domain.SwapLeg{{Mint: tknMint, TokenAmount: 500}},
	)
	event.TokenTransfers = []domain.TokenTransfer{
		{Mint: tknMint, TokenAmount: 500, To: actor},
	}
	event.NativeTransfers = []domain.NativeTransfer{
		{From: actor, Amount: 1_200_000_000},
	}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.Direction != domain.DirectionBuy {
		t.Errorf("Direction = %s, want buy", result.Trade.Direction)
	}
	if result.Trade.PaidAmount != 1.2 {
		t.Errorf("PaidAmount = %f, want 1.2", result.Trade.PaidAmount)
	}
}

func TestClassify_PaidAmountFromNativeBalanceDelta(t *testing.T) {
	event := swapEvent(
		[]domain.SwapLeg{{Mint: domain.WrappedSOLMint}},
		[]domain.SwapLeg{{Mint: tknMint, TokenAmount: 500}},
	)
	event.AccountData = []domain.AccountData{
		{Account: "otherAccount", NativeBalanceChange: 99},
		{Account: actor, NativeBalanceChange: -1_200_000_000},
	}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.PaidAmount != 1.2 {
		t.Errorf("PaidAmount = %f, want 1.2", result.Trade.PaidAmount)
	}
}

func TestClassify_BalanceDeltaSignMismatchFallsThrough(t *testing.T) {
	// A BUY with a positive native delta (airdrop dust, rounding) must not
	// use the delta; the directional net is next in line.
	event := &domain.ActivityEvent{
		Signature: sig,
		FeePayer:  actor,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: tknMint, TokenAmount: 100, To: actor},
			{Mint: domain.WrappedSOLMint, TokenAmount: 3, From: actor},
		},
		AccountData: []domain.AccountData{
			{Account: actor, NativeBalanceChange: 5000},
		},
	}

	result := Classify(event, actor)
	if result.Skipped() {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Trade.PaidAmount != 3 {
		t.Errorf("PaidAmount = %f, want 3 (from directional net)", result.Trade.PaidAmount)
	}
}

func TestClassify_SkipReasons(t *testing.T) {
	tests := []struct {
		name  string
		event *domain.ActivityEvent
		actor string
		want  string
	}{
		{"nil event", nil, actor, SkipMissingSignature},
		{"no signature", &domain.ActivityEvent{FeePayer: actor}, actor, SkipMissingSignature},
		{"no actor", &domain.ActivityEvent{Signature: sig}, "", SkipMissingActor},
		{"empty event", &domain.ActivityEvent{Signature: sig, FeePayer: actor}, actor, SkipNoTransfers},
		{
			"zero amounts",
			&domain.ActivityEvent{
				Signature: sig,
				FeePayer:  actor,
				TokenTransfers: []domain.TokenTransfer{
					{Mint: domain.WrappedSOLMint, TokenAmount: 0, From: actor},
				},
			},
			actor,
			SkipZeroAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.event, tt.actor)
			if !result.Skipped() {
				t.Fatal("expected skip")
			}
			if result.SkipReason != tt.want {
				t.Errorf("SkipReason = %q, want %q", result.SkipReason, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	event := &domain.ActivityEvent{
		Signature: sig,
		FeePayer:  actor,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: tknMint, TokenAmount: 100, To: actor},
			{Mint: otherMnt, TokenAmount: 40, To: actor},
			{Mint: domain.WrappedSOLMint, TokenAmount: 2, From: actor},
		},
	}

	first := Classify(event, actor)
	for i := 0; i < 10; i++ {
		again := Classify(event, actor)
		if *again.Trade != *first.Trade {
			t.Fatalf("classification not deterministic: %+v != %+v", again.Trade, first.Trade)
		}
	}
}
