// Package classifier turns one raw transaction event into a trade direction,
// a primary traded asset, and the amount paid for it.
//
// Classification is a pure function of the event: no storage, no network.
// Upstream providers populate different subsets of fields depending on the
// transaction shape, so every signal has an ordered fallback.
package classifier

import (
	"math"

	"solana-wallet-notifier/internal/domain"
)

// Skip reasons for events the pipeline does not act on. These are routine
// outcomes, not errors.
const (
	SkipMissingSignature = "missing signature"
	SkipMissingActor     = "missing actor address"
	SkipNoTransfers      = "no transfers in event"
	SkipZeroAmount       = "zero traded amount"
)

// Result is either a classified trade or a skip with a reason.
type Result struct {
	Trade      *domain.TradeSummary
	SkipReason string
}

// Skipped reports whether the event was classified as not applicable.
func (r Result) Skipped() bool {
	return r.Trade == nil
}

// Classify inspects one activity event from the perspective of the acting
// wallet and produces a trade summary or a skip reason.
func Classify(event *domain.ActivityEvent, actor string) Result {
	if event == nil || event.Signature == "" {
		return Result{SkipReason: SkipMissingSignature}
	}
	if actor == "" {
		return Result{SkipReason: SkipMissingActor}
	}
	if len(event.TokenTransfers) == 0 && len(event.NativeTransfers) == 0 && swapOf(event) == nil {
		return Result{SkipReason: SkipNoTransfers}
	}

	net := netByMint(event, actor)
	direction := resolveDirection(event, net)
	primary := resolvePrimaryMint(event, direction)
	paidMint := resolvePaidMint(event, net, direction)
	paidAmount := resolvePaidAmount(event, net, actor, direction, paidMint)

	if primary == "" && paidAmount == 0 {
		return Result{SkipReason: SkipZeroAmount}
	}

	return Result{Trade: &domain.TradeSummary{
		Direction:   direction,
		PrimaryMint: primary,
		PaidMint:    paidMint,
		PaidAmount:  paidAmount,
	}}
}

func swapOf(event *domain.ActivityEvent) *domain.SwapDetails {
	if event.Events == nil {
		return nil
	}
	return event.Events.Swap
}

// netByMint computes the directional net per asset for the acting wallet:
// +quantity when the wallet is recipient, -quantity when sender.
func netByMint(event *domain.ActivityEvent, actor string) map[string]float64 {
	net := make(map[string]float64)
	for _, tr := range event.TokenTransfers {
		if tr.Mint == "" {
			continue
		}
		if tr.To == actor {
			net[tr.Mint] += tr.TokenAmount
		}
		if tr.From == actor {
			net[tr.Mint] -= tr.TokenAmount
		}
	}
	return net
}

// resolveDirection applies the direction precedence: structured swap legs
// first, then the directional net, then ambiguous SWAP.
func resolveDirection(event *domain.ActivityEvent, net map[string]float64) domain.Direction {
	if swap := swapOf(event); swap != nil {
		for _, leg := range swap.TokenOutputs {
			if leg.Mint != "" && leg.Mint != domain.WrappedSOLMint {
				return domain.DirectionBuy
			}
		}
		for _, leg := range swap.TokenInputs {
			if leg.Mint != "" && leg.Mint != domain.WrappedSOLMint {
				return domain.DirectionSell
			}
		}
		// Both sides native: fall through to the directional net.
	}

	if len(net) == 0 {
		// No transfer references the acting wallet directly.
		return domain.DirectionSwap
	}

	inMint, _ := largestPositive(net)
	outMint, _ := largestNegative(net)

	if inMint != "" && inMint != domain.WrappedSOLMint {
		return domain.DirectionBuy
	}
	if outMint != "" && outMint != domain.WrappedSOLMint {
		return domain.DirectionSell
	}
	return domain.DirectionSwap
}

// resolvePrimaryMint picks the primary traded asset. Structured swap data
// wins: produced asset for BUY, consumed for SELL, excluding native. When
// both sides are native, the first available leg of either side is taken.
// Without swap data, the non-native asset with the largest-magnitude
// transfer quantity wins.
func resolvePrimaryMint(event *domain.ActivityEvent, direction domain.Direction) string {
	if swap := swapOf(event); swap != nil {
		first, second := swap.TokenOutputs, swap.TokenInputs
		if direction == domain.DirectionSell {
			first, second = swap.TokenInputs, swap.TokenOutputs
		}
		for _, leg := range first {
			if leg.Mint != "" && leg.Mint != domain.WrappedSOLMint {
				return leg.Mint
			}
		}
		for _, leg := range second {
			if leg.Mint != "" && leg.Mint != domain.WrappedSOLMint {
				return leg.Mint
			}
		}
		for _, legs := range [][]domain.SwapLeg{first, second} {
			for _, leg := range legs {
				if leg.Mint != "" {
					return leg.Mint
				}
			}
		}
	}

	var best string
	var bestAbs float64
	for _, tr := range event.TokenTransfers {
		if tr.Mint == "" || tr.Mint == domain.WrappedSOLMint {
			continue
		}
		if abs := math.Abs(tr.TokenAmount); abs > bestAbs {
			best, bestAbs = tr.Mint, abs
		}
	}
	return best
}

// resolvePaidMint picks the counter-asset given up for the trade.
func resolvePaidMint(event *domain.ActivityEvent, net map[string]float64, direction domain.Direction) string {
	if swap := swapOf(event); swap != nil {
		legs := swap.TokenInputs // consumed side pays for a BUY
		if direction == domain.DirectionSell {
			legs = swap.TokenOutputs
		}
		for _, leg := range legs {
			if leg.Mint != "" {
				return leg.Mint
			}
		}
	}

	switch direction {
	case domain.DirectionBuy:
		if mint, _ := largestNegative(net); mint != "" {
			return mint
		}
	case domain.DirectionSell:
		if mint, _ := largestPositive(net); mint != "" {
			return mint
		}
	}
	// Default counter-asset is the native wrapped token.
	return domain.WrappedSOLMint
}

// resolvePaidAmount resolves the quantity of the counter-asset through the
// ordered fallback: native balance delta, directional net, largest transfer,
// and finally the sum of native transfers.
func resolvePaidAmount(event *domain.ActivityEvent, net map[string]float64, actor string, direction domain.Direction, paidMint string) float64 {
	native := paidMint == domain.WrappedSOLMint

	// (a) native balance delta on the actor's account, sign-adjusted.
	if native {
		if delta := nativeDelta(event, actor); delta != 0 {
			sol := float64(delta) / domain.LamportsPerSOL
			if amount := signAdjusted(sol, direction); amount > 0 {
				return amount
			}
		}
	}

	// (b) directional net for the paid asset, sign-adjusted the same way.
	if n := net[paidMint]; n != 0 {
		if amount := signAdjusted(n, direction); amount > 0 {
			return amount
		}
	}

	// (c) largest-magnitude fungible transfer for the paid asset.
	var bestAbs float64
	for _, tr := range event.TokenTransfers {
		if tr.Mint != paidMint {
			continue
		}
		if abs := math.Abs(tr.TokenAmount); abs > bestAbs {
			bestAbs = abs
		}
	}
	if bestAbs > 0 {
		return bestAbs
	}

	// (d) last resort for a native counter-asset: sum of native transfers.
	if native {
		var lamports int64
		for _, tr := range event.NativeTransfers {
			lamports += tr.Amount
		}
		if lamports != 0 {
			return math.Abs(float64(lamports)) / domain.LamportsPerSOL
		}
	}

	return 0
}

// signAdjusted converts a signed flow into the paid magnitude: a BUY pays
// with an outflow (negative), a SELL is paid by an inflow (positive).
// A sign that contradicts the direction yields 0 so the next fallback runs.
func signAdjusted(value float64, direction domain.Direction) float64 {
	switch direction {
	case domain.DirectionBuy:
		if value < 0 {
			return -value
		}
		return 0
	case domain.DirectionSell:
		if value > 0 {
			return value
		}
		return 0
	default:
		return math.Abs(value)
	}
}

// nativeDelta returns the actor's native balance change in lamports.
func nativeDelta(event *domain.ActivityEvent, actor string) int64 {
	for _, ad := range event.AccountData {
		if ad.Account == actor {
			return ad.NativeBalanceChange
		}
	}
	return 0
}

func largestPositive(net map[string]float64) (string, float64) {
	var mint string
	var best float64
	for m, n := range net {
		if n > best {
			mint, best = m, n
		}
	}
	return mint, best
}

func largestNegative(net map[string]float64) (string, float64) {
	var mint string
	var best float64
	for m, n := range net {
		if n < best {
			mint, best = m, n
		}
	}
	return mint, best
}
