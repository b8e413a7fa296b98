package domain

// Native asset constants.
const (
	// WrappedSOLMint is the wrapped SOL mint address used as the default
	// counter-asset in swaps.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"

	// LamportsPerSOL converts native transfer amounts to SOL.
	LamportsPerSOL = 1_000_000_000
)

// EventTypeSwap is the enhanced-event type the pipeline reacts to.
const EventTypeSwap = "SWAP"

// ActivityEvent is one enhanced transaction event as delivered by the
// upstream webhook. Fields are populated inconsistently depending on the
// transaction shape, so every consumer must treat them as optional.
type ActivityEvent struct {
	Type            string           `json:"type"`
	Signature       string           `json:"signature"`
	FeePayer        string           `json:"feePayer"`
	Timestamp       int64            `json:"timestamp"`
	TokenTransfers  []TokenTransfer  `json:"tokenTransfers,omitempty"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers,omitempty"`
	AccountData     []AccountData    `json:"accountData,omitempty"`
	Events          *EventDetails    `json:"events,omitempty"`
}

// TokenTransfer is one fungible-asset transfer within a transaction.
type TokenTransfer struct {
	Mint        string  `json:"mint"`
	TokenAmount float64 `json:"tokenAmount"`
	From        string  `json:"fromUserAccount,omitempty"`
	To          string  `json:"toUserAccount,omitempty"`
}

// NativeTransfer is one native (SOL) transfer, amount in lamports.
type NativeTransfer struct {
	From   string `json:"fromUserAccount,omitempty"`
	To     string `json:"toUserAccount,omitempty"`
	Amount int64  `json:"amount"`
}

// AccountData carries the per-account native balance delta, in lamports.
type AccountData struct {
	Account             string `json:"account"`
	NativeBalanceChange int64  `json:"nativeBalanceChange"`
}

// EventDetails holds optional structured sub-events.
type EventDetails struct {
	Swap *SwapDetails `json:"swap,omitempty"`
}

// SwapDetails is the structured swap sub-object: assets consumed vs produced.
type SwapDetails struct {
	TokenInputs  []SwapLeg `json:"tokenInputs,omitempty"`
	TokenOutputs []SwapLeg `json:"tokenOutputs,omitempty"`
}

// SwapLeg is one side of a structured swap.
type SwapLeg struct {
	Mint        string  `json:"mint"`
	TokenAmount float64 `json:"tokenAmount,omitempty"`
}
