package domain

// Notification is one wallet-activity notification for one recipient.
// Corresponds to the notifications table in PostgreSQL. Identity is a
// deterministic hash of (signature, recipient), never a random id, so
// retried webhook deliveries collapse onto the same row.
type Notification struct {
	ID           string  // sha256(signature|recipient), hex
	RecipientID  string  // user receiving the notification
	ActorAddress string  // wallet whose activity triggered it
	Type         string  // "buy" | "sell" | "swap" | "transaction"
	Title        string
	Message      string
	Signature    string  // transaction signature
	PrimaryMint  string  // primary traded asset, "" if unresolved
	PaidAmount   float64 // quantity of the counter-asset given up
	PaidSymbol   string  // ticker of the counter-asset, "" if unresolved
	Read         bool
	CreatedAt    int64 // Unix timestamp in milliseconds
}

// Notification type constants, derived from trade direction.
const (
	NotificationTypeBuy         = "buy"
	NotificationTypeSell        = "sell"
	NotificationTypeSwap        = "swap"
	NotificationTypeTransaction = "transaction"
)
