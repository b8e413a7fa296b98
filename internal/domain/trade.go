package domain

// Direction of a classified trade relative to the acting wallet.
type Direction string

// Trade direction constants.
const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionSwap Direction = "swap" // ambiguous or native-for-native
)

// TradeSummary is the result of classifying one transaction event:
// what was traded, which way, and what was paid for it.
type TradeSummary struct {
	Direction   Direction
	PrimaryMint string  // primary traded asset, "" if none resolved
	PaidMint    string  // counter-asset given up
	PaidAmount  float64 // quantity of the counter-asset, always >= 0
}

// NotificationType maps a trade direction to the stored notification type.
func (s *TradeSummary) NotificationType() string {
	switch s.Direction {
	case DirectionBuy:
		return NotificationTypeBuy
	case DirectionSell:
		return NotificationTypeSell
	case DirectionSwap:
		return NotificationTypeSwap
	default:
		return NotificationTypeTransaction
	}
}
