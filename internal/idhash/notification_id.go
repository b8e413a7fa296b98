package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeNotificationID computes a deterministic notification id using SHA256.
// Formula: SHA256(tx_signature|recipient_user_id)
// Returns hex-encoded hash (64 characters).
//
// The id doubles as the idempotency key: an at-least-once webhook redelivery
// maps onto the same id and is rejected by the insert-only notification store.
func ComputeNotificationID(txSignature string, recipientID string) string {
	data := fmt.Sprintf("%s|%s", txSignature, recipientID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
