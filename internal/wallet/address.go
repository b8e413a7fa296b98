// Package wallet provides address validation and display helpers.
package wallet

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Validate checks that addr is a well-formed base58 32-byte public key.
func Validate(addr string) error {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address length %d, want 32", len(decoded))
	}
	return nil
}

// IsOnCurve reports whether addr decodes to a point on the ed25519 curve.
// System-owned wallets are on-curve; program-derived addresses are not,
// so this distinguishes watchable wallets from program accounts.
func IsOnCurve(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

// Shorten formats an address for display: first 4 and last 4 characters.
func Shorten(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
