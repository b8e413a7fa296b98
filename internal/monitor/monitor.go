// Package monitor manages the address list watched by the upstream
// blockchain-event provider. The provider pushes enhanced transaction
// events for every monitored address to our webhook; the synchronizer
// keeps the monitored list a superset of the watcher registry's keys.
package monitor

import "context"

// AddressMonitor is the upstream provider's webhook-subscription surface.
type AddressMonitor interface {
	// WebhookID identifies the provider-side subscription, if known.
	WebhookID() string

	// MonitoredAddresses returns the addresses currently monitored upstream.
	MonitoredAddresses(ctx context.Context) ([]string, error)

	// AddAddresses starts monitoring the given addresses. Already-monitored
	// addresses are a no-op.
	AddAddresses(ctx context.Context, addresses []string) error

	// RemoveAddresses stops monitoring the given addresses.
	RemoveAddresses(ctx context.Context, addresses []string) error
}
