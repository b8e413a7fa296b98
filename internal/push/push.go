// Package push delivers notifications to registered user endpoints over
// two channels: multicast device tokens and raw web-push subscriptions.
// Sends are best-effort; the only durable outcome is the list of endpoints
// reported permanently dead, which the caller prunes from storage.
package push

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"solana-wallet-notifier/internal/domain"
	"solana-wallet-notifier/internal/observability"
)

// Message is one push payload.
type Message struct {
	Title    string
	Body     string
	DeepLink string
	Data     map[string]string
}

// Subscription is a web-push subscription object as serialized by clients.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// SendResult is the per-token outcome of a multicast send.
type SendResult struct {
	Token     string
	Err       error
	Permanent bool // endpoint will never accept delivery again
}

// MulticastSender sends one message to a batch of opaque device tokens.
type MulticastSender interface {
	Send(ctx context.Context, tokens []string, msg *Message) ([]SendResult, error)
}

// SubscriptionSender sends one message to a single web-push subscription.
// Permanent invalidity is classified from the returned error.
type SubscriptionSender interface {
	Send(ctx context.Context, sub *Subscription, msg *Message) error
}

// Service partitions a recipient's endpoints by channel, dispatches each
// partition through its sender, and reports permanently dead endpoints.
type Service struct {
	multicast MulticastSender
	webPush   SubscriptionSender
	logger    *log.Logger
}

// NewService creates a push delivery service. Either sender may be nil,
// in which case endpoints of that channel are skipped.
func NewService(multicast MulticastSender, webPush SubscriptionSender, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{multicast: multicast, webPush: webPush, logger: logger}
}

// Deliver sends msg to every endpoint and returns the endpoints classified
// as permanently invalid. Transient failures are logged and the endpoint is
// kept; the next activity event retries implicitly. Deliver never fails.
func (s *Service) Deliver(ctx context.Context, endpoints []*domain.PushEndpoint, msg *Message) []*domain.PushEndpoint {
	var multicastEndpoints, webPushEndpoints []*domain.PushEndpoint
	for _, e := range endpoints {
		if e == nil || e.Token == "" {
			continue
		}
		switch channelOf(e) {
		case domain.ChannelWebPush:
			webPushEndpoints = append(webPushEndpoints, e)
		default:
			multicastEndpoints = append(multicastEndpoints, e)
		}
	}

	var dead []*domain.PushEndpoint
	dead = append(dead, s.deliverMulticast(ctx, multicastEndpoints, msg)...)
	dead = append(dead, s.deliverWebPush(ctx, webPushEndpoints, msg)...)
	return dead
}

func (s *Service) deliverMulticast(ctx context.Context, endpoints []*domain.PushEndpoint, msg *Message) []*domain.PushEndpoint {
	if len(endpoints) == 0 || s.multicast == nil {
		return nil
	}

	tokens := make([]string, len(endpoints))
	byToken := make(map[string]*domain.PushEndpoint, len(endpoints))
	for i, e := range endpoints {
		tokens[i] = e.Token
		byToken[e.Token] = e
	}

	results, err := s.multicast.Send(ctx, tokens, msg)
	if err != nil {
		// Whole-batch failure is transient: all endpoints kept.
		s.logger.Printf("multicast send failed for %d tokens: %v", len(tokens), err)
		for range tokens {
			observability.RecordPushFailed(domain.ChannelMulticast)
		}
		return nil
	}

	var dead []*domain.PushEndpoint
	for _, r := range results {
		if r.Err == nil {
			observability.RecordPushSent(domain.ChannelMulticast)
			continue
		}
		observability.RecordPushFailed(domain.ChannelMulticast)
		e, ok := byToken[r.Token]
		if !ok {
			continue
		}
		if r.Permanent {
			dead = append(dead, e)
		} else {
			s.logger.Printf("multicast delivery to user %s failed: %v", e.UserID, r.Err)
		}
	}
	return dead
}

func (s *Service) deliverWebPush(ctx context.Context, endpoints []*domain.PushEndpoint, msg *Message) []*domain.PushEndpoint {
	if len(endpoints) == 0 || s.webPush == nil {
		return nil
	}

	var dead []*domain.PushEndpoint
	for _, e := range endpoints {
		sub, err := parseSubscription(e.Token)
		if err != nil || sub.Endpoint == "" {
			// Malformed subscription will never deliver.
			observability.RecordPushFailed(domain.ChannelWebPush)
			dead = append(dead, e)
			continue
		}
		if err := s.webPush.Send(ctx, sub, msg); err != nil {
			observability.RecordPushFailed(domain.ChannelWebPush)
			if IsPermanent(err) {
				dead = append(dead, e)
			} else {
				s.logger.Printf("web-push delivery to user %s failed: %v", e.UserID, err)
			}
			continue
		}
		observability.RecordPushSent(domain.ChannelWebPush)
	}
	return dead
}

// channelOf resolves an endpoint's delivery channel. A token shaped like a
// subscription object is web-push regardless of its stored tag; otherwise
// the tag decides, and untagged legacy rows default to multicast.
func channelOf(e *domain.PushEndpoint) string {
	if looksLikeSubscription(e.Token) {
		return domain.ChannelWebPush
	}
	if e.Channel == domain.ChannelWebPush {
		return domain.ChannelWebPush
	}
	return domain.ChannelMulticast
}

func looksLikeSubscription(token string) bool {
	if !strings.HasPrefix(strings.TrimSpace(token), "{") {
		return false
	}
	sub, err := parseSubscription(token)
	return err == nil && sub.Endpoint != ""
}

func parseSubscription(token string) (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
