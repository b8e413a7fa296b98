package domain

// Push channel tags. Endpoints registered by current clients carry an
// explicit tag; legacy records may be untagged and are classified
// structurally by the delivery layer.
const (
	ChannelMulticast = "multicast" // opaque device token, multicast-capable API
	ChannelWebPush   = "webpush"   // serialized push-subscription object
)

// PushEndpoint is one registered push destination for a user. Created by
// client registration (out of scope); deleted by the pipeline when a send
// reports it permanently invalid.
type PushEndpoint struct {
	UserID    string
	Token     string // opaque token or serialized subscription JSON
	Channel   string // ChannelMulticast, ChannelWebPush, or "" for legacy rows
	CreatedAt int64  // Unix timestamp in milliseconds
}
