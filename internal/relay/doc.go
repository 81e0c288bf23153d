// Package relay maintains the single WebSocket link between this instance
// and the hub, and relays domain events across it in both directions.
//
// The link speaks the pusher protocol. A Supervisor owns the socket and its
// read loop: it dials with bounded exponential backoff, answers pings,
// performs the channel-authorization handshake for the selected tenant's
// private channel and dispatches inbound domain frames to a Store. Outbound
// frames that cannot be written immediately are handed to a disk-backed
// queue and flushed, in order, after the next successful subscription.
//
// Relay is the facade the rest of the program uses. Its operations never
// panic and never return errors for conditions the caller cannot act on:
//
//	r, err := relay.New(relay.Options{...})
//	res := r.Login(ctx, "dealer@example.com", "secret")
//	if res.Status == relay.LoginSuccess {
//	    r.SelectTenant(ctx, res.Tenants[0].ID)
//	}
//	sent := r.SendDomainEvent(ctx, "", relay.PaymentSucceeded{PurchaseUUID: id})
//	// sent == false means queued for later delivery, not failed.
//
// Connection states:
//
//	Idle → Connecting → AwaitingAuth → Subscribing → Subscribed
//	                ↘ Disconnected (backoff) ↗      ↘ Disconnected
//	Connecting exhausts its attempts → OfflineMode
//	any → LoggedOut on Logout
package relay
