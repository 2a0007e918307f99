package chat

import (
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/service/storage"
)

// Relay forwards a delivery frame to sibling gateways. Implemented by
// NatsRelay; nil when the server runs as a single node.
type Relay interface {
	PublishDelivery(recipientID string, payload []byte) error
}

// Router implements push-if-present delivery: a newly persisted message
// is pushed to every live connection the recipient holds here, and
// relayed to other gateways when one is configured. An offline
// recipient needs no action at all; the message is already durable and
// surfaces on their next conversation query.
type Router struct {
	reg   *Registry
	relay Relay
	evict func(*Client)
}

// NewRouter wires the router. evict is called for a handle whose push
// failed; the server unregisters it there, which also re-announces
// presence. A nil evict leaves dead handles to the read loop's cleanup.
func NewRouter(reg *Registry, relay Relay, evict func(*Client)) *Router {
	return &Router{reg: reg, relay: relay, evict: evict}
}

// Route delivers one persisted message. Push failures never propagate:
// persistence already succeeded, which is the durability contract, so
// every error here is logged and scoped to the one handle it hit.
func (r *Router) Route(msg *storage.Message) {
	payload, err := BuildNewMessage(msg)
	if err != nil {
		logger.Error("encode message frame", zap.Error(err))
		return
	}

	recipient := msg.RecipientID.Hex()
	for _, c := range r.reg.ListByUser(recipient) {
		if c.Enqueue(payload) {
			continue
		}
		logger.Warn("push failed, evicting handle",
			zap.String("user_id", c.UserID),
			zap.String("conn_id", c.ConnID))
		if r.evict != nil {
			r.evict(c)
		}
	}

	if r.relay != nil {
		if err := r.relay.PublishDelivery(recipient, payload); err != nil {
			logger.Warn("relay publish failed", zap.Error(err))
		}
	}
}

// DeliverLocal pushes an already-encoded frame to the recipient's local
// handles; used by the relay consumer for frames from other gateways.
func (r *Router) DeliverLocal(recipientID string, payload []byte) {
	for _, c := range r.reg.ListByUser(recipientID) {
		if c.Enqueue(payload) {
			continue
		}
		logger.Warn("relay push failed, evicting handle",
			zap.String("user_id", c.UserID),
			zap.String("conn_id", c.ConnID))
		if r.evict != nil {
			r.evict(c)
		}
	}
}
