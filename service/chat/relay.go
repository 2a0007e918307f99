package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/service/natsx"
)

// DeliverSubject carries message frames between gateways. Every gateway
// subscribes; each one delivers to whatever local handles it holds for
// the recipient and ignores its own publications.
const DeliverSubject = "chatty.deliver"

type deliveryEnvelope struct {
	GatewayID   string          `json:"gateway_id"`
	RecipientID string          `json:"recipient_id"`
	Payload     json.RawMessage `json:"payload"`
}

// NatsRelay is the cross-gateway Relay implementation.
type NatsRelay struct {
	nc        *natsx.Client
	gatewayID string
}

func NewNatsRelay(nc *natsx.Client, gatewayID string) *NatsRelay {
	return &NatsRelay{nc: nc, gatewayID: gatewayID}
}

func (r *NatsRelay) PublishDelivery(recipientID string, payload []byte) error {
	env := deliveryEnvelope{
		GatewayID:   r.gatewayID,
		RecipientID: recipientID,
		Payload:     payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal delivery envelope")
	}
	return r.nc.Publish(DeliverSubject, data)
}

// Start subscribes to the delivery subject and feeds frames from other
// gateways into the local router.
func (r *NatsRelay) Start(router *Router) error {
	_, err := r.nc.Subscribe(DeliverSubject, func(data []byte) {
		var env deliveryEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("bad delivery envelope", zap.Error(err))
			return
		}
		if env.GatewayID == r.gatewayID {
			return
		}
		router.DeliverLocal(env.RecipientID, env.Payload)
	})
	return errors.Wrap(err, "subscribe delivery subject")
}
