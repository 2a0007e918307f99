package natsx

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Config for the optional NATS connection used by the delivery relay.
type Config struct {
	URL  string
	Name string
}

type Client struct {
	nc *nats.Conn
}

// Dial connects with infinite reconnects; the relay is best effort and a
// flapping broker must not take the gateway down.
func Dial(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return &Client{nc: nc}, nil
}

func (c *Client) Close() {
	if c == nil || c.nc == nil {
		return
	}
	c.nc.Close()
}

func (c *Client) Publish(subject string, data []byte) error {
	if c == nil || c.nc == nil {
		return errors.New("nats client not connected")
	}
	return c.nc.Publish(subject, data)
}

// Subscribe registers a plain (non-queue) subscription: every gateway
// must see every relayed frame.
func (c *Client) Subscribe(subject string, h func(data []byte)) (*nats.Subscription, error) {
	if c == nil || c.nc == nil {
		return nil, errors.New("nats client not connected")
	}
	return c.nc.Subscribe(subject, func(m *nats.Msg) {
		h(m.Data)
	})
}
