package chat

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"chatty/service/storage"
)

// Wire events pushed to connected clients. The names are the contract
// the frontend listens on.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Frame is the envelope for every server-to-client push.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// BuildOnlineUsers encodes a full roster snapshot. The set is sorted so
// identical rosters encode identically.
func BuildOnlineUsers(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	sort.Strings(users)
	return buildFrame(EventOnlineUsers, users)
}

// BuildNewMessage encodes a persisted message for push delivery.
func BuildNewMessage(msg *storage.Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}
	return buildFrame(EventNewMessage, msg)
}

func buildFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s data", event)
	}
	payload, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s frame", event)
	}
	return payload, nil
}

// ParseFrame decodes a frame envelope (used by tests and the relay).
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errors.New("frame missing event")
	}
	return &f, nil
}
