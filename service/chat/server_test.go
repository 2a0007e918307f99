package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatty/service/storage"
	"chatty/tools/security"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, security.Options) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtOpts := security.DefaultOptions([]byte("test-secret"))
	srv := NewServer(Options{JWT: jwtOpts, SendQueueSize: 16, FanoutWorkers: 1, FanoutQueue: 16}, nil, nil)

	r := gin.New()
	r.GET("/ws", srv.HandleWS)
	ts := httptest.NewServer(r)

	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown()
	})
	return srv, ts, jwtOpts
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitRoster reads frames until a roster matching want arrives.
func waitRoster(t *testing.T, conn *websocket.Conn, want []string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		f, err := ParseFrame(raw)
		require.NoError(t, err)
		if f.Event != EventOnlineUsers {
			continue
		}
		var users []string
		require.NoError(t, json.Unmarshal(f.Data, &users))
		if equalRoster(users, want) {
			return
		}
	}
	t.Fatalf("never received roster %v", want)
}

func equalRoster(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestHandleWSRejectsAnonymous(t *testing.T) {
	r := require.New(t)
	_, ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	r.Error(err)
	r.NotNil(resp)
	r.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWSRejectsBadToken(t *testing.T) {
	r := require.New(t)
	_, ts, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	r.Error(err)
	r.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestPresenceLifecycleOverTheWire(t *testing.T) {
	srv, ts, jwtOpts := newTestServer(t)

	aliceID := primitive.NewObjectID().Hex()
	bobID := primitive.NewObjectID().Hex()
	sorted := []string{aliceID, bobID}
	if sorted[0] > sorted[1] {
		sorted[0], sorted[1] = sorted[1], sorted[0]
	}

	aliceTok, _, err := security.Generate(jwtOpts, aliceID)
	require.NoError(t, err)
	bobTok, _, err := security.Generate(jwtOpts, bobID)
	require.NoError(t, err)

	alice := dialWS(t, ts, aliceTok)
	waitRoster(t, alice, []string{aliceID})

	bob := dialWS(t, ts, bobTok)
	waitRoster(t, bob, sorted)
	waitRoster(t, alice, sorted)

	// bob leaves; alice sees the shrunken roster
	require.NoError(t, bob.Close())
	waitRoster(t, alice, []string{aliceID})
	require.Eventually(t, func() bool {
		return !srv.Registry().Online(bobID)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestMultiDevicePresenceOverTheWire(t *testing.T) {
	srv, ts, jwtOpts := newTestServer(t)

	aliceID := primitive.NewObjectID().Hex()
	tok, _, err := security.Generate(jwtOpts, aliceID)
	require.NoError(t, err)

	phone := dialWS(t, ts, tok)
	waitRoster(t, phone, []string{aliceID})

	laptop := dialWS(t, ts, tok)
	waitRoster(t, laptop, []string{aliceID})
	require.Len(t, srv.Registry().ListByUser(aliceID), 2)

	// one device drops, the user stays online
	require.NoError(t, laptop.Close())
	require.Eventually(t, func() bool {
		return len(srv.Registry().ListByUser(aliceID)) == 1
	}, 3*time.Second, 20*time.Millisecond)
	require.True(t, srv.Registry().Online(aliceID))
	waitRoster(t, phone, []string{aliceID})
}

func TestRoutedMessageReachesRecipientSocket(t *testing.T) {
	r := require.New(t)
	srv, ts, jwtOpts := newTestServer(t)

	recipientID := primitive.NewObjectID()
	tok, _, err := security.Generate(jwtOpts, recipientID.Hex())
	r.NoError(err)

	conn := dialWS(t, ts, tok)
	waitRoster(t, conn, []string{recipientID.Hex()})

	msg := &storage.Message{
		ID:          primitive.NewObjectID(),
		SenderID:    primitive.NewObjectID(),
		RecipientID: recipientID,
		Text:        "hello over the wire",
		CreatedAt:   time.Now().UTC(),
	}
	srv.Router().Route(msg)

	deadline := time.Now().Add(3 * time.Second)
	for {
		r.True(time.Now().Before(deadline), "newMessage frame never arrived")
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, raw, err := conn.ReadMessage()
		r.NoError(err)

		f, err := ParseFrame(raw)
		r.NoError(err)
		if f.Event != EventNewMessage {
			continue
		}
		var got storage.Message
		r.NoError(json.Unmarshal(f.Data, &got))
		r.Equal(msg.ID, got.ID)
		r.Equal(msg.Text, got.Text)
		return
	}
}
