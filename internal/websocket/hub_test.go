package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/utils"
)

const testSecret = "ws-test-secret"

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, testSecret, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	pair, err := utils.GenerateTokens(&models.User{ID: userID}, utils.TokenConfig{
		Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + pair.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ConnectionCount(userID) == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %s has %d connections, want %d", userID, hub.ConnectionCount(userID), n)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("invalid event %s: %v", data, err)
	}
	return ev
}

func TestServeWsRejectsMissingToken(t *testing.T) {
	_, srv := startHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestPingPong(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "u1")
	waitForConnections(t, hub, "u1", 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != EventPong {
		t.Errorf("expected PONG, got %s", ev.Type)
	}
}

func TestSendToUserReachesEveryConnection(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv, "u1")
	b := dial(t, srv, "u1")
	other := dial(t, srv, "u2")
	waitForConnections(t, hub, "u1", 2)
	waitForConnections(t, hub, "u2", 1)

	if n := hub.SendToUser("u1", NewEvent(EventNotificationCreated, map[string]string{"id": "n1"})); n != 2 {
		t.Errorf("SendToUser delivered to %d connections, want 2", n)
	}
	for _, c := range []*websocket.Conn{a, b} {
		if ev := readEvent(t, c); ev.Type != EventNotificationCreated {
			t.Errorf("unexpected event %s", ev.Type)
		}
	}

	// u2 must not have received the u1 event; the next thing it sees is the broadcast
	hub.Broadcast(NewEvent(EventDocumentStatusChanged, nil))
	if ev := readEvent(t, other); ev.Type != EventDocumentStatusChanged {
		t.Errorf("u2 expected broadcast, got %s", ev.Type)
	}

	users := hub.ConnectedUsers()
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Errorf("ConnectedUsers = %v", users)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "u1")
	waitForConnections(t, hub, "u1", 1)

	conn.Close()
	waitForConnections(t, hub, "u1", 0)
	if len(hub.ConnectedUsers()) != 0 {
		t.Errorf("expected no connected users, got %v", hub.ConnectedUsers())
	}
}

func TestSendAfterShutdownIsDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{hub: hub, send: make(chan []byte, sendBuffer), ID: "c1", UserID: "u1"}
	hub.register <- client
	waitForConnections(t, hub, "u1", 1)

	cancel()
	<-stopped

	if client.SendJSON(NewEvent(EventPong, nil)) {
		t.Error("SendJSON after shutdown should report the message as dropped")
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after shutdown")
	}
}

func TestBrokerHandleDeliversLocally(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "u1")
	waitForConnections(t, hub, "u1", 1)

	b := NewBroker(nil, "test", hub, zerolog.Nop())
	payload, _ := json.Marshal(envelope{UserIDs: []string{"u1"}, Event: NewEvent(EventNotificationCreated, nil)})
	b.handle(string(payload))

	if ev := readEvent(t, conn); ev.Type != EventNotificationCreated {
		t.Errorf("unexpected event %s", ev.Type)
	}
}
