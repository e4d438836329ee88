package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// newGridServer runs a websocket server that answers every message through
// respond, echoing what a grid backend would send.
func newGridServer(t *testing.T, respond func(msg Message) map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var msg Message
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			reply, _ := json.Marshal(map[string]any{"type": msg.Type, "data": respond(msg)})
			if err := ws.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestSendMessageRoundTrip(t *testing.T) {
	addr := newGridServer(t, func(msg Message) map[string]any {
		return map[string]any{"status": "success", "echo": msg.Data["auth_token"]}
	})

	conn := NewConn(addr, false, time.Second)
	defer conn.Close()

	resp, err := conn.SendMessage(Message{
		Type: "federated/authenticate",
		Data: map[string]any{"auth_token": "tok123"},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.Type != "federated/authenticate" {
		t.Errorf("resp.Type = %q, want %q", resp.Type, "federated/authenticate")
	}
	if resp.Data["status"] != "success" {
		t.Errorf("status = %v, want success", resp.Data["status"])
	}
	if resp.Data["echo"] != "tok123" {
		t.Errorf("echo = %v, want tok123", resp.Data["echo"])
	}
}

func TestSendMessageServerError(t *testing.T) {
	addr := newGridServer(t, func(msg Message) map[string]any {
		return map[string]any{"error": "Invalid JSON format/fields"}
	})

	conn := NewConn(addr, false, time.Second)
	defer conn.Close()

	_, err := conn.SendMessage(Message{Type: "federated/cycle-request", Data: map[string]any{}})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remote.Message != "Invalid JSON format/fields" {
		t.Errorf("remote.Message = %q, want the server's error value", remote.Message)
	}
	if remote.Status != 0 {
		t.Errorf("remote.Status = %d, want 0 on the persistent-connection path", remote.Status)
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	conn := NewConn("127.0.0.1:1", false, time.Second)
	if err := conn.Close(); err != nil {
		t.Errorf("Close without connect: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestCloseTwiceAfterUse(t *testing.T) {
	addr := newGridServer(t, func(msg Message) map[string]any {
		return map[string]any{"status": "success"}
	})

	conn := NewConn(addr, false, time.Second)
	if _, err := conn.SendMessage(Message{Type: "federated/authenticate", Data: map[string]any{}}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestReconnectAfterClose(t *testing.T) {
	addr := newGridServer(t, func(msg Message) map[string]any {
		return map[string]any{"status": "success"}
	})

	conn := NewConn(addr, false, time.Second)
	if _, err := conn.SendMessage(Message{Type: "federated/authenticate", Data: map[string]any{}}); err != nil {
		t.Fatalf("first SendMessage: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// next send must redial transparently
	if _, err := conn.SendMessage(Message{Type: "federated/report", Data: map[string]any{}}); err != nil {
		t.Fatalf("SendMessage after Close: %v", err)
	}
	conn.Close()
}

func TestDialFailure(t *testing.T) {
	conn := NewConn("127.0.0.1:1", false, 200*time.Millisecond)
	defer conn.Close()

	if _, err := conn.SendMessage(Message{Type: "federated/authenticate", Data: map[string]any{}}); err == nil {
		t.Fatal("expected dial error, got nil")
	}
}
