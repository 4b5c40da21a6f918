package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-sequencer/internal/auth"
	"github.com/nerrad567/gray-logic-sequencer/internal/playback"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
)

// dialWS obtains a ticket and opens a WebSocket connection to ts.
func dialWS(t *testing.T, env *testEnv, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	w := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", auth.RoleViewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ws-ticket status = %d", w.Code)
	}
	var resp struct {
		Ticket string `json:"ticket"`
	}
	decode(t, w, &resp)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + resp.Ticket
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup
	return conn
}

// readMessage reads the next message within testTimeout.
func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testTimeout)) //nolint:errcheck // Test deadline
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_ReceivesSubscribedEvents(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	def := env.createSequence(t, "ws-show", 0)
	conn := dialWS(t, env, ts)

	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{string(playback.EventFinished)}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	ctx := context.Background()
	if err := env.runner.Load(ctx, def, schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := env.runner.Play(ctx, def.ID, schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// Loaded and started events are not subscribed, so the first message
	// is the finish.
	msg := readMessage(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != string(playback.EventFinished) {
		t.Fatalf("event = %+v", msg)
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var ev playback.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.SequenceID != def.ID || ev.Status != string(schedule.StatusCompleted) {
		t.Errorf("event payload = %+v", ev)
	}
}

func TestWebSocket_Messages(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	conn := dialWS(t, env, ts)

	tests := []struct {
		name     string
		send     any
		wantType string
		wantText string
	}{
		{"ping", WSMessage{Type: WSTypePing, ID: "p1"}, WSTypePong, ""},
		{"unknown channel", WSMessage{Type: WSTypeSubscribe, Payload: WSSubscribePayload{Channels: []string{"device.state"}}}, WSTypeError, "unknown channel: device.state"},
		{"unknown type", WSMessage{Type: "dance"}, WSTypeError, "unknown message type: dance"},
		{"unsubscribe", WSMessage{Type: WSTypeUnsubscribe, Payload: WSSubscribePayload{Channels: []string{"sequence.started"}}}, WSTypeResponse, "unsubscribed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteJSON(tt.send); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readMessage(t, conn)
			if msg.Type != tt.wantType {
				t.Fatalf("type = %q, want %q", msg.Type, tt.wantType)
			}
			if tt.wantText == "" {
				return
			}
			data, _ := json.Marshal(msg.Payload) //nolint:errcheck // Decoded from JSON
			if !strings.Contains(string(data), tt.wantText) {
				t.Errorf("payload = %s, want %q", data, tt.wantText)
			}
		})
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v", msg)
	}
}

func TestWebSocket_RequiresTicket(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	for _, url := range []string{base, base + "?ticket=forged"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("dial %s succeeded", url)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("dial %s: response = %v, want 401", url, resp)
		}
	}
}

func TestHub_CountsClients(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	conn := dialWS(t, env, ts)
	waitFor(t, "registration", func() bool { return env.srv.Hub().ClientCount() == 1 })

	conn.Close() //nolint:errcheck // Disconnect under test
	waitFor(t, "unregistration", func() bool { return env.srv.Hub().ClientCount() == 0 })
}
