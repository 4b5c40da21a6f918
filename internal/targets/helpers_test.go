package targets

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
}

// mockMQTT records publishes and holds subscription handlers so tests can
// deliver state messages.
type mockMQTT struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic: topic, payload: payload, qos: qos})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]published, len(m.published))
	copy(out, m.published)
	return out
}

// deliver sends a state payload through the wildcard handler for kind.
func (m *mockMQTT) deliver(t *testing.T, kind, id string, v any) {
	t.Helper()
	m.mu.Lock()
	h, ok := m.handlers[mqtt.Topics{}.AllTargetStates(kind)]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s state", kind)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	if err := h(mqtt.Topics{}.TargetState(kind, id), payload); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

// decodeCommand unmarshals a published command.
func decodeCommand(t *testing.T, p published) command {
	t.Helper()
	var c command
	if err := json.Unmarshal(p.payload, &c); err != nil {
		t.Fatalf("unmarshal command: %v", err)
	}
	return c
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
	debug []string
}

func (l *mockLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	l.debug = append(l.debug, msg)
	l.mu.Unlock()
}
func (l *mockLogger) Info(string, ...any) {}
func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
func (l *mockLogger) Error(string, ...any) {}
