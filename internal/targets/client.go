package targets

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
)

// commandQoS is used for every target command.
const commandQoS byte = 1

// commandSource identifies the sequencer in command payloads.
const commandSource = "sequencer"

// MQTTClient is the subset of the MQTT client used by targets.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by targets.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// command is the payload published to a target.
type command struct {
	ID         string         `json:"id"`
	TargetID   string         `json:"target_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Source     string         `json:"source"`
}

// publisher sends commands for one target.
type publisher struct {
	client MQTTClient
	logger Logger
	kind   string
	id     string
}

// send publishes a command. Failures are logged at level; drivers cannot
// act on them and the next command supersedes the lost one.
func (p publisher) send(name string, params map[string]any, quiet bool) {
	if p.client == nil {
		return
	}

	payload, err := json.Marshal(command{
		ID:         newCommandID(),
		TargetID:   p.id,
		Command:    name,
		Parameters: params,
		Source:     commandSource,
	})
	if err != nil {
		p.logger.Error("marshalling target command", "target", p.id, "command", name, "error", err)
		return
	}

	topic := mqtt.Topics{}.TargetCommand(p.kind, p.id)
	if err := p.client.Publish(topic, payload, commandQoS, false); err != nil {
		log := p.logger.Warn
		if quiet {
			log = p.logger.Debug
		}
		log("target command failed", "target", p.id, "command", name, "error", err)
	}
}

// decodeState unmarshals a state payload into v.
func decodeState(topic string, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding state on %s: %w", topic, err)
	}
	return nil
}

func newCommandID() string {
	return uuid.New().String()
}
