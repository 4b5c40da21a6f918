package targets

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// sceneTrigger is sent with scene activation requests.
const sceneTrigger = "sequence"

// Transition is a named custom transition driven over MQTT. Each half
// publishes one message and then holds for a fixed time; Skip cuts the
// hold short.
//
// A Transition is bound to one step and used only from the playback
// goroutine.
type Transition struct {
	name   string
	client MQTTClient
	logger Logger

	inTopic, outTopic     string
	inPayload, outPayload []byte
	hold                  time.Duration

	skipped bool
}

// NewTransition builds a transition from its configuration.
func NewTransition(cfg config.TransitionConfig, client MQTTClient, logger Logger) *Transition {
	if logger == nil {
		logger = noopLogger{}
	}
	t := &Transition{name: cfg.Name, client: client, logger: logger, hold: cfg.Hold}

	switch cfg.Type {
	case config.TransitionScene:
		if cfg.InScene != "" {
			t.inTopic = mqtt.Topics{}.SceneActivate(cfg.InScene)
			t.inPayload = scenePayload(cfg.Name)
		}
		if cfg.OutScene != "" {
			t.outTopic = mqtt.Topics{}.SceneActivate(cfg.OutScene)
			t.outPayload = scenePayload(cfg.Name)
		}
	default:
		if cfg.InPayload != "" {
			t.inTopic = cfg.Topic
			t.inPayload = []byte(cfg.InPayload)
		}
		if cfg.OutPayload != "" {
			t.outTopic = cfg.Topic
			t.outPayload = []byte(cfg.OutPayload)
		}
	}
	return t
}

// Name returns the configured name.
func (t *Transition) Name() string { return t.name }

// In publishes the entry message and holds.
func (t *Transition) In() sequence.Task {
	return t.run(t.inTopic, t.inPayload)
}

// Out publishes the exit message and holds.
func (t *Transition) Out() sequence.Task {
	return t.run(t.outTopic, t.outPayload)
}

// Skip ends the current hold at the next tick.
func (t *Transition) Skip() { t.skipped = true }

func (t *Transition) run(topic string, payload []byte) sequence.Task {
	t.skipped = false
	if topic != "" && t.client != nil {
		if err := t.client.Publish(topic, payload, commandQoS, false); err != nil {
			t.logger.Warn("transition publish failed", "transition", t.name, "topic", topic, "error", err)
		}
	}

	var elapsed time.Duration
	return sequence.TaskFunc(func(dt time.Duration) bool {
		elapsed += dt
		return t.skipped || elapsed >= t.hold
	})
}

func scenePayload(transition string) []byte {
	data, _ := json.Marshal(map[string]string{ //nolint:errcheck // map of strings always marshals
		"source":       commandSource,
		"trigger_type": sceneTrigger,
		"trigger_id":   transition,
	})
	return data
}
