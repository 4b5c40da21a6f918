package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
)

// Remote command actions.
const (
	ActionPlay    = "play"
	ActionSkip    = "skip"
	ActionSkipAll = "skip_all"
)

const (
	// commandQoS is used for the command subscription.
	commandQoS byte = 1

	// commandTimeout bounds the handling of one remote command.
	commandTimeout = 5 * time.Second
)

// Subscriber is the interface for subscribing to MQTT topics.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// CommandRecorder observes remote commands after they are handled. err is
// the runner's answer, nil on success.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, action, ref string, err error)
}

// commandMessage is the payload accepted on
// graylogic/command/sequencer/{id}.
type commandMessage struct {
	Action string `json:"action"`
}

// SubscribeCommands accepts play, skip and skip_all commands for loaded
// sequences over MQTT. The last topic level is the sequence ID or slug.
func (r *Runner) SubscribeCommands(client Subscriber) error {
	topic := mqtt.Topics{}.AllSequencerCommands()
	if err := client.Subscribe(topic, commandQoS, r.handleCommand); err != nil {
		return fmt.Errorf("subscribing to sequencer commands: %w", err)
	}
	r.logger.Info("accepting sequencer commands", "topic", topic)
	return nil
}

func (r *Runner) handleCommand(topic string, payload []byte) error {
	ref := mqtt.LastSegment(topic)

	var msg commandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch msg.Action {
	case ActionPlay:
		_, err = r.Play(ctx, ref, schedule.TriggerMQTT)
	case ActionSkip:
		_, err = r.Skip(ctx, ref)
	case ActionSkipAll:
		err = r.SkipAll(ctx, ref)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, msg.Action)
	}
	if r.commands != nil {
		r.commands.RecordCommand(ctx, msg.Action, ref, err)
	}

	switch {
	case err == nil:
		r.logger.Debug("sequencer command handled", "sequence", ref, "action", msg.Action)
		return nil
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotRunning):
		// Buttons get pressed twice.
		r.logger.Debug("sequencer command ignored", "sequence", ref, "action", msg.Action, "reason", err)
		return nil
	default:
		return fmt.Errorf("sequencer command %s on %s: %w", msg.Action, ref, err)
	}
}
