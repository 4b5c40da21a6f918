package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the sequencer.
//
// Device-facing topics use the flat scheme graylogic/{category}/{kind}/{id},
// the same shape the protocol bridges use, so a sequencer target is
// addressed exactly like any other bridge device.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixCore is the base for topics published by Core services.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Target kinds used in command and state topics.
const (
	KindSurface   = "surface"
	KindAnimator  = "animator"
	KindMedia     = "media"
	KindSequencer = "sequencer"
)

// Topics provides builders for sequencer MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.TargetCommand(mqtt.KindSurface, "lobby-screen")
//	// Returns: "graylogic/command/surface/lobby-screen"
type Topics struct{}

// TargetCommand returns the topic commands for a target are published on.
//
// Example: graylogic/command/animator/lobby-rig
func (Topics) TargetCommand(kind, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, kind, id)
}

// TargetState returns the topic a target reports its state on.
//
// Example: graylogic/state/media/lobby-video
func (Topics) TargetState(kind, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, kind, id)
}

// AllTargetStates returns a pattern matching the state of every target of
// one kind.
//
// Pattern: graylogic/state/animator/+
func (Topics) AllTargetStates(kind string) string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, kind)
}

// SequencerCommand returns the command ingress topic of one sequence.
//
// Example: graylogic/command/sequencer/lobby-intro
func (t Topics) SequencerCommand(sequenceID string) string {
	return t.TargetCommand(KindSequencer, sequenceID)
}

// AllSequencerCommands returns a pattern matching command ingress for every
// sequence.
//
// Pattern: graylogic/command/sequencer/+
func (Topics) AllSequencerCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, KindSequencer)
}

// SequenceEvent returns the topic lifecycle events of one sequence are
// published on.
//
// Example: graylogic/core/sequence/lobby-intro/event
func (Topics) SequenceEvent(sequenceID string) string {
	return fmt.Sprintf("%s/sequence/%s/event", TopicPrefixCore, sequenceID)
}

// SceneActivate returns the topic Core listens on for scene activation
// requests.
//
// Example: graylogic/core/scene/house-lights/activate
func (Topics) SceneActivate(sceneID string) string {
	return fmt.Sprintf("%s/scene/%s/activate", TopicPrefixCore, sceneID)
}

// SystemStatus returns the service status topic carrying online, offline
// and last-will messages.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// LastSegment returns the final level of a topic, which is the target or
// sequence ID for every topic built here.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
