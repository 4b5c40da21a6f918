package targets

import (
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// stateQoS is used for state subscriptions.
const stateQoS byte = 1

// Info describes one configured target.
type Info struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
}

var (
	_ schedule.Resolver    = (*Directory)(nil)
	_ schedule.Surface     = (*Surface)(nil)
	_ sequence.Animator    = (*Animator)(nil)
	_ sequence.MediaPlayer = (*MediaPlayer)(nil)
	_ sequence.Transition  = (*Transition)(nil)
	_ sequence.Skipper     = (*Transition)(nil)
)

// Directory holds every configured target and transition and resolves
// them for schedule.Build.
//
// Targets are shared by every loaded sequence. Transitions are created
// per lookup so each step owns its hold state.
type Directory struct {
	client MQTTClient
	logger Logger

	info        []Info
	surfaces    map[string]*Surface
	animators   map[string]*Animator
	players     map[string]*MediaPlayer
	transitions map[string]config.TransitionConfig
}

// NewDirectory creates the configured targets. A nil client gives targets
// that cache commands without publishing, which is enough to build and
// validate definitions offline.
func NewDirectory(client MQTTClient, cfg config.SequencerConfig, logger Logger) (*Directory, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Directory{
		client:      client,
		logger:      logger,
		surfaces:    make(map[string]*Surface),
		animators:   make(map[string]*Animator),
		players:     make(map[string]*MediaPlayer),
		transitions: make(map[string]config.TransitionConfig, len(cfg.Transitions)),
	}

	for _, t := range cfg.Targets {
		if d.exists(t.ID) {
			return nil, fmt.Errorf("target %q declared twice", t.ID)
		}
		switch t.Kind {
		case config.TargetSurface:
			d.surfaces[t.ID] = NewSurface(t.ID, client, logger)
		case config.TargetAnimator:
			d.animators[t.ID] = NewAnimator(t.ID, client, logger)
		case config.TargetMedia:
			d.players[t.ID] = NewMediaPlayer(t.ID, client, logger)
		default:
			return nil, fmt.Errorf("target %q: unknown kind %q", t.ID, t.Kind)
		}
		d.info = append(d.info, Info{ID: t.ID, Kind: t.Kind, Name: t.Name})
	}
	sort.Slice(d.info, func(i, j int) bool { return d.info[i].ID < d.info[j].ID })

	for _, tr := range cfg.Transitions {
		if _, ok := d.transitions[tr.Name]; ok {
			return nil, fmt.Errorf("transition %q declared twice", tr.Name)
		}
		d.transitions[tr.Name] = tr
	}

	return d, nil
}

func (d *Directory) exists(id string) bool {
	_, s := d.surfaces[id]
	_, a := d.animators[id]
	_, p := d.players[id]
	return s || a || p
}

// Subscribe subscribes to the state topics of every target kind. State
// for unknown IDs is ignored.
func (d *Directory) Subscribe() error {
	if d.client == nil {
		return nil
	}
	topics := mqtt.Topics{}

	subs := []struct {
		kind    string
		handler mqtt.MessageHandler
	}{
		{mqtt.KindSurface, func(topic string, payload []byte) error {
			if s, ok := d.surfaces[mqtt.LastSegment(topic)]; ok {
				return s.handleState(topic, payload)
			}
			return nil
		}},
		{mqtt.KindAnimator, func(topic string, payload []byte) error {
			if a, ok := d.animators[mqtt.LastSegment(topic)]; ok {
				return a.handleState(topic, payload)
			}
			return nil
		}},
		{mqtt.KindMedia, func(topic string, payload []byte) error {
			if p, ok := d.players[mqtt.LastSegment(topic)]; ok {
				return p.handleState(topic, payload)
			}
			return nil
		}},
	}

	for _, s := range subs {
		if err := d.client.Subscribe(topics.AllTargetStates(s.kind), stateQoS, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s state: %w", s.kind, err)
		}
	}
	d.logger.Info("subscribed to target state", "targets", len(d.info), "transitions", len(d.transitions))
	return nil
}

// Surface resolves a surface by ID.
func (d *Directory) Surface(id string) (schedule.Surface, bool) {
	s, ok := d.surfaces[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// Animator resolves an animator by ID.
func (d *Directory) Animator(id string) (sequence.Animator, bool) {
	a, ok := d.animators[id]
	if !ok {
		return nil, false
	}
	return a, true
}

// MediaPlayer resolves a media player by ID.
func (d *Directory) MediaPlayer(id string) (sequence.MediaPlayer, bool) {
	p, ok := d.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// Transition returns a new instance of a named transition.
func (d *Directory) Transition(name string) (sequence.Transition, bool) {
	cfg, ok := d.transitions[name]
	if !ok {
		return nil, false
	}
	return NewTransition(cfg, d.client, d.logger), true
}

// Targets lists the configured targets ordered by ID.
func (d *Directory) Targets() []Info {
	out := make([]Info, len(d.info))
	copy(out, d.info)
	return out
}

// TransitionNames lists the configured transitions in sorted order.
func (d *Directory) TransitionNames() []string {
	names := make([]string, 0, len(d.transitions))
	for name := range d.transitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
