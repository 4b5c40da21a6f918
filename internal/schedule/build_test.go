package schedule

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

const tick = 20 * time.Millisecond

// tickUntil advances seq until cond holds or n ticks have elapsed.
func tickUntil(seq *sequence.Sequencer, n int, cond func() bool) bool {
	for i := 0; i < n; i++ {
		if cond() {
			return true
		}
		seq.Tick(tick)
	}
	return cond()
}

func TestBuild_PlaysThroughTargets(t *testing.T) {
	r := newFakeResolver()
	seq := Build(testDefinition("seq-1", "Lobby Intro"), r, nil)

	if got := len(seq.Groups()); got != 2 {
		t.Fatalf("groups = %d, want 2", got)
	}

	screen := r.surfaces["lobby-screen"]
	player := r.players["lobby-video"]
	if !player.Prepared() {
		t.Error("media with prepare_on_setup should be prepared at build time")
	}
	if screen.Active() {
		t.Error("subject should be hidden before the cycle")
	}

	seq.Play()
	if !screen.Active() {
		t.Error("subject should be shown when the enter transition starts")
	}

	// Enter fade (1s) plus wait (2s) plus exit fade (1s).
	if !tickUntil(seq, 300, func() bool { return seq.Cursor() == 1 }) {
		t.Fatalf("first group did not finish, status %+v", seq.Status())
	}
	if screen.Level() != 0 {
		t.Errorf("level after exit fade = %v, want 0", screen.Level())
	}
	if screen.Active() {
		t.Error("subject should be hidden after the exit transition")
	}

	if !tickUntil(seq, 10, func() bool { return player.Playing() }) {
		t.Fatal("media phase never started playback")
	}
	player.playing = false
	if !tickUntil(seq, 10, func() bool { return seq.Finished() }) {
		t.Fatalf("sequence did not finish, status %+v", seq.Status())
	}
}

func TestBuild_DefaultFades(t *testing.T) {
	enter := tweenConfig(PhaseDef{Kind: sequence.KindTween}, slotEnter)
	exit := tweenConfig(PhaseDef{Kind: sequence.KindTween}, slotExit)

	if enter.Curve.Evaluate(0) != 0 || enter.Curve.End() != 1 {
		t.Errorf("enter fade = %+v, want 0 to 1", enter.Curve)
	}
	if exit.Curve.Evaluate(0) != 1 || exit.Curve.End() != 0 {
		t.Errorf("exit fade = %+v, want 1 to 0", exit.Curve)
	}
	if enter.Curve.Duration() != 1 || enter.Speed != 1 {
		t.Errorf("default fade duration = %v speed = %v, want 1 and 1", enter.Curve.Duration(), enter.Speed)
	}

	set := tweenConfig(PhaseDef{Kind: sequence.KindTween, Mode: sequence.TweenSet, Value: 0.4}, slotMain)
	if set.Mode != sequence.TweenSet || set.Value != 0.4 {
		t.Errorf("set tween = %+v", set)
	}

	custom := tweenConfig(PhaseDef{
		Kind:  sequence.KindTween,
		Curve: []sequence.Keyframe{{Time: 0, Value: 0.2}, {Time: 3, Value: 0.8}},
		Speed: 2,
	}, slotEnter)
	if custom.Curve.Duration() != 3 || custom.Value != 0.8 || custom.Speed != 2 {
		t.Errorf("custom tween = %+v", custom)
	}
}

func TestBuild_UnresolvedSurface(t *testing.T) {
	tests := []struct {
		name        string
		removeEmpty bool
		wantSteps   int
	}{
		{"pruned", true, 1},
		{"kept", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testDefinition("seq-1", "Lobby Intro")
			missing := def.Groups[0].Steps[0]
			missing.Name = "ghost"
			missing.Surface = "missing-screen"
			def.Groups[0].Steps = append(def.Groups[0].Steps, missing)
			def.RemoveEmptyReferences = tt.removeEmpty
			logger := &mockLogger{}

			seq := Build(def, newFakeResolver(), logger)

			if got := len(seq.Groups()); got != 2 {
				t.Fatalf("groups = %d, want 2", got)
			}
			if got := len(seq.Groups()[0].Steps()); got != tt.wantSteps {
				t.Errorf("steps = %d, want %d", got, tt.wantSteps)
			}
			if logger.warnCount() == 0 {
				t.Error("missing surface should be logged")
			}
		})
	}
}

func TestBuild_GroupWithoutResolvableStepsIsDropped(t *testing.T) {
	def := testDefinition("seq-1", "Lobby Intro")
	def.Groups[0].Steps[0].Surface = "missing-screen"
	def.RemoveEmptyReferences = false

	seq := Build(def, newFakeResolver(), nil)

	if got := len(seq.Groups()); got != 1 {
		t.Errorf("groups = %d, want 1", got)
	}
}

func TestBuild_EmptyGroupsArePruned(t *testing.T) {
	def := testDefinition("seq-1", "Lobby Intro")
	def.Groups = append([]GroupDef{{Name: "placeholder"}}, def.Groups...)
	def.Groups = append(def.Groups, GroupDef{Name: "later", Steps: []StepDef{}})

	if err := Validate(def); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
	if got := EmptyGroups(def); len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("EmptyGroups() = %v, want [0 3]", got)
	}

	seq := Build(def, newFakeResolver(), nil)
	if got := len(seq.Groups()); got != 2 {
		t.Errorf("groups = %d, want 2", got)
	}
}

func TestBuild_NoGroupsFinishesImmediately(t *testing.T) {
	def := &Definition{ID: "seq-3", Name: "Placeholder", Slug: "placeholder", Skippable: true}
	if err := Validate(def); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	seq := Build(def, newFakeResolver(), nil)
	seq.Play()
	if !tickUntil(seq, 2, seq.Finished) {
		t.Error("empty sequence should finish at once")
	}
}

func TestBuild_UnresolvedPhaseTargetCompletes(t *testing.T) {
	def := &Definition{
		ID:        "seq-2",
		Name:      "Mascot",
		Skippable: true,
		Groups: []GroupDef{{
			Name: "wave",
			Steps: []StepDef{{
				Name:  "wave",
				Enter: PhaseDef{Kind: sequence.KindCustom, Transition: "unknown"},
				Main:  PhaseDef{Kind: sequence.KindStateMachine, Target: "missing", State: "Wave"},
				Exit:  PhaseDef{Kind: sequence.KindCustom, Transition: "wipe"},
			}},
		}},
	}
	logger := &mockLogger{}
	seq := Build(def, newFakeResolver(), logger)

	enter, main, exit := seq.Groups()[0].Steps()[0].Drivers()
	if enter.Resolved() || main.Resolved() {
		t.Error("unknown transition and animator should leave drivers unresolved")
	}
	if !exit.Resolved() {
		t.Error("known transition should resolve")
	}
	if c, ok := exit.(*sequence.CustomDriver); !ok || c.Direction != sequence.DirectionOut {
		t.Errorf("exit driver = %#v, want outbound custom driver", exit)
	}

	seq.Play()
	if !tickUntil(seq, 5, seq.Finished) {
		t.Fatal("unresolved drivers should complete at once")
	}
	if logger.warnCount() < 2 {
		t.Errorf("warnings = %d, want one per unresolved driver", logger.warnCount())
	}
}

func TestBuild_StateMachineLayer(t *testing.T) {
	layer := 2
	r := newFakeResolver()
	def := &Definition{
		ID:   "seq-3",
		Name: "Mascot",
		Groups: []GroupDef{{
			Name: "wave",
			Steps: []StepDef{{
				Name: "wave",
				Main: PhaseDef{Kind: sequence.KindStateMachine, Target: "mascot", State: "Wave", ExitState: "Idle", Layer: &layer},
			}},
		}},
	}

	seq := Build(def, r, nil)
	_, main, _ := seq.Groups()[0].Steps()[0].Drivers()
	sm, ok := main.(*sequence.StateMachineDriver)
	if !ok {
		t.Fatalf("main driver = %T, want *sequence.StateMachineDriver", main)
	}
	if sm.Layer != 2 || sm.State != "Wave" || sm.ExitState != "Idle" {
		t.Errorf("driver = %+v", sm)
	}

	seq.Play()
	if !tickUntil(seq, 5, seq.Finished) {
		t.Fatal("state machine should complete once the animator reports the end")
	}
	if got := r.animators["mascot"].played; len(got) != 1 || got[0] != "Wave" {
		t.Errorf("played = %v, want [Wave]", got)
	}
}

func TestBuild_Flags(t *testing.T) {
	def := testDefinition("seq-1", "Lobby Intro")
	def.PlayOnStart = true
	def.Skippable = false

	seq := Build(def, newFakeResolver(), nil)
	seq.Start()
	if !seq.Running() {
		t.Fatal("play_on_start should begin a cycle on Start")
	}

	seq.SkipAll()
	if !seq.Running() {
		t.Error("SkipAll should be ignored when the sequence is not skippable")
	}
}
