package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
)

func TestRunner_PlayToCompletion(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	r := startRunner(t, store, rec)
	ctx := testCtx(t)

	if err := r.Load(ctx, waitDefinition("intro", 0.01, 0.01), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	execID, err := r.Play(ctx, "intro", schedule.TriggerCLI)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if execID == "" {
		t.Fatal("Play returned no execution ID")
	}
	if err := r.Wait(ctx, "intro"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	waitFor(t, "finished event", func() bool {
		_, ok := rec.last(EventFinished)
		return ok
	})

	exec, ok := store.get(execID)
	if !ok {
		t.Fatal("execution not stored")
	}
	if exec.Status != schedule.StatusCompleted {
		t.Errorf("status = %q, want completed", exec.Status)
	}
	if exec.TriggeredBy != schedule.TriggerCLI {
		t.Errorf("triggered_by = %q, want cli", exec.TriggeredBy)
	}
	if exec.CompletedAt == nil || exec.DurationMS == nil {
		t.Error("completion fields not set")
	}
	if pruned := store.prunes(); len(pruned) != 1 || pruned[0] != 5 {
		t.Errorf("pruned = %v, want [5]", pruned)
	}

	want := []EventType{EventLoaded, EventStarted, EventFinished}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	st, err := r.Status(ctx, "seq-intro")
	if err != nil {
		t.Fatalf("Status by slug: %v", err)
	}
	if st.Running || !st.Finished || st.ExecutionID != execID {
		t.Errorf("Status = %+v", st)
	}
}

func TestRunner_PlayOnStart(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	r := startRunner(t, store, rec)
	ctx := testCtx(t)

	def := waitDefinition("attract", 0.01)
	def.PlayOnStart = true
	if err := r.Load(ctx, def, schedule.TriggerAutoload); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.Wait(ctx, "attract"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	waitFor(t, "started event", func() bool {
		_, ok := rec.last(EventStarted)
		return ok
	})
	ev, _ := rec.last(EventStarted)
	if ev.TriggeredBy != schedule.TriggerAutoload {
		t.Errorf("triggered_by = %q, want autoload", ev.TriggeredBy)
	}
}

func TestRunner_SkipAndSkipAll(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	r := startRunner(t, store, rec)
	ctx := testCtx(t)

	if err := r.Load(ctx, waitDefinition("show", 60, 60, 60), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	execID, err := r.Play(ctx, "show", schedule.TriggerAPI)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	skipped, err := r.Skip(ctx, "show")
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if !skipped {
		t.Fatal("Skip did not skip the running group")
	}

	waitFor(t, "second group", func() bool {
		st, err := r.Status(ctx, "show")
		return err == nil && st.GroupIndex == 1
	})

	if err := r.SkipAll(ctx, "show"); err != nil {
		t.Fatalf("SkipAll: %v", err)
	}
	if err := r.Wait(ctx, "show"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	waitFor(t, "finished event", func() bool {
		_, ok := rec.last(EventFinished)
		return ok
	})
	exec, _ := store.get(execID)
	if exec.Status != schedule.StatusSkipped || !exec.SkipAll {
		t.Errorf("execution = %+v, want skipped with skip_all", exec)
	}
	if len(exec.SkippedGroups) != 1 || exec.SkippedGroups[0] != 0 {
		t.Errorf("skipped groups = %v, want [0]", exec.SkippedGroups)
	}

	ev, _ := rec.last(EventSkipped)
	if ev.GroupIndex != 0 || ev.Group != "group-a" {
		t.Errorf("skipped event = %+v", ev)
	}
}

func TestRunner_Errors(t *testing.T) {
	r := startRunner(t, nil)
	ctx := testCtx(t)

	if _, err := r.Play(ctx, "missing", schedule.TriggerAPI); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Play missing = %v, want ErrNotLoaded", err)
	}
	if err := r.Unload(ctx, "missing"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Unload missing = %v, want ErrNotLoaded", err)
	}
	if _, err := r.Status(ctx, "missing"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Status missing = %v, want ErrNotLoaded", err)
	}
	if err := r.Wait(ctx, "missing"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Wait missing = %v, want ErrNotLoaded", err)
	}

	if err := r.Load(ctx, waitDefinition("long", 60), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Skip(ctx, "long"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Skip idle = %v, want ErrNotRunning", err)
	}
	if _, err := r.Play(ctx, "long", schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := r.Play(ctx, "long", schedule.TriggerAPI); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Play running = %v, want ErrAlreadyRunning", err)
	}

	locked := waitDefinition("locked", 60)
	locked.Skippable = false
	if err := r.Load(ctx, locked, schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Play(ctx, "locked", schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := r.SkipAll(ctx, "locked"); !errors.Is(err, ErrNotSkippable) {
		t.Errorf("SkipAll locked = %v, want ErrNotSkippable", err)
	}
}

func TestRunner_UnloadCancels(t *testing.T) {
	store := newMockStore()
	rec := &recorder{}
	r := startRunner(t, store, rec)
	ctx := testCtx(t)

	if err := r.Load(ctx, waitDefinition("long", 60), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	execID, err := r.Play(ctx, "long", schedule.TriggerAPI)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- r.Wait(ctx, "long") }()

	// Let the waiter reach the sequencer before unloading.
	time.Sleep(20 * time.Millisecond)
	if err := r.Unload(ctx, "long"); err != nil {
		t.Fatalf("Unload: %v", err)
	}

	select {
	case err := <-waitErr:
		if !errors.Is(err, sequence.ErrClosed) {
			t.Errorf("Wait = %v, want ErrClosed", err)
		}
	case <-ctx.Done():
		t.Fatal("Wait not released by Unload")
	}

	exec, _ := store.get(execID)
	if exec.Status != schedule.StatusCancelled {
		t.Errorf("status = %q, want cancelled", exec.Status)
	}

	waitFor(t, "unloaded event", func() bool {
		_, ok := rec.last(EventUnloaded)
		return ok
	})
	if _, ok := rec.last(EventCancelled); !ok {
		t.Error("no cancelled event")
	}

	loaded, err := r.Loaded(ctx)
	if err != nil || len(loaded) != 0 {
		t.Errorf("Loaded() = %v, %v; want empty", loaded, err)
	}
}

func TestRunner_ReloadReplaces(t *testing.T) {
	r := startRunner(t, nil)
	ctx := testCtx(t)

	if err := r.Load(ctx, waitDefinition("a", 60), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Play(ctx, "a", schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := r.Load(ctx, waitDefinition("a", 1, 1), schedule.TriggerAPI); err != nil {
		t.Fatalf("reload: %v", err)
	}

	st, err := r.Status(ctx, "a")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running || st.GroupCount != 2 {
		t.Errorf("Status after reload = %+v", st)
	}
}

func TestRunner_ReloadMidTransitionRestoresInteraction(t *testing.T) {
	dir, err := targets.NewDirectory(nil, config.SequencerConfig{
		Targets: []config.TargetConfig{{ID: "kiosk", Kind: config.TargetSurface}},
	}, nil)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	surface, _ := dir.Surface("kiosk")
	initial := surface.Interaction()

	r := startRunnerWith(t, dir, nil)
	ctx := testCtx(t)

	def := &schedule.Definition{
		ID:        "kiosk-intro",
		Name:      "Kiosk intro",
		Slug:      "kiosk-intro",
		Skippable: true,
		Groups: []schedule.GroupDef{{
			Name: "welcome",
			Steps: []schedule.StepDef{{
				Name:               "card",
				Surface:            "kiosk",
				ActivateSubject:    true,
				ModifyInteractable: true,
				ModifyBlocksInput:  true,
				Enter:              schedule.PhaseDef{Kind: sequence.KindWait, Duration: 0.2},
				Main:               schedule.PhaseDef{Kind: sequence.KindWait, Duration: 0.01},
			}},
		}},
	}

	if err := r.Load(ctx, def, schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Play(ctx, def.ID, schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, "enter transition", func() bool {
		st, err := r.Status(ctx, def.ID)
		return err == nil && st.Phase == sequence.PhaseEntering.String()
	})

	if err := r.Load(ctx, def, schedule.TriggerAPI); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := r.Play(ctx, def.ID, schedule.TriggerAPI); err != nil {
		t.Fatalf("Play after reload: %v", err)
	}
	if err := r.Wait(ctx, def.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if got := surface.Interaction(); got != initial {
		t.Errorf("interaction after reloaded cycle = %+v, want %+v", got, initial)
	}
}

func TestRunner_LoadedSorted(t *testing.T) {
	r := startRunner(t, nil)
	ctx := testCtx(t)

	for _, id := range []string{"c", "a", "b"} {
		if err := r.Load(ctx, waitDefinition(id, 1), schedule.TriggerAPI); err != nil {
			t.Fatalf("Load %s: %v", id, err)
		}
	}
	loaded, err := r.Loaded(ctx)
	if err != nil {
		t.Fatalf("Loaded: %v", err)
	}
	if len(loaded) != 3 || loaded[0].ID != "a" || loaded[2].ID != "c" {
		t.Errorf("Loaded() order = %+v", loaded)
	}
}

func TestRunner_StoreFailureDoesNotStopPlayback(t *testing.T) {
	store := newMockStore()
	store.fail = true
	r := startRunner(t, store)
	ctx := testCtx(t)

	if err := r.Load(ctx, waitDefinition("x", 0.01), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Play(ctx, "x", schedule.TriggerAPI); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := r.Wait(ctx, "x"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestRunner_ConcurrentCommands(t *testing.T) {
	r := startRunner(t, newMockStore())
	ctx := testCtx(t)

	if err := r.Load(ctx, waitDefinition("busy", 60, 60), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	plays := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Play(ctx, "busy", schedule.TriggerAPI); err == nil {
				mu.Lock()
				plays++
				mu.Unlock()
			}
			r.Status(ctx, "busy") //nolint:errcheck // exercising concurrent access
		}()
	}
	wg.Wait()

	if plays != 1 {
		t.Errorf("successful plays = %d, want 1", plays)
	}
}

func TestRunner_StoppedAndRestart(t *testing.T) {
	r := NewRunner(Options{TickInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	if err := r.Load(testCtx(t), waitDefinition("x", 60), schedule.TriggerAPI); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := r.Play(context.Background(), "x", schedule.TriggerAPI); !errors.Is(err, ErrStopped) {
		t.Errorf("Play after stop = %v, want ErrStopped", err)
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run = %v, want ErrAlreadyStarted", err)
	}
}

func TestRunner_Autoload(t *testing.T) {
	r := startRunner(t, nil)
	ctx := testCtx(t)

	defs := lookupFunc(func(_ context.Context, ref string) (*schedule.Definition, error) {
		if ref == "missing" {
			return nil, schedule.ErrNotFound
		}
		return waitDefinition(ref, 1), nil
	})

	if n := r.Autoload(ctx, defs, []string{"one", "missing", "two"}); n != 2 {
		t.Errorf("Autoload loaded %d, want 2", n)
	}
	loaded, _ := r.Loaded(ctx)
	if len(loaded) != 2 {
		t.Errorf("Loaded() = %d sequences, want 2", len(loaded))
	}
}

type lookupFunc func(ctx context.Context, ref string) (*schedule.Definition, error)

func (f lookupFunc) Lookup(ctx context.Context, ref string) (*schedule.Definition, error) {
	return f(ctx, ref)
}
