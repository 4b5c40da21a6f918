package playback

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

const (
	// defaultTickInterval is used when Options.TickInterval is unset.
	defaultTickInterval = 20 * time.Millisecond

	// eventBuffer is the capacity of the queue between the loop and the
	// sink dispatcher.
	eventBuffer = 256

	// storeTimeout bounds each execution record write.
	storeTimeout = 5 * time.Second
)

// Logger defines the logging interface used by the runner.
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

// ExecutionStore persists execution records. schedule.Repository satisfies
// it.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec *schedule.Execution) error
	UpdateExecution(ctx context.Context, exec *schedule.Execution) error
	PruneExecutions(ctx context.Context, sequenceID string, keep int) (int64, error)
}

// Options configure a Runner.
type Options struct {
	// TickInterval is how often loaded sequencers are advanced.
	TickInterval time.Duration

	// HistoryLimit is the number of executions kept per sequence. Zero
	// keeps everything.
	HistoryLimit int

	// Resolver binds definition target IDs when loading.
	Resolver schedule.Resolver

	// Executions records each cycle. Nil disables recording.
	Executions ExecutionStore

	// Sinks receive lifecycle events.
	Sinks []Sink

	// Commands, if set, is told about every remote command handled.
	Commands CommandRecorder

	Logger Logger
}

// Status describes one loaded sequence.
type Status struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Skippable bool   `json:"skippable"`
	sequence.Status
	ExecutionID string     `json:"execution_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	LoadedAt    time.Time  `json:"loaded_at"`
}

// entry is a loaded sequence. Only the loop goroutine touches it.
type entry struct {
	def      *schedule.Definition
	seq      *sequence.Sequencer
	loadedAt time.Time

	trigger string
	exec    *schedule.Execution
	skipAll bool
}

// Runner owns the loaded sequencers and the goroutine that ticks them.
//
// Thread Safety: all exported methods are safe for concurrent use. They
// block until Run has started and handled the request.
type Runner struct {
	tick         time.Duration
	historyLimit int
	resolver     schedule.Resolver
	store        ExecutionStore
	sinks        []Sink
	commands     CommandRecorder
	logger       Logger
	now          func() time.Time

	started atomic.Bool
	cmds    chan func()
	events  chan Event
	stopped chan struct{}

	// loaded is owned by the loop goroutine.
	loaded map[string]*entry
}

// NewRunner creates a Runner. Call Run to start it.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &Runner{
		tick:         tick,
		historyLimit: opts.HistoryLimit,
		resolver:     opts.Resolver,
		store:        opts.Executions,
		sinks:        opts.Sinks,
		commands:     opts.Commands,
		logger:       logger,
		now:          time.Now,
		cmds:         make(chan func()),
		events:       make(chan Event, eventBuffer),
		stopped:      make(chan struct{}),
		loaded:       make(map[string]*entry),
	}
}

// Run ticks loaded sequencers and serves requests until ctx is done. On
// exit every running cycle is recorded as cancelled and all sequencers are
// closed. Run returns nil after a clean shutdown.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	dispatched := make(chan struct{})
	go r.dispatch(dispatched)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.logger.Info("playback runner started", "tick_interval", r.tick.String())

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			close(r.events)
			<-dispatched
			close(r.stopped)
			r.logger.Info("playback runner stopped")
			return nil

		case cmd := <-r.cmds:
			cmd()

		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			r.tickAll(dt)
		}
	}
}

// Stopped is closed once Run has returned.
func (r *Runner) Stopped() <-chan struct{} { return r.stopped }

// do runs fn on the loop goroutine and waits for it to complete.
func (r *Runner) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case r.cmds <- wrapped:
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load builds def and makes it available for playback, replacing any
// loaded sequence with the same ID. A replaced sequence is closed before
// the new one is built so its steps hand back the target state they
// captured. A definition with PlayOnStart begins a cycle immediately,
// recorded with trigger.
func (r *Runner) Load(ctx context.Context, def *schedule.Definition, trigger string) error {
	def = def.DeepCopy()

	return r.do(ctx, func() {
		if old, ok := r.loaded[def.ID]; ok {
			r.cancel(old)
			delete(r.loaded, def.ID)
			r.logger.Info("sequence reloaded", "sequence_id", def.ID)
		}

		seq := schedule.Build(def, r.resolver, r.logger)
		e := &entry{def: def, seq: seq, loadedAt: r.now().UTC(), trigger: trigger}
		seq.Subscribe(sequence.ListenerFuncs{
			Started:  func() { r.onStarted(e) },
			Skipped:  func(group int) { r.onSkipped(e, group) },
			Finished: func() { r.onFinished(e) },
		})
		r.loaded[def.ID] = e

		r.logger.Info("sequence loaded",
			"sequence_id", def.ID,
			"sequence_name", def.Name,
			"groups", len(seq.Groups()),
		)
		r.emit(Event{Type: EventLoaded, SequenceID: def.ID, SequenceName: def.Name, Loaded: len(r.loaded)})

		r.guard(e, seq.Start)
	})
}

// Unload stops and removes a loaded sequence. A running cycle is recorded
// as cancelled.
func (r *Runner) Unload(ctx context.Context, ref string) error {
	var err error
	doErr := r.do(ctx, func() {
		e, ok := r.lookup(ref)
		if !ok {
			err = ErrNotLoaded
			return
		}
		r.remove(e)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Play starts a cycle and returns its execution ID.
func (r *Runner) Play(ctx context.Context, ref, trigger string) (string, error) {
	var (
		id  string
		err error
	)
	doErr := r.do(ctx, func() {
		e, ok := r.lookup(ref)
		if !ok {
			err = ErrNotLoaded
			return
		}
		if e.seq.Running() {
			err = ErrAlreadyRunning
			return
		}
		e.trigger = trigger
		r.guard(e, e.seq.Play)
		if e.exec != nil {
			id = e.exec.ID
		}
	})
	if doErr != nil {
		return "", doErr
	}
	return id, err
}

// Skip asks the current group to fast-forward. It reports whether the
// group performed the skip; a group whose steps cannot skip leaves the
// cycle untouched.
func (r *Runner) Skip(ctx context.Context, ref string) (bool, error) {
	var (
		skipped bool
		err     error
	)
	doErr := r.do(ctx, func() {
		var e *entry
		if e, err = r.controllable(ref); err != nil {
			return
		}
		before := len(e.exec.SkippedGroups)
		r.guard(e, e.seq.Skip)
		skipped = e.exec != nil && len(e.exec.SkippedGroups) > before
	})
	if doErr != nil {
		return false, doErr
	}
	return skipped, err
}

// SkipAll ends the cycle after the current group's exit transitions.
func (r *Runner) SkipAll(ctx context.Context, ref string) error {
	var err error
	doErr := r.do(ctx, func() {
		var e *entry
		if e, err = r.controllable(ref); err != nil {
			return
		}
		e.skipAll = true
		r.guard(e, e.seq.SkipAll)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Status returns the state of a loaded sequence.
func (r *Runner) Status(ctx context.Context, ref string) (Status, error) {
	var (
		st  Status
		err error
	)
	doErr := r.do(ctx, func() {
		e, ok := r.lookup(ref)
		if !ok {
			err = ErrNotLoaded
			return
		}
		st = e.status()
	})
	if doErr != nil {
		return Status{}, doErr
	}
	return st, err
}

// Loaded returns the status of every loaded sequence ordered by name.
func (r *Runner) Loaded(ctx context.Context) ([]Status, error) {
	var out []Status
	err := r.do(ctx, func() {
		out = make([]Status, 0, len(r.loaded))
		for _, e := range r.loaded {
			out = append(out, e.status())
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Wait blocks until the current cycle of a sequence finishes. Before the
// first Play it waits for the first cycle. It returns sequence.ErrClosed
// when the sequence is unloaded first.
func (r *Runner) Wait(ctx context.Context, ref string) error {
	var (
		seq *sequence.Sequencer
		err error
	)
	doErr := r.do(ctx, func() {
		e, ok := r.lookup(ref)
		if !ok {
			err = ErrNotLoaded
			return
		}
		seq = e.seq
	})
	if doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}
	return seq.Wait(ctx)
}

// lookup finds a loaded sequence by ID, then by slug.
func (r *Runner) lookup(ref string) (*entry, bool) {
	if e, ok := r.loaded[ref]; ok {
		return e, true
	}
	for _, e := range r.loaded {
		if e.def.Slug == ref {
			return e, true
		}
	}
	return nil, false
}

// controllable returns a loaded, running and skippable sequence.
func (r *Runner) controllable(ref string) (*entry, error) {
	e, ok := r.lookup(ref)
	switch {
	case !ok:
		return nil, ErrNotLoaded
	case !e.def.Skippable:
		return nil, ErrNotSkippable
	case !e.seq.Running() || e.exec == nil:
		return nil, ErrNotRunning
	}
	return e, nil
}

func (r *Runner) tickAll(dt time.Duration) {
	for _, e := range r.loaded {
		if e.seq.Running() {
			r.guard(e, func() { e.seq.Tick(dt) })
		}
	}
}

// guard runs fn against a sequencer. A panic in a driver unloads the
// sequence instead of killing the loop.
func (r *Runner) guard(e *entry, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("sequence panic recovered, unloading",
				"sequence_id", e.def.ID,
				"panic", rec,
			)
			r.remove(e)
		}
	}()
	fn()
}

// remove cancels and unloads e.
func (r *Runner) remove(e *entry) {
	if _, ok := r.loaded[e.def.ID]; !ok {
		return
	}
	r.cancel(e)
	delete(r.loaded, e.def.ID)

	r.logger.Info("sequence unloaded", "sequence_id", e.def.ID)
	r.emit(Event{Type: EventUnloaded, SequenceID: e.def.ID, SequenceName: e.def.Name, Loaded: len(r.loaded)})
}

// cancel records a running cycle as cancelled and closes the sequencer.
func (r *Runner) cancel(e *entry) {
	if e.seq.Running() && e.exec != nil {
		r.complete(e, schedule.StatusCancelled)
		r.emit(r.cycleEvent(EventCancelled, e))
	}
	e.seq.Close()
}

func (r *Runner) shutdown() {
	for id, e := range r.loaded {
		r.cancel(e)
		delete(r.loaded, id)
	}
}

func (r *Runner) onStarted(e *entry) {
	trigger := e.trigger
	if trigger == "" {
		trigger = schedule.TriggerAPI
	}
	e.trigger = ""
	e.skipAll = false
	e.exec = &schedule.Execution{
		ID:            schedule.GenerateID(),
		SequenceID:    e.def.ID,
		Status:        schedule.StatusRunning,
		TriggeredBy:   trigger,
		StartedAt:     r.now().UTC(),
		SkippedGroups: []int{},
	}

	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := r.store.CreateExecution(ctx, e.exec); err != nil {
			r.logger.Error("failed to create execution record", "sequence_id", e.def.ID, "error", err)
		}
		cancel()
	}

	r.logger.Info("sequence started",
		"sequence_id", e.def.ID,
		"sequence_name", e.def.Name,
		"execution_id", e.exec.ID,
		"triggered_by", trigger,
	)
	r.emit(Event{
		Type:         EventStarted,
		SequenceID:   e.def.ID,
		SequenceName: e.def.Name,
		ExecutionID:  e.exec.ID,
		TriggeredBy:  trigger,
		Timestamp:    e.exec.StartedAt,
	})
}

func (r *Runner) onSkipped(e *entry, group int) {
	if e.exec == nil {
		return
	}
	e.exec.SkippedGroups = append(e.exec.SkippedGroups, group)

	name := ""
	if groups := e.seq.Groups(); group < len(groups) {
		name = groups[group].Name()
	}
	r.logger.Debug("sequence group skipped", "sequence_id", e.def.ID, "group", name, "index", group)
	r.emit(Event{
		Type:         EventSkipped,
		SequenceID:   e.def.ID,
		SequenceName: e.def.Name,
		ExecutionID:  e.exec.ID,
		GroupIndex:   group,
		Group:        name,
		Timestamp:    r.now().UTC(),
	})
}

func (r *Runner) onFinished(e *entry) {
	if e.exec == nil {
		return
	}
	status := schedule.StatusCompleted
	if e.skipAll {
		status = schedule.StatusSkipped
	}
	r.complete(e, status)
	r.prune(e.def.ID)

	r.logger.Info("sequence finished",
		"sequence_id", e.def.ID,
		"execution_id", e.exec.ID,
		"status", status,
		"skipped_groups", len(e.exec.SkippedGroups),
		"duration_ms", *e.exec.DurationMS,
	)
	r.emit(r.cycleEvent(EventFinished, e))
}

// prune trims the execution history of a sequence to the history limit.
func (r *Runner) prune(sequenceID string) {
	if r.store == nil || r.historyLimit <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	n, err := r.store.PruneExecutions(ctx, sequenceID, r.historyLimit)
	if err != nil {
		r.logger.Warn("failed to prune execution history", "sequence_id", sequenceID, "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("pruned execution history", "sequence_id", sequenceID, "removed", n)
	}
}

// complete closes the current execution record with status.
func (r *Runner) complete(e *entry, status schedule.ExecutionStatus) {
	completedAt := r.now().UTC()
	duration := int(completedAt.Sub(e.exec.StartedAt).Milliseconds())
	e.exec.Status = status
	e.exec.CompletedAt = &completedAt
	e.exec.DurationMS = &duration
	e.exec.SkipAll = e.skipAll

	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := r.store.UpdateExecution(ctx, e.exec); err != nil {
		r.logger.Error("failed to update execution record", "sequence_id", e.def.ID, "error", err)
	}
}

func (r *Runner) cycleEvent(t EventType, e *entry) Event {
	skipped := make([]int, len(e.exec.SkippedGroups))
	copy(skipped, e.exec.SkippedGroups)
	return Event{
		Type:          t,
		SequenceID:    e.def.ID,
		SequenceName:  e.def.Name,
		ExecutionID:   e.exec.ID,
		TriggeredBy:   e.exec.TriggeredBy,
		GroupIndex:    e.seq.Cursor(),
		Status:        string(e.exec.Status),
		DurationMS:    *e.exec.DurationMS,
		SkippedGroups: skipped,
		SkipAll:       e.exec.SkipAll,
		Timestamp:     *e.exec.CompletedAt,
	}
}

// emit queues an event for the sinks. When the queue is full, load, unload
// and skip events are dropped rather than stalling the tick; cycle start and
// end events wait for room.
func (r *Runner) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now().UTC()
	}
	ev.Running = r.runningCycles()

	switch ev.Type {
	case EventStarted, EventFinished, EventCancelled:
		select {
		case r.events <- ev:
		default:
			r.logger.Warn("event queue full, waiting for sinks", "type", ev.Type, "sequence_id", ev.SequenceID)
			r.events <- ev
		}
	default:
		select {
		case r.events <- ev:
		default:
			r.logger.Warn("lifecycle event dropped", "type", ev.Type, "sequence_id", ev.SequenceID)
		}
	}
}

// runningCycles counts loaded sequences whose execution is still open.
func (r *Runner) runningCycles() int {
	n := 0
	for _, e := range r.loaded {
		if e.exec != nil && e.exec.Status == schedule.StatusRunning {
			n++
		}
	}
	return n
}

func (r *Runner) dispatch(done chan<- struct{}) {
	defer close(done)
	for ev := range r.events {
		for _, s := range r.sinks {
			r.handle(s, ev)
		}
	}
}

func (r *Runner) handle(s Sink, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event sink panic recovered", "type", ev.Type, "panic", rec)
		}
	}()
	s.Handle(ev)
}

func (e *entry) status() Status {
	st := Status{
		ID:        e.def.ID,
		Name:      e.def.Name,
		Slug:      e.def.Slug,
		Skippable: e.def.Skippable,
		Status:    e.seq.Status(),
		LoadedAt:  e.loadedAt,
	}
	if e.exec != nil {
		st.ExecutionID = e.exec.ID
		started := e.exec.StartedAt
		st.StartedAt = &started
	}
	return st
}
