package sequence

// Listener receives Sequencer lifecycle notifications. Each notification
// fires at most once per Play cycle, except OnSkipped which fires once per
// performed skip.
type Listener interface {
	OnStarted()
	OnSkipped(groupIndex int)
	OnFinished()
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields are ignored.
type ListenerFuncs struct {
	Started  func()
	Skipped  func(groupIndex int)
	Finished func()
}

func (f ListenerFuncs) OnStarted() {
	if f.Started != nil {
		f.Started()
	}
}

func (f ListenerFuncs) OnSkipped(groupIndex int) {
	if f.Skipped != nil {
		f.Skipped(groupIndex)
	}
}

func (f ListenerFuncs) OnFinished() {
	if f.Finished != nil {
		f.Finished()
	}
}

// Subscription is the handle returned by Sequencer.Subscribe.
type Subscription struct {
	set *listenerSet
	id  uint64
}

// Remove detaches the listener. It is safe to call more than once and from
// inside a notification.
func (s *Subscription) Remove() {
	if s == nil || s.set == nil {
		return
	}
	s.set.remove(s.id)
	s.set = nil
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// listenerSet holds registered listeners in subscription order.
type listenerSet struct {
	next    uint64
	entries []listenerEntry
}

func (l *listenerSet) add(listener Listener) *Subscription {
	l.next++
	l.entries = append(l.entries, listenerEntry{id: l.next, listener: listener})
	return &Subscription{set: l, id: l.next}
}

func (l *listenerSet) remove(id uint64) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listenerSet) clear() {
	l.entries = nil
}

func (l *listenerSet) len() int {
	return len(l.entries)
}

// snapshot returns the listeners to notify, so listeners may subscribe or
// unsubscribe while a notification is being delivered.
func (l *listenerSet) snapshot() []Listener {
	out := make([]Listener, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.listener
	}
	return out
}

func (l *listenerSet) started() {
	for _, ln := range l.snapshot() {
		ln.OnStarted()
	}
}

func (l *listenerSet) skipped(groupIndex int) {
	for _, ln := range l.snapshot() {
		ln.OnSkipped(groupIndex)
	}
}

func (l *listenerSet) finished() {
	for _, ln := range l.snapshot() {
		ln.OnFinished()
	}
}
