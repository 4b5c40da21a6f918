// Package sequence provides the phase scheduler at the heart of the
// Gray Logic Sequencer.
//
// A presentation is an ordered list of Groups. Each Group holds Steps that
// run together, and each Step moves through three phases (enter transition,
// main phase, exit transition), each executed by a pluggable Driver.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│              Sequencer (sequencer.go)                 │
//	│  Play / Skip / SkipAll / Wait, lifecycle listeners    │
//	│        │ groups run strictly one after another         │
//	│        ▼                                               │
//	│  ┌────────────────────────────────────────────┐       │
//	│  │ Group (group.go)                            │       │
//	│  │ enter ▶ barrier ▶ main ▶ barrier ▶ exit ▶ barrier  │
//	│  │        │ members run concurrently           │       │
//	│  │        ▼                                    │       │
//	│  │  ┌──────────────────────────────────┐      │       │
//	│  │  │ Step (step.go)                    │      │       │
//	│  │  │ Ready ▶ Entering ▶ Main ▶ Exiting │      │       │
//	│  │  │ Driver per phase (driver.go)      │      │       │
//	│  │  └──────────────────────────────────┘      │       │
//	│  └────────────────────────────────────────────┘       │
//	└──────────────────────────────────────────────────────┘
//
// # Scheduling Model
//
// Nothing in this package starts a goroutine. Work is expressed as Tasks
// that are advanced by Sequencer.Tick from a single caller-owned loop.
// Starting a task advances it once with a zero delta, so all members of a
// group begin a phase inside the same call. Skip is cooperative: it sets a
// flag that the running driver honours at its next suspension point, and
// the driver then completes exactly as it would have without the skip.
//
// # Thread Safety
//
// Sequencer, Group and Step are not safe for concurrent use. Drive them from
// one goroutine (see internal/playback). Sequencer.Done and Sequencer.Wait
// are the exceptions and may be called from any goroutine.
//
// # Usage
//
//	seq := sequence.New([]*sequence.Group{
//	    sequence.NewGroup("intro", sequence.PolicyAny,
//	        sequence.NewStep(sequence.StepConfig{
//	            Name:      "logo",
//	            Enter:     sequence.NewFade(surface, sequence.FadeIn()),
//	            Main:      sequence.NewWait(3 * time.Second),
//	            Exit:      sequence.NewFade(surface, sequence.FadeOut()),
//	            Skippable: true,
//	        }),
//	    ),
//	}, sequence.DefaultOptions())
//
//	seq.Play()
//	for range ticker.C {
//	    seq.Tick(interval)
//	}
package sequence
