// Package schedule stores and builds presentation sequences.
//
// A Definition is the declarative form of a sequence: named groups of
// steps, each step with an enter, main and exit phase described by a
// PhaseDef. Definitions come from YAML showfiles (Parse, ParseFile) or
// the API, are checked by Validate, persisted by a Repository and cached
// by a Registry.
//
// Build turns a Definition into a runnable sequence.Sequencer, resolving
// target IDs through a Resolver.
//
// # Showfiles
//
//	name: Lobby intro
//	skippable: true
//	steps:
//	  - name: logo
//	    surface: lobby-screen
//	    activate_subject: true
//	    wait_until_finished: false
//	    enter: {kind: tween}
//	    main: {kind: wait, duration: 2}
//	    exit: {kind: tween}
//	  - name: sting
//	    main: {kind: media, target: lobby-video}
//
// The two steps above form a single group because the first does not
// wait until it is finished.
package schedule
