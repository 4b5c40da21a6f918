package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
	"github.com/nerrad567/gray-logic-sequencer/internal/targets"
)

func newValidateCmd(configPath func() string) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <showfile>...",
		Short: "Check showfiles against the configured targets",
		Long: `Parses and validates each showfile, then reports surfaces, targets and
transitions it references that are not in the configuration. Unresolved
references are warnings unless --strict is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			dir, err := targets.NewDirectory(nil, cfg.Sequencer, nil)
			if err != nil {
				return fmt.Errorf("creating targets: %w", err)
			}

			failed := 0
			for _, path := range args {
				if !validateShowfile(cmd.OutOrStdout(), path, cfg.Sequencer.Defaults, dir, strict) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d showfiles failed validation", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat unresolved references as errors")
	return cmd
}

// validateShowfile reports on one showfile and whether it passed.
func validateShowfile(w io.Writer, path string, defaults config.SequencerDefaults, r schedule.Resolver, strict bool) bool {
	def, err := schedule.ParseFile(path, parseOptions(defaults))
	if err == nil {
		err = schedule.Validate(def)
	}
	if err != nil {
		fmt.Fprintf(w, "FAIL %s: %v\n", path, err)
		return false
	}

	for _, e := range emptyGroupWarnings(def) {
		fmt.Fprintf(w, "WARN %s: %s\n", path, e)
	}
	missing := unresolvedReferences(def, r)
	for _, m := range missing {
		fmt.Fprintf(w, "WARN %s: %s\n", path, m)
	}
	if strict && len(missing) > 0 {
		fmt.Fprintf(w, "FAIL %s: %d unresolved references\n", path, len(missing))
		return false
	}

	steps := 0
	for _, g := range def.Groups {
		steps += len(g.Steps)
	}
	fmt.Fprintf(w, "OK   %s: %q (%s), %d groups, %d steps\n", path, def.Name, def.Slug, len(def.Groups), steps)
	return true
}

// parseOptions maps the configured defaults onto showfile parsing.
func parseOptions(d config.SequencerDefaults) schedule.ParseOptions {
	return schedule.ParseOptions{
		Skippable:             d.Skippable,
		RemoveEmptyReferences: d.RemoveEmptyReferences,
	}
}

// emptyGroupWarnings notes groups that will be pruned at load. They never
// fail validation, even under --strict.
func emptyGroupWarnings(def *schedule.Definition) []string {
	if len(def.Groups) == 0 {
		return []string{"no groups, the sequence finishes as soon as it plays"}
	}
	var warnings []string
	for _, i := range schedule.EmptyGroups(def) {
		warnings = append(warnings, fmt.Sprintf("group[%d] %q: no steps, pruned at load", i, def.Groups[i].Name))
	}
	return warnings
}

// unresolvedReferences lists every surface, target and transition in def
// that r cannot resolve.
func unresolvedReferences(def *schedule.Definition, r schedule.Resolver) []string {
	var missing []string
	for gi, g := range def.Groups {
		for _, st := range g.Steps {
			where := fmt.Sprintf("group[%d] %q step %q", gi, g.Name, st.Name)
			if st.Surface != "" {
				if _, ok := r.Surface(st.Surface); !ok {
					missing = append(missing, fmt.Sprintf("%s: surface %q not configured", where, st.Surface))
				}
			}
			for _, ph := range []struct {
				name string
				def  schedule.PhaseDef
			}{{"enter", st.Enter}, {"main", st.Main}, {"exit", st.Exit}} {
				if ref, ok := unresolvedPhase(ph.def, r); !ok {
					missing = append(missing, fmt.Sprintf("%s %s: %s not configured", where, ph.name, ref))
				}
			}
		}
	}
	return missing
}

// unresolvedPhase checks the target of one phase. It returns the
// reference and false when it cannot be resolved.
func unresolvedPhase(p schedule.PhaseDef, r schedule.Resolver) (string, bool) {
	var ok bool
	switch p.Kind {
	case sequence.KindTween:
		if p.Target == "" {
			return "", true
		}
		_, ok = r.Surface(p.Target)
		return fmt.Sprintf("surface %q", p.Target), ok
	case sequence.KindStateMachine:
		_, ok = r.Animator(p.Target)
		return fmt.Sprintf("animator %q", p.Target), ok
	case sequence.KindMedia:
		_, ok = r.MediaPlayer(p.Target)
		return fmt.Sprintf("media player %q", p.Target), ok
	case sequence.KindCustom:
		_, ok = r.Transition(p.Transition)
		return fmt.Sprintf("transition %q", p.Transition), ok
	default:
		return "", true
	}
}
