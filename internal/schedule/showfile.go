package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// maxShowfileSize bounds showfile reads.
const maxShowfileSize = 1 << 20

// ParseOptions supplies flag values for showfiles that omit them.
type ParseOptions struct {
	Skippable             bool
	RemoveEmptyReferences bool
}

// showfile is the on-disk YAML layout.
//
// Either groups or a flat steps list may be given. In a flat list every
// step with wait_until_finished: false is merged into one group with the
// steps that follow it, up to and including the next step that waits.
type showfile struct {
	Name                  string     `yaml:"name"`
	Slug                  string     `yaml:"slug"`
	Description           string     `yaml:"description"`
	PlayOnStart           bool       `yaml:"play_on_start"`
	Skippable             *bool      `yaml:"skippable"`
	RemoveEmptyReferences *bool      `yaml:"remove_empty_references"`
	Groups                []GroupDef `yaml:"groups"`
	Steps                 []StepDef  `yaml:"steps"`
}

// ParseFile reads and decodes a showfile from disk.
func ParseFile(path string, opts ParseOptions) (*Definition, error) {
	f, err := os.Open(path) //nolint:gosec // Path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("opening showfile: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxShowfileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading showfile: %w", err)
	}
	if len(data) > maxShowfileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidShowfile, path, maxShowfileSize)
	}

	def, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a showfile. Unknown keys are rejected. The result is not
// validated; call Validate before storing or building it.
func Parse(data []byte, opts ParseOptions) (*Definition, error) {
	var sf showfile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidShowfile)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidShowfile, err)
	}

	if len(sf.Groups) > 0 && len(sf.Steps) > 0 {
		return nil, fmt.Errorf("%w: give either groups or steps, not both", ErrInvalidShowfile)
	}
	for i, g := range sf.Groups {
		for j, st := range g.Steps {
			if st.WaitUntilFinished != nil {
				return nil, fmt.Errorf("%w: group[%d].step[%d]: wait_until_finished is only valid in a flat steps list",
					ErrInvalidShowfile, i, j)
			}
		}
	}

	def := &Definition{
		Name:                  sf.Name,
		Slug:                  sf.Slug,
		PlayOnStart:           sf.PlayOnStart,
		Skippable:             opts.Skippable,
		RemoveEmptyReferences: opts.RemoveEmptyReferences,
		Groups:                sf.Groups,
	}
	if sf.Description != "" {
		def.Description = &sf.Description
	}
	if sf.Skippable != nil {
		def.Skippable = *sf.Skippable
	}
	if sf.RemoveEmptyReferences != nil {
		def.RemoveEmptyReferences = *sf.RemoveEmptyReferences
	}
	if len(sf.Steps) > 0 {
		def.Groups = MergeSteps(sf.Steps)
	}
	if def.Slug == "" {
		def.Slug = GenerateSlug(def.Name)
	}

	return def, nil
}

// MergeSteps groups a flat step list. A step that does not wait until it
// is finished joins the group of the step after it; a step that waits
// (the default) closes its group. Each group takes the name of its first
// step and the any policy.
func MergeSteps(steps []StepDef) []GroupDef {
	var groups []GroupDef
	var current []StepDef

	for _, st := range steps {
		wait := st.WaitUntilFinished == nil || *st.WaitUntilFinished
		st.WaitUntilFinished = nil
		current = append(current, st)
		if wait {
			groups = append(groups, GroupDef{Name: current[0].Name, Steps: current})
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, GroupDef{Name: current[0].Name, Steps: current})
	}

	return groups
}
