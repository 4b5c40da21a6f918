package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sequencer/internal/sequence"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxSlugLength     = 50
	maxDescriptionLen = 500
	maxGroups         = 100
	maxStepsPerGroup  = 50
	maxKeyframes      = 64
	maxWaitSeconds    = 3600
	minSpeed          = 0.1
	slugPattern       = `^[a-z0-9]+(?:-[a-z0-9]+)*$`
)

var slugRegex = regexp.MustCompile(slugPattern)

// Pre-computed validation set for O(1) kind lookups.
var validKinds map[sequence.Kind]struct{}

func init() {
	validKinds = make(map[sequence.Kind]struct{}, len(sequence.ValidKinds))
	for _, k := range sequence.ValidKinds {
		validKinds[k] = struct{}{}
	}
}

// Validate checks a definition and reports every problem found, joined.
// Each reported error wraps one of the package sentinels.
func Validate(d *Definition) error {
	if d == nil {
		return ErrInvalidDefinition
	}

	var errs []error

	if err := ValidateName(d.Name); err != nil {
		errs = append(errs, err)
	}
	if d.Slug != "" {
		if err := ValidateSlug(d.Slug); err != nil {
			errs = append(errs, err)
		}
	}
	if d.Description != nil && len(*d.Description) > maxDescriptionLen {
		errs = append(errs, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDefinition, maxDescriptionLen))
	}

	// Groups without steps are legal; Build prunes them.
	if len(d.Groups) > maxGroups {
		errs = append(errs, fmt.Errorf("%w: exceeds maximum of %d groups", ErrInvalidDefinition, maxGroups))
	}

	for i, g := range d.Groups {
		errs = append(errs, validateGroup(i, g)...)
	}

	return errors.Join(errs...)
}

// EmptyGroups returns the indexes of groups without steps. They pass
// Validate and are pruned when the definition is built.
func EmptyGroups(d *Definition) []int {
	var empty []int
	for i, g := range d.Groups {
		if len(g.Steps) == 0 {
			empty = append(empty, i)
		}
	}
	return empty
}

func validateGroup(index int, g GroupDef) []error {
	var errs []error
	where := fmt.Sprintf("group[%d]", index)

	switch g.Policy {
	case "", sequence.PolicyAny, sequence.PolicyAll:
	default:
		errs = append(errs, fmt.Errorf("%s: %w: policy must be %q or %q", where, ErrInvalidGroup, sequence.PolicyAny, sequence.PolicyAll))
	}

	if len(g.Steps) > maxStepsPerGroup {
		errs = append(errs, fmt.Errorf("%s: %w: exceeds maximum of %d steps", where, ErrInvalidGroup, maxStepsPerGroup))
	}

	for j, st := range g.Steps {
		stepWhere := fmt.Sprintf("%s.step[%d]", where, j)
		if strings.TrimSpace(st.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: %w: name is required", stepWhere, ErrInvalidStep))
		}
		errs = append(errs, validatePhase(stepWhere+".enter", st.Enter, st.Surface)...)
		errs = append(errs, validatePhase(stepWhere+".main", st.Main, st.Surface)...)
		errs = append(errs, validatePhase(stepWhere+".exit", st.Exit, st.Surface)...)
	}

	return errs
}

func validatePhase(where string, p PhaseDef, surface string) []error { //nolint:gocognit,gocyclo // one case per driver kind
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %w: %s", where, ErrInvalidStep, fmt.Sprintf(format, args...)))
	}

	if p.Kind == "" {
		return nil
	}
	if _, ok := validKinds[p.Kind]; !ok {
		fail("unknown kind %q", p.Kind)
		return errs
	}

	switch p.Kind {
	case sequence.KindTween:
		switch p.Mode {
		case "", sequence.TweenFade, sequence.TweenSet:
		default:
			fail("tween mode must be %q or %q", sequence.TweenSet, sequence.TweenFade)
		}
		if p.Target == "" && surface == "" {
			fail("tween needs a target or a step surface")
		}
		if p.Speed != 0 && p.Speed < minSpeed {
			fail("speed must be at least %.1f", minSpeed)
		}
		if len(p.Curve) > maxKeyframes {
			fail("curve exceeds %d keyframes", maxKeyframes)
		}
		if !sequence.Curve(p.Curve).Sorted() {
			fail("curve keyframe times must be ascending")
		}
		for _, k := range p.Curve {
			if k.Time < 0 {
				fail("curve keyframe times must be non-negative")
				break
			}
			if k.Ease != "" && k.Ease != sequence.EaseInOut && k.Ease != sequence.EaseLinear {
				fail("unknown easing %q", k.Ease)
				break
			}
		}

	case sequence.KindStateMachine:
		if p.Target == "" {
			fail("state_machine needs a target animator")
		}
		if strings.TrimSpace(p.State) == "" {
			fail("state_machine needs a state name")
		}
		if p.Layer != nil && *p.Layer < 0 {
			fail("layer must be non-negative")
		}

	case sequence.KindMedia:
		if p.Target == "" {
			fail("media needs a target player")
		}

	case sequence.KindWait:
		if p.Duration < 0 || p.Duration > maxWaitSeconds {
			fail("duration must be 0-%d seconds", maxWaitSeconds)
		}

	case sequence.KindCustom:
		if strings.TrimSpace(p.Transition) == "" {
			fail("custom needs a transition name")
		}
	}

	return errs
}

// ValidateName checks if a sequence name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug checks if a slug format is valid.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: slug exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with hyphens", ErrInvalidSlug)
	}
	return nil
}

// GenerateSlug creates a URL-safe slug from a name.
func GenerateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "_", "-")

	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	slug = result.String()

	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		slug = strings.TrimRight(slug, "-")
	}

	return slug
}

// GenerateID creates a new UUID for a sequence or execution.
func GenerateID() string {
	return uuid.New().String()
}
