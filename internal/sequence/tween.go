package sequence

import "time"

// TweenMode selects whether a tween writes its value at once or fades.
type TweenMode string

// Tween modes.
const (
	TweenSet  TweenMode = "set"
	TweenFade TweenMode = "fade"
)

// minTweenSpeed is the smallest accepted playback speed multiplier.
const minTweenSpeed = 0.1

// TweenConfig describes a level tween.
type TweenConfig struct {
	Mode TweenMode

	// Value is written directly in TweenSet mode. A fade without keyframes
	// ends on it.
	Value float64

	// Curve drives the level in TweenFade mode. Its last keyframe time is
	// the fade duration.
	Curve Curve

	// Speed multiplies elapsed time. Zero means 1; positive values below
	// 0.1 are raised to 0.1.
	Speed float64
}

// FadeIn returns the default enter fade: 0 to 1 over one second.
func FadeIn() TweenConfig {
	return TweenConfig{Mode: TweenFade, Value: 1, Curve: EaseInOutCurve(0, 0, 1, 1), Speed: 1}
}

// FadeOut returns the default exit fade: 1 to 0 over one second.
func FadeOut() TweenConfig {
	return TweenConfig{Mode: TweenFade, Value: 0, Curve: EaseInOutCurve(0, 1, 1, 0), Speed: 1}
}

// TweenDriver interpolates a LevelTarget over a curve. It writes the target
// at every suspension point and jumps to the curve's end value on skip.
type TweenDriver struct {
	Target LevelTarget
	TweenConfig

	state   runState
	elapsed float64
}

// NewFade returns a tween driver for target.
func NewFade(target LevelTarget, cfg TweenConfig) *TweenDriver {
	return &TweenDriver{Target: target, TweenConfig: cfg}
}

func (d *TweenDriver) Kind() Kind      { return KindTween }
func (d *TweenDriver) Prepare()        {}
func (d *TweenDriver) Skippable() bool { return true }
func (d *TweenDriver) Resolved() bool  { return d.Target != nil }

// Skip jumps the tween to its end value at the next tick.
func (d *TweenDriver) Skip() { d.state.requestSkip() }

// Run starts the tween.
func (d *TweenDriver) Run() Task {
	d.state.begin()
	d.elapsed = 0

	if d.Mode == TweenSet {
		d.Target.SetLevel(d.Value)
		d.state.end()
		return Done
	}

	duration := d.Curve.Duration()
	speed := d.Speed
	switch {
	case speed <= 0:
		speed = 1
	case speed < minTweenSpeed:
		speed = minTweenSpeed
	}

	return TaskFunc(func(dt time.Duration) bool {
		if d.state.skipped {
			d.finish()
			return true
		}
		d.elapsed += dt.Seconds() * speed
		if duration <= 0 || d.elapsed >= duration {
			d.finish()
			return true
		}
		d.Target.SetLevel(d.Curve.Evaluate(d.elapsed))
		return false
	})
}

func (d *TweenDriver) finish() {
	if len(d.Curve) > 0 {
		d.Target.SetLevel(d.Curve.End())
	} else {
		d.Target.SetLevel(d.Value)
	}
	d.state.end()
}
