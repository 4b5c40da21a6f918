package sequence

// Easing selects how a curve segment moves between its two keyframes.
type Easing string

// Easing modes.
const (
	EaseInOut  Easing = "in_out"
	EaseLinear Easing = "linear"
)

// Keyframe is one point on a Curve. Time is in seconds. Ease applies to
// the segment that ends at this keyframe.
type Keyframe struct {
	Time  float64 `yaml:"time" json:"time"`
	Value float64 `yaml:"value" json:"value"`
	Ease  Easing  `yaml:"ease,omitempty" json:"ease,omitempty"`
}

// Curve is a keyframed scalar function of time. Keyframes must be sorted
// by ascending Time.
type Curve []Keyframe

// EaseInOutCurve returns a two-key curve easing from v0 at t0 to v1 at t1.
func EaseInOutCurve(t0, v0, t1, v1 float64) Curve {
	return Curve{
		{Time: t0, Value: v0},
		{Time: t1, Value: v1, Ease: EaseInOut},
	}
}

// Duration returns the time of the last keyframe, or 0 for an empty curve.
func (c Curve) Duration() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].Time
}

// End returns the value of the last keyframe, or 0 for an empty curve.
func (c Curve) End() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].Value
}

// Evaluate returns the curve's value at time t, clamped to the first and
// last keyframes.
func (c Curve) Evaluate(t float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if t <= c[0].Time {
		return c[0].Value
	}
	last := c[len(c)-1]
	if t >= last.Time {
		return last.Value
	}

	for i := 0; i < len(c)-1; i++ {
		prev, next := c[i], c[i+1]
		if t < prev.Time || t >= next.Time {
			continue
		}
		span := next.Time - prev.Time
		if span <= 0 {
			return next.Value
		}
		f := (t - prev.Time) / span
		if next.Ease != EaseLinear {
			f = easeInOutCubic(f)
		}
		return lerp(prev.Value, next.Value, f)
	}
	return last.Value
}

// Sorted reports whether keyframe times are non-decreasing.
func (c Curve) Sorted() bool {
	for i := 1; i < len(c); i++ {
		if c[i].Time < c[i-1].Time {
			return false
		}
	}
	return true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}
