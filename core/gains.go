package core

// Default PID parameters for the level assistant. These are the shipped
// tune; learned values from the parameter store replace them at boot
// when present.
const (
	DefaultKp        = 0.3
	DefaultKi        = 0.1
	DefaultKd        = 0.02
	DefaultOutputMax = 48.0
)

// Legal ranges accepted by the gain setters. Writes outside a range are
// dropped and the previous value stays; callers that care must read the
// value back.
const (
	KpSetMin        = 0.0
	KpSetMax        = 10.0
	KiSetMin        = 0.0
	KiSetMax        = 2.0
	KdSetMin        = 0.0
	KdSetMax        = 1.0
	OutputMaxSetMin = 10.0
	OutputMaxSetMax = 100.0
)

// Absolute bounds the adaptive tuner keeps the gains inside, regardless
// of which adaptation rule fired.
const (
	KpFloor = 0.05
	KpCeil  = 2.0
	KiFloor = 0.01
	KiCeil  = 1.0
	KdFloor = 0.001
	KdCeil  = 0.2
)

// Gains is the tunable PID parameter set shared between the control
// tick, the adaptive tuner, the console task and the parameter store.
// It is a plain value; the LevelAssistant owns the authoritative copy
// and guards it with its own lock.
type Gains struct {
	Kp        float64
	Ki        float64
	Kd        float64
	OutputMax float64
}

// DefaultGains returns the compiled-in parameter set.
func DefaultGains() Gains {
	return Gains{
		Kp:        DefaultKp,
		Ki:        DefaultKi,
		Kd:        DefaultKd,
		OutputMax: DefaultOutputMax,
	}
}

// clampTuned forces the three tuned gains inside their absolute bounds.
func (g *Gains) clampTuned() {
	if g.Kp < KpFloor {
		g.Kp = KpFloor
	}
	if g.Kp > KpCeil {
		g.Kp = KpCeil
	}
	if g.Ki < KiFloor {
		g.Ki = KiFloor
	}
	if g.Ki > KiCeil {
		g.Ki = KiCeil
	}
	if g.Kd < KdFloor {
		g.Kd = KdFloor
	}
	if g.Kd > KdCeil {
		g.Kd = KdCeil
	}
}

// relativeChange returns |new-old|/old, or 0 when old is zero.
func relativeChange(old, new float64) float64 {
	if old == 0 {
		return 0
	}
	d := (new - old) / old
	if d < 0 {
		d = -d
	}
	return d
}

// changedSignificantly reports whether any tuned gain moved by more
// than the persistence threshold relative to prev.
func (g Gains) changedSignificantly(prev Gains, threshold float64) bool {
	return relativeChange(prev.Kp, g.Kp) > threshold ||
		relativeChange(prev.Ki, g.Ki) > threshold ||
		relativeChange(prev.Kd, g.Kd) > threshold
}
