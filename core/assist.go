package core

import "sync"

// Level assistant configuration. Throttle values are the scaled 0-255
// range sent to the receiver, with 127 as the neutral rest position.
const (
	// NeutralCenter is the throttle rest position.
	NeutralCenter = 127
	// NeutralThreshold is how far from center still counts as neutral.
	NeutralThreshold = 5
	// MaxThrottle caps the corrected throttle the assistant may emit.
	MaxThrottle = 200
	// ADCChangeThreshold is the sample-to-sample delta that counts as
	// manual rider input.
	ADCChangeThreshold = 3
	// ManualTimeoutMS is how long after the last manual input the
	// assistant waits before re-arming automatic control.
	ManualTimeoutMS = 500
	// SetpointERPM is the speed the assistant regulates toward; zero
	// means "hold the board still".
	SetpointERPM = 0.0
	// MinCorrection suppresses corrections too small to matter,
	// avoiding motor chatter around zero error.
	MinCorrection = 1.0

	// decayFactor bleeds off PID memory while correction cannot be
	// applied, instead of cutting it to zero.
	decayFactor = 0.95
)

// Mode is the assistant's control mode.
type Mode uint8

const (
	// ModeManual: rider input owns the throttle, correction suppressed.
	ModeManual Mode = iota
	// ModeAuto: the PID loop may override a neutral throttle.
	ModeAuto
)

func (m Mode) String() string {
	if m == ModeAuto {
		return "auto"
	}
	return "manual"
}

// LevelAssistant holds the anti-rollback controller: a PID loop that
// pulls motor ERPM back to zero while the throttle sits at neutral, and
// hands control back to the rider the moment the stick moves.
//
// Process runs on the control tick; the setters, ResetState and
// Snapshot may be called from the console task. All shared state is
// guarded by one mutex.
type LevelAssistant struct {
	mu       sync.Mutex
	gains    Gains
	store    ParamStore // nil disables persistence
	adaptive bool

	enabled      bool
	mode         Mode
	prevThrottle uint32
	lastManualMS uint32
	lastAssistMS uint32

	// PID memory
	integral  float64
	prevError float64
	output    float64 // asymmetrically smoothed output
	pidLastMS uint32

	// Adaptive tuning state
	perf         perfWindow
	lastAdaptMS  uint32
	pendingSave  bool
	pendingGains Gains
}

// NewLevelAssistant creates the controller with compiled-in gains,
// replaced by learned values when the store holds them. A nil store
// disables persistence; adaptive selects whether the gains self-tune.
func NewLevelAssistant(store ParamStore, adaptive bool) *LevelAssistant {
	la := &LevelAssistant{
		gains:        DefaultGains(),
		store:        store,
		adaptive:     adaptive,
		mode:         ModeManual,
		prevThrottle: NeutralCenter,
	}
	if store != nil {
		g, err := LoadGains(store)
		switch {
		case err == nil:
			la.gains = g
		case err == ErrNotFound:
			// Never learned; keep defaults.
		default:
			debugf("assist: gain load failed: %v", err)
		}
	}
	return la
}

// Process takes the latest scaled throttle sample and motor ERPM and
// returns the throttle value to transmit. With the feature disabled or
// the rider active it is a pass-through.
func (la *LevelAssistant) Process(throttle uint32, erpm int32, enabled bool) uint32 {
	now := NowMS()

	la.mu.Lock()
	defer la.mu.Unlock()

	if !enabled {
		la.enabled = false
		la.mode = ModeManual
		la.integral = 0
		la.output = 0
		return throttle
	}
	la.enabled = true

	// Rider input detection: a large enough sample delta forces manual
	// mode and clears PID memory so no stale correction carries over.
	delta := int32(throttle) - int32(la.prevThrottle)
	if delta < 0 {
		delta = -delta
	}
	if delta >= ADCChangeThreshold {
		la.mode = ModeManual
		la.lastManualMS = now
		la.integral = 0
		la.output = 0
	}

	// Re-arm automatic control once the stick has been still long enough.
	if la.mode == ModeManual && now-la.lastManualMS > ManualTimeoutMS {
		la.mode = ModeAuto
	}

	neutral := delta32(int32(throttle), NeutralCenter) <= NeutralThreshold

	modified := throttle
	if la.mode == ModeAuto && neutral {
		out := la.computePID(SetpointERPM, float64(erpm), now)

		if la.adaptive {
			la.perf.push(SetpointERPM-float64(erpm), out)
			if now-la.lastAdaptMS >= AdaptIntervalMS {
				la.adapt()
				la.lastAdaptMS = now
			}
		}

		if out > MinCorrection || out < -MinCorrection {
			// Only push forward against rollback; never brake here.
			if out > 0 {
				modified = NeutralCenter + uint32(out)
				if modified > MaxThrottle {
					modified = MaxThrottle
				}
				la.lastAssistMS = now
			}
		}
	} else {
		// Correction cannot apply; bleed off PID memory gradually so a
		// later engagement starts without a discontinuity.
		la.integral *= decayFactor
		la.output *= decayFactor
	}

	la.prevThrottle = throttle
	return modified
}

// ResetState clears the control-mode and PID memory but leaves the
// gains alone. Called when external logic sees a throttle discontinuity
// (reconnect, calibration) and the history is no longer trustworthy.
func (la *LevelAssistant) ResetState() {
	la.mu.Lock()
	defer la.mu.Unlock()
	la.mode = ModeManual
	la.prevThrottle = NeutralCenter
	la.lastManualMS = 0
	la.lastAssistMS = 0
	la.integral = 0
	la.prevError = 0
	la.output = 0
	la.pidLastMS = 0
	la.perf = perfWindow{}
	la.lastAdaptMS = 0
}

// SetKp updates the proportional gain. Out-of-range values are dropped.
// Accepted changes clear the integral so the retune starts clean.
func (la *LevelAssistant) SetKp(v float64) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if v >= KpSetMin && v <= KpSetMax {
		la.gains.Kp = v
		la.integral = 0
	}
}

// SetKi updates the integral gain. Out-of-range values are dropped.
func (la *LevelAssistant) SetKi(v float64) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if v >= KiSetMin && v <= KiSetMax {
		la.gains.Ki = v
		la.integral = 0
	}
}

// SetKd updates the derivative gain. Out-of-range values are dropped.
func (la *LevelAssistant) SetKd(v float64) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if v >= KdSetMin && v <= KdSetMax {
		la.gains.Kd = v
	}
}

// SetOutputMax updates the correction ceiling, in throttle counts from
// neutral. Out-of-range values are dropped.
func (la *LevelAssistant) SetOutputMax(v float64) {
	la.mu.Lock()
	defer la.mu.Unlock()
	if v >= OutputMaxSetMin && v <= OutputMaxSetMax {
		la.gains.OutputMax = v
	}
}

// Gains returns a copy of the live parameter set.
func (la *LevelAssistant) Gains() Gains {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.gains
}

// SaveGains writes the live parameter set to the store immediately.
func (la *LevelAssistant) SaveGains() error {
	la.mu.Lock()
	g := la.gains
	store := la.store
	la.pendingSave = false
	la.mu.Unlock()
	if store == nil {
		return ErrNoStore
	}
	return SaveGains(store, g)
}

// ResetGainsToDefaults restores the compiled-in gains, erases any
// learned set from the store and clears the PID accumulation so the new
// gains do not resume with stale state.
func (la *LevelAssistant) ResetGainsToDefaults() error {
	la.mu.Lock()
	la.gains = DefaultGains()
	la.integral = 0
	la.output = 0
	la.pendingSave = false
	store := la.store
	la.mu.Unlock()
	if store == nil {
		return nil
	}
	return EraseGains(store)
}

// AssistSnapshot is a copy of the controller state for the console and
// the status screen.
type AssistSnapshot struct {
	Enabled       bool
	Mode          Mode
	Output        float64
	Integral      float64
	Gains         Gains
	AvgError      float64
	ErrorVariance float64
	Oscillations  int
	Samples       int
}

// Snapshot returns a consistent copy of the controller state.
func (la *LevelAssistant) Snapshot() AssistSnapshot {
	la.mu.Lock()
	defer la.mu.Unlock()
	return AssistSnapshot{
		Enabled:       la.enabled,
		Mode:          la.mode,
		Output:        la.output,
		Integral:      la.integral,
		Gains:         la.gains,
		AvgError:      la.perf.avgError,
		ErrorVariance: la.perf.variance,
		Oscillations:  la.perf.oscillations,
		Samples:       la.perf.samples,
	}
}

func delta32(a, b int32) int32 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
