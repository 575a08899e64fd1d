package core

// Adaptive tuning configuration.
const (
	// AdaptIntervalMS is how often the adaptation rules are evaluated.
	AdaptIntervalMS = 200
	// LearningRate scales how far a single adaptation step moves a gain.
	LearningRate = 0.01
	// PerformanceWindow is the number of recent samples the tuner
	// judges the loop on.
	PerformanceWindow = 50
	// MaxErrorThreshold is the average error above which the loop is
	// considered to be lagging its setpoint.
	MaxErrorThreshold = 10.0
	// OscillationThreshold is how many output sign flips inside the
	// window count as oscillation.
	OscillationThreshold = 3
	// stableVarianceMax bounds the error variance of a stable loop.
	stableVarianceMax = 5.0
	// saveThreshold is the relative gain change that is worth a flash
	// write; smaller drift stays in memory only.
	saveThreshold = 0.05
)

// perfWindow is a fixed-capacity ring of recent (|error|, output)
// pairs plus the statistics derived from it. Capacity is compile-time
// so the control tick never allocates.
type perfWindow struct {
	errHist [PerformanceWindow]float64
	outHist [PerformanceWindow]float64
	idx     int
	samples int

	oscillations int
	lastSign     float64

	avgError float64
	variance float64
}

// push records one control-tick observation and refreshes the window
// statistics once the ring is full.
func (w *perfWindow) push(err, out float64) {
	if err < 0 {
		err = -err
	}
	w.errHist[w.idx] = err
	w.outHist[w.idx] = out

	// An output sign flip at meaningful magnitude is one oscillation.
	if w.samples > 0 {
		sign := 1.0
		if out <= 0 {
			sign = -1.0
		}
		if sign != w.lastSign && (out > MinCorrection || out < -MinCorrection) {
			w.oscillations++
		}
		w.lastSign = sign
	}

	w.idx = (w.idx + 1) % PerformanceWindow
	if w.samples < PerformanceWindow {
		w.samples++
	}

	if w.samples >= PerformanceWindow {
		sum := 0.0
		sumSq := 0.0
		for i := 0; i < PerformanceWindow; i++ {
			sum += w.errHist[i]
			sumSq += w.errHist[i] * w.errHist[i]
		}
		w.avgError = sum / PerformanceWindow
		// Population variance over the full window.
		w.variance = sumSq/PerformanceWindow - w.avgError*w.avgError
	}
}

func (w *perfWindow) oscillating() bool {
	return w.oscillations > OscillationThreshold
}

func (w *perfWindow) stable() bool {
	return w.avgError < MaxErrorThreshold && w.variance < stableVarianceMax
}

// adapt applies one round of the tuning rules. The branches are an
// ordered chain; exactly one fires per interval. Caller holds la.mu.
func (la *LevelAssistant) adapt() {
	if la.perf.samples < PerformanceWindow {
		return
	}

	prev := la.gains

	switch {
	case la.perf.oscillating():
		// Too twitchy: back off the aggressive gains.
		la.gains.Kp *= 1.0 - LearningRate
		la.gains.Kd *= 1.0 - LearningRate*0.5
		if la.gains.Kp < KpFloor {
			la.gains.Kp = KpFloor
		}
		if la.gains.Kd < KdFloor {
			la.gains.Kd = KdFloor
		}
		la.perf.oscillations = 0

	case !la.perf.stable() && la.perf.avgError > MaxErrorThreshold:
		// Persistent steady-state error: lean on the integral term,
		// and on Kp too when the error is severe.
		la.gains.Ki *= 1.0 + LearningRate
		if la.perf.avgError > MaxErrorThreshold*2.0 {
			la.gains.Kp *= 1.0 + LearningRate*0.5
		}
		if la.gains.Ki > KiCeil {
			la.gains.Ki = KiCeil
		}
		if la.gains.Kp > KpCeil {
			la.gains.Kp = KpCeil
		}

	case la.perf.stable() && la.perf.avgError < 2.0:
		// Tracking well; add damping only if the error still jitters.
		if la.perf.variance > 1.0 {
			la.gains.Kd *= 1.0 + LearningRate*0.5
			if la.gains.Kd > KdCeil {
				la.gains.Kd = KdCeil
			}
		}
	}

	la.gains.clampTuned()

	// Queue a store write only for a meaningful change, and never do
	// the write itself on the control tick.
	if la.store != nil && la.gains.changedSignificantly(prev, saveThreshold) {
		la.pendingGains = la.gains
		la.pendingSave = true
	}
}

// FlushPendingSave persists gains queued by the adaptive tuner. It is
// meant to run from a low-priority task so storage latency never lands
// on the control tick. A failed write is reported but the in-memory
// gains stay authoritative.
func (la *LevelAssistant) FlushPendingSave() {
	la.mu.Lock()
	if !la.pendingSave || la.store == nil {
		la.mu.Unlock()
		return
	}
	g := la.pendingGains
	store := la.store
	la.pendingSave = false
	la.mu.Unlock()

	if err := SaveGains(store, g); err != nil {
		debugf("assist: learned gain save failed: %v", err)
	}
}
