package core

import (
	"math"
	"testing"
)

func fillWindow(w *perfWindow, err, out float64) {
	for i := 0; i < PerformanceWindow; i++ {
		w.push(err, out)
	}
}

func TestPerfWindowStats(t *testing.T) {
	var w perfWindow

	// Alternate errors of 4 and 6 with a steady positive output:
	// mean 5, population variance 1, no oscillations.
	for i := 0; i < PerformanceWindow; i++ {
		e := 4.0
		if i%2 == 1 {
			e = 6.0
		}
		w.push(e, 5.0)
	}

	if w.samples != PerformanceWindow {
		t.Fatalf("samples = %d, want %d", w.samples, PerformanceWindow)
	}
	if math.Abs(w.avgError-5.0) > 1e-9 {
		t.Errorf("avgError = %v, want 5.0", w.avgError)
	}
	if math.Abs(w.variance-1.0) > 1e-9 {
		t.Errorf("variance = %v, want 1.0", w.variance)
	}
	if w.oscillations != 0 {
		t.Errorf("steady output counted %d oscillations", w.oscillations)
	}
}

func TestPerfWindowAbsoluteError(t *testing.T) {
	var w perfWindow
	fillWindow(&w, -5.0, 5.0)
	if math.Abs(w.avgError-5.0) > 1e-9 {
		t.Errorf("negative errors not folded: avgError = %v", w.avgError)
	}
}

func TestPerfWindowOscillationCount(t *testing.T) {
	var w perfWindow

	// Output flips sign every sample at meaningful magnitude: every
	// push after the first counts.
	for i := 0; i < 10; i++ {
		out := 5.0
		if i%2 == 1 {
			out = -5.0
		}
		w.push(1.0, out)
	}
	if w.oscillations != 9 {
		t.Errorf("oscillations = %d, want 9", w.oscillations)
	}
	if !w.oscillating() {
		t.Error("oscillating() = false with 9 sign flips")
	}

	// Sign flips below the correction threshold are noise, not
	// oscillation.
	var quiet perfWindow
	for i := 0; i < 10; i++ {
		out := 0.5
		if i%2 == 1 {
			out = -0.5
		}
		quiet.push(1.0, out)
	}
	if quiet.oscillations != 0 {
		t.Errorf("sub-threshold flips counted: %d", quiet.oscillations)
	}
}

func TestAdaptWaitsForFullWindow(t *testing.T) {
	la := NewLevelAssistant(nil, true)
	la.perf.oscillations = 10
	la.perf.samples = PerformanceWindow - 1

	la.adapt()
	if la.gains != DefaultGains() {
		t.Errorf("adapted on a partial window: %+v", la.gains)
	}
}

func TestAdaptShrinksOnOscillation(t *testing.T) {
	la := NewLevelAssistant(nil, true)
	la.perf.samples = PerformanceWindow
	la.perf.oscillations = OscillationThreshold + 2

	la.adapt()

	g := la.gains
	wantKp := DefaultKp * (1.0 - LearningRate)
	wantKd := DefaultKd * (1.0 - LearningRate*0.5)
	if math.Abs(g.Kp-wantKp) > 1e-12 {
		t.Errorf("Kp = %v, want %v", g.Kp, wantKp)
	}
	if math.Abs(g.Kd-wantKd) > 1e-12 {
		t.Errorf("Kd = %v, want %v", g.Kd, wantKd)
	}
	if g.Ki != DefaultKi {
		t.Errorf("Ki moved in the oscillation branch: %v", g.Ki)
	}
	if la.perf.oscillations != 0 {
		t.Errorf("oscillation count not reset: %d", la.perf.oscillations)
	}
}

func TestAdaptGrowsOnLag(t *testing.T) {
	la := NewLevelAssistant(nil, true)
	la.perf.samples = PerformanceWindow
	la.perf.avgError = 15.0
	la.perf.variance = 20.0

	la.adapt()
	g := la.gains
	if math.Abs(g.Ki-DefaultKi*(1.0+LearningRate)) > 1e-12 {
		t.Errorf("Ki = %v after moderate lag", g.Ki)
	}
	if g.Kp != DefaultKp {
		t.Errorf("Kp moved on moderate lag: %v", g.Kp)
	}

	// Severe lag also leans on Kp.
	la2 := NewLevelAssistant(nil, true)
	la2.perf.samples = PerformanceWindow
	la2.perf.avgError = MaxErrorThreshold*2.0 + 1.0
	la2.perf.variance = 20.0

	la2.adapt()
	if math.Abs(la2.gains.Kp-DefaultKp*(1.0+LearningRate*0.5)) > 1e-12 {
		t.Errorf("Kp = %v after severe lag", la2.gains.Kp)
	}
}

func TestAdaptFineTunesDamping(t *testing.T) {
	la := NewLevelAssistant(nil, true)
	la.perf.samples = PerformanceWindow
	la.perf.avgError = 1.5
	la.perf.variance = 1.2

	la.adapt()
	if math.Abs(la.gains.Kd-DefaultKd*(1.0+LearningRate*0.5)) > 1e-12 {
		t.Errorf("Kd = %v, expected damping increase", la.gains.Kd)
	}

	// Low variance: tracking well and smooth, leave everything alone.
	la2 := NewLevelAssistant(nil, true)
	la2.perf.samples = PerformanceWindow
	la2.perf.avgError = 1.5
	la2.perf.variance = 0.5

	la2.adapt()
	if la2.gains != DefaultGains() {
		t.Errorf("quiet system still adapted: %+v", la2.gains)
	}
	if la2.pendingSave {
		t.Error("quiet system queued a save")
	}
}

func TestAdaptClampsAbsoluteBounds(t *testing.T) {
	la := NewLevelAssistant(nil, true)
	la.gains.Kp = 5.0 // beyond the tuner's ceiling
	la.gains.Ki = 0.001
	la.perf.samples = PerformanceWindow
	la.perf.avgError = 1.5
	la.perf.variance = 0.5

	la.adapt()
	if la.gains.Kp != KpCeil {
		t.Errorf("Kp not clamped: %v", la.gains.Kp)
	}
	if la.gains.Ki != KiFloor {
		t.Errorf("Ki not clamped: %v", la.gains.Ki)
	}
}

// TestOscillationDrivesGainsDown runs the full control loop against a
// motor that flips direction every tick. Over repeated adaptation
// rounds Kp and Kd must only move down, bounded by their floors.
func TestOscillationDrivesGainsDown(t *testing.T) {
	clk := installClock(t, 1000)
	la := NewLevelAssistant(nil, true)

	start := la.Gains()
	prevKp := start.Kp
	prevKd := start.Kd

	for i := 0; i < 400; i++ {
		erpm := int32(500)
		if i%2 == 1 {
			erpm = -500
		}
		la.Process(NeutralCenter, erpm, true)
		clk.now += 20

		g := la.Gains()
		if g.Kp > prevKp+1e-12 || g.Kd > prevKd+1e-12 {
			t.Fatalf("tick %d: gains rose under oscillation: Kp %v->%v Kd %v->%v",
				i, prevKp, g.Kp, prevKd, g.Kd)
		}
		prevKp, prevKd = g.Kp, g.Kd
	}

	end := la.Gains()
	if end.Kp >= start.Kp || end.Kd >= start.Kd {
		t.Errorf("no adaptation happened: start %+v end %+v", start, end)
	}
	if end.Kp < KpFloor || end.Kd < KdFloor {
		t.Errorf("gains fell through the floor: %+v", end)
	}
	t.Logf("after sustained oscillation: Kp %v -> %v, Kd %v -> %v",
		start.Kp, end.Kp, start.Kd, end.Kd)
}

func TestRelativeChange(t *testing.T) {
	cases := []struct {
		old, new, want float64
	}{
		{1.0, 1.1, 0.1},
		{1.0, 0.9, 0.1},
		{0.0, 5.0, 0.0}, // zero old value cannot be compared
		{2.0, 2.0, 0.0},
	}
	for _, c := range cases {
		if got := relativeChange(c.old, c.new); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("relativeChange(%v, %v) = %v, want %v", c.old, c.new, got, c.want)
		}
	}
}

func TestChangedSignificantly(t *testing.T) {
	base := DefaultGains()

	small := base
	small.Kp *= 1.01
	if small.changedSignificantly(base, saveThreshold) {
		t.Error("1% drift flagged as significant")
	}

	big := base
	big.Ki *= 1.10
	if !big.changedSignificantly(base, saveThreshold) {
		t.Error("10% change not flagged")
	}

	// OutputMax is not adaptively tuned and does not trip the gate.
	om := base
	om.OutputMax *= 2
	if om.changedSignificantly(base, saveThreshold) {
		t.Error("OutputMax change tripped the tuned-gain gate")
	}
}

func TestFlushPendingSave(t *testing.T) {
	store := NewMemStore()
	la := NewLevelAssistant(store, true)

	// Nothing pending: no write happens.
	la.FlushPendingSave()
	if _, err := LoadGains(store); err != ErrNotFound {
		t.Errorf("flush with nothing pending wrote the store: %v", err)
	}

	la.mu.Lock()
	la.pendingGains = Gains{Kp: 0.5, Ki: 0.15, Kd: 0.03, OutputMax: 48}
	la.pendingSave = true
	la.mu.Unlock()

	la.FlushPendingSave()
	g, err := LoadGains(store)
	if err != nil {
		t.Fatalf("LoadGains after flush: %v", err)
	}
	if math.Abs(g.Kp-0.5) > 1e-6 {
		t.Errorf("flushed Kp = %v, want 0.5", g.Kp)
	}
	la.mu.Lock()
	cleared := !la.pendingSave
	la.mu.Unlock()
	if !cleared {
		t.Error("pendingSave not cleared after flush")
	}

	// A failing commit must not crash and leaves the store unchanged.
	la.mu.Lock()
	la.pendingGains.Kp = 0.9
	la.pendingSave = true
	la.mu.Unlock()
	store.FailCommit = true
	la.FlushPendingSave()
	g, err = LoadGains(store)
	if err != nil {
		t.Fatalf("LoadGains after failed flush: %v", err)
	}
	if math.Abs(g.Kp-0.5) > 1e-6 {
		t.Errorf("failed commit still changed the store: Kp = %v", g.Kp)
	}
}
