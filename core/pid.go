package core

// Asymmetric smoothing weights. A falling raw output is taken mostly
// as-is while a rising one blends in slowly, so correction backs off
// fast but ramps up without jerking the board.
const (
	fallBlendOld = 0.3
	fallBlendNew = 0.7
	riseBlendOld = 0.7
	riseBlendNew = 0.3
)

// computePID advances the PID loop one step toward setpoint and returns
// the smoothed correction in throttle counts. Must be called at most
// once per control tick: previous-error and last-time are updated
// unconditionally, so repeated calls form one continuous trajectory.
// Caller holds la.mu.
func (la *LevelAssistant) computePID(setpoint, measured float64, now uint32) float64 {
	// Clock anomalies (stalled or rewound tick counter) must never
	// propagate as a division by zero.
	dt := float64(int32(now-la.pidLastMS)) / 1000.0
	if dt <= 0 {
		dt = 0.001
	}

	err := setpoint - measured
	la.integral += err * dt
	derivative := (err - la.prevError) / dt

	raw := la.gains.Kp*err + la.gains.Ki*la.integral + la.gains.Kd*derivative

	if raw < la.output {
		la.output = fallBlendOld*la.output + fallBlendNew*raw
	} else {
		la.output = riseBlendOld*la.output + riseBlendNew*raw
	}

	if la.output > la.gains.OutputMax {
		la.output = la.gains.OutputMax
	} else if la.output < -la.gains.OutputMax {
		la.output = -la.gains.OutputMax
	}

	la.prevError = err
	la.pidLastMS = now
	return la.output
}
