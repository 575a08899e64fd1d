package core

import (
	"testing"

	"skatelink/protocol"
)

// recordingDisplay captures the last value pushed to each line.
type recordingDisplay struct {
	speed   int32
	pct     int
	enabled bool
	mode    Mode
	conn    bool
}

func (d *recordingDisplay) ShowSpeed(kmh int32)        { d.speed = kmh }
func (d *recordingDisplay) ShowBatteryPercent(pct int) { d.pct = pct }
func (d *recordingDisplay) ShowAssist(enabled bool, mode Mode) {
	d.enabled = enabled
	d.mode = mode
}
func (d *recordingDisplay) ShowConnection(ok bool) { d.conn = ok }

func TestStatusScreenUpdate(t *testing.T) {
	installClock(t, 1000)

	var tel Telemetry
	tel.Update(protocol.TelemetryData{
		ERPM:        7000,
		PackVoltage: 36.0,
		CellCount:   10,
	})

	la := NewLevelAssistant(nil, false)
	drv := &recordingDisplay{}
	screen := NewStatusScreen(drv, &tel, la, DefaultRiderConfig())

	screen.Update(1000)

	if !drv.conn {
		t.Error("connection not shown as up")
	}
	if drv.speed != 23 {
		t.Errorf("speed = %d, want 23", drv.speed)
	}
	// 3.6V per cell sits halfway through the 3.0-4.2 window.
	if drv.pct != 50 {
		t.Errorf("battery = %d%%, want 50", drv.pct)
	}
	if drv.enabled || drv.mode != ModeManual {
		t.Errorf("assist line: enabled=%v mode=%s", drv.enabled, drv.mode)
	}

	// Link loss zeroes the readouts.
	tel.MarkDisconnected()
	screen.Update(1100)
	if drv.conn || drv.speed != 0 || drv.pct != 0 {
		t.Errorf("after disconnect: conn=%v speed=%d pct=%d", drv.conn, drv.speed, drv.pct)
	}
}

func TestStatusScreenSetConfig(t *testing.T) {
	installClock(t, 1000)

	var tel Telemetry
	tel.Update(protocol.TelemetryData{ERPM: 7000})
	la := NewLevelAssistant(nil, false)
	drv := &recordingDisplay{}
	screen := NewStatusScreen(drv, &tel, la, DefaultRiderConfig())

	screen.Update(1000)
	base := drv.speed

	// Smaller wheels read slower at the same ERPM.
	cfg := DefaultRiderConfig()
	cfg.WheelDiameterMM = 80
	screen.SetConfig(cfg)
	screen.Update(1100)
	if drv.speed >= base {
		t.Errorf("smaller wheel did not lower speed: %d -> %d", base, drv.speed)
	}
}

func TestBatteryPercentBounds(t *testing.T) {
	cases := []struct {
		name string
		v    protocol.TelemetryData
		want int
	}{
		{"no data", protocol.TelemetryData{}, 0},
		{"full", protocol.TelemetryData{PackVoltage: 42.0, CellCount: 10}, 100},
		{"empty", protocol.TelemetryData{PackVoltage: 30.0, CellCount: 10}, 0},
		{"below empty", protocol.TelemetryData{PackVoltage: 25.0, CellCount: 10}, 0},
		{"above full", protocol.TelemetryData{PackVoltage: 44.0, CellCount: 10}, 100},
		{"half", protocol.TelemetryData{PackVoltage: 36.0, CellCount: 10}, 50},
	}
	for _, c := range cases {
		if got := batteryPercent(c.v); got != c.want {
			t.Errorf("%s: batteryPercent = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestTelemetryLifecycle(t *testing.T) {
	clk := installClock(t, 2000)
	var tel Telemetry

	if tel.Connected() {
		t.Error("connected before any update")
	}
	if tel.ERPM() != 0 {
		t.Error("nonzero ERPM before any update")
	}

	tel.Update(protocol.TelemetryData{ERPM: -350, InputVoltage: 41.2})
	if !tel.Connected() {
		t.Error("not connected after update")
	}
	if tel.ERPM() != -350 {
		t.Errorf("ERPM = %d, want -350", tel.ERPM())
	}
	if tel.LastUpdateMS() != 2000 {
		t.Errorf("LastUpdateMS = %d, want 2000", tel.LastUpdateMS())
	}

	clk.now = 5000
	tel.MarkDisconnected()
	if tel.Connected() {
		t.Error("still connected after MarkDisconnected")
	}
	// The snapshot is zeroed so stale speed cannot leak into control.
	if tel.ERPM() != 0 || tel.Snapshot().InputVoltage != 0 {
		t.Error("stale telemetry survived disconnect")
	}
}
