package core

import "skatelink/protocol"

// DisplayDriver is the abstract status-screen interface. Rendering,
// layout and refresh timing belong to the target's display code; core
// only decides what the screen should currently say.
type DisplayDriver interface {
	ShowSpeed(kmh int32)
	ShowBatteryPercent(pct int)
	ShowAssist(enabled bool, mode Mode)
	ShowConnection(ok bool)
}

// Per-cell voltage window used to estimate charge from pack voltage.
const (
	cellEmptyV = 3.0
	cellFullV  = 4.2
)

// StatusScreen feeds the display driver from the shared telemetry and
// controller state. Update runs on its own slow cadence; it reads
// snapshots only and never blocks the control tick.
type StatusScreen struct {
	drv DisplayDriver
	tel *Telemetry
	la  *LevelAssistant
	cfg RiderConfig
}

// NewStatusScreen wires the screen to its data sources.
func NewStatusScreen(drv DisplayDriver, tel *Telemetry, la *LevelAssistant, cfg RiderConfig) *StatusScreen {
	return &StatusScreen{drv: drv, tel: tel, la: la, cfg: cfg}
}

// SetConfig swaps the drivetrain configuration used for speed readout.
func (s *StatusScreen) SetConfig(cfg RiderConfig) {
	s.cfg = cfg
}

// Update pushes current values to the display driver.
func (s *StatusScreen) Update(nowMS uint32) {
	connected := s.tel.Connected()
	v := s.tel.Snapshot()

	s.drv.ShowConnection(connected)
	s.drv.ShowSpeed(s.cfg.SpeedKMH(v.ERPM))
	s.drv.ShowBatteryPercent(batteryPercent(v))

	snap := s.la.Snapshot()
	s.drv.ShowAssist(snap.Enabled, snap.Mode)
}

// batteryPercent estimates pack charge from voltage. Linear between the
// empty and full cell voltages; crude but honest enough for a glance at
// the remote.
func batteryPercent(v protocol.TelemetryData) int {
	if v.CellCount == 0 || v.PackVoltage <= 0 {
		return 0
	}
	perCell := v.PackVoltage / float32(v.CellCount)
	pct := int((perCell - cellEmptyV) / (cellFullV - cellEmptyV) * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
