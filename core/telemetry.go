package core

import (
	"sync"

	"skatelink/protocol"
)

// Telemetry holds the latest values received over the link. The link
// task writes, the control tick and the display read; staleness and
// reconnect policy live with the link code, this is just the shared
// snapshot.
type Telemetry struct {
	mu           sync.Mutex
	v            protocol.TelemetryData
	connected    bool
	lastUpdateMS uint32
}

// Update replaces the snapshot and marks the link alive.
func (t *Telemetry) Update(v protocol.TelemetryData) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.v = v
	t.connected = true
	t.lastUpdateMS = NowMS()
}

// MarkDisconnected zeroes the snapshot so stale speed or current can
// never be displayed or fed into the control loop as live data.
func (t *Telemetry) MarkDisconnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.v = protocol.TelemetryData{}
	t.connected = false
}

// Connected reports whether the link has delivered data since the last
// disconnect.
func (t *Telemetry) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// LastUpdateMS returns the clock stamp of the latest update.
func (t *Telemetry) LastUpdateMS() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUpdateMS
}

// ERPM returns the latest known motor speed. Zero when disconnected,
// which reads as "not rolling" everywhere it matters.
func (t *Telemetry) ERPM() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.v.ERPM
}

// Snapshot returns a copy of the full value set.
func (t *Telemetry) Snapshot() protocol.TelemetryData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.v
}
