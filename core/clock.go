package core

import "time"

var bootTime = time.Now()

// NowMS is the millisecond clock used by the control path. It counts
// from an arbitrary epoch and is only ever used for differences, so
// uint32 wraparound is harmless. Tests replace it with a scripted
// clock to make the controller deterministic.
var NowMS func() uint32 = monotonicMS

func monotonicMS() uint32 {
	return uint32(time.Since(bootTime) / time.Millisecond)
}
