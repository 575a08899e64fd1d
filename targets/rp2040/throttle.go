//go:build rp2040

package main

import (
	"machine"

	"skatelink/core"
)

// The throttle hall sensor sits on ADC0 (GPIO26).
var throttleADC = machine.ADC{Pin: machine.ADC0}

// initThrottleADC points the core sampling hooks at the hardware.
func initThrottleADC() {
	core.ThrottleSetup = func() error {
		throttleADC.Configure(machine.ADCConfig{})
		return nil
	}
	core.ThrottleSample = func() (uint16, bool) {
		// machine.ADC returns a left-aligned 16-bit value; the core
		// works in the native 12-bit range.
		return throttleADC.Get() >> 4, true
	}
	core.ThrottleSetup()
}
