//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Status LED pulser. One PIO state machine generates the blink/breathe
// waveform in hardware so the main loop only posts a duty word when the
// pattern changes.
//
// Command word format:
//
//	Bits 0-15:  on ticks
//	Bits 16-31: off ticks
//
// Program flow: pull a command, run the high phase for X ticks, the low
// phase for Y ticks, then pull the next command.
func buildPulserProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),           // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),    // 1: out x, 16 (on ticks)
		asm.Out(rp2pio.OutDestY, 16).Encode(),    // 2: out y, 16 (off ticks)
		asm.Set(rp2pio.SetDestPins, 1).Encode(),  // 3: set pins, 1
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 4: jmp x--, 4
		asm.Set(rp2pio.SetDestPins, 0).Encode(),  // 5: set pins, 0
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		// .wrap
	}
}

const pulserOrigin = 0 // load at offset 0 for correct jump addresses

// Pulse patterns, in state-machine ticks (~20us each at div 2500).
const (
	// Connected: long on, short off - a steady glow with a heartbeat.
	connOnTicks  = 45000
	connOffTicks = 5000
	// Searching: even fast blink.
	searchOnTicks  = 12000
	searchOffTicks = 12000
)

type statusLED struct {
	sm        rp2pio.StateMachine
	connected bool
	primed    bool
}

func newStatusLED(pin machine.Pin) *statusLED {
	led := &statusLED{sm: rp2pio.PIO0.StateMachine(0)}
	led.sm.TryClaim()

	program := buildPulserProgram()
	offset, err := rp2pio.PIO0.AddProgram(program, pulserOrigin)
	if err != nil {
		// No PIO space: leave the LED dark rather than fault the remote.
		return led
	}

	pin.Configure(machine.PinConfig{Mode: rp2pio.PIO0.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(pin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	// ~50kHz tick so 16-bit phase counts cover second-scale pulses.
	cfg.SetClkDivIntFrac(2500, 0)

	led.sm.Init(offset, cfg)
	led.sm.SetPindirsConsecutive(pin, 1, true)
	led.sm.SetPinsConsecutive(pin, 1, false)
	led.sm.SetEnabled(true)
	led.primed = false
	return led
}

// Update posts the pattern for the current link state. The FIFO holds
// a few words, so a full FIFO just means the pattern is already queued.
func (l *statusLED) Update(connected bool) {
	if l.primed && connected == l.connected {
		if l.sm.IsTxFIFOFull() {
			return
		}
	}
	l.connected = connected
	l.primed = true

	var cmd uint32
	if connected {
		cmd = uint32(connOnTicks) | uint32(connOffTicks)<<16
	} else {
		cmd = uint32(searchOnTicks) | uint32(searchOffTicks)<<16
	}
	if !l.sm.IsTxFIFOFull() {
		l.sm.TxPut(cmd)
	}
}
