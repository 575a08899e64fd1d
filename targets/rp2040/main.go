//go:build rp2040

package main

import (
	"machine"
	"time"

	"skatelink/core"
	"skatelink/protocol"
)

// Control cadences in milliseconds.
const (
	controlPeriodMS   = 20
	displayPeriodMS   = 100
	saverPeriodMS     = 500
	linkCheckPeriodMS = 1000

	// linkTimeoutMS is how long without a telemetry frame before the
	// link counts as down.
	linkTimeoutMS = 2000
)

var (
	telemetry core.Telemetry
	assistant *core.LevelAssistant
	throttle  *core.ThrottleReader

	radio   = machine.UART0
	linkOut = protocol.NewScratchOutput()
)

func main() {
	machine.InitADC()
	initThrottleADC()

	radio.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s + "\r\n"))
	})

	// TODO: back these with a flash page store; RAM-backed namespaces
	// lose calibration and learned gains at power-off.
	gainStore := core.NewMemStore()
	cfgStore := core.NewMemStore()

	cfg, err := core.InitRiderConfig(cfgStore)
	if err != nil {
		cfg = core.DefaultRiderConfig()
	}

	assistant = core.NewLevelAssistant(gainStore, true)
	throttle = core.NewThrottleReader(cfgStore)

	console := core.NewConsole()
	core.RegisterStandardCommands(console, assistant, cfgStore, throttle, &telemetry)

	screen := core.NewStatusScreen(newST7789Display(), &telemetry, assistant, cfg)
	led := newStatusLED(machine.GPIO25)

	linkDec := protocol.NewDecoder(512, func(ftype byte, payload []byte) {
		if ftype != protocol.FrameTelemetry {
			return
		}
		t, err := protocol.DecodeTelemetry(payload)
		if err != nil {
			return
		}
		telemetry.Update(t)
	})

	sched := core.NewScheduler()

	sched.AddPeriodic(controlPeriodMS, func(now uint32) {
		runCfg, err := core.LoadRiderConfig(cfgStore)
		if err != nil {
			runCfg = cfg
		}

		sample, ok := throttle.Sample()
		if !ok {
			sample = core.NeutralCenter
		}

		value := assistant.Process(sample, telemetry.ERPM(), runCfg.LevelAssist)
		if runCfg.InvertThrottle {
			value = 255 - value
		}

		linkOut.Reset()
		if protocol.EncodeThrottle(linkOut, uint16(value)) == nil {
			radio.Write(linkOut.Result())
		}
	})

	sched.AddPeriodic(displayPeriodMS, func(now uint32) {
		if runCfg, err := core.LoadRiderConfig(cfgStore); err == nil {
			screen.SetConfig(runCfg)
		}
		screen.Update(now)
		led.Update(telemetry.Connected())
	})

	// Learned-gain writes happen here, off the control tick.
	sched.AddPeriodic(saverPeriodMS, func(now uint32) {
		assistant.FlushPendingSave()
	})

	sched.AddPeriodic(linkCheckPeriodMS, func(now uint32) {
		if telemetry.Connected() && now-telemetry.LastUpdateMS() > linkTimeoutMS {
			telemetry.MarkDisconnected()
			// Throttle history spans the dropout; start clean.
			assistant.ResetState()
		}
	})

	var lineBuf [96]byte
	lineLen := 0
	var rxBuf [64]byte

	for {
		// Pump the radio into the frame decoder.
		n := 0
		for radio.Buffered() > 0 && n < len(rxBuf) {
			b, err := radio.ReadByte()
			if err != nil {
				break
			}
			rxBuf[n] = b
			n++
		}
		if n > 0 {
			linkDec.Feed(rxBuf[:n])
		}

		// Pump the USB console a line at a time.
		for machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			if b == '\r' || b == '\n' {
				if lineLen > 0 {
					console.Execute(machine.Serial, string(lineBuf[:lineLen]))
					lineLen = 0
				}
				continue
			}
			if lineLen < len(lineBuf) {
				lineBuf[lineLen] = b
				lineLen++
			}
		}

		sched.Run(core.NowMS())
		time.Sleep(time.Millisecond)
	}
}
