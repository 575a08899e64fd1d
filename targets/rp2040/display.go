//go:build rp2040

package main

import (
	"image/color"
	"machine"
	"strconv"

	"tinygo.org/x/drivers/st7789"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"

	"skatelink/core"
)

// Display wiring (240x320 TFT on SPI0).
const (
	tftSCK   = machine.GPIO2
	tftMOSI  = machine.GPIO3
	tftCS    = machine.GPIO5
	tftDC    = machine.GPIO6
	tftReset = machine.GPIO7
	tftBL    = machine.GPIO8
)

var (
	colorBG     = color.RGBA{0, 0, 0, 255}
	colorText   = color.RGBA{255, 255, 255, 255}
	colorGood   = color.RGBA{0, 200, 0, 255}
	colorBad    = color.RGBA{220, 0, 0, 255}
	colorAssist = color.RGBA{0, 120, 255, 255}
)

// st7789Display renders the status screen. It only redraws a line when
// its value changes; a full-screen repaint every tick would starve the
// main loop.
type st7789Display struct {
	dev st7789.Device

	lastSpeed   int32
	lastPct     int
	lastAssist  string
	lastConn    bool
	firstUpdate bool
}

func newST7789Display() *st7789Display {
	machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 8000000,
		SCK:       tftSCK,
		SDO:       tftMOSI,
		Mode:      0,
	})

	d := &st7789Display{firstUpdate: true}
	d.dev = st7789.New(machine.SPI0, tftReset, tftDC, tftCS, tftBL)
	d.dev.Configure(st7789.Config{
		Width:    240,
		Height:   320,
		Rotation: st7789.NO_ROTATION,
	})
	d.dev.FillScreen(colorBG)

	d.lastSpeed = -1
	d.lastPct = -1
	return d
}

func (d *st7789Display) drawLine(y int16, text string, c color.RGBA) {
	d.dev.FillRectangle(0, y-24, 240, 32, colorBG)
	tinyfont.WriteLine(&d.dev, &freemono.Bold12pt7b, 8, y, text, c)
}

func (d *st7789Display) ShowSpeed(kmh int32) {
	if kmh == d.lastSpeed && !d.firstUpdate {
		return
	}
	d.lastSpeed = kmh
	d.drawLine(60, strconv.Itoa(int(kmh))+" km/h", colorText)
}

func (d *st7789Display) ShowBatteryPercent(pct int) {
	if pct == d.lastPct && !d.firstUpdate {
		return
	}
	d.lastPct = pct
	c := colorGood
	if pct < 20 {
		c = colorBad
	}
	d.drawLine(120, "BAT "+strconv.Itoa(pct)+"%", c)
}

func (d *st7789Display) ShowAssist(enabled bool, mode core.Mode) {
	text := "ASSIST OFF"
	c := colorText
	if enabled {
		text = "ASSIST " + mode.String()
		c = colorAssist
	}
	if text == d.lastAssist && !d.firstUpdate {
		return
	}
	d.lastAssist = text
	d.drawLine(180, text, c)
}

func (d *st7789Display) ShowConnection(ok bool) {
	if ok == d.lastConn && !d.firstUpdate {
		return
	}
	d.lastConn = ok
	d.firstUpdate = false
	if ok {
		d.drawLine(240, "LINK UP", colorGood)
	} else {
		d.drawLine(240, "NO LINK", colorBad)
	}
}
