package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ConsoleHandler handles one console command. args excludes the command
// name; output goes to w.
type ConsoleHandler func(w io.Writer, args []string)

type consoleCmd struct {
	name    string
	help    string
	handler ConsoleHandler
}

// Console is the line-based command processor behind the USB serial
// port. Commands are registered once at init; Execute may be called
// from the serial task while the control loop runs.
type Console struct {
	cmds  map[string]*consoleCmd
	order []string
}

// NewConsole returns an empty command table.
func NewConsole() *Console {
	return &Console{cmds: make(map[string]*consoleCmd)}
}

// Register adds a command. Re-registering a name replaces the handler.
func (c *Console) Register(name, help string, handler ConsoleHandler) {
	if _, exists := c.cmds[name]; !exists {
		c.order = append(c.order, name)
	}
	c.cmds[name] = &consoleCmd{name: name, help: help, handler: handler}
}

// Execute parses one input line and runs the matching command. Unknown
// input produces an error line, never a fault.
func (c *Console) Execute(w io.Writer, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, ok := c.cmds[fields[0]]
	if !ok {
		fmt.Fprintf(w, "unknown command: %s (try 'help')\n", fields[0])
		return
	}
	cmd.handler(w, fields[1:])
}

// PrintHelp lists every command in registration order.
func (c *Console) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	for _, name := range c.order {
		fmt.Fprintf(w, "  %-24s %s\n", name, c.cmds[name].help)
	}
}

// RegisterStandardCommands installs the remote's command set: PID
// tuning, level-assist and throttle toggles, calibration and state
// inspection.
func RegisterStandardCommands(c *Console, la *LevelAssistant, cfgStore ParamStore, thr *ThrottleReader, tel *Telemetry) {
	c.Register("help", "List commands", func(w io.Writer, args []string) {
		c.PrintHelp(w)
	})

	gainCmd := func(name string, get func(Gains) float64, set func(float64)) {
		c.Register(name, "Show or set "+name+" gain", func(w io.Writer, args []string) {
			if len(args) == 0 {
				fmt.Fprintf(w, "%s = %.3f\n", name, get(la.Gains()))
				return
			}
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				fmt.Fprintf(w, "bad value: %s\n", args[0])
				return
			}
			set(v)
			// Setters drop out-of-range values; echo what actually took.
			fmt.Fprintf(w, "%s = %.3f\n", name, get(la.Gains()))
		})
	}
	gainCmd("pid_kp", func(g Gains) float64 { return g.Kp }, la.SetKp)
	gainCmd("pid_ki", func(g Gains) float64 { return g.Ki }, la.SetKi)
	gainCmd("pid_kd", func(g Gains) float64 { return g.Kd }, la.SetKd)
	gainCmd("pid_output_max", func(g Gains) float64 { return g.OutputMax }, la.SetOutputMax)

	c.Register("pid_show", "Show all PID parameters", func(w io.Writer, args []string) {
		g := la.Gains()
		fmt.Fprintf(w, "Kp (Proportional): %.3f\n", g.Kp)
		fmt.Fprintf(w, "Ki (Integral):     %.3f\n", g.Ki)
		fmt.Fprintf(w, "Kd (Derivative):   %.3f\n", g.Kd)
		fmt.Fprintf(w, "Output Max:        %.1f\n", g.OutputMax)
	})

	c.Register("pid_save", "Persist current PID parameters", func(w io.Writer, args []string) {
		if err := la.SaveGains(); err != nil {
			fmt.Fprintf(w, "save failed: %v\n", err)
			return
		}
		fmt.Fprintln(w, "PID parameters saved")
	})

	c.Register("pid_reset", "Restore default PID parameters and erase learned set", func(w io.Writer, args []string) {
		if err := la.ResetGainsToDefaults(); err != nil {
			fmt.Fprintf(w, "reset failed: %v\n", err)
			return
		}
		g := la.Gains()
		fmt.Fprintf(w, "PID reset to defaults: Kp=%.3f Ki=%.3f Kd=%.3f OutMax=%.1f\n",
			g.Kp, g.Ki, g.Kd, g.OutputMax)
	})

	boolCmd := func(name, help string, set func(cfg *RiderConfig, on bool)) {
		c.Register(name, help, func(w io.Writer, args []string) {
			if len(args) == 0 {
				fmt.Fprintf(w, "usage: %s <0|1>\n", name)
				return
			}
			cfg, err := LoadRiderConfig(cfgStore)
			if err != nil && err != ErrNotFound {
				fmt.Fprintf(w, "config load failed: %v\n", err)
				return
			}
			if err == ErrNotFound {
				cfg = DefaultRiderConfig()
			}
			set(&cfg, args[0] != "0")
			if err := SaveRiderConfig(cfgStore, cfg); err != nil {
				fmt.Fprintf(w, "config save failed: %v\n", err)
				return
			}
			fmt.Fprintf(w, "%s = %s\n", name, onOff(args[0] != "0"))
		})
	}
	boolCmd("assist", "Enable/disable level assist", func(cfg *RiderConfig, on bool) {
		cfg.LevelAssist = on
	})
	boolCmd("invert", "Enable/disable throttle inversion", func(cfg *RiderConfig, on bool) {
		cfg.InvertThrottle = on
	})

	c.Register("config_show", "Show rider configuration", func(w io.Writer, args []string) {
		cfg, err := LoadRiderConfig(cfgStore)
		if err == ErrNotFound {
			cfg = DefaultRiderConfig()
		} else if err != nil {
			fmt.Fprintf(w, "config load failed: %v\n", err)
			return
		}
		fmt.Fprintf(w, "Motor pulley:   %dT\n", cfg.MotorPulley)
		fmt.Fprintf(w, "Wheel pulley:   %dT\n", cfg.WheelPulley)
		fmt.Fprintf(w, "Wheel diameter: %dmm\n", cfg.WheelDiameterMM)
		fmt.Fprintf(w, "Motor poles:    %d\n", cfg.MotorPoles)
		fmt.Fprintf(w, "Invert:         %s\n", onOff(cfg.InvertThrottle))
		fmt.Fprintf(w, "Level assist:   %s\n", onOff(cfg.LevelAssist))
	})

	c.Register("calibrate", "Throttle span calibration: calibrate start|stop", func(w io.Writer, args []string) {
		if len(args) == 0 {
			fmt.Fprintln(w, "usage: calibrate start|stop")
			return
		}
		switch args[0] {
		case "start":
			thr.StartCalibration()
			fmt.Fprintln(w, "calibrating: sweep the throttle to both ends, then 'calibrate stop'")
		case "stop":
			if err := thr.FinishCalibration(); err != nil {
				fmt.Fprintf(w, "calibration rejected: %v\n", err)
				return
			}
			// History spans the calibration discontinuity; drop it.
			la.ResetState()
			fmt.Fprintln(w, "calibration saved")
		default:
			fmt.Fprintln(w, "usage: calibrate start|stop")
		}
	})

	c.Register("state", "Show level-assist controller state", func(w io.Writer, args []string) {
		s := la.Snapshot()
		fmt.Fprintf(w, "Enabled:      %v\n", s.Enabled)
		fmt.Fprintf(w, "Mode:         %s\n", s.Mode)
		fmt.Fprintf(w, "Output:       %.2f\n", s.Output)
		fmt.Fprintf(w, "Integral:     %.3f\n", s.Integral)
		fmt.Fprintf(w, "Avg error:    %.2f\n", s.AvgError)
		fmt.Fprintf(w, "Variance:     %.2f\n", s.ErrorVariance)
		fmt.Fprintf(w, "Oscillations: %d\n", s.Oscillations)
		fmt.Fprintf(w, "Samples:      %d/%d\n", s.Samples, PerformanceWindow)
	})

	c.Register("telemetry", "Show latest telemetry", func(w io.Writer, args []string) {
		if !tel.Connected() {
			fmt.Fprintln(w, "link down")
			return
		}
		v := tel.Snapshot()
		fmt.Fprintf(w, "ERPM: %d  Vin: %.2fV  Imot: %.2fA  Iin: %.2fA\n",
			v.ERPM, v.InputVoltage, v.MotorCurrent, v.InputCurrent)
		fmt.Fprintf(w, "Tmos: %.1fC  Tmot: %.1fC\n", v.MOSFETTemp, v.MotorTemp)
		fmt.Fprintf(w, "Pack: %.2fV %.2fA  %.2f/%.2fAh  %d cells\n",
			v.PackVoltage, v.PackCurrent, v.RemainingAh, v.NominalAh, v.CellCount)
	})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
