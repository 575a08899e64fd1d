package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"skatelink/host/serial"
	"skatelink/protocol"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud   = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	watch  = flag.Bool("watch", false, "Decode and print telemetry frames instead of opening a console")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	if *watch {
		watchTelemetry(port)
		return
	}
	console(port)
}

// console runs the interactive command session: stdin lines go to the
// remote, everything the remote prints comes back to stdout.
func console(port serial.Port) {
	fmt.Printf("Connected to %s. Type 'help' for commands, 'quit' to exit.\n", *device)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil && err != io.EOF {
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			return
		}
		if _, err := port.Write([]byte(line + "\n")); err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			return
		}
	}
}

// watchTelemetry decodes link frames arriving on the port and prints
// one line per telemetry update.
func watchTelemetry(port serial.Port) {
	dec := protocol.NewDecoder(1024, func(ftype byte, payload []byte) {
		switch ftype {
		case protocol.FrameTelemetry:
			t, err := protocol.DecodeTelemetry(payload)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad telemetry frame: %v\n", err)
				return
			}
			fmt.Printf("erpm=%d vin=%.2f imot=%.2f iin=%.2f tmos=%.1f tmot=%.1f pack=%.2fV/%.2fA cells=%d\n",
				t.ERPM, t.InputVoltage, t.MotorCurrent, t.InputCurrent,
				t.MOSFETTemp, t.MotorTemp, t.PackVoltage, t.PackCurrent, t.CellCount)
		case protocol.FrameThrottle:
			v, err := protocol.DecodeThrottle(payload)
			if err != nil {
				return
			}
			fmt.Printf("throttle=%d\n", v)
		default:
			fmt.Fprintf(os.Stderr, "unknown frame type 0x%02x (%d bytes)\n", ftype, len(payload))
		}
	})

	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil && err != io.EOF {
			fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
			return
		}
	}
}
