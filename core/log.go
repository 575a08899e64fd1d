package core

import "fmt"

// DebugWriter is a function type for writing debug messages.
type DebugWriter func(string)

// debugPrintln is the global debug print function. No-op by default so
// the control tick never blocks on output; platform code redirects it
// to UART, USB CDC or stderr as appropriate.
var debugPrintln DebugWriter = func(string) {}

// SetDebugWriter sets the platform-specific debug output function.
func SetDebugWriter(w DebugWriter) {
	if w == nil {
		w = func(string) {}
	}
	debugPrintln = w
}

func debugf(format string, args ...interface{}) {
	debugPrintln(fmt.Sprintf(format, args...))
}
