// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the watchdog.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r)
			}
		}()

		fn()
	}()
}

// SafeCall runs fn on the calling goroutine and converts a panic into an
// error, so one failing step cannot take the monitor loop down.
func SafeCall(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, name, r)
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()

	return fn()
}

func logPanic(logger arbor.ILogger, name string, r interface{}) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, r, stackTrace)
		return
	}
	logger.Error().
		Str("step", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", stackTrace).
		Msg("Recovered from panic - continuing watchdog operation")
}
