// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected fire-and-forget goroutines
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs a function in a goroutine with panic recovery. Panics are
// logged and do not crash the process. Use it for async side work such as
// record cleanup where failure should not be fatal.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			if logger != nil {
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(buf[:n])).
					Msg("Recovered from panic in goroutine")
				return
			}
			fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, buf[:n])
		}()

		fn()
	}()
}
