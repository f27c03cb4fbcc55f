// Package goroutine starts background goroutines that log panics instead of
// crashing the server, and lets tests assert that those goroutines exit.
package goroutine

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// StackTraceBufferSize is the buffer size for stack trace collection
const StackTraceBufferSize = 4096

// fallback receives panics when no logger is available
var fallback io.Writer = os.Stderr

// Go runs fn in a new goroutine. A panic in fn is logged under name and the goroutine exits.
func Go(name string, logger *zap.SugaredLogger, fn func()) {
	go func() {
		defer Recover(name, logger)
		fn()
	}()
}

// Recover must be deferred directly. It logs a recovered panic with its stack.
func Recover(name string, logger *zap.SugaredLogger) {
	r := recover()
	if r == nil {
		return
	}

	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)

	if logger == nil {
		fmt.Fprintf(fallback, "PANIC in goroutine %s (no logger): %v\n%s\n", name, r, buf[:n])
		return
	}
	logger.Errorw("Goroutine panic recovered",
		"goroutine", name,
		"panic", r,
		"stack", string(buf[:n]))
}
