package goroutine

import (
	"runtime"
	"testing"
	"time"
)

// AssertNoLeaks fails the test if, after cleanup, more goroutines are running
// than when it was called. Call it before starting anything.
func AssertNoLeaks(t testing.TB) {
	t.Helper()
	AssertNoLeaksWithin(t, 5*time.Second)
}

// AssertNoLeaksWithin is AssertNoLeaks with a custom grace period
func AssertNoLeaksWithin(t testing.TB, grace time.Duration) {
	t.Helper()
	before := runtime.NumGoroutine()

	t.Cleanup(func() {
		deadline := time.Now().Add(grace)
		for time.Now().Before(deadline) {
			if runtime.NumGoroutine() <= before {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}

		current := runtime.NumGoroutine()
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		t.Errorf("goroutine leak detected: started with %d goroutines, ended with %d", before, current)
		t.Logf("Active goroutines:\n%s", buf[:n])
	})
}
