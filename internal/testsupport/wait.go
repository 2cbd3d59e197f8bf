package testsupport

import (
	"testing"
	"time"
)

// WaitFor polls cond until it holds or the deadline expires.
func WaitFor(t testing.TB, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
