package testutil

import (
	"testing"
	"time"
)

// RequireClosed waits for ch to be closed within timeout, or fails the test.
//
//	testutil.RequireClosed(t, proc.Done(), 5*time.Second, "process exit")
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for %s", timeout, what)
	}
}
