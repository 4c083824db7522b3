// Package testutil holds helpers shared by package tests: channel
// assertions, synthetic PDF fixtures and a fake renderer.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds every wait on asynchronous work in tests.
const DefaultTestTimeout = 5 * time.Second

// Receive returns the next value from ch, failing the test after timeout.
func Receive[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v
	case <-timer.C:
		require.FailNow(t, "timed out waiting: "+msg)
	}
	var zero T
	return zero
}

// NoReceive fails the test if ch yields a value within wait.
func NoReceive[T any](t *testing.T, ch <-chan T, wait time.Duration, msg string) {
	t.Helper()
	select {
	case v := <-ch:
		require.FailNowf(t, msg, "unexpected value %v", v)
	case <-time.After(wait):
	}
}
