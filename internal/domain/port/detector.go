package port

import (
	"context"
	"time"
)

// ReadinessDetector scans daemon output for the public tunnel URL
type ReadinessDetector interface {
	// Watch returns the first URL found on lines. It fails with a premature
	// exit error when lines closes first and a timeout error when nothing
	// matches within timeout.
	Watch(ctx context.Context, lines <-chan string, timeout time.Duration) (string, error)
}
