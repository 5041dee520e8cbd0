// internal/scout/source.go
package scout

import (
	"context"
	"time"
)

// Candidate is a tradable token discovered by a signal source.
type Candidate struct {
	Symbol     string
	Address    string
	Source     string
	Price      float64 // optional, 0 when the source does not report one
	DetectedAt time.Time
}

// Source is a pluggable signal source. A concrete source knows how to pull
// the current set of visible tokens from one place; the Driver turns that
// into new-token notifications.
type Source interface {
	// Name identifies the source in candidates and logs.
	Name() string
	// Initialize prepares the source (connections, sessions).
	Initialize(ctx context.Context) error
	// Teardown releases whatever Initialize acquired.
	Teardown() error
	// Extract returns the tokens currently visible to the source.
	Extract(ctx context.Context) ([]Candidate, error)
}
