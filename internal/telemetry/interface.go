package telemetry

import (
	"context"
	"time"

	"codeberg.org/arvel/coherenced/internal/coherence"
)

// Collector defines the recording interface used by the daemon.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for telemetry storage.
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one telemetry row: the coherence metrics at evaluation
// time plus the verdict they produced.
type Snapshot struct {
	Timestamp          time.Time
	Metrics            coherence.Snapshot
	AverageIncoherence float64
	Ready              bool
}
