// Package storage defines persistence for continuous-monitor observations.
package storage

import (
	"context"
	"time"
)

// Observation is one persisted probe outcome from a monitor cycle.
type Observation struct {
	CycleID    string
	Address    string
	Port       uint16
	Kind       string
	Reachable  bool
	LatencyMS  float64
	Detail     string
	ObservedAt time.Time
}

// Repository defines persistence operations for observations.
type Repository interface {
	// AppendObservation records one row in the time-series log.
	AppendObservation(ctx context.Context, obs Observation) error
	// UpsertLatest keeps the newest state per (address, port) endpoint.
	UpsertLatest(ctx context.Context, obs Observation) error
}
