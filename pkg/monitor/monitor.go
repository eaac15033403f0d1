// Package monitor re-runs a fixed probe set on a timer and fans each cycle's
// results out to persisted row sinks.
package monitor

import (
	"context"
	"log"
	"time"

	"github.com/kestrelsec/netcontrol/pkg/probe"
	"github.com/kestrelsec/netcontrol/pkg/publish"
	"github.com/kestrelsec/netcontrol/pkg/report"
	"github.com/kestrelsec/netcontrol/pkg/storage"
)

// Runner executes one batch of probe units. *probe.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, units []probe.Unit, onResult func(probe.Result)) probe.Report
}

// Sink consumes one result row per cycle. Sink failures are logged and do
// not abort the cycle; the remaining sinks still receive the row.
type Sink interface {
	Append(ctx context.Context, cycleID string, res probe.Result) error
}

// Monitor drives repeated scan cycles over the same unit set. There is no
// accumulation across cycles; each cycle's report is flushed to the sinks
// and dropped.
type Monitor struct {
	runner   Runner
	units    []probe.Unit
	interval time.Duration
	sinks    []Sink
}

// New builds a monitor. Interval below one second is clamped to one second.
func New(runner Runner, units []probe.Unit, interval time.Duration, sinks ...Sink) *Monitor {
	if interval < time.Second {
		interval = time.Second
	}
	return &Monitor{runner: runner, units: units, interval: interval, sinks: sinks}
}

// RunCycle executes a single cycle and appends every result row to every
// sink, in report order.
func (m *Monitor) RunCycle(ctx context.Context) probe.Report {
	rep := m.runner.Run(ctx, m.units, nil)
	for _, res := range rep.Results {
		for _, sink := range m.sinks {
			if err := sink.Append(ctx, rep.ID, res); err != nil {
				log.Printf("monitor sink: %v", err)
			}
		}
	}
	return rep
}

// Run cycles immediately and then on every interval tick until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		rep := m.RunCycle(ctx)
		log.Printf("cycle %s: %d/%d reachable", rep.ID, rep.ReachableCount, rep.TotalUnits)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CSV adapts a report.CSVAppender into a Sink.
func CSV(a *report.CSVAppender) Sink {
	return csvSink{a: a}
}

type csvSink struct {
	a *report.CSVAppender
}

func (s csvSink) Append(ctx context.Context, cycleID string, res probe.Result) error {
	return s.a.Append(res)
}

// Repo adapts a storage.Repository into a Sink: each row lands in the
// append-only observation log and refreshes the endpoint's latest state.
func Repo(r storage.Repository) Sink {
	return repoSink{r: r}
}

type repoSink struct {
	r storage.Repository
}

func (s repoSink) Append(ctx context.Context, cycleID string, res probe.Result) error {
	obs := storage.Observation{
		CycleID:    cycleID,
		Address:    res.Unit.Address,
		Port:       res.Unit.Port,
		Kind:       string(res.Unit.Kind),
		Reachable:  res.Reachable,
		LatencyMS:  float64(res.Latency.Microseconds()) / 1000.0,
		Detail:     res.Detail,
		ObservedAt: res.ObservedAt,
	}
	if err := s.r.AppendObservation(ctx, obs); err != nil {
		return err
	}
	return s.r.UpsertLatest(ctx, obs)
}

// Pub adapts a publish.Publisher into a Sink.
func Pub(p publish.Publisher) Sink {
	return pubSink{p: p}
}

type pubSink struct {
	p publish.Publisher
}

func (s pubSink) Append(ctx context.Context, cycleID string, res probe.Result) error {
	return s.p.Publish(ctx, cycleID, res)
}
