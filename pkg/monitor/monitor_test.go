package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kestrelsec/netcontrol/pkg/probe"
	"github.com/kestrelsec/netcontrol/pkg/storage"
)

type stubRunner struct {
	cycles int
}

func (s *stubRunner) Run(ctx context.Context, units []probe.Unit, onResult func(probe.Result)) probe.Report {
	s.cycles++
	results := make([]probe.Result, len(units))
	for i, u := range units {
		results[i] = probe.Result{
			Unit:       u,
			Reachable:  i%2 == 0,
			Latency:    5 * time.Millisecond,
			ObservedAt: time.Now().UTC(),
		}
	}
	rep := probe.Report{
		ID:         "cycle-stub",
		Results:    results,
		TotalUnits: len(results),
	}
	for _, r := range results {
		if r.Reachable {
			rep.ReachableCount++
		}
	}
	return rep
}

type recordingSink struct {
	rows     []probe.Result
	cycleIDs []string
	err      error
}

func (s *recordingSink) Append(ctx context.Context, cycleID string, res probe.Result) error {
	s.rows = append(s.rows, res)
	s.cycleIDs = append(s.cycleIDs, cycleID)
	return s.err
}

type recordingRepo struct {
	appended []storage.Observation
	upserted []storage.Observation
}

func (r *recordingRepo) AppendObservation(ctx context.Context, obs storage.Observation) error {
	r.appended = append(r.appended, obs)
	return nil
}

func (r *recordingRepo) UpsertLatest(ctx context.Context, obs storage.Observation) error {
	r.upserted = append(r.upserted, obs)
	return nil
}

func units(n int) []probe.Unit {
	out := make([]probe.Unit, n)
	for i := range out {
		out[i] = probe.Unit{Address: "10.0.0.5", Port: uint16(i + 1), Kind: probe.TCPConnect, Timeout: time.Second}
	}
	return out
}

func TestRunCycleFansOutToAllSinks(t *testing.T) {
	runner := &stubRunner{}
	good := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	second := &recordingSink{}

	m := New(runner, units(3), time.Second, good, failing, second)
	rep := m.RunCycle(context.Background())

	if rep.TotalUnits != 3 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	// The failing sink must not starve the one after it.
	for _, s := range []*recordingSink{good, failing, second} {
		if len(s.rows) != 3 {
			t.Fatalf("sink saw %d rows, want 3", len(s.rows))
		}
		for _, id := range s.cycleIDs {
			if id != "cycle-stub" {
				t.Fatalf("unexpected cycle id %q", id)
			}
		}
	}
	// Rows arrive in report order.
	for i, res := range good.rows {
		if res.Unit.Port != uint16(i+1) {
			t.Fatalf("row %d out of order: port %d", i, res.Unit.Port)
		}
	}
}

func TestRunRepeatsCyclesUntilCancelled(t *testing.T) {
	runner := &stubRunner{}
	sink := &recordingSink{}
	m := New(runner, units(1), time.Second, sink)
	// The constructor clamps the interval; reach in for a fast test loop.
	m.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}

	if runner.cycles < 2 {
		t.Fatalf("expected at least 2 cycles, got %d", runner.cycles)
	}
	if len(sink.rows) != runner.cycles {
		t.Fatalf("sink rows %d != cycles %d", len(sink.rows), runner.cycles)
	}
}

func TestRepoSinkWritesLogAndLatest(t *testing.T) {
	repo := &recordingRepo{}
	sink := Repo(repo)

	res := probe.Result{
		Unit:       probe.Unit{Address: "db", Port: 5432, Kind: probe.TCPConnect, Timeout: time.Second},
		Reachable:  true,
		Latency:    4200 * time.Microsecond,
		Detail:     "postgresql",
		ObservedAt: time.Now().UTC(),
	}
	if err := sink.Append(context.Background(), "c1", res); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if len(repo.appended) != 1 || len(repo.upserted) != 1 {
		t.Fatalf("repo calls: appended=%d upserted=%d", len(repo.appended), len(repo.upserted))
	}
	obs := repo.appended[0]
	if obs.CycleID != "c1" || obs.Address != "db" || obs.Port != 5432 {
		t.Fatalf("unexpected observation: %+v", obs)
	}
	if obs.LatencyMS != 4.2 {
		t.Fatalf("latency ms: got %v want 4.2", obs.LatencyMS)
	}
	if obs.Kind != string(probe.TCPConnect) {
		t.Fatalf("kind: %q", obs.Kind)
	}
}
