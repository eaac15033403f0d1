package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kestrelsec/netcontrol/pkg/baseline"
	"github.com/kestrelsec/netcontrol/pkg/probe"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func result(addr string, port uint16, kind probe.Kind, reachable bool, detail string) probe.Result {
	return probe.Result{
		Unit:       probe.Unit{Address: addr, Port: port, Kind: kind, Timeout: time.Second},
		Reachable:  reachable,
		Latency:    15 * time.Millisecond,
		Detail:     detail,
		ObservedAt: time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC),
	}
}

func TestOpenPorts(t *testing.T) {
	results := []probe.Result{
		result("h", 443, probe.TCPConnect, true, "https"),
		result("h", 22, probe.TCPConnect, true, "ssh"),
		result("h", 80, probe.TCPConnect, false, probe.DetailRefused),
		result("h", 22, probe.TCPBanner, true, "SSH-2.0"),
	}
	got := OpenPorts(results)
	if !reflect.DeepEqual(got, []uint16{22, 443}) {
		t.Fatalf("got %v", got)
	}
}

func TestFilterBanner(t *testing.T) {
	results := []probe.Result{
		result("h", 80, probe.TCPBanner, true, "HTTP/1.1 200 OK Server: nginx"),
		result("h", 22, probe.TCPBanner, true, "SSH-2.0-OpenSSH"),
	}
	got := FilterBanner(results, "http")
	if len(got) != 1 || got[0].Unit.Port != 80 {
		t.Fatalf("got %v", got)
	}
	if got := FilterBanner(results, ""); len(got) != 2 {
		t.Fatalf("empty keyword should keep everything, got %d", len(got))
	}
}

func TestWriteScanCSVOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.csv")
	results := []probe.Result{
		result("10.0.0.5", 22, probe.TCPBanner, true, "SSH-2.0-OpenSSH"),
		result("10.0.0.5", 81, probe.TCPConnect, false, probe.DetailTimeout),
	}

	if err := WriteScanCSV(path, results); err != nil {
		t.Fatalf("WriteScanCSV: %v", err)
	}
	// A second write with fewer rows must fully replace, not append.
	if err := WriteScanCSV(path, results[:1]); err != nil {
		t.Fatalf("WriteScanCSV: %v", err)
	}

	rows := readCSV(t, path)
	want := [][]string{
		{"address", "port", "reachable", "service_name", "banner"},
		{"10.0.0.5", "22", "true", "ssh", "SSH-2.0-OpenSSH"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %v want %v", rows, want)
	}
}

func TestWriteDiffCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.csv")
	d := baseline.Diff{Added: []uint16{443, 8080}, Removed: []uint16{80}}

	if err := WriteDiffCSV(path, d); err != nil {
		t.Fatalf("WriteDiffCSV: %v", err)
	}

	rows := readCSV(t, path)
	want := [][]string{
		{"change_type", "port"},
		{"NEW", "443"},
		{"NEW", "8080"},
		{"CLOSED", "80"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %v want %v", rows, want)
	}
}

func TestWriteLivenessCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.csv")
	results := []probe.Result{
		result("10.0.0.1", 0, probe.ICMPEcho, true, ""),
		result("10.0.0.2", 0, probe.ICMPEcho, false, probe.DetailTimeout),
	}

	if err := WriteLivenessCSV(path, results); err != nil {
		t.Fatalf("WriteLivenessCSV: %v", err)
	}

	rows := readCSV(t, path)
	want := [][]string{
		{"timestamp", "host", "status", "latency_ms"},
		{"2026-08-24 10:30:00", "10.0.0.1", "UP", "15.00"},
		{"2026-08-24 10:30:00", "10.0.0.2", "DOWN", ""},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %v want %v", rows, want)
	}
}

func TestCSVAppenderHeaderOnlyOnCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uptime.csv")
	a := NewCSVAppender(path, true)

	if err := a.Append(result("db", 5432, probe.TCPConnect, true, "postgresql")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Append(result("db", 5432, probe.TCPConnect, false, probe.DetailTimeout)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows := readCSV(t, path)
	want := [][]string{
		{"timestamp", "host", "port", "status", "latency_ms"},
		{"2026-08-24 10:30:00", "db", "5432", "UP", "15.00"},
		{"2026-08-24 10:30:00", "db", "5432", "DOWN", ""},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %v want %v", rows, want)
	}
}
