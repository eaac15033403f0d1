// Package report turns probe results into row-oriented persisted output:
// one-shot scan and diff reports (full overwrite) and continuous monitor
// logs (append with header-on-create).
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kestrelsec/netcontrol/pkg/baseline"
	"github.com/kestrelsec/netcontrol/pkg/probe"
)

// OpenPorts extracts the sorted set of ports that answered, the shape the
// baseline store and diff engine consume.
func OpenPorts(results []probe.Result) []uint16 {
	seen := make(map[uint16]struct{})
	var out []uint16
	for _, res := range results {
		if !res.Reachable {
			continue
		}
		if _, ok := seen[res.Unit.Port]; ok {
			continue
		}
		seen[res.Unit.Port] = struct{}{}
		out = append(out, res.Unit.Port)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reachable filters a result list down to the endpoints that answered.
func Reachable(results []probe.Result) []probe.Result {
	var out []probe.Result
	for _, res := range results {
		if res.Reachable {
			out = append(out, res)
		}
	}
	return out
}

// FilterBanner keeps results whose detail contains keyword, case-insensitive.
// An empty keyword keeps everything.
func FilterBanner(results []probe.Result, keyword string) []probe.Result {
	if keyword == "" {
		return results
	}
	keyword = strings.ToLower(keyword)
	var out []probe.Result
	for _, res := range results {
		if strings.Contains(strings.ToLower(res.Detail), keyword) {
			out = append(out, res)
		}
	}
	return out
}

// WriteScanCSV writes a one-shot TCP scan report, fully overwriting any
// previous file at path.
func WriteScanCSV(path string, results []probe.Result) error {
	return writeAll(path, [][]string{{"address", "port", "reachable", "service_name", "banner"}}, func(rows [][]string) [][]string {
		for _, res := range results {
			banner := ""
			if res.Unit.Kind == probe.TCPBanner && res.Reachable {
				banner = res.Detail
			}
			rows = append(rows, []string{
				res.Unit.Address,
				strconv.Itoa(int(res.Unit.Port)),
				strconv.FormatBool(res.Reachable),
				probe.ServiceName(res.Unit.Port),
				banner,
			})
		}
		return rows
	})
}

// WriteDiffCSV writes a port drift report: NEW rows first, then CLOSED, each
// group ascending. One-shot; always overwrites.
func WriteDiffCSV(path string, d baseline.Diff) error {
	return writeAll(path, [][]string{{"change_type", "port"}}, func(rows [][]string) [][]string {
		for _, p := range d.Added {
			rows = append(rows, []string{"NEW", strconv.Itoa(int(p))})
		}
		for _, p := range d.Removed {
			rows = append(rows, []string{"CLOSED", strconv.Itoa(int(p))})
		}
		return rows
	})
}

// WriteLivenessCSV writes a one-shot host liveness report.
func WriteLivenessCSV(path string, results []probe.Result) error {
	return writeAll(path, [][]string{{"timestamp", "host", "status", "latency_ms"}}, func(rows [][]string) [][]string {
		for _, res := range results {
			rows = append(rows, livenessRow(res, false))
		}
		return rows
	})
}

// CSVAppender is the continuous-monitor sink: it appends one row per result
// and writes the header only when it creates the file. The file is opened
// per append so long-running monitors survive log rotation underneath them.
type CSVAppender struct {
	path     string
	withPort bool
}

// NewCSVAppender returns an appender writing to path. withPort selects the
// service-monitor row shape (timestamp, host, port, status, latency_ms) over
// the host-liveness shape without the port column.
func NewCSVAppender(path string, withPort bool) *CSVAppender {
	return &CSVAppender{path: path, withPort: withPort}
}

// Append writes one result row, creating the file with a header if needed.
func (a *CSVAppender) Append(res probe.Result) error {
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", a.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat sink %s: %w", a.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		header := []string{"timestamp", "host", "status", "latency_ms"}
		if a.withPort {
			header = []string{"timestamp", "host", "port", "status", "latency_ms"}
		}
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write sink %s: %w", a.path, err)
		}
	}
	if err := w.Write(livenessRow(res, a.withPort)); err != nil {
		return fmt.Errorf("write sink %s: %w", a.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write sink %s: %w", a.path, err)
	}
	return nil
}

func livenessRow(res probe.Result, withPort bool) []string {
	status := "DOWN"
	latency := ""
	if res.Reachable {
		status = "UP"
		latency = strconv.FormatFloat(float64(res.Latency.Microseconds())/1000.0, 'f', 2, 64)
	}
	row := []string{res.ObservedAt.UTC().Format("2006-01-02 15:04:05"), res.Unit.Address}
	if withPort {
		row = append(row, strconv.Itoa(int(res.Unit.Port)))
	}
	return append(row, status, latency)
}

// writeAll renders header+rows and replaces the destination wholesale. The
// error is surfaced to the caller; the in-memory report is untouched so the
// caller can retry against another destination.
func writeAll(path string, header [][]string, fill func([][]string) [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sink %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(fill(header)); err != nil {
		return fmt.Errorf("write sink %s: %w", path, err)
	}
	return nil
}
