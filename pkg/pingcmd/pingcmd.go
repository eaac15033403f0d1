// Package pingcmd implements the liveness probe backend by invoking the
// platform ping binary. Raw ICMP sockets need elevated privileges on most
// systems; the system ping is setuid/capability-blessed everywhere, so
// shelling out is the portable unprivileged option.
package pingcmd

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

// rttPattern matches the round-trip time in ping output across Linux, macOS
// ("time=12.3 ms") and Windows ("time=12ms" / "time<1ms") variants.
var rttPattern = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)

// Pinger shells out to ping for each echo request. It satisfies probe.Pinger.
type Pinger struct {
	// Binary overrides the ping executable, mainly for tests.
	Binary string
}

// New returns a Pinger using the system ping binary.
func New() *Pinger {
	return &Pinger{Binary: "ping"}
}

// Ping sends one echo request to address and returns the parsed round-trip
// time. A non-zero exit status or expired deadline means the host did not
// answer.
func (p *Pinger) Ping(ctx context.Context, address string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := p.Binary
	if bin == "" {
		bin = "ping"
	}
	cmd := exec.CommandContext(ctx, bin, pingArgs(address, timeout)...)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", address, err)
	}
	rtt, ok := ParseRTT(string(out))
	if !ok {
		// Exit zero without a parsable time still proves liveness.
		return 0, nil
	}
	return rtt, nil
}

// pingArgs builds a single-echo invocation for the current platform.
func pingArgs(address string, timeout time.Duration) []string {
	switch runtime.GOOS {
	case "windows":
		ms := int(timeout / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
		return []string{"-n", "1", "-w", strconv.Itoa(ms), address}
	case "darwin":
		ms := int(timeout / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
		return []string{"-c", "1", "-W", strconv.Itoa(ms), address}
	default:
		sec := int(math.Ceil(timeout.Seconds()))
		if sec < 1 {
			sec = 1
		}
		return []string{"-c", "1", "-W", strconv.Itoa(sec), address}
	}
}

// ParseRTT extracts the echo round-trip time from ping's textual output.
func ParseRTT(output string) (time.Duration, bool) {
	m := rttPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}
