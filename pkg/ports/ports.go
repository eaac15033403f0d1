// Package ports turns user-supplied port specifications into sorted,
// deduplicated port sets ready for probing.
package ports

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidPortSpec reports a malformed port specification. Errors returned
// by Parse wrap it so callers can match with errors.Is.
var ErrInvalidPortSpec = errors.New("invalid port spec")

// FastSpec selects the well-known preset instead of an explicit list.
const FastSpec = "fast"

// topPorts mirrors common nmap-style frequency data: high-value ports that
// fall outside the 1-1024 privileged range.
var topPorts = []uint16{
	1723, 3306, 3389, 5900, 8080, 8443,
}

// Parse converts a spec into an ascending, duplicate-free port list.
//
// Grammar: comma-separated tokens, each a single integer or an inclusive
// "start-end" range. The empty spec means the full 1-65535 range (callers
// should warn before using it, it is expensive), and FastSpec expands to the
// well-known preset.
func Parse(spec string) ([]uint16, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Full(), nil
	}
	if strings.EqualFold(spec, FastSpec) {
		return Fast(), nil
	}

	seen := make(map[uint16]struct{})
	var out []uint16
	add := func(p uint16) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.Contains(token, "-") {
			bounds := strings.SplitN(token, "-", 2)
			start, err := parsePort(bounds[0])
			if err != nil {
				return nil, fmt.Errorf("%w: range %q: %v", ErrInvalidPortSpec, token, err)
			}
			end, err := parsePort(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("%w: range %q: %v", ErrInvalidPortSpec, token, err)
			}
			if start > end {
				return nil, fmt.Errorf("%w: range %q: start exceeds end", ErrInvalidPortSpec, token)
			}
			for p := uint32(start); p <= uint32(end); p++ {
				add(uint16(p))
			}
			continue
		}
		p, err := parsePort(token)
		if err != nil {
			return nil, fmt.Errorf("%w: port %q: %v", ErrInvalidPortSpec, token, err)
		}
		add(p)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no ports in %q", ErrInvalidPortSpec, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Fast returns the preset used for quick scans: every privileged port plus a
// handful of common high ports, sorted ascending.
func Fast() []uint16 {
	seen := make(map[uint16]struct{}, 1024+len(topPorts))
	out := make([]uint16, 0, 1024+len(topPorts))
	for p := uint16(1); p <= 1024; p++ {
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range topPorts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Full returns the entire scannable range, 1 through 65535.
func Full() []uint16 {
	out := make([]uint16, 0, 65535)
	for p := uint32(1); p <= 65535; p++ {
		out = append(out, uint16(p))
	}
	return out
}

func parsePort(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("out of range 1-65535")
	}
	return uint16(n), nil
}
