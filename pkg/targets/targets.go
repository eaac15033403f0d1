// Package targets expands target specifications (hosts, CIDR blocks, target
// lists) into concrete probe addresses.
package targets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidTarget reports a syntactically invalid target specification.
var ErrInvalidTarget = errors.New("invalid target")

// Resolver looks hostnames up. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Expander turns target specs into ordered address lists. The zero value uses
// net.DefaultResolver and drops skip reports.
type Expander struct {
	// Resolver resolves hostname entries. Nil means net.DefaultResolver.
	Resolver Resolver

	// OnSkip is invoked for entries that fail to resolve. Resolution failures
	// never abort the rest of the expansion.
	OnSkip func(entry string, err error)
}

// Expand accepts a single host or IP, an IPv4 CIDR block, or a comma- or
// newline-separated list of entries, and returns the resolved addresses in
// first-seen order with duplicates removed.
//
// CIDR blocks expand to their usable host addresses; the network and
// broadcast addresses are excluded for prefixes shorter than /31.
func (e *Expander) Expand(ctx context.Context, spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty spec", ErrInvalidTarget)
	}

	if strings.Contains(spec, "/") {
		return expandCIDR(spec)
	}

	entries := splitEntries(spec)
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range entries {
		addr, err := e.resolveEntry(ctx, entry)
		if err != nil {
			e.skip(entry, err)
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

// Service is one host:port entry from a service watch list.
type Service struct {
	Host string
	Port uint16
}

// ParseService parses a "host:port" entry.
func ParseService(entry string) (Service, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(entry))
	if err != nil {
		return Service{}, fmt.Errorf("%w: %q: expected host:port", ErrInvalidTarget, entry)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Service{}, fmt.Errorf("%w: %q: bad port", ErrInvalidTarget, entry)
	}
	return Service{Host: host, Port: uint16(port)}, nil
}

// LoadFile reads one entry per line, ignoring blank lines and '#' comments.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteTemplate creates a commented placeholder target file so a first run
// leaves the operator something to edit.
func WriteTemplate(path, hint string) error {
	return os.WriteFile(path, []byte("# "+hint+"\n"), 0o644)
}

func (e *Expander) resolveEntry(ctx context.Context, entry string) (string, error) {
	if ip := net.ParseIP(entry); ip != nil {
		return ip.String(), nil
	}
	r := e.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupHost(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", entry, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("resolve %q: no addresses", entry)
	}
	return preferIPv4(addrs), nil
}

func (e *Expander) skip(entry string, err error) {
	if e.OnSkip != nil {
		e.OnSkip(entry, err)
	}
}

// preferIPv4 picks the first IPv4 address when one exists; scanning targets
// are overwhelmingly v4 and mixing families confuses baseline identities.
func preferIPv4(addrs []string) string {
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return ip.String()
		}
	}
	return addrs[0]
}

func splitEntries(spec string) []string {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func expandCIDR(spec string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, spec, err)
	}
	network := ipnet.IP.Mask(ipnet.Mask).To4()
	if network == nil {
		return nil, fmt.Errorf("%w: %q: only IPv4 blocks are supported", ErrInvalidTarget, spec)
	}
	ones, _ := ipnet.Mask.Size()

	mask := net.IP(ipnet.Mask).To4()
	broadcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		broadcast[i] = network[i] | ^mask[i]
	}

	var out []string
	cur := make(net.IP, 4)
	copy(cur, network)
	for {
		// /31 and /32 have no distinct network/broadcast addresses.
		usable := ones >= 31 || (!cur.Equal(network) && !cur.Equal(broadcast))
		if usable {
			out = append(out, cur.String())
		}
		if cur.Equal(broadcast) {
			break
		}
		incrementIP(cur)
	}
	return out, nil
}

func incrementIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}
