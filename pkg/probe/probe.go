// Package probe runs many independent network probes under a bounded
// concurrency budget and collects their outcomes deterministically.
package probe

import (
	"time"
)

// Kind selects the probe technique for a unit.
type Kind string

const (
	// TCPConnect attempts a plain TCP handshake.
	TCPConnect Kind = "tcp_connect"
	// TCPBanner connects, sends a minimal trigger payload, and reads the
	// initial service response.
	TCPBanner Kind = "tcp_banner"
	// ICMPEcho sends one echo request via the configured liveness backend.
	ICMPEcho Kind = "icmp_echo"
)

// Detail strings recorded for probe failures. Per-unit network failures are
// absorbed into the unit's Result, never surfaced as executor errors.
const (
	DetailTimeout   = "timeout"
	DetailRefused   = "refused"
	DetailCancelled = "cancelled"
)

// Unit is an immutable request to test one endpoint. Identity is the
// (Address, Port, Kind) triple; callers deduplicate before submission.
type Unit struct {
	Address string
	Port    uint16 // unused for ICMPEcho
	Kind    Kind
	Timeout time.Duration
}

// Result is the outcome of executing one Unit. Reachable failures carry a
// reason in Detail; a reachable TCPBanner unit carries the banner text, which
// may be empty when the service sent nothing.
type Result struct {
	Unit       Unit
	Reachable  bool
	Latency    time.Duration // zero when unreachable
	Detail     string
	ObservedAt time.Time
}

// Report is the deterministic product of one executor run. Results are in
// submission order regardless of completion timing, and len(Results) always
// equals the number of submitted units.
type Report struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	TotalUnits     int
	ReachableCount int
	Results        []Result
}

// serviceNames is a best-effort IANA registration map used to label open
// ports. The service actually listening may of course differ.
var serviceNames = map[uint16]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	111:  "rpcbind",
	135:  "msrpc",
	139:  "netbios-ssn",
	143:  "imap",
	443:  "https",
	445:  "microsoft-ds",
	993:  "imaps",
	995:  "pop3s",
	1723: "pptp",
	3306: "mysql",
	3389: "ms-wbt-server",
	5432: "postgresql",
	5900: "vnc",
	6379: "redis",
	8080: "http-alt",
	8443: "https-alt",
}

// ServiceName guesses the service registered for a port, or "unknown".
func ServiceName(port uint16) string {
	if name, ok := serviceNames[port]; ok {
		return name
	}
	return "unknown"
}
