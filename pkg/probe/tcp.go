package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	// bannerTrigger nudges quiet services into answering; HTTP servers reply
	// to it and most line-oriented protocols have already greeted us by then.
	bannerTrigger = "HEAD / HTTP/1.1\r\n\r\n"

	// bannerBudget caps how much of the initial response we keep.
	bannerBudget = 1024

	// bannerReadTimeout is the secondary deadline for the banner read; absence
	// of banner data within it is not a failure.
	bannerReadTimeout = 2 * time.Second
)

// Pinger is the pluggable liveness backend used for ICMPEcho units. The
// default implementation shells out to the platform ping binary (pkg/pingcmd)
// since raw ICMP sockets usually require elevated privileges.
type Pinger interface {
	Ping(ctx context.Context, address string, timeout time.Duration) (time.Duration, error)
}

// NetProber probes endpoints over the real network. TCP kinds are handled
// with a plain dialer; ICMPEcho is delegated to the configured Pinger.
type NetProber struct {
	// Dialer performs TCP connection attempts. Keep-alives are pointless for
	// scanning, so construct it with KeepAlive < 0 when in doubt.
	Dialer net.Dialer

	// ICMP handles ICMPEcho units. Nil makes those units unreachable with an
	// explanatory detail rather than failing the scan.
	ICMP Pinger
}

// NewNetProber returns a prober with a scan-tuned dialer and the given
// liveness backend.
func NewNetProber(icmp Pinger) *NetProber {
	return &NetProber{
		Dialer: net.Dialer{KeepAlive: -1},
		ICMP:   icmp,
	}
}

// Probe executes one unit. All failures are absorbed into the Result.
func (p *NetProber) Probe(ctx context.Context, unit Unit) (res Result) {
	res = Result{Unit: unit}
	defer func() { res.ObservedAt = time.Now().UTC() }()

	switch unit.Kind {
	case TCPConnect, TCPBanner:
		p.probeTCP(ctx, unit, &res)
	case ICMPEcho:
		p.probeICMP(ctx, unit, &res)
	default:
		res.Detail = "unsupported probe kind " + string(unit.Kind)
	}
	return res
}

func (p *NetProber) probeTCP(ctx context.Context, unit Unit, res *Result) {
	dialCtx, cancel := context.WithTimeout(ctx, unit.Timeout)
	defer cancel()

	addr := net.JoinHostPort(unit.Address, strconv.Itoa(int(unit.Port)))
	start := time.Now()
	conn, err := p.Dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		res.Detail = classifyDialError(err)
		return
	}
	defer conn.Close()

	res.Reachable = true
	res.Latency = time.Since(start)

	switch unit.Kind {
	case TCPConnect:
		res.Detail = ServiceName(unit.Port)
	case TCPBanner:
		res.Detail = grabBanner(conn)
	}
}

func (p *NetProber) probeICMP(ctx context.Context, unit Unit, res *Result) {
	if p.ICMP == nil {
		res.Detail = "no icmp backend configured"
		return
	}
	rtt, err := p.ICMP.Ping(ctx, unit.Address, unit.Timeout)
	if err != nil {
		res.Detail = DetailTimeout
		return
	}
	res.Reachable = true
	res.Latency = rtt
}

// classifyDialError distinguishes an explicit RST (port closed) from a
// dropped handshake (filtered or down). Go wraps the syscall error inside a
// net.OpError, so unwrap before matching.
func classifyDialError(err error) string {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return DetailRefused
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Timeout() {
		return DetailTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DetailTimeout
	}
	if errors.Is(err, context.Canceled) {
		return DetailCancelled
	}
	return err.Error()
}

// grabBanner sends the trigger payload and reads up to bannerBudget bytes of
// the initial response. No data within the read deadline is fine; the banner
// is simply empty.
func grabBanner(conn net.Conn) string {
	_ = conn.SetDeadline(time.Now().Add(bannerReadTimeout))
	if _, err := conn.Write([]byte(bannerTrigger)); err != nil {
		return ""
	}
	buf := make([]byte, bannerBudget)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return ""
	}
	return sanitizeBanner(buf[:n])
}

// sanitizeBanner trims surrounding whitespace and substitutes non-printable
// bytes so banners are safe to log and to embed in row-oriented output.
func sanitizeBanner(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
