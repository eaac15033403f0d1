package pingcmd

import (
	"testing"
	"time"
)

func TestParseRTT(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   time.Duration
		ok     bool
	}{
		{
			name:   "linux",
			output: "64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=12.4 ms\n",
			want:   12400 * time.Microsecond,
			ok:     true,
		},
		{
			name:   "macos",
			output: "64 bytes from 10.0.0.1: icmp_seq=0 ttl=64 time=0.084 ms\n",
			want:   84 * time.Microsecond,
			ok:     true,
		},
		{
			name:   "windows",
			output: "Reply from 10.0.0.1: bytes=32 time=3ms TTL=64\r\n",
			want:   3 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "windows sub-millisecond",
			output: "Reply from 10.0.0.1: bytes=32 time<1ms TTL=64\r\n",
			want:   time.Millisecond,
			ok:     true,
		},
		{
			name:   "no reply",
			output: "Request timeout for icmp_seq 0\n",
			ok:     false,
		},
		{
			name: "empty",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRTT(tt.output)
			if ok != tt.ok {
				t.Fatalf("ok: got %v want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("rtt: got %s want %s", got, tt.want)
			}
		})
	}
}

func TestPingArgsSingleEcho(t *testing.T) {
	args := pingArgs("10.0.0.1", 1500*time.Millisecond)
	if args[len(args)-1] != "10.0.0.1" {
		t.Fatalf("address must be last arg: %v", args)
	}
	found := false
	for i, a := range args {
		if (a == "-c" || a == "-n") && i+1 < len(args) && args[i+1] == "1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected single-echo flag in %v", args)
	}
}
