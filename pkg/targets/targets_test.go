package targets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type stubResolver struct {
	hosts map[string][]string
}

func (s *stubResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	addrs, ok := s.hosts[host]
	if !ok {
		return nil, fmt.Errorf("no such host %q", host)
	}
	return addrs, nil
}

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{
			name: "slash30 excludes network and broadcast",
			spec: "10.0.0.0/30",
			want: []string{"10.0.0.1", "10.0.0.2"},
		},
		{
			name: "slash31 keeps both addresses",
			spec: "10.0.0.0/31",
			want: []string{"10.0.0.0", "10.0.0.1"},
		},
		{
			name: "slash32 is the single host",
			spec: "192.168.1.7/32",
			want: []string{"192.168.1.7"},
		},
		{
			name: "non-aligned base is masked",
			spec: "192.168.1.9/30",
			want: []string{"192.168.1.9", "192.168.1.10"},
		},
	}

	var e Expander
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Expand(context.Background(), tt.spec)
			if err != nil {
				t.Fatalf("Expand(%q): %v", tt.spec, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestExpandInvalid(t *testing.T) {
	var e Expander
	for _, spec := range []string{"", "10.0.0.0/99", "not/a/cidr", "2001:db8::/126"} {
		if _, err := e.Expand(context.Background(), spec); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("Expand(%q): expected ErrInvalidTarget, got %v", spec, err)
		}
	}
}

func TestExpandListResolvesAndSkips(t *testing.T) {
	e := Expander{
		Resolver: &stubResolver{hosts: map[string][]string{
			"gateway": {"2001:db8::1", "10.0.0.1"},
			"printer": {"10.0.0.9"},
		}},
	}
	var skipped []string
	e.OnSkip = func(entry string, err error) { skipped = append(skipped, entry) }

	got, err := e.Expand(context.Background(), "gateway, missing, printer, 10.0.0.1")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// gateway resolves to its IPv4 address, the literal duplicate collapses,
	// and the unresolvable entry is skipped without aborting the batch.
	want := []string{"10.0.0.1", "10.0.0.9"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(skipped) != 1 || skipped[0] != "missing" {
		t.Fatalf("unexpected skips: %v", skipped)
	}
}

func TestExpandSingleLiteral(t *testing.T) {
	var e Expander
	got, err := e.Expand(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"127.0.0.1"}) {
		t.Fatalf("got %v", got)
	}
}

func TestParseService(t *testing.T) {
	svc, err := ParseService("example.com:443")
	if err != nil {
		t.Fatalf("ParseService: %v", err)
	}
	if svc.Host != "example.com" || svc.Port != 443 {
		t.Fatalf("unexpected service: %+v", svc)
	}

	for _, bad := range []string{"example.com", "host:0", "host:99999", "host:ssh"} {
		if _, err := ParseService(bad); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("ParseService(%q): expected ErrInvalidTarget, got %v", bad, err)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	content := "# targets\n\n10.0.0.1\n  example.com  \n# trailing comment\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := []string{"10.0.0.1", "example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
