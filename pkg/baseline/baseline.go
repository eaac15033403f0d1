// Package baseline persists the last known open-port set per target and
// computes the drift between scans.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// ErrCorruptBaseline reports a baseline file that exists but cannot be
// decoded. A corrupt file is never partially applied; the caller decides
// between aborting and starting over from empty.
var ErrCorruptBaseline = errors.New("corrupt baseline")

// Record is the persisted state for one target.
type Record struct {
	OpenPorts   []uint16  `json:"open_ports"`
	LastUpdated time.Time `json:"last_updated"`
}

// Mapping is a pure lookup table from target identity (hostname or IP
// string) to its Record.
type Mapping map[string]Record

// Get returns the record for target. An unknown target yields an empty
// record: the first scan defines the baseline rather than failing.
func (m Mapping) Get(target string) Record {
	return m[target]
}

// Set replaces the record for target wholesale, normalizing the port order.
func (m Mapping) Set(target string, openPorts []uint16, now time.Time) {
	ports := append([]uint16(nil), openPorts...)
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	m[target] = Record{OpenPorts: ports, LastUpdated: now.UTC()}
}

// Load reads the baseline mapping at path. A missing file is not an error:
// it returns an empty mapping with existed=false so callers can label the
// run as establishing the initial baseline instead of alarming on every
// port being "new".
func Load(path string) (m Mapping, existed bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Mapping{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read baseline: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrCorruptBaseline, path, err)
	}
	if m == nil {
		m = Mapping{}
	}
	return m, true, nil
}

// Save writes the whole mapping atomically: marshal, write to a temp file in
// the destination directory, then rename over path. An advisory lock on a
// sibling lock file serializes concurrent savers so overlapping scans cannot
// lose each other's update.
func Save(m Mapping, path string) error {
	unlock, err := lock(path + ".lock")
	if err != nil {
		return fmt.Errorf("lock baseline: %w", err)
	}
	defer unlock()

	// encoding/json writes map keys sorted, so output is content-stable for
	// identical mappings.
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write baseline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write baseline: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace baseline: %w", err)
	}
	return nil
}

func lock(lockPath string) (func(), error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
