package baseline

import "sort"

// Diff is the drift between a previous and current open-port set. Both lists
// are sorted ascending. Ports present in both sets appear in neither.
type Diff struct {
	Added   []uint16
	Removed []uint16
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Compute returns the set differences current−previous (Added) and
// previous−current (Removed). It is a pure function; against an empty
// previous set every current port comes back as Added, so callers must label
// first runs accordingly.
func Compute(previous, current []uint16) Diff {
	prev := toSet(previous)
	cur := toSet(current)

	var d Diff
	for p := range cur {
		if _, ok := prev[p]; !ok {
			d.Added = append(d.Added, p)
		}
	}
	for p := range prev {
		if _, ok := cur[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i] < d.Added[j] })
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] < d.Removed[j] })
	return d
}

func toSet(ports []uint16) map[uint16]struct{} {
	set := make(map[uint16]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}
