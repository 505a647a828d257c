package artifact

// Change describes one entry that differs between two tables. A nil Old means
// the entry was added, a nil New with Removed set means it was dropped.
type Change struct {
	ID      string
	Old     *string
	New     *string
	Added   bool
	Removed bool
}

// Diff lists entries of next that differ from prev, in next's order, followed
// by entries prev has and next lacks, in prev's order.
func Diff(prev, next Table) []Change {
	var out []Change
	for _, id := range next.Keys {
		nv := next.Entries[id]
		pv, ok := prev.Entries[id]
		if !ok {
			out = append(out, Change{ID: id, New: nv, Added: true})
			continue
		}
		if !sameValue(pv, nv) {
			out = append(out, Change{ID: id, Old: pv, New: nv})
		}
	}
	for _, id := range prev.Keys {
		if _, ok := next.Entries[id]; !ok {
			out = append(out, Change{ID: id, Old: prev.Entries[id], Removed: true})
		}
	}
	return out
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
