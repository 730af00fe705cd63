// Package ledger tracks which publication ids have already been counted
// toward the requested total of one download operation, and applies the
// allow/deny admission rules.
package ledger

import "slices"

// Ledger is the per-operation set of ids already accounted for. It is owned
// by a single walker and never shared across operations.
type Ledger struct {
	seen map[string]struct{}
}

func New() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Admit reports whether id passes deduplication and allow/deny filtering.
// Admitted ids are recorded immediately, before assembly: membership means
// "counted toward the requested total", not "successfully assembled".
func (l *Ledger) Admit(id string, allow, deny []string) bool {
	if _, ok := l.seen[id]; ok {
		return false
	}
	if len(allow) > 0 && !slices.Contains(allow, id) {
		return false
	}
	if len(deny) > 0 && slices.Contains(deny, id) {
		return false
	}
	l.seen[id] = struct{}{}
	return true
}

// Len returns how many ids have been admitted so far.
func (l *Ledger) Len() int { return len(l.seen) }

// Requested derives how many publications the operation should produce. The
// server-declared total (absent or zero means one) is overridden by the
// allow list size; a deny list subtracts its overlap with the allow list,
// or its full size when no allow list was given. The result never drops
// below one.
func Requested(total int, allow, deny []string) int {
	requested := total
	if requested <= 0 {
		requested = 1
	}
	if len(allow) > 0 {
		requested = len(allow)
	}
	if len(deny) > 0 {
		if len(allow) > 0 {
			overlap := 0
			for _, id := range deny {
				if slices.Contains(allow, id) {
					overlap++
				}
			}
			requested = len(allow) - overlap
		} else {
			requested -= len(deny)
		}
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}
