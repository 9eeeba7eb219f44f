package forecast

import "fmt"

// GroupPointer segments a batch into contiguous groups of samples in CSR
// style: group g spans samples [ptr[g], ptr[g+1]). A scene holding a
// variable number of agents is the usual example.
type GroupPointer []int

// Validate checks that the pointer starts at 0, never decreases and ends at
// samples. Empty groups (repeated values) are allowed.
func (p GroupPointer) Validate(samples int) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: pointer is empty", ErrMalformedGroupPointer)
	}
	if p[0] != 0 {
		return fmt.Errorf("%w: starts at %d, want 0", ErrMalformedGroupPointer, p[0])
	}
	for g := 1; g < len(p); g++ {
		if p[g] < p[g-1] {
			return fmt.Errorf("%w: decreases at %d (%d < %d)", ErrMalformedGroupPointer, g, p[g], p[g-1])
		}
	}
	if last := p[len(p)-1]; last != samples {
		return fmt.Errorf("%w: ends at %d, want sample count %d", ErrMalformedGroupPointer, last, samples)
	}
	return nil
}

// NumGroups returns the number of groups described by the pointer.
func (p GroupPointer) NumGroups() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Span returns the half-open sample range of group g.
func (p GroupPointer) Span(g int) (start, end int) {
	return p[g], p[g+1]
}

// PointerFromKeys builds a pointer from per-sample group keys, starting a new
// group whenever the key changes. Keys belonging to one group must already be
// contiguous.
func PointerFromKeys(keys []string) GroupPointer {
	ptr := GroupPointer{0}
	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[i-1] {
			ptr = append(ptr, i)
		}
	}
	if len(keys) > 0 {
		ptr = append(ptr, len(keys))
	}
	return ptr
}

// selectGroups recomputes the pointer after the samples flagged in keep have
// been gathered. Groups keep their identity and shrink; a group losing every
// sample becomes empty.
func (p GroupPointer) selectGroups(keep []bool) GroupPointer {
	out := make(GroupPointer, len(p))
	for g := 0; g < p.NumGroups(); g++ {
		kept := 0
		for s := p[g]; s < p[g+1]; s++ {
			if keep[s] {
				kept++
			}
		}
		out[g+1] = out[g] + kept
	}
	return out
}
