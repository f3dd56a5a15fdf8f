package samples

import (
	"cmp"
	"slices"
)

// Reduce collapses records with identical spin vectors into one and ranks the
// result.
//
// The first record seen for a vector is kept and the occurrence counts of later
// duplicates are added to it; its energy and batch are not overwritten. Records
// are then stably sorted ascending by
//
//	energy*maxOccurrences - numOccurrences
//
// which orders by energy first and, between comparable energies, prefers the
// more frequent vector. Reduce is idempotent and preserves TotalOccurrences.
func Reduce(set *SolutionSet) error {
	if set == nil || len(set.Solutions) == 0 {
		return ErrEmptyInput
	}

	index := make(map[string]int, len(set.Solutions))
	reduced := make([]Record, 0, len(set.Solutions))
	for _, r := range set.Solutions {
		key := spinKey(r.Solution)
		if i, ok := index[key]; ok {
			reduced[i].NumOccurrences += r.NumOccurrences
			continue
		}
		index[key] = len(reduced)
		reduced = append(reduced, r)
	}

	maxOccurrences := 0
	for _, r := range reduced {
		maxOccurrences = max(maxOccurrences, r.NumOccurrences)
	}

	scale := float64(maxOccurrences)
	slices.SortStableFunc(reduced, func(a, b Record) int {
		return cmp.Compare(
			a.Energy*scale-float64(a.NumOccurrences),
			b.Energy*scale-float64(b.NumOccurrences),
		)
	})

	set.Solutions = reduced
	return nil
}

// spinKey encodes a spin vector as a map key. The length is implied by the
// string length, so vectors of different lengths never collide.
func spinKey(spins []int8) string {
	b := make([]byte, len(spins))
	for i, s := range spins {
		b[i] = byte(s)
	}
	return string(b)
}
