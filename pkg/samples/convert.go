package samples

import (
	"fmt"
	"time"
)

// FromAnswer converts one solver answer into a SolutionSet whose records are
// projected onto ids. start and end bound the call that produced the answer.
// args and md are copied into the set so later merges cannot alias them.
// Every spin must be +1 or -1.
func FromAnswer(ans *RawAnswer, ids []int, start, end time.Time, args *SolveArgs, md *Metadata) (*SolutionSet, error) {
	if ans == nil {
		return nil, fmt.Errorf("%w: nil answer", ErrMalformedAnswer)
	}
	if len(ans.Energies) != len(ans.Solutions) {
		return nil, fmt.Errorf("%w: %d energies for %d solutions", ErrMalformedAnswer, len(ans.Energies), len(ans.Solutions))
	}
	if ans.NumOccurrences != nil && len(ans.NumOccurrences) != len(ans.Solutions) {
		return nil, fmt.Errorf("%w: %d occurrence counts for %d solutions", ErrMalformedAnswer, len(ans.NumOccurrences), len(ans.Solutions))
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: collection end %s before start %s", ErrMalformedAnswer, end, start)
	}

	records := make([]Record, len(ans.Solutions))
	for i, assignment := range ans.Solutions {
		count := 1
		if ans.NumOccurrences != nil {
			count = ans.NumOccurrences[i]
		}
		if count < 1 {
			return nil, fmt.Errorf("%w: sample %d has %d occurrences", ErrMalformedAnswer, i, count)
		}

		spins := make([]int8, len(ids))
		for j, id := range ids {
			v, ok := assignment[id]
			if !ok {
				return nil, fmt.Errorf("%w: sample %d, variable %d", ErrMissingVariable, i, id)
			}
			if v != 1 && v != -1 {
				return nil, fmt.Errorf("%w: sample %d, variable %d has spin value %d", ErrMalformedAnswer, i, id, v)
			}
			spins[j] = v
		}

		records[i] = Record{
			Energy:         ans.Energies[i],
			NumOccurrences: count,
			Solution:       spins,
		}
	}

	timing := make(Timing, len(ans.Timing))
	for k, v := range ans.Timing {
		val := v
		timing[k] = &val
	}

	return &SolutionSet{
		VariableIDs:     append([]int(nil), ids...),
		Timing:          timing,
		CollectionStart: start,
		CollectionEnd:   end,
		SolveArgs:       args.Clone(),
		Metadata:        md.Clone(),
		Solutions:       records,
	}, nil
}
