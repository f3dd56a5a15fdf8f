// Package samples holds the canonical representation of sampled Ising solutions
// and the two transforms applied to them during a collection run:
//
//   - Merge folds one batch (SolutionSet) into a running aggregate
//   - Reduce deduplicates and ranks the aggregate once all reads are in
//
// A SolutionSet is created per completed solver call by FromAnswer, folded into
// the aggregate immediately, and the aggregate is owned by a single writer for
// the rest of the run. Nothing in this package is safe for concurrent mutation.
package samples

import (
	"time"
)

// Timing maps a timing metric name to its value. A nil value means the metric
// is not well defined across the merged collection.
type Timing map[string]*float64

// Clone returns a copy of t with its own value pointers.
func (t Timing) Clone() Timing {
	if t == nil {
		return nil
	}
	out := make(Timing, len(t))
	for k, v := range t {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// SolveArgs records the solver call parameters shared by every merged batch.
// A nil field is absent: either never set or dropped because batches disagreed.
type SolveArgs struct {
	AutoScale                 *bool
	AnnealingTime             *int
	NumReads                  *int
	FluxDriftCompensation     *bool
	NumSpinReversalTransforms *int
	AnswerMode                *string
}

// Clone returns a deep copy of a.
func (a *SolveArgs) Clone() *SolveArgs {
	if a == nil {
		return nil
	}
	return &SolveArgs{
		AutoScale:                 clonePtr(a.AutoScale),
		AnnealingTime:             clonePtr(a.AnnealingTime),
		NumReads:                  clonePtr(a.NumReads),
		FluxDriftCompensation:     clonePtr(a.FluxDriftCompensation),
		NumSpinReversalTransforms: clonePtr(a.NumSpinReversalTransforms),
		AnswerMode:                clonePtr(a.AnswerMode),
	}
}

// Metadata identifies the solver that produced the samples.
type Metadata struct {
	URL        *string
	SolverName *string
	ChipID     *string
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	return &Metadata{
		URL:        clonePtr(m.URL),
		SolverName: clonePtr(m.SolverName),
		ChipID:     clonePtr(m.ChipID),
	}
}

// Record is one sampled spin assignment.
type Record struct {
	Energy float64

	// NumOccurrences counts how many raw samples produced Solution. Always >= 1.
	NumOccurrences int

	// Solution holds one spin (+1/-1) per entry of SolutionSet.VariableIDs, in
	// the same order.
	Solution []int8

	// Batch identifies the solver call that produced the sample. Only set in
	// raw collection mode.
	Batch *int
}

// SolutionSet is the aggregate root of a collection run.
type SolutionSet struct {
	VariableIDs     []int
	Timing          Timing
	CollectionStart time.Time
	CollectionEnd   time.Time
	SolveArgs       *SolveArgs
	Metadata        *Metadata
	Solutions       []Record
}

// TotalOccurrences sums NumOccurrences over all records.
func (s *SolutionSet) TotalOccurrences() int {
	total := 0
	for _, r := range s.Solutions {
		total += r.NumOccurrences
	}
	return total
}

// Top returns up to n records in their current order.
func (s *SolutionSet) Top(n int) []Record {
	if n <= 0 {
		return nil
	}
	if n > len(s.Solutions) {
		n = len(s.Solutions)
	}
	return s.Solutions[:n]
}

// CollectionTime is the wall-clock span covered by the merged batches.
func (s *SolutionSet) CollectionTime() time.Duration {
	return s.CollectionEnd.Sub(s.CollectionStart)
}

// Clone copies s so the copy can be read while s keeps being merged into.
// Records are copied by value; their spin slices are shared and must be
// treated as read-only.
func (s *SolutionSet) Clone() *SolutionSet {
	if s == nil {
		return nil
	}
	out := &SolutionSet{
		VariableIDs:     append([]int(nil), s.VariableIDs...),
		Timing:          s.Timing.Clone(),
		CollectionStart: s.CollectionStart,
		CollectionEnd:   s.CollectionEnd,
		SolveArgs:       s.SolveArgs.Clone(),
		Metadata:        s.Metadata.Clone(),
		Solutions:       make([]Record, len(s.Solutions)),
	}
	for i, r := range s.Solutions {
		r.Batch = clonePtr(r.Batch)
		out.Solutions[i] = r
	}
	return out
}

// RawAnswer is one solver call's answer as delivered by the solver boundary.
type RawAnswer struct {
	Energies []float64

	// NumOccurrences is parallel to Energies. Nil means every sample counts once.
	NumOccurrences []int

	// Solutions holds one assignment per sample, keyed by variable id.
	Solutions []map[int]int8

	Timing map[string]float64
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
