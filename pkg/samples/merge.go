package samples

import (
	"fmt"
)

// Merge folds incoming into base, mutating base.
//
// Timing metrics follow TimingPolicyFor: additive metrics are summed, constant
// metrics become null once two batches disagree, and null stays null. The
// collection window only widens.
//
// Constant metrics are not symmetric when only one side reports them: a metric
// present in incoming but absent from base becomes null, since its value is
// unknown for the batches already merged, while a metric present in base but
// absent from incoming keeps its value. Merging such sets in different orders
// can therefore yield null in one order and the value in the other. Additive
// totals and the collection window do not depend on order.
//
// SolveArgs and Metadata keep a field only while every merged batch agrees on
// it; when incoming carries no SolveArgs (or no Metadata) at all, base drops
// the whole struct. Records are appended without
// deduplication, see Reduce.
//
// Merge fails with ErrIncompatible, leaving base untouched, when the variable
// ids of the two sets differ.
func Merge(base, incoming *SolutionSet) error {
	if base == nil || incoming == nil {
		return fmt.Errorf("%w: nil solution set", ErrIncompatible)
	}
	if err := checkCompatible(base.VariableIDs, incoming.VariableIDs); err != nil {
		return err
	}

	mergeTiming(base, incoming.Timing)

	if incoming.CollectionStart.Before(base.CollectionStart) {
		base.CollectionStart = incoming.CollectionStart
	}
	if incoming.CollectionEnd.After(base.CollectionEnd) {
		base.CollectionEnd = incoming.CollectionEnd
	}

	if base.SolveArgs != nil {
		if incoming.SolveArgs == nil {
			base.SolveArgs = nil
		} else {
			base.SolveArgs.agree(incoming.SolveArgs)
		}
	}

	if base.Metadata != nil {
		if incoming.Metadata == nil {
			base.Metadata = nil
		} else {
			base.Metadata.agree(incoming.Metadata)
		}
	}

	base.Solutions = append(base.Solutions, incoming.Solutions...)
	return nil
}

func checkCompatible(a, b []int) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d variables vs %d", ErrIncompatible, len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("%w: position %d holds variable %d vs %d", ErrIncompatible, i, a[i], b[i])
		}
	}
	return nil
}

func mergeTiming(base *SolutionSet, incoming Timing) {
	if len(incoming) == 0 {
		return
	}
	if base.Timing == nil {
		base.Timing = make(Timing, len(incoming))
	}

	for k, in := range incoming {
		cur, present := base.Timing[k]
		switch TimingPolicyFor(k) {
		case Additive:
			switch {
			case !present:
				base.Timing[k] = clonePtr(in)
			case cur == nil || in == nil:
				base.Timing[k] = nil
			default:
				sum := *cur + *in
				base.Timing[k] = &sum
			}
		case Constant:
			if !present || cur == nil || in == nil || *cur != *in {
				base.Timing[k] = nil
			}
		}
	}
}

func (a *SolveArgs) agree(other *SolveArgs) {
	dropIfDiffers(&a.AutoScale, other.AutoScale)
	dropIfDiffers(&a.AnnealingTime, other.AnnealingTime)
	dropIfDiffers(&a.NumReads, other.NumReads)
	dropIfDiffers(&a.FluxDriftCompensation, other.FluxDriftCompensation)
	dropIfDiffers(&a.NumSpinReversalTransforms, other.NumSpinReversalTransforms)
	dropIfDiffers(&a.AnswerMode, other.AnswerMode)
}

func (m *Metadata) agree(other *Metadata) {
	dropIfDiffers(&m.URL, other.URL)
	dropIfDiffers(&m.SolverName, other.SolverName)
	dropIfDiffers(&m.ChipID, other.ChipID)
}

// dropIfDiffers clears *dst when both sides hold a value and the values differ.
// A field missing from src leaves dst untouched.
func dropIfDiffers[T comparable](dst **T, src *T) {
	if *dst == nil || src == nil {
		return
	}
	if **dst != *src {
		*dst = nil
	}
}
