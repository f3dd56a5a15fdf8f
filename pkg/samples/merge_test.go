package samples

import (
	"errors"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }
func strp(v string) *string  { return &v }
func boolp(v bool) *bool     { return &v }

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSet(startMin, endMin int, timing Timing, recs ...Record) *SolutionSet {
	return &SolutionSet{
		VariableIDs:     []int{0, 3, 7},
		Timing:          timing,
		CollectionStart: t0.Add(time.Duration(startMin) * time.Minute),
		CollectionEnd:   t0.Add(time.Duration(endMin) * time.Minute),
		Solutions:       recs,
	}
}

func TestMerge_IncompatibleVariableIDs(t *testing.T) {
	tests := []struct {
		name string
		ids  []int
	}{
		{name: "different length", ids: []int{0, 3}},
		{name: "different order", ids: []int{0, 7, 3}},
		{name: "different ids", ids: []int{0, 3, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newSet(0, 1, Timing{"qpu_access_time": f64(1)}, Record{Energy: -1, NumOccurrences: 1, Solution: []int8{1, 1, 1}})
			incoming := newSet(0, 1, Timing{"qpu_access_time": f64(2)})
			incoming.VariableIDs = tt.ids

			err := Merge(base, incoming)
			if !errors.Is(err, ErrIncompatible) {
				t.Fatalf("Merge() error = %v, want ErrIncompatible", err)
			}
			if *base.Timing["qpu_access_time"] != 1 {
				t.Errorf("base timing mutated on failed merge")
			}
			if len(base.Solutions) != 1 {
				t.Errorf("base solutions mutated on failed merge")
			}
		})
	}
}

func TestMerge_NilSet(t *testing.T) {
	if err := Merge(nil, newSet(0, 1, nil)); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Merge(nil, set) error = %v, want ErrIncompatible", err)
	}
}

func TestMerge_AdditiveTiming(t *testing.T) {
	base := newSet(0, 1, Timing{"qpu_sampling_time": f64(100), "total_real_time": f64(10)})
	incoming := newSet(0, 1, Timing{"qpu_sampling_time": f64(50), "qpu_programming_time": f64(7)})

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if got := *base.Timing["qpu_sampling_time"]; got != 150 {
		t.Errorf("qpu_sampling_time = %v, want 150", got)
	}
	// absent from incoming: skipped, not zeroed
	if got := *base.Timing["total_real_time"]; got != 10 {
		t.Errorf("total_real_time = %v, want 10", got)
	}
	if got := *base.Timing["qpu_programming_time"]; got != 7 {
		t.Errorf("qpu_programming_time = %v, want 7", got)
	}
}

func TestMerge_ConstantTimingNullIsAbsorbing(t *testing.T) {
	a := newSet(0, 1, Timing{"qpu_anneal_time_per_sample": f64(5)})
	b := newSet(0, 1, Timing{"qpu_anneal_time_per_sample": f64(20)})
	c := newSet(0, 1, Timing{"qpu_anneal_time_per_sample": f64(50)})

	if err := Merge(a, b); err != nil {
		t.Fatalf("Merge(a, b) error = %v", err)
	}
	if v, ok := a.Timing["qpu_anneal_time_per_sample"]; !ok || v != nil {
		t.Fatalf("after differing merge metric = %v (present %v), want null", v, ok)
	}

	if err := Merge(a, c); err != nil {
		t.Fatalf("Merge(a, c) error = %v", err)
	}
	if v, ok := a.Timing["qpu_anneal_time_per_sample"]; !ok || v != nil {
		t.Errorf("after third merge metric = %v (present %v), want null", v, ok)
	}

	// agreeing back with an earlier value does not resurrect it
	d := newSet(0, 1, Timing{"qpu_anneal_time_per_sample": f64(5)})
	if err := Merge(a, d); err != nil {
		t.Fatalf("Merge(a, d) error = %v", err)
	}
	if a.Timing["qpu_anneal_time_per_sample"] != nil {
		t.Errorf("null metric was resurrected")
	}
}

func TestMerge_ConstantTimingAgreement(t *testing.T) {
	a := newSet(0, 1, Timing{"readout_time_per_run": f64(123), "anneal_time_per_run": f64(20)})
	b := newSet(0, 1, Timing{"readout_time_per_run": f64(123)})

	if err := Merge(a, b); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if v := a.Timing["readout_time_per_run"]; v == nil || *v != 123 {
		t.Errorf("readout_time_per_run = %v, want 123", v)
	}
	if v := a.Timing["anneal_time_per_run"]; v == nil || *v != 20 {
		t.Errorf("anneal_time_per_run = %v, want 20 (absent from incoming)", v)
	}
}

func TestMerge_ConstantTimingOneSided(t *testing.T) {
	withMetric := func() *SolutionSet {
		return newSet(0, 1, Timing{"qpu_anneal_time_per_sample": f64(5)})
	}
	without := func() *SolutionSet {
		return newSet(0, 1, Timing{"qpu_access_time": f64(1)})
	}

	a := without()
	if err := Merge(a, withMetric()); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if v, ok := a.Timing["qpu_anneal_time_per_sample"]; !ok || v != nil {
		t.Errorf("metric adopted from incoming = %v (present %v), want null", v, ok)
	}

	b := withMetric()
	if err := Merge(b, without()); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if v := b.Timing["qpu_anneal_time_per_sample"]; v == nil || *v != 5 {
		t.Errorf("metric kept in base = %v, want 5", v)
	}
}

func TestMerge_UnclassifiedTimingUntouched(t *testing.T) {
	a := newSet(0, 1, Timing{"vendor_extra": f64(1)})
	b := newSet(0, 1, Timing{"vendor_extra": f64(2), "other_extra": f64(3)})

	if err := Merge(a, b); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if v := a.Timing["vendor_extra"]; v == nil || *v != 1 {
		t.Errorf("vendor_extra = %v, want 1", v)
	}
	if _, ok := a.Timing["other_extra"]; ok {
		t.Errorf("unclassified metric from incoming was adopted")
	}
}

func TestMerge_CollectionWindowWidens(t *testing.T) {
	base := newSet(10, 20, nil)
	incoming := newSet(5, 15, nil)

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !base.CollectionStart.Equal(t0.Add(5 * time.Minute)) {
		t.Errorf("CollectionStart = %v, want +5m", base.CollectionStart)
	}
	if !base.CollectionEnd.Equal(t0.Add(20 * time.Minute)) {
		t.Errorf("CollectionEnd = %v, want +20m (never narrowed)", base.CollectionEnd)
	}
}

func TestMerge_OrderIndependence(t *testing.T) {
	mk := func() (*SolutionSet, *SolutionSet, *SolutionSet) {
		a := newSet(10, 20, Timing{"qpu_access_time": f64(1), "qpu_sampling_time": f64(10)})
		b := newSet(3, 12, Timing{"qpu_access_time": f64(2), "qpu_sampling_time": f64(20)})
		c := newSet(15, 40, Timing{"qpu_access_time": f64(4)})
		return a, b, c
	}

	a1, b1, c1 := mk()
	if err := Merge(a1, b1); err != nil {
		t.Fatal(err)
	}
	if err := Merge(a1, c1); err != nil {
		t.Fatal(err)
	}

	a2, b2, c2 := mk()
	if err := Merge(b2, a2); err != nil {
		t.Fatal(err)
	}
	if err := Merge(b2, c2); err != nil {
		t.Fatal(err)
	}

	if !a1.CollectionStart.Equal(b2.CollectionStart) || !a1.CollectionEnd.Equal(b2.CollectionEnd) {
		t.Errorf("windows differ: [%v, %v] vs [%v, %v]", a1.CollectionStart, a1.CollectionEnd, b2.CollectionStart, b2.CollectionEnd)
	}
	for _, k := range []string{"qpu_access_time", "qpu_sampling_time"} {
		if *a1.Timing[k] != *b2.Timing[k] {
			t.Errorf("%s: %v vs %v", k, *a1.Timing[k], *b2.Timing[k])
		}
	}
	if *a1.Timing["qpu_access_time"] != 7 {
		t.Errorf("qpu_access_time = %v, want 7", *a1.Timing["qpu_access_time"])
	}
}

func TestMerge_SolveArgsAgreement(t *testing.T) {
	base := newSet(0, 1, nil)
	base.SolveArgs = &SolveArgs{AnnealingTime: intp(5), NumReads: intp(10000), AutoScale: boolp(false)}
	incoming := newSet(0, 1, nil)
	incoming.SolveArgs = &SolveArgs{AnnealingTime: intp(5), NumReads: intp(5000)}

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if base.SolveArgs == nil {
		t.Fatal("SolveArgs dropped, want pruned")
	}
	if base.SolveArgs.NumReads != nil {
		t.Errorf("NumReads = %v, want dropped", *base.SolveArgs.NumReads)
	}
	if base.SolveArgs.AnnealingTime == nil || *base.SolveArgs.AnnealingTime != 5 {
		t.Errorf("AnnealingTime = %v, want 5", base.SolveArgs.AnnealingTime)
	}
	if base.SolveArgs.AutoScale == nil || *base.SolveArgs.AutoScale {
		t.Errorf("AutoScale should survive when incoming lacks it")
	}
}

func TestMerge_MetadataMissingDropsWholeStruct(t *testing.T) {
	base := newSet(0, 1, nil)
	base.Metadata = &Metadata{SolverName: strp("DW_2000Q"), ChipID: strp("DW_2000Q_2")}
	base.SolveArgs = &SolveArgs{AnnealingTime: intp(5)}
	incoming := newSet(0, 1, nil)

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if base.Metadata != nil {
		t.Errorf("Metadata = %+v, want nil", base.Metadata)
	}
	if base.SolveArgs != nil {
		t.Errorf("SolveArgs = %+v, want nil", base.SolveArgs)
	}
}

func TestMerge_MetadataAbsentStaysAbsent(t *testing.T) {
	base := newSet(0, 1, nil)
	incoming := newSet(0, 1, nil)
	incoming.Metadata = &Metadata{ChipID: strp("chip")}

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if base.Metadata != nil {
		t.Errorf("Metadata adopted from incoming, want absent")
	}
}

func TestMerge_MetadataPrunesDisagreement(t *testing.T) {
	base := newSet(0, 1, nil)
	base.Metadata = &Metadata{URL: strp("https://a"), SolverName: strp("s1"), ChipID: strp("c1")}
	incoming := newSet(0, 1, nil)
	incoming.Metadata = &Metadata{URL: strp("https://a"), SolverName: strp("s2")}

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if base.Metadata.URL == nil || *base.Metadata.URL != "https://a" {
		t.Errorf("URL = %v, want kept", base.Metadata.URL)
	}
	if base.Metadata.SolverName != nil {
		t.Errorf("SolverName = %v, want dropped", *base.Metadata.SolverName)
	}
	if base.Metadata.ChipID == nil {
		t.Errorf("ChipID dropped, want kept (missing from incoming)")
	}
}

func TestMerge_AppendsWithoutDedup(t *testing.T) {
	r := Record{Energy: -3, NumOccurrences: 2, Solution: []int8{1, -1, 1}}
	base := newSet(0, 1, nil, r)
	incoming := newSet(0, 1, nil, r, r)

	if err := Merge(base, incoming); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(base.Solutions) != 3 {
		t.Errorf("len(Solutions) = %d, want 3", len(base.Solutions))
	}
	if base.TotalOccurrences() != 6 {
		t.Errorf("TotalOccurrences() = %d, want 6", base.TotalOccurrences())
	}
}
