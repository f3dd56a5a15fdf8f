package scheduler

import (
	"slices"
	"testing"
)

func TestPlanRound(t *testing.T) {
	tests := []struct {
		name          string
		remaining     int
		readsPerCall  int
		callsPerRound int
		want          []int
	}{
		{name: "last call short", remaining: 25000, readsPerCall: 10000, callsPerRound: 3, want: []int{10000, 10000, 5000}},
		{name: "capped by calls", remaining: 25000, readsPerCall: 10000, callsPerRound: 2, want: []int{10000, 10000}},
		{name: "single partial call", remaining: 5000, readsPerCall: 10000, callsPerRound: 3, want: []int{5000}},
		{name: "exact fit", remaining: 30000, readsPerCall: 10000, callsPerRound: 3, want: []int{10000, 10000, 10000}},
		{name: "nothing left", remaining: 0, readsPerCall: 10000, callsPerRound: 3, want: nil},
		{name: "bad sizes", remaining: 10, readsPerCall: 0, callsPerRound: 3, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanRound(tt.remaining, tt.readsPerCall, tt.callsPerRound)
			if !slices.Equal(got, tt.want) {
				t.Errorf("PlanRound(%d, %d, %d) = %v, want %v", tt.remaining, tt.readsPerCall, tt.callsPerRound, got, tt.want)
			}
			if sum(got) > tt.remaining && tt.remaining > 0 {
				t.Errorf("plan overshoots remaining reads")
			}
		})
	}
}
