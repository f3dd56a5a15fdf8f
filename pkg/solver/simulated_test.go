package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/lanl-ansi/dwisc/pkg/problem"
)

func ferromagnet() *problem.Ising {
	return &problem.Ising{
		VariableIDs: []int{1, 2, 3},
		H:           map[int]float64{1: 0, 2: 0, 3: 0},
		J: map[problem.Coupler]float64{
			{Tail: 1, Head: 2}: -1,
			{Tail: 2, Head: 3}: -1,
		},
	}
}

func TestSimulatedSolver_Histogram(t *testing.T) {
	s := NewSimulatedSolver(7, 200)
	p := ferromagnet()

	call, err := s.Submit(context.Background(), p, Params{NumReads: 50, AnswerMode: AnswerHistogram})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ans, err := call.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}

	if len(ans.NumOccurrences) != len(ans.Solutions) || len(ans.Energies) != len(ans.Solutions) {
		t.Fatalf("ragged answer: %d energies, %d solutions, %d counts", len(ans.Energies), len(ans.Solutions), len(ans.NumOccurrences))
	}
	total := 0
	seen := make(map[[3]int8]bool)
	for i, sol := range ans.Solutions {
		total += ans.NumOccurrences[i]
		if got := p.Energy(sol); got != ans.Energies[i] {
			t.Errorf("energy[%d] = %v, recomputed %v", i, ans.Energies[i], got)
		}
		key := [3]int8{sol[1], sol[2], sol[3]}
		if seen[key] {
			t.Errorf("duplicate spin vector %v in histogram answer", key)
		}
		seen[key] = true
	}
	if total != 50 {
		t.Errorf("total occurrences = %d, want 50", total)
	}
	if _, ok := ans.Timing["qpu_access_time"]; !ok {
		t.Errorf("timing missing qpu_access_time: %v", ans.Timing)
	}
}

func TestSimulatedSolver_Raw(t *testing.T) {
	s := NewSimulatedSolver(7, 50)
	call, err := s.Submit(context.Background(), ferromagnet(), Params{NumReads: 20, AnswerMode: AnswerRaw})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ans, err := call.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(ans.Solutions) != 20 {
		t.Errorf("solutions = %d, want 20", len(ans.Solutions))
	}
	if ans.NumOccurrences != nil {
		t.Errorf("raw answer carries occurrence counts")
	}
}

func TestSimulatedSolver_Reproducible(t *testing.T) {
	run := func() []float64 {
		s := NewSimulatedSolver(42, 20)
		call, err := s.Submit(context.Background(), ferromagnet(), Params{NumReads: 30, AnswerMode: AnswerRaw})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ans, err := call.Await(context.Background())
		if err != nil {
			t.Fatalf("Await: %v", err)
		}
		return ans.Energies
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("energy %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSimulatedSolver_CancelledSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSimulatedSolver(1, 10)
	call, err := s.Submit(ctx, ferromagnet(), Params{NumReads: 10})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = call.Await(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestSimulatedSolver_RejectsBadParams(t *testing.T) {
	s := NewSimulatedSolver(1, 10)
	_, err := s.Submit(context.Background(), ferromagnet(), Params{NumReads: 0})
	if !errors.Is(err, ErrProblemRejected) {
		t.Fatalf("error = %v, want ErrProblemRejected", err)
	}
}
