package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/samples"
	"github.com/lanl-ansi/dwisc/pkg/solver"
)

// step scripts what the n-th submitted call does.
type step struct {
	answer    *samples.RawAnswer
	submitErr error
	awaitErr  error
	block     bool
}

type fakeSolver struct {
	mu      sync.Mutex
	submits []solver.Params
	events  []string
	plan    func(n int, params solver.Params) step
}

func (f *fakeSolver) Name() string { return "fake" }

func (f *fakeSolver) Submit(ctx context.Context, p *problem.Ising, params solver.Params) (solver.PendingCall, error) {
	f.mu.Lock()
	n := len(f.submits)
	f.submits = append(f.submits, params)
	f.events = append(f.events, fmt.Sprintf("submit %d", n))
	st := f.plan(n, params)
	f.mu.Unlock()

	if st.submitErr != nil {
		return nil, st.submitErr
	}
	return &fakeCall{solver: f, n: n, step: st}, nil
}

func (f *fakeSolver) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.submits))
	for i, p := range f.submits {
		out[i] = p.NumReads
	}
	return out
}

type fakeCall struct {
	solver *fakeSolver
	n      int
	step   step
}

func (c *fakeCall) Await(ctx context.Context) (*samples.RawAnswer, error) {
	c.solver.mu.Lock()
	c.solver.events = append(c.solver.events, fmt.Sprintf("await %d", c.n))
	c.solver.mu.Unlock()

	if c.step.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.step.answer, c.step.awaitErr
}

type describingSolver struct {
	*fakeSolver
	md *samples.Metadata
}

func (d describingSolver) Describe(context.Context) (*samples.Metadata, error) {
	return d.md, nil
}

type fakeMetrics struct {
	rounds  map[string]int
	calls   int
	reads   int
	retries []int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{rounds: make(map[string]int)}
}

func (m *fakeMetrics) RecordRound(outcome string) { m.rounds[outcome]++ }
func (m *fakeMetrics) RecordCall(time.Duration) { m.calls++ }
func (m *fakeMetrics) RecordReads(n int) { m.reads += n }
func (m *fakeMetrics) SetRetries(n int) { m.retries = append(m.retries, n) }

// smallProblem has 4 variables, so call numbers below 16 map to distinct
// spin vectors.
func smallProblem() *problem.Ising {
	return &problem.Ising{
		VariableIDs: []int{0, 1, 2, 3},
		H:           map[int]float64{0: 0, 1: 0, 2: 0, 3: 0},
		J:           map[problem.Coupler]float64{{Tail: 0, Head: 1}: -1},
	}
}

func vectorFor(ids []int, bits int) map[int]int8 {
	assignment := make(map[int]int8, len(ids))
	for i, id := range ids {
		assignment[id] = -1
		if bits&(1<<i) != 0 {
			assignment[id] = 1
		}
	}
	return assignment
}

// markedAnswer returns a histogram answer with a single vector derived from
// the call number n and energy float64(n), so tests can tell calls apart.
func markedAnswer(p *problem.Ising, n, reads int) *samples.RawAnswer {
	return &samples.RawAnswer{
		Energies:       []float64{float64(n)},
		NumOccurrences: []int{reads},
		Solutions:      []map[int]int8{vectorFor(p.VariableIDs, n)},
		Timing:         map[string]float64{"qpu_access_time": 100, "qpu_anneal_time_per_sample": 5},
	}
}

// rawAnswer returns reads samples of the vector derived from n.
func rawAnswer(p *problem.Ising, n, reads int) *samples.RawAnswer {
	ans := &samples.RawAnswer{Timing: map[string]float64{"qpu_access_time": 100}}
	for range reads {
		ans.Energies = append(ans.Energies, float64(n))
		ans.Solutions = append(ans.Solutions, vectorFor(p.VariableIDs, n))
	}
	return ans
}

// histogramAnswer draws distinct spin vectors of p and spreads reads over
// them. Energies are computed from p.
func histogramAnswer(p *problem.Ising, rng *rand.Rand, reads, distinct int) *samples.RawAnswer {
	space := 1 << len(p.VariableIDs)
	picks := rng.Perm(space)[:distinct]

	counts := make([]int, distinct)
	for i := range counts {
		counts[i] = 1
	}
	for range reads - distinct {
		counts[rng.IntN(distinct)]++
	}

	ans := &samples.RawAnswer{
		NumOccurrences: counts,
		Timing:         map[string]float64{"qpu_access_time": 1000, "total_real_time": 1500},
	}
	for _, bits := range picks {
		v := vectorFor(p.VariableIDs, bits)
		ans.Solutions = append(ans.Solutions, v)
		ans.Energies = append(ans.Energies, p.Energy(v))
	}
	return ans
}
