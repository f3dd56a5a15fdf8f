package solver

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// SimulatedSolver samples Ising problems locally with Metropolis annealing.
//
// Algorithm, per read:
//  1. Start from a uniformly random spin assignment
//  2. Run Sweeps passes over all variables while beta rises linearly from
//     BetaStart to BetaEnd
//  3. Flip a spin when the flip lowers the energy, or with probability
//     exp(-beta*dE) otherwise
//
// Each call draws from its own generator seeded by (Seed, call number), so a
// fixed submission order reproduces the same answers.
type SimulatedSolver struct {
	Seed      uint64
	Sweeps    int
	BetaStart float64
	BetaEnd   float64

	calls atomic.Uint64
}

// NewSimulatedSolver creates a SimulatedSolver with default schedule settings.
func NewSimulatedSolver(seed uint64, sweeps int) *SimulatedSolver {
	if sweeps <= 0 {
		sweeps = 100
	}
	return &SimulatedSolver{
		Seed:      seed,
		Sweeps:    sweeps,
		BetaStart: 0.1,
		BetaEnd:   5.0,
	}
}

func (s *SimulatedSolver) Name() string { return "simulated" }

// Describe reports a local solver identity.
func (s *SimulatedSolver) Describe(ctx context.Context) (*samples.Metadata, error) {
	u, name := "local", s.Name()
	return &samples.Metadata{URL: &u, SolverName: &name}, nil
}

type simResult struct {
	answer *samples.RawAnswer
	err    error
}

type simCall struct {
	done chan simResult
}

// Submit starts sampling in the background. Cancelling ctx stops the work
// early and surfaces ctx's error from Await.
func (s *SimulatedSolver) Submit(ctx context.Context, p *problem.Ising, params Params) (PendingCall, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	n := s.calls.Add(1)
	rng := rand.New(rand.NewPCG(s.Seed, n))
	call := &simCall{done: make(chan simResult, 1)}

	go func() {
		ans, err := s.sample(ctx, rng, p, params)
		call.done <- simResult{answer: ans, err: err}
	}()

	return call, nil
}

func (c *simCall) Await(ctx context.Context) (*samples.RawAnswer, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-c.done:
		return r.answer, r.err
	}
}

type neighbor struct {
	index int
	coeff float64
}

func (s *SimulatedSolver) sample(ctx context.Context, rng *rand.Rand, p *problem.Ising, params Params) (*samples.RawAnswer, error) {
	start := time.Now()

	n := len(p.VariableIDs)
	index := make(map[int]int, n)
	for i, id := range p.VariableIDs {
		index[id] = i
	}
	h := make([]float64, n)
	for id, v := range p.H {
		h[index[id]] = v
	}
	adj := make([][]neighbor, n)
	for c, j := range p.J {
		a, b := index[c.Tail], index[c.Head]
		adj[a] = append(adj[a], neighbor{index: b, coeff: j})
		adj[b] = append(adj[b], neighbor{index: a, coeff: j})
	}

	sweeps := max(s.Sweeps, 1)
	betaStep := 0.0
	if sweeps > 1 {
		betaStep = (s.BetaEnd - s.BetaStart) / float64(sweeps-1)
	}

	raw := params.AnswerMode == AnswerRaw
	ans := &samples.RawAnswer{}
	if !raw {
		ans.NumOccurrences = []int{}
	}
	seen := make(map[string]int)

	spins := make([]int8, n)
	for read := 0; read < params.NumReads; read++ {
		if read%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		for i := range spins {
			spins[i] = 1
			if rng.IntN(2) == 0 {
				spins[i] = -1
			}
		}

		for sweep := 0; sweep < sweeps; sweep++ {
			beta := s.BetaStart + betaStep*float64(sweep)
			for i := range spins {
				field := h[i]
				for _, nb := range adj[i] {
					field += nb.coeff * float64(spins[nb.index])
				}
				dE := -2 * float64(spins[i]) * field
				if dE <= 0 || rng.Float64() < math.Exp(-beta*dE) {
					spins[i] = -spins[i]
				}
			}
		}

		if !raw {
			key := string(spinBytes(spins))
			if at, ok := seen[key]; ok {
				ans.NumOccurrences[at]++
				continue
			}
			seen[key] = len(ans.Solutions)
			ans.NumOccurrences = append(ans.NumOccurrences, 1)
		}

		assignment := make(map[int]int8, n)
		for i, id := range p.VariableIDs {
			assignment[id] = spins[i]
		}
		ans.Solutions = append(ans.Solutions, assignment)
		ans.Energies = append(ans.Energies, p.Energy(assignment))
	}

	elapsed := float64(time.Since(start).Microseconds())
	ans.Timing = map[string]float64{
		"total_real_time":            elapsed,
		"qpu_access_time":            elapsed,
		"qpu_sampling_time":          elapsed,
		"qpu_anneal_time_per_sample": float64(params.AnnealingTime),
	}
	return ans, nil
}

func spinBytes(spins []int8) []byte {
	b := make([]byte, len(spins))
	for i, s := range spins {
		b[i] = byte(s)
	}
	return b
}
