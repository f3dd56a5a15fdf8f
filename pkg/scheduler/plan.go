package scheduler

// PlanRound splits the remaining reads of a run into the call sizes of the
// next round: at most callsPerRound calls of at most readsPerCall reads each.
// Only the last call may be smaller, so a round never asks for more than
// remaining.
func PlanRound(remaining, readsPerCall, callsPerRound int) []int {
	if remaining <= 0 || readsPerCall <= 0 || callsPerRound <= 0 {
		return nil
	}
	sizes := make([]int, 0, callsPerRound)
	for len(sizes) < callsPerRound && remaining > 0 {
		n := min(readsPerCall, remaining)
		sizes = append(sizes, n)
		remaining -= n
	}
	return sizes
}

func sum(sizes []int) int {
	total := 0
	for _, n := range sizes {
		total += n
	}
	return total
}
