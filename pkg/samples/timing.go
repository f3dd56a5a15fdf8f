package samples

// TimingPolicy says how a timing metric combines across merged batches.
type TimingPolicy int

const (
	// Unclassified metrics are left untouched by Merge.
	Unclassified TimingPolicy = iota

	// Additive metrics are summed across batches.
	Additive

	// Constant metrics are expected to be identical for every call; a
	// disagreement turns the merged value into null.
	Constant
)

func (p TimingPolicy) String() string {
	switch p {
	case Additive:
		return "additive"
	case Constant:
		return "constant"
	default:
		return "unclassified"
	}
}

// TimingPolicyFor returns the merge policy of a timing metric.
func TimingPolicyFor(metric string) TimingPolicy {
	switch metric {
	case "total_real_time",
		"post_processing_overhead_time",
		"qpu_sampling_time",
		"total_post_processing_time",
		"qpu_programming_time",
		"run_time_chip",
		"qpu_access_time":
		return Additive
	case "anneal_time_per_run",
		"readout_time_per_run",
		"qpu_readout_time_per_sample",
		"qpu_delay_time_per_sample",
		"qpu_anneal_time_per_sample",
		"qpu_access_overhead_time":
		return Constant
	default:
		return Unclassified
	}
}
