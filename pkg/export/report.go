package export

import (
	"log/slog"

	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// Report logs the collection time, the total number of reads and the first n
// records as energy/count pairs.
func Report(logger *slog.Logger, set *samples.SolutionSet, n int) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("collection summary",
		"collection_time", set.CollectionTime(),
		"total_collected", set.TotalOccurrences(),
		"records", len(set.Solutions),
	)

	top := set.Top(n)
	for i, r := range top {
		logger.Info("solution", "rank", i, "energy", r.Energy, "count", r.NumOccurrences)
	}
	if len(top) < len(set.Solutions) {
		logger.Info("solutions truncated", "shown", len(top), "total", len(set.Solutions))
	}
}
