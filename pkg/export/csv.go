package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// WriteHistogram writes one row per record: num_occurrences then the spins.
func WriteHistogram(w io.Writer, set *samples.SolutionSet) error {
	return writeTable(w, "num_occurrences", set, func(r samples.Record) string {
		return strconv.Itoa(r.NumOccurrences)
	})
}

// WriteCounts is WriteHistogram with a "count" header, the layout used when a
// multi-document file is split into one table per document.
func WriteCounts(w io.Writer, set *samples.SolutionSet) error {
	return writeTable(w, "count", set, func(r samples.Record) string {
		return strconv.Itoa(r.NumOccurrences)
	})
}

// WriteRaw writes one row per record: batch then the spins. Records without a
// batch get an empty first column. It returns how many records had
// num_occurrences above one, which raw data should never contain.
func WriteRaw(w io.Writer, set *samples.SolutionSet) (int, error) {
	grouped := 0
	err := writeTable(w, "batch", set, func(r samples.Record) string {
		if r.NumOccurrences > 1 {
			grouped++
		}
		if r.Batch == nil {
			return ""
		}
		return strconv.Itoa(*r.Batch)
	})
	return grouped, err
}

func writeTable(w io.Writer, first string, set *samples.SolutionSet, lead func(samples.Record) string) error {
	cw := csv.NewWriter(w)

	row := make([]string, 0, len(set.VariableIDs)+1)
	row = append(row, first)
	for _, id := range set.VariableIDs {
		row = append(row, strconv.Itoa(id))
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range set.Solutions {
		row = row[:0]
		row = append(row, lead(r))
		for _, s := range r.Solution {
			row = append(row, strconv.Itoa(int(s)))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
