// Package export converts solution sets to and from the file formats consumed
// outside the sampler: the JSON solution document, CSV tables and a
// human-readable log report.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// TimeFormat is the layout of collection_start and collection_end. Times are
// written in UTC.
const TimeFormat = "2006-01-02 15:04:05"

// ErrNotSolutionFile is returned when a decoded JSON document lacks the keys
// every solution file carries.
var ErrNotSolutionFile = errors.New("not a solution file")

// Document is the JSON form of a SolutionSet.
type Document struct {
	VariableIDs     []int               `json:"variable_ids"`
	Timing          map[string]*float64 `json:"timing"`
	CollectionStart string              `json:"collection_start"`
	CollectionEnd   string              `json:"collection_end"`
	SolveIsingArgs  *SolveIsingArgs     `json:"solve_ising_args,omitempty"`
	Metadata        *Metadata           `json:"metadata,omitempty"`
	Solutions       []Solution          `json:"solutions"`
}

// SolveIsingArgs mirrors samples.SolveArgs. Absent keys were never set or
// disagreed between merged batches.
type SolveIsingArgs struct {
	AutoScale                 *bool   `json:"auto_scale,omitempty"`
	AnnealingTime             *int    `json:"annealing_time,omitempty"`
	NumReads                  *int    `json:"num_reads,omitempty"`
	FluxDriftCompensation     *bool   `json:"flux_drift_compensation,omitempty"`
	NumSpinReversalTransforms *int    `json:"num_spin_reversal_transforms,omitempty"`
	AnswerMode                *string `json:"answer_mode,omitempty"`
}

// Metadata mirrors samples.Metadata.
type Metadata struct {
	URL        *string `json:"dw_url,omitempty"`
	SolverName *string `json:"dw_solver_name,omitempty"`
	ChipID     *string `json:"dw_chip_id,omitempty"`
}

// Solution is one record of the solutions list.
type Solution struct {
	Energy         float64 `json:"energy"`
	NumOccurrences int     `json:"num_occurrences"`
	Solution       []int8  `json:"solution"`
	Batch          *int    `json:"batch,omitempty"`
}

// FromSet builds the document for set.
func FromSet(set *samples.SolutionSet) *Document {
	doc := &Document{
		VariableIDs:     append([]int{}, set.VariableIDs...),
		Timing:          make(map[string]*float64, len(set.Timing)),
		CollectionStart: set.CollectionStart.UTC().Format(TimeFormat),
		CollectionEnd:   set.CollectionEnd.UTC().Format(TimeFormat),
		Solutions:       make([]Solution, len(set.Solutions)),
	}
	for k, v := range set.Timing.Clone() {
		doc.Timing[k] = v
	}
	if a := set.SolveArgs.Clone(); a != nil {
		doc.SolveIsingArgs = &SolveIsingArgs{
			AutoScale:                 a.AutoScale,
			AnnealingTime:             a.AnnealingTime,
			NumReads:                  a.NumReads,
			FluxDriftCompensation:     a.FluxDriftCompensation,
			NumSpinReversalTransforms: a.NumSpinReversalTransforms,
			AnswerMode:                a.AnswerMode,
		}
	}
	if m := set.Metadata.Clone(); m != nil {
		doc.Metadata = &Metadata{URL: m.URL, SolverName: m.SolverName, ChipID: m.ChipID}
	}
	for i, r := range set.Solutions {
		doc.Solutions[i] = Solution{
			Energy:         r.Energy,
			NumOccurrences: r.NumOccurrences,
			Solution:       r.Solution,
			Batch:          r.Batch,
		}
	}
	return doc
}

// SolutionSet converts the document back, checking that every record is a
// spin vector over VariableIDs.
func (d *Document) SolutionSet() (*samples.SolutionSet, error) {
	if d.VariableIDs == nil || d.Solutions == nil {
		return nil, fmt.Errorf("%w: missing variable_ids or solutions", ErrNotSolutionFile)
	}

	start, err := time.Parse(TimeFormat, d.CollectionStart)
	if err != nil {
		return nil, fmt.Errorf("collection_start: %w", err)
	}
	end, err := time.Parse(TimeFormat, d.CollectionEnd)
	if err != nil {
		return nil, fmt.Errorf("collection_end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("collection_end %s before collection_start %s", d.CollectionEnd, d.CollectionStart)
	}

	set := &samples.SolutionSet{
		VariableIDs:     append([]int(nil), d.VariableIDs...),
		Timing:          make(samples.Timing, len(d.Timing)),
		CollectionStart: start,
		CollectionEnd:   end,
		Solutions:       make([]samples.Record, len(d.Solutions)),
	}
	for k, v := range d.Timing {
		set.Timing[k] = v
	}
	if a := d.SolveIsingArgs; a != nil {
		set.SolveArgs = &samples.SolveArgs{
			AutoScale:                 a.AutoScale,
			AnnealingTime:             a.AnnealingTime,
			NumReads:                  a.NumReads,
			FluxDriftCompensation:     a.FluxDriftCompensation,
			NumSpinReversalTransforms: a.NumSpinReversalTransforms,
			AnswerMode:                a.AnswerMode,
		}
	}
	if m := d.Metadata; m != nil {
		set.Metadata = &samples.Metadata{URL: m.URL, SolverName: m.SolverName, ChipID: m.ChipID}
	}

	for i, s := range d.Solutions {
		if len(s.Solution) != len(d.VariableIDs) {
			return nil, fmt.Errorf("solution %d has %d spins for %d variables", i, len(s.Solution), len(d.VariableIDs))
		}
		for _, v := range s.Solution {
			if v != 1 && v != -1 {
				return nil, fmt.Errorf("solution %d has spin value %d", i, v)
			}
		}
		if s.NumOccurrences < 1 {
			return nil, fmt.Errorf("solution %d has %d occurrences", i, s.NumOccurrences)
		}
		set.Solutions[i] = samples.Record{
			Energy:         s.Energy,
			NumOccurrences: s.NumOccurrences,
			Solution:       s.Solution,
			Batch:          s.Batch,
		}
	}
	return set, nil
}

// Encode writes set as one JSON document followed by a newline.
func Encode(w io.Writer, set *samples.SolutionSet, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(FromSet(set)); err != nil {
		return fmt.Errorf("encode solutions: %w", err)
	}
	return nil
}

// Decode reads one solution document. Unknown keys are rejected.
func Decode(r io.Reader) (*samples.SolutionSet, error) {
	var doc Document
	if err := strictDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode solutions: %w", err)
	}
	return doc.SolutionSet()
}

// DecodeMany reads a JSON array of solution documents.
func DecodeMany(r io.Reader) ([]*samples.SolutionSet, error) {
	var docs []Document
	if err := strictDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode solution list: %w", err)
	}
	sets := make([]*samples.SolutionSet, len(docs))
	for i := range docs {
		set, err := docs[i].SolutionSet()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		sets[i] = set
	}
	return sets, nil
}

// DecodeBytes is Decode for an in-memory document.
func DecodeBytes(data []byte) (*samples.SolutionSet, error) {
	return Decode(bytes.NewReader(data))
}

func strictDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}
