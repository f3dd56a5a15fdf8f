package export

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lanl-ansi/dwisc/pkg/samples"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int { return &v }
func strp(v string) *string { return &v }

func sampleSet() *samples.SolutionSet {
	start := time.Date(2018, 3, 4, 10, 0, 0, 0, time.UTC)
	return &samples.SolutionSet{
		VariableIDs:     []int{0, 3, 7},
		Timing:          samples.Timing{"qpu_access_time": f64(1200), "qpu_anneal_time_per_sample": nil},
		CollectionStart: start,
		CollectionEnd:   start.Add(90 * time.Second),
		SolveArgs:       &samples.SolveArgs{AnnealingTime: intp(5), AnswerMode: strp("histogram")},
		Metadata:        &samples.Metadata{SolverName: strp("DW_2000Q_2"), ChipID: strp("DW_2000Q_2")},
		Solutions: []samples.Record{
			{Energy: -3, NumOccurrences: 7, Solution: []int8{1, 1, -1}},
			{Energy: -1, NumOccurrences: 2, Solution: []int8{-1, 1, -1}},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleSet(), false); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"collection_start":"2018-03-04 10:00:00"`,
		`"collection_end":"2018-03-04 10:01:30"`,
		`"qpu_anneal_time_per_sample":null`,
		`"dw_solver_name":"DW_2000Q_2"`,
		`"solve_ising_args":{"annealing_time":5,"answer_mode":"histogram"}`,
		`"solution":[1,1,-1]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded document missing %s\n%s", want, out)
		}
	}
	if strings.Contains(out, `"batch"`) {
		t.Errorf("histogram records should not carry a batch key")
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.CollectionTime() != 90*time.Second {
		t.Errorf("collection time = %v", got.CollectionTime())
	}
	if v, ok := got.Timing["qpu_anneal_time_per_sample"]; !ok || v != nil {
		t.Errorf("null timing entry lost: %v, %v", v, ok)
	}
	if *got.Timing["qpu_access_time"] != 1200 {
		t.Errorf("qpu_access_time = %v", *got.Timing["qpu_access_time"])
	}
	if got.SolveArgs.NumReads != nil || *got.SolveArgs.AnnealingTime != 5 {
		t.Errorf("solve args = %+v", got.SolveArgs)
	}
	if len(got.Solutions) != 2 || got.Solutions[0].Solution[2] != -1 || got.Solutions[1].NumOccurrences != 2 {
		t.Errorf("solutions = %+v", got.Solutions)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		is   error
	}{
		{
			name: "unknown key",
			doc:  `{"variable_ids":[0],"timing":{},"collection_start":"2018-03-04 10:00:00","collection_end":"2018-03-04 10:00:00","solutions":[],"extra":1}`,
		},
		{
			name: "not a solution file",
			doc:  `{"timing":{},"collection_start":"2018-03-04 10:00:00","collection_end":"2018-03-04 10:00:00"}`,
			is:   ErrNotSolutionFile,
		},
		{
			name: "bad time",
			doc:  `{"variable_ids":[0],"timing":{},"collection_start":"yesterday","collection_end":"2018-03-04 10:00:00","solutions":[]}`,
		},
		{
			name: "inverted window",
			doc:  `{"variable_ids":[0],"timing":{},"collection_start":"2018-03-04 10:00:01","collection_end":"2018-03-04 10:00:00","solutions":[]}`,
		},
		{
			name: "short solution",
			doc:  `{"variable_ids":[0,1],"timing":{},"collection_start":"2018-03-04 10:00:00","collection_end":"2018-03-04 10:00:00","solutions":[{"energy":0,"num_occurrences":1,"solution":[1]}]}`,
		},
		{
			name: "non-spin value",
			doc:  `{"variable_ids":[0],"timing":{},"collection_start":"2018-03-04 10:00:00","collection_end":"2018-03-04 10:00:00","solutions":[{"energy":0,"num_occurrences":1,"solution":[0]}]}`,
		},
		{
			name: "zero occurrences",
			doc:  `{"variable_ids":[0],"timing":{},"collection_start":"2018-03-04 10:00:00","collection_end":"2018-03-04 10:00:00","solutions":[{"energy":0,"num_occurrences":0,"solution":[1]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestDecodeMany(t *testing.T) {
	doc := `[
		{"variable_ids":[0,1],"timing":{},"collection_start":"2018-03-04 10:00:00","collection_end":"2018-03-04 10:00:05","solutions":[{"energy":-1,"num_occurrences":3,"solution":[1,1]}]},
		{"variable_ids":[0,1],"timing":{},"collection_start":"2018-03-04 11:00:00","collection_end":"2018-03-04 11:00:05","solutions":[{"energy":1,"num_occurrences":1,"solution":[1,-1],"batch":4}]}
	]`
	sets, err := DecodeMany(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeMany: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("sets = %d, want 2", len(sets))
	}
	if b := sets[1].Solutions[0].Batch; b == nil || *b != 4 {
		t.Errorf("batch = %v, want 4", b)
	}
}

func TestWriteHistogram(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHistogram(&buf, sampleSet()); err != nil {
		t.Fatalf("WriteHistogram: %v", err)
	}
	want := "num_occurrences,0,3,7\n7,1,1,-1\n2,-1,1,-1\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCounts(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCounts(&buf, sampleSet()); err != nil {
		t.Fatalf("WriteCounts: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "count,0,3,7\n") {
		t.Errorf("header = %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
}

func TestWriteRaw(t *testing.T) {
	set := sampleSet()
	set.Solutions[0].Batch = intp(0)
	set.Solutions[1].Batch = intp(1)

	var buf bytes.Buffer
	grouped, err := WriteRaw(&buf, set)
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	want := "batch,0,3,7\n0,1,1,-1\n1,-1,1,-1\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
	if grouped != 2 {
		t.Errorf("grouped = %d, want 2", grouped)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Report(logger, sampleSet(), 1)

	out := buf.String()
	if !strings.Contains(out, "total_collected=9") {
		t.Errorf("report missing total:\n%s", out)
	}
	if !strings.Contains(out, "energy=-3 count=7") {
		t.Errorf("report missing top record:\n%s", out)
	}
	if strings.Contains(out, "energy=-1 count=2") {
		t.Errorf("report shows more than n records:\n%s", out)
	}
	if !strings.Contains(out, "solutions truncated") {
		t.Errorf("report should note truncation:\n%s", out)
	}
}
