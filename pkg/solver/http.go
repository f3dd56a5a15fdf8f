package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/lanl-ansi/dwisc/pkg/problem"
	"github.com/lanl-ansi/dwisc/pkg/samples"
)

// Job states reported by the sampling API.
const (
	statusPending   = "PENDING"
	statusRunning   = "IN_PROGRESS"
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"
	statusCancelled = "CANCELLED"
)

// HTTPSolver submits Ising problems to a REST sampling API.
//
// The API contract:
//   - POST {URL}/problems           body {"solver","type":"ising","data","params"}, returns {"id","status"}
//   - GET  {URL}/problems/{id}      returns {"status", "answer", "error_message"}
//   - GET  {URL}/solvers/{solver}   returns {"properties": {"chip_id", ...}}
//
// A completed answer carries parallel arrays under "answer": energies,
// num_occurrences (optional), solutions (one spin array per sample aligned with
// active_variables) and a timing object.
type HTTPSolver struct {
	// URL is the API base, e.g. "https://sapi.example.com/v2".
	URL string

	// Token is sent as X-Auth-Token when not empty.
	Token string

	// Solver is the remote solver name.
	Solver string

	// PollInterval between status checks while awaiting an answer (default 1s).
	PollInterval time.Duration

	// HTTPClient is optional; if nil a client with a 30s timeout is used.
	HTTPClient *http.Client

	limiter *rate.Limiter
}

// HTTPConfig configures NewHTTPSolver.
type HTTPConfig struct {
	URL          string
	Token        string
	Solver       string
	PollInterval time.Duration

	// SubmitRate caps submissions per second. Zero means unlimited.
	SubmitRate float64

	HTTPClient *http.Client
}

// NewHTTPSolver validates cfg and creates an HTTPSolver.
func NewHTTPSolver(cfg HTTPConfig) (*HTTPSolver, error) {
	if cfg.URL == "" {
		return nil, errors.New("http solver: url is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("http solver: invalid url %q: %w", cfg.URL, err)
	}
	if cfg.Solver == "" {
		return nil, errors.New("http solver: solver name is required")
	}

	limit := rate.Inf
	if cfg.SubmitRate > 0 {
		limit = rate.Limit(cfg.SubmitRate)
	}

	return &HTTPSolver{
		URL:          strings.TrimRight(cfg.URL, "/"),
		Token:        cfg.Token,
		Solver:       cfg.Solver,
		PollInterval: cfg.PollInterval,
		HTTPClient:   cfg.HTTPClient,
		limiter:      rate.NewLimiter(limit, 1),
	}, nil
}

func (s *HTTPSolver) Name() string { return s.Solver }

type submitRequest struct {
	Solver string       `json:"solver"`
	Type   string       `json:"type"`
	Data   submitData   `json:"data"`
	Params submitParams `json:"params"`
}

type submitData struct {
	Linear    [][2]float64 `json:"linear"`
	Quadratic [][3]float64 `json:"quadratic"`
}

type submitParams struct {
	NumReads                  int    `json:"num_reads"`
	AnnealingTime             int    `json:"annealing_time"`
	AutoScale                 bool   `json:"auto_scale"`
	FluxDriftCompensation     bool   `json:"flux_drift_compensation"`
	NumSpinReversalTransforms int    `json:"num_spin_reversal_transforms,omitempty"`
	AnswerMode                string `json:"answer_mode,omitempty"`
}

// Submit posts the problem and returns a handle that polls for its answer.
func (s *HTTPSolver) Submit(ctx context.Context, p *problem.Ising, params Params) (PendingCall, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("http solver: wait for submit slot: %w", err)
		}
	}

	req := submitRequest{
		Solver: s.Solver,
		Type:   "ising",
		Data:   encodeProblem(p),
		Params: submitParams{
			NumReads:                  params.NumReads,
			AnnealingTime:             params.AnnealingTime,
			AutoScale:                 params.AutoScale,
			FluxDriftCompensation:     params.FluxDriftCompensation,
			NumSpinReversalTransforms: params.NumSpinReversalTransforms,
			AnswerMode:                params.AnswerMode,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("http solver: marshal request: %w", err)
	}

	resp, err := s.do(ctx, http.MethodPost, s.URL+"/problems", body)
	if err != nil {
		return nil, err
	}

	id := gjson.GetBytes(resp, "id").String()
	if id == "" {
		return nil, fmt.Errorf("http solver: submit response has no problem id")
	}

	return &httpCall{solver: s, id: id, variables: p.VariableIDs}, nil
}

// Describe returns the metadata recorded with every batch from this solver.
func (s *HTTPSolver) Describe(ctx context.Context) (*samples.Metadata, error) {
	resp, err := s.do(ctx, http.MethodGet, s.URL+"/solvers/"+url.PathEscape(s.Solver), nil)
	if err != nil {
		return nil, err
	}
	u, name := s.URL, s.Solver
	md := &samples.Metadata{URL: &u, SolverName: &name}
	if chip := gjson.GetBytes(resp, "properties.chip_id"); chip.Exists() {
		c := chip.String()
		md.ChipID = &c
	}
	return md, nil
}

type httpCall struct {
	solver    *HTTPSolver
	id        string
	variables []int
}

// Await polls the problem status until it completes or ctx ends.
func (c *httpCall) Await(ctx context.Context) (*samples.RawAnswer, error) {
	interval := c.solver.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		resp, err := c.solver.do(ctx, http.MethodGet, c.solver.URL+"/problems/"+url.PathEscape(c.id), nil)
		if err != nil {
			return nil, err
		}

		status := gjson.GetBytes(resp, "status").String()
		switch status {
		case statusCompleted:
			return parseAnswer(resp)
		case statusFailed:
			return nil, classifyFailure(gjson.GetBytes(resp, "error_message").String())
		case statusCancelled:
			return nil, fmt.Errorf("%w: problem %s was cancelled", ErrCallFailed, c.id)
		case statusPending, statusRunning:
		default:
			return nil, fmt.Errorf("http solver: unknown problem status %q", status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *HTTPSolver) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http solver: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("X-Auth-Token", s.Token)
	}

	cli := s.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http solver: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http solver: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "error_message").String()
		if msg == "" {
			msg = string(respBody)
			if len(msg) > 1024 {
				msg = msg[:1024]
			}
		}
		return nil, classifyStatus(resp.StatusCode, msg)
	}

	return respBody, nil
}

func classifyStatus(code int, msg string) error {
	if isInsufficientTime(msg) {
		return fmt.Errorf("%w: %s", ErrInsufficientTime, msg)
	}
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrProblemRejected, msg)
	}
	return &StatusError{Code: code, Message: msg}
}

func classifyFailure(msg string) error {
	if isInsufficientTime(msg) {
		return fmt.Errorf("%w: %s", ErrInsufficientTime, msg)
	}
	return fmt.Errorf("%w: %s", ErrCallFailed, msg)
}

func isInsufficientTime(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "insufficient remaining")
}

func encodeProblem(p *problem.Ising) submitData {
	data := submitData{
		Linear:    make([][2]float64, 0, len(p.H)),
		Quadratic: make([][3]float64, 0, len(p.J)),
	}
	for id, h := range p.H {
		data.Linear = append(data.Linear, [2]float64{float64(id), h})
	}
	for c, j := range p.J {
		data.Quadratic = append(data.Quadratic, [3]float64{float64(c.Tail), float64(c.Head), j})
	}
	return data
}

// parseAnswer extracts a RawAnswer from a completed problem response.
func parseAnswer(body []byte) (*samples.RawAnswer, error) {
	answer := gjson.GetBytes(body, "answer")
	if !answer.Exists() {
		return nil, fmt.Errorf("%w: completed problem has no answer", samples.ErrMalformedAnswer)
	}

	active := answer.Get("active_variables").Array()
	energies := answer.Get("energies").Array()
	solutions := answer.Get("solutions").Array()

	ans := &samples.RawAnswer{
		Energies:  make([]float64, len(energies)),
		Solutions: make([]map[int]int8, len(solutions)),
		Timing:    make(map[string]float64),
	}
	for i, e := range energies {
		ans.Energies[i] = e.Float()
	}

	for i, sol := range solutions {
		spins := sol.Array()
		if len(spins) != len(active) {
			return nil, fmt.Errorf("%w: solution %d has %d spins for %d active variables", samples.ErrMalformedAnswer, i, len(spins), len(active))
		}
		assignment := make(map[int]int8, len(active))
		for j, v := range active {
			spin := spins[j].Int()
			if spin != 1 && spin != -1 {
				return nil, fmt.Errorf("%w: solution %d has spin value %s for variable %d", samples.ErrMalformedAnswer, i, spins[j].Raw, v.Int())
			}
			assignment[int(v.Int())] = int8(spin)
		}
		ans.Solutions[i] = assignment
	}

	if occ := answer.Get("num_occurrences"); occ.Exists() {
		counts := occ.Array()
		ans.NumOccurrences = make([]int, len(counts))
		for i, c := range counts {
			ans.NumOccurrences[i] = int(c.Int())
		}
	}

	answer.Get("timing").ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			ans.Timing[key.String()] = value.Float()
		}
		return true
	})

	return ans, nil
}
