// Package problem loads Ising problem documents (a subset of the bqpjson
// format) and exposes them as the coefficient maps a solver submits.
//
// Only the checks the sampler depends on are enforced: spin domain, unit scale,
// zero offset, declared variable ids and unique couplers. Full schema
// validation is left to upstream tooling.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnsupported is returned for documents the sampler cannot submit as-is.
	ErrUnsupported = errors.New("unsupported problem")

	// ErrInvalid is returned for documents that are internally inconsistent.
	ErrInvalid = errors.New("invalid problem")
)

// LinearTerm is a field coefficient on one variable.
type LinearTerm struct {
	ID    int     `json:"id"`
	Coeff float64 `json:"coeff"`
}

// QuadraticTerm is a coupling coefficient between two variables.
type QuadraticTerm struct {
	IDTail int     `json:"id_tail"`
	IDHead int     `json:"id_head"`
	Coeff  float64 `json:"coeff"`
}

// Metadata carries the optional hardware hints of a document.
type Metadata struct {
	ChipID string `json:"dw_chip_id,omitempty"`
}

// Document is a decoded problem file.
type Document struct {
	VariableIDs    []int           `json:"variable_ids"`
	VariableDomain string          `json:"variable_domain"`
	Scale          float64         `json:"scale"`
	Offset         float64         `json:"offset"`
	LinearTerms    []LinearTerm    `json:"linear_terms"`
	QuadraticTerms []QuadraticTerm `json:"quadratic_terms"`
	Metadata       Metadata        `json:"metadata"`
}

// Coupler identifies an ordered pair of variables.
type Coupler struct {
	Tail int
	Head int
}

// Ising is the coefficient form submitted to a solver.
type Ising struct {
	VariableIDs []int
	H           map[int]float64
	J           map[Coupler]float64
}

// Load decodes and checks a problem document.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the constraints the sampler relies on.
func (d *Document) Validate() error {
	if d.VariableDomain != "spin" {
		return fmt.Errorf("%w: only spin domains are supported, given %q", ErrUnsupported, d.VariableDomain)
	}
	if d.Scale != 1.0 {
		return fmt.Errorf("%w: a non-one scaling value is not supported, given %v", ErrUnsupported, d.Scale)
	}
	if d.Offset != 0.0 {
		return fmt.Errorf("%w: a non-zero offset value is not supported, given %v", ErrUnsupported, d.Offset)
	}
	if len(d.VariableIDs) == 0 {
		return fmt.Errorf("%w: no variable ids", ErrInvalid)
	}

	declared := make(map[int]bool, len(d.VariableIDs))
	for _, id := range d.VariableIDs {
		if declared[id] {
			return fmt.Errorf("%w: variable %d declared twice", ErrInvalid, id)
		}
		declared[id] = true
	}

	seenLinear := make(map[int]bool, len(d.LinearTerms))
	for _, lt := range d.LinearTerms {
		if !declared[lt.ID] {
			return fmt.Errorf("%w: linear term on undeclared variable %d", ErrInvalid, lt.ID)
		}
		if seenLinear[lt.ID] {
			return fmt.Errorf("%w: duplicate linear term on variable %d", ErrInvalid, lt.ID)
		}
		seenLinear[lt.ID] = true
	}

	seenQuad := make(map[Coupler]bool, len(d.QuadraticTerms))
	for _, qt := range d.QuadraticTerms {
		if !declared[qt.IDTail] || !declared[qt.IDHead] {
			return fmt.Errorf("%w: quadratic term (%d, %d) on undeclared variable", ErrInvalid, qt.IDTail, qt.IDHead)
		}
		if qt.IDTail == qt.IDHead {
			return fmt.Errorf("%w: quadratic term on a single variable %d", ErrInvalid, qt.IDTail)
		}
		c := Coupler{Tail: qt.IDTail, Head: qt.IDHead}
		if seenQuad[c] {
			return fmt.Errorf("%w: duplicate quadratic term (%d, %d)", ErrInvalid, qt.IDTail, qt.IDHead)
		}
		seenQuad[c] = true
	}

	return nil
}

// Ising converts the document into coefficient maps.
func (d *Document) Ising() *Ising {
	p := &Ising{
		VariableIDs: append([]int(nil), d.VariableIDs...),
		H:           make(map[int]float64, len(d.LinearTerms)),
		J:           make(map[Coupler]float64, len(d.QuadraticTerms)),
	}
	for _, lt := range d.LinearTerms {
		p.H[lt.ID] = lt.Coeff
	}
	for _, qt := range d.QuadraticTerms {
		p.J[Coupler{Tail: qt.IDTail, Head: qt.IDHead}] = qt.Coeff
	}
	return p
}

// Energy evaluates sum(h_i s_i) + sum(J_ij s_i s_j) for a complete assignment.
func (p *Ising) Energy(spins map[int]int8) float64 {
	e := 0.0
	for id, h := range p.H {
		e += h * float64(spins[id])
	}
	for c, j := range p.J {
		e += j * float64(spins[c.Tail]) * float64(spins[c.Head])
	}
	return e
}
