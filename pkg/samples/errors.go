package samples

import "errors"

var (
	// ErrIncompatible is returned when merging sets whose variable ids differ
	// in length or order. It indicates a caller bug and is never retried.
	ErrIncompatible = errors.New("incompatible variable ids")

	// ErrEmptyInput is returned when reducing a set with no records.
	ErrEmptyInput = errors.New("no solutions to reduce")

	// ErrMissingVariable is returned when an answer lacks an assignment for a
	// requested variable id.
	ErrMissingVariable = errors.New("answer is missing a variable assignment")

	// ErrMalformedAnswer is returned for answers whose per-sample arrays do not
	// line up or carry impossible values.
	ErrMalformedAnswer = errors.New("malformed answer")
)
