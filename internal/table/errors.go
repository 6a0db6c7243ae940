package table

import (
	"errors"
	"fmt"
)

// Input error kinds, matchable with errors.Is against an *InputError.
var (
	ErrNoFile           = errors.New("no file uploaded")
	ErrNoNumericColumns = errors.New("no numeric data found for analysis")
	ErrMissingColumn    = errors.New("missing required column")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrDuplicateColumn  = errors.New("duplicate column")
	ErrBadValue         = errors.New("invalid numeric value")
	ErrRaggedRow        = errors.New("row length does not match header")
	ErrNoRows           = errors.New("no data rows")
)

// InputError reports a table that cannot enter the pipeline. The analysis does
// not start and no partial report is produced.
type InputError struct {
	Kind   error
	Column string
	Row    int // 1-based data row, 0 when not row specific
	Detail string
}

func (e *InputError) Error() string {
	if e == nil {
		return "invalid input"
	}
	msg := e.Kind.Error()
	if e.Column != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Column)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("%s at row %d", msg, e.Row)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}

func (e *InputError) Unwrap() error { return e.Kind }

// IsInputError reports whether err carries an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
