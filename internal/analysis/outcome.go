package analysis

import "fmt"

// Status is the result class of one pipeline component.
type Status string

const (
	StatusOK         Status = "ok"
	StatusDegenerate Status = "degenerate"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Outcome records how a component finished. Degenerate and failed outcomes
// still come with a usable fallback value.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func okOutcome() Outcome { return Outcome{Status: StatusOK} }

func degenerate(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusDegenerate, Reason: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusFailed, Reason: fmt.Sprintf(format, args...)}
}

func skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

// OK reports whether the component produced its full result.
func (o Outcome) OK() bool { return o.Status == StatusOK }
