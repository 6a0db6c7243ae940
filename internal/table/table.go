// Package table holds the validated numeric feature table the analysis runs on.
package table

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/microlens-cli/internal/exposure"
)

// Schema declares which headers are expected. Columns are the numeric
// food-source identifiers in output order; Label is the optional entity column.
type Schema struct {
	Label   string
	Columns []string
	// Infer accepts every header other than Label as a numeric column.
	Infer bool
}

// DefaultSchema is the registry-backed layout: a Region label plus every
// registered food-source column.
func DefaultSchema() Schema {
	return Schema{Label: "Region", Columns: exposure.DefaultColumns()}
}

// Row is one entity. Values align with Table.Columns.
type Row struct {
	Label  string
	Values []float64
}

// Table is a rectangular, validated numeric matrix with optional labels.
type Table struct {
	Columns []string
	Rows    []Row
	// HasLabels is true when the input carried the schema's label column.
	HasLabels bool
}

// ValueParser converts a raw cell into a number.
type ValueParser func(s string) (float64, bool)

// New builds a table from already-typed rows and validates it.
func New(columns []string, rows []Row) (*Table, error) {
	t := &Table{Columns: append([]string(nil), columns...), Rows: rows}
	for _, r := range rows {
		if r.Label != "" {
			t.HasLabels = true
			break
		}
	}
	if err := t.validateShape(); err != nil {
		return nil, err
	}
	return t, nil
}

// FromRecords maps raw header/records onto the schema. Unknown, duplicated or
// missing columns and unparseable or negative cells are rejected as *InputError.
func FromRecords(header []string, records [][]string, s Schema, parse ValueParser) (*Table, error) {
	labelIdx := -1
	colIdx := map[string]int{}
	var order []string
	seen := map[string]bool{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name != "" {
			key := strings.ToLower(name)
			if seen[key] {
				return nil, &InputError{Kind: ErrDuplicateColumn, Column: name}
			}
			seen[key] = true
		}
		if s.Label != "" && strings.EqualFold(name, s.Label) {
			labelIdx = i
			continue
		}
		if name == "" {
			continue
		}
		if s.Infer {
			colIdx[name] = i
			order = append(order, name)
			continue
		}
		matched := false
		for _, want := range s.Columns {
			if strings.EqualFold(name, want) {
				colIdx[want] = i
				matched = true
				break
			}
		}
		if !matched {
			return nil, &InputError{Kind: ErrUnknownColumn, Column: name}
		}
	}
	columns := s.Columns
	if s.Infer {
		columns = order
	}
	if len(columns) == 0 {
		return nil, &InputError{Kind: ErrNoNumericColumns}
	}
	for _, c := range columns {
		if _, ok := colIdx[c]; !ok {
			return nil, &InputError{Kind: ErrMissingColumn, Column: c}
		}
	}

	t := &Table{Columns: append([]string(nil), columns...), HasLabels: labelIdx >= 0}
	for r, rec := range records {
		if isBlank(rec) {
			continue
		}
		row := Row{Values: make([]float64, len(columns))}
		if labelIdx >= 0 && labelIdx < len(rec) {
			row.Label = strings.TrimSpace(rec[labelIdx])
		}
		for j, c := range columns {
			idx := colIdx[c]
			if idx >= len(rec) {
				return nil, &InputError{Kind: ErrRaggedRow, Row: r + 1, Column: c}
			}
			raw := strings.TrimSpace(rec[idx])
			if raw == "" {
				return nil, &InputError{Kind: ErrBadValue, Column: c, Row: r + 1, Detail: "blank cell"}
			}
			v, ok := parse(raw)
			if !ok {
				return nil, &InputError{Kind: ErrBadValue, Column: c, Row: r + 1, Detail: fmt.Sprintf("%q", raw)}
			}
			row.Values[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	if err := t.validateShape(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validateShape() error {
	if len(t.Columns) == 0 {
		return &InputError{Kind: ErrNoNumericColumns}
	}
	for i, r := range t.Rows {
		if len(r.Values) != len(t.Columns) {
			return &InputError{Kind: ErrRaggedRow, Row: i + 1}
		}
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return &InputError{Kind: ErrBadValue, Column: t.Columns[j], Row: i + 1, Detail: fmt.Sprintf("%v is not a non-negative number", v)}
			}
		}
	}
	return nil
}

// Validate checks the invariants the pipeline relies on, including at least one row.
func (t *Table) Validate() error {
	if t == nil {
		return &InputError{Kind: ErrNoFile}
	}
	if err := t.validateShape(); err != nil {
		return err
	}
	if len(t.Rows) == 0 {
		return &InputError{Kind: ErrNoRows}
	}
	return nil
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Label returns the row's entity label, or "Sample N" (1-based) when absent.
func (t *Table) Label(i int) string {
	if l := t.Rows[i].Label; l != "" {
		return l
	}
	return fmt.Sprintf("Sample %d", i+1)
}

// Labels returns Label(i) for every row.
func (t *Table) Labels() []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Label(i)
	}
	return out
}

// Total is the aggregate intake of row i.
func (t *Table) Total(i int) float64 {
	var sum float64
	for _, v := range t.Rows[i].Values {
		sum += v
	}
	return sum
}

// Totals returns the aggregate intake of every row.
func (t *Table) Totals() []float64 {
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Total(i)
	}
	return out
}

// Column returns a copy of column j.
func (t *Table) Column(j int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[j]
	}
	return out
}

// Values returns the matrix in row-major order.
func (t *Table) Values() []float64 {
	out := make([]float64, 0, len(t.Rows)*len(t.Columns))
	for _, r := range t.Rows {
		out = append(out, r.Values...)
	}
	return out
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
