// Package ingest turns uploaded CSV, TSV and XLSX files into validated feature tables.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/microlens-cli/internal/table"
)

// ErrUnsupported indicates a file format no registered reader accepts.
var ErrUnsupported = errors.New("unsupported file format")

// Options controls how raw files are read.
type Options struct {
	// Schema maps headers onto columns. The zero Schema means table.DefaultSchema.
	Schema table.Schema
	// Delimiter for CSV. If 0, sniffed from the filename and header line.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// SheetName selects an XLSX sheet; otherwise SheetIndex (1-based) or the first sheet.
	SheetName  string
	SheetIndex int
}

// DefaultOptions reads the default food-source schema with locale auto-detection.
func DefaultOptions() Options {
	return Options{Schema: table.DefaultSchema()}
}

// Reader extracts the raw header and records of a tabular file.
type Reader interface {
	CanRead(filename string) bool
	Records(name string, data []byte, opt Options) (header []string, rows [][]string, err error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

// Supported reports whether a registered reader accepts the filename.
func Supported(filename string) bool {
	return readerFor(filename) != nil
}

func readerFor(filename string) Reader {
	for _, r := range registry {
		if r.CanRead(filename) {
			return r
		}
	}
	return nil
}

// ReadFile loads the file at path and maps it onto opt.Schema.
func ReadFile(path string, opt Options) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Read(filepath.Base(path), data, opt)
}

// Read parses data according to the reader matching name. Format problems are
// reported as *table.InputError.
func Read(name string, data []byte, opt Options) (*table.Table, error) {
	if strings.TrimSpace(name) == "" && len(data) == 0 {
		return nil, &table.InputError{Kind: table.ErrNoFile}
	}
	r := readerFor(name)
	if r == nil {
		return nil, &table.InputError{Kind: ErrUnsupported, Detail: fmt.Sprintf("%q (expected .csv, .tsv or .xlsx)", name)}
	}
	header, rows, err := r.Records(name, data, opt)
	if err != nil {
		if table.IsInputError(err) {
			return nil, err
		}
		return nil, &table.InputError{Kind: ErrUnsupported, Detail: err.Error()}
	}
	if len(header) == 0 {
		return nil, &table.InputError{Kind: table.ErrNoRows, Detail: "empty file"}
	}
	schema := opt.Schema
	if schema.Label == "" && len(schema.Columns) == 0 && !schema.Infer {
		schema = table.DefaultSchema()
	}
	parse := func(s string) (float64, bool) { return parseNumeric(s, opt) }
	return table.FromRecords(header, rows, schema, parse)
}
