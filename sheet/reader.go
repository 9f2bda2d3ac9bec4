// Package sheet reads uploaded URL spreadsheets and writes result tables.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptyTable is returned for a file without a header row
	ErrEmptyTable = errors.New("table has no header row")
	// ErrUnknownColumn is returned when the requested column is not in the header
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnsupportedFormat is returned for extensions other than .csv and .xlsx
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Table is a header row plus data rows
type Table struct {
	header []string
	rows   [][]string
}

// Read parses a CSV or XLSX upload, chosen by the extension of name.
func Read(name string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// ReadCSV parses delimited text with a header row. Rows may be ragged.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return newTable(records)
}

// ReadXLSX parses the first worksheet of an Excel workbook.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrEmptyTable
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return &Table{header: dedupeHeader(header), rows: records[1:]}, nil
}

// dedupeHeader renames repeated names to name.1, name.2, ... so every column
// stays addressable.
func dedupeHeader(header []string) []string {
	used := make(map[string]bool, len(header))
	for _, h := range header {
		used[h] = true
	}

	seen := make(map[string]bool, len(header))
	next := make(map[string]int)
	for i, h := range header {
		if !seen[h] {
			seen[h] = true
			continue
		}
		for {
			next[h]++
			candidate := fmt.Sprintf("%s.%d", h, next[h])
			if !used[candidate] {
				used[candidate] = true
				seen[candidate] = true
				header[i] = candidate
				break
			}
		}
	}
	return header
}

// Columns returns the header names in file order
func (t *Table) Columns() []string {
	out := make([]string, len(t.header))
	copy(out, t.header)
	return out
}

// Len is the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Column returns the non-empty, trimmed values of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx := -1
	for i, h := range t.header {
		if h == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	var values []string
	for _, row := range t.rows {
		if idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[idx])
		if v == "" {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}
