package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrSourceNotFound    = errors.New("source file not found")
	ErrUnsupportedSource = errors.New("unsupported source format")
)

// Table is a header row plus data rows, as read from a spreadsheet.
type Table struct {
	Header []string
	Rows   [][]string
}

// Row gives access to one data row by column name.
type Row struct {
	// Index is the 1-based position among the data rows.
	Index int
	cells map[string]string
}

// Get returns the raw cell under the named column and whether the column
// exists at all.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.cells[normalizeHeader(column)]
	return v, ok
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Records pairs every data row with the header. Duplicate headers keep the
// first column; short rows read as blank.
func (t *Table) Records() []Row {
	keys := make([]string, len(t.Header))
	for i, h := range t.Header {
		keys[i] = normalizeHeader(h)
	}

	rows := make([]Row, 0, len(t.Rows))
	for i, raw := range t.Rows {
		cells := make(map[string]string, len(keys))
		for col, key := range keys {
			if key == "" {
				continue
			}
			if _, seen := cells[key]; seen {
				continue
			}
			if col < len(raw) {
				cells[key] = raw[col]
			} else {
				cells[key] = ""
			}
		}
		rows = append(rows, Row{Index: i + 1, cells: cells})
	}
	return rows
}

// ReadTable loads a .xlsx/.xlsm workbook (first sheet) or a .csv file. A
// missing file fails with ErrSourceNotFound before anything else is read.
func ReadTable(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("failed to open source %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open source %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return tableFromRows(rows), nil
}

func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return tableFromRows(rows), nil
}

func tableFromRows(rows [][]string) *Table {
	if len(rows) == 0 {
		return &Table{}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &Table{Header: header, Rows: rows[1:]}
}
