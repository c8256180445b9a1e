package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// HeaderRows is the number of file rows before the first data row.
const HeaderRows = 1

// ErrUnsupportedFormat is returned for files that are neither CSV nor Excel.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// RawRow is one data row exactly as read from the file.
type RawRow struct {
	// Number is the 1-indexed file row, counting the header as row 1.
	Number int
	// Values maps column name to cell text, untrimmed.
	Values map[string]string
}

// Get returns the trimmed cell of column. Blank cells count as absent.
func (r RawRow) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// Table is a parsed sheet: header columns and the non-blank data rows.
type Table struct {
	Columns []string
	Rows    []RawRow
}

// Supported reports whether fileName has an extension Parse can read.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	}
	return false
}

// Parse reads CSV or Excel data. The format is chosen from the file name
// extension; sheet selects an Excel sheet and defaults to the first one.
func Parse(fileName string, data []byte, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return ReadCSV(bytes.NewReader(data))
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadExcel(bytes.NewReader(data), sheet)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// ReadCSV parses a CSV stream. A UTF-8 byte-order mark is dropped.
func ReadCSV(r io.Reader) (*Table, error) {
	br := stripUTF8BOM(bufio.NewReader(r))
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	var records [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return buildTable(records, lines)
}

// ReadExcel parses one sheet of an Excel workbook.
func ReadExcel(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("workbook has no sheets")
		}
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return buildTable(rows, nil)
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

// buildTable turns header + records into a Table. Blank records are
// skipped without renumbering the rows after them. lines holds the file
// line of each record; when nil a record's line is its position, as for
// sheet rows.
func buildTable(records [][]string, lines []int) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.New("missing header")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = h
	}

	table := &Table{Columns: header}
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		values := make(map[string]string, len(header))
		for c, col := range header {
			if c < len(rec) {
				values[col] = rec[c]
			} else {
				values[col] = ""
			}
		}
		number := i + HeaderRows + 1
		if lines != nil {
			number = lines[i+1]
		}
		table.Rows = append(table.Rows, RawRow{
			Number: number,
			Values: values,
		})
	}
	return table, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
