// Package imports loads participants from an uploaded spreadsheet.
package imports

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoRows is returned when a workbook has no usable participant rows.
var ErrNoRows = errors.New("no participants found in workbook")

// ErrInvalidWorkbook is returned when the upload is not a readable xlsx file.
var ErrInvalidWorkbook = errors.New("invalid xlsx workbook")

// ErrMissingColumns is returned when the header row lacks a name or email column.
var ErrMissingColumns = errors.New("header row must contain name and email columns")

var (
	nameHeaders  = map[string]bool{"name": true, "nama": true, "full name": true, "nama lengkap": true}
	emailHeaders = map[string]bool{"email": true, "e-mail": true, "surel": true}
)

// Row is one participant read from the sheet.
type Row struct {
	Name  string
	Email string
}

// ParseWorkbook reads the first sheet of an xlsx workbook. Rows missing a name or email are skipped.
func ParseWorkbook(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrInvalidWorkbook, sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	nameCol, emailCol := -1, -1
	for i, cell := range rows[0] {
		h := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case nameCol < 0 && nameHeaders[h]:
			nameCol = i
		case emailCol < 0 && emailHeaders[h]:
			emailCol = i
		}
	}
	if nameCol < 0 || emailCol < 0 {
		return nil, ErrMissingColumns
	}

	var out []Row
	for _, cells := range rows[1:] {
		name, email := cellAt(cells, nameCol), cellAt(cells, emailCol)
		if name == "" || email == "" {
			continue
		}
		out = append(out, Row{Name: name, Email: email})
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// GetRows trims trailing empty cells, so short rows are common.
func cellAt(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
