// pkg/utils/contacts.go
package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
)

var (
	// ErrUnsupportedContactsFile is returned for contact lists that are neither CSV nor XLSX
	ErrUnsupportedContactsFile = errors.New("unsupported contacts file, expected .csv or .xlsx")
	// ErrInvalidContactsFile is returned when a contact list cannot be parsed
	ErrInvalidContactsFile = errors.New("invalid contacts file")
)

// ParseContactsFile returns the first column of every non-empty row of a CSV or XLSX contact list
func ParseContactsFile(name string, r io.Reader) ([]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return parseCSV(r)
	case ".xlsx", ".xlsm":
		return parseXLSX(r)
	default:
		return nil, ErrUnsupportedContactsFile
	}
}

func parseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var numbers []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed csv: %v", ErrInvalidContactsFile, err)
		}
		numbers = appendFirstColumn(numbers, record)
	}
	return numbers, nil
}

func parseXLSX(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable spreadsheet: %v", ErrInvalidContactsFile, err)
	}

	// First sheet by position
	sheet, first := "", 0
	for index, name := range f.GetSheetMap() {
		if first == 0 || index < first {
			sheet, first = name, index
		}
	}
	if sheet == "" {
		return nil, nil
	}

	var numbers []string
	for _, row := range f.GetRows(sheet) {
		numbers = appendFirstColumn(numbers, row)
	}
	return numbers, nil
}

func appendFirstColumn(numbers []string, row []string) []string {
	if len(row) == 0 {
		return numbers
	}
	value := strings.TrimSpace(row[0])
	if value == "" {
		return numbers
	}
	return append(numbers, value)
}
