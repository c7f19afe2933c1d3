// Package dataset turns uploaded CSV/Excel files into the flat, ordered
// record sequences the certificate engine consumes. The first row is the
// header; every following non-blank row becomes one record.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
)

// ErrUnsupportedFormat is returned for dataset files that are neither CSV nor
// Excel.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// ErrMissingHeader is returned when the file has no header row at all.
var ErrMissingHeader = errors.New("dataset has no header row")

// Parse dispatches on the file extension of name.
func Parse(name string, r io.Reader) (*certificate.SliceSource, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseExcel(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ParseCSV reads a comma-separated dataset. Rows shorter than the header are
// padded with empty values; extra cells are dropped.
func ParseCSV(r io.Reader) (*certificate.SliceSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRows(rows)
}

// ParseExcel reads the first sheet of an xlsx workbook.
func ParseExcel(r io.Reader) (*certificate.SliceSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse excel: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("parse excel: %w", ErrMissingHeader)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("parse excel sheet %s: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (*certificate.SliceSource, error) {
	if len(rows) == 0 {
		return nil, ErrMissingHeader
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var records []certificate.Record
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(certificate.Record, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		records = append(records, rec)
	}

	return certificate.NewSliceSource(records), nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
