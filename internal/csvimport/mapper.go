package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gabinet/internal/model"
)

// Row is one CSV data row keyed by header.
type Row map[string]string

// ReadCSV reads a header line followed by data rows. Short rows are padded
// with empty cells; an empty input yields no headers and no rows.
func ReadCSV(r io.Reader) ([]string, []Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error reading CSV: %w", err)
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// normalizeName lower-cases s and strips everything but letters and digits,
// so "First Name", "first_name" and "FIRST-NAME" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AutoMap pairs headers with fields by normalized equality. There is no
// fuzzy matching; unmatched headers are left out. When two headers match
// the same field the first one wins.
func AutoMap(headers []string, fields []Field) map[string]string {
	byNorm := make(map[string]string, len(fields))
	for _, f := range fields {
		byNorm[normalizeName(f.Name)] = f.Name
	}

	mapping := make(map[string]string)
	claimed := make(map[string]bool)
	for _, h := range headers {
		name, ok := byNorm[normalizeName(h)]
		if !ok || claimed[name] {
			continue
		}
		mapping[h] = name
		claimed[name] = true
	}
	return mapping
}

// MapRow builds a record from row using mapping (header -> field name).
// Empty cells are skipped; a cell that fails numeric coercion drops only
// that field.
func MapRow(row Row, mapping map[string]string, fields []Field) model.Record {
	kinds := make(map[string]Kind, len(fields))
	for _, f := range fields {
		kinds[f.Name] = f.Kind
	}

	rec := make(model.Record)
	for header, field := range mapping {
		raw := strings.TrimSpace(row[header])
		if raw == "" {
			continue
		}
		switch kinds[field] {
		case KindList:
			var items []string
			for _, part := range strings.Split(raw, ";") {
				if p := strings.TrimSpace(part); p != "" {
					items = append(items, p)
				}
			}
			if len(items) > 0 {
				rec[field] = items
			}
		case KindNumber:
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				continue
			}
			rec[field] = n
		case KindBool:
			v := strings.ToLower(raw)
			rec[field] = v == "yes" || v == "true"
		default:
			rec[field] = raw
		}
	}
	return rec
}
