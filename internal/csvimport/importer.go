package csvimport

import (
	"context"
	"io"

	appLog "gabinet/internal/log"
	"gabinet/internal/model"
)

const DefaultBatchSize = 100

// RowError points at one failed row, or at the first row of a failed batch.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// BatchResult is what the persistence side reports for one batch. Row
// indexes in Errors are relative to the batch.
type BatchResult struct {
	Created int
	Errors  []RowError
}

// BatchCreator persists one batch of records.
type BatchCreator interface {
	CreateBatch(ctx context.Context, entity string, records []model.Record) (BatchResult, error)
}

// Progress is called after every batch with the number of rows handled so
// far. Values only grow.
type Progress func(done, total int)

// Result summarizes an import. Row indexes in Errors are 0-based positions
// in the submitted record list.
type Result struct {
	Created   int        `json:"created"`
	Errors    []RowError `json:"errors"`
	Batches   int        `json:"batches"`
	Cancelled bool       `json:"cancelled,omitempty"`
}

type Importer struct {
	Creator   BatchCreator
	BatchSize int
}

// Run submits records in order, one batch at a time. A failing batch adds a
// single error tagged with its starting offset and the import moves on;
// nothing is retried or rolled back. Cancelling ctx stops further batches
// but keeps the ones already submitted.
func (im *Importer) Run(ctx context.Context, entity string, records []model.Record, progress Progress) Result {
	size := im.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	res := Result{Errors: []RowError{}}
	for offset := 0; offset < len(records); offset += size {
		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			appLog.Warn("csv import cancelled", "entity", entity, "offset", offset, "total", len(records))
			break
		}

		end := min(offset+size, len(records))
		br, err := im.Creator.CreateBatch(ctx, entity, records[offset:end])
		res.Batches++
		if err != nil {
			appLog.Error("csv import batch failed", err, "entity", entity, "offset", offset, "size", end-offset)
			res.Errors = append(res.Errors, RowError{Row: offset, Error: err.Error()})
		} else {
			res.Created += br.Created
			for _, re := range br.Errors {
				res.Errors = append(res.Errors, RowError{Row: offset + re.Row, Error: re.Error})
			}
		}

		if progress != nil {
			progress(end, len(records))
		}
	}

	appLog.Info("csv import finished",
		"entity", entity,
		"rows", len(records),
		"created", res.Created,
		"errors", len(res.Errors),
		"batches", res.Batches,
	)
	return res
}

// Import reads CSV from r, maps it onto entity fields and runs the import.
// Rows with no mapped values are reported as row errors and not submitted.
func (im *Importer) Import(ctx context.Context, entity string, r io.Reader, progress Progress) (Result, error) {
	fields, err := FieldsFor(entity)
	if err != nil {
		return Result{}, err
	}
	headers, rows, err := ReadCSV(r)
	if err != nil {
		return Result{}, err
	}

	mapping := AutoMap(headers, fields)
	appLog.Debug("csv import mapping", "entity", entity, "headers", len(headers), "mapped", len(mapping))

	records := make([]model.Record, 0, len(rows))
	// index maps positions in records back to CSV data rows.
	index := make([]int, 0, len(rows))
	var skipped []RowError
	for i, row := range rows {
		rec := MapRow(row, mapping, fields)
		if len(rec) == 0 {
			skipped = append(skipped, RowError{Row: i, Error: "no mapped values"})
			continue
		}
		records = append(records, rec)
		index = append(index, i)
	}

	res := im.Run(ctx, entity, records, progress)
	for i := range res.Errors {
		if p := res.Errors[i].Row; p >= 0 && p < len(index) {
			res.Errors[i].Row = index[p]
		}
	}
	res.Errors = append(skipped, res.Errors...)
	return res, nil
}
