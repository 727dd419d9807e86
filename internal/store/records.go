package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gabinet/internal/csvimport"
	"gabinet/internal/model"
)

// CreateBatch implements csvimport.BatchCreator. The batch runs in one
// transaction; rows that cannot be stored (duplicate e-mail within the
// entity, unencodable values) become row errors and the rest commit.
func (s *Store) CreateBatch(ctx context.Context, entity string, records []model.Record) (csvimport.BatchResult, error) {
	if _, err := csvimport.FieldsFor(entity); err != nil {
		return csvimport.BatchResult{}, err
	}

	var res csvimport.BatchResult
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				res.Errors = append(res.Errors, csvimport.RowError{Row: i, Error: err.Error()})
				continue
			}

			var email any
			if e, ok := rec["email"].(string); ok && e != "" {
				email = strings.ToLower(e)
				var n int
				if err := tx.QueryRowContext(ctx,
					`SELECT COUNT(*) FROM records WHERE entity = ? AND email = ?`, entity, email).Scan(&n); err != nil {
					return err
				}
				if n > 0 {
					res.Errors = append(res.Errors, csvimport.RowError{Row: i, Error: fmt.Sprintf("duplicate email %s", e)})
					continue
				}
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO records (id, entity, email, data, created_at) VALUES (?, ?, ?, ?, ?)`,
				uuid.NewString(), entity, email, string(data), now); err != nil {
				return err
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return csvimport.BatchResult{}, fmt.Errorf("create batch: %w", err)
	}
	return res, nil
}

// Records returns up to limit stored records of entity, oldest first.
func (s *Store) Records(ctx context.Context, entity string, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM records WHERE entity = ? ORDER BY created_at, rowid LIMIT ?`, entity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec := model.Record{}
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		rec["id"] = id
		out = append(out, rec)
	}
	return out, rows.Err()
}
