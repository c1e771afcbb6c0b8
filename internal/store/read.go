package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sensorreplay/internal/directory"
)

// Record is one historical reading.
type Record struct {
	Channel   string `yaml:"channel" json:"channel"`
	Timestamp int64  `yaml:"timestamp" json:"timestamp"`
	Value     int64  `yaml:"value" json:"value"`
}

// ReadWindow returns every record with from <= rts < to.
// Results are ordered by rts ASC, rowid ASC; channel ids are normalised.
//
// Returns an empty slice (not nil) if the window holds no records.
func (s *Store) ReadWindow(ctx context.Context, from, to int64) ([]Record, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT dpid, rts, reading
		FROM read_data_record
		WHERE rts >= ? AND rts < ?
		ORDER BY rts ASC, rowid ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query window [%d,%d): %w", from, to, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window [%d,%d): %w", from, to, err)
	}

	return records, nil
}

// CountWindow returns the number of records with from <= rts < to.
func (s *Store) CountWindow(ctx context.Context, from, to int64) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	var n int64
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM read_data_record WHERE rts >= ? AND rts < ?
	`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count window [%d,%d): %w", from, to, err)
	}
	return n, nil
}

// Bounds returns the smallest and largest timestamp in the datastore.
// ok is false when the table is empty.
func (s *Store) Bounds(ctx context.Context) (lo, hi int64, ok bool, err error) {
	db, err := s.conn()
	if err != nil {
		return 0, 0, false, err
	}

	var minTS, maxTS sql.NullInt64
	err = db.QueryRowContext(ctx, `
		SELECT MIN(rts), MAX(rts) FROM read_data_record
	`).Scan(&minTS, &maxTS)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query bounds: %w", err)
	}
	if !minTS.Valid || !maxTS.Valid {
		return 0, 0, false, nil
	}
	return minTS.Int64, maxTS.Int64, true, nil
}

// scanRecord scans a row into a Record.
func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	if err := rows.Scan(&rec.Channel, &rec.Timestamp, &rec.Value); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Channel = directory.Normalize(rec.Channel)
	return rec, nil
}
