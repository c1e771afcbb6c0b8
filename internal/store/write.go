package store

import (
	"context"
	"fmt"
)

// WriteRecords appends records to the datastore in a single transaction.
// Either all records are written or none are.
func (s *Store) WriteRecords(ctx context.Context, records []Record) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write records: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO read_data_record (dpid, rts, reading) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write records: prepare: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if rec.Channel == "" {
			return fmt.Errorf("write records: record %d has empty channel", i)
		}
		if _, err := stmt.ExecContext(ctx, rec.Channel, rec.Timestamp, rec.Value); err != nil {
			return fmt.Errorf("write records: record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write records: commit: %w", err)
	}
	return nil
}
