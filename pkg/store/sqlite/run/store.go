package run

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
)

// Store keeps the audit trail of extraction runs.
type Store interface {
	Create(ctx context.Context, row store.RunRow) error
	Finish(ctx context.Context, row store.RunRow) error
	List(ctx context.Context, limit int) ([]store.RunRow, error)
}

type runStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &runStore{db: db}, nil
}

func (s *runStore) Create(ctx context.Context, row store.RunRow) error {
	_, err := sqlite.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status)
		VALUES (?, ?, ?)`,
		row.ID, row.StartedAt, row.Status)
	if err != nil {
		return fmt.Errorf("create run %s: %w", row.ID, err)
	}
	return nil
}

func (s *runStore) Finish(ctx context.Context, row store.RunRow) error {
	res, err := sqlite.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, reference_date = ?,
		    owners_seen = ?, charges_saved = ?, error = ?
		WHERE id = ?`,
		row.FinishedAt, row.Status, row.ReferenceDate,
		row.OwnersSeen, row.ChargesSaved, row.Error, row.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", row.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: run not found", row.ID)
	}
	return nil
}

func (s *runStore) List(ctx context.Context, limit int) ([]store.RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, reference_date,
		       owners_seen, charges_saved, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []store.RunRow
	for rows.Next() {
		var r store.RunRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.ReferenceDate, &r.OwnersSeen, &r.ChargesSaved, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}
