package charge

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
)

// Store persists charge snapshots. History is append-only by reference date;
// re-running an extraction for the same date updates rows in place instead of
// violating the (owner_code, reference_date) key.
type Store interface {
	Add(ctx context.Context, entries []store.ChargeEntry) (int, error)
	GetByOwner(ctx context.Context, ownerCode string) ([]store.ChargeEntry, error)
	GetByDate(ctx context.Context, referenceDate string) ([]store.ChargeEntry, error)
	GetLatestForOwner(ctx context.Context, ownerCode string) (*store.ChargeEntry, error)
	FindDuplicateGroups(ctx context.Context) ([]store.DuplicateGroup, error)
	DeleteEntries(ctx context.Context, ids []int64) ([]store.ChargeEntry, error)
}

type chargeStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &chargeStore{db: db}, nil
}

func (s *chargeStore) Add(ctx context.Context, entries []store.ChargeEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	// The batch is all-or-nothing. Without a transaction in the context,
	// open a local one so a mid-batch failure cannot leave partial rows.
	exec := sqlite.Exec(ctx, s.db)
	var local *sql.Tx
	if sqlite.GetTransaction(ctx) == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()
		local = tx
		exec = tx
	}

	query := `
		INSERT INTO charge (owner_code, owner_name, debit, credit, reference_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_code, reference_date) DO UPDATE SET
			owner_name = excluded.owner_name,
			debit = excluded.debit,
			credit = excluded.credit`

	stmt, err := exec.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			entry.OwnerCode,
			entry.OwnerName,
			entry.Debit,
			entry.Credit,
			entry.ReferenceDate,
		)
		if err != nil {
			return 0, fmt.Errorf("insert charge for %s: %w", entry.OwnerCode, err)
		}
	}

	if local != nil {
		if err := local.Commit(); err != nil {
			return 0, fmt.Errorf("commit charges: %w", err)
		}
	}
	return len(entries), nil
}

func (s *chargeStore) GetByOwner(ctx context.Context, ownerCode string) ([]store.ChargeEntry, error) {
	query := `
		SELECT id, owner_code, owner_name, debit, credit, reference_date, inserted_at
		FROM charge
		WHERE owner_code = ?
		ORDER BY reference_date DESC`

	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, query, ownerCode)
	if err != nil {
		return nil, fmt.Errorf("query charges for %s: %w", ownerCode, err)
	}
	defer rows.Close()
	return scanChargeRows(rows)
}

func (s *chargeStore) GetByDate(ctx context.Context, referenceDate string) ([]store.ChargeEntry, error) {
	query := `
		SELECT id, owner_code, owner_name, debit, credit, reference_date, inserted_at
		FROM charge
		WHERE reference_date = ?
		ORDER BY owner_code`

	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, query, referenceDate)
	if err != nil {
		return nil, fmt.Errorf("query charges for date %s: %w", referenceDate, err)
	}
	defer rows.Close()
	return scanChargeRows(rows)
}

// GetLatestForOwner returns the owner's most recent charge snapshot, or nil
// when no history remains.
func (s *chargeStore) GetLatestForOwner(ctx context.Context, ownerCode string) (*store.ChargeEntry, error) {
	query := `
		SELECT id, owner_code, owner_name, debit, credit, reference_date, inserted_at
		FROM charge
		WHERE owner_code = ?
		ORDER BY reference_date DESC, id DESC
		LIMIT 1`

	row := sqlite.Exec(ctx, s.db).QueryRowContext(ctx, query, ownerCode)
	entry, err := scanChargeRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest charge for %s: %w", ownerCode, err)
	}
	return entry, nil
}

// FindDuplicateGroups reports every (owner_name, reference_date) key held by
// more than one row. The lowest id of each group is the representative to keep.
func (s *chargeStore) FindDuplicateGroups(ctx context.Context) ([]store.DuplicateGroup, error) {
	query := `
		SELECT c.owner_name, c.reference_date, c.id
		FROM charge c
		JOIN (
			SELECT owner_name, reference_date
			FROM charge
			GROUP BY owner_name, reference_date
			HAVING COUNT(*) > 1
		) d ON c.owner_name = d.owner_name AND c.reference_date = d.reference_date
		ORDER BY c.owner_name, c.reference_date, c.id`

	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []store.DuplicateGroup
	var current *store.DuplicateGroup
	for rows.Next() {
		var name, date string
		var id int64
		if err := rows.Scan(&name, &date, &id); err != nil {
			return nil, fmt.Errorf("scan duplicate row: %w", err)
		}
		if current == nil || current.OwnerName != name || current.ReferenceDate != date {
			if current != nil {
				groups = append(groups, *current)
			}
			current = &store.DuplicateGroup{OwnerName: name, ReferenceDate: date, KeepID: id}
			continue
		}
		current.DropIDs = append(current.DropIDs, id)
	}
	if current != nil {
		groups = append(groups, *current)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate rows: %w", err)
	}
	return groups, nil
}

// DeleteEntries removes the given rows and returns them as they were before
// deletion, so the caller can re-evaluate derived state per removed entry.
func (s *chargeStore) DeleteEntries(ctx context.Context, ids []int64) ([]store.ChargeEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	exec := sqlite.Exec(ctx, s.db)
	deleted := make([]store.ChargeEntry, 0, len(ids))
	for _, id := range ids {
		row := exec.QueryRowContext(ctx, `
			SELECT id, owner_code, owner_name, debit, credit, reference_date, inserted_at
			FROM charge WHERE id = ?`, id)
		entry, err := scanChargeRow(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load charge %d: %w", id, err)
		}

		if _, err := exec.ExecContext(ctx, `DELETE FROM charge WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("delete charge %d: %w", id, err)
		}
		deleted = append(deleted, *entry)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChargeRow(row rowScanner) (*store.ChargeEntry, error) {
	var e store.ChargeEntry
	err := row.Scan(&e.ID, &e.OwnerCode, &e.OwnerName, &e.Debit, &e.Credit,
		&e.ReferenceDate, &e.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanChargeRows(rows *sql.Rows) ([]store.ChargeEntry, error) {
	var entries []store.ChargeEntry
	for rows.Next() {
		entry, err := scanChargeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charge rows: %w", err)
	}
	return entries, nil
}
