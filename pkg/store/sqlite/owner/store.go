package owner

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
)

// Store maintains the owner registry. The registry mirrors the portal's
// current state, so each successful run replaces it wholesale.
type Store interface {
	ReplaceAll(ctx context.Context, records []store.OwnerRecord) (int, error)
	GetAll(ctx context.Context) ([]store.OwnerRecord, error)
	GetByCode(ctx context.Context, ownerCode string) (*store.OwnerRecord, error)
	ApartmentType(ctx context.Context, ownerCode string) (string, error)
}

type ownerStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &ownerStore{db: db}, nil
}

func (s *ownerStore) ReplaceAll(ctx context.Context, records []store.OwnerRecord) (int, error) {
	exec := sqlite.Exec(ctx, s.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM coproprietaires`); err != nil {
		return 0, fmt.Errorf("clear owner registry: %w", err)
	}

	stmt, err := exec.PrepareContext(ctx, `
		INSERT INTO coproprietaires (owner_code, owner_name, lot_number, apartment_type)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.OwnerCode, r.OwnerName, r.LotNumber, r.ApartmentType); err != nil {
			return 0, fmt.Errorf("insert owner %s: %w", r.OwnerCode, err)
		}
	}
	return len(records), nil
}

func (s *ownerStore) GetAll(ctx context.Context) ([]store.OwnerRecord, error) {
	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT owner_code, owner_name, lot_number, apartment_type
		FROM coproprietaires
		ORDER BY owner_name`)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var records []store.OwnerRecord
	for rows.Next() {
		var r store.OwnerRecord
		if err := rows.Scan(&r.OwnerCode, &r.OwnerName, &r.LotNumber, &r.ApartmentType); err != nil {
			return nil, fmt.Errorf("scan owner row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner rows: %w", err)
	}
	return records, nil
}

func (s *ownerStore) GetByCode(ctx context.Context, ownerCode string) (*store.OwnerRecord, error) {
	var r store.OwnerRecord
	err := sqlite.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT owner_code, owner_name, lot_number, apartment_type
		FROM coproprietaires
		WHERE owner_code = ?`, ownerCode).
		Scan(&r.OwnerCode, &r.OwnerName, &r.LotNumber, &r.ApartmentType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query owner %s: %w", ownerCode, err)
	}
	return &r, nil
}

// ApartmentType resolves the owner's apartment type, defaulting to "na" for
// owners missing from the registry.
func (s *ownerStore) ApartmentType(ctx context.Context, ownerCode string) (string, error) {
	var t string
	err := sqlite.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT LOWER(apartment_type) FROM coproprietaires WHERE owner_code = ?`, ownerCode).
		Scan(&t)
	if err == sql.ErrNoRows {
		return "na", nil
	}
	if err != nil {
		return "", fmt.Errorf("query apartment type for %s: %w", ownerCode, err)
	}
	if t == "" {
		return "na", nil
	}
	return t, nil
}
