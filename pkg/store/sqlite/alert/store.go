package alert

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
)

// Default alert configuration seeded for every apartment type. The "default"
// row backs threshold lookups for types with no configuration of their own.
var DefaultConfigs = []store.AlertConfigRow{
	{ApartmentType: "2p", AverageCharge: 1500, Rate: 1.33, Threshold: 2000},
	{ApartmentType: "3p", AverageCharge: 1800, Rate: 1.33, Threshold: 2400},
	{ApartmentType: "4p", AverageCharge: 2100, Rate: 1.33, Threshold: 2800},
	{ApartmentType: "5p", AverageCharge: 2400, Rate: 1.33, Threshold: 3200},
	{ApartmentType: "na", AverageCharge: 1500, Rate: 1.33, Threshold: 2000},
	{ApartmentType: "default", AverageCharge: 2000, Rate: 1.0, Threshold: 2000},
}

// Store persists alert configuration, active alert records and the per-date
// activity snapshots. Alert rows are owned by the alert engine; nothing else
// writes them.
type Store interface {
	SeedDefaultConfigs(ctx context.Context) error
	GetConfig(ctx context.Context, apartmentType string) (*store.AlertConfigRow, error)
	ListConfigs(ctx context.Context) ([]store.AlertConfigRow, error)
	SaveConfig(ctx context.Context, cfg store.AlertConfigRow) error

	GetAlertByOwner(ctx context.Context, ownerCode string) (*store.AlertRow, error)
	ListAlerts(ctx context.Context) ([]store.AlertRow, error)
	UpsertAlert(ctx context.Context, row store.AlertRow) error
	DeleteAlertByOwner(ctx context.Context, ownerCode string) error

	SaveSnapshot(ctx context.Context, snap store.SnapshotRow) error
	GetSnapshot(ctx context.Context, referenceDate string) (*store.SnapshotRow, error)
	ListSnapshots(ctx context.Context) ([]store.SnapshotRow, error)
}

type alertStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &alertStore{db: db}, nil
}

// SeedDefaultConfigs inserts the default threshold rows, leaving existing
// rows untouched.
func (s *alertStore) SeedDefaultConfigs(ctx context.Context) error {
	exec := sqlite.Exec(ctx, s.db)
	for _, cfg := range DefaultConfigs {
		_, err := exec.ExecContext(ctx, `
			INSERT OR IGNORE INTO config_alerte
				(apartment_type, average_charge, rate, threshold, last_update)
			VALUES (?, ?, ?, ?, ?)`,
			cfg.ApartmentType, cfg.AverageCharge, cfg.Rate, cfg.Threshold, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("seed config for %s: %w", cfg.ApartmentType, err)
		}
	}
	return nil
}

func (s *alertStore) GetConfig(ctx context.Context, apartmentType string) (*store.AlertConfigRow, error) {
	var cfg store.AlertConfigRow
	err := sqlite.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT apartment_type, average_charge, rate, threshold, last_update
		FROM config_alerte
		WHERE LOWER(apartment_type) = LOWER(?)`, apartmentType).
		Scan(&cfg.ApartmentType, &cfg.AverageCharge, &cfg.Rate, &cfg.Threshold, &cfg.LastUpdate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query config for %s: %w", apartmentType, err)
	}
	return &cfg, nil
}

func (s *alertStore) ListConfigs(ctx context.Context) ([]store.AlertConfigRow, error) {
	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT apartment_type, average_charge, rate, threshold, last_update
		FROM config_alerte
		ORDER BY apartment_type`)
	if err != nil {
		return nil, fmt.Errorf("query configs: %w", err)
	}
	defer rows.Close()

	var configs []store.AlertConfigRow
	for rows.Next() {
		var cfg store.AlertConfigRow
		if err := rows.Scan(&cfg.ApartmentType, &cfg.AverageCharge, &cfg.Rate,
			&cfg.Threshold, &cfg.LastUpdate); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config rows: %w", err)
	}
	return configs, nil
}

func (s *alertStore) SaveConfig(ctx context.Context, cfg store.AlertConfigRow) error {
	_, err := sqlite.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO config_alerte (apartment_type, average_charge, rate, threshold, last_update)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(apartment_type) DO UPDATE SET
			average_charge = excluded.average_charge,
			rate = excluded.rate,
			threshold = excluded.threshold,
			last_update = excluded.last_update`,
		cfg.ApartmentType, cfg.AverageCharge, cfg.Rate, cfg.Threshold, cfg.LastUpdate)
	if err != nil {
		return fmt.Errorf("save config for %s: %w", cfg.ApartmentType, err)
	}
	return nil
}

func (s *alertStore) GetAlertByOwner(ctx context.Context, ownerCode string) (*store.AlertRow, error) {
	var a store.AlertRow
	err := sqlite.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT alert_id, origin_id, owner_name, owner_code, debit, apartment_type,
		       first_detection, last_detection, occurrence_count
		FROM alertes_debit_eleve
		WHERE owner_code = ?`, ownerCode).
		Scan(&a.ID, &a.OriginID, &a.OwnerName, &a.OwnerCode, &a.Debit, &a.ApartmentType,
			&a.FirstDetection, &a.LastDetection, &a.Occurrences)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query alert for %s: %w", ownerCode, err)
	}
	return &a, nil
}

func (s *alertStore) ListAlerts(ctx context.Context) ([]store.AlertRow, error) {
	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT alert_id, origin_id, owner_name, owner_code, debit, apartment_type,
		       first_detection, last_detection, occurrence_count
		FROM alertes_debit_eleve
		ORDER BY debit DESC`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []store.AlertRow
	for rows.Next() {
		var a store.AlertRow
		if err := rows.Scan(&a.ID, &a.OriginID, &a.OwnerName, &a.OwnerCode, &a.Debit,
			&a.ApartmentType, &a.FirstDetection, &a.LastDetection, &a.Occurrences); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return alerts, nil
}

// UpsertAlert creates the owner's alert or refreshes it, bumping the
// occurrence count and keeping the original first detection.
func (s *alertStore) UpsertAlert(ctx context.Context, row store.AlertRow) error {
	_, err := sqlite.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO alertes_debit_eleve
			(origin_id, owner_name, owner_code, debit, apartment_type,
			 first_detection, last_detection, occurrence_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(owner_code) DO UPDATE SET
			origin_id = excluded.origin_id,
			owner_name = excluded.owner_name,
			debit = excluded.debit,
			apartment_type = excluded.apartment_type,
			last_detection = excluded.last_detection,
			occurrence_count = occurrence_count + 1`,
		row.OriginID, row.OwnerName, row.OwnerCode, row.Debit, row.ApartmentType,
		row.FirstDetection, row.LastDetection)
	if err != nil {
		return fmt.Errorf("upsert alert for %s: %w", row.OwnerCode, err)
	}
	return nil
}

func (s *alertStore) DeleteAlertByOwner(ctx context.Context, ownerCode string) error {
	_, err := sqlite.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM alertes_debit_eleve WHERE owner_code = ?`, ownerCode)
	if err != nil {
		return fmt.Errorf("delete alert for %s: %w", ownerCode, err)
	}
	return nil
}

func (s *alertStore) SaveSnapshot(ctx context.Context, snap store.SnapshotRow) error {
	_, err := sqlite.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT OR REPLACE INTO suivi_alertes (
			reference_date, alert_count, total_debit,
			nb_2p, nb_3p, nb_4p, nb_5p, nb_na,
			debit_2p, debit_3p, debit_4p, debit_5p, debit_na
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ReferenceDate, snap.AlertCount, snap.TotalDebit,
		snap.Count2P, snap.Count3P, snap.Count4P, snap.Count5P, snap.CountNA,
		snap.Debit2P, snap.Debit3P, snap.Debit4P, snap.Debit5P, snap.DebitNA)
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", snap.ReferenceDate, err)
	}
	return nil
}

func (s *alertStore) GetSnapshot(ctx context.Context, referenceDate string) (*store.SnapshotRow, error) {
	var snap store.SnapshotRow
	err := sqlite.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT reference_date, alert_count, total_debit,
		       nb_2p, nb_3p, nb_4p, nb_5p, nb_na,
		       debit_2p, debit_3p, debit_4p, debit_5p, debit_na
		FROM suivi_alertes
		WHERE reference_date = ?`, referenceDate).
		Scan(&snap.ReferenceDate, &snap.AlertCount, &snap.TotalDebit,
			&snap.Count2P, &snap.Count3P, &snap.Count4P, &snap.Count5P, &snap.CountNA,
			&snap.Debit2P, &snap.Debit3P, &snap.Debit4P, &snap.Debit5P, &snap.DebitNA)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot for %s: %w", referenceDate, err)
	}
	return &snap, nil
}

func (s *alertStore) ListSnapshots(ctx context.Context) ([]store.SnapshotRow, error) {
	rows, err := sqlite.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT reference_date, alert_count, total_debit,
		       nb_2p, nb_3p, nb_4p, nb_5p, nb_na,
		       debit_2p, debit_3p, debit_4p, debit_5p, debit_na
		FROM suivi_alertes
		ORDER BY reference_date`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []store.SnapshotRow
	for rows.Next() {
		var snap store.SnapshotRow
		if err := rows.Scan(&snap.ReferenceDate, &snap.AlertCount, &snap.TotalDebit,
			&snap.Count2P, &snap.Count3P, &snap.Count4P, &snap.Count5P, &snap.CountNA,
			&snap.Debit2P, &snap.Debit3P, &snap.Debit4P, &snap.Debit5P, &snap.DebitNA); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}
