package store

import "time"

type AlertConfigRow struct {
	ApartmentType string
	AverageCharge float64
	Rate          float64
	Threshold     float64
	LastUpdate    time.Time
}

type AlertRow struct {
	ID             int64
	OriginID       int64
	OwnerName      string
	OwnerCode      string
	Debit          float64
	ApartmentType  string
	FirstDetection time.Time
	LastDetection  time.Time
	Occurrences    int
}

// SnapshotRow is the persisted per-date alert activity aggregate. The typed
// counters follow the fixed 2p/3p/4p/5p/na breakdown of the schema.
type SnapshotRow struct {
	ReferenceDate string
	AlertCount    int
	TotalDebit    float64
	Count2P       int
	Count3P       int
	Count4P       int
	Count5P       int
	CountNA       int
	Debit2P       float64
	Debit3P       float64
	Debit4P       float64
	Debit5P       float64
	DebitNA       float64
}

type RunRow struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        string
	ReferenceDate string
	OwnersSeen    int
	ChargesSaved  int
	Error         string
}
