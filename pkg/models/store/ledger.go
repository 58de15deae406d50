package store

import "time"

// ChargeEntry is one persisted charge snapshot. History is append-only;
// (OwnerCode, ReferenceDate) is unique.
type ChargeEntry struct {
	ID            int64
	OwnerCode     string
	OwnerName     string
	Debit         float64
	Credit        float64
	ReferenceDate string
	InsertedAt    time.Time
}

// OwnerRecord is the current owner registry row, replaced wholesale on each
// successful run.
type OwnerRecord struct {
	OwnerCode     string
	OwnerName     string
	LotNumber     string
	ApartmentType string
}

// DuplicateGroup identifies a set of charge rows sharing the same
// (owner name, reference date) key. KeepID is the representative row.
type DuplicateGroup struct {
	OwnerName     string
	ReferenceDate string
	KeepID        int64
	DropIDs       []int64
}
