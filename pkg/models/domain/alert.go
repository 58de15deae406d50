package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertConfig holds the alert threshold parameters for one apartment type.
// Threshold is AverageCharge * Rate unless it was explicitly overridden.
type AlertConfig struct {
	ApartmentType ApartmentType
	AverageCharge decimal.Decimal
	Rate          decimal.Decimal
	Threshold     decimal.Decimal
	LastUpdate    time.Time
}

// ConfigUpdate carries the optional fields of a threshold configuration
// change. Nil fields keep their current value.
type ConfigUpdate struct {
	AverageCharge *decimal.Decimal
	Rate          *decimal.Decimal
	Threshold     *decimal.Decimal
}

// Alert is one active high-debit alert. An alert exists only while the
// owner's latest debit meets or exceeds the threshold for their type.
type Alert struct {
	ID             int64
	OriginID       int64
	OwnerName      string
	OwnerCode      string
	Debit          decimal.Decimal
	ApartmentType  ApartmentType
	FirstDetection time.Time
	LastDetection  time.Time
	Occurrences    int
}

// ActivitySnapshot aggregates the active alert set for one reference date.
type ActivitySnapshot struct {
	ReferenceDate string
	AlertCount    int
	TotalDebit    decimal.Decimal
	CountByType   map[ApartmentType]int
	DebitByType   map[ApartmentType]decimal.Decimal
}
