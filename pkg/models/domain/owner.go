package domain

import (
	"github.com/shopspring/decimal"
)

// ApartmentType classifies a lot by its room count. Unresolved owners
// (no lot, excluded lot, institutional holders) carry TypeNA.
type ApartmentType string

const (
	Type2P ApartmentType = "2p"
	Type3P ApartmentType = "3p"
	Type4P ApartmentType = "4p"
	Type5P ApartmentType = "5p"
	TypeNA ApartmentType = "na"
)

// KnownTypes lists every apartment type the alert configuration is seeded for.
var KnownTypes = []ApartmentType{Type2P, Type3P, Type4P, Type5P, TypeNA}

// ChargeRow is one data row of the charges table, extracted as-is from the
// portal document. ReferenceDate is the situation date in ISO form.
type ChargeRow struct {
	OwnerCode     string
	OwnerName     string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ReferenceDate string
}

// LotRow is one owner/lot association extracted from the unit-list document.
type LotRow struct {
	OwnerCode     string
	OwnerName     string
	ApartmentType ApartmentType
	LotNumber     string
}

// Owner is the consolidated view of one unit holder: charge data joined with
// lot data on the owner code. Verified is set when the owner appeared in both
// record sets.
type Owner struct {
	OwnerCode     string
	OwnerName     string
	ApartmentType ApartmentType
	LotNumber     string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ReferenceDate string
	Verified      bool
}
