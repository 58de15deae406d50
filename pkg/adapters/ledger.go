package adapters

import (
	"github.com/copro-tools/coproledger/pkg/models/domain"
	"github.com/copro-tools/coproledger/pkg/models/store"
)

func MapOwnerToChargeEntry(o domain.Owner) store.ChargeEntry {
	debit, _ := o.Debit.Float64()
	credit, _ := o.Credit.Float64()
	return store.ChargeEntry{
		OwnerCode:     o.OwnerCode,
		OwnerName:     o.OwnerName,
		Debit:         debit,
		Credit:        credit,
		ReferenceDate: o.ReferenceDate,
	}
}

func MapOwnerToRecord(o domain.Owner) store.OwnerRecord {
	return store.OwnerRecord{
		OwnerCode:     o.OwnerCode,
		OwnerName:     o.OwnerName,
		LotNumber:     o.LotNumber,
		ApartmentType: string(o.ApartmentType),
	}
}

func MapOwnersToChargeEntries(owners []domain.Owner) []store.ChargeEntry {
	entries := make([]store.ChargeEntry, 0, len(owners))
	for _, o := range owners {
		entries = append(entries, MapOwnerToChargeEntry(o))
	}
	return entries
}

func MapOwnersToRecords(owners []domain.Owner) []store.OwnerRecord {
	records := make([]store.OwnerRecord, 0, len(owners))
	for _, o := range owners {
		records = append(records, MapOwnerToRecord(o))
	}
	return records
}
