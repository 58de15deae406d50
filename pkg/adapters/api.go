package adapters

import (
	"time"

	"github.com/copro-tools/coproledger/pkg/models/api"
	"github.com/copro-tools/coproledger/pkg/models/store"
)

func MapOwnerRecordToApi(r store.OwnerRecord) api.Owner {
	return api.Owner{
		OwnerCode:     r.OwnerCode,
		OwnerName:     r.OwnerName,
		LotNumber:     r.LotNumber,
		ApartmentType: r.ApartmentType,
	}
}

func MapChargeEntryToApi(e store.ChargeEntry) api.ChargeEntry {
	return api.ChargeEntry{
		OwnerCode:     e.OwnerCode,
		OwnerName:     e.OwnerName,
		Debit:         e.Debit,
		Credit:        e.Credit,
		ReferenceDate: e.ReferenceDate,
	}
}

func MapAlertRowToApi(a store.AlertRow) api.Alert {
	return api.Alert{
		OwnerCode:      a.OwnerCode,
		OwnerName:      a.OwnerName,
		Debit:          a.Debit,
		ApartmentType:  a.ApartmentType,
		FirstDetection: a.FirstDetection.Format(time.DateOnly),
		LastDetection:  a.LastDetection.Format(time.DateOnly),
		Occurrences:    a.Occurrences,
	}
}

func MapAlertConfigRowToApi(c store.AlertConfigRow) api.AlertConfig {
	return api.AlertConfig{
		ApartmentType: c.ApartmentType,
		AverageCharge: c.AverageCharge,
		Rate:          c.Rate,
		Threshold:     c.Threshold,
		LastUpdate:    c.LastUpdate.Format(time.DateOnly),
	}
}

func MapRunRowToApi(r store.RunRow) api.Run {
	run := api.Run{
		ID:            r.ID,
		StartedAt:     r.StartedAt.Format(time.RFC3339),
		Status:        r.Status,
		ReferenceDate: r.ReferenceDate,
		OwnersSeen:    r.OwnersSeen,
		ChargesSaved:  r.ChargesSaved,
		Error:         r.Error,
	}
	if r.FinishedAt != nil {
		run.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return run
}

func MapSnapshotRowToApi(s store.SnapshotRow) api.ActivitySnapshot {
	return api.ActivitySnapshot{
		ReferenceDate: s.ReferenceDate,
		AlertCount:    s.AlertCount,
		TotalDebit:    s.TotalDebit,
		CountByType: map[string]int{
			"2p": s.Count2P,
			"3p": s.Count3P,
			"4p": s.Count4P,
			"5p": s.Count5P,
			"na": s.CountNA,
		},
		DebitByType: map[string]float64{
			"2p": s.Debit2P,
			"3p": s.Debit3P,
			"4p": s.Debit4P,
			"5p": s.Debit5P,
			"na": s.DebitNA,
		},
	}
}
