package api

type Owner struct {
	OwnerCode     string `json:"owner_code"`
	OwnerName     string `json:"owner_name"`
	LotNumber     string `json:"lot_number,omitempty"`
	ApartmentType string `json:"apartment_type"`
}

type ChargeEntry struct {
	OwnerCode     string  `json:"owner_code"`
	OwnerName     string  `json:"owner_name"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
	ReferenceDate string  `json:"reference_date"`
}

type Alert struct {
	OwnerCode      string  `json:"owner_code"`
	OwnerName      string  `json:"owner_name"`
	Debit          float64 `json:"debit"`
	ApartmentType  string  `json:"apartment_type"`
	FirstDetection string  `json:"first_detection"`
	LastDetection  string  `json:"last_detection"`
	Occurrences    int     `json:"occurrences"`
}

type AlertConfig struct {
	ApartmentType string  `json:"apartment_type"`
	AverageCharge float64 `json:"average_charge"`
	Rate          float64 `json:"rate"`
	Threshold     float64 `json:"threshold"`
	LastUpdate    string  `json:"last_update"`
}

// AlertConfigUpdate is the request body of a threshold configuration change.
// Omitted fields keep their current values.
type AlertConfigUpdate struct {
	AverageCharge *float64 `json:"average_charge,omitempty"`
	Rate          *float64 `json:"rate,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
}

type ActivitySnapshot struct {
	ReferenceDate string             `json:"reference_date"`
	AlertCount    int                `json:"alert_count"`
	TotalDebit    float64            `json:"total_debit"`
	CountByType   map[string]int     `json:"count_by_type"`
	DebitByType   map[string]float64 `json:"debit_by_type"`
}

type Run struct {
	ID            string `json:"id"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
	Status        string `json:"status"`
	ReferenceDate string `json:"reference_date,omitempty"`
	OwnersSeen    int    `json:"owners_seen"`
	ChargesSaved  int    `json:"charges_saved"`
	Error         string `json:"error,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}
