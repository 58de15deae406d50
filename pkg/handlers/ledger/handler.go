package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/copro-tools/coproledger/pkg/adapters"
	"github.com/copro-tools/coproledger/pkg/models/api"
	"github.com/copro-tools/coproledger/pkg/models/domain"
	"github.com/copro-tools/coproledger/pkg/services/alert"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
	runstore "github.com/copro-tools/coproledger/pkg/store/sqlite/run"
)

// Handler serves the read-only reporting API plus alert configuration
// updates. Extraction runs are never triggered over HTTP.
type Handler struct {
	owners  ownerstore.Store
	charges chargestore.Store
	alerts  alertstore.Store
	engine  *alert.Engine
	runs    runstore.Store
}

func NewHandler(
	owners ownerstore.Store,
	charges chargestore.Store,
	alerts alertstore.Store,
	engine *alert.Engine,
	runs runstore.Store,
) *Handler {
	return &Handler{owners: owners, charges: charges, alerts: alerts, engine: engine, runs: runs}
}

func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.owners.GetAll(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.Owner, 0, len(records))
	for _, rec := range records {
		response = append(response, adapters.MapOwnerRecordToApi(rec))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func (h *Handler) GetOwnerCharges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	entries, err := h.charges.GetByOwner(ctx, code)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.ChargeEntry, 0, len(entries))
	for _, e := range entries {
		response = append(response, adapters.MapChargeEntryToApi(e))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, r, http.StatusBadRequest, errors.New("date query parameter is required"))
		return
	}

	entries, err := h.charges.GetByDate(ctx, date)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.ChargeEntry, 0, len(entries))
	for _, e := range entries {
		response = append(response, adapters.MapChargeEntryToApi(e))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.alerts.ListAlerts(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.Alert, 0, len(rows))
	for _, a := range rows {
		response = append(response, adapters.MapAlertRowToApi(a))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snaps, err := h.alerts.ListSnapshots(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.ActivitySnapshot, 0, len(snaps))
	for _, s := range snaps {
		response = append(response, adapters.MapSnapshotRowToApi(s))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func (h *Handler) ListAlertConfigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configs, err := h.alerts.ListConfigs(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.AlertConfig, 0, len(configs))
	for _, c := range configs {
		response = append(response, adapters.MapAlertConfigRowToApi(c))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func (h *Handler) UpdateAlertConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apt := chi.URLParam(r, "type")

	var body api.AlertConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, r, http.StatusBadRequest, err)
		return
	}

	update := domain.ConfigUpdate{}
	if body.AverageCharge != nil {
		d := decimal.NewFromFloat(*body.AverageCharge)
		update.AverageCharge = &d
	}
	if body.Rate != nil {
		d := decimal.NewFromFloat(*body.Rate)
		update.Rate = &d
	}
	if body.Threshold != nil {
		d := decimal.NewFromFloat(*body.Threshold)
		update.Threshold = &d
	}

	err := h.engine.UpdateConfig(ctx, domain.ApartmentType(apt), update)
	if errors.Is(err, alert.ErrInvalidParameter) {
		respondError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	cfg, err := h.alerts.GetConfig(ctx, apt)
	if err != nil || cfg == nil {
		respondJSON(w, r, http.StatusOK, api.Error{Message: "updated"})
		return
	}
	respondJSON(w, r, http.StatusOK, adapters.MapAlertConfigRowToApi(*cfg))
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.runs.List(ctx, 20)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	response := make([]api.Run, 0, len(rows))
	for _, row := range rows {
		response = append(response, adapters.MapRunRowToApi(row))
	}
	respondJSON(w, r, http.StatusOK, response)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	respondJSON(w, r, status, api.Error{Message: err.Error()})
}
