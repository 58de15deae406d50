package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/copro-tools/coproledger/pkg/models/domain"
	"github.com/copro-tools/coproledger/pkg/models/store"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
)

// ErrInvalidParameter rejects a configuration update that would leave the
// threshold computation meaningless. The stored configuration is untouched.
var ErrInvalidParameter = errors.New("invalid configuration parameter")

// FallbackThreshold backs threshold lookups when even the "default" config
// row is missing.
const FallbackThreshold = 2000.0

// Engine maintains the derived alert set and the per-date activity snapshot.
// It is the only writer of alert records; it runs synchronously after every
// ledger mutation so the alert set always reflects the latest charge state.
type Engine struct {
	alerts  alertstore.Store
	owners  ownerstore.Store
	charges chargestore.Store
	now     func() time.Time
}

func NewEngine(alerts alertstore.Store, owners ownerstore.Store, charges chargestore.Store) *Engine {
	return &Engine{
		alerts:  alerts,
		owners:  owners,
		charges: charges,
		now:     time.Now,
	}
}

// RecomputeOnInsert re-evaluates one owner's alert state after their charge
// entry was written, then refreshes the activity snapshot for the entry's
// reference date.
func (e *Engine) RecomputeOnInsert(ctx context.Context, entry store.ChargeEntry) error {
	logger := zerolog.Ctx(ctx)

	apt, err := e.owners.ApartmentType(ctx, entry.OwnerCode)
	if err != nil {
		return fmt.Errorf("resolve apartment type: %w", err)
	}

	threshold, err := e.Threshold(ctx, domain.ApartmentType(apt))
	if err != nil {
		return fmt.Errorf("resolve threshold: %w", err)
	}

	debit := decimal.NewFromFloat(entry.Debit)
	if debit.GreaterThanOrEqual(threshold) {
		now := e.now().UTC()
		if err := e.alerts.UpsertAlert(ctx, store.AlertRow{
			OriginID:       entry.ID,
			OwnerName:      entry.OwnerName,
			OwnerCode:      entry.OwnerCode,
			Debit:          entry.Debit,
			ApartmentType:  apt,
			FirstDetection: now,
			LastDetection:  now,
		}); err != nil {
			return fmt.Errorf("upsert alert: %w", err)
		}
		logger.Info().
			Str("owner", entry.OwnerCode).
			Float64("debit", entry.Debit).
			Str("threshold", threshold.String()).
			Msg("high debit alert raised")
	} else {
		if err := e.alerts.DeleteAlertByOwner(ctx, entry.OwnerCode); err != nil {
			return fmt.Errorf("clear alert: %w", err)
		}
	}

	return e.refreshSnapshot(ctx, entry.ReferenceDate)
}

// RecomputeOnDelete re-evaluates one owner's alert state after a charge
// entry of theirs was removed. The alert follows the owner's remaining
// latest entry; with no history left, the alert goes too.
func (e *Engine) RecomputeOnDelete(ctx context.Context, entry store.ChargeEntry) error {
	latest, err := e.charges.GetLatestForOwner(ctx, entry.OwnerCode)
	if err != nil {
		return fmt.Errorf("load remaining charges: %w", err)
	}

	if latest == nil {
		if err := e.alerts.DeleteAlertByOwner(ctx, entry.OwnerCode); err != nil {
			return fmt.Errorf("clear alert: %w", err)
		}
		return e.refreshSnapshot(ctx, entry.ReferenceDate)
	}

	return e.RecomputeOnInsert(ctx, *latest)
}

// Threshold resolves the alert threshold for an apartment type, lazily
// seeding the default configuration when the table has never been filled.
func (e *Engine) Threshold(ctx context.Context, apt domain.ApartmentType) (decimal.Decimal, error) {
	cfg, err := e.alerts.GetConfig(ctx, string(apt))
	if err != nil {
		return decimal.Zero, err
	}
	if cfg == nil {
		if err := e.alerts.SeedDefaultConfigs(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("seed default configs: %w", err)
		}
		cfg, err = e.alerts.GetConfig(ctx, string(apt))
		if err != nil {
			return decimal.Zero, err
		}
	}
	if cfg == nil {
		cfg, err = e.alerts.GetConfig(ctx, "default")
		if err != nil {
			return decimal.Zero, err
		}
	}
	if cfg == nil {
		return decimal.NewFromFloat(FallbackThreshold), nil
	}
	return decimal.NewFromFloat(cfg.Threshold), nil
}

// UpdateConfig applies a threshold configuration change for one apartment
// type. Threshold is recomputed as average x rate unless explicitly
// overridden. Invalid values are rejected without touching the stored row.
func (e *Engine) UpdateConfig(ctx context.Context, apt domain.ApartmentType, update domain.ConfigUpdate) error {
	if update.AverageCharge != nil && !update.AverageCharge.IsPositive() {
		return fmt.Errorf("average_charge must be > 0, got %s: %w", update.AverageCharge, ErrInvalidParameter)
	}
	if update.Rate != nil && !update.Rate.IsPositive() {
		return fmt.Errorf("rate must be > 0, got %s: %w", update.Rate, ErrInvalidParameter)
	}
	if update.Threshold != nil && update.Threshold.IsNegative() {
		return fmt.Errorf("threshold must be >= 0, got %s: %w", update.Threshold, ErrInvalidParameter)
	}

	cfg, err := e.alerts.GetConfig(ctx, string(apt))
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("apartment type %q has no configuration: %w", apt, ErrInvalidParameter)
	}

	average := decimal.NewFromFloat(cfg.AverageCharge)
	rate := decimal.NewFromFloat(cfg.Rate)
	if update.AverageCharge != nil {
		average = *update.AverageCharge
	}
	if update.Rate != nil {
		rate = *update.Rate
	}

	threshold := decimal.NewFromFloat(cfg.Threshold)
	switch {
	case update.Threshold != nil:
		threshold = *update.Threshold
	case update.AverageCharge != nil || update.Rate != nil:
		threshold = average.Mul(rate)
	}

	avgF, _ := average.Float64()
	rateF, _ := rate.Float64()
	thresholdF, _ := threshold.Float64()
	if err := e.alerts.SaveConfig(ctx, store.AlertConfigRow{
		ApartmentType: string(apt),
		AverageCharge: avgF,
		Rate:          rateF,
		Threshold:     thresholdF,
		LastUpdate:    e.now().UTC(),
	}); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("type", string(apt)).
		Float64("average_charge", avgF).
		Float64("rate", rateF).
		Float64("threshold", thresholdF).
		Msg("alert configuration updated")
	return nil
}

// refreshSnapshot recomputes the activity aggregate for a reference date
// from the current alert set.
func (e *Engine) refreshSnapshot(ctx context.Context, referenceDate string) error {
	alerts, err := e.alerts.ListAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	snap := store.SnapshotRow{ReferenceDate: referenceDate}
	for _, a := range alerts {
		snap.AlertCount++
		snap.TotalDebit += a.Debit
		switch domain.ApartmentType(a.ApartmentType) {
		case domain.Type2P:
			snap.Count2P++
			snap.Debit2P += a.Debit
		case domain.Type3P:
			snap.Count3P++
			snap.Debit3P += a.Debit
		case domain.Type4P:
			snap.Count4P++
			snap.Debit4P += a.Debit
		case domain.Type5P:
			snap.Count5P++
			snap.Debit5P += a.Debit
		default:
			snap.CountNA++
			snap.DebitNA += a.Debit
		}
	}

	if err := e.alerts.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
