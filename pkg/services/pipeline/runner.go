package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/copro-tools/coproledger/pkg/adapters"
	"github.com/copro-tools/coproledger/pkg/models/domain"
	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/services/alert"
	"github.com/copro-tools/coproledger/pkg/services/consolidate"
	"github.com/copro-tools/coproledger/pkg/services/dedup"
	"github.com/copro-tools/coproledger/pkg/services/extract"
	"github.com/copro-tools/coproledger/pkg/services/parse"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
	runstore "github.com/copro-tools/coproledger/pkg/store/sqlite/run"
)

type Config struct {
	DbPath      string
	BackupDir   string
	Headless    bool
	ShowConsole bool
	ConsoleOut  io.Writer
}

// Outcome summarizes one completed run.
type Outcome struct {
	RunID         string
	ReferenceDate string
	Owners        int
	ChargesSaved  int
}

// Runner drives one extraction run end to end: fetch both sections, parse,
// consolidate, back up, persist, recompute alerts, deduplicate. Everything
// after the concurrent fetch is strictly sequential; the ledger has one
// logical writer per run.
type Runner struct {
	db           *sql.DB
	extractor    *extract.Extractor
	consolidator *consolidate.Engine
	alerts       *alert.Engine
	dedup        *dedup.Engine
	charges      chargestore.Store
	owners       ownerstore.Store
	runs         runstore.Store
	cfg          Config
	now          func() time.Time
}

func NewRunner(
	db *sql.DB,
	extractor *extract.Extractor,
	consolidator *consolidate.Engine,
	alerts *alert.Engine,
	dedupEngine *dedup.Engine,
	charges chargestore.Store,
	owners ownerstore.Store,
	runs runstore.Store,
	cfg Config,
) *Runner {
	if cfg.ConsoleOut == nil {
		cfg.ConsoleOut = os.Stdout
	}
	return &Runner{
		db:           db,
		extractor:    extractor,
		consolidator: consolidator,
		alerts:       alerts,
		dedup:        dedupEngine,
		charges:      charges,
		owners:       owners,
		runs:         runs,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (r *Runner) Run(ctx context.Context, creds extract.Credentials) (*Outcome, error) {
	logger := zerolog.Ctx(ctx)

	runID := uuid.NewString()
	startedAt := r.now().UTC()
	if err := r.runs.Create(ctx, store.RunRow{
		ID:        runID,
		StartedAt: startedAt,
		Status:    string(domain.RunStatusRunning),
	}); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	outcome, err := r.execute(ctx, creds, runID)

	finished := r.now().UTC()
	row := store.RunRow{
		ID:         runID,
		StartedAt:  startedAt,
		FinishedAt: &finished,
		Status:     string(domain.RunStatusCompleted),
	}
	if err != nil {
		row.Status = string(domain.RunStatusFailed)
		row.Error = err.Error()
	} else {
		row.ReferenceDate = outcome.ReferenceDate
		row.OwnersSeen = outcome.Owners
		row.ChargesSaved = outcome.ChargesSaved
	}
	if ferr := r.runs.Finish(ctx, row); ferr != nil {
		logger.Error().Err(ferr).Str("run", runID).Msg("failed to record run outcome")
	}

	return outcome, err
}

func (r *Runner) execute(ctx context.Context, creds extract.Credentials, runID string) (*Outcome, error) {
	logger := zerolog.Ctx(ctx).With().Str("run", runID).Logger()
	ctx = logger.WithContext(ctx)

	charges, lots := r.extractor.ExtractAll(ctx, creds, r.cfg.Headless)
	// Consolidation needs both record sets; one failed section fails the run.
	if charges.Err != nil {
		return nil, fmt.Errorf("charges fetch: %w", charges.Err)
	}
	if lots.Err != nil {
		return nil, fmt.Errorf("lots fetch: %w", lots.Err)
	}

	referenceDate, chargeRows, err := parse.ParseCharges(ctx, charges.Document)
	if err != nil {
		return nil, fmt.Errorf("parse charges: %w", err)
	}
	lotRows, err := parse.ParseLots(ctx, lots.Document)
	if err != nil {
		return nil, fmt.Errorf("parse lots: %w", err)
	}

	owners, err := r.consolidator.Consolidate(ctx, chargeRows, lotRows)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}

	if r.cfg.ShowConsole {
		renderOwners(r.cfg.ConsoleOut, owners, referenceDate)
	}

	if r.cfg.BackupDir != "" {
		if _, statErr := os.Stat(r.cfg.DbPath); statErr == nil {
			backupPath, berr := sqlite.Backup(r.cfg.DbPath, r.cfg.BackupDir, r.now())
			if berr != nil {
				return nil, fmt.Errorf("backup ledger: %w", berr)
			}
			logger.Info().Str("path", backupPath).Msg("ledger backed up")
		}
	}

	saved, err := r.persist(ctx, owners)
	if err != nil {
		return nil, err
	}

	if err := r.recomputeAlerts(ctx, referenceDate); err != nil {
		return nil, err
	}

	// Duplicate-removal failures are logged and retried on the next run,
	// never fatal.
	if err := r.deduplicate(ctx); err != nil {
		logger.Error().Err(err).Msg("deduplication failed, will retry next run")
	}

	logger.Info().
		Str("date", referenceDate).
		Int("owners", len(owners)).
		Int("charges", saved).
		Msg("run completed")

	return &Outcome{
		RunID:         runID,
		ReferenceDate: referenceDate,
		Owners:        len(owners),
		ChargesSaved:  saved,
	}, nil
}

// persist writes the consolidated owner set as one all-or-nothing batch:
// the charge snapshots and the replaced owner registry commit together or
// not at all.
func (r *Runner) persist(ctx context.Context, owners []domain.Owner) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	ctxTx := sqlite.WithTransaction(ctx, tx)

	saved, err := r.charges.Add(ctxTx, adapters.MapOwnersToChargeEntries(owners))
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("persist charges: %w", err)
	}

	if _, err := r.owners.ReplaceAll(ctxTx, adapters.MapOwnersToRecords(owners)); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("persist owner registry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return saved, nil
}

// recomputeAlerts re-evaluates the alert set against every charge entry of
// the run's reference date, keeping derived state in step with the ledger.
func (r *Runner) recomputeAlerts(ctx context.Context, referenceDate string) error {
	entries, err := r.charges.GetByDate(ctx, referenceDate)
	if err != nil {
		return fmt.Errorf("load persisted charges: %w", err)
	}
	for _, entry := range entries {
		if err := r.alerts.RecomputeOnInsert(ctx, entry); err != nil {
			return fmt.Errorf("recompute alert for %s: %w", entry.OwnerCode, err)
		}
	}
	return nil
}

func (r *Runner) deduplicate(ctx context.Context) error {
	groups, err := r.dedup.Analyze(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}
	r.dedup.Report(ctx, groups)
	_, err = r.dedup.Remove(ctx, groups)
	return err
}
