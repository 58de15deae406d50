package dedup

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/services/alert"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
)

type fixture struct {
	db      *sql.DB
	charges chargestore.Store
	alerts  alertstore.Store
	engine  *Engine
}

func setupFixture(t *testing.T) *fixture {
	db, err := sqlite.NewDB(sqlite.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	charges, err := chargestore.NewStore(db)
	require.NoError(t, err)
	alerts, err := alertstore.NewStore(db)
	require.NoError(t, err)
	owners, err := ownerstore.NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	require.NoError(t, alerts.SeedDefaultConfigs(context.Background()))
	alertEngine := alert.NewEngine(alerts, owners, charges)

	return &fixture{
		db:      db,
		charges: charges,
		alerts:  alerts,
		engine:  NewEngine(charges, alertEngine),
	}
}

// seedDuplicates creates three rows for the same owner name and date under
// distinct owner codes, the way a portal renumbering produces them.
func (f *fixture) seedDuplicates(t *testing.T) {
	t.Helper()
	_, err := f.charges.Add(context.Background(), []store.ChargeEntry{
		{OwnerCode: "101", OwnerName: "DUPONT", Debit: 2500, ReferenceDate: "2024-03-15"},
		{OwnerCode: "201", OwnerName: "DUPONT", Debit: 2500, ReferenceDate: "2024-03-15"},
		{OwnerCode: "301", OwnerName: "DUPONT", Debit: 2500, ReferenceDate: "2024-03-15"},
		{OwnerCode: "102", OwnerName: "MARTIN", Debit: 0, ReferenceDate: "2024-03-15"},
	})
	require.NoError(t, err)
}

func TestEngine_Analyze(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	f.seedDuplicates(t)

	groups, err := f.engine.Analyze(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "DUPONT", groups[0].OwnerName)
	assert.Len(t, groups[0].DropIDs, 2)
}

func TestEngine_Report(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	f.seedDuplicates(t)

	groups, err := f.engine.Analyze(ctx)
	require.NoError(t, err)

	report := f.engine.Report(ctx, groups)
	assert.Equal(t, 2, report.RowsToDrop)
	assert.Contains(t, report.Summary, "DUPONT")
	assert.Contains(t, report.Summary, "2024-03-15")
}

func TestEngine_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses removal without a report", func(t *testing.T) {
		f := setupFixture(t)
		f.seedDuplicates(t)

		groups, err := f.engine.Analyze(ctx)
		require.NoError(t, err)

		_, err = f.engine.Remove(ctx, groups)
		assert.ErrorIs(t, err, ErrNoReport)
	})

	t.Run("refuses removal for a different group set", func(t *testing.T) {
		f := setupFixture(t)
		f.seedDuplicates(t)

		groups, err := f.engine.Analyze(ctx)
		require.NoError(t, err)
		f.engine.Report(ctx, groups)

		other := []store.DuplicateGroup{{OwnerName: "AUTRE", ReferenceDate: "2024-03-15", KeepID: 99}}
		_, err = f.engine.Remove(ctx, other)
		assert.ErrorIs(t, err, ErrNoReport)
	})

	t.Run("keeps one representative per group", func(t *testing.T) {
		f := setupFixture(t)
		f.seedDuplicates(t)

		groups, err := f.engine.Analyze(ctx)
		require.NoError(t, err)
		f.engine.Report(ctx, groups)

		removed, err := f.engine.Remove(ctx, groups)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		remaining, err := f.charges.GetByDate(ctx, "2024-03-15")
		require.NoError(t, err)
		require.Len(t, remaining, 2)
		assert.Equal(t, "101", remaining[0].OwnerCode)
		assert.Equal(t, "102", remaining[1].OwnerCode)

		again, err := f.engine.Analyze(ctx)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("a second removal needs a fresh report", func(t *testing.T) {
		f := setupFixture(t)
		f.seedDuplicates(t)

		groups, err := f.engine.Analyze(ctx)
		require.NoError(t, err)
		f.engine.Report(ctx, groups)

		_, err = f.engine.Remove(ctx, groups)
		require.NoError(t, err)

		_, err = f.engine.Remove(ctx, groups)
		assert.ErrorIs(t, err, ErrNoReport)
	})

	t.Run("removal clears alerts left without history", func(t *testing.T) {
		f := setupFixture(t)

		_, err := f.charges.Add(ctx, []store.ChargeEntry{
			{OwnerCode: "101", OwnerName: "DUPONT", Debit: 2500, ReferenceDate: "2024-03-15"},
			{OwnerCode: "201", OwnerName: "DUPONT", Debit: 2500, ReferenceDate: "2024-03-15"},
		})
		require.NoError(t, err)

		entries, err := f.charges.GetByDate(ctx, "2024-03-15")
		require.NoError(t, err)
		require.Len(t, entries, 2)

		// the duplicate under code 201 raised an alert of its own
		alertEngine := alert.NewEngine(f.alerts, mustOwners(t, f.db), f.charges)
		require.NoError(t, alertEngine.RecomputeOnInsert(ctx, entries[1]))

		groups, err := f.engine.Analyze(ctx)
		require.NoError(t, err)
		f.engine.Report(ctx, groups)
		_, err = f.engine.Remove(ctx, groups)
		require.NoError(t, err)

		a, err := f.alerts.GetAlertByOwner(ctx, "201")
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("empty group set removes nothing", func(t *testing.T) {
		f := setupFixture(t)

		f.engine.Report(ctx, nil)
		removed, err := f.engine.Remove(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func mustOwners(t *testing.T, db *sql.DB) ownerstore.Store {
	t.Helper()
	st, err := ownerstore.NewStore(db)
	require.NoError(t, err)
	return st
}
