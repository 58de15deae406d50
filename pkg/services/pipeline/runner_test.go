package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copro-tools/coproledger/pkg/services/alert"
	"github.com/copro-tools/coproledger/pkg/services/consolidate"
	"github.com/copro-tools/coproledger/pkg/services/dedup"
	"github.com/copro-tools/coproledger/pkg/services/extract"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
	runstore "github.com/copro-tools/coproledger/pkg/store/sqlite/run"
)

// portalSession serves canned documents, picking the one matching the
// section link that was clicked in it.
type portalSession struct {
	mu         sync.Mutex
	chargesDoc string
	lotsDoc    string
	clicked    []string
}

func (s *portalSession) Navigate(context.Context, string) error { return nil }
func (s *portalSession) WaitVisible(context.Context, string, time.Duration) error {
	return nil
}
func (s *portalSession) Fill(context.Context, string, string) error { return nil }
func (s *portalSession) WaitReady(context.Context, time.Duration) error {
	return nil
}
func (s *portalSession) Reload(context.Context) error { return nil }
func (s *portalSession) Close() error                 { return nil }

func (s *portalSession) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicked = append(s.clicked, selector)
	return nil
}

func (s *portalSession) Content(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sel := range s.clicked {
		if sel == "a#A3" {
			return s.chargesDoc, nil
		}
	}
	return s.lotsDoc, nil
}

type portalBrowser struct {
	chargesDoc string
	lotsDoc    string
}

func (b *portalBrowser) NewSession(context.Context, bool) (extract.Session, error) {
	return &portalSession{chargesDoc: b.chargesDoc, lotsDoc: b.lotsDoc}, nil
}

type instantClock struct{}

func (instantClock) Now() time.Time                           { return time.Now() }
func (instantClock) Sleep(context.Context, time.Duration) error { return nil }

// buildDocs renders a charges page and a unit-list page for the given owner
// count. Every owner is a 3p; highDebitCode gets a 2500 debit, the rest 10.
func buildDocs(count int, highDebitCode string) (string, string) {
	var charges strings.Builder
	charges.WriteString(`<table><tr><td id="lzA1">Situation au 15/03/2024</td></tr></table><table id="ctzA1">`)
	charges.WriteString(`<tr><td colspan="4">Solde</td></tr>`)
	charges.WriteString(`<tr><td class="ttA3">Code</td><td class="ttA4">Copropriétaire</td>` +
		`<td class="ttA5">Débit</td><td class="ttA6">Crédit</td></tr>`)
	charges.WriteString(`<tr><td colspan="4">montants en euros</td></tr>`)

	var lots strings.Builder
	for i := 0; i < count; i++ {
		code := fmt.Sprintf("%d", 100+i)
		name := fmt.Sprintf("PROPRIO%d", i)
		debit := "10,00"
		if code == highDebitCode {
			debit = "2500,00"
		}
		fmt.Fprintf(&charges, `<tr><td>%s</td><td>%s</td><td>%s</td><td>0,00</td></tr>`,
			code, name, debit)
		fmt.Fprintf(&lots, `<span id="A17_%d_0">%s (%s)</span>`, i, name, code)
		fmt.Fprintf(&lots, `<span id="A17_%d_1">Lot %d - Appartement 3 p</span>`, i, i+1)
	}
	charges.WriteString(`</table>`)
	return charges.String(), lots.String()
}

type fixture struct {
	db      *sql.DB
	charges chargestore.Store
	owners  ownerstore.Store
	alerts  alertstore.Store
	runs    runstore.Store
	out     *bytes.Buffer
}

func setupRunner(t *testing.T, chargesDoc, lotsDoc string) (*Runner, *fixture) {
	db, err := sqlite.NewDB(sqlite.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	charges, err := chargestore.NewStore(db)
	require.NoError(t, err)
	owners, err := ownerstore.NewStore(db)
	require.NoError(t, err)
	alerts, err := alertstore.NewStore(db)
	require.NoError(t, err)
	runs, err := runstore.NewStore(db)
	require.NoError(t, err)

	clock := instantClock{}
	browser := &portalBrowser{chargesDoc: chargesDoc, lotsDoc: lotsDoc}
	fetcher := extract.NewFetcher(browser, clock, extract.DefaultRetryConfig())
	extractor := extract.NewExtractor(fetcher, clock)

	alertEngine := alert.NewEngine(alerts, owners, charges)
	dedupEngine := dedup.NewEngine(charges, alertEngine)

	out := &bytes.Buffer{}
	runner := NewRunner(
		db,
		extractor,
		consolidate.NewEngine(),
		alertEngine,
		dedupEngine,
		charges,
		owners,
		runs,
		Config{
			DbPath:      ":memory:",
			ShowConsole: true,
			ConsoleOut:  out,
		},
	)

	return runner, &fixture{db: db, charges: charges, owners: owners, alerts: alerts, runs: runs, out: out}
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	creds := extract.Credentials{Login: "u", Password: "p", URL: "https://extranet.example"}

	t.Run("full run persists and raises one alert", func(t *testing.T) {
		chargesDoc, lotsDoc := buildDocs(consolidate.ExpectedOwners, "101")
		runner, f := setupRunner(t, chargesDoc, lotsDoc)

		outcome, err := runner.Run(ctx, creds)
		require.NoError(t, err)
		require.NotNil(t, outcome)

		assert.Equal(t, "2024-03-15", outcome.ReferenceDate)
		assert.Equal(t, consolidate.ExpectedOwners, outcome.Owners)
		assert.Equal(t, consolidate.ExpectedOwners, outcome.ChargesSaved)

		entries, err := f.charges.GetByDate(ctx, "2024-03-15")
		require.NoError(t, err)
		assert.Len(t, entries, consolidate.ExpectedOwners)

		registry, err := f.owners.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, registry, consolidate.ExpectedOwners)

		// every owner is a 3p; only the 2500 debit crosses the 2400 threshold
		alerts, err := f.alerts.ListAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, "101", alerts[0].OwnerCode)
		assert.Equal(t, "3p", alerts[0].ApartmentType)

		snap, err := f.alerts.GetSnapshot(ctx, "2024-03-15")
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, 1, snap.AlertCount)
		assert.Equal(t, 1, snap.Count3P)
		assert.Equal(t, 2500.0, snap.Debit3P)

		runs, err := f.runs.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "completed", runs[0].Status)
		assert.Equal(t, outcome.RunID, runs[0].ID)

		assert.Contains(t, f.out.String(), "PROPRIO0")
		assert.Contains(t, f.out.String(), "64 owners")
	})

	t.Run("wrong owner count persists nothing", func(t *testing.T) {
		chargesDoc, lotsDoc := buildDocs(consolidate.ExpectedOwners-1, "101")
		runner, f := setupRunner(t, chargesDoc, lotsDoc)

		outcome, err := runner.Run(ctx, creds)
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.ErrorContains(t, err, "consolidate")

		entries, err := f.charges.GetByDate(ctx, "2024-03-15")
		require.NoError(t, err)
		assert.Empty(t, entries)

		registry, err := f.owners.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, registry)

		runs, err := f.runs.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "failed", runs[0].Status)
		assert.NotEmpty(t, runs[0].Error)
	})

	t.Run("rerun for the same date stays idempotent", func(t *testing.T) {
		chargesDoc, lotsDoc := buildDocs(consolidate.ExpectedOwners, "101")
		runner, f := setupRunner(t, chargesDoc, lotsDoc)

		_, err := runner.Run(ctx, creds)
		require.NoError(t, err)
		_, err = runner.Run(ctx, creds)
		require.NoError(t, err)

		entries, err := f.charges.GetByDate(ctx, "2024-03-15")
		require.NoError(t, err)
		assert.Len(t, entries, consolidate.ExpectedOwners)

		// the repeated high debit counts as a second occurrence, not a new alert
		alerts, err := f.alerts.ListAlerts(ctx)
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.GreaterOrEqual(t, alerts[0].Occurrences, 2)
	})

	t.Run("unparsable charges page fails the run", func(t *testing.T) {
		_, lotsDoc := buildDocs(consolidate.ExpectedOwners, "101")
		runner, f := setupRunner(t, "<html>not the portal</html>", lotsDoc)

		_, err := runner.Run(ctx, creds)
		require.Error(t, err)
		assert.ErrorContains(t, err, "parse charges")

		runs, err := f.runs.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "failed", runs[0].Status)
	})
}
