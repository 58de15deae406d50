package dedup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/copro-tools/coproledger/pkg/models/store"
	"github.com/copro-tools/coproledger/pkg/services/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
)

// ErrNoReport rejects a removal that was not preceded by a report covering
// the same group set. Every deletion must be auditable.
var ErrNoReport = errors.New("no report produced for this duplicate group set")

// Report is the audit artifact of one analyze pass: which rows are about to
// be removed and which representative survives per group.
type Report struct {
	GeneratedAt time.Time
	Groups      []store.DuplicateGroup
	RowsToDrop  int
	Summary     string

	fingerprint string
}

// Engine removes duplicate charge history rows (same owner name and
// reference date) in three ordered phases: Analyze finds the groups, Report
// records what removal would do, Remove deletes everything but one
// representative per group and keeps the alert set consistent.
type Engine struct {
	charges    chargestore.Store
	alerts     *alert.Engine
	now        func() time.Time
	lastReport *Report
}

func NewEngine(charges chargestore.Store, alerts *alert.Engine) *Engine {
	return &Engine{charges: charges, alerts: alerts, now: time.Now}
}

// Analyze finds every duplicate group currently in the charge history.
func (e *Engine) Analyze(ctx context.Context) ([]store.DuplicateGroup, error) {
	groups, err := e.charges.FindDuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyze duplicates: %w", err)
	}
	zerolog.Ctx(ctx).Info().Int("groups", len(groups)).Msg("duplicate analysis complete")
	return groups, nil
}

// Report produces the audit artifact for a group set and arms the engine
// for a matching Remove call.
func (e *Engine) Report(ctx context.Context, groups []store.DuplicateGroup) *Report {
	var b strings.Builder
	drop := 0
	for _, g := range groups {
		drop += len(g.DropIDs)
		fmt.Fprintf(&b, "%s @ %s: keep #%d, drop %d row(s)\n",
			g.OwnerName, g.ReferenceDate, g.KeepID, len(g.DropIDs))
	}

	report := &Report{
		GeneratedAt: e.now().UTC(),
		Groups:      groups,
		RowsToDrop:  drop,
		Summary:     b.String(),
		fingerprint: fingerprint(groups),
	}
	e.lastReport = report

	zerolog.Ctx(ctx).Info().
		Int("groups", len(groups)).
		Int("rows_to_drop", drop).
		Msg("duplicate report produced")
	return report
}

// Remove deletes every non-representative row of the reported groups and
// re-evaluates alerts for each removed entry. It refuses to run without a
// prior Report for the same group set.
func (e *Engine) Remove(ctx context.Context, groups []store.DuplicateGroup) (int, error) {
	logger := zerolog.Ctx(ctx)

	if e.lastReport == nil || e.lastReport.fingerprint != fingerprint(groups) {
		return 0, ErrNoReport
	}
	e.lastReport = nil

	var ids []int64
	for _, g := range groups {
		ids = append(ids, g.DropIDs...)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := e.charges.DeleteEntries(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("remove duplicates: %w", err)
	}

	for _, entry := range deleted {
		if err := e.alerts.RecomputeOnDelete(ctx, entry); err != nil {
			logger.Error().Err(err).Str("owner", entry.OwnerCode).
				Msg("alert recompute failed after duplicate removal")
		}
	}

	logger.Info().Int("removed", len(deleted)).Msg("duplicate rows removed")
	return len(deleted), nil
}

// fingerprint builds an order-independent identity for a group set so a
// removal can be matched against the report that covered it.
func fingerprint(groups []store.DuplicateGroup) string {
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		ids := append([]int64{g.KeepID}, g.DropIDs...)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprint(id)
		}
		keys = append(keys, g.OwnerName+"|"+g.ReferenceDate+"|"+strings.Join(parts, ","))
	}
	sort.Strings(keys)
	return strings.Join(keys, ";")
}
