package consolidate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/copro-tools/coproledger/pkg/models/domain"
)

// ExpectedOwners is the fixed number of distinct owners the portal manages.
// The property has 64 units and the count has never varied; a different
// count means an extraction or layout problem, not a real change.
const ExpectedOwners = 64

// CardinalityError reports a consolidated owner count different from the
// expected total. It is fatal for the run: nothing may be persisted.
type CardinalityError struct {
	Got  int
	Want int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("consolidated owner count %d, expected %d", e.Got, e.Want)
}

// Engine reconciles the two independently fetched record sets into one owner
// set.
type Engine struct {
	expected int
}

func NewEngine() *Engine {
	return &Engine{expected: ExpectedOwners}
}

// Consolidate joins charge rows and lot rows on the owner code. Every owner
// appearing in either input produces exactly one entry: charge-only owners
// get apartment type "na", lot-only owners get zero debit and credit. A
// distinct-owner count different from the expected total fails the whole
// run.
func (e *Engine) Consolidate(ctx context.Context, charges []domain.ChargeRow, lots []domain.LotRow) ([]domain.Owner, error) {
	logger := zerolog.Ctx(ctx)

	type lotInfo struct {
		name   string
		typ    domain.ApartmentType
		number string
	}
	lotsByCode := make(map[string]lotInfo, len(lots))
	for _, lot := range lots {
		if lot.OwnerCode == "" {
			continue
		}
		existing, seen := lotsByCode[lot.OwnerCode]
		// first classified lot wins for owners holding several
		if seen && existing.typ != domain.TypeNA {
			continue
		}
		lotsByCode[lot.OwnerCode] = lotInfo{
			name:   lot.OwnerName,
			typ:    lot.ApartmentType,
			number: lot.LotNumber,
		}
	}

	owners := make([]domain.Owner, 0, len(charges))
	seen := make(map[string]bool, len(charges))

	for _, c := range charges {
		if c.OwnerCode == "" || seen[c.OwnerCode] {
			continue
		}
		seen[c.OwnerCode] = true

		owner := domain.Owner{
			OwnerCode:     c.OwnerCode,
			OwnerName:     c.OwnerName,
			ApartmentType: domain.TypeNA,
			Debit:         c.Debit,
			Credit:        c.Credit,
			ReferenceDate: c.ReferenceDate,
		}
		if info, ok := lotsByCode[c.OwnerCode]; ok {
			owner.ApartmentType = normalizeType(info.typ)
			owner.LotNumber = info.number
			owner.Verified = true
		}
		owners = append(owners, owner)
	}

	referenceDate := ""
	if len(charges) > 0 {
		referenceDate = charges[0].ReferenceDate
	}

	// Owners known only through the lot list still belong in the set; a
	// missing charge line is data about them, not a reason to drop them.
	for _, lot := range lots {
		if lot.OwnerCode == "" || seen[lot.OwnerCode] {
			continue
		}
		seen[lot.OwnerCode] = true
		info := lotsByCode[lot.OwnerCode]
		owners = append(owners, domain.Owner{
			OwnerCode:     lot.OwnerCode,
			OwnerName:     info.name,
			ApartmentType: normalizeType(info.typ),
			LotNumber:     info.number,
			Debit:         decimal.Zero,
			Credit:        decimal.Zero,
			ReferenceDate: referenceDate,
		})
	}

	if len(owners) != e.expected {
		logger.Error().Int("got", len(owners)).Int("want", e.expected).
			Msg("consolidated owner count mismatch")
		return nil, &CardinalityError{Got: len(owners), Want: e.expected}
	}

	logger.Info().Int("owners", len(owners)).Msg("owner set consolidated")
	return owners, nil
}

func normalizeType(t domain.ApartmentType) domain.ApartmentType {
	if t == "" {
		return domain.TypeNA
	}
	return t
}
