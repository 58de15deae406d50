package parse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/copro-tools/coproledger/pkg/models/domain"
)

// ErrMissingStructure means an expected structural anchor is absent from the
// document: either the page layout changed or the session was never actually
// authenticated. Retrying does not help.
var ErrMissingStructure = errors.New("expected document structure not found")

// Structural anchors of the charges page.
const (
	selDateAnchor  = `td#lzA1`
	selChargeTable = `table#ctzA1`
)

// chargeHeaderRows is the number of leading structural rows in the charges
// table (title, column headers, legend) that carry no owner data.
const chargeHeaderRows = 3

var dateRe = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`)

// expected column labels, with positional fallback when absent
var chargeColumns = []string{"Code", "Copropriétaire", "Débit", "Crédit"}

// ParseCharges extracts the situation date and the charge rows from the
// balance page. Malformed rows are skipped with a warning; a missing anchor
// fails the whole parse with ErrMissingStructure.
func ParseCharges(ctx context.Context, doc string) (string, []domain.ChargeRow, error) {
	logger := zerolog.Ctx(ctx).With().Str("parser", "charges").Logger()

	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", nil, fmt.Errorf("parse charges document: %w", err)
	}

	date, err := referenceDate(root)
	if err != nil {
		return "", nil, err
	}

	table := root.Find(selChargeTable).First()
	if table.Length() == 0 {
		return "", nil, fmt.Errorf("charge table %s: %w", selChargeTable, ErrMissingStructure)
	}

	indices := columnIndices(table)
	lastIdx := 0
	for _, col := range chargeColumns {
		if indices[col] > lastIdx {
			lastIdx = indices[col]
		}
	}

	var rows []domain.ChargeRow
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i < chargeHeaderRows {
			return
		}
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return strings.TrimSpace(td.Text())
		})
		if len(cells) <= lastIdx {
			logger.Warn().Int("row", i).Int("cells", len(cells)).Msg("skipping short charge row")
			return
		}

		debit, derr := ParseAmount(cells[indices["Débit"]])
		credit, cerr := ParseAmount(cells[indices["Crédit"]])
		if derr != nil || cerr != nil {
			logger.Warn().Int("row", i).AnErr("debit", derr).AnErr("credit", cerr).
				Msg("skipping charge row with unparsable amount")
			return
		}

		rows = append(rows, domain.ChargeRow{
			OwnerCode:     cells[indices["Code"]],
			OwnerName:     cells[indices["Copropriétaire"]],
			Debit:         debit,
			Credit:        credit,
			ReferenceDate: date,
		})
	})

	logger.Info().Str("date", date).Int("rows", len(rows)).Msg("charges parsed")
	return date, rows, nil
}

// referenceDate finds the DD/MM/YYYY situation date inside the date anchor
// and returns it in ISO form.
func referenceDate(root *goquery.Document) (string, error) {
	node := root.Find(selDateAnchor).First()
	if node.Length() == 0 {
		return "", fmt.Errorf("date anchor %s: %w", selDateAnchor, ErrMissingStructure)
	}

	text := normalizeSpace(node.Text())
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("no date in %q: %w", text, ErrMissingStructure)
	}

	t, err := time.Parse("02/01/2006", m[1])
	if err != nil {
		return "", fmt.Errorf("parse situation date %q: %w", m[1], err)
	}
	return t.Format("2006-01-02"), nil
}

// columnIndices maps the expected column labels to cell positions, reading
// the header cells when present and falling back to declaration order.
func columnIndices(table *goquery.Selection) map[string]int {
	headers := table.Find("td.ttA3, td.ttA4, td.ttA5, td.ttA6").Map(
		func(_ int, td *goquery.Selection) string {
			return strings.TrimSpace(td.Text())
		})
	if len(headers) == 0 {
		if first := table.Find("tr").First(); first.Length() > 0 {
			headers = first.Find("td").Map(func(_ int, td *goquery.Selection) string {
				return strings.TrimSpace(td.Text())
			})
		}
	}

	indices := make(map[string]int, len(chargeColumns))
	for idx, h := range headers {
		indices[h] = idx
	}
	for i, col := range chargeColumns {
		if _, ok := indices[col]; !ok {
			indices[col] = i
		}
	}
	return indices
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	for _, ch := range []string{" ", "​", "‌", "‍"} {
		s = strings.ReplaceAll(s, ch, " ")
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
