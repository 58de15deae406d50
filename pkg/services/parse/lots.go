package parse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/copro-tools/coproledger/pkg/models/domain"
)

// The unit list renders as a flat sequence of elements whose ids match this
// pattern: an owner line ("Name (CODE)") followed by that owner's lot lines.
var lotElementID = regexp.MustCompile(`^A17_\d+_\d+$`)

// Lot lines mentioning these words describe shops or gardens, not
// apartments, and are ignored.
var excludedWords = []string{"boutique", "jardin"}

// Every civility must end on a word boundary. Without it the bare "M"
// alternative eats the first letter of the name ("Mme MARTIN" would become
// "me ARTIN").
const civility = `(?:M(?:onsieur)?|Mr|Mrs|Mme|Madame|Mlle|Mademoiselle|Melle|Me)\b\.?`

var (
	civilityRe      = regexp.MustCompile(`(?i)\b` + civility + `(?:\s*(?:ou|et|/|,|&|-)\s*` + civility + `)*`)
	joinWordRe      = regexp.MustCompile(`(?i)\b(?:ou|et)\b`)
	joinPunctRe     = regexp.MustCompile(`[/,&\-]+`)
	leadingPunctRe  = regexp.MustCompile(`^[\s\-–—,:;]+`)
	danglingSpaceRe = regexp.MustCompile(`\s+([:(),])`)

	ownerLineRe   = regexp.MustCompile(`^(.+?)\s*\((\d+[A-Za-z]?)\)\s*$`)
	lotNumberRe   = regexp.MustCompile(`(?i)\bLot\b(?:\s*[:\-])?\s*0*(\d+)\b`)
	lotLineRe     = regexp.MustCompile(`(?i)\bLot\b\s*\d+|\bAppartement\b`)
	aptTypeRe     = regexp.MustCompile(`(?i)\bAppartement\b.*?(\d+)\s*p\b`)
	bareAptTypeRe = regexp.MustCompile(`(?i)(\d+)\s*p\b`)
)

// ParseLots extracts owner/lot associations from the unit-list page. Owners
// with no usable lot line still produce a row, with an empty lot number and
// type. Institutional holders (SCIC, AB HABITAT) are forced to "na"
// regardless of their lots.
func ParseLots(ctx context.Context, doc string) ([]domain.LotRow, error) {
	logger := zerolog.Ctx(ctx).With().Str("parser", "lots").Logger()

	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse lots document: %w", err)
	}

	lines := rawLines(root)
	if len(lines) == 0 {
		return nil, fmt.Errorf("no unit-list elements: %w", ErrMissingStructure)
	}

	rows := assemble(lines)
	logger.Info().Int("lines", len(lines)).Int("rows", len(rows)).Msg("lots parsed")
	return rows, nil
}

// rawLines collects the normalized text of every unit-list element, in
// document order, with excluded lot kinds dropped.
func rawLines(root *goquery.Document) []string {
	var lines []string
	root.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		if !lotElementID.MatchString(id) {
			return
		}
		text := normalizeSpace(sel.Text())
		if text == "" {
			return
		}
		text = stripCivility(text)
		lower := strings.ToLower(text)
		for _, w := range excludedWords {
			if strings.Contains(lower, w) {
				return
			}
		}
		lines = append(lines, text)
	})
	return lines
}

// assemble walks the line sequence attaching lot lines to the owner that
// precedes them.
func assemble(lines []string) []domain.LotRow {
	var rows []domain.LotRow
	var owner *domain.LotRow
	ownerHasLot := false

	flush := func() {
		if owner != nil && !ownerHasLot {
			rows = append(rows, *owner)
		}
	}

	for _, line := range lines {
		if m := ownerLineRe.FindStringSubmatch(line); m != nil {
			flush()
			owner = &domain.LotRow{
				OwnerName:     strings.TrimSpace(m[1]),
				OwnerCode:     m[2],
				ApartmentType: domain.TypeNA,
			}
			ownerHasLot = false
			continue
		}

		if !lotLineRe.MatchString(line) {
			continue
		}
		if owner == nil {
			// lot line with no preceding owner, nothing to attach it to
			continue
		}

		row := *owner
		if !isInstitutional(owner.OwnerName) {
			row.LotNumber, row.ApartmentType = lotInfo(line)
		}
		rows = append(rows, row)
		ownerHasLot = true
	}
	flush()

	return rows
}

// lotInfo extracts the lot number (leading zeros dropped) and apartment type
// from a lot description line.
func lotInfo(line string) (string, domain.ApartmentType) {
	var number string
	if m := lotNumberRe.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			number = strconv.Itoa(n)
		} else {
			number = m[1]
		}
	}

	typ := domain.TypeNA
	m := aptTypeRe.FindStringSubmatch(line)
	if m == nil {
		m = bareAptTypeRe.FindStringSubmatch(line)
	}
	if m != nil {
		typ = domain.ApartmentType(m[1] + "p")
	}
	return number, typ
}

// isInstitutional reports whether the owner is a housing cooperative rather
// than an individual; their lots are not classified.
func isInstitutional(name string) bool {
	u := strings.ToUpper(name)
	return strings.Contains(u, "SCIC") ||
		strings.Contains(u, "AB HABITAT") ||
		strings.Contains(u, "AB-HABITAT")
}

// stripCivility removes civility prefixes (M., Mme, Mlle, ...) and the
// leftover joining punctuation from an owner line.
func stripCivility(s string) string {
	out := civilityRe.ReplaceAllString(s, "")
	out = joinWordRe.ReplaceAllString(out, "")
	out = joinPunctRe.ReplaceAllString(out, " ")
	out = leadingPunctRe.ReplaceAllString(out, "")
	out = danglingSpaceRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(strings.Join(strings.Fields(out), " "))
}
