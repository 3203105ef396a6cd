// Package normalize holds the pure value-cleaning helpers shared by the
// reference parser and the matching engine: tax-ID canonicalization, currency
// rounding and flexible amount/date parsing. Everything here is stateless.
package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// placeholderTaxIDs are synthetic identifiers used by the tax authority for
// non-transactional summary rows ("consumidor final"). They are kept on
// parsed records but never used as a matching key.
var placeholderTaxIDs = map[string]bool{
	"999999990": true,
}

// CanonicalTaxID strips whitespace, punctuation and a leading country prefix
// from a tax identifier, leaving only its digits.
func CanonicalTaxID(raw string) string {
	s := strings.TrimSpace(strings.ToUpper(raw))
	s = strings.TrimPrefix(s, "PT")
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidTaxID checks the Portuguese 9-digit check-digit algorithm against an
// already canonicalized tax ID.
func ValidTaxID(id string) bool {
	if len(id) != 9 {
		return false
	}
	sum := 0
	for i := 0; i < 8; i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
		sum += int(id[i]-'0') * (9 - i)
	}
	check := 11 - sum%11
	if check >= 10 {
		check = 0
	}
	return int(id[8]-'0') == check
}

// IsPlaceholderTaxID reports whether a canonicalized tax ID is one of the
// synthetic placeholders used for summary/aggregate rows.
func IsPlaceholderTaxID(id string) bool {
	return placeholderTaxIDs[id]
}

// RoundEUR rounds a monetary value to 2 decimal places, half away from zero.
// Every field comparison in the engine happens after both operands pass
// through this, so float artifacts in upstream extractors cannot manufacture
// discrepancies.
func RoundEUR(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CanonicalDocRef normalizes a free-text document reference into a matching
// key: uppercased with all whitespace removed.
func CanonicalDocRef(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u",
	"ç", "c",
	"º", "", "ª", "", ".", "", "%", "",
)

// FoldText lowercases a header cell, folds Portuguese diacritics and
// collapses runs of whitespace, so synonym lookups are accent- and
// spacing-insensitive.
func FoldText(s string) string {
	folded := accentFolder.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(folded), " ")
}

var amountCleaner = strings.NewReplacer(
	"€", "", "EUR", "", "eur", "",
	" ", "", " ", "", "+", "",
)

// ErrEmptyAmount marks a blank numeric cell; callers treat it as absent
// rather than as a parse warning.
var ErrEmptyAmount = errors.New("empty amount")

// ParseAmount parses a monetary cell tolerating European decimal formatting
// (comma decimal separator, dot or space thousands separators), plain
// formats and currency symbols. Parenthesized values are negative.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, ErrEmptyAmount
	}
	s = amountCleaner.Replace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		// The rightmost separator is the decimal mark.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = normalizeSingleSeparator(s, ",")
	case hasDot:
		s = normalizeSingleSeparator(s, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSingleSeparator decides whether a lone separator kind is a decimal
// mark (1-2 trailing digits, single occurrence) or a thousands separator.
func normalizeSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) == 1 {
		tail := len(s) - strings.LastIndex(s, sep) - 1
		if tail >= 1 && tail <= 2 {
			return strings.Replace(s, sep, ".", 1)
		}
	}
	return strings.ReplaceAll(s, sep, "")
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
}

// ParseDate accepts ISO-8601 and common dd/mm/yyyy forms. Unparsable dates
// return an error so callers treat them as absent, never as epoch zero.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format: " + s)
}
