// Package matching pairs reference records against extracted records under
// numeric tolerance and classifies every record into one of four outcomes.
// Matching is a bipartite one-to-one assignment: once a record is consumed it
// leaves the candidate pool. The whole run is a pure function of its input,
// so repeated invocations over the same slices produce bit-identical results.
package matching

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/normalize"
)

// DefaultToleranceEUR is the per-field tolerance applied when the caller does
// not supply one: one cent.
var DefaultToleranceEUR = decimal.New(1, -2)

// ErrInvalidTolerance rejects a negative tolerance outright; it would make
// the zero-delta guarantee meaningless.
var ErrInvalidTolerance = errors.New("tolerance must be zero or positive")

// Settings tunes engine behavior that is deliberately not part of MatchInput.
type Settings struct {
	// StrictAbsence annotates pairs where a compared field is zero on exactly
	// one side. The source system conflates "not reported" with "reported
	// zero"; classification keeps that behavior for compatibility, this flag
	// only surfaces the suspect fields on the pair.
	StrictAbsence bool
}

// MatchInput carries everything one match run needs. The engine never
// mutates the slices.
type MatchInput struct {
	ReferenceRecords []models.ReferenceRecord
	ExtractedRecords []models.ExtractedRecord
	Type             models.ReconciliationType
	ToleranceEUR     decimal.Decimal
}

type Engine struct {
	settings Settings
}

func NewEngine() *Engine {
	return &Engine{}
}

func NewEngineWithSettings(settings Settings) *Engine {
	return &Engine{settings: settings}
}

// extractedKey caches the canonicalized matching keys of one extracted record.
type extractedKey struct {
	taxID  string
	docRef string
	usable bool
}

// Match pairs the two record sets and classifies every record. It fails only
// for programmer-error-class input (invalid tolerance or type); data-quality
// problems land records in the unmatched buckets so a report can always be
// produced.
func (e *Engine) Match(input MatchInput) (*models.ReconciliationResult, error) {
	if input.ToleranceEUR.IsNegative() {
		return nil, ErrInvalidTolerance
	}
	reconType := input.Type
	if reconType == "" {
		reconType = models.TypeIVA
	}
	if !reconType.IsValid() {
		return nil, fmt.Errorf("unknown reconciliation type %q", input.Type)
	}
	tolerance := input.ToleranceEUR

	fields := reconType.ComparedFields()

	extKeys := make([]extractedKey, len(input.ExtractedRecords))
	for i, ext := range input.ExtractedRecords {
		taxID := normalize.CanonicalTaxID(ext.TaxID)
		extKeys[i] = extractedKey{
			taxID:  taxID,
			docRef: normalize.CanonicalDocRef(ext.DocumentReference),
			usable: taxID != "" && !normalize.IsPlaceholderTaxID(taxID),
		}
	}

	assigned := make(map[int]int) // reference index -> extracted index
	consumed := make([]bool, len(input.ExtractedRecords))

	// Pass 1: exact key on tax ID + document reference.
	for i, ref := range input.ReferenceRecords {
		refTaxID := normalize.CanonicalTaxID(ref.TaxID)
		refDocRef := normalize.CanonicalDocRef(ref.DocumentReference)
		if refTaxID == "" || ref.TaxIDPlaceholder || refDocRef == "" {
			continue
		}
		best := -1
		var bestDelta decimal.Decimal
		for j := range input.ExtractedRecords {
			if consumed[j] || !extKeys[j].usable {
				continue
			}
			if extKeys[j].taxID != refTaxID || extKeys[j].docRef != refDocRef {
				continue
			}
			delta := totalFieldDelta(ref.Amounts, input.ExtractedRecords[j].Amounts, fields)
			if best == -1 || delta.LessThan(bestDelta) {
				best = j
				bestDelta = delta
			}
		}
		if best >= 0 {
			assigned[i] = best
			consumed[best] = true
		}
	}

	// Pass 2: tax ID + total amount within tolerance, for records where a
	// document reference is absent on one or both sides.
	for i, ref := range input.ReferenceRecords {
		if _, done := assigned[i]; done {
			continue
		}
		refTaxID := normalize.CanonicalTaxID(ref.TaxID)
		if refTaxID == "" || ref.TaxIDPlaceholder {
			continue
		}
		refDocRef := normalize.CanonicalDocRef(ref.DocumentReference)
		refTotal := normalize.RoundEUR(ref.TotalAmount)
		best := -1
		var bestDelta decimal.Decimal
		for j := range input.ExtractedRecords {
			if consumed[j] || !extKeys[j].usable {
				continue
			}
			if extKeys[j].taxID != refTaxID {
				continue
			}
			if refDocRef != "" && extKeys[j].docRef != "" {
				continue // both sides carry references; only pass 1 may pair them
			}
			gap := normalize.RoundEUR(input.ExtractedRecords[j].TotalAmount).Sub(refTotal).Abs()
			if gap.GreaterThan(tolerance) {
				continue
			}
			delta := totalFieldDelta(ref.Amounts, input.ExtractedRecords[j].Amounts, fields)
			if best == -1 || delta.LessThan(bestDelta) {
				best = j
				bestDelta = delta
			}
		}
		if best >= 0 {
			assigned[i] = best
			consumed[best] = true
		}
	}

	result := &models.ReconciliationResult{
		Type:      reconType,
		Tolerance: tolerance,
	}

	// Reference records in row order, matched or not, then leftover
	// extracted records in discovery order. The ordering is part of the
	// engine contract: identical inputs must render identical reports.
	for i := range input.ReferenceRecords {
		ref := input.ReferenceRecords[i]
		if j, ok := assigned[i]; ok {
			ext := input.ExtractedRecords[j]
			result.Pairs = append(result.Pairs, e.classify(ref, ext, fields, tolerance))
		} else {
			result.Pairs = append(result.Pairs, models.MatchPair{
				Reference: &ref,
				Outcome:   models.OutcomeUnmatchedRef,
			})
		}
	}
	for j := range input.ExtractedRecords {
		if consumed[j] {
			continue
		}
		ext := input.ExtractedRecords[j]
		result.Pairs = append(result.Pairs, models.MatchPair{
			Extracted: &ext,
			Outcome:   models.OutcomeUnmatchedExt,
		})
	}

	result.Summary = summarize(result.Pairs, len(input.ReferenceRecords), len(input.ExtractedRecords))
	return result, nil
}

// classify evaluates a formed pair over the compared field set.
func (e *Engine) classify(ref models.ReferenceRecord, ext models.ExtractedRecord, fields []string, tolerance decimal.Decimal) models.MatchPair {
	pair := models.MatchPair{
		Reference: &ref,
		Extracted: &ext,
		Deltas:    make(map[string]decimal.Decimal, len(fields)),
	}

	allZero := true
	anyOver := false
	for _, field := range fields {
		refVal := normalize.RoundEUR(ref.Field(field))
		extVal := normalize.RoundEUR(ext.Field(field))
		delta := extVal.Sub(refVal)
		pair.Deltas[field] = delta
		if !delta.IsZero() {
			allZero = false
		}
		if delta.Abs().GreaterThan(tolerance) {
			anyOver = true
		}
		if e.settings.StrictAbsence && refVal.IsZero() != extVal.IsZero() {
			pair.AbsenceNotes = append(pair.AbsenceNotes, field)
		}
	}

	switch {
	case anyOver:
		pair.Outcome = models.OutcomeMatchedDiscrepant
	case allZero:
		pair.Outcome = models.OutcomeMatchedExact
	default:
		pair.Outcome = models.OutcomeMatchedTolerated
	}
	return pair
}

// totalFieldDelta is the tie-break metric: the summed absolute delta across
// the compared field set.
func totalFieldDelta(ref, ext models.Amounts, fields []string) decimal.Decimal {
	total := decimal.Decimal{}
	for _, field := range fields {
		total = total.Add(normalize.RoundEUR(ext.Field(field)).Sub(normalize.RoundEUR(ref.Field(field))).Abs())
	}
	return total
}

func summarize(pairs []models.MatchPair, refCount, extCount int) models.Summary {
	s := models.Summary{
		ReferenceCount: refCount,
		ExtractedCount: extCount,
	}
	for _, p := range pairs {
		switch p.Outcome {
		case models.OutcomeMatchedExact:
			s.MatchedExact++
		case models.OutcomeMatchedTolerated:
			s.MatchedTolerated++
		case models.OutcomeMatchedDiscrepant:
			s.MatchedDiscrepant++
		case models.OutcomeUnmatchedRef:
			s.UnmatchedReference++
		case models.OutcomeUnmatchedExt:
			s.UnmatchedExtracted++
		}
	}
	s.OutsideTolerance = s.MatchedDiscrepant + s.UnmatchedReference + s.UnmatchedExtracted
	return s
}
