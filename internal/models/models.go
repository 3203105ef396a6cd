package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationType selects which monetary fields are authoritative when
// comparing a reference record against an extracted record.
type ReconciliationType string

const (
	// TypeIVA compares VAT bases/amounts and the document total; withholding is ignored.
	TypeIVA ReconciliationType = "iva"
	// TypeModelo10 compares withholding amount/rate and the gross amount; VAT is ignored.
	TypeModelo10 ReconciliationType = "modelo10"
	// TypeBoth compares every monetary field.
	TypeBoth ReconciliationType = "both"
)

// IsValid checks if the reconciliation type is one of the known tags.
func (t ReconciliationType) IsValid() bool {
	return t == TypeIVA || t == TypeModelo10 || t == TypeBoth
}

// Monetary field names, used as delta-map keys and report labels.
const (
	FieldTotalAmount       = "total_amount"
	FieldBaseStandard      = "base_standard"
	FieldBaseIntermediate  = "base_intermediate"
	FieldBaseReduced       = "base_reduced"
	FieldBaseExempt        = "base_exempt"
	FieldVATStandard       = "vat_standard"
	FieldVATIntermediate   = "vat_intermediate"
	FieldVATReduced        = "vat_reduced"
	FieldGrossAmount       = "gross_amount"
	FieldWithholdingAmount = "withholding_amount"
	FieldWithholdingRate   = "withholding_rate"
)

var ivaFields = []string{
	FieldTotalAmount,
	FieldBaseStandard, FieldBaseIntermediate, FieldBaseReduced, FieldBaseExempt,
	FieldVATStandard, FieldVATIntermediate, FieldVATReduced,
}

var modelo10Fields = []string{
	FieldGrossAmount, FieldWithholdingAmount, FieldWithholdingRate,
}

// ComparedFields returns the ordered set of monetary fields that matter for
// this reconciliation type. The order is fixed so delta maps render stably.
func (t ReconciliationType) ComparedFields() []string {
	switch t {
	case TypeModelo10:
		return modelo10Fields
	case TypeBoth:
		fields := make([]string, 0, len(ivaFields)+len(modelo10Fields))
		fields = append(fields, ivaFields...)
		return append(fields, modelo10Fields...)
	default:
		return ivaFields
	}
}

// Amounts groups the monetary fields shared by reference and extracted
// records. An absent cell is stored as zero: the source system does not
// distinguish "not reported" from "reported zero".
type Amounts struct {
	TotalAmount       decimal.Decimal `json:"total_amount"`
	BaseStandard      decimal.Decimal `json:"base_standard"`
	BaseIntermediate  decimal.Decimal `json:"base_intermediate"`
	BaseReduced       decimal.Decimal `json:"base_reduced"`
	BaseExempt        decimal.Decimal `json:"base_exempt"`
	VATStandard       decimal.Decimal `json:"vat_standard"`
	VATIntermediate   decimal.Decimal `json:"vat_intermediate"`
	VATReduced        decimal.Decimal `json:"vat_reduced"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	WithholdingAmount decimal.Decimal `json:"withholding_amount"`
	WithholdingRate   decimal.Decimal `json:"withholding_rate"`
}

// Field returns the named monetary field; unknown names return zero.
func (a Amounts) Field(name string) decimal.Decimal {
	switch name {
	case FieldTotalAmount:
		return a.TotalAmount
	case FieldBaseStandard:
		return a.BaseStandard
	case FieldBaseIntermediate:
		return a.BaseIntermediate
	case FieldBaseReduced:
		return a.BaseReduced
	case FieldBaseExempt:
		return a.BaseExempt
	case FieldVATStandard:
		return a.VATStandard
	case FieldVATIntermediate:
		return a.VATIntermediate
	case FieldVATReduced:
		return a.VATReduced
	case FieldGrossAmount:
		return a.GrossAmount
	case FieldWithholdingAmount:
		return a.WithholdingAmount
	case FieldWithholdingRate:
		return a.WithholdingRate
	}
	return decimal.Decimal{}
}

// SetField assigns the named monetary field; unknown names are ignored.
func (a *Amounts) SetField(name string, value decimal.Decimal) {
	switch name {
	case FieldTotalAmount:
		a.TotalAmount = value
	case FieldBaseStandard:
		a.BaseStandard = value
	case FieldBaseIntermediate:
		a.BaseIntermediate = value
	case FieldBaseReduced:
		a.BaseReduced = value
	case FieldBaseExempt:
		a.BaseExempt = value
	case FieldVATStandard:
		a.VATStandard = value
	case FieldVATIntermediate:
		a.VATIntermediate = value
	case FieldVATReduced:
		a.VATReduced = value
	case FieldGrossAmount:
		a.GrossAmount = value
	case FieldWithholdingAmount:
		a.WithholdingAmount = value
	case FieldWithholdingRate:
		a.WithholdingRate = value
	}
}

// HasAnyValue reports whether at least one monetary field is non-zero.
func (a Amounts) HasAnyValue() bool {
	for _, f := range TypeBoth.ComparedFields() {
		if !a.Field(f).IsZero() {
			return true
		}
	}
	return false
}

// ReferenceRecord is one row from the authoritative tax-authority export,
// treated as ground truth.
type ReferenceRecord struct {
	RowNumber         int        `json:"row_number"`
	TaxID             string     `json:"tax_id"`
	TaxIDPlaceholder  bool       `json:"tax_id_placeholder"`
	Name              string     `json:"name"`
	DocumentDate      *time.Time `json:"document_date,omitempty"`
	DocumentReference string     `json:"document_reference,omitempty"`
	Amounts
}

// ExtractedRecord is one record derived from a single source document by the
// external extractor, treated as a claim to be verified.
type ExtractedRecord struct {
	SourceFileName    string     `json:"source_file_name"`
	TaxID             string     `json:"tax_id"`
	Name              string     `json:"name"`
	DocumentDate      *time.Time `json:"document_date,omitempty"`
	DocumentReference string     `json:"document_reference,omitempty"`
	// Confidence is the extractor's self-reported score (0-100). Advisory
	// only; it never participates in matching.
	Confidence float64 `json:"confidence"`
	Amounts
}

// MatchOutcome classifies a MatchPair.
type MatchOutcome string

const (
	OutcomeMatchedExact      MatchOutcome = "matched-exact"
	OutcomeMatchedTolerated  MatchOutcome = "matched-tolerated"
	OutcomeMatchedDiscrepant MatchOutcome = "matched-discrepant"
	OutcomeUnmatchedRef      MatchOutcome = "unmatched-reference"
	OutcomeUnmatchedExt      MatchOutcome = "unmatched-extracted"
)

// MatchPair associates zero-or-one reference record with zero-or-one
// extracted record. Pairs hold copies of the source records and are computed
// fresh on every match run.
type MatchPair struct {
	Reference *ReferenceRecord           `json:"reference,omitempty"`
	Extracted *ExtractedRecord           `json:"extracted,omitempty"`
	Deltas    map[string]decimal.Decimal `json:"deltas,omitempty"`
	// AbsenceNotes lists compared fields reported on exactly one side of the
	// pair. Populated only when matching runs with StrictAbsence enabled;
	// informational, never affects the outcome.
	AbsenceNotes []string     `json:"absence_notes,omitempty"`
	Outcome      MatchOutcome `json:"outcome"`
}

// Summary holds the aggregate counts of one reconciliation run.
type Summary struct {
	ReferenceCount     int `json:"reference_count"`
	ExtractedCount     int `json:"extracted_count"`
	MatchedExact       int `json:"matched_exact"`
	MatchedTolerated   int `json:"matched_tolerated"`
	MatchedDiscrepant  int `json:"matched_discrepant"`
	UnmatchedReference int `json:"unmatched_reference"`
	UnmatchedExtracted int `json:"unmatched_extracted"`
	OutsideTolerance   int `json:"outside_tolerance"`
}

// ReconciliationResult is the immutable outcome of one match run.
type ReconciliationResult struct {
	Pairs     []MatchPair        `json:"pairs"`
	Summary   Summary            `json:"summary"`
	Type      ReconciliationType `json:"type"`
	Tolerance decimal.Decimal    `json:"tolerance_eur"`
}

// IsZeroDelta reports the audit verdict: every record paired and every pair
// in exact agreement. Tolerated-but-nonzero pairs do not qualify. Recomputed
// from the pairs so it can never drift from them.
func (r *ReconciliationResult) IsZeroDelta() bool {
	for _, p := range r.Pairs {
		if p.Outcome != OutcomeMatchedExact {
			return false
		}
	}
	return true
}

// AuditReport is a pure projection of a ReconciliationResult plus run
// metadata. It never recomputes matching logic.
type AuditReport struct {
	ClientName  string             `json:"client_name"`
	GeneratedAt time.Time          `json:"generated_at"`
	Type        ReconciliationType `json:"type"`
	Tolerance   decimal.Decimal    `json:"tolerance_eur"`
	ZeroDelta   bool               `json:"zero_delta"`
	Summary     Summary            `json:"summary"`
	Pairs       []MatchPair        `json:"pairs"`
}
