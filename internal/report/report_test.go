package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivazen-reconciliation/internal/matching"
	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/report"
)

var generatedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func matchResult(t *testing.T, refs []models.ReferenceRecord, exts []models.ExtractedRecord) *models.ReconciliationResult {
	t.Helper()
	result, err := matching.NewEngine().Match(matching.MatchInput{
		ReferenceRecords: refs,
		ExtractedRecords: exts,
		Type:             models.TypeIVA,
		ToleranceEUR:     amount("0.01"),
	})
	require.NoError(t, err)
	return result
}

func zeroDeltaResult(t *testing.T) *models.ReconciliationResult {
	t.Helper()
	return matchResult(t,
		[]models.ReferenceRecord{{
			RowNumber:         2,
			TaxID:             "123456789",
			DocumentReference: "FT 2024/1",
			Amounts:           models.Amounts{TotalAmount: amount("100.00")},
		}},
		[]models.ExtractedRecord{{
			SourceFileName:    "invoice.pdf",
			TaxID:             "123456789",
			DocumentReference: "FT 2024/1",
			Amounts:           models.Amounts{TotalAmount: amount("100.00")},
		}},
	)
}

func discrepantResult(t *testing.T) *models.ReconciliationResult {
	t.Helper()
	return matchResult(t,
		[]models.ReferenceRecord{
			{
				RowNumber:         2,
				TaxID:             "123456789",
				DocumentReference: "FT 2024/1",
				Amounts:           models.Amounts{TotalAmount: amount("100.00")},
			},
			{
				RowNumber: 3,
				TaxID:     "503244180",
				Amounts:   models.Amounts{TotalAmount: amount("250.00")},
			},
		},
		[]models.ExtractedRecord{
			{
				SourceFileName:    "invoice.pdf",
				TaxID:             "123456789",
				DocumentReference: "FT 2024/1",
				Amounts:           models.Amounts{TotalAmount: amount("100.05")},
			},
			{
				SourceFileName: "stray.pdf",
				TaxID:          "504426290",
				Amounts:        models.Amounts{TotalAmount: amount("12.00")},
			},
		},
	)
}

func TestGenerate(t *testing.T) {
	result := zeroDeltaResult(t)

	r := report.Generate(result, report.Metadata{ClientName: "Empresa Alfa", GeneratedAt: generatedAt})

	assert.Equal(t, "Empresa Alfa", r.ClientName)
	assert.Equal(t, generatedAt, r.GeneratedAt)
	assert.Equal(t, models.TypeIVA, r.Type)
	assert.True(t, r.ZeroDelta)
	assert.Equal(t, result.Summary, r.Summary)
	assert.Len(t, r.Pairs, len(result.Pairs))
}

func TestGenerate_DefaultsGeneratedAt(t *testing.T) {
	r := report.Generate(zeroDeltaResult(t), report.Metadata{ClientName: "Alfa"})
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestExportText_ZeroDelta(t *testing.T) {
	r := report.Generate(zeroDeltaResult(t), report.Metadata{ClientName: "Empresa Alfa", GeneratedAt: generatedAt})
	text := report.ExportText(r)

	assert.Contains(t, text, "RECONCILIATION AUDIT REPORT")
	assert.Contains(t, text, "Client:     Empresa Alfa")
	assert.Contains(t, text, "Generated:  2024-03-01T09:30:00Z")
	assert.Contains(t, text, "Tolerance:  0.01 EUR")
	assert.Contains(t, text, "VERDICT: ZERO DELTA")
	assert.Contains(t, text, "Matched exact:        1")
	assert.Contains(t, text, "EXACT MATCHES (1)")
	assert.Contains(t, text, "DISCREPANT MATCHES (0)")
	assert.Contains(t, text, "invoice.pdf")
}

func TestExportText_NotZeroDelta(t *testing.T) {
	r := report.Generate(discrepantResult(t), report.Metadata{ClientName: "Empresa Alfa", GeneratedAt: generatedAt})
	text := report.ExportText(r)

	assert.Contains(t, text, "VERDICT: NOT ZERO DELTA")
	assert.Contains(t, text, "3 record(s) outside tolerance.")
	assert.Contains(t, text, "DISCREPANT MATCHES (1)")
	assert.Contains(t, text, "UNMATCHED REFERENCE RECORDS (1)")
	assert.Contains(t, text, "UNMATCHED EXTRACTED DOCUMENTS (1)")
	// The 0.05 total delta is listed with an explicit sign.
	assert.Contains(t, text, "+0.05")
	assert.Contains(t, text, "total_amount")
	assert.Contains(t, text, "stray.pdf")
}

func TestExportText_SectionOrder(t *testing.T) {
	r := report.Generate(discrepantResult(t), report.Metadata{ClientName: "Alfa", GeneratedAt: generatedAt})
	text := report.ExportText(r)

	sections := []string{
		"SUMMARY",
		"VERDICT:",
		"DISCREPANT MATCHES",
		"TOLERATED MATCHES",
		"UNMATCHED REFERENCE RECORDS",
		"UNMATCHED EXTRACTED DOCUMENTS",
		"EXACT MATCHES",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(text, s)
		require.GreaterOrEqual(t, idx, 0, "section %q missing", s)
		assert.Greater(t, idx, last, "section %q out of order", s)
		last = idx
	}
}

func TestExportText_Deterministic(t *testing.T) {
	result := discrepantResult(t)
	meta := report.Metadata{ClientName: "Empresa Alfa", GeneratedAt: generatedAt}

	first := report.ExportText(report.Generate(result, meta))
	second := report.ExportText(report.Generate(result, meta))

	assert.Equal(t, first, second)
}

func TestExportText_EmptyBuckets(t *testing.T) {
	r := report.Generate(zeroDeltaResult(t), report.Metadata{ClientName: "Alfa", GeneratedAt: generatedAt})
	text := report.ExportText(r)

	// Four of the five buckets are empty here.
	assert.Equal(t, 4, strings.Count(text, "(none)"))
}

func TestGenerate_DoesNotAliasResultPairs(t *testing.T) {
	result := zeroDeltaResult(t)
	r := report.Generate(result, report.Metadata{ClientName: "Alfa", GeneratedAt: generatedAt})

	r.Pairs[0].Outcome = models.OutcomeMatchedDiscrepant
	assert.Equal(t, models.OutcomeMatchedExact, result.Pairs[0].Outcome)
}
