// Package report assembles the audit report for a reconciliation run and
// renders it to the plain-text artifact handed to the auditor. Rendering is a
// pure reformatting of the match result: section order, bucket order and
// number formatting are fixed so identical runs export identical bytes.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ivazen-reconciliation/internal/models"
)

// Metadata is the run context stamped onto the report header.
type Metadata struct {
	ClientName  string
	GeneratedAt time.Time
}

// Generate projects a match result into an AuditReport. It only reformats;
// matching logic is never recomputed here.
func Generate(result *models.ReconciliationResult, meta Metadata) *models.AuditReport {
	generatedAt := meta.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	pairs := make([]models.MatchPair, len(result.Pairs))
	copy(pairs, result.Pairs)

	return &models.AuditReport{
		ClientName:  meta.ClientName,
		GeneratedAt: generatedAt,
		Type:        result.Type,
		Tolerance:   result.Tolerance,
		ZeroDelta:   result.IsZeroDelta(),
		Summary:     result.Summary,
		Pairs:       pairs,
	}
}

const rule = "----------------------------------------------------------------"

// ExportText renders the report in its export format: header, summary
// counts, zero-delta verdict, then one listing per outcome bucket. Records
// keep their row/discovery order inside each bucket.
func ExportText(r *models.AuditReport) string {
	var b strings.Builder

	b.WriteString("================================================================\n")
	b.WriteString("RECONCILIATION AUDIT REPORT\n")
	b.WriteString("================================================================\n")
	fmt.Fprintf(&b, "Client:     %s\n", r.ClientName)
	fmt.Fprintf(&b, "Generated:  %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Type:       %s\n", r.Type)
	fmt.Fprintf(&b, "Tolerance:  %s EUR\n", r.Tolerance.StringFixed(2))
	b.WriteString("\n")

	b.WriteString("SUMMARY\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Reference records:    %d\n", r.Summary.ReferenceCount)
	fmt.Fprintf(&b, "Extracted records:    %d\n", r.Summary.ExtractedCount)
	fmt.Fprintf(&b, "Matched exact:        %d\n", r.Summary.MatchedExact)
	fmt.Fprintf(&b, "Matched tolerated:    %d\n", r.Summary.MatchedTolerated)
	fmt.Fprintf(&b, "Matched discrepant:   %d\n", r.Summary.MatchedDiscrepant)
	fmt.Fprintf(&b, "Unmatched reference:  %d\n", r.Summary.UnmatchedReference)
	fmt.Fprintf(&b, "Unmatched extracted:  %d\n", r.Summary.UnmatchedExtracted)
	fmt.Fprintf(&b, "Outside tolerance:    %d\n", r.Summary.OutsideTolerance)
	b.WriteString("\n")

	if r.ZeroDelta {
		b.WriteString("VERDICT: ZERO DELTA\n")
		b.WriteString("Every reference record has an exact extracted counterpart.\n")
	} else {
		b.WriteString("VERDICT: NOT ZERO DELTA\n")
		fmt.Fprintf(&b, "%d record(s) outside tolerance.\n", r.Summary.OutsideTolerance)
	}
	b.WriteString("\n")

	writeBucket(&b, r, "DISCREPANT MATCHES", models.OutcomeMatchedDiscrepant)
	writeBucket(&b, r, "TOLERATED MATCHES", models.OutcomeMatchedTolerated)
	writeBucket(&b, r, "UNMATCHED REFERENCE RECORDS", models.OutcomeUnmatchedRef)
	writeBucket(&b, r, "UNMATCHED EXTRACTED DOCUMENTS", models.OutcomeUnmatchedExt)
	writeBucket(&b, r, "EXACT MATCHES", models.OutcomeMatchedExact)

	return b.String()
}

func writeBucket(b *strings.Builder, r *models.AuditReport, title string, outcome models.MatchOutcome) {
	var pairs []models.MatchPair
	for _, p := range r.Pairs {
		if p.Outcome == outcome {
			pairs = append(pairs, p)
		}
	}

	fmt.Fprintf(b, "%s (%d)\n", title, len(pairs))
	b.WriteString(rule + "\n")
	if len(pairs) == 0 {
		b.WriteString("(none)\n\n")
		return
	}
	for _, p := range pairs {
		writePairLine(b, r.Type, p)
	}
	b.WriteString("\n")
}

func writePairLine(b *strings.Builder, reconType models.ReconciliationType, p models.MatchPair) {
	switch {
	case p.Reference != nil && p.Extracted != nil:
		fmt.Fprintf(b, "row %-4d NIF %-9s %-15s total %s | %s\n",
			p.Reference.RowNumber,
			p.Reference.TaxID,
			orDash(p.Reference.DocumentReference),
			p.Reference.TotalAmount.StringFixed(2),
			p.Extracted.SourceFileName)
		writeDeltas(b, reconType, p)
	case p.Reference != nil:
		fmt.Fprintf(b, "row %-4d NIF %-9s %-15s total %s\n",
			p.Reference.RowNumber,
			p.Reference.TaxID,
			orDash(p.Reference.DocumentReference),
			p.Reference.TotalAmount.StringFixed(2))
	case p.Extracted != nil:
		fmt.Fprintf(b, "%s NIF %-9s %-15s total %s\n",
			p.Extracted.SourceFileName,
			orDash(p.Extracted.TaxID),
			orDash(p.Extracted.DocumentReference),
			p.Extracted.TotalAmount.StringFixed(2))
	}
}

// writeDeltas prints the non-zero per-field deltas of a matched pair in the
// fixed compared-field order for the active type.
func writeDeltas(b *strings.Builder, reconType models.ReconciliationType, p models.MatchPair) {
	if p.Outcome == models.OutcomeMatchedExact {
		return
	}
	for _, field := range reconType.ComparedFields() {
		delta, ok := p.Deltas[field]
		if !ok || delta.IsZero() {
			continue
		}
		fmt.Fprintf(b, "         delta %-20s %s\n", field, signedFixed(delta))
	}
	for _, field := range p.AbsenceNotes {
		fmt.Fprintf(b, "         note  %-20s reported on one side only\n", field)
	}
}

func signedFixed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
