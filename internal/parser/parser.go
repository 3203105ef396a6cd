// Package parser turns a tabular spreadsheet export from the tax-authority
// portal into a normalized sequence of reference records. Parsing is
// deterministic and side-effect-free: the same bytes always produce the same
// records and warnings. Data-quality problems degrade into warnings, never
// into errors, so the caller can decide to fall back to an alternate parser.
package parser

import (
	"fmt"
	"strings"

	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/normalize"
)

// DefaultHeaderScanRows is how many leading rows are inspected while looking
// for the header. Portal exports carry at most a few title/filter rows above
// the real header.
const DefaultHeaderScanRows = 10

// ParseResult is the outcome of one parse: the normalized records, the
// row-level warnings collected along the way, and the reconciliation type
// inferred from which columns came back populated.
type ParseResult struct {
	Records  []models.ReferenceRecord
	Warnings []string
	Type     models.ReconciliationType
}

// Parser is the parsing contract. The deterministic ReferenceParser is the
// primary implementation; an AI-assisted fallback implements the same
// interface and is selected by the orchestrator when this one yields no
// records.
type Parser interface {
	Parse(data []byte) (*ParseResult, error)
}

// ReferenceParser is the deterministic spreadsheet parser. The zero value is
// not ready to use; construct it with NewReferenceParser.
type ReferenceParser struct {
	headerScanRows int
}

func NewReferenceParser() *ReferenceParser {
	return &ReferenceParser{headerScanRows: DefaultHeaderScanRows}
}

// NewReferenceParserWithScanRows overrides how deep the header detection
// looks. Values below 1 fall back to the default.
func NewReferenceParserWithScanRows(rows int) *ReferenceParser {
	if rows < 1 {
		rows = DefaultHeaderScanRows
	}
	return &ReferenceParser{headerScanRows: rows}
}

// Identity/monetary column tags. Monetary columns reuse the models field
// names so the column map keys line up with delta-map keys.
const (
	colTaxID  = "tax_id"
	colName   = "name"
	colDate   = "document_date"
	colDocRef = "document_reference"
)

var monetaryColumns = []string{
	models.FieldTotalAmount,
	models.FieldBaseStandard, models.FieldBaseIntermediate,
	models.FieldBaseReduced, models.FieldBaseExempt,
	models.FieldVATStandard, models.FieldVATIntermediate, models.FieldVATReduced,
	models.FieldGrossAmount,
	models.FieldWithholdingAmount, models.FieldWithholdingRate,
}

// headerSynonyms maps folded Portuguese column names (and common
// abbreviations) to column tags. Keys must be in normalize.FoldText form.
var headerSynonyms = map[string]string{
	"nif":                    colTaxID,
	"nipc":                   colTaxID,
	"contribuinte":           colTaxID,
	"n contribuinte":         colTaxID,
	"numero contribuinte":    colTaxID,
	"numero de contribuinte": colTaxID,
	"nif adquirente":         colTaxID,
	"nif do adquirente":      colTaxID,
	"nif emitente":           colTaxID,

	"nome":        colName,
	"designacao":  colName,
	"entidade":    colName,
	"fornecedor":  colName,
	"cliente":     colName,
	"adquirente":  colName,

	"data":                colDate,
	"data documento":      colDate,
	"data do documento":   colDate,
	"data emissao":        colDate,
	"data de emissao":     colDate,

	"documento":        colDocRef,
	"n documento":      colDocRef,
	"num documento":    colDocRef,
	"n do documento":   colDocRef,
	"referencia":       colDocRef,
	"fatura":           colDocRef,
	"n fatura":         colDocRef,
	"doc":              colDocRef,

	"total":           models.FieldTotalAmount,
	"valor total":     models.FieldTotalAmount,
	"total documento": models.FieldTotalAmount,
	"montante":        models.FieldTotalAmount,
	"valor":           models.FieldTotalAmount,

	"base normal":             models.FieldBaseStandard,
	"base taxa normal":        models.FieldBaseStandard,
	"valor tributavel normal": models.FieldBaseStandard,
	"base 23":                 models.FieldBaseStandard,

	"base intermedia":      models.FieldBaseIntermediate,
	"base taxa intermedia": models.FieldBaseIntermediate,
	"base 13":              models.FieldBaseIntermediate,

	"base reduzida":      models.FieldBaseReduced,
	"base taxa reduzida": models.FieldBaseReduced,
	"base 6":             models.FieldBaseReduced,

	"base isenta": models.FieldBaseExempt,
	"isento":      models.FieldBaseExempt,
	"isencao":     models.FieldBaseExempt,

	"iva normal":      models.FieldVATStandard,
	"iva taxa normal": models.FieldVATStandard,
	"iva 23":          models.FieldVATStandard,

	"iva intermedio":      models.FieldVATIntermediate,
	"iva taxa intermedia": models.FieldVATIntermediate,
	"iva 13":              models.FieldVATIntermediate,

	"iva reduzido":      models.FieldVATReduced,
	"iva taxa reduzida": models.FieldVATReduced,
	"iva 6":             models.FieldVATReduced,

	"iliquido":         models.FieldGrossAmount,
	"valor iliquido":   models.FieldGrossAmount,
	"valor bruto":      models.FieldGrossAmount,
	"bruto":            models.FieldGrossAmount,
	"rendimento":       models.FieldGrossAmount,
	"rendimento bruto": models.FieldGrossAmount,

	"retencao":           models.FieldWithholdingAmount,
	"valor retido":       models.FieldWithholdingAmount,
	"retencao na fonte":  models.FieldWithholdingAmount,
	"imposto retido":     models.FieldWithholdingAmount,
	"valor da retencao":  models.FieldWithholdingAmount,

	"taxa retencao":    models.FieldWithholdingRate,
	"taxa de retencao": models.FieldWithholdingRate,
	"taxa":             models.FieldWithholdingRate,
}

// Parse consumes raw spreadsheet bytes (xlsx or CSV, first sheet only) and
// returns the normalized records. It never returns an error for data-quality
// problems; a file it cannot make sense of yields zero records plus a
// warning, which is the signal for the orchestrator to try the fallback.
func (p *ReferenceParser) Parse(data []byte) (*ParseResult, error) {
	result := &ParseResult{Type: models.TypeIVA}

	rows, err := loadRows(data)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unreadable spreadsheet: %v", err))
		return result, nil
	}

	headerIdx, columns, found := p.detectHeader(rows)
	if !found {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("no recognizable header row within the first %d rows", p.headerScanRows))
		return result, nil
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		rowNumber := i + 1 // 1-based position, for warnings
		rec, warnings, ok := convertRow(rows[i], rowNumber, columns)
		result.Warnings = append(result.Warnings, warnings...)
		if ok {
			result.Records = append(result.Records, rec)
		}
	}

	result.Type = inferType(result.Records)
	return result, nil
}

// detectHeader scans the first headerScanRows rows for a row that names a
// tax-ID column plus at least one monetary column.
func (p *ReferenceParser) detectHeader(rows [][]string) (int, map[string]int, bool) {
	limit := p.headerScanRows
	if limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		columns := mapColumns(rows[i])
		if _, ok := columns[colTaxID]; !ok {
			continue
		}
		for _, m := range monetaryColumns {
			if _, ok := columns[m]; ok {
				return i, columns, true
			}
		}
	}
	return 0, nil, false
}

// mapColumns resolves each header cell against the synonym table. The first
// cell claiming a tag wins; later duplicates are ignored.
func mapColumns(row []string) map[string]int {
	columns := make(map[string]int)
	for idx, cell := range row {
		tag, ok := headerSynonyms[normalize.FoldText(cell)]
		if !ok {
			continue
		}
		if _, taken := columns[tag]; !taken {
			columns[tag] = idx
		}
	}
	return columns
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// convertRow maps one data row to a ReferenceRecord. Rows with no tax ID or
// with every monetary cell blank are skipped with a row-numbered warning.
// Unparsable numeric cells warn and count as absent; the row survives.
func convertRow(row []string, rowNumber int, columns map[string]int) (models.ReferenceRecord, []string, bool) {
	var warnings []string

	if isBlankRow(row) {
		return models.ReferenceRecord{}, nil, false
	}

	rec := models.ReferenceRecord{RowNumber: rowNumber}

	rawTaxID := cellAt(row, columns[colTaxID])
	rec.TaxID = normalize.CanonicalTaxID(rawTaxID)
	if rec.TaxID == "" {
		warnings = append(warnings, fmt.Sprintf("row %d: missing tax id, row skipped", rowNumber))
		return rec, warnings, false
	}
	rec.TaxIDPlaceholder = normalize.IsPlaceholderTaxID(rec.TaxID)
	if !rec.TaxIDPlaceholder && !normalize.ValidTaxID(rec.TaxID) {
		warnings = append(warnings, fmt.Sprintf("row %d: tax id %q fails check digit", rowNumber, rec.TaxID))
	}

	if idx, ok := columns[colName]; ok {
		rec.Name = cellAt(row, idx)
	}
	if idx, ok := columns[colDocRef]; ok {
		rec.DocumentReference = cellAt(row, idx)
	}
	if idx, ok := columns[colDate]; ok {
		if raw := cellAt(row, idx); raw != "" {
			if t, err := normalize.ParseDate(raw); err != nil {
				warnings = append(warnings, fmt.Sprintf("row %d: unparsable date %q", rowNumber, raw))
			} else {
				rec.DocumentDate = &t
			}
		}
	}

	anyMonetaryCell := false
	for _, field := range monetaryColumns {
		idx, ok := columns[field]
		if !ok {
			continue
		}
		raw := cellAt(row, idx)
		if raw == "" {
			continue
		}
		anyMonetaryCell = true
		amount, err := normalize.ParseAmount(raw)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: unparsable amount %q in column %q", rowNumber, raw, field))
			continue
		}
		rec.SetField(field, normalize.RoundEUR(amount))
	}

	if !anyMonetaryCell {
		warnings = append(warnings, fmt.Sprintf("row %d: all monetary fields blank, row skipped", rowNumber))
		return rec, warnings, false
	}

	return rec, warnings, true
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// inferType decides the reconciliation type from which bracket columns came
// back populated: VAT brackets mean iva, withholding means modelo10, both
// mean both. An export with neither (totals only) defaults to iva.
func inferType(records []models.ReferenceRecord) models.ReconciliationType {
	hasVAT := false
	hasWithholding := false
	for _, rec := range records {
		if !rec.BaseStandard.IsZero() || !rec.BaseIntermediate.IsZero() ||
			!rec.BaseReduced.IsZero() || !rec.BaseExempt.IsZero() ||
			!rec.VATStandard.IsZero() || !rec.VATIntermediate.IsZero() ||
			!rec.VATReduced.IsZero() {
			hasVAT = true
		}
		if !rec.WithholdingAmount.IsZero() || !rec.WithholdingRate.IsZero() {
			hasWithholding = true
		}
	}
	switch {
	case hasVAT && hasWithholding:
		return models.TypeBoth
	case hasWithholding:
		return models.TypeModelo10
	default:
		return models.TypeIVA
	}
}
