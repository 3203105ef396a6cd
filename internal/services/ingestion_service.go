package services

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/normalize"
	"ivazen-reconciliation/internal/parser"
	"ivazen-reconciliation/internal/repositories"
)

// IngestionService brings records into the system: reference spreadsheets
// from the tax-authority portal and extracted records from the external
// document extractor. It owns the fallback decision the engine itself must
// not make: when the deterministic parser yields no records, the alternate
// (AI-assisted) parser is tried, if one was wired in.
type IngestionService struct {
	db       *sql.DB
	primary  parser.Parser
	fallback parser.Parser
	refRepo  repositories.ReferenceRepository
	extRepo  repositories.ExtractedRepository
}

func NewIngestionService(
	db *sql.DB,
	primary parser.Parser,
	fallback parser.Parser,
	refRepo repositories.ReferenceRepository,
	extRepo repositories.ExtractedRepository,
) *IngestionService {
	return &IngestionService{
		db:       db,
		primary:  primary,
		fallback: fallback,
		refRepo:  refRepo,
		extRepo:  extRepo,
	}
}

type ReferenceIngestResult struct {
	BatchID      string                    `json:"batch_id"`
	RecordCount  int                       `json:"record_count"`
	Type         models.ReconciliationType `json:"type"`
	Warnings     []string                  `json:"warnings,omitempty"`
	UsedFallback bool                      `json:"used_fallback"`
}

// IngestReferenceSpreadsheet parses an uploaded export and stores the
// resulting batch. A spreadsheet neither parser can read still produces a
// stored batch with zero records and the accumulated warnings; the caller
// sees exactly what an auditor would.
func (s *IngestionService) IngestReferenceSpreadsheet(clientName string, data []byte) (*ReferenceIngestResult, error) {
	parsed, usedFallback, err := s.parseWithFallback(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spreadsheet: %w", err)
	}

	batch := &models.ReferenceBatch{
		ID:           uuid.NewString(),
		ClientName:   clientName,
		Type:         parsed.Type,
		RecordCount:  len(parsed.Records),
		Warnings:     parsed.Warnings,
		UsedFallback: usedFallback,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.refRepo.CreateBatch(tx, batch); err != nil {
		return nil, fmt.Errorf("failed to create reference batch: %w", err)
	}
	if err := s.refRepo.InsertRecords(tx, batch.ID, parsed.Records); err != nil {
		return nil, fmt.Errorf("failed to store reference records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &ReferenceIngestResult{
		BatchID:      batch.ID,
		RecordCount:  batch.RecordCount,
		Type:         batch.Type,
		Warnings:     batch.Warnings,
		UsedFallback: usedFallback,
	}, nil
}

// parseWithFallback runs the deterministic parser first and tries the
// alternate parser only when the first yields zero records. Warnings from
// both attempts are preserved so the batch explains its own provenance.
func (s *IngestionService) parseWithFallback(data []byte) (*parser.ParseResult, bool, error) {
	parsed, err := s.primary.Parse(data)
	if err != nil {
		return nil, false, err
	}
	if len(parsed.Records) > 0 || s.fallback == nil {
		return parsed, false, nil
	}

	alt, err := s.fallback.Parse(data)
	if err != nil {
		// The fallback is best-effort; keep the deterministic result.
		parsed.Warnings = append(parsed.Warnings, fmt.Sprintf("fallback parser failed: %v", err))
		return parsed, false, nil
	}
	alt.Warnings = append(parsed.Warnings, alt.Warnings...)
	return alt, true, nil
}

// ExtractedRecordInput is one record as submitted by the external extractor.
// Monetary fields arrive as JSON numbers or strings; decimal handles both.
type ExtractedRecordInput struct {
	SourceFileName    string          `json:"source_file_name"`
	TaxID             string          `json:"tax_id"`
	Name              string          `json:"name,omitempty"`
	DocumentDate      string          `json:"document_date,omitempty"`
	DocumentReference string          `json:"document_reference,omitempty"`
	Confidence        float64         `json:"confidence"`
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

type ExtractedIngestResult struct {
	BatchID     string   `json:"batch_id"`
	RecordCount int      `json:"record_count"`
	Warnings    []string `json:"warnings,omitempty"`
}

// IngestExtractedRecords stores one submission from the external extractor.
// Records without a source file name are dropped with a warning; everything
// else is kept as-is, including low-confidence extractions, because deciding
// what matches is the engine's job, not ingestion's.
func (s *IngestionService) IngestExtractedRecords(clientName string, inputs []ExtractedRecordInput) (*ExtractedIngestResult, error) {
	result := &ExtractedIngestResult{}

	var records []models.ExtractedRecord
	for i, input := range inputs {
		if input.SourceFileName == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("record %d: missing source file name, dropped", i+1))
			continue
		}
		rec := models.ExtractedRecord{
			SourceFileName:    input.SourceFileName,
			TaxID:             input.TaxID,
			Name:              input.Name,
			DocumentReference: input.DocumentReference,
			Confidence:        input.Confidence,
			Amounts: models.Amounts{
				TotalAmount:       normalize.RoundEUR(input.TotalAmount),
				BaseStandard:      normalize.RoundEUR(input.BaseStandard),
				BaseIntermediate:  normalize.RoundEUR(input.BaseIntermediate),
				BaseReduced:       normalize.RoundEUR(input.BaseReduced),
				BaseExempt:        normalize.RoundEUR(input.BaseExempt),
				VATStandard:       normalize.RoundEUR(input.VATStandard),
				VATIntermediate:   normalize.RoundEUR(input.VATIntermediate),
				VATReduced:        normalize.RoundEUR(input.VATReduced),
				GrossAmount:       normalize.RoundEUR(input.GrossAmount),
				WithholdingAmount: normalize.RoundEUR(input.WithholdingAmount),
				WithholdingRate:   normalize.RoundEUR(input.WithholdingRate),
			},
		}
		if input.DocumentDate != "" {
			if t, err := normalize.ParseDate(input.DocumentDate); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("record %d: unparsable date %q", i+1, input.DocumentDate))
			} else {
				rec.DocumentDate = &t
			}
		}
		records = append(records, rec)
	}

	batch := &models.ExtractedBatch{
		ID:          uuid.NewString(),
		ClientName:  clientName,
		RecordCount: len(records),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.extRepo.CreateBatch(tx, batch); err != nil {
		return nil, fmt.Errorf("failed to create extracted batch: %w", err)
	}
	if err := s.extRepo.InsertRecords(tx, batch.ID, records); err != nil {
		return nil, fmt.Errorf("failed to store extracted records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	result.BatchID = batch.ID
	result.RecordCount = batch.RecordCount
	return result, nil
}

// auditDetails marshals best-effort audit payloads; a marshal failure must
// never block ingestion.
func auditDetails(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
