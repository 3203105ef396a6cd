package repositories

import (
	"database/sql"
	"errors"

	"ivazen-reconciliation/internal/models"
)

type ExtractedRepository interface {
	CreateBatch(tx *sql.Tx, batch *models.ExtractedBatch) error
	InsertRecords(tx *sql.Tx, batchID string, records []models.ExtractedRecord) error
	GetBatch(id string) (*models.ExtractedBatch, error)
	GetRecords(batchID string) ([]models.ExtractedRecord, error)
}

type extractedRepository struct {
	db *sql.DB
}

func NewExtractedRepository(db *sql.DB) ExtractedRepository {
	return &extractedRepository{db: db}
}

func (r *extractedRepository) CreateBatch(tx *sql.Tx, batch *models.ExtractedBatch) error {
	query := `
		INSERT INTO extracted_batches (id, client_name, record_count)
		VALUES (?, ?, ?)
	`
	_, err := tx.Exec(query, batch.ID, batch.ClientName, batch.RecordCount)
	return err
}

func (r *extractedRepository) InsertRecords(tx *sql.Tx, batchID string, records []models.ExtractedRecord) error {
	query := `
		INSERT INTO extracted_records (
			batch_id, source_file_name, confidence, tax_id, name,
			document_date, document_reference,
			total_amount, base_standard, base_intermediate, base_reduced, base_exempt,
			vat_standard, vat_intermediate, vat_reduced,
			gross_amount, withholding_amount, withholding_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, rec := range records {
		var docDate sql.NullTime
		if rec.DocumentDate != nil {
			docDate = sql.NullTime{Time: *rec.DocumentDate, Valid: true}
		}
		_, err := tx.Exec(query,
			batchID,
			rec.SourceFileName,
			rec.Confidence,
			rec.TaxID,
			rec.Name,
			docDate,
			rec.DocumentReference,
			rec.TotalAmount, rec.BaseStandard, rec.BaseIntermediate, rec.BaseReduced, rec.BaseExempt,
			rec.VATStandard, rec.VATIntermediate, rec.VATReduced,
			rec.GrossAmount, rec.WithholdingAmount, rec.WithholdingRate,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *extractedRepository) GetBatch(id string) (*models.ExtractedBatch, error) {
	batch := &models.ExtractedBatch{}
	query := `
		SELECT id, client_name, record_count, created_at
		FROM extracted_batches
		WHERE id = ?
	`
	err := r.db.QueryRow(query, id).Scan(
		&batch.ID,
		&batch.ClientName,
		&batch.RecordCount,
		&batch.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New("extracted batch not found")
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// GetRecords returns the batch in submission order; the engine's tie-break
// on "earliest seen" depends on this ordering.
func (r *extractedRepository) GetRecords(batchID string) ([]models.ExtractedRecord, error) {
	query := `
		SELECT source_file_name, confidence, tax_id, name,
		       document_date, document_reference,
		       total_amount, base_standard, base_intermediate, base_reduced, base_exempt,
		       vat_standard, vat_intermediate, vat_reduced,
		       gross_amount, withholding_amount, withholding_rate
		FROM extracted_records
		WHERE batch_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ExtractedRecord
	for rows.Next() {
		var rec models.ExtractedRecord
		var docDate sql.NullTime
		err := rows.Scan(
			&rec.SourceFileName,
			&rec.Confidence,
			&rec.TaxID,
			&rec.Name,
			&docDate,
			&rec.DocumentReference,
			&rec.TotalAmount, &rec.BaseStandard, &rec.BaseIntermediate, &rec.BaseReduced, &rec.BaseExempt,
			&rec.VATStandard, &rec.VATIntermediate, &rec.VATReduced,
			&rec.GrossAmount, &rec.WithholdingAmount, &rec.WithholdingRate,
		)
		if err != nil {
			return nil, err
		}
		if docDate.Valid {
			d := docDate.Time
			rec.DocumentDate = &d
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
