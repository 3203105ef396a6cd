package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"

	"ivazen-reconciliation/internal/models"
)

type ReferenceRepository interface {
	CreateBatch(tx *sql.Tx, batch *models.ReferenceBatch) error
	InsertRecords(tx *sql.Tx, batchID string, records []models.ReferenceRecord) error
	GetBatch(id string) (*models.ReferenceBatch, error)
	GetRecords(batchID string) ([]models.ReferenceRecord, error)
}

type referenceRepository struct {
	db *sql.DB
}

func NewReferenceRepository(db *sql.DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) CreateBatch(tx *sql.Tx, batch *models.ReferenceBatch) error {
	warnings, err := json.Marshal(batch.Warnings)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reference_batches (
			id, client_name, recon_type, record_count, warnings, used_fallback
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		batch.ID,
		batch.ClientName,
		string(batch.Type),
		batch.RecordCount,
		warnings,
		batch.UsedFallback,
	)
	return err
}

func (r *referenceRepository) InsertRecords(tx *sql.Tx, batchID string, records []models.ReferenceRecord) error {
	query := `
		INSERT INTO reference_records (
			batch_id, row_num, tax_id, tax_id_placeholder, name,
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
			rec.RowNumber,
			rec.TaxID,
			rec.TaxIDPlaceholder,
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

func (r *referenceRepository) GetBatch(id string) (*models.ReferenceBatch, error) {
	batch := &models.ReferenceBatch{}
	var reconType string
	var warnings []byte
	query := `
		SELECT id, client_name, recon_type, record_count, warnings, used_fallback, created_at
		FROM reference_batches
		WHERE id = ?
	`
	err := r.db.QueryRow(query, id).Scan(
		&batch.ID,
		&batch.ClientName,
		&reconType,
		&batch.RecordCount,
		&warnings,
		&batch.UsedFallback,
		&batch.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New("reference batch not found")
	}
	if err != nil {
		return nil, err
	}
	batch.Type = models.ReconciliationType(reconType)
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &batch.Warnings); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func (r *referenceRepository) GetRecords(batchID string) ([]models.ReferenceRecord, error) {
	query := `
		SELECT row_num, tax_id, tax_id_placeholder, name,
		       document_date, document_reference,
		       total_amount, base_standard, base_intermediate, base_reduced, base_exempt,
		       vat_standard, vat_intermediate, vat_reduced,
		       gross_amount, withholding_amount, withholding_rate
		FROM reference_records
		WHERE batch_id = ?
		ORDER BY row_num ASC
	`
	rows, err := r.db.Query(query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ReferenceRecord
	for rows.Next() {
		var rec models.ReferenceRecord
		var docDate sql.NullTime
		err := rows.Scan(
			&rec.RowNumber,
			&rec.TaxID,
			&rec.TaxIDPlaceholder,
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
