package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"

	"ivazen-reconciliation/internal/models"
)

type ReconciliationRepository interface {
	CreateRun(tx *sql.Tx, run *models.ReconciliationRun) error
	GetRun(id string) (*models.ReconciliationRun, error)
	GetReportText(id string) (string, error)
	CreateAuditEntry(tx *sql.Tx, audit *models.RunAudit) error
}

type reconciliationRepository struct {
	db *sql.DB
}

func NewReconciliationRepository(db *sql.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) CreateRun(tx *sql.Tx, run *models.ReconciliationRun) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reconciliation_runs (
			id, reference_batch_id, extracted_batch_id, recon_type,
			tolerance_eur, status, zero_delta, summary, report_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		run.ID,
		run.ReferenceBatchID,
		run.ExtractedBatchID,
		string(run.Type),
		run.ToleranceEUR,
		run.Status,
		run.ZeroDelta,
		summary,
		run.ReportText,
	)
	return err
}

func (r *reconciliationRepository) GetRun(id string) (*models.ReconciliationRun, error) {
	run := &models.ReconciliationRun{}
	var reconType string
	var summary []byte
	query := `
		SELECT id, reference_batch_id, extracted_batch_id, recon_type,
		       tolerance_eur, status, zero_delta, summary, created_at, updated_at
		FROM reconciliation_runs
		WHERE id = ?
	`
	err := r.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.ReferenceBatchID,
		&run.ExtractedBatchID,
		&reconType,
		&run.ToleranceEUR,
		&run.Status,
		&run.ZeroDelta,
		&summary,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New("reconciliation run not found")
	}
	if err != nil {
		return nil, err
	}
	run.Type = models.ReconciliationType(reconType)
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func (r *reconciliationRepository) GetReportText(id string) (string, error) {
	var text string
	query := `SELECT report_text FROM reconciliation_runs WHERE id = ?`
	err := r.db.QueryRow(query, id).Scan(&text)
	if err == sql.ErrNoRows {
		return "", errors.New("reconciliation run not found")
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *reconciliationRepository) CreateAuditEntry(tx *sql.Tx, audit *models.RunAudit) error {
	query := `
		INSERT INTO run_audit (run_id, action, details)
		VALUES (?, ?, ?)
	`
	result, err := tx.Exec(query, audit.RunID, audit.Action, audit.Details)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	audit.ID = id
	return nil
}
