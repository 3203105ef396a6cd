package models

import (
	"encoding/json"
	"time"
)

// ReferenceBatch is one stored upload of an authoritative export.
type ReferenceBatch struct {
	ID           string             `db:"id" json:"id"`
	ClientName   string             `db:"client_name" json:"client_name"`
	Type         ReconciliationType `db:"recon_type" json:"recon_type"`
	RecordCount  int                `db:"record_count" json:"record_count"`
	Warnings     []string           `db:"warnings" json:"warnings,omitempty"`
	UsedFallback bool               `db:"used_fallback" json:"used_fallback"`
	CreatedAt    time.Time          `db:"created_at" json:"-"`
}

// ExtractedBatch is one stored submission from the external extractor.
type ExtractedBatch struct {
	ID          string    `db:"id" json:"id"`
	ClientName  string    `db:"client_name" json:"client_name"`
	RecordCount int       `db:"record_count" json:"record_count"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// ReconciliationRun records one execution of the matching engine against a
// reference batch and an extracted batch, together with the rendered report.
type ReconciliationRun struct {
	ID               string             `db:"id" json:"id"`
	ReferenceBatchID string             `db:"reference_batch_id" json:"reference_batch_id"`
	ExtractedBatchID string             `db:"extracted_batch_id" json:"extracted_batch_id"`
	Type             ReconciliationType `db:"recon_type" json:"recon_type"`
	ToleranceEUR     string             `db:"tolerance_eur" json:"tolerance_eur"`
	Status           string             `db:"status" json:"status"`
	ZeroDelta        bool               `db:"zero_delta" json:"zero_delta"`
	Summary          Summary            `db:"summary" json:"summary"`
	ReportText       string             `db:"report_text" json:"-"`
	CreatedAt        time.Time          `db:"created_at" json:"-"`
	UpdatedAt        time.Time          `db:"updated_at" json:"-"`
}

// RunAudit is an audit-trail entry attached to a reconciliation run.
type RunAudit struct {
	ID        int64           `db:"id" json:"id"`
	RunID     string          `db:"run_id" json:"run_id"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}

// ReconciliationRun status constants
const (
	RunStatusZeroDelta  = "zero_delta"
	RunStatusTolerated  = "within_tolerance"
	RunStatusDiscrepant = "discrepant"
)

// AuditAction constants
const (
	AuditActionReconciled = "reconciled"
)
