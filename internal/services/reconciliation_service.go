package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ivazen-reconciliation/internal/config"
	"ivazen-reconciliation/internal/matching"
	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/report"
	"ivazen-reconciliation/internal/repositories"
)

// ReconciliationService is the orchestration boundary around the pure
// engine: it loads the two record sets, runs the match, renders the audit
// report and persists the run. The engine packages stay free of I/O.
type ReconciliationService struct {
	db       *sql.DB
	engine   *matching.Engine
	refRepo  repositories.ReferenceRepository
	extRepo  repositories.ExtractedRepository
	runRepo  repositories.ReconciliationRepository
	defaults config.EngineConfig
}

func NewReconciliationService(
	db *sql.DB,
	refRepo repositories.ReferenceRepository,
	extRepo repositories.ExtractedRepository,
	runRepo repositories.ReconciliationRepository,
	defaults config.EngineConfig,
) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		engine:   matching.NewEngineWithSettings(matching.Settings{StrictAbsence: defaults.StrictAbsence}),
		refRepo:  refRepo,
		extRepo:  extRepo,
		runRepo:  runRepo,
		defaults: defaults,
	}
}

type RunRequest struct {
	ReferenceBatchID string   `json:"reference_batch_id"`
	ExtractedBatchID string   `json:"extracted_batch_id"`
	Type             string   `json:"type,omitempty"`
	ToleranceEUR     *float64 `json:"tolerance_eur,omitempty"`
}

type RunResult struct {
	RunID      string                    `json:"run_id"`
	Status     string                    `json:"status"`
	ZeroDelta  bool                      `json:"zero_delta"`
	Type       models.ReconciliationType `json:"type"`
	Summary    models.Summary            `json:"summary"`
	ReportText string                    `json:"report_text"`
}

// Run executes one reconciliation: reference batch vs extracted batch.
func (s *ReconciliationService) Run(req RunRequest) (*RunResult, error) {
	refBatch, err := s.refRepo.GetBatch(req.ReferenceBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference batch: %w", err)
	}
	refRecords, err := s.refRepo.GetRecords(req.ReferenceBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference records: %w", err)
	}
	extRecords, err := s.extRepo.GetRecords(req.ExtractedBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load extracted records: %w", err)
	}
	if _, err := s.extRepo.GetBatch(req.ExtractedBatchID); err != nil {
		return nil, fmt.Errorf("failed to load extracted batch: %w", err)
	}

	reconType, err := resolveType(req.Type, refBatch.Type)
	if err != nil {
		return nil, err
	}
	tolerance := resolveTolerance(req.ToleranceEUR, s.defaults.ToleranceEUR)

	result, err := s.engine.Match(matching.MatchInput{
		ReferenceRecords: refRecords,
		ExtractedRecords: extRecords,
		Type:             reconType,
		ToleranceEUR:     tolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}

	auditReport := report.Generate(result, report.Metadata{
		ClientName:  refBatch.ClientName,
		GeneratedAt: time.Now().UTC(),
	})
	reportText := report.ExportText(auditReport)

	run := &models.ReconciliationRun{
		ID:               uuid.NewString(),
		ReferenceBatchID: req.ReferenceBatchID,
		ExtractedBatchID: req.ExtractedBatchID,
		Type:             reconType,
		ToleranceEUR:     tolerance.StringFixed(2),
		Status:           runStatus(result),
		ZeroDelta:        auditReport.ZeroDelta,
		Summary:          result.Summary,
		ReportText:       reportText,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.runRepo.CreateRun(tx, run); err != nil {
		return nil, fmt.Errorf("failed to store reconciliation run: %w", err)
	}
	audit := &models.RunAudit{
		RunID:  run.ID,
		Action: models.AuditActionReconciled,
		Details: auditDetails(map[string]interface{}{
			"type":              string(reconType),
			"tolerance_eur":     tolerance.StringFixed(2),
			"zero_delta":        run.ZeroDelta,
			"outside_tolerance": result.Summary.OutsideTolerance,
		}),
	}
	if err := s.runRepo.CreateAuditEntry(tx, audit); err != nil {
		return nil, fmt.Errorf("failed to create audit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &RunResult{
		RunID:      run.ID,
		Status:     run.Status,
		ZeroDelta:  run.ZeroDelta,
		Type:       reconType,
		Summary:    result.Summary,
		ReportText: reportText,
	}, nil
}

func (s *ReconciliationService) GetRun(runID string) (*models.ReconciliationRun, error) {
	return s.runRepo.GetRun(runID)
}

func (s *ReconciliationService) GetReportText(runID string) (string, error) {
	return s.runRepo.GetReportText(runID)
}

// resolveType picks the requested type over the one inferred at parse time.
func resolveType(requested string, inferred models.ReconciliationType) (models.ReconciliationType, error) {
	if requested == "" {
		if inferred.IsValid() {
			return inferred, nil
		}
		return models.TypeIVA, nil
	}
	t := models.ReconciliationType(requested)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown reconciliation type %q", requested)
	}
	return t, nil
}

// resolveTolerance picks the request override over the configured default.
// Validation of the value itself stays in the engine.
func resolveTolerance(requested *float64, configured float64) decimal.Decimal {
	if requested != nil {
		return decimal.NewFromFloat(*requested)
	}
	if configured > 0 {
		return decimal.NewFromFloat(configured)
	}
	return matching.DefaultToleranceEUR
}

func runStatus(result *models.ReconciliationResult) string {
	switch {
	case result.IsZeroDelta():
		return models.RunStatusZeroDelta
	case result.Summary.OutsideTolerance == 0:
		return models.RunStatusTolerated
	default:
		return models.RunStatusDiscrepant
	}
}
