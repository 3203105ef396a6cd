package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ivazen-reconciliation/internal/matching"
	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/parser"
)

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(data []byte) (*parser.ParseResult, error) {
	args := m.Called(data)
	if res := args.Get(0); res != nil {
		return res.(*parser.ParseResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func record(row int) models.ReferenceRecord {
	return models.ReferenceRecord{
		RowNumber: row,
		TaxID:     "123456789",
		Amounts:   models.Amounts{TotalAmount: decimal.RequireFromString("10.00")},
	}
}

func TestParseWithFallback_PrimaryHasRecords(t *testing.T) {
	primary := new(mockParser)
	fallback := new(mockParser)
	primary.On("Parse", mock.Anything).Return(&parser.ParseResult{
		Records: []models.ReferenceRecord{record(2)},
		Type:    models.TypeIVA,
	}, nil)

	svc := NewIngestionService(nil, primary, fallback, nil, nil)
	parsed, usedFallback, err := svc.parseWithFallback([]byte("data"))

	require.NoError(t, err)
	assert.False(t, usedFallback)
	assert.Len(t, parsed.Records, 1)
	fallback.AssertNotCalled(t, "Parse", mock.Anything)
}

func TestParseWithFallback_NoFallbackWired(t *testing.T) {
	primary := new(mockParser)
	primary.On("Parse", mock.Anything).Return(&parser.ParseResult{
		Warnings: []string{"no recognizable header row within the first 10 rows"},
		Type:     models.TypeIVA,
	}, nil)

	svc := NewIngestionService(nil, primary, nil, nil, nil)
	parsed, usedFallback, err := svc.parseWithFallback([]byte("data"))

	require.NoError(t, err)
	assert.False(t, usedFallback)
	assert.Empty(t, parsed.Records)
	assert.Len(t, parsed.Warnings, 1)
}

func TestParseWithFallback_FallbackUsedOnZeroRecords(t *testing.T) {
	primary := new(mockParser)
	fallback := new(mockParser)
	primary.On("Parse", mock.Anything).Return(&parser.ParseResult{
		Warnings: []string{"no recognizable header row within the first 10 rows"},
		Type:     models.TypeIVA,
	}, nil)
	fallback.On("Parse", mock.Anything).Return(&parser.ParseResult{
		Records:  []models.ReferenceRecord{record(2)},
		Warnings: []string{"low extraction confidence on row 2"},
		Type:     models.TypeModelo10,
	}, nil)

	svc := NewIngestionService(nil, primary, fallback, nil, nil)
	parsed, usedFallback, err := svc.parseWithFallback([]byte("data"))

	require.NoError(t, err)
	assert.True(t, usedFallback)
	assert.Len(t, parsed.Records, 1)
	assert.Equal(t, models.TypeModelo10, parsed.Type)
	// Warnings from both attempts survive, primary's first.
	require.Len(t, parsed.Warnings, 2)
	assert.Contains(t, parsed.Warnings[0], "no recognizable header")
	assert.Contains(t, parsed.Warnings[1], "low extraction confidence")
}

func TestParseWithFallback_FallbackErrorKeepsPrimaryResult(t *testing.T) {
	primary := new(mockParser)
	fallback := new(mockParser)
	primary.On("Parse", mock.Anything).Return(&parser.ParseResult{
		Type: models.TypeIVA,
	}, nil)
	fallback.On("Parse", mock.Anything).Return(nil, errors.New("extractor unavailable"))

	svc := NewIngestionService(nil, primary, fallback, nil, nil)
	parsed, usedFallback, err := svc.parseWithFallback([]byte("data"))

	require.NoError(t, err)
	assert.False(t, usedFallback)
	assert.Empty(t, parsed.Records)
	require.Len(t, parsed.Warnings, 1)
	assert.Contains(t, parsed.Warnings[0], "fallback parser failed")
}

func TestParseWithFallback_PrimaryError(t *testing.T) {
	primary := new(mockParser)
	primary.On("Parse", mock.Anything).Return(nil, errors.New("boom"))

	svc := NewIngestionService(nil, primary, nil, nil, nil)
	_, _, err := svc.parseWithFallback([]byte("data"))

	assert.Error(t, err)
}

func TestResolveType(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		inferred  models.ReconciliationType
		expected  models.ReconciliationType
		wantErr   bool
	}{
		{"explicit request wins", "modelo10", models.TypeIVA, models.TypeModelo10, false},
		{"falls back to inferred", "", models.TypeModelo10, models.TypeModelo10, false},
		{"defaults to iva", "", models.ReconciliationType(""), models.TypeIVA, false},
		{"unknown request errors", "vat", models.TypeIVA, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveType(tt.requested, tt.inferred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveTolerance(t *testing.T) {
	override := 0.05

	t.Run("request override wins", func(t *testing.T) {
		got := resolveTolerance(&override, 0.01)
		assert.Equal(t, "0.05", got.StringFixed(2))
	})

	t.Run("configured default", func(t *testing.T) {
		got := resolveTolerance(nil, 0.02)
		assert.Equal(t, "0.02", got.StringFixed(2))
	})

	t.Run("built-in default", func(t *testing.T) {
		got := resolveTolerance(nil, 0)
		assert.True(t, got.Equal(matching.DefaultToleranceEUR))
	})

	t.Run("zero override passes through for engine validation", func(t *testing.T) {
		zero := 0.0
		got := resolveTolerance(&zero, 0.01)
		assert.True(t, got.IsZero())
	})
}

func TestRunStatus(t *testing.T) {
	exact := models.MatchPair{Outcome: models.OutcomeMatchedExact}
	tolerated := models.MatchPair{Outcome: models.OutcomeMatchedTolerated}
	discrepant := models.MatchPair{Outcome: models.OutcomeMatchedDiscrepant}

	tests := []struct {
		name     string
		result   *models.ReconciliationResult
		expected string
	}{
		{
			"all exact",
			&models.ReconciliationResult{Pairs: []models.MatchPair{exact}},
			models.RunStatusZeroDelta,
		},
		{
			"tolerated only",
			&models.ReconciliationResult{Pairs: []models.MatchPair{exact, tolerated}},
			models.RunStatusTolerated,
		},
		{
			"discrepant",
			&models.ReconciliationResult{
				Pairs:   []models.MatchPair{discrepant},
				Summary: models.Summary{OutsideTolerance: 1},
			},
			models.RunStatusDiscrepant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, runStatus(tt.result))
		})
	}
}

func TestAuditDetails(t *testing.T) {
	details := auditDetails(map[string]interface{}{"zero_delta": true})
	assert.JSONEq(t, `{"zero_delta": true}`, string(details))

	// Unmarshalable payloads degrade to an empty object instead of failing.
	details = auditDetails(func() {})
	assert.Equal(t, `{}`, string(details))
}
