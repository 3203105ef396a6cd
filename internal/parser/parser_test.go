package parser_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ivazen-reconciliation/internal/models"
	"ivazen-reconciliation/internal/parser"
)

func parseCSV(t *testing.T, lines ...string) *parser.ParseResult {
	t.Helper()
	p := parser.NewReferenceParser()
	result, err := p.Parse([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestParse_IVAExport(t *testing.T) {
	result := parseCSV(t,
		"NIF;Nome;Data;Documento;Total;Base Normal;IVA Normal",
		"123456789;Empresa Alfa Lda;31/01/2024;FT 2024/1;123,00;100,00;23,00",
		"503244180;Beta Unipessoal;2024-02-05;FT 2024/2;61,50;50,00;11,50",
	)

	require.Len(t, result.Records, 2)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, models.TypeIVA, result.Type)

	first := result.Records[0]
	assert.Equal(t, 2, first.RowNumber)
	assert.Equal(t, "123456789", first.TaxID)
	assert.Equal(t, "Empresa Alfa Lda", first.Name)
	assert.Equal(t, "FT 2024/1", first.DocumentReference)
	require.NotNil(t, first.DocumentDate)
	assert.True(t, first.DocumentDate.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "123.00", first.TotalAmount.StringFixed(2))
	assert.Equal(t, "100.00", first.BaseStandard.StringFixed(2))
	assert.Equal(t, "23.00", first.VATStandard.StringFixed(2))

	assert.Equal(t, 3, result.Records[1].RowNumber)
}

func TestParse_Modelo10Export(t *testing.T) {
	result := parseCSV(t,
		"NIF;Nome;Rendimento;Retenção;Taxa",
		"123456789;Joana Silva;1000,00;250,00;25",
	)

	require.Len(t, result.Records, 1)
	assert.Equal(t, models.TypeModelo10, result.Type)
	rec := result.Records[0]
	assert.Equal(t, "1000.00", rec.GrossAmount.StringFixed(2))
	assert.Equal(t, "250.00", rec.WithholdingAmount.StringFixed(2))
	assert.Equal(t, "25.00", rec.WithholdingRate.StringFixed(2))
}

func TestParse_MixedColumnsInferBoth(t *testing.T) {
	result := parseCSV(t,
		"NIF;Total;IVA Normal;Retenção",
		"123456789;123,00;23,00;10,00",
	)

	require.Len(t, result.Records, 1)
	assert.Equal(t, models.TypeBoth, result.Type)
}

func TestParse_TotalsOnlyDefaultsToIVA(t *testing.T) {
	result := parseCSV(t,
		"NIF;Total",
		"123456789;99,90",
	)

	require.Len(t, result.Records, 1)
	assert.Equal(t, models.TypeIVA, result.Type)
}

func TestParse_HeaderBelowTitleRows(t *testing.T) {
	result := parseCSV(t,
		"Portal das Finanças - Extrato de Faturas",
		"Período: 2024-01",
		"NIF;Nome;Total",
		"123456789;Alfa;50,00",
	)

	require.Len(t, result.Records, 1)
	assert.Equal(t, 4, result.Records[0].RowNumber)
}

func TestParse_NoRecognizableHeader(t *testing.T) {
	result := parseCSV(t,
		"coluna1;coluna2;coluna3",
		"a;b;c",
	)

	assert.Empty(t, result.Records)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no recognizable header")
	assert.Equal(t, models.TypeIVA, result.Type)
}

func TestParse_EmptyFile(t *testing.T) {
	p := parser.NewReferenceParser()
	result, err := p.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unreadable spreadsheet")
}

func TestParse_RowWithoutTaxIDIsSkipped(t *testing.T) {
	result := parseCSV(t,
		"NIF;Nome;Total",
		"123456789;Alfa;50,00",
		";Beta;70,00",
		"503244180;Gama;30,00",
	)

	require.Len(t, result.Records, 2)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "row 3")
	assert.Contains(t, result.Warnings[0], "missing tax id")
	assert.Equal(t, []int{2, 4}, []int{result.Records[0].RowNumber, result.Records[1].RowNumber})
}

func TestParse_BlankRowsSkippedSilently(t *testing.T) {
	result := parseCSV(t,
		"NIF;Total",
		"123456789;50,00",
		";",
		"503244180;30,00",
	)

	require.Len(t, result.Records, 2)
	assert.Empty(t, result.Warnings)
}

func TestParse_InvalidCheckDigitWarnsButKeepsRow(t *testing.T) {
	result := parseCSV(t,
		"NIF;Total",
		"123456780;50,00",
	)

	require.Len(t, result.Records, 1)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "check digit")
}

func TestParse_PlaceholderTaxIDFlagged(t *testing.T) {
	result := parseCSV(t,
		"NIF;Total",
		"999999990;50,00",
	)

	require.Len(t, result.Records, 1)
	assert.True(t, result.Records[0].TaxIDPlaceholder)
	assert.Empty(t, result.Warnings)
}

func TestParse_UnparsableAmountWarnsAndCountsAsAbsent(t *testing.T) {
	result := parseCSV(t,
		"NIF;Total;Base Normal",
		"123456789;isento;100,00",
	)

	require.Len(t, result.Records, 1)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unparsable amount")
	assert.True(t, result.Records[0].TotalAmount.IsZero())
	assert.Equal(t, "100.00", result.Records[0].BaseStandard.StringFixed(2))
}

func TestParse_AllMonetaryCellsBlankSkipsRow(t *testing.T) {
	result := parseCSV(t,
		"NIF;Nome;Total",
		"123456789;Alfa;",
	)

	assert.Empty(t, result.Records)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "monetary fields blank")
}

func TestParse_UnparsableDateWarnsAndLeavesDateAbsent(t *testing.T) {
	result := parseCSV(t,
		"NIF;Data;Total",
		"123456789;janeiro;50,00",
	)

	require.Len(t, result.Records, 1)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unparsable date")
	assert.Nil(t, result.Records[0].DocumentDate)
}

func TestParse_CommaDelimitedCSV(t *testing.T) {
	result := parseCSV(t,
		"NIF,Nome,Total",
		"123456789,Alfa,\"1.234,56\"",
	)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "1234.56", result.Records[0].TotalAmount.StringFixed(2))
}

func TestParse_HeaderScanDepthIsConfigurable(t *testing.T) {
	lines := make([]string, 0, 6)
	lines = append(lines, "titulo", "titulo", "titulo", "titulo")
	lines = append(lines, "NIF;Total", "123456789;10,00")

	p := parser.NewReferenceParserWithScanRows(2)
	result, err := p.Parse([]byte(strings.Join(lines, "\n")))
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "first 2 rows")
}

func TestParse_Workbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"NIF", "Nome", "Documento", "Total", "IVA Normal"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"123456789", "Empresa Alfa", "FT 2024/1", "123,00", "23,00"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	p := parser.NewReferenceParser()
	result, err := p.Parse(buf.Bytes())
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Warnings)
	rec := result.Records[0]
	assert.Equal(t, "123456789", rec.TaxID)
	assert.Equal(t, "FT 2024/1", rec.DocumentReference)
	assert.Equal(t, "123.00", rec.TotalAmount.StringFixed(2))
	assert.Equal(t, "23.00", rec.VATStandard.StringFixed(2))
	assert.Equal(t, models.TypeIVA, result.Type)
}

func TestParse_Deterministic(t *testing.T) {
	data := []byte(strings.Join([]string{
		"NIF;Nome;Total;Retenção",
		"123456789;Alfa;100,00;25,00",
		";Beta;70,00;",
	}, "\n"))

	p := parser.NewReferenceParser()
	first, err := p.Parse(data)
	require.NoError(t, err)
	second, err := p.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
