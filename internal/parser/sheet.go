package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadRows materializes the first sheet of a workbook, or the whole file for
// CSV, as a row/cell grid. Format detection is by content: xlsx files are
// zip archives and start with "PK".
func loadRows(data []byte) ([][]string, error) {
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	if isZip(data) {
		return loadWorkbookRows(data)
	}
	return loadCSVRows(data)
}

func isZip(data []byte) bool {
	return len(data) >= 2 && data[0] == 'P' && data[1] == 'K'
}

func loadWorkbookRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func loadCSVRows(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	return r.ReadAll()
}

// sniffDelimiter picks ';' over ',' based on the first line that contains
// either. Portal CSV exports are semicolon-separated as a rule, and title
// rows above the header often carry no separator at all.
func sniffDelimiter(data []byte) rune {
	for _, line := range strings.Split(string(data), "\n") {
		hasSemicolon := strings.Contains(line, ";")
		hasComma := strings.Contains(line, ",")
		if !hasSemicolon && !hasComma {
			continue
		}
		if hasSemicolon && strings.Count(line, ";") >= strings.Count(line, ",") {
			return ';'
		}
		return ','
	}
	return ','
}
