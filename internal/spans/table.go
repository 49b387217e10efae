package spans

import (
	"fmt"
	"strings"

	"github.com/ternarybob/indicium/internal/models"
)

// Table partitioning defaults shared by the CSV and Excel generators
const (
	DefaultRowsPerSpan = 25
	MinRowsPerSpan     = 5
	MaxRowsPerSpan     = 50
)

// CSVSpanGenerator partitions table rows into contiguous row-range spans
type CSVSpanGenerator struct {
	RowsPerSpan    int
	MinRowsPerSpan int
	MaxRowsPerSpan int
}

// NewCSVSpanGenerator creates a CSV span generator with default sizing
func NewCSVSpanGenerator() *CSVSpanGenerator {
	return &CSVSpanGenerator{
		RowsPerSpan:    DefaultRowsPerSpan,
		MinRowsPerSpan: MinRowsPerSpan,
		MaxRowsPerSpan: MaxRowsPerSpan,
	}
}

func (g *CSVSpanGenerator) Name() string { return "csv" }

func (g *CSVSpanGenerator) SupportedContentTypes() []string {
	return []string{"text/csv", "text/comma-separated-values", "application/csv"}
}

func (g *CSVSpanGenerator) CanHandle(contentType string) bool {
	return matchesContentType(g.SupportedContentTypes(), contentType)
}

func (g *CSVSpanGenerator) GenerateSpans(artifact *models.ExtractionArtifact) []models.SpanData {
	var spans []models.SpanData

	for tableIdx, table := range artifact.Tables {
		totalRows := len(table.Rows)
		if totalRows == 0 {
			continue
		}
		totalCols := tableColumnCount(&table)

		for rowStart := 0; rowStart < totalRows; {
			rowEnd := nextRowEnd(rowStart, totalRows, g.RowsPerSpan, g.MinRowsPerSpan)

			text := renderTableSpanText(table.Headers, table.Rows[rowStart:rowEnd])
			markedIdx := 0
			if len(artifact.Tables) > 1 {
				markedIdx = tableIdx
			}
			locator := models.CSVLocator(rowStart, rowEnd, 0, totalCols, markedIdx)

			spans = append(spans, models.NewSpanData(text, locator, models.SpanTypeTable, map[string]interface{}{
				"row_count": rowEnd - rowStart,
				"col_count": totalCols,
				"headers":   table.Headers,
			}))
			rowStart = rowEnd
		}
	}
	return spans
}

// ExcelSpanGenerator produces one chain of spans per non-empty sheet, with
// A1 cell-range locators. Data row 0 lives at worksheet row 2 (header row
// plus 1-indexing).
type ExcelSpanGenerator struct {
	RowsPerSpan    int
	MinRowsPerSpan int
	MaxRowsPerSpan int
}

// NewExcelSpanGenerator creates an Excel span generator with default sizing
func NewExcelSpanGenerator() *ExcelSpanGenerator {
	return &ExcelSpanGenerator{
		RowsPerSpan:    DefaultRowsPerSpan,
		MinRowsPerSpan: MinRowsPerSpan,
		MaxRowsPerSpan: MaxRowsPerSpan,
	}
}

func (g *ExcelSpanGenerator) Name() string { return "excel" }

func (g *ExcelSpanGenerator) SupportedContentTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
	}
}

func (g *ExcelSpanGenerator) CanHandle(contentType string) bool {
	return matchesContentType(g.SupportedContentTypes(), contentType)
}

func (g *ExcelSpanGenerator) GenerateSpans(artifact *models.ExtractionArtifact) []models.SpanData {
	var spans []models.SpanData

	for _, table := range artifact.Tables {
		sheetName := table.SheetName
		if sheetName == "" {
			sheetName = "Sheet1"
		}
		totalRows := len(table.Rows)
		if totalRows == 0 {
			continue
		}
		totalCols := tableColumnCount(&table)

		for rowStart := 0; rowStart < totalRows; {
			rowEnd := nextRowEnd(rowStart, totalRows, g.RowsPerSpan, g.MinRowsPerSpan)

			text := renderTableSpanText(table.Headers, table.Rows[rowStart:rowEnd])

			// Worksheet rows are 1-indexed and row 1 is the header
			cellRange := fmt.Sprintf("%s%d:%s%d",
				ColumnLetter(0), rowStart+2,
				ColumnLetter(totalCols-1), rowEnd+1)
			locator := models.ExcelLocator(sheetName, cellRange)

			spans = append(spans, models.NewSpanData(text, locator, models.SpanTypeTable, map[string]interface{}{
				"sheet_name": sheetName,
				"row_count":  rowEnd - rowStart,
				"col_count":  totalCols,
				"headers":    table.Headers,
				"row_start":  rowStart,
				"row_end":    rowEnd,
			}))
			rowStart = rowEnd
		}
	}
	return spans
}

// ColumnLetter converts a 0-based column index to A1 letters (A..Z, AA..)
func ColumnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

func tableColumnCount(table *models.TableData) int {
	if len(table.Headers) > 0 {
		return len(table.Headers)
	}
	if len(table.Rows) > 0 {
		return len(table.Rows[0])
	}
	return 0
}

// nextRowEnd advances by the target row count, clamped to the table end. A
// span shorter than the minimum is extended only while more rows follow, so
// the final span of a table may hold fewer than minRows rows.
func nextRowEnd(rowStart, totalRows, rowsPerSpan, minRows int) int {
	rowEnd := rowStart + rowsPerSpan
	if rowEnd > totalRows {
		rowEnd = totalRows
	}
	if rowEnd-rowStart < minRows && rowEnd < totalRows {
		rowEnd = rowStart + minRows
		if rowEnd > totalRows {
			rowEnd = totalRows
		}
	}
	return rowEnd
}

// renderTableSpanText renders the pipe-separated text view of a row range
func renderTableSpanText(headers []string, rows [][]interface{}) string {
	var lines []string
	if len(headers) > 0 {
		header := strings.Join(headers, " | ")
		lines = append(lines, header, strings.Repeat("-", len(header)))
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				cells[i] = ""
			} else {
				cells[i] = fmt.Sprintf("%v", cell)
			}
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}
