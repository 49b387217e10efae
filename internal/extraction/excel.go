package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/xuri/excelize/v2"
)

// ExcelExtractor parses .xlsx/.xls workbooks into per-sheet tables. Sheet
// level errors become warnings; only a workbook that cannot be opened at all
// fails the extraction.
type ExcelExtractor struct {
	logger arbor.ILogger
}

// NewExcelExtractor creates a new Excel extractor
func NewExcelExtractor(logger arbor.ILogger) *ExcelExtractor {
	return &ExcelExtractor{logger: logger}
}

func (e *ExcelExtractor) Name() string    { return "excel" }
func (e *ExcelExtractor) Version() string { return "1.0.0" }

func (e *ExcelExtractor) SupportedContentTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", // .xlsx
		"application/vnd.ms-excel",                                          // .xls
	}
}

func (e *ExcelExtractor) CanHandle(contentType string) bool {
	return matchesContentType(e.SupportedContentTypes(), contentType)
}

func (e *ExcelExtractor) Extract(ctx context.Context, data []byte, filename, contentType string, workDir string) (*models.ExtractionArtifact, error) {
	start := time.Now()
	artifact := &models.ExtractionArtifact{}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	var textParts []string
	for _, sheet := range wb.GetSheetList() {
		table, warn := e.extractSheet(wb, sheet)
		if warn != "" {
			artifact.Warnings = append(artifact.Warnings, warn)
		}
		if table == nil || len(table.Rows) == 0 {
			continue
		}
		artifact.Tables = append(artifact.Tables, *table)
		textParts = append(textParts, fmt.Sprintf("[Sheet: %s]\n%s", sheet, renderTableText(table)))
	}

	artifact.Text = strings.Join(textParts, "\n\n")
	artifact.PageCount = len(artifact.Tables)
	artifact.Metadata = map[string]interface{}{
		"filename":    filename,
		"sheet_count": len(wb.GetSheetList()),
		"table_count": len(artifact.Tables),
	}
	artifact.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return artifact, nil
}

// extractSheet reads one sheet into a TableData; failures become a warning
func (e *ExcelExtractor) extractSheet(wb *excelize.File, sheet string) (*models.TableData, string) {
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Sprintf("sheet %q: %v", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ""
	}

	table := &models.TableData{SheetName: sheet}
	table.Headers = rows[0]

	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = parseExcelCell(cell)
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, ""
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseExcelCell types a cell: dates stay ISO-8601 strings (excelize renders
// them formatted), numbers parse int then float, everything else is a string
func parseExcelCell(cell string) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return ""
	}
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse("01-02-06", trimmed); err == nil {
		return t.Format("2006-01-02")
	}
	return parseCell(trimmed)
}
