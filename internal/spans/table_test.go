package spans

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/models"
)

func makeTable(sheet string, cols, rows int) models.TableData {
	table := models.TableData{SheetName: sheet}
	for c := 0; c < cols; c++ {
		table.Headers = append(table.Headers, fmt.Sprintf("col_%d", c+1))
	}
	for r := 0; r < rows; r++ {
		row := make([]interface{}, cols)
		for c := 0; c < cols; c++ {
			row[c] = fmt.Sprintf("r%dc%d", r, c)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", ColumnLetter(0))
	assert.Equal(t, "D", ColumnLetter(3))
	assert.Equal(t, "Z", ColumnLetter(25))
	assert.Equal(t, "AA", ColumnLetter(26))
	assert.Equal(t, "AB", ColumnLetter(27))
	assert.Equal(t, "AZ", ColumnLetter(51))
	assert.Equal(t, "BA", ColumnLetter(52))
}

func TestCSVSpanRowRanges(t *testing.T) {
	g := NewCSVSpanGenerator()
	artifact := &models.ExtractionArtifact{Tables: []models.TableData{makeTable("", 4, 60)}}

	spans := g.GenerateSpans(artifact)
	require.Len(t, spans, 3) // 25 + 25 + 10

	first := spans[0]
	assert.Equal(t, models.LocatorTypeCSV, first.Locator.Type)
	assert.Equal(t, 0, first.Locator.RowStart)
	assert.Equal(t, 25, first.Locator.RowEnd)
	assert.Equal(t, 0, first.Locator.ColStart)
	assert.Equal(t, 4, first.Locator.ColEnd)
	assert.Equal(t, models.SpanTypeTable, first.SpanType)

	last := spans[2]
	assert.Equal(t, 50, last.Locator.RowStart)
	assert.Equal(t, 60, last.Locator.RowEnd)
}

func TestCSVSpanTextRendersPipeTable(t *testing.T) {
	g := NewCSVSpanGenerator()
	artifact := &models.ExtractionArtifact{Tables: []models.TableData{makeTable("", 2, 3)}}

	spans := g.GenerateSpans(artifact)
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].TextContent, "col_1 | col_2")
	assert.Contains(t, spans[0].TextContent, "r0c0 | r0c1")
}

func TestExcelSpanLocators(t *testing.T) {
	g := NewExcelSpanGenerator()
	// Sheet "Sales": 52 data rows plus header, 4 columns
	artifact := &models.ExtractionArtifact{Tables: []models.TableData{makeTable("Sales", 4, 52)}}

	spans := g.GenerateSpans(artifact)
	require.GreaterOrEqual(t, len(spans), 3) // 25 + 25 + 2

	first := spans[0]
	assert.Equal(t, models.LocatorTypeExcel, first.Locator.Type)
	assert.Equal(t, "Sales", first.Locator.Sheet)
	// Data row 0 is worksheet row 2 (header + 1-indexing); 25 rows end at 26
	assert.Equal(t, "A2:D26", first.Locator.CellRange)

	second := spans[1]
	assert.Equal(t, "A27:D51", second.Locator.CellRange)
}

func TestExcelSpanHashesStableAcrossRuns(t *testing.T) {
	g := NewExcelSpanGenerator()
	artifact := &models.ExtractionArtifact{Tables: []models.TableData{makeTable("Sales", 4, 52)}}

	first := g.GenerateSpans(artifact)
	second := g.GenerateSpans(artifact)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SpanHash, second[i].SpanHash)
	}
}

func TestExcelSkipsEmptySheets(t *testing.T) {
	g := NewExcelSpanGenerator()
	empty := models.TableData{SheetName: "Empty", Headers: []string{"a"}}
	artifact := &models.ExtractionArtifact{Tables: []models.TableData{empty, makeTable("Data", 2, 5)}}

	spans := g.GenerateSpans(artifact)
	require.Len(t, spans, 1)
	assert.Equal(t, "Data", spans[0].Locator.Sheet)
}

func TestImageSpanPerImage(t *testing.T) {
	g := NewImageSpanGenerator()
	artifact := &models.ExtractionArtifact{
		Metadata: map[string]interface{}{"filename": "report.pdf"},
		Images: []models.ImageData{
			{ImageIndex: 0, ContentType: "image/png", Width: 800, Height: 600, PageNumber: 2},
			{ImageIndex: 1, ContentType: "image/jpeg", Width: 400, Height: 300, PageNumber: 5, OCRText: "Q3 revenue chart"},
		},
	}

	spans := g.GenerateSpans(artifact)
	require.Len(t, spans, 2)

	for i, span := range spans {
		assert.Equal(t, models.SpanTypeFigure, span.SpanType)
		assert.Equal(t, models.LocatorTypeImage, span.Locator.Type)
		assert.Equal(t, i, span.Locator.ImageIndex)
	}
	assert.Equal(t, 2, spans[0].Locator.PageNumber)
	assert.Contains(t, spans[1].TextContent, "OCR Text:")
	assert.Contains(t, spans[1].TextContent, "Q3 revenue chart")
}

func TestImageSpanStandalone(t *testing.T) {
	g := NewImageSpanGenerator()
	artifact := &models.ExtractionArtifact{
		Text: "scanned text",
		Metadata: map[string]interface{}{
			"filename": "scan.png",
			"width":    1200,
			"height":   900,
		},
	}

	spans := g.GenerateSpans(artifact)
	require.Len(t, spans, 1)
	assert.Equal(t, "scan.png", spans[0].Locator.Filename)
	assert.Equal(t, 1200, spans[0].Locator.Width)
	assert.Contains(t, spans[0].TextContent, "[Image: scan.png]")
}
