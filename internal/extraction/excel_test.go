package extraction

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes a workbook with one populated sheet
func buildWorkbook(t *testing.T, sheet string, headers []string, rows [][]string) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	index, err := wb.NewSheet(sheet)
	require.NoError(t, err)
	wb.SetActiveSheet(index)

	for c, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		require.NoError(t, wb.SetCellValue(sheet, cell, header))
	}
	for r, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, wb.SetCellValue(sheet, cell, value))
		}
	}
	wb.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))
	return buf.Bytes()
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func TestExcelExtract(t *testing.T) {
	rows := make([][]string, 10)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("entity_%d", i), fmt.Sprintf("%d", (i + 1) * 100)}
	}
	data := buildWorkbook(t, "Sales", []string{"entity", "revenue"}, rows)

	e := NewExcelExtractor(common.GetLogger())
	artifact, err := e.Extract(context.Background(), data, "sales.xlsx", xlsxContentType, "")
	require.NoError(t, err)
	require.Len(t, artifact.Tables, 1)

	table := artifact.Tables[0]
	assert.Equal(t, "Sales", table.SheetName)
	assert.Equal(t, []string{"entity", "revenue"}, table.Headers)
	assert.Len(t, table.Rows, 10)
	assert.Equal(t, "entity_0", table.Rows[0][0])
	assert.Equal(t, int64(100), table.Rows[0][1])
	assert.Contains(t, artifact.Text, "[Sheet: Sales]")
}

func TestExcelExtractSkipsEmptyRows(t *testing.T) {
	data := buildWorkbook(t, "Data", []string{"a", "b"}, [][]string{
		{"1", "2"},
		{"", ""},
		{"3", "4"},
	})

	e := NewExcelExtractor(common.GetLogger())
	artifact, err := e.Extract(context.Background(), data, "gaps.xlsx", xlsxContentType, "")
	require.NoError(t, err)
	require.Len(t, artifact.Tables, 1)
	assert.Len(t, artifact.Tables[0].Rows, 2)
}

func TestExcelExtractCorruptWorkbook(t *testing.T) {
	e := NewExcelExtractor(common.GetLogger())
	_, err := e.Extract(context.Background(), []byte("not a workbook"), "bad.xlsx", xlsxContentType, "")
	assert.Error(t, err)
}

func TestExcelCanHandle(t *testing.T) {
	e := NewExcelExtractor(common.GetLogger())
	assert.True(t, e.CanHandle(xlsxContentType))
	assert.True(t, e.CanHandle("application/vnd.ms-excel"))
	assert.False(t, e.CanHandle("text/csv"))
}
