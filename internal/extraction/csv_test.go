package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n4,5,6", ','},
		{"semicolon", "a;b;c\n1;2;3", ';'},
		{"tab", "a\tb\tc\n1\t2\t3", '\t'},
		{"pipe", "a|b|c\n1|2|3", '|'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter(tt.text))
		})
	}
}

func TestCSVExtract(t *testing.T) {
	e := NewCSVExtractor(common.GetLogger())
	data := []byte("name,revenue,growth\nAcme,1000,0.4\nGlobex,2500,0.1\n")

	artifact, err := e.Extract(context.Background(), data, "metrics.csv", "text/csv", "")
	require.NoError(t, err)
	require.Len(t, artifact.Tables, 1)

	table := artifact.Tables[0]
	assert.Equal(t, []string{"name", "revenue", "growth"}, table.Headers)
	require.Len(t, table.Rows, 2)

	// Cells type as int, float, string
	assert.Equal(t, "Acme", table.Rows[0][0])
	assert.Equal(t, int64(1000), table.Rows[0][1])
	assert.Equal(t, 0.4, table.Rows[0][2])
}

func TestCSVExtractGeneratesHeaders(t *testing.T) {
	e := NewCSVExtractor(common.GetLogger())
	data := []byte("1,2,3\n4,5,6\n")

	artifact, err := e.Extract(context.Background(), data, "raw.csv", "text/csv", "")
	require.NoError(t, err)
	require.Len(t, artifact.Tables, 1)

	table := artifact.Tables[0]
	assert.Equal(t, []string{"column_1", "column_2", "column_3"}, table.Headers)
	assert.Len(t, table.Rows, 2)
	assert.NotEmpty(t, artifact.Warnings)
}

func TestCSVExtractSemicolonDelimited(t *testing.T) {
	e := NewCSVExtractor(common.GetLogger())
	data := []byte("name;value\nalpha;1\nbeta;2\n")

	artifact, err := e.Extract(context.Background(), data, "euro.csv", "text/csv", "")
	require.NoError(t, err)
	require.Len(t, artifact.Tables, 1)
	assert.Equal(t, []string{"name", "value"}, artifact.Tables[0].Headers)
	assert.Equal(t, ";", artifact.Metadata["delimiter"])
}

func TestCSVExtractBOM(t *testing.T) {
	e := NewCSVExtractor(common.GetLogger())
	data := append([]byte{0xef, 0xbb, 0xbf}, []byte("name,value\na,1\n")...)

	artifact, err := e.Extract(context.Background(), data, "bom.csv", "text/csv", "")
	require.NoError(t, err)
	assert.Equal(t, "utf-8-sig", artifact.Metadata["encoding"])
	assert.Equal(t, []string{"name", "value"}, artifact.Tables[0].Headers)
}

func TestCSVCanHandle(t *testing.T) {
	e := NewCSVExtractor(common.GetLogger())
	assert.True(t, e.CanHandle("text/csv"))
	assert.True(t, e.CanHandle("text/csv; charset=utf-8"))
	assert.True(t, e.CanHandle("application/csv"))
	assert.False(t, e.CanHandle("application/pdf"))
}
