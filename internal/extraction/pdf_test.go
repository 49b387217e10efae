package extraction

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
)

// buildPDF generates a small PDF with the given number of pages
func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Quarterly Evidence", false)
	pdf.SetAuthor("Finance Team", false)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(40, 10, "Revenue grew substantially this quarter.")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestPDFExtractPageCount(t *testing.T) {
	e := NewPDFExtractor(nil, false, common.GetLogger())
	data := buildPDF(t, 3)

	artifact, err := e.Extract(context.Background(), data, "report.pdf", "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, 3, artifact.PageCount)
	assert.Equal(t, "local", artifact.Metadata["extraction_source"])
}

func TestPDFExtractInvalidBytes(t *testing.T) {
	e := NewPDFExtractor(nil, false, common.GetLogger())
	_, err := e.Extract(context.Background(), []byte("not a pdf"), "bad.pdf", "application/pdf", "")
	assert.Error(t, err)
}

func TestPDFCanHandle(t *testing.T) {
	e := NewPDFExtractor(nil, false, common.GetLogger())
	assert.True(t, e.CanHandle("application/pdf"))
	assert.False(t, e.CanHandle("text/plain"))
}

func TestRegistryRouting(t *testing.T) {
	cfg := &common.ExtractionConfig{}
	registry := NewRegistry(cfg, nil, common.GetLogger())

	for contentType, wantName := range map[string]string{
		"application/pdf": "pdf",
		"text/plain":      "text",
		"text/csv":        "csv",
		xlsxContentType:   "excel",
		"image/png":       "image",
	} {
		extractor, err := registry.ExtractorFor(contentType)
		require.NoError(t, err, contentType)
		assert.Equal(t, wantName, extractor.Name())
	}

	_, err := registry.ExtractorFor("application/zip")
	assert.Error(t, err)
}
