package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
)

// PDFExtractor extracts text and metadata from PDFs. When the remote
// extraction client is configured it is preferred; pdfcpu is the local
// fallback and the metadata source either way.
type PDFExtractor struct {
	remote        *LovePDFClient
	extractImages bool
	logger        arbor.ILogger
	tempDir       string
}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor(remote *LovePDFClient, extractImages bool, logger arbor.ILogger) *PDFExtractor {
	tempDir := filepath.Join(os.TempDir(), "indicium-pdf")
	os.MkdirAll(tempDir, 0755)

	return &PDFExtractor{
		remote:        remote,
		extractImages: extractImages,
		logger:        logger,
		tempDir:       tempDir,
	}
}

func (e *PDFExtractor) Name() string    { return "pdf" }
func (e *PDFExtractor) Version() string { return "1.0.0" }

func (e *PDFExtractor) SupportedContentTypes() []string {
	return []string{"application/pdf"}
}

func (e *PDFExtractor) CanHandle(contentType string) bool {
	return matchesContentType(e.SupportedContentTypes(), contentType)
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte, filename, contentType string, workDir string) (*models.ExtractionArtifact, error) {
	start := time.Now()
	artifact := &models.ExtractionArtifact{}

	// Write to temp file for pdfcpu processing
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("extract_%d_%d.pdf", os.Getpid(), start.UnixNano()))
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	artifact.PageCount = pdfCtx.PageCount

	meta := map[string]interface{}{
		"filename":  filename,
		"encrypted": pdfCtx.Encrypt != nil,
	}
	for key, value := range map[string]string{
		"title":    pdfCtx.Title,
		"author":   pdfCtx.Author,
		"subject":  pdfCtx.Subject,
		"creator":  pdfCtx.Creator,
		"producer": pdfCtx.Producer,
	} {
		if value != "" {
			meta[key] = value
		}
	}

	// Remote service preferred for text; local pdfcpu is the fallback
	text := ""
	pageBreaks := []int{}
	if e.remote != nil {
		text, err = e.remote.ExtractText(ctx, data, filename)
		if err != nil {
			artifact.Warnings = append(artifact.Warnings, fmt.Sprintf("remote extraction failed, using local: %v", err))
			text = ""
		} else {
			meta["extraction_source"] = "remote"
		}
	}
	if text == "" {
		text, pageBreaks = e.extractLocal(tempFile, pdfCtx.PageCount, artifact)
		meta["extraction_source"] = "local"
	}

	if len(pageBreaks) > 0 {
		meta["page_breaks"] = pageBreaks
	}

	if e.extractImages && workDir != "" {
		images, warns := e.extractEmbeddedImages(tempFile, workDir)
		artifact.Images = images
		artifact.Warnings = append(artifact.Warnings, warns...)
	}

	artifact.Text = text
	artifact.Metadata = meta
	artifact.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return artifact, nil
}

// extractLocal pulls page content with pdfcpu and returns the concatenated
// text plus the character offsets where each page after the first starts
func (e *PDFExtractor) extractLocal(tempFile string, pageCount int, artifact *models.ExtractionArtifact) (string, []int) {
	conf := model.NewDefaultConfiguration()

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("pages_%d_%d", os.Getpid(), time.Now().UnixNano()))
	os.MkdirAll(outDir, 0755)
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		artifact.Warnings = append(artifact.Warnings, fmt.Sprintf("local content extraction failed: %v", err))
		return "", nil
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		} else if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var sb strings.Builder
	var pageBreaks []int
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if pageNum > 1 {
			pageBreaks = append(pageBreaks, sb.Len())
		}
		sb.WriteString(pageTexts[pageNum])
		if pageNum < pageCount {
			sb.WriteString("\n\n")
		}
	}
	return sb.String(), pageBreaks
}

// extractEmbeddedImages writes embedded images to the working directory and
// records them on the artifact. Failures are warnings.
func (e *PDFExtractor) extractEmbeddedImages(tempFile, workDir string) ([]models.ImageData, []string) {
	conf := model.NewDefaultConfiguration()
	var warnings []string

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, []string{fmt.Sprintf("failed to create image work dir: %v", err)}
	}
	if err := api.ExtractImagesFile(tempFile, workDir, nil, conf); err != nil {
		return nil, []string{fmt.Sprintf("image extraction failed: %v", err)}
	}

	var images []models.ImageData
	files, _ := os.ReadDir(workDir)
	index := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		images = append(images, models.ImageData{
			ImageIndex:  index,
			ContentType: contentTypeForImageFile(file.Name()),
			StoragePath: filepath.Join(workDir, file.Name()),
		})
		index++
	}
	return images, warnings
}

func contentTypeForImageFile(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "image/unknown"
	}
}
