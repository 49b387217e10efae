package models

// TableData is one structured table parsed out of a CSV or workbook sheet
type TableData struct {
	SheetName string          `json:"sheet_name,omitempty"`
	Headers   []string        `json:"headers"`
	Rows      [][]interface{} `json:"rows"`
}

// ImageData describes one image captured during extraction, either a
// standalone upload or an image embedded in a PDF page
type ImageData struct {
	ImageIndex  int    `json:"image_index"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	PageNumber  int    `json:"page_number,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	OCRText     string `json:"ocr_text,omitempty"`
}

// ExtractionArtifact is the common output of every content extractor.
// Extractors are pure: bytes in, artifact out; they never touch the
// database or the queue.
type ExtractionArtifact struct {
	Text   string      `json:"text,omitempty"`
	Tables []TableData `json:"tables,omitempty"`
	Images []ImageData `json:"images,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	ExtractorName    string `json:"extractor_name"`
	ExtractorVersion string `json:"extractor_version"`

	PageCount        int `json:"page_count,omitempty"`
	CharCount        int `json:"char_count"`
	WordCount        int `json:"word_count"`
	ProcessingTimeMs int `json:"processing_time_ms"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// HasContent reports whether the artifact produced anything spannable
func (a *ExtractionArtifact) HasContent() bool {
	return a.Text != "" || len(a.Tables) > 0 || len(a.Images) > 0
}
