package extraction

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
)

// CSVExtractor parses CSV bytes into a structured table with delimiter
// detection, typed cell parsing and auto-generated headers.
type CSVExtractor struct {
	logger arbor.ILogger
}

// NewCSVExtractor creates a new CSV extractor
func NewCSVExtractor(logger arbor.ILogger) *CSVExtractor {
	return &CSVExtractor{logger: logger}
}

func (e *CSVExtractor) Name() string    { return "csv" }
func (e *CSVExtractor) Version() string { return "1.0.0" }

func (e *CSVExtractor) SupportedContentTypes() []string {
	return []string{"text/csv", "text/comma-separated-values", "application/csv"}
}

func (e *CSVExtractor) CanHandle(contentType string) bool {
	return matchesContentType(e.SupportedContentTypes(), contentType)
}

// csvDelimiters are the candidates tried during detection
var csvDelimiters = []rune{',', ';', '\t', '|'}

func (e *CSVExtractor) Extract(ctx context.Context, data []byte, filename, contentType string, workDir string) (*models.ExtractionArtifact, error) {
	start := time.Now()
	artifact := &models.ExtractionArtifact{}

	decoded, encoding := DecodeText(data)
	delimiter := DetectDelimiter(decoded)

	table, warnings, err := parseCSV(decoded, delimiter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	artifact.Text = renderTableText(table)
	if len(table.Rows) > 0 {
		artifact.Tables = []models.TableData{*table}
	}
	artifact.Metadata = map[string]interface{}{
		"filename":     filename,
		"encoding":     encoding,
		"delimiter":    string(delimiter),
		"row_count":    len(table.Rows),
		"column_count": len(table.Headers),
	}
	artifact.Warnings = warnings
	artifact.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return artifact, nil
}

// DetectDelimiter samples the first few lines and picks the candidate with
// the highest consistent count per line
func DetectDelimiter(text string) rune {
	lines := strings.Split(text, "\n")
	sample := lines
	if len(sample) > 5 {
		sample = sample[:5]
	}

	best := ','
	bestScore := -1
	for _, delim := range csvDelimiters {
		counts := make([]int, 0, len(sample))
		for _, line := range sample {
			if strings.TrimSpace(line) == "" {
				continue
			}
			counts = append(counts, strings.Count(line, string(delim)))
		}
		if len(counts) == 0 {
			continue
		}
		// Score: occurrences on the first line, but only when every sampled
		// line agrees (consistent column count)
		consistent := true
		for _, c := range counts[1:] {
			if c != counts[0] {
				consistent = false
				break
			}
		}
		if consistent && counts[0] > bestScore {
			bestScore = counts[0]
			best = delim
		}
	}
	return best
}

func parseCSV(text string, delimiter rune) (*models.TableData, []string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	table := &models.TableData{}
	var warnings []string
	if len(records) == 0 {
		return table, warnings, nil
	}

	headers := records[0]
	dataRows := records[1:]

	// If the first row parses like data, synthesize headers instead
	if !looksLikeHeader(headers) {
		dataRows = records
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
		warnings = append(warnings, "no header row detected, generated column names")
	}

	table.Headers = headers
	table.Rows = make([][]interface{}, 0, len(dataRows))
	for _, record := range dataRows {
		row := make([]interface{}, len(record))
		for i, cell := range record {
			row[i] = parseCell(cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, warnings, nil
}

// looksLikeHeader reports whether a row is plausibly a header: no cell
// parses as a number
func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return false
		}
	}
	return true
}

// parseCell types a cell value: int, then float, then string
func parseCell(cell string) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return ""
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return cell
}

// renderTableText renders a pipe-separated text view of the table
func renderTableText(table *models.TableData) string {
	var lines []string
	if len(table.Headers) > 0 {
		header := strings.Join(table.Headers, " | ")
		lines = append(lines, header, strings.Repeat("-", len(header)))
	}
	for _, row := range table.Rows {
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
