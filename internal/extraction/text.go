package extraction

import (
	"bytes"
	"context"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// TextExtractor handles plain text and markdown files with multi-encoding
// detection. Markdown is additionally rendered to plain text so downstream
// span generation works over clean prose.
type TextExtractor struct {
	logger arbor.ILogger
}

// NewTextExtractor creates a new text extractor
func NewTextExtractor(logger arbor.ILogger) *TextExtractor {
	return &TextExtractor{logger: logger}
}

func (e *TextExtractor) Name() string    { return "text" }
func (e *TextExtractor) Version() string { return "1.0.0" }

func (e *TextExtractor) SupportedContentTypes() []string {
	return []string{"text/plain", "text/markdown", "text/x-markdown"}
}

func (e *TextExtractor) CanHandle(contentType string) bool {
	return matchesContentType(e.SupportedContentTypes(), contentType)
}

func (e *TextExtractor) Extract(ctx context.Context, data []byte, filename, contentType string, workDir string) (*models.ExtractionArtifact, error) {
	start := time.Now()
	artifact := &models.ExtractionArtifact{}

	decoded, encoding := DecodeText(data)

	format := detectTextFormat(filename, contentType)
	textContent := decoded
	if format == "markdown" {
		textContent = markdownToPlainText(decoded)
	}

	artifact.Text = textContent
	artifact.Metadata = map[string]interface{}{
		"filename":   filename,
		"encoding":   encoding,
		"format":     format,
		"line_count": len(strings.Split(decoded, "\n")),
	}
	artifact.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return artifact, nil
}

// textEncodings are tried in order after BOM detection
var textEncodings = []string{"utf-8", "latin-1", "cp1252", "iso-8859-1"}

// DecodeText decodes bytes to a string, BOM-aware, trying utf-8 then the
// single-byte encodings, with utf-8-replacement as the last resort. Returns
// the text and the encoding used.
func DecodeText(data []byte) (string, string) {
	// BOM detection first
	if bytes.HasPrefix(data, []byte{0xef, 0xbb, 0xbf}) {
		return string(data[3:]), "utf-8-sig"
	}
	if bytes.HasPrefix(data, []byte{0xff, 0xfe}) {
		return decodeUTF16(data[2:], false), "utf-16-le"
	}
	if bytes.HasPrefix(data, []byte{0xfe, 0xff}) {
		return decodeUTF16(data[2:], true), "utf-16-be"
	}

	for _, enc := range textEncodings {
		switch enc {
		case "utf-8":
			if utf8.Valid(data) {
				return string(data), "utf-8"
			}
		case "latin-1", "iso-8859-1":
			return decodeLatin1(data), enc
		case "cp1252":
			// latin-1 handles it first; kept for parity with the encoding list
		}
	}

	// Last resort: utf-8 with replacement runes
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), "utf-8-fallback"
}

func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func decodeUTF16(data []byte, bigEndian bool) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	units := make([]uint16, len(data)/2)
	for i := 0; i < len(units); i++ {
		if bigEndian {
			units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
		} else {
			units[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
		}
	}
	return string(utf16.Decode(units))
}

func detectTextFormat(filename, contentType string) string {
	if contentType == "text/markdown" || contentType == "text/x-markdown" {
		return "markdown"
	}
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return "markdown"
	case strings.HasSuffix(lower, ".rst"):
		return "restructuredtext"
	default:
		return "plain"
	}
}

// markdownToPlainText walks the goldmark AST and collects text content,
// keeping paragraph breaks so span boundaries stay natural
func markdownToPlainText(source string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(source))
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	src := []byte(source)

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
				sb.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.AutoLink:
			sb.Write(node.URL(src))
		}
		return ast.WalkContinue, nil
	})

	// Collapse runs of blank lines left by nested blocks
	out := sb.String()
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}
