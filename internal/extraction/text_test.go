package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
)

func TestDecodeTextEncodings(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantText     string
		wantEncoding string
	}{
		{"plain utf-8", []byte("hello world"), "hello world", "utf-8"},
		{"utf-8 bom", append([]byte{0xef, 0xbb, 0xbf}, []byte("hello")...), "hello", "utf-8-sig"},
		{"utf-16 le bom", []byte{0xff, 0xfe, 'h', 0, 'i', 0}, "hi", "utf-16-le"},
		{"utf-16 be bom", []byte{0xfe, 0xff, 0, 'h', 0, 'i'}, "hi", "utf-16-be"},
		{"latin-1", []byte{'c', 'a', 'f', 0xe9}, "café", "latin-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, encoding := DecodeText(tt.data)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantEncoding, encoding)
		})
	}
}

func TestTextExtractPlain(t *testing.T) {
	e := NewTextExtractor(common.GetLogger())
	artifact, err := e.Extract(context.Background(), []byte("line one\nline two\n"), "notes.txt", "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", artifact.Text)
	assert.Equal(t, "plain", artifact.Metadata["format"])
	assert.Equal(t, 3, artifact.Metadata["line_count"])
}

func TestTextExtractMarkdownStripped(t *testing.T) {
	e := NewTextExtractor(common.GetLogger())
	md := "# Heading\n\nSome **bold** statement about revenue.\n\n- first item\n- second item\n"

	artifact, err := e.Extract(context.Background(), []byte(md), "readme.md", "text/markdown", "")
	require.NoError(t, err)
	assert.Equal(t, "markdown", artifact.Metadata["format"])
	assert.Contains(t, artifact.Text, "Heading")
	assert.Contains(t, artifact.Text, "bold")
	assert.NotContains(t, artifact.Text, "#")
	assert.NotContains(t, artifact.Text, "**")
}

func TestTextFormatDetectionByExtension(t *testing.T) {
	assert.Equal(t, "markdown", detectTextFormat("doc.md", "text/plain"))
	assert.Equal(t, "markdown", detectTextFormat("doc.markdown", "text/plain"))
	assert.Equal(t, "restructuredtext", detectTextFormat("doc.rst", "text/plain"))
	assert.Equal(t, "plain", detectTextFormat("doc.txt", "text/plain"))
	assert.Equal(t, "markdown", detectTextFormat("anything", "text/markdown"))
}
