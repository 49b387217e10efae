// Package blob provides the storage-backend abstraction for original
// document bytes. The local filesystem backend is built in; s3-compatible
// backends plug in behind interfaces.BlobStore.
package blob

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxFilenameLength caps sanitized filenames while preserving the extension
const maxFilenameLength = 128

// DocumentKey builds the canonical storage key for a version's bytes:
// documents/{document_id}/v{version}/{sanitized_filename}
func DocumentKey(documentID string, versionNumber int, filename string) string {
	return fmt.Sprintf("documents/%s/v%d/%s", documentID, versionNumber, SanitizeFilename(filename))
}

// SanitizeFilename strips control and path characters from a filename and
// caps its length, keeping the extension intact
func SanitizeFilename(filename string) string {
	// Drop any path component the client sent
	filename = filepath.Base(filename)

	var sb strings.Builder
	for _, r := range filename {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters dropped
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	clean := sb.String()
	clean = strings.Trim(clean, ". ")
	if clean == "" {
		clean = "file"
	}

	if len(clean) > maxFilenameLength {
		ext := filepath.Ext(clean)
		if len(ext) > 16 {
			ext = ""
		}
		keep := maxFilenameLength - len(ext)
		clean = clean[:keep] + ext
	}
	return clean
}
