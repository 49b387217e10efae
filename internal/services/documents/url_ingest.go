package documents

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ternarybob/indicium/internal/models"
)

// SSRFError marks a URL rejected by the private-address guard
type SSRFError struct{ Reason string }

func (e *SSRFError) Error() string { return "url blocked: " + e.Reason }

// ValidateURLForSSRF rejects URLs that are not http(s) or that resolve to a
// private, loopback, link-local or otherwise internal address
func ValidateURLForSSRF(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &SSRFError{Reason: "invalid url"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &SSRFError{Reason: fmt.Sprintf("scheme %q not allowed", parsed.Scheme)}
	}
	host := parsed.Hostname()
	if host == "" {
		return &SSRFError{Reason: "missing host"}
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return &SSRFError{Reason: "host does not resolve"}
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return &SSRFError{Reason: "host resolves to a private address"}
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// IngestFromURL downloads a URL (after the SSRF guard) and uploads the bytes
// as a document with source_type=url
func (s *Service) IngestFromURL(ctx context.Context, principal models.Principal, rawURL, filename string, timeout time.Duration) (*UploadResult, error) {
	if err := ValidateURLForSSRF(rawURL); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	limit := s.maxFileSize
	if limit <= 0 {
		limit = 100 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read download: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("download exceeds maximum size of %d bytes", limit)
	}

	if filename == "" {
		filename = path.Base(strings.TrimSuffix(rawURL, "/"))
		if filename == "" || filename == "." {
			filename = "download"
		}
	}
	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return s.Upload(ctx, principal, &UploadInput{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		SourceType:  models.SourceURL,
		SourceURL:   rawURL,
	})
}
