package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
)

// LocalStore implements interfaces.BlobStore on the local filesystem.
// URIs are "file://{relative key}". Writes go through a temp file plus
// rename so a concurrent reader never sees partial bytes.
type LocalStore struct {
	root    string
	signKey []byte
	logger  arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.BlobStore = (*LocalStore)(nil)

// NewLocalStore creates a filesystem-backed blob store rooted at root
func NewLocalStore(root string, signKey string, logger arbor.ILogger) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root, signKey: []byte(signKey), logger: logger}, nil
}

func (s *LocalStore) uriToPath(uri string) (string, error) {
	key := strings.TrimPrefix(uri, "file://")
	if key == uri && strings.Contains(uri, "://") {
		return "", fmt.Errorf("unsupported blob URI scheme: %s", uri)
	}
	key = filepath.Clean(key)
	if strings.HasPrefix(key, "..") || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return filepath.Join(s.root, key), nil
}

func keyToURI(key string) string {
	return "file://" + filepath.ToSlash(key)
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	path, err := s.uriToPath(keyToURI(key))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}

	if err := s.writeSidecar(path, contentType, metadata); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write blob sidecar metadata")
	}

	s.logger.Debug().Str("key", key).Int("size", len(data)).Msg("Blob stored")
	return keyToURI(key), nil
}

func (s *LocalStore) PutFrom(ctx context.Context, key string, localPath string, contentType string, metadata map[string]string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	path, err := s.uriToPath(keyToURI(key))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to stream blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}

	if err := s.writeSidecar(path, contentType, metadata); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write blob sidecar metadata")
	}
	return keyToURI(key), nil
}

func (s *LocalStore) Get(ctx context.Context, uri string) ([]byte, error) {
	path, err := s.uriToPath(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

func (s *LocalStore) GetStream(ctx context.Context, uri string, chunkSize int) (io.ReadCloser, error) {
	path, err := s.uriToPath(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, uri string) (bool, error) {
	path, err := s.uriToPath(uri)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete blob: %w", err)
	}
	os.Remove(path + ".meta")
	return true, nil
}

func (s *LocalStore) Exists(ctx context.Context, uri string) (bool, error) {
	path, err := s.uriToPath(uri)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SignDownloadURL produces "/api/files/{key}?expires=...&sig=..." with an
// HMAC over key and expiry. VerifySignature checks it on the way back in.
func (s *LocalStore) SignDownloadURL(uri string, ttl time.Duration) (string, error) {
	if len(s.signKey) == 0 {
		return "", fmt.Errorf("download signing key not configured")
	}
	key := strings.TrimPrefix(uri, "file://")
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(key, expires)
	return fmt.Sprintf("/api/files/%s?expires=%d&sig=%s", key, expires, sig), nil
}

// VerifySignature validates a signed download path
func (s *LocalStore) VerifySignature(key string, expires int64, sig string) bool {
	if len(s.signKey) == 0 {
		return false
	}
	if time.Now().Unix() > expires {
		return false
	}
	expected := s.sign(key, expires)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signKey)
	fmt.Fprintf(mac, "%s:%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LocalStore) Head(ctx context.Context, uri string) (*interfaces.BlobMetadata, error) {
	path, err := s.uriToPath(uri)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	meta := &interfaces.BlobMetadata{
		Key:          strings.TrimPrefix(uri, "file://"),
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
	if sidecar, err := s.readSidecar(path); err == nil {
		meta.ContentType = sidecar.ContentType
		meta.ETag = sidecar.ETag
	}
	return meta, nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	base := filepath.Join(s.root, filepath.FromSlash(prefix))
	err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".meta") || strings.HasPrefix(filepath.Base(path), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

type sidecarMeta struct {
	ContentType string            `json:"content_type"`
	ETag        string            `json:"etag,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (s *LocalStore) writeSidecar(path, contentType string, metadata map[string]string) error {
	data, err := json.Marshal(sidecarMeta{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return err
	}
	return os.WriteFile(path+".meta", data, 0644)
}

func (s *LocalStore) readSidecar(path string) (*sidecarMeta, error) {
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, err
	}
	var meta sidecarMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
