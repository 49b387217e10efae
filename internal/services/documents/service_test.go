package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/blob"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

func newTestService(t *testing.T) (*Service, *badgerstore.Manager) {
	t.Helper()
	logger := common.GetLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	blobs, err := blob.NewLocalStore(t.TempDir(), "sign-key", logger)
	require.NoError(t, err)

	service := NewService(manager.DocumentStorage(), manager.VersionStorage(), blobs, 10, logger)
	return service, manager
}

var principalA = models.Principal{TenantID: "tenant-a", ActorID: "tester", Scopes: []string{models.ScopeWrite}}

func TestUploadCreatesDocumentAndVersion(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("pdf bytes here")

	result, err := service.Upload(ctx, principalA, &UploadInput{
		Filename:    "doc.pdf",
		ContentType: "application/pdf",
		Data:        data,
	})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, result.Version.VersionNumber)
	assert.Equal(t, models.ProcessingUploaded, result.Version.ProcessingStatus)
	assert.Equal(t, models.UploadUploaded, result.Version.UploadStatus)

	wantHash := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(wantHash[:]), result.Version.FileHash)
	assert.Equal(t, result.Version.FileHash, result.Document.FileHash)
}

// Identical bytes under a different filename reuse the same document and
// version; no new blob is written
func TestUploadDeduplicatesIdenticalContent(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("identical bytes")

	first, err := service.Upload(ctx, principalA, &UploadInput{
		Filename: "doc.pdf", ContentType: "application/pdf", Data: data,
	})
	require.NoError(t, err)

	second, err := service.Upload(ctx, principalA, &UploadInput{
		Filename: "other.pdf", ContentType: "application/pdf", Data: data,
	})
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, first.Version.ID, second.Version.ID)
}

func TestUploadDedupIsTenantScoped(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("shared bytes")

	first, err := service.Upload(ctx, principalA, &UploadInput{
		Filename: "doc.pdf", ContentType: "application/pdf", Data: data,
	})
	require.NoError(t, err)

	principalB := models.Principal{TenantID: "tenant-b", ActorID: "other"}
	second, err := service.Upload(ctx, principalB, &UploadInput{
		Filename: "doc.pdf", ContentType: "application/pdf", Data: data,
	})
	require.NoError(t, err)

	assert.False(t, second.Duplicate)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)
}

func TestUploadVersionIncrementsNumber(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.Upload(ctx, principalA, &UploadInput{
		Filename: "doc.txt", ContentType: "text/plain", Data: []byte("v1"),
	})
	require.NoError(t, err)

	second, err := service.UploadVersion(ctx, principalA, first.Document.ID, []byte("v2"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version.VersionNumber)

	versions, err := service.Versions(ctx, principalA, first.Document.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)
}

func TestDownloadRoundTrip(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	data := []byte("the exact original bytes")

	result, err := service.Upload(ctx, principalA, &UploadInput{
		Filename: "evidence.txt", ContentType: "text/plain", Data: data,
	})
	require.NoError(t, err)

	got, filename, err := service.Download(ctx, principalA, result.Document.ID, "")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "evidence.txt", filename)
}

func TestUploadRejectsOversize(t *testing.T) {
	service, _ := newTestService(t)
	big := make([]byte, 11<<20) // limit is 10MB

	_, err := service.Upload(context.Background(), principalA, &UploadInput{
		Filename: "big.bin", ContentType: "application/octet-stream", Data: big,
	})
	assert.Error(t, err)
}

func TestGetCrossTenantNotFound(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	result, err := service.Upload(ctx, principalA, &UploadInput{
		Filename: "doc.txt", ContentType: "text/plain", Data: []byte("x"),
	})
	require.NoError(t, err)

	_, err = service.Get(ctx, models.Principal{TenantID: "tenant-b"}, result.Document.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestValidateURLForSSRF(t *testing.T) {
	assert.Error(t, ValidateURLForSSRF("ftp://example.com/file"))
	assert.Error(t, ValidateURLForSSRF("http://127.0.0.1/admin"))
	assert.Error(t, ValidateURLForSSRF("http://localhost:8080/x"))
	assert.Error(t, ValidateURLForSSRF("http://169.254.169.254/latest/meta-data"))
	assert.Error(t, ValidateURLForSSRF("not a url at all ::"))
}
