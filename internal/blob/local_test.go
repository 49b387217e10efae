package blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "test-sign-key", common.GetLogger())
	require.NoError(t, err)
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	data := []byte("original document bytes")

	uri, err := store.Put(ctx, "documents/doc_1/v1/report.pdf", data, "application/pdf", map[string]string{"tenant_id": "t1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	got, err := store.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "file://documents/nope/v1/x.pdf")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDeleteReportsExistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uri, err := store.Put(ctx, "documents/d/v1/f.txt", []byte("x"), "text/plain", nil)
	require.NoError(t, err)

	existed, err := store.Delete(ctx, uri)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, uri)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestHeadAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uri, err := store.Put(ctx, "documents/d/v1/f.txt", []byte("hello"), "text/plain", nil)
	require.NoError(t, err)

	meta, err := store.Head(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)

	_, err = store.Put(ctx, "documents/d/v2/f.txt", []byte("world"), "text/plain", nil)
	require.NoError(t, err)

	keys, err := store.List(ctx, "documents/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"documents/d/v1/f.txt", "documents/d/v2/f.txt"}, keys)
}

func TestGetStream(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uri, err := store.Put(ctx, "documents/d/v1/big.bin", []byte("streamed content"), "application/octet-stream", nil)
	require.NoError(t, err)

	reader, err := store.GetStream(ctx, uri, 4)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "streamed content", string(data))
}

func TestSignedURLVerification(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uri, err := store.Put(ctx, "documents/d/v1/f.txt", []byte("x"), "text/plain", nil)
	require.NoError(t, err)

	signed, err := store.SignDownloadURL(uri, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "expires=")
	assert.Contains(t, signed, "sig=")

	// Tampered signatures do not verify
	assert.False(t, store.VerifySignature("documents/d/v1/f.txt", time.Now().Add(time.Minute).Unix(), "bogus"))
	// Expired timestamps do not verify either
	assert.False(t, store.VerifySignature("documents/d/v1/f.txt", time.Now().Add(-time.Minute).Unix(), "whatever"))
}

func TestURITraversalRejected(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "file://../../etc/passwd")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../../etc/passwd", "passwd"},
		{"we?ird*na:me.txt", "we_ird_na_me.txt"},
		{"has\x00control\x1fchars.csv", "hascontrolchars.csv"},
		{"", "file"},
		{"...", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}

	long := strings.Repeat("a", 300) + ".xlsx"
	sanitized := SanitizeFilename(long)
	assert.LessOrEqual(t, len(sanitized), 128)
	assert.True(t, strings.HasSuffix(sanitized, ".xlsx"))
}

func TestDocumentKey(t *testing.T) {
	key := DocumentKey("doc_abc", 2, "My Report.pdf")
	assert.Equal(t, "documents/doc_abc/v2/My Report.pdf", key)
}
