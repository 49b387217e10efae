package deletion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/blob"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

type fixture struct {
	manager *badgerstore.Manager
	blobs   *blob.LocalStore
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := common.GetLogger()
	manager, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	blobs, err := blob.NewLocalStore(t.TempDir(), "test-sign-key", logger)
	require.NoError(t, err)

	engine := NewEngine(
		manager.DocumentStorage(),
		manager.VersionStorage(),
		manager.SpanStorage(),
		manager.EmbeddingStorage(),
		manager.FactStorage(),
		manager.RunStorage(),
		manager.QualityStorage(),
		manager.ProjectStorage(),
		manager.DeletionStorage(),
		blobs,
		nil,
		logger,
	)
	return &fixture{manager: manager, blobs: blobs, engine: engine}
}

// seedDocument creates a document with versions, blobs, spans, embeddings,
// facts and attachments - the full resource graph the protocol must walk
func (f *fixture) seedDocument(t *testing.T, tenantID string, versions, chunksPerVersion int) *models.Document {
	t.Helper()
	ctx := context.Background()

	doc := &models.Document{
		ID:               common.NewID(common.PrefixDocument),
		TenantID:         tenantID,
		Filename:         "doc.pdf",
		OriginalFilename: "doc.pdf",
		ContentType:      "application/pdf",
		FileHash:         "hash-" + hashSuffix(),
	}
	require.NoError(t, f.manager.DocumentStorage().SaveDocument(ctx, doc))

	for v := 1; v <= versions; v++ {
		key := blob.DocumentKey(doc.ID, v, "doc.pdf")
		uri, err := f.blobs.Put(ctx, key, []byte("pdf bytes"), "application/pdf", nil)
		require.NoError(t, err)

		version := &models.DocumentVersion{
			ID:            common.NewID(common.PrefixVersion),
			TenantID:      tenantID,
			DocumentID:    doc.ID,
			VersionNumber: v,
			StorageURI:    uri,
		}
		require.NoError(t, f.manager.VersionStorage().SaveVersion(ctx, version))

		span := &models.Span{
			ID:                common.NewID(common.PrefixSpan),
			TenantID:          tenantID,
			DocumentVersionID: version.ID,
			TextContent:       "evidence",
			Locator:           models.TextLocator(0, 8, 0),
			SpanType:          models.SpanTypeText,
			SpanHash:          models.ComputeSpanHash(models.TextLocator(0, 8, 0), "evidence"),
		}
		_, _, err = f.manager.SpanStorage().UpsertSpan(ctx, span)
		require.NoError(t, err)

		for c := 0; c < chunksPerVersion; c++ {
			chunk := &models.EmbeddingChunk{
				ID:                common.NewID(common.PrefixChunk),
				TenantID:          tenantID,
				DocumentVersionID: version.ID,
				SpanID:            span.ID,
				ChunkIndex:        c,
				Text:              "evidence",
				Embedding:         []float32{1, 2, 3},
			}
			require.NoError(t, f.manager.EmbeddingStorage().SaveChunk(ctx, chunk))
		}

		claim := &models.Claim{
			ID: common.NewID(common.PrefixClaim),
			FactBase: models.FactBase{
				TenantID:          tenantID,
				DocumentVersionID: version.ID,
				ExtractionRunID:   "run-x",
			},
			Subject:   map[string]interface{}{"name": "Acme"},
			Predicate: "operates_in",
			Object:    map[string]interface{}{"name": "healthcare"},
		}
		require.NoError(t, f.manager.FactStorage().SaveClaim(ctx, claim))
	}

	require.NoError(t, f.manager.ProjectStorage().AttachDocument(ctx, &models.ProjectDocument{
		ID:         common.NewID(common.PrefixProject) + "-att",
		TenantID:   tenantID,
		ProjectID:  "prj-1",
		DocumentID: doc.ID,
	}))

	return doc
}

var suffixCounter int

func hashSuffix() string {
	suffixCounter++
	return string(rune('a' + suffixCounter%26))
}

func TestMarkForDeletionPlansOrderedTasks(t *testing.T) {
	f := newFixture(t)
	principal := models.Principal{TenantID: "tenant-a", ActorID: "tester"}
	doc := f.seedDocument(t, "tenant-a", 2, 3)

	tasks, err := f.engine.MarkForDeletion(context.Background(), principal, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)

	// Tasks come back in ascending processing order, ending at the record
	last := 0
	for _, task := range tasks {
		assert.GreaterOrEqual(t, task.ProcessingOrder, last)
		last = task.ProcessingOrder
		assert.Equal(t, models.TaskPending, task.Status)
	}
	assert.Equal(t, models.TaskDocumentRecord, tasks[len(tasks)-1].TaskType)

	// The document disappeared from listings immediately
	updated, err := f.manager.DocumentStorage().GetDocument(context.Background(), "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeletionMarked, updated.DeletionStatus)
	assert.False(t, updated.IsVisible())
	assert.Equal(t, "tester", updated.DeletionRequestedBy)

	// Re-marking is idempotent
	again, err := f.engine.MarkForDeletion(context.Background(), principal, doc.ID)
	require.NoError(t, err)
	assert.Len(t, again, len(tasks))
}

func TestExecutePendingDeletesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a", ActorID: "tester"}
	doc := f.seedDocument(t, "tenant-a", 2, 5)

	versions, err := f.manager.VersionStorage().ListVersions(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	blobURI := versions[0].StorageURI

	_, err = f.engine.MarkForDeletion(ctx, principal, doc.ID)
	require.NoError(t, err)
	require.NoError(t, f.engine.ExecutePending(ctx, "tenant-a", doc.ID))

	// Document record survives as a DELETED tombstone, invisible to reads
	final, err := f.manager.DocumentStorage().GetDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeletionDeleted, final.DeletionStatus)
	assert.False(t, final.IsVisible())
	assert.NotNil(t, final.DeletionCompletedAt)

	// No orphan rows remain
	remaining, err := f.manager.VersionStorage().ListVersions(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	for _, v := range versions {
		spans, err := f.manager.SpanStorage().ListSpansForVersion(ctx, "tenant-a", v.ID)
		require.NoError(t, err)
		assert.Empty(t, spans)

		chunks, err := f.manager.EmbeddingStorage().ListChunksForVersion(ctx, "tenant-a", v.ID)
		require.NoError(t, err)
		assert.Empty(t, chunks)

		claims, err := f.manager.FactStorage().ListClaimsForVersion(ctx, "tenant-a", v.ID, "")
		require.NoError(t, err)
		assert.Empty(t, claims)
	}

	attachments, err := f.manager.ProjectStorage().ListAttachmentsForDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, attachments)

	exists, err := f.blobs.Exists(ctx, blobURI)
	require.NoError(t, err)
	assert.False(t, exists, "blob bytes removed")

	// Task rows persist as audit trail with document refs cleared
	tasks, err := f.manager.DeletionStorage().ListTasksForDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "tasks no longer findable by document after ref cleared")
}

func TestExecutePendingResumesAfterCrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a", ActorID: "tester"}
	doc := f.seedDocument(t, "tenant-a", 2, 5)

	tasks, err := f.engine.MarkForDeletion(ctx, principal, doc.ID)
	require.NoError(t, err)

	// Simulate a crash after storage and embedding levels completed: mark
	// those tasks completed by hand, leaving spans onward pending
	for _, task := range tasks {
		if task.ProcessingOrder <= models.DeletionOrder[models.TaskEmbeddingChunks] {
			task.Status = models.TaskCompleted
			require.NoError(t, f.manager.DeletionStorage().UpdateTask(ctx, task))
		}
	}

	// The next worker cycle drives the rest in order
	require.NoError(t, f.engine.ExecutePending(ctx, "tenant-a", doc.ID))

	final, err := f.manager.DocumentStorage().GetDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeletionDeleted, final.DeletionStatus)
}

func TestDeletionSkipsAbsentResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a", ActorID: "tester"}

	// Document with a version but no spans, chunks or facts
	doc := &models.Document{
		ID:               common.NewID(common.PrefixDocument),
		TenantID:         "tenant-a",
		Filename:         "bare.txt",
		OriginalFilename: "bare.txt",
		ContentType:      "text/plain",
	}
	require.NoError(t, f.manager.DocumentStorage().SaveDocument(ctx, doc))
	version := &models.DocumentVersion{
		ID:            common.NewID(common.PrefixVersion),
		TenantID:      "tenant-a",
		DocumentID:    doc.ID,
		VersionNumber: 1,
		StorageURI:    "file://documents/never-written/v1/bare.txt",
	}
	require.NoError(t, f.manager.VersionStorage().SaveVersion(ctx, version))

	_, err := f.engine.MarkForDeletion(ctx, principal, doc.ID)
	require.NoError(t, err)
	require.NoError(t, f.engine.ExecutePending(ctx, "tenant-a", doc.ID))

	// Absent resources terminate as skipped, not failed, and the overall
	// deletion still completes
	final, err := f.manager.DocumentStorage().GetDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeletionDeleted, final.DeletionStatus)
}

func TestDeletionCrossTenantInvisible(t *testing.T) {
	f := newFixture(t)
	principal := models.Principal{TenantID: "tenant-b", ActorID: "intruder"}
	doc := f.seedDocument(t, "tenant-a", 1, 1)

	_, err := f.engine.MarkForDeletion(context.Background(), principal, doc.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
