package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func saveDoc(t *testing.T, m *Manager, tenantID, hash string) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:               common.NewID(common.PrefixDocument),
		TenantID:         tenantID,
		Filename:         "doc.pdf",
		OriginalFilename: "doc.pdf",
		ContentType:      "application/pdf",
		FileHash:         hash,
		DocumentType:     models.DocTypeUnknown,
		SourceType:       models.SourceUpload,
	}
	require.NoError(t, m.DocumentStorage().SaveDocument(context.Background(), doc))
	return doc
}

func TestDocumentTenantIsolation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	doc := saveDoc(t, m, "tenant-a", "hash-1")

	// The owning tenant reads it back
	got, err := m.DocumentStorage().GetDocument(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	// Another tenant sees not-found, indistinguishable from absence
	_, err = m.DocumentStorage().GetDocument(ctx, "tenant-b", doc.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	// Listings never cross tenants
	listed, err := m.DocumentStorage().ListDocuments(ctx, "tenant-b", nil)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Hash lookups are tenant-scoped too
	_, err = m.DocumentStorage().GetDocumentByHash(ctx, "tenant-b", "hash-1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDocumentListingExcludesDeleted(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	doc := saveDoc(t, m, "tenant-a", "hash-1")
	doc.DeletionStatus = models.DeletionMarked
	require.NoError(t, m.DocumentStorage().UpdateDocument(ctx, doc))

	listed, err := m.DocumentStorage().ListDocuments(ctx, "tenant-a", nil)
	require.NoError(t, err)
	assert.Empty(t, listed)

	count, err := m.DocumentStorage().CountDocuments(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVersionNumbersMonotonic(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	doc := saveDoc(t, m, "tenant-a", "hash-1")

	for want := 1; want <= 3; want++ {
		n, err := m.VersionStorage().NextVersionNumber(ctx, "tenant-a", doc.ID)
		require.NoError(t, err)
		assert.Equal(t, want, n)

		require.NoError(t, m.VersionStorage().SaveVersion(ctx, &models.DocumentVersion{
			ID:            common.NewID(common.PrefixVersion),
			TenantID:      "tenant-a",
			DocumentID:    doc.ID,
			VersionNumber: n,
			StorageURI:    "file://x",
		}))
	}

	latest, err := m.VersionStorage().LatestVersion(ctx, "tenant-a", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.VersionNumber)
}

func TestSpanUpsertIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	span := &models.Span{
		ID:                common.NewID(common.PrefixSpan),
		TenantID:          "tenant-a",
		DocumentVersionID: "ver-1",
		TextContent:       "some evidence text",
		Locator:           models.TextLocator(0, 100, 0),
		SpanType:          models.SpanTypeText,
		SpanHash:          models.ComputeSpanHash(models.TextLocator(0, 100, 0), "some evidence text"),
	}

	stored, created, err := m.SpanStorage().UpsertSpan(ctx, span)
	require.NoError(t, err)
	assert.True(t, created)

	// Second insert with a fresh ID but the same hash reuses the first row
	duplicate := *span
	duplicate.ID = common.NewID(common.PrefixSpan)
	again, created, err := m.SpanStorage().UpsertSpan(ctx, &duplicate)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)

	count, err := m.SpanStorage().CountSpansForVersion(ctx, "tenant-a", "ver-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestActiveRunUniqueness(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	run := &models.ExtractionRun{
		ID:                common.NewID(common.PrefixRun),
		TenantID:          "tenant-a",
		DocumentVersionID: "ver-1",
		Status:            models.RunQueued,
		ExtractorName:     "facts",
		ProfileCode:       "vc",
		ProcessContext:    "vc.ic_decision",
		Level:             2,
	}
	require.NoError(t, m.RunStorage().CreateRun(ctx, run))

	// A second active run for the same key fails deterministically
	dup := *run
	dup.ID = common.NewID(common.PrefixRun)
	err := m.RunStorage().CreateRun(ctx, &dup)
	assert.ErrorIs(t, err, interfaces.ErrConflict)

	// A different level is a different key
	other := *run
	other.ID = common.NewID(common.PrefixRun)
	other.Level = 3
	require.NoError(t, m.RunStorage().CreateRun(ctx, &other))

	// Completing the first run frees the key
	run.Status = models.RunCompleted
	require.NoError(t, m.RunStorage().UpdateRun(ctx, run))

	fresh := dup
	fresh.ID = common.NewID(common.PrefixRun)
	require.NoError(t, m.RunStorage().CreateRun(ctx, &fresh))
}

func TestJobTerminalIdempotence(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	job := &models.Job{
		ID:       common.NewID(common.PrefixJob),
		TenantID: "tenant-a",
		Type:     models.JobTypeProcessVersion,
		Status:   models.JobQueued,
		Payload:  map[string]interface{}{},
	}
	require.NoError(t, m.JobStorage().SaveJob(ctx, job))

	job.Status = models.JobCanceled
	require.NoError(t, m.JobStorage().UpdateJob(ctx, job))

	// A terminal job never moves to a different terminal state
	job.Status = models.JobSucceeded
	err := m.JobStorage().UpdateJob(ctx, job)
	assert.ErrorIs(t, err, interfaces.ErrConflict)
}

func TestProjectAttachUniqueness(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	attachment := &models.ProjectDocument{
		ID:         "att-1",
		TenantID:   "tenant-a",
		ProjectID:  "prj-1",
		DocumentID: "doc-1",
	}
	require.NoError(t, m.ProjectStorage().AttachDocument(ctx, attachment))

	dup := *attachment
	dup.ID = "att-2"
	err := m.ProjectStorage().AttachDocument(ctx, &dup)
	assert.ErrorIs(t, err, interfaces.ErrConflict)
}

func TestClaimPendingVersion(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	doc := saveDoc(t, m, "tenant-a", "hash-1")

	version := &models.DocumentVersion{
		ID:            common.NewID(common.PrefixVersion),
		TenantID:      "tenant-a",
		DocumentID:    doc.ID,
		VersionNumber: 1,
		StorageURI:    "file://x",
	}
	require.NoError(t, m.VersionStorage().SaveVersion(ctx, version))

	claimed, err := m.VersionStorage().ClaimPendingVersion(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, version.ID, claimed.ID)
	assert.Equal(t, models.ExtractionProcessing, claimed.ExtractionStatus)

	// Nothing left to claim
	_, err = m.VersionStorage().ClaimPendingVersion(ctx, "worker-2")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestQueueFIFOAndVisibility(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	q := m.QueueStorage()

	_, err := q.Enqueue(ctx, "test:normal", []byte(`{"job_id":"first"}`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "test:normal", []byte(`{"job_id":"second"}`))
	require.NoError(t, err)

	msg, err := q.Receive(ctx, "test:normal")
	require.NoError(t, err)
	assert.Contains(t, string(msg.Body), "first")

	// The claimed message is invisible; the next receive gets the second
	msg2, err := q.Receive(ctx, "test:normal")
	require.NoError(t, err)
	assert.Contains(t, string(msg2.Body), "second")

	_, err = q.Receive(ctx, "test:normal")
	assert.ErrorIs(t, err, ErrNoMessage)

	require.NoError(t, q.Delete(ctx, msg.ID))
	require.NoError(t, q.Delete(ctx, msg2.ID))

	depth, err := q.Depth(ctx, "test:normal")
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestTenantAPIKeyLookup(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	tenant := &models.Tenant{
		ID:         common.NewID(common.PrefixTenant),
		Name:       "Acme",
		Slug:       "acme",
		OwnerEmail: "owner@acme.test",
		IsActive:   true,
	}
	require.NoError(t, m.TenantStorage().SaveTenant(ctx, tenant))

	plaintext := models.GenerateAPIKey()
	key := &models.TenantAPIKey{
		ID:        common.NewID(common.PrefixAPIKey),
		TenantID:  tenant.ID,
		Name:      "test",
		KeyHash:   models.HashAPIKey(plaintext),
		KeyPrefix: plaintext[:models.APIKeyPrefixLength],
		Scopes:    []string{models.ScopeRead},
		IsActive:  true,
	}
	require.NoError(t, m.TenantStorage().SaveAPIKey(ctx, key))

	found, err := m.TenantStorage().GetAPIKeyByHash(ctx, models.HashAPIKey(plaintext))
	require.NoError(t, err)
	assert.Equal(t, key.ID, found.ID)
	assert.Len(t, found.KeyPrefix, models.APIKeyPrefixLength)

	_, err = m.TenantStorage().GetAPIKeyByHash(ctx, models.HashAPIKey("wrong"))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestTenantSlugUnique(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first := &models.Tenant{ID: "ten_1", Name: "A", Slug: "acme", OwnerEmail: "a@x.test"}
	require.NoError(t, m.TenantStorage().SaveTenant(ctx, first))

	second := &models.Tenant{ID: "ten_2", Name: "B", Slug: "acme", OwnerEmail: "b@x.test"}
	err := m.TenantStorage().SaveTenant(ctx, second)
	assert.ErrorIs(t, err, interfaces.ErrConflict)
}
