package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *badgerstore.Manager) {
	t.Helper()
	manager, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewAnalyzer(manager.FactStorage(), manager.QualityStorage(), common.GetLogger()), manager
}

func floatPtr(v float64) *float64 { return &v }

func testVersion() *models.DocumentVersion {
	return &models.DocumentVersion{ID: "ver-1", TenantID: "tenant-a"}
}

func saveMetric(t *testing.T, m *badgerstore.Manager, entity, name string, value float64) *models.Metric {
	t.Helper()
	metric := &models.Metric{
		ID: common.NewID(common.PrefixMetric),
		FactBase: models.FactBase{
			TenantID:          "tenant-a",
			DocumentVersionID: "ver-1",
			ExtractionRunID:   "run-1",
			SourceReliability: models.ReliabilityOfficial,
		},
		EntityID:     entity,
		MetricName:   name,
		ValueNumeric: floatPtr(value),
		AsOf:         nil,
	}
	require.NoError(t, m.FactStorage().SaveMetric(context.Background(), metric))
	return metric
}

func TestMetricMetricConflictHighSeverity(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)
	ctx := context.Background()

	// 1000 vs 500 is a 50% disagreement - high severity
	saveMetric(t, manager, "acme", "revenue", 1000)
	saveMetric(t, manager, "acme", "revenue", 500)

	result, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ConflictsFound)

	conflicts, err := manager.QualityStorage().ListConflictsForVersion(ctx, "tenant-a", "ver-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictMetricMetric, conflicts[0].ConflictType)
	assert.Equal(t, models.ConflictSeverityHigh, conflicts[0].Severity)
}

func TestMetricMetricConflictMediumSeverity(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)
	ctx := context.Background()

	// 1000 vs 850 is a 15% disagreement - medium severity
	saveMetric(t, manager, "acme", "revenue", 1000)
	saveMetric(t, manager, "acme", "revenue", 850)

	_, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)

	conflicts, err := manager.QualityStorage().ListConflictsForVersion(ctx, "tenant-a", "ver-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictSeverityMedium, conflicts[0].Severity)
}

func TestNoConflictOnSmallDisagreement(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)
	ctx := context.Background()

	// Under 10% apart - no conflict
	saveMetric(t, manager, "acme", "revenue", 1000)
	saveMetric(t, manager, "acme", "revenue", 960)

	result, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)
	assert.Zero(t, result.ConflictsFound)
}

func TestNoConflictAcrossEntities(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)

	saveMetric(t, manager, "acme", "revenue", 1000)
	saveMetric(t, manager, "globex", "revenue", 500)

	result, err := analyzer.Analyze(context.Background(), testVersion(), "")
	require.NoError(t, err)
	assert.Zero(t, result.ConflictsFound)
}

func TestClaimClaimConflict(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)
	ctx := context.Background()

	for _, hq := range []string{"Berlin", "Munich"} {
		claim := &models.Claim{
			ID: common.NewID(common.PrefixClaim),
			FactBase: models.FactBase{
				TenantID:          "tenant-a",
				DocumentVersionID: "ver-1",
				ExtractionRunID:   "run-1",
			},
			Subject:   map[string]interface{}{"name": "Acme"},
			Predicate: "operates_in",
			Object:    map[string]interface{}{"name": hq},
		}
		require.NoError(t, manager.FactStorage().SaveClaim(ctx, claim))
	}

	_, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)

	conflicts, err := manager.QualityStorage().ListConflictsForVersion(ctx, "tenant-a", "ver-1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictClaimClaim, conflicts[0].ConflictType)
}

// Re-running the analyzer over the same fact set creates no duplicates
func TestAnalyzeIdempotent(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)
	ctx := context.Background()

	saveMetric(t, manager, "acme", "revenue", 1000)
	saveMetric(t, manager, "acme", "revenue", 500)

	first, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ConflictsNew)

	second, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, second.ConflictsFound)
	assert.Zero(t, second.ConflictsNew)

	conflicts, err := manager.QualityStorage().ListConflictsForVersion(ctx, "tenant-a", "ver-1")
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestOpenQuestionsForGaps(t *testing.T) {
	analyzer, manager := newTestAnalyzer(t)
	ctx := context.Background()

	// Unparseable value plus unknown reliability plus missing period
	metric := &models.Metric{
		ID: common.NewID(common.PrefixMetric),
		FactBase: models.FactBase{
			TenantID:          "tenant-a",
			DocumentVersionID: "ver-1",
			ExtractionRunID:   "run-1",
			SourceReliability: models.ReliabilityUnknown,
		},
		MetricName: "revenue",
		ValueRaw:   "around a billion-ish",
	}
	require.NoError(t, manager.FactStorage().SaveMetric(ctx, metric))

	result, err := analyzer.Analyze(ctx, testVersion(), "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.QuestionsFound, 2)

	questions, err := manager.QualityStorage().ListQuestionsForVersion(ctx, "tenant-a", "ver-1")
	require.NoError(t, err)

	categories := map[models.QuestionCategory]bool{}
	for _, q := range questions {
		categories[q.Category] = true
	}
	assert.True(t, categories[models.QuestionAmbiguous])
	assert.True(t, categories[models.QuestionVerification])
}

func TestRelativeDelta(t *testing.T) {
	assert.InDelta(t, 0.5, relativeDelta(1000, 500), 1e-9)
	assert.InDelta(t, 0.0, relativeDelta(0, 0), 1e-9)
	assert.InDelta(t, 1.0, relativeDelta(0, 100), 1e-9)
}
