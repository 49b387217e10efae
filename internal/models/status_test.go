package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingStatusOrder(t *testing.T) {
	// Forward transitions along the pipeline are legal
	assert.True(t, ProcessingUploaded.CanAdvanceTo(ProcessingExtracted))
	assert.True(t, ProcessingExtracted.CanAdvanceTo(ProcessingSpansBuilt))
	assert.True(t, ProcessingSpansBuilt.CanAdvanceTo(ProcessingEmbedded))
	assert.True(t, ProcessingEmbedded.CanAdvanceTo(ProcessingFactsExtracted))
	assert.True(t, ProcessingFactsExtracted.CanAdvanceTo(ProcessingQualityChecked))

	// Skipping stages forward is still a forward move
	assert.True(t, ProcessingUploaded.CanAdvanceTo(ProcessingEmbedded))

	// Backward transitions are rejected
	assert.False(t, ProcessingEmbedded.CanAdvanceTo(ProcessingExtracted))
	assert.False(t, ProcessingQualityChecked.CanAdvanceTo(ProcessingUploaded))
	assert.False(t, ProcessingExtracted.CanAdvanceTo(ProcessingExtracted))
}

func TestProcessingStatusFailed(t *testing.T) {
	// FAILED is reachable from every non-final stage
	assert.True(t, ProcessingUploaded.CanAdvanceTo(ProcessingFailed))
	assert.True(t, ProcessingFactsExtracted.CanAdvanceTo(ProcessingFailed))
	// A fully processed version does not fail retroactively
	assert.False(t, ProcessingQualityChecked.CanAdvanceTo(ProcessingFailed))
}

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, QueueHigh, QueueForPriority(10))
	assert.Equal(t, QueueHigh, QueueForPriority(15))
	assert.Equal(t, QueueNormal, QueueForPriority(0))
	assert.Equal(t, QueueNormal, QueueForPriority(9))
	assert.Equal(t, QueueLow, QueueForPriority(-1))
	assert.Equal(t, QueueLow, QueueForPriority(-5))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobSucceeded.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
	assert.True(t, JobCanceled.IsTerminal())
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.False(t, JobRetrying.IsTerminal())
}

func TestSpanTypeEmbeddable(t *testing.T) {
	assert.True(t, SpanTypeText.IsEmbeddable())
	assert.True(t, SpanTypeHeading.IsEmbeddable())
	assert.True(t, SpanTypeCitation.IsEmbeddable())
	assert.True(t, SpanTypeFootnote.IsEmbeddable())
	assert.False(t, SpanTypeTable.IsEmbeddable())
	assert.False(t, SpanTypeFigure.IsEmbeddable())
	assert.False(t, SpanTypeOther.IsEmbeddable())
}

func TestDeletionOrderLevels(t *testing.T) {
	// Storage first, document record last
	assert.Equal(t, 1, DeletionOrder[TaskStorageFile])
	assert.Equal(t, 9, DeletionOrder[TaskDocumentRecord])

	// Fact tasks share a level and may run concurrently
	assert.Equal(t, DeletionOrder[TaskFactsClaims], DeletionOrder[TaskFactsMetrics])
	assert.Equal(t, DeletionOrder[TaskFactsClaims], DeletionOrder[TaskFactsRisks])

	// Dependencies delete before dependents
	assert.Less(t, DeletionOrder[TaskEmbeddingChunks], DeletionOrder[TaskSpans])
	assert.Less(t, DeletionOrder[TaskSpans], DeletionOrder[TaskFactsClaims])
	assert.Less(t, DeletionOrder[TaskExtractionRuns], DeletionOrder[TaskProjectDocuments])
	assert.Less(t, DeletionOrder[TaskDocumentVersions], DeletionOrder[TaskDocumentRecord])
}
