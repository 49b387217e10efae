package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	badgerstore "github.com/ternarybob/indicium/internal/storage/badger"
)

func newTestService(t *testing.T) (*Service, *Dispatcher) {
	t.Helper()
	manager, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	dispatcher := NewDispatcher(common.GetLogger())
	service := NewService(manager.JobStorage(), manager.QueueStorage(), dispatcher, &common.QueueConfig{
		PollInterval:      "10ms",
		Concurrency:       1,
		VisibilityTimeout: "1m",
		MaxReceive:        3,
		QueueName:         "test",
		JobTimeout:        "30s",
		ResultTTL:         "1h",
	}, common.GetLogger())
	return service, dispatcher
}

func TestPriorityOrdering(t *testing.T) {
	service, dispatcher := newTestService(t)
	ctx := context.Background()

	var order []int
	dispatcher.Register(models.JobTypeCleanup, []string{"n"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			order = append(order, job.Priority)
			return nil, nil
		})

	// Enqueue low, normal, high - pickup order is high, normal, low
	for _, priority := range []int{-5, 0, 15} {
		_, err := service.Enqueue(ctx, "tenant-a", models.JobTypeCleanup, map[string]interface{}{}, priority, 1)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		processed, err := service.ProcessNext(ctx, "test-worker")
		require.NoError(t, err)
		assert.True(t, processed)
	}
	assert.Equal(t, []int{15, 0, -5}, order)

	processed, err := service.ProcessNext(ctx, "test-worker")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestJobLifecycleSuccess(t *testing.T) {
	service, dispatcher := newTestService(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a", ActorID: "tester"}

	dispatcher.Register(models.JobTypeCleanup, []string{"value"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			report(50, "halfway")
			return map[string]interface{}{"echo": payload["value"]}, nil
		})

	job, err := service.Enqueue(ctx, "tenant-a", models.JobTypeCleanup, map[string]interface{}{
		"value":     "hello",
		"ancillary": "ignored by handler",
	}, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)

	processed, err := service.ProcessNext(ctx, "test-worker")
	require.NoError(t, err)
	require.True(t, processed)

	done, err := service.Get(ctx, principal, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, 1, done.Attempts)
	assert.Equal(t, "hello", done.Result["echo"])
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
}

func TestJobFailureRecordsError(t *testing.T) {
	service, dispatcher := newTestService(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a"}

	dispatcher.Register(models.JobTypeCleanup, nil,
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			return nil, fmt.Errorf("handler exploded")
		})

	job, err := service.Enqueue(ctx, "tenant-a", models.JobTypeCleanup, nil, 0, 3)
	require.NoError(t, err)

	_, err = service.ProcessNext(ctx, "test-worker")
	require.NoError(t, err)

	failed, err := service.Get(ctx, principal, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Contains(t, failed.Error, "handler exploded")
	assert.True(t, failed.CanRetry())
}

func TestRetryBoundedness(t *testing.T) {
	service, dispatcher := newTestService(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a"}

	dispatcher.Register(models.JobTypeCleanup, nil,
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			return nil, fmt.Errorf("always fails")
		})

	job, err := service.Enqueue(ctx, "tenant-a", models.JobTypeCleanup, nil, 0, 2)
	require.NoError(t, err)

	// First attempt
	_, err = service.ProcessNext(ctx, "w")
	require.NoError(t, err)
	current, err := service.Get(ctx, principal, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Attempts)
	assert.True(t, current.CanRetry())

	// Retry consumes the second and final attempt
	_, err = service.Retry(ctx, principal, job.ID)
	require.NoError(t, err)
	_, err = service.ProcessNext(ctx, "w")
	require.NoError(t, err)

	current, err = service.Get(ctx, principal, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Attempts)
	assert.False(t, current.CanRetry())

	// No further retry is accepted
	_, err = service.Retry(ctx, principal, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrConflict)
}

func TestCancelBeforePickup(t *testing.T) {
	service, dispatcher := newTestService(t)
	ctx := context.Background()
	principal := models.Principal{TenantID: "tenant-a"}

	ran := false
	dispatcher.Register(models.JobTypeCleanup, nil,
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			ran = true
			return nil, nil
		})

	job, err := service.Enqueue(ctx, "tenant-a", models.JobTypeCleanup, nil, 0, 3)
	require.NoError(t, err)

	canceled, err := service.Cancel(ctx, principal, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCanceled, canceled.Status)

	// The worker drains the message but never runs the handler
	processed, err := service.ProcessNext(ctx, "w")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.False(t, ran)

	// Terminal state is sticky
	final, err := service.Get(ctx, principal, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCanceled, final.Status)
}

func TestJobTenantScoping(t *testing.T) {
	service, dispatcher := newTestService(t)
	ctx := context.Background()
	dispatcher.Register(models.JobTypeCleanup, nil,
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			return nil, nil
		})

	job, err := service.Enqueue(ctx, "tenant-a", models.JobTypeCleanup, nil, 0, 1)
	require.NoError(t, err)

	_, err = service.Get(ctx, models.Principal{TenantID: "tenant-b"}, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDispatcherFiltersPayload(t *testing.T) {
	_, dispatcher := newTestService(t)

	var received map[string]interface{}
	dispatcher.Register(models.JobTypeCleanup, []string{"wanted"},
		func(ctx context.Context, job *models.Job, payload map[string]interface{}, report ProgressFunc) (map[string]interface{}, error) {
			received = payload
			return nil, nil
		})

	job := &models.Job{
		ID:       "job-1",
		TenantID: "tenant-a",
		Type:     models.JobTypeCleanup,
		Payload: map[string]interface{}{
			"wanted":   "yes",
			"unwanted": "no",
		},
	}
	_, err := dispatcher.Dispatch(context.Background(), job, func(int, string) {})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"wanted": "yes"}, received)
}

func TestUnknownJobTypeRejected(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Enqueue(context.Background(), "tenant-a", "no_such_type", nil, 0, 1)
	assert.Error(t, err)
}
