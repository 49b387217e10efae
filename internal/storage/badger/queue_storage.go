package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ErrNoMessage is returned when no visible message is available
var ErrNoMessage = errors.New("no message")

// QueueMessage is a message stored in the Badger-backed queue. The timestamp
// prefix in the ID gives FIFO ordering within a queue.
type QueueMessage struct {
	ID           string          `json:"id" badgerhold:"key"`
	QueueName    string          `json:"queue_name" badgerhold:"index"`
	Body         json.RawMessage `json:"body"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAt    time.Time       `json:"visible_at" badgerhold:"index"`
	ReceiveCount int             `json:"receive_count"`
}

// QueueStorage is a persistent message queue over badgerhold with FIFO
// ordering, visibility timeouts and redelivery tracking. One instance serves
// all named queues; Receive polls one queue at a time so the worker can poll
// high before normal before low.
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	visibilityTimeout time.Duration
	maxReceive        int

	// Guards the find-then-update in Receive
	mu sync.Mutex
}

// NewQueueStorage creates the queue backing store with defaults; tune via
// Configure before first use.
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) *QueueStorage {
	return &QueueStorage{
		db:                db,
		logger:            logger,
		visibilityTimeout: 30 * time.Second,
		maxReceive:        3,
	}
}

// Configure sets the visibility timeout and max receive count
func (q *QueueStorage) Configure(visibilityTimeout time.Duration, maxReceive int) {
	if visibilityTimeout > 0 {
		q.visibilityTimeout = visibilityTimeout
	}
	if maxReceive > 0 {
		q.maxReceive = maxReceive
	}
}

// Enqueue adds a message to the named queue
func (q *QueueStorage) Enqueue(ctx context.Context, queueName string, body []byte) (string, error) {
	if queueName == "" {
		return "", fmt.Errorf("queue name is required")
	}
	now := time.Now()
	messageID := fmt.Sprintf("%019d:%s", now.UnixNano(), uuid.New().String())

	msg := QueueMessage{
		ID:         messageID,
		QueueName:  queueName,
		Body:       body,
		EnqueuedAt: now,
		VisibleAt:  now,
	}
	if err := q.db.Store().Insert(messageID, &msg); err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}
	return messageID, nil
}

// Receive claims the next visible message from the named queue, extending
// its visibility window by the configured timeout. Returns ErrNoMessage when
// the queue has nothing ready.
func (q *QueueStorage) Receive(ctx context.Context, queueName string) (*QueueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var messages []QueueMessage
	err := q.db.Store().Find(&messages, badgerhold.
		Where("QueueName").Eq(queueName).Index("QueueName").
		And("VisibleAt").Le(now).
		And("ReceiveCount").Lt(q.maxReceive).
		SortBy("ID").
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrNoMessage
	}

	msg := messages[0]
	msg.ReceiveCount++
	msg.VisibleAt = now.Add(q.visibilityTimeout)
	if err := q.db.Store().Update(msg.ID, &msg); err != nil {
		return nil, fmt.Errorf("failed to update message visibility: %w", err)
	}
	return &msg, nil
}

// Delete removes a processed message from the queue
func (q *QueueStorage) Delete(ctx context.Context, messageID string) error {
	if err := q.db.Store().Delete(messageID, &QueueMessage{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Depth returns the number of messages sitting in the named queue
func (q *QueueStorage) Depth(ctx context.Context, queueName string) (int, error) {
	count, err := q.db.Store().Count(&QueueMessage{}, badgerhold.
		Where("QueueName").Eq(queueName).Index("QueueName"))
	if err != nil {
		return 0, fmt.Errorf("failed to count queue messages: %w", err)
	}
	return int(count), nil
}

// PurgeDeadLetters removes messages that exceeded max receives, returning
// their IDs for logging
func (q *QueueStorage) PurgeDeadLetters(ctx context.Context, queueName string) ([]string, error) {
	var messages []QueueMessage
	err := q.db.Store().Find(&messages, badgerhold.
		Where("QueueName").Eq(queueName).Index("QueueName").
		And("ReceiveCount").Ge(q.maxReceive))
	if err != nil {
		return nil, fmt.Errorf("failed to find dead letters: %w", err)
	}
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if err := q.Delete(ctx, msg.ID); err != nil {
			return ids, err
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}
