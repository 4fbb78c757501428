package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"listmyspace/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// NotificationQueue is an in-memory queue of notification batches
type NotificationQueue struct {
	items    chan []*models.Notification
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	logger   *logrus.Logger
	handlers []func([]*models.Notification) error
}

// NewNotificationQueue creates a queue holding at most bufferSize pending batches
func NewNotificationQueue(bufferSize int, logger *logrus.Logger) *NotificationQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotificationQueue{
		items:    make(chan []*models.Notification, bufferSize),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]*models.Notification) error, 0),
	}
}

// Push adds a batch of notifications to the queue
func (q *NotificationQueue) Push(notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	// the read lock keeps Close from closing the channel mid-send
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- notifications:
		q.logger.WithField("batch_size", len(notifications)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Notify queues a single notification
func (q *NotificationQueue) Notify(n *models.Notification) error {
	return q.Push([]*models.Notification{n})
}

// Subscribe adds a handler function that will be called for each batch
func (q *NotificationQueue) Subscribe(handler func([]*models.Notification) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *NotificationQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.process()
}

// process delivers batches until the queue is closed and drained
func (q *NotificationQueue) process() {
	defer q.wg.Done()
	for batch := range q.items {
		q.processBatch(batch)
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *NotificationQueue) processBatch(batch []*models.Notification) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).WithField("batch_size", len(batch)).Error("Handler failed to process batch")
		}
	}
}

// Close stops accepting batches and waits for queued ones to be handled
func (q *NotificationQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of batches in the queue
func (q *NotificationQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *NotificationQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
