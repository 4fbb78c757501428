package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"listmyspace/server/internal/models"
)

func notification(title string) *models.Notification {
	return &models.Notification{UserID: 1, Type: models.NotifyNewMessage, Title: title}
}

func TestNewNotificationQueue(t *testing.T) {
	logger := logrus.New()
	q := NewNotificationQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestNotificationQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewNotificationQueue(2, logger)

	// Test successful push
	batch := []*models.Notification{notification("test1")}
	err := q.Push(batch)
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Empty batches are ignored
	assert.NoError(t, q.Push(nil))
	assert.Equal(t, 1, q.Len())

	// Test queue full
	assert.NoError(t, q.Notify(notification("test2")))
	err = q.Push(batch)
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(batch)
	assert.Equal(t, ErrQueueClosed, err)
}

func TestNotificationQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewNotificationQueue(10, logger)

	var processed []*models.Notification
	var mu sync.Mutex

	q.Subscribe(func(batch []*models.Notification) error {
		mu.Lock()
		processed = append(processed, batch...)
		mu.Unlock()
		return nil
	})

	q.Start()

	err := q.Push([]*models.Notification{notification("test1"), notification("test2")})
	assert.NoError(t, err)

	// Wait for processing
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, len(processed))
	assert.Equal(t, "test1", processed[0].Title)
	assert.Equal(t, "test2", processed[1].Title)
	mu.Unlock()
}

func TestNotificationQueue_CloseDrains(t *testing.T) {
	logger := logrus.New()
	q := NewNotificationQueue(10, logger)

	var count int
	var mu sync.Mutex
	q.Subscribe(func(batch []*models.Notification) error {
		mu.Lock()
		count += len(batch)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		assert.NoError(t, q.Notify(notification("queued")))
	}
	q.Start()

	// Test first close
	assert.NoError(t, q.Close())
	assert.True(t, q.IsClosed())

	mu.Lock()
	assert.Equal(t, 5, count)
	mu.Unlock()

	// Test second close (should be no-op)
	assert.NoError(t, q.Close())
}

func TestNotificationQueue_ProcessBatch(t *testing.T) {
	logger := logrus.New()
	q := NewNotificationQueue(10, logger)

	var wg sync.WaitGroup
	processedBatches := 0
	var mu sync.Mutex

	// Add multiple handlers; a failing one does not stop the others
	for i := 0; i < 3; i++ {
		wg.Add(1)
		fail := i == 0
		q.Subscribe(func(batch []*models.Notification) error {
			mu.Lock()
			processedBatches++
			mu.Unlock()
			wg.Done()
			if fail {
				return errors.New("handler failed")
			}
			return nil
		})
	}

	q.Start()

	err := q.Push([]*models.Notification{notification("test")})
	assert.NoError(t, err)

	wg.Wait()

	mu.Lock()
	assert.Equal(t, 3, processedBatches)
	mu.Unlock()
}

func TestNotificationQueue_ConcurrentPushAndClose(t *testing.T) {
	q := NewNotificationQueue(1000, logrus.New())
	q.Start()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := q.Notify(notification("race"))
				if err != nil && !errors.Is(err, ErrQueueClosed) && !errors.Is(err, ErrQueueFull) {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}
	q.Close()
	wg.Wait()
	assert.True(t, q.IsClosed())
}
