package processor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"listmyspace/server/config"
	"listmyspace/server/internal/database"
	"listmyspace/server/internal/models"
	"listmyspace/server/internal/queue"
)

// MockDB is a mock implementation of *gorm.DB
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error {
	args := m.Called(fc)
	return args.Error(0)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.BatchProcessing.ProcessorCount = 2
	cfg.BatchProcessing.MaxRetries = 3
	cfg.BatchProcessing.MaxBatchSize = 50
	cfg.BatchProcessing.RetryDelay = 0
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewBatchProcessor(t *testing.T) {
	mockDB := &MockDB{}
	mockQueue := queue.NewNotificationQueue(10, nil)
	cfg := testConfig()
	logger := logrus.New()

	processor := NewBatchProcessor(mockDB, mockQueue, cfg, logger)

	assert.NotNil(t, processor)
	assert.Equal(t, mockDB, processor.db)
	assert.Equal(t, mockQueue, processor.queue)
	assert.Equal(t, cfg, processor.config)
	assert.Equal(t, logger, processor.logger)
}

func TestBatchProcessor_ProcessBatch(t *testing.T) {
	mockDB := &MockDB{}
	processor := NewBatchProcessor(mockDB, queue.NewNotificationQueue(10, nil), testConfig(), quietLogger())

	batch := []*models.Notification{
		{UserID: 1, Type: models.NotifyPriceChange, Title: "Price dropped"},
		{UserID: 2, Type: models.NotifyPriceChange, Title: "Price dropped"},
	}

	// Test successful processing
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()
	err := processor.processBatch(batch)
	assert.NoError(t, err)

	// Test retry on failure: one attempt plus three retries
	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error")).Times(4)
	err = processor.processBatch(batch)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process batch after 4 attempts")
	mockDB.AssertNumberOfCalls(t, "Transaction", 5)
}

func TestBatchProcessor_RecoversAfterRetry(t *testing.T) {
	mockDB := &MockDB{}
	processor := NewBatchProcessor(mockDB, queue.NewNotificationQueue(10, nil), testConfig(), quietLogger())

	mockDB.On("Transaction", mock.Anything).Return(errors.New("database is locked")).Once()
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()

	err := processor.processBatch([]*models.Notification{{UserID: 1, Type: models.NotifyNewReview, Title: "New review"}})
	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
}

func TestBatchProcessor_StartStop(t *testing.T) {
	mockDB := &MockDB{}
	mockQueue := queue.NewNotificationQueue(10, nil)
	processor := NewBatchProcessor(mockDB, mockQueue, testConfig(), quietLogger())

	processor.Start()
	time.Sleep(50 * time.Millisecond)

	processor.Stop()
	assert.ErrorIs(t, processor.dispatch([]*models.Notification{{UserID: 1}}), context.Canceled)

	mockQueue.Close()
	assert.True(t, mockQueue.IsClosed())
}

func TestBatchProcessingIntegration(t *testing.T) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	defer db.Close()

	notifications := queue.NewNotificationQueue(10, quietLogger())
	processor := NewBatchProcessor(db.DB(), notifications, testConfig(), quietLogger())
	processor.Start()
	notifications.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, notifications.Push([]*models.Notification{
			{UserID: 7, Type: models.NotifyNewMessage, Title: "New message"},
			{UserID: 8, Type: models.NotifyNewMessage, Title: "New message"},
		}))
	}

	// closing the queue hands every pending batch to the writers
	require.NoError(t, notifications.Close())

	assert.Eventually(t, func() bool {
		var count int64
		db.DB().Model(&models.Notification{}).Count(&count)
		return count == 6
	}, 2*time.Second, 20*time.Millisecond)

	processor.Stop()

	stored, err := db.ListNotifications(context.Background(), 7, true)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}
