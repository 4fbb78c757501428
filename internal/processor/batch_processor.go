package processor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"listmyspace/server/config"
	"listmyspace/server/internal/models"
	"listmyspace/server/internal/queue"
)

// Transactor is the part of *gorm.DB the processor needs
type Transactor interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// BatchProcessor persists notification batches taken from the queue
type BatchProcessor struct {
	db        Transactor
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.NotificationQueue
	work      chan []*models.Notification
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db Transactor, queue *queue.NotificationQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
		work:   make(chan []*models.Notification),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the writers and subscribes them to the queue
func (p *BatchProcessor) Start() {
	count := p.config.BatchProcessing.ProcessorCount
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		p.waitGroup.Add(1)
		go p.processLoop(i)
	}
	p.queue.Subscribe(p.dispatch)
}

// Stop gracefully shuts down the processor. Close the queue first so pending batches are handed over.
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

// dispatch hands a batch to the next free writer
func (p *BatchProcessor) dispatch(batch []*models.Notification) error {
	select {
	case p.work <- batch:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("processor stopped, dropping %d notifications: %w", len(batch), p.ctx.Err())
	}
}

// processLoop handles the continuous processing of batches
func (p *BatchProcessor) processLoop(worker int) {
	defer p.waitGroup.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case batch := <-p.work:
			if err := p.processBatch(batch); err != nil {
				p.logger.WithError(err).WithFields(logrus.Fields{
					"worker":     worker,
					"batch_size": len(batch),
				}).Error("Dropping notification batch")
			}
		}
	}
}

// processBatch writes a batch in one transaction, retrying on failure
func (p *BatchProcessor) processBatch(batch []*models.Notification) error {
	size := p.config.BatchProcessing.MaxBatchSize
	if size < 1 {
		size = 100
	}
	attempts := p.config.BatchProcessing.MaxRetries + 1

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			p.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, attempts)
			select {
			case <-p.ctx.Done():
				return fmt.Errorf("processor stopped while retrying: %w", err)
			case <-time.After(p.config.RetryDelay()):
			}
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.CreateInBatches(batch, size).Error; err != nil {
				return fmt.Errorf("failed to insert notification batch: %w", err)
			}
			return nil
		})

		if err == nil {
			p.logger.Debugf("Successfully processed batch of %d notifications", len(batch))
			return nil
		}

		p.logger.Errorf("Batch processing failed: %v", err)
	}

	return fmt.Errorf("failed to process batch after %d attempts: %w", attempts, err)
}
