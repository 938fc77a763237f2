package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

var errShuttingDown = errors.New("publisher shutdown during batch processing")

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		PollInterval: time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
	}
}

// Publisher drains the outbox table into the producer. Tasks are claimed as PROCESSING in one
// transaction and sent outside it, so a slow broker never holds row locks.
type Publisher struct {
	db             db.DB
	repo           storage.OutboxTaskRepository
	producer       Producer
	config         PublisherConfig
	logger         *zap.Logger
	timeNow        func() time.Time
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewPublisher(database db.DB, repo storage.OutboxTaskRepository, producer Producer, config PublisherConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		db:             database,
		repo:           repo,
		producer:       producer,
		config:         config,
		logger:         logger.With(zap.String("component", "outbox_publisher")),
		timeNow:        time.Now,
		shutdownSignal: make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or Shutdown is called.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("Starting outbox publisher", zap.Duration("poll_interval", p.config.PollInterval))
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil && !errors.Is(err, errShuttingDown) {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		case <-p.shutdownSignal:
			p.logger.Info("Outbox publisher received shutdown signal, stopping")
			return
		case <-ctx.Done():
			p.logger.Info("Outbox publisher context cancelled, stopping")
			return
		}
	}
}

// Shutdown stops the poll loop, waits for the in-flight batch and closes the producer.
func (p *Publisher) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.shutdownSignal)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("Outbox publisher shutdown complete")
		case <-ctx.Done():
			p.logger.Warn("Outbox publisher shutdown timed out")
			err = ctx.Err()
		}

		if closeErr := p.producer.Close(); closeErr != nil {
			p.logger.Error("Failed to close producer", zap.Error(closeErr))
			err = errors.Join(err, closeErr)
		}
	})
	return err
}

func (p *Publisher) processBatch(ctx context.Context) error {
	tasks, err := p.claimTasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	p.logger.Debug("Fetched outbox tasks", zap.Int("count", len(tasks)))

	for i, task := range tasks {
		select {
		case <-p.shutdownSignal:
			p.logger.Info("Shutdown during batch, releasing unsent tasks", zap.Int("count", len(tasks)-i))
			p.releaseTasks(ctx, tasks[i:])
			return errShuttingDown
		case <-ctx.Done():
			p.releaseTasks(ctx, tasks[i:])
			return ctx.Err()
		default:
		}

		if err := p.processSingleTask(ctx, task); err != nil {
			p.logger.Warn("Failed to process outbox task", zap.Stringer("task_id", task.ID), zap.Error(err))
		}
	}
	return nil
}

// releaseTasks puts claimed but unsent tasks back to CREATED so the next run picks them up.
// Anything not released here is reclaimed once its processing lease expires.
func (p *Publisher) releaseTasks(ctx context.Context, tasks []*repository.OutboxTask) {
	ctx = context.WithoutCancel(ctx)
	for _, task := range tasks {
		if err := p.repo.UpdateTaskStatus(ctx, task.ID, repository.TaskStatusCreated, task.Attempts, task.LastError, nil); err != nil {
			p.logger.Warn("Failed to release outbox task", zap.Stringer("task_id", task.ID), zap.Error(err))
		}
	}
}

func (p *Publisher) claimTasks(ctx context.Context) ([]*repository.OutboxTask, error) {
	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for fetching tasks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	tasks, err := p.repo.GetProcessableTasksTx(ctx, tx, p.config.BatchSize, p.config.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to get processable tasks: %w", err)
	}

	for _, task := range tasks {
		err := p.repo.UpdateTaskStatusTx(ctx, tx, task.ID, repository.TaskStatusProcessing, task.Attempts, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to mark task %s as PROCESSING: %w", task.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claimed tasks: %w", err)
	}
	return tasks, nil
}

func (p *Publisher) processSingleTask(ctx context.Context, task *repository.OutboxTask) error {
	key := []byte(task.Key)
	if len(key) == 0 {
		key = []byte(task.ID.String())
	}

	if err := p.producer.SendMessage(ctx, task.Topic, key, task.Payload); err != nil {
		metrics.OutboxTasksPublished.WithLabelValues("failed").Inc()

		attempts := task.Attempts + 1
		errMsg := err.Error()
		if attempts >= p.config.MaxAttempts {
			p.logger.Error("Outbox task reached max attempts",
				zap.Stringer("task_id", task.ID), zap.Int("attempts", attempts), zap.Error(err))
		}

		if updateErr := p.repo.UpdateTaskStatus(ctx, task.ID, repository.TaskStatusFailed, attempts, &errMsg, nil); updateErr != nil {
			return fmt.Errorf("failed to update task status after send failure: %w", updateErr)
		}
		return err
	}

	metrics.OutboxTasksPublished.WithLabelValues("done").Inc()

	now := p.timeNow().UTC()
	if err := p.repo.UpdateTaskStatus(ctx, task.ID, repository.TaskStatusDone, task.Attempts, nil, &now); err != nil {
		return fmt.Errorf("failed to update task status after successful send: %w", err)
	}
	return nil
}
