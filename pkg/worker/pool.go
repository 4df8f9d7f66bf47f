// Package worker provides an asynchronous worker pool for persisting decoded
// messages using the provided storage.Store and publishing message events
// using the provided eventstream.Publisher.
//
// The pool decouples persistence from the decode hot path so that token
// delivery to the sink never waits on storage.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/eventstream"
	"github.com/xenophobed/isastream/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	SessionID string
	Source    eventstream.EventSource
	Message   chat.Message
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Store is the storage backend for persisting messages.
	Store storage.Store

	// Publisher is the optional eventstream publisher. When set, every newly
	// stored message is also published as a MessageReceivedEvent.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes persistence jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("session_id", job.SessionID),
			zap.String("message_id", job.Message.ID),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("session_id", job.SessionID),
			zap.String("message_id", job.Message.ID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the stream has been fully decoded.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("persistence worker stopped", zap.Uint("worker_id", id))
}

// processJob persists the message and publishes an event for newly stored
// messages. Errors are logged but never propagated to the decode path.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	isNew, err := p.config.Store.Put(ctx, job.SessionID, &job.Message)
	if err != nil {
		p.logger.Error("async message storage failed",
			zap.String("session_id", job.SessionID),
			zap.String("message_id", job.Message.ID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("message stored",
		zap.String("session_id", job.SessionID),
		zap.String("message_id", job.Message.ID),
		zap.Bool("is_new", isNew),
	)

	// Only newly stored messages produce events; duplicate puts are retries.
	if p.config.Publisher != nil && isNew {
		event := eventstream.NewMessageReceivedEvent(job.Source, job.Message)
		if err := p.config.Publisher.PublishMessage(ctx, event); err != nil {
			p.logger.Warn("failed to publish message event",
				zap.String("message_id", job.Message.ID),
				zap.Error(err),
			)
			return
		}

		p.logger.Debug("message event published",
			zap.String("event_id", event.EventID),
			zap.String("message_id", job.Message.ID),
		)
	}
}
