package chat

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Saver durably appends a message.
type Saver interface {
	Save(ctx context.Context, msg Message) error
}

// ArchiverConfig sizes the persistence queue.
type ArchiverConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Archiver writes messages to a Saver from a bounded queue drained by
// background workers. Submit never blocks: when the queue is full or the
// archiver is stopped the message is logged and dropped. Failed writes are
// logged and not retried.
type Archiver struct {
	saver   Saver
	queue   chan Message
	workers int
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewArchiver creates an archiver. Zero config values fall back to a queue
// of 1024, one worker and a five second write timeout.
func NewArchiver(saver Saver, cfg ArchiverConfig, logger logrus.FieldLogger) *Archiver {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Archiver{
		saver:   saver,
		queue:   make(chan Message, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		log:     logger,
	}
}

// Start launches the workers.
func (a *Archiver) Start() {
	for i := 0; i < a.workers; i++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for msg := range a.queue {
				a.write(msg)
			}
		}()
	}
}

// Submit enqueues msg for persistence.
func (a *Archiver) Submit(msg Message) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopped {
		a.log.WithField("id", msg.ID).Warn("Archiver stopped; message not persisted")
		return
	}

	select {
	case a.queue <- msg:
	default:
		a.log.WithField("id", msg.ID).Warn("Persistence queue full; message not persisted")
	}
}

// Stop closes the queue and waits for the workers to drain it or for ctx to
// expire.
func (a *Archiver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.stopped {
		a.stopped = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Archiver) write(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.saver.Save(ctx, msg); err != nil {
		a.log.WithFields(logrus.Fields{
			"id":   msg.ID,
			"from": msg.From,
			"room": msg.Room,
			"to":   msg.To,
		}).WithError(err).Error("Failed to persist message")
	}
}
