// Package async moves event publishing off the request path. Events are
// queued and handed to the wrapped publisher by a pool of background
// workers, so a slow broker never delays a chat reply.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/cometx/pkg/eventstream"
	"github.com/papercomputeco/cometx/pkg/logger"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 256
)

var (
	// ErrQueueFull is returned when an event is dropped because the queue is full.
	ErrQueueFull = errors.New("async publisher: queue full, event dropped")

	// ErrClosed is returned for events published after Close.
	ErrClosed = errors.New("async publisher: closed")
)

// Config is the configuration options for the async publisher.
type Config struct {
	// Publisher receives the events. It is closed by Close.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Publisher is an eventstream.Publisher that publishes through a worker pool.
type Publisher struct {
	inner  eventstream.Publisher
	queue  chan *eventstream.ChatCompletedEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a new Publisher and starts its worker goroutines.
func NewPublisher(c Config) (*Publisher, error) {
	if c.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Publisher{
		inner:  c.Publisher,
		queue:  make(chan *eventstream.ChatCompletedEvent, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// PublishChat queues event for publishing. It never blocks: when the queue
// is full the event is dropped and ErrQueueFull is returned.
func (p *Publisher) PublishChat(_ context.Context, event *eventstream.ChatCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilChatEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			"event_id", event.EventID,
			"conversation_id", event.ConversationID,
		)
		return nil
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			"event_id", event.EventID,
			"conversation_id", event.ConversationID,
		)
		return ErrQueueFull
	}
}

// Close stops accepting events, waits for queued events to be published and
// closes the wrapped publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.inner.Close()
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Publisher) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("publish worker started", "worker_id", id)

	for event := range p.queue {
		if err := p.inner.PublishChat(context.Background(), event); err != nil {
			p.logger.Warn("async publish failed",
				"event_id", event.EventID,
				"conversation_id", event.ConversationID,
				"error", err,
			)
		}
	}

	p.logger.Debug("publish worker stopped", "worker_id", id)
}
