// Package audit records every access attempt against the resource store as
// an append-only trail. Writes are fire-and-forget relative to the caller:
// the facade never blocks its response on an audit write, and a lost entry
// is logged locally rather than failing the primary operation.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome of the attempted operation.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Entry is one immutable audit record. Entries are never updated or deleted.
type Entry struct {
	ID           uuid.UUID         `json:"id"`
	Recorded     time.Time         `json:"recorded"`
	ActorID      string            `json:"actor_id"`
	ActorRole    string            `json:"actor_role"`
	Action       string            `json:"action"` // CREATE/READ/UPDATE/SEARCH
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Outcome      string            `json:"outcome"`
	Details      map[string]string `json:"details,omitempty"`
}

// Sink persists audit entries. Implementations must tolerate being called
// from a single background goroutine.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Entry) error

func (f SinkFunc) Write(ctx context.Context, e Entry) error { return f(ctx, e) }

const defaultQueueSize = 1024

// Logger buffers entries on a bounded queue drained by one worker. When the
// queue is full the new entry is dropped and counted; blocking the request
// path on audit capacity would invert the availability trade-off the facade
// promises.
type Logger struct {
	queue   chan Entry
	sink    Sink
	log     zerolog.Logger
	wg      sync.WaitGroup
	pending sync.WaitGroup
	dropped atomic.Uint64

	// mu serializes enqueue against Close so an entry can never be offered
	// to a closed queue.
	mu     sync.Mutex
	closed bool
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	queueSize int
}

// WithQueueSize overrides the queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// New creates a Logger draining into sink and starts its worker.
func New(sink Sink, log zerolog.Logger, opts ...Option) *Logger {
	o := options{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Logger{
		queue: make(chan Entry, o.queueSize),
		sink:  sink,
		log:   log,
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

// Record enqueues an entry without blocking. Missing id/timestamp fields
// are filled in. Entries offered after Close, or while the queue is full,
// are dropped and counted.
func (l *Logger) Record(e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Recorded.IsZero() {
		e.Recorded = time.Now().UTC()
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.drop(e)
		return
	}
	l.pending.Add(1)
	select {
	case l.queue <- e:
		l.mu.Unlock()
	default:
		l.pending.Done()
		l.mu.Unlock()
		l.drop(e)
	}
}

func (l *Logger) drop(e Entry) {
	l.dropped.Add(1)
	l.log.Warn().
		Str("actor_id", e.ActorID).
		Str("action", e.Action).
		Str("resource_type", e.ResourceType).
		Uint64("dropped_total", l.dropped.Load()).
		Msg("audit entry dropped")
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for e := range l.queue {
		if err := l.sink.Write(context.Background(), e); err != nil {
			// Sink failure is recovered locally; it never reaches the
			// caller or aborts the primary operation.
			l.log.Error().Err(err).
				Str("actor_id", e.ActorID).
				Str("action", e.Action).
				Str("resource_type", e.ResourceType).
				Msg("audit write failed")
		}
		l.pending.Done()
	}
}

// Flush blocks until every entry accepted so far has been handed to the
// sink. Intended for tests and shutdown.
func (l *Logger) Flush() {
	l.pending.Wait()
}

// Dropped reports how many entries were lost to back-pressure.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close drains outstanding entries and stops the worker. Entries offered
// concurrently with Close are either fully enqueued before the flag flips or
// dropped after it; none can land on the closed queue.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.pending.Wait()
	close(l.queue)
	l.wg.Wait()
}
