// Package notify fans queue state changes out to interested observers.
//
// Signal never blocks and never returns an error: events are buffered and
// published by a background goroutine, and dropped with a warning when the
// buffer is full.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medscribe/notequeue/internal/domain"
)

// EventKind names a queue lifecycle event.
type EventKind string

const (
	EventEntryQueued    EventKind = "queue.entry.queued"
	EventEntryStarted   EventKind = "queue.entry.started"
	EventEntryFinished  EventKind = "queue.entry.finished"
	EventEntriesRemoved EventKind = "queue.entries.removed"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Kind       EventKind      `json:"kind"`
	EntryID    string         `json:"entry_id,omitempty"`
	Note       domain.NoteRef `json:"note"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Status     domain.Status  `json:"status,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier is what the coordinator and dispatcher depend on.
type Notifier interface {
	Signal(ctx context.Context, ev Event)
}

// Publisher delivers one event to a transport.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// AsyncNotifier decouples callers from the publisher's latency and failures.
type AsyncNotifier struct {
	pub     Publisher
	events  chan Event
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsyncNotifier(pub Publisher, buffer int, logger *zap.Logger) *AsyncNotifier {
	if buffer < 1 {
		buffer = 1
	}
	return &AsyncNotifier{
		pub:     pub,
		events:  make(chan Event, buffer),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Signal enqueues ev for publishing. The caller's ctx is not used for the
// publish itself because the event outlives the caller.
func (n *AsyncNotifier) Signal(_ context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case n.events <- ev:
	default:
		n.logger.Warn("notification buffer full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("entry_id", ev.EntryID),
		)
	}
}

// Start launches the publishing goroutine. It runs until ctx is cancelled,
// then drains what is left so events accepted before shutdown are not lost.
func (n *AsyncNotifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.run(ctx)
	}()
}

func (n *AsyncNotifier) run(ctx context.Context) {
	for {
		select {
		case ev := <-n.events:
			n.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-n.events:
					n.publish(ev)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until the publishing goroutine has drained and returned.
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}

func (n *AsyncNotifier) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notification publisher panicked", zap.Any("panic", r))
		}
	}()

	if err := n.pub.Publish(ctx, ev); err != nil {
		n.logger.Warn("failed to publish notification",
			zap.String("kind", string(ev.Kind)),
			zap.String("entry_id", ev.EntryID),
			zap.Error(err),
		)
	}
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info("queue event",
		zap.String("kind", string(ev.Kind)),
		zap.String("entry_id", ev.EntryID),
		zap.String("note", ev.Note.String()),
		zap.String("owner_id", ev.OwnerID),
		zap.String("status", string(ev.Status)),
	)
	return nil
}

// Nop discards every signal.
type Nop struct{}

func (Nop) Signal(context.Context, Event) {}

var (
	_ Notifier  = (*AsyncNotifier)(nil)
	_ Notifier  = Nop{}
	_ Publisher = (*LogPublisher)(nil)
)
