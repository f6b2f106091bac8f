// Package event carries post-commit domain events from the transaction engine
// to the side-effect services that react to them.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

type Type string

const (
	TransactionCompleted Type = "transaction.completed"
	TransactionCanceled  Type = "transaction.canceled"
	ReviewAdded          Type = "review.added"
)

// Event describes a committed state change. Fields that do not apply to the
// event type are left zero.
type Event struct {
	ID            string
	Type          Type
	TransactionID string
	ItemID        string
	BuyerID       string
	SellerID      string
	ActorID       string
	ReviewID      string
	TargetUID     string
	Rating        int
	OccurredAt    time.Time
}

func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now()}
}

// Handler reacts to one event. Returned errors are logged, never propagated
// back to the publisher.
type Handler func(ctx context.Context, e Event) error

// Publisher is the engine-facing side of the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Bus is an in-process asynchronous pub-sub. Each handler runs on its own
// goroutine, detached from the publisher's cancellation.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	wg       conc.WaitGroup
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[Type][]Handler),
		logger:   logger.Named("event"),
	}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no subscribers", zap.String("event_type", string(e.Type)))
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		b.wg.Go(func() {
			if err := h(detached, e); err != nil {
				b.logger.Warn("event handler failed",
					zap.String("event_id", e.ID),
					zap.String("event_type", string(e.Type)),
					zap.String("transaction_id", e.TransactionID),
					zap.Error(err))
			}
		})
	}
}

// Wait blocks until every in-flight handler has returned. A panicking
// handler is logged and reported as an error.
func (b *Bus) Wait() error {
	if r := b.wg.WaitAndRecover(); r != nil {
		b.logger.Error("event handler panicked", zap.Any("panic", r.Value), zap.String("stack", string(r.Stack)))
		return fmt.Errorf("event handler panicked: %v", r.Value)
	}
	return nil
}
