package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Fatnaoui/crawler-project/pkg/logging"
)

// ErrBusClosed is returned by Publish and Subscribe after Close
var ErrBusClosed = errors.New("event bus is closed")

// EventHandler is a function that handles pipeline events
type EventHandler func(ctx context.Context, event *DocumentEvent) error

// Subscription delivers matching events to one handler, in publish order
type Subscription struct {
	ID         string
	EventTypes []EventType
	Handler    EventHandler
	channel    chan *DocumentEvent
	done       chan struct{}
}

func (s *Subscription) matches(t EventType) bool {
	for _, et := range s.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// EventBus fans events out to subscribers. Publish blocks while a
// subscriber's buffer is full, so no event is dropped; Close waits until
// every queued event has been handled.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	closed        bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	stats         EventBusStats
	statsMu       sync.Mutex
	logger        zerolog.Logger
}

// EventBusStats tracks event bus statistics
type EventBusStats struct {
	EventsPublished   int64 `json:"events_published"`
	EventsDelivered   int64 `json:"events_delivered"`
	EventsFailed      int64 `json:"events_failed"`
	ActiveSubscribers int64 `json:"active_subscribers"`
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBus{
		subscriptions: make(map[string]*Subscription),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logging.GetLogger("eventbus"),
	}
}

// Subscribe registers handler for eventTypes. Each subscription runs its
// handler on its own goroutine.
func (eb *EventBus) Subscribe(eventTypes []EventType, handler EventHandler, bufferSize int) (*Subscription, error) {
	if bufferSize < 1 {
		bufferSize = 1
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return nil, ErrBusClosed
	}

	sub := &Subscription{
		ID:         "sub_" + uuid.New().String(),
		EventTypes: eventTypes,
		Handler:    handler,
		channel:    make(chan *DocumentEvent, bufferSize),
		done:       make(chan struct{}),
	}
	eb.subscriptions[sub.ID] = sub

	eb.wg.Add(1)
	go eb.deliver(sub)

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers++
	eb.statsMu.Unlock()

	eb.logger.Debug().
		Str("subscription_id", sub.ID).
		Interface("event_types", eventTypes).
		Int("buffer_size", bufferSize).
		Msg("New subscription created")

	return sub, nil
}

// Publish queues event for every matching subscriber. It returns ctx.Err()
// if ctx ends while waiting for buffer space.
func (eb *EventBus) Publish(ctx context.Context, event *DocumentEvent) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return ErrBusClosed
	}

	for _, sub := range eb.subscriptions {
		if !sub.matches(event.Type) {
			continue
		}
		select {
		case sub.channel <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	eb.statsMu.Lock()
	eb.stats.EventsPublished++
	eb.statsMu.Unlock()
	return nil
}

// Unsubscribe removes a subscription after its queued events are handled
func (eb *EventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return ErrBusClosed
	}
	sub, exists := eb.subscriptions[subscriptionID]
	if !exists {
		eb.mu.Unlock()
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(eb.subscriptions, subscriptionID)
	close(sub.channel)
	eb.mu.Unlock()

	<-sub.done

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers--
	eb.statsMu.Unlock()

	eb.logger.Debug().Str("subscription_id", subscriptionID).Msg("Subscription removed")
	return nil
}

// Close stops accepting events and waits for subscribers to drain
func (eb *EventBus) Close() {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return
	}
	eb.closed = true
	for _, sub := range eb.subscriptions {
		close(sub.channel)
	}
	eb.mu.Unlock()

	eb.wg.Wait()
	eb.cancel()

	eb.logger.Debug().Msg("Event bus shut down")
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	eb.statsMu.Lock()
	defer eb.statsMu.Unlock()
	return eb.stats
}

func (eb *EventBus) deliver(sub *Subscription) {
	defer eb.wg.Done()
	defer close(sub.done)

	for event := range sub.channel {
		if err := sub.Handler(eb.ctx, event); err != nil {
			eb.statsMu.Lock()
			eb.stats.EventsFailed++
			eb.statsMu.Unlock()
			eb.logger.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Msg("Event handler failed")
			continue
		}
		eb.statsMu.Lock()
		eb.stats.EventsDelivered++
		eb.statsMu.Unlock()
	}
}
