package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fatnaoui/crawler-project/pkg/document"
)

func TestEventBusBasicPubSub(t *testing.T) {
	eventBus := NewEventBus()

	var received []*DocumentEvent
	var mu sync.Mutex
	handler := func(ctx context.Context, event *DocumentEvent) error {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		return nil
	}

	sub, err := eventBus.Subscribe([]EventType{EventDocumentRejected}, handler, 10)
	require.NoError(t, err)
	require.NotNil(t, sub)

	doc := document.New("Test document for event bus")
	event := NewDocumentEvent(EventDocumentRejected, doc)
	event.Stage = "gopher_quality"
	event.Reason = "gopher_short_doc"
	require.NoError(t, eventBus.Publish(context.Background(), event))

	// Not subscribed
	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventRankFinished, nil)))

	eventBus.Close()

	require.Len(t, received, 1)
	assert.Equal(t, EventDocumentRejected, received[0].Type)
	assert.Equal(t, doc.ID, received[0].Document.ID)
	assert.Equal(t, "gopher_short_doc", received[0].Reason)

	stats := eventBus.GetStats()
	assert.Equal(t, int64(2), stats.EventsPublished)
	assert.Equal(t, int64(1), stats.EventsDelivered)
	assert.Equal(t, int64(1), stats.ActiveSubscribers)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eventBus := NewEventBus()

	var sub1, sub2 int32
	_, err := eventBus.Subscribe([]EventType{EventDocumentRejected}, func(ctx context.Context, e *DocumentEvent) error {
		atomic.AddInt32(&sub1, 1)
		return nil
	}, 1)
	require.NoError(t, err)
	_, err = eventBus.Subscribe([]EventType{EventDocumentRejected, EventRankFinished}, func(ctx context.Context, e *DocumentEvent) error {
		atomic.AddInt32(&sub2, 1)
		return nil
	}, 1)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventDocumentRejected, nil)))
	}
	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventRankFinished, nil)))
	eventBus.Close()

	assert.Equal(t, int32(50), atomic.LoadInt32(&sub1), "small buffers still see every event")
	assert.Equal(t, int32(51), atomic.LoadInt32(&sub2))
}

func TestEventBusPreservesOrder(t *testing.T) {
	eventBus := NewEventBus()

	var ranks []int
	_, err := eventBus.Subscribe([]EventType{EventRankFinished}, func(ctx context.Context, e *DocumentEvent) error {
		ranks = append(ranks, e.Rank)
		return nil
	}, 4)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		ev := NewDocumentEvent(EventRankFinished, nil)
		ev.Rank = i
		require.NoError(t, eventBus.Publish(context.Background(), ev))
	}
	eventBus.Close()

	require.Len(t, ranks, 20)
	for i, r := range ranks {
		assert.Equal(t, i, r)
	}
}

func TestEventBusHandlerErrors(t *testing.T) {
	eventBus := NewEventBus()
	_, err := eventBus.Subscribe([]EventType{EventProcessingFailed}, func(ctx context.Context, e *DocumentEvent) error {
		return errors.New("handler failed")
	}, 2)
	require.NoError(t, err)

	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventProcessingFailed, nil)))
	eventBus.Close()

	assert.Equal(t, int64(1), eventBus.GetStats().EventsFailed)
}

func TestEventBusPublishHonorsContext(t *testing.T) {
	eventBus := NewEventBus()
	release := make(chan struct{})
	_, err := eventBus.Subscribe([]EventType{EventDocumentRejected}, func(ctx context.Context, e *DocumentEvent) error {
		<-release
		return nil
	}, 1)
	require.NoError(t, err)

	// One event in the handler, one in the buffer, the third must wait
	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventDocumentRejected, nil)))
	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventDocumentRejected, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = eventBus.Publish(ctx, NewDocumentEvent(EventDocumentRejected, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	eventBus.Close()
}

func TestEventBusUnsubscribeAndClose(t *testing.T) {
	eventBus := NewEventBus()

	var count int32
	sub, err := eventBus.Subscribe([]EventType{EventDocumentRejected}, func(ctx context.Context, e *DocumentEvent) error {
		atomic.AddInt32(&count, 1)
		return nil
	}, 5)
	require.NoError(t, err)

	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventDocumentRejected, nil)))
	require.NoError(t, eventBus.Unsubscribe(sub.ID))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count), "queued events are handled before unsubscribe returns")
	assert.Equal(t, int64(0), eventBus.GetStats().ActiveSubscribers)

	require.NoError(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventDocumentRejected, nil)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))

	assert.Error(t, eventBus.Unsubscribe("sub_missing"))

	eventBus.Close()
	eventBus.Close()
	assert.ErrorIs(t, eventBus.Publish(context.Background(), NewDocumentEvent(EventDocumentRejected, nil)), ErrBusClosed)
	_, err = eventBus.Subscribe([]EventType{EventRankFinished}, nil, 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestGenerateEventID(t *testing.T) {
	a, b := GenerateEventID(), GenerateEventID()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "evt_")
}
