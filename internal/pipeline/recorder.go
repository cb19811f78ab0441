package pipeline

import (
	"context"
	"sync"

	"github.com/Fatnaoui/crawler-project/internal/storage"
	"github.com/Fatnaoui/crawler-project/pkg/document"
)

const defaultRecorderBatch = 500

// RejectionRecorder is a bus subscriber that writes rejection events to the
// ledger in batches. A batch is flushed when full and whenever a rank
// finishes.
type RejectionRecorder struct {
	ledger    storage.Ledger
	runID     string
	batchSize int

	mu       sync.Mutex
	pending  []storage.Rejection
	recorded int64
	err      error
}

// NewRejectionRecorder creates a recorder for runID
func NewRejectionRecorder(ledger storage.Ledger, runID string, batchSize int) *RejectionRecorder {
	if batchSize <= 0 {
		batchSize = defaultRecorderBatch
	}
	return &RejectionRecorder{ledger: ledger, runID: runID, batchSize: batchSize}
}

// EventTypes lists the events the recorder subscribes to
func (r *RejectionRecorder) EventTypes() []EventType {
	return []EventType{EventDocumentRejected, EventRankFinished}
}

// Handle is the EventHandler of the recorder
func (r *RejectionRecorder) Handle(ctx context.Context, event *DocumentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case EventDocumentRejected:
		rej := storage.Rejection{
			RunID:     r.runID,
			Stage:     event.Stage,
			Reason:    event.Reason,
			Rank:      event.Rank,
			CreatedAt: event.Timestamp,
		}
		if doc := event.Document; doc != nil {
			rej.DocumentID = doc.ID
			rej.URL = doc.MetaString(document.MetaURL)
			rej.WARCFile = doc.MetaString(document.MetaWARCFile)
		}
		r.pending = append(r.pending, rej)
		if len(r.pending) < r.batchSize {
			return nil
		}
	case EventRankFinished:
	default:
		return nil
	}
	return r.flushLocked(ctx)
}

// Flush writes whatever is pending
func (r *RejectionRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(ctx)
}

func (r *RejectionRecorder) flushLocked(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.ledger.RecordRejections(ctx, r.pending); err != nil {
		if r.err == nil {
			r.err = err
		}
		return err
	}
	r.recorded += int64(len(r.pending))
	r.pending = r.pending[:0]
	return nil
}

// Recorded returns the number of rejections written to the ledger
func (r *RejectionRecorder) Recorded() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

// Err returns the first ledger error, if any
func (r *RejectionRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
