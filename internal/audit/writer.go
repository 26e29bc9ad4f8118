// Package audit provides a best-effort asynchronous writer for device
// activity and isolation violation logs. Appends never block the caller
// and failures never propagate beyond a diagnostic log line.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trustd/trustd/internal/log"
	"github.com/trustd/trustd/internal/model"
	"github.com/trustd/trustd/internal/storage"
)

type job func() error

// Writer serializes audit appends off the request path
type Writer struct {
	store   storage.AuditStorage
	jobs    chan job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewWriter creates an audit writer with a bounded queue
func NewWriter(store storage.AuditStorage, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		store:  store,
		jobs:   make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the writer goroutine
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true

	w.wg.Add(1)
	go w.run()
}

// Stop drains queued appends and stops the writer
func (w *Writer) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.jobs)
	w.wg.Wait()
	w.cancel()
}

func (w *Writer) run() {
	defer w.wg.Done()

	for j := range w.jobs {
		if err := j(); err != nil {
			// Best-effort: record the failure, never surface it
			log.Warn("Audit append failed", "error", err)
		}
	}
}

// submit enqueues an append without blocking; a full queue drops the entry
func (w *Writer) submit(j job) {
	select {
	case w.jobs <- j:
	default:
		log.Warn("Audit queue full, dropping entry")
	}
}

// DeviceActivity records an activity entry for a device
func (w *Writer) DeviceActivity(deviceID, action string, details map[string]any) {
	entry := &model.DeviceLog{
		ID:        newID(),
		DeviceID:  deviceID,
		Action:    action,
		Details:   details,
		Timestamp: time.Now(),
	}
	w.submit(func() error {
		return w.store.AppendDeviceLog(entry)
	})
}

// Violation records a denied access attempt
func (w *Writer) Violation(sourceSegmentID, destinationSegmentID, userID string, details map[string]any) {
	entry := &model.ViolationLog{
		ID:                   newID(),
		SourceSegmentID:      sourceSegmentID,
		DestinationSegmentID: destinationSegmentID,
		UserID:               userID,
		Details:              details,
		Timestamp:            time.Now(),
	}
	w.submit(func() error {
		return w.store.AppendViolation(entry)
	})
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
