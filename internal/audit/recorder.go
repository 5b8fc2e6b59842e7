package audit

import (
	"context"
	"sync/atomic"
)

// DefaultBufferSize is the number of entries a Recorder queues before it
// starts dropping.
const DefaultBufferSize = 256

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes audit entries off the request path.
//
// Record never blocks: entries are queued on a buffered channel and written
// serially by Run. When the queue is full the entry is dropped and counted.
type Recorder struct {
	repo    Repository
	ch      chan *AuditLog
	logger  Logger
	dropped atomic.Int64
}

// NewRecorder creates a Recorder with a queue of size entries.
// A non-positive size uses DefaultBufferSize.
func NewRecorder(repo Repository, size int) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Recorder{
		repo:   repo,
		ch:     make(chan *AuditLog, size),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record enqueues entry. It is a no-op on a nil Recorder.
func (r *Recorder) Record(entry *AuditLog) {
	if r == nil || entry == nil {
		return
	}
	select {
	case r.ch <- entry:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// Detached from the request: the entry outlives it.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
