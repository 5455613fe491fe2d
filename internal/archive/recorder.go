package archive

import (
	"sync"

	"go.uber.org/zap"

	"quorum/internal/council"
)

// Snapshotter yields the current progress of a live session.
type Snapshotter interface {
	Snapshot(id string) (council.Snapshot, error)
}

// Recorder archives a session's event stream in the background. Publish
// never blocks the caller: events go through a bounded queue and are dropped
// with a warning when the writer falls behind. Write failures are logged and
// swallowed; archival must never stall a deliberation.
type Recorder struct {
	store *Store
	snaps Snapshotter
	log   *zap.Logger

	queue chan council.Event

	mu      sync.Mutex
	dropped uint64
	closed  bool

	done chan struct{}
}

// NewRecorder starts the background writer. snaps may be nil; then terminal
// events are recorded without a final session snapshot.
func NewRecorder(store *Store, snaps Snapshotter, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		store: store,
		snaps: snaps,
		log:   log,
		queue: make(chan council.Event, 256),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

// Publish implements council.EventSink.
func (r *Recorder) Publish(ev council.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped++
		if r.dropped%64 == 1 {
			r.log.Warn("archive queue full, dropping events",
				zap.String("session", ev.SessionID),
				zap.Uint64("dropped", r.dropped))
		}
	}
	r.mu.Unlock()
}

// Close stops accepting events and waits for the queue to flush.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.queue {
		if err := r.store.RecordEvent(ev); err != nil {
			r.log.Warn("archive event write failed",
				zap.String("session", ev.SessionID), zap.Error(err))
		}
		if !terminalEvent(ev.Type) || r.snaps == nil {
			continue
		}
		snap, err := r.snaps.Snapshot(ev.SessionID)
		if err != nil {
			continue
		}
		if err := r.store.SaveSnapshot(snap); err != nil {
			r.log.Warn("archive snapshot write failed",
				zap.String("session", ev.SessionID), zap.Error(err))
		}
	}
}

func terminalEvent(t council.EventType) bool {
	switch t {
	case council.EventComplete, council.EventEscalated, council.EventError:
		return true
	}
	return false
}
