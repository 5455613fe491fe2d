// Package eventbus fans a council's event stream out to any number of
// subscribers. Delivery is best-effort by contract: a slow subscriber drops
// events rather than blocking the engine, and closing every subscriber
// never cancels a running session.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"quorum/internal/council"
)

const defaultSubscriberBuffer = 128
const defaultHistorySize = 256

// Options tunes a Bus. The zero value is usable.
type Options struct {
	SubscriberBuffer int
	HistorySize      int
	Logger           *zap.Logger
}

type subscription struct {
	id      uint64
	ch      chan council.Event
	session string // empty subscribes to every session
}

// Bus is an in-process fan-out of council events. Per-session ordering is
// preserved because the engine publishes synchronously from its own single
// task; the bus never reorders.
type Bus struct {
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	subs      map[uint64]subscription
	nextID    uint64
	closed    bool
	closeOnce sync.Once

	history      []council.Event
	historyNext  int
	historyCount int

	published atomic.Int64
	dropped   atomic.Int64
}

// New creates a bus. A cancelled ctx closes the bus and every subscriber.
func New(ctx context.Context, opts Options) *Bus {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	if opts.HistorySize < 0 {
		opts.HistorySize = 0
	} else if opts.HistorySize == 0 {
		opts.HistorySize = defaultHistorySize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bus{
		opts: opts,
		log:  log,
		subs: make(map[uint64]subscription),
	}
	if opts.HistorySize > 0 {
		b.history = make([]council.Event, opts.HistorySize)
	}
	if ctx != nil {
		if done := ctx.Done(); done != nil {
			go func() {
				<-done
				b.Close()
			}()
		}
	}
	return b
}

// Publish implements council.EventSink. It never blocks: full subscriber
// buffers drop the event for that subscriber only.
func (b *Bus) Publish(ev council.Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.appendHistoryLocked(ev)

	// Sends stay under the lock so a concurrent cancel cannot close a
	// channel mid-send. Every send is non-blocking, so the hold is short.
	b.published.Add(1)
	for _, sub := range b.subs {
		if sub.session != "" && sub.session != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			n := b.dropped.Add(1)
			if n%64 == 1 {
				b.log.Warn("slow subscriber dropping events",
					zap.Uint64("subscriber", sub.id),
					zap.Int64("total_dropped", n))
			}
		}
	}
}

// Subscribe registers a subscriber for every session's events. The returned
// cancel func is idempotent and closes the channel.
func (b *Bus) Subscribe() (<-chan council.Event, func()) {
	return b.subscribe("")
}

// SubscribeSession registers a subscriber for one session's events only.
func (b *Bus) SubscribeSession(sessionID string) (<-chan council.Event, func()) {
	return b.subscribe(sessionID)
}

func (b *Bus) subscribe(sessionID string) (<-chan council.Event, func()) {
	ch := make(chan council.Event, b.opts.SubscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = subscription{id: id, ch: ch, session: sessionID}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Replay returns the retained history for one session, oldest first, so a
// late observer can catch up before switching to the live stream.
func (b *Bus) Replay(sessionID string) []council.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.historyCount == 0 {
		return nil
	}
	out := make([]council.Event, 0, b.historyCount)
	start := b.historyNext - b.historyCount
	if start < 0 {
		start += len(b.history)
	}
	for i := 0; i < b.historyCount; i++ {
		ev := b.history[(start+i)%len(b.history)]
		if sessionID == "" || ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out
}

// Stats reports published and dropped counts.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}

// Close shuts the bus and closes every subscriber channel.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		subs := b.subs
		b.subs = make(map[uint64]subscription)
		b.mu.Unlock()
		for _, sub := range subs {
			close(sub.ch)
		}
	})
}

func (b *Bus) appendHistoryLocked(ev council.Event) {
	if len(b.history) == 0 {
		return
	}
	b.history[b.historyNext] = ev
	b.historyNext = (b.historyNext + 1) % len(b.history)
	if b.historyCount < len(b.history) {
		b.historyCount++
	}
}
