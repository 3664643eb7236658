package monitor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"github.com/0xmhha/usage-monitor/pkg/logger"
)

// Hub fans snapshots out to subscribers.
//
// Broadcasts are throttled to one per MinInterval. The newest throttled
// snapshot is held back and broadcast as soon as the interval allows, so
// the last change is never lost. Sends never block: a subscriber whose
// buffer is full misses that snapshot.
type Hub struct {
	logger   logger.Logger
	limiter  *rate.Limiter
	interval time.Duration
	buffer   int
	clock    func() time.Time

	mu     sync.RWMutex
	subs   map[string]chan Snapshot
	closed bool

	// pendingMu guards the trailing publish; taken after mu.
	pendingMu sync.Mutex
	seq       uint64
	pending   *Snapshot
	trailing  *time.Timer

	dropped atomic.Int64
}

// NewHub creates a snapshot hub.
func NewHub(cfg HubConfig, log logger.Logger) *Hub {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 4
	}

	return &Hub{
		logger:  log,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		interval: cfg.MinInterval,
		buffer:   cfg.Buffer,
		clock:    time.Now,
		subs:     make(map[string]chan Snapshot),
	}
}

// Subscribe registers a new consumer. Subscribing to a closed hub returns
// an already closed channel.
func (h *Hub) Subscribe() Subscription {
	id := xid.New().String()
	ch := make(chan Snapshot, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return Subscription{ID: id, Updates: ch}
	}

	h.subs[id] = ch
	h.logger.Debug("subscriber added", "id", id, "subscribers", len(h.subs))
	return Subscription{ID: id, Updates: ch}
}

// Unsubscribe removes a consumer and closes its channel. Unknown IDs are
// ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		h.logger.Debug("subscriber removed", "id", id, "subscribers", len(h.subs))
	}
}

// Publish sends s to every subscriber.
//
// Returns:
//   - Number of subscribers that received the snapshot
//   - ErrThrottled if the previous broadcast was too recent; s is then
//     broadcast once the interval elapses unless a newer snapshot
//     replaces it
//   - ErrHubClosed after Close
func (h *Hub) Publish(s Snapshot) (int, error) {
	h.pendingMu.Lock()
	h.seq++
	seq := h.seq
	h.pendingMu.Unlock()

	return h.publish(s, seq)
}

// publish broadcasts s unless a newer Publish has superseded it.
func (h *Hub) publish(s Snapshot, seq uint64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0, ErrHubClosed
	}

	h.pendingMu.Lock()
	if seq != h.seq {
		h.pendingMu.Unlock()
		return 0, ErrThrottled
	}
	now := h.clock()
	if !h.limiter.AllowN(now, 1) {
		h.pending = &s
		if h.trailing == nil {
			h.trailing = time.AfterFunc(h.untilNext(now), h.flush)
		}
		h.pendingMu.Unlock()
		return 0, ErrThrottled
	}
	h.pending = nil
	if h.trailing != nil {
		h.trailing.Stop()
		h.trailing = nil
	}
	h.pendingMu.Unlock()

	return h.broadcast(s), nil
}

// untilNext is the wait until the limiter admits another broadcast.
func (h *Hub) untilNext(now time.Time) time.Duration {
	missing := 1 - h.limiter.TokensAt(now)
	return max(time.Duration(missing*float64(h.interval)), time.Millisecond)
}

// flush broadcasts the held-back snapshot.
func (h *Hub) flush() {
	h.pendingMu.Lock()
	s, seq := h.pending, h.seq
	h.pending = nil
	h.trailing = nil
	h.pendingMu.Unlock()

	if s == nil {
		return
	}
	if _, err := h.publish(*s, seq); err != nil && !errors.Is(err, ErrThrottled) {
		h.logger.Debug("trailing snapshot not published", "error", err)
	}
}

// broadcast delivers s without blocking. The caller holds mu.
func (h *Hub) broadcast(s Snapshot) int {
	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- s:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Debug("subscriber buffer full, dropping snapshot", "id", id)
		}
	}
	return delivered
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many snapshots were dropped on full buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every subscription. Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	h.pendingMu.Lock()
	if h.trailing != nil {
		h.trailing.Stop()
		h.trailing = nil
	}
	h.pending = nil
	h.pendingMu.Unlock()

	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
