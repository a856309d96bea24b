package events

import (
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution/metrics"
)

// Subscriber consumes lifecycle events. Delivery is at-least-once;
// subscribers must be idempotent with respect to duplicates. A subscriber
// failure or panic never affects tracker state.
type Subscriber func(OrderEvent)

// Config tunes the notifier's worker pool.
type Config struct {
	// Workers is the number of dispatch goroutines. Events for one order
	// always land on the same worker, which preserves per-order ordering.
	Workers int
	// QueueSize bounds each worker's queue.
	QueueSize int
	// EnqueueWait is how long Publish blocks on a full queue before the
	// event is counted as dropped.
	EnqueueWait time.Duration
}

// Notifier dispatches lifecycle events to subscribers on a bounded worker
// pool. Publish hashes the client order id onto a worker so events for a
// single order are delivered in publish order, while different orders fan
// out across workers.
type Notifier struct {
	cfg    Config
	logger *zap.Logger
	queues []chan OrderEvent
	wg     sync.WaitGroup
	mu     sync.RWMutex
	subs   []Subscriber

	// closeMu fences publishers against Close: the queues are only closed
	// once no Publish holds the read side and closed stops new ones.
	closeMu sync.RWMutex
	closed  bool
	closing chan struct{}
	once    sync.Once
}

// NewNotifier creates and starts the worker pool.
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	n := &Notifier{
		cfg:     cfg,
		logger:  logger,
		queues:  make([]chan OrderEvent, cfg.Workers),
		closing: make(chan struct{}),
	}
	for i := range n.queues {
		n.queues[i] = make(chan OrderEvent, cfg.QueueSize)
		n.wg.Add(1)
		go n.run(n.queues[i])
	}
	return n
}

// Subscribe registers a subscriber for all subsequent events.
func (n *Notifier) Subscribe(sub Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, sub)
}

// Publish enqueues an event for dispatch. It blocks at most EnqueueWait on a
// saturated worker queue and then drops the event with a metric and a log;
// the caller's state change stands regardless.
func (n *Notifier) Publish(ev OrderEvent) {
	n.closeMu.RLock()
	defer n.closeMu.RUnlock()
	if n.closed {
		metrics.EventsDropped.Inc()
		n.logger.Debug("notifier closed, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("client_order_id", ev.ClientOrderID))
		return
	}

	metrics.EventsDispatched.WithLabelValues(string(ev.Type)).Inc()

	q := n.queues[n.workerFor(ev.ClientOrderID)]
	if n.cfg.EnqueueWait <= 0 {
		select {
		case q <- ev:
		case <-n.closing:
		default:
			n.drop(ev)
		}
		return
	}

	t := time.NewTimer(n.cfg.EnqueueWait)
	defer t.Stop()
	select {
	case q <- ev:
	case <-n.closing:
	case <-t.C:
		n.drop(ev)
	}
}

// Close stops the workers after draining the queues. Publishes racing Close
// either land before the queues shut or are dropped; they never panic.
func (n *Notifier) Close() {
	n.once.Do(func() {
		// Unblock publishers waiting on saturated queues first, then take
		// the write side so no Publish is mid-send when the queues close.
		close(n.closing)
		n.closeMu.Lock()
		n.closed = true
		n.closeMu.Unlock()
		for _, q := range n.queues {
			close(q)
		}
	})
	n.wg.Wait()
}

func (n *Notifier) workerFor(clientOrderID string) int {
	h := fnv.New32a()
	h.Write([]byte(clientOrderID))
	return int(h.Sum32() % uint32(len(n.queues)))
}

func (n *Notifier) drop(ev OrderEvent) {
	metrics.EventsDropped.Inc()
	n.logger.Warn("event queue saturated, dropping event",
		zap.String("type", string(ev.Type)),
		zap.String("client_order_id", ev.ClientOrderID))
}

func (n *Notifier) run(q chan OrderEvent) {
	defer n.wg.Done()
	for ev := range q {
		n.mu.RLock()
		subs := n.subs
		n.mu.RUnlock()
		for _, sub := range subs {
			n.deliver(sub, ev)
		}
	}
}

func (n *Notifier) deliver(sub Subscriber, ev OrderEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("event subscriber panic",
				zap.String("type", string(ev.Type)),
				zap.String("client_order_id", ev.ClientOrderID),
				zap.Any("panic", r))
		}
	}()
	sub(ev)
}
