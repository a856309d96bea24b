package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNotifierDeliversToAllSubscribers(t *testing.T) {
	n := NewNotifier(Config{Workers: 2, QueueSize: 16}, zaptest.NewLogger(t))

	var mu sync.Mutex
	var got []string
	for i := 0; i < 3; i++ {
		i := i
		n.Subscribe(func(ev OrderEvent) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, fmt.Sprintf("sub%d:%s", i, ev.ClientOrderID))
		})
	}

	n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: "ord-1"})
	n.Close()

	assert.Len(t, got, 3)
}

func TestNotifierPreservesPerOrderOrdering(t *testing.T) {
	n := NewNotifier(Config{Workers: 4, QueueSize: 256}, zaptest.NewLogger(t))

	var mu sync.Mutex
	seen := make(map[string][]int)
	n.Subscribe(func(ev OrderEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.ClientOrderID] = append(seen[ev.ClientOrderID], int(ev.FilledQuantity))
	})

	orders := []string{"ord-a", "ord-b", "ord-c", "ord-d", "ord-e"}
	const perOrder = 50
	for seq := 1; seq <= perOrder; seq++ {
		for _, id := range orders {
			n.Publish(OrderEvent{
				Type:           OrderPartiallyFilled,
				ClientOrderID:  id,
				FilledQuantity: int64(seq),
			})
		}
	}
	n.Close()

	for _, id := range orders {
		require.Len(t, seen[id], perOrder, "order %s", id)
		for i, v := range seen[id] {
			assert.Equal(t, i+1, v, "order %s out of order at %d", id, i)
		}
	}
}

func TestNotifierIsolatesSubscriberPanics(t *testing.T) {
	n := NewNotifier(Config{Workers: 1, QueueSize: 16}, zaptest.NewLogger(t))

	var delivered []string
	n.Subscribe(func(ev OrderEvent) {
		panic("subscriber broke")
	})
	n.Subscribe(func(ev OrderEvent) {
		delivered = append(delivered, ev.ClientOrderID)
	})

	n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: "ord-1"})
	n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: "ord-2"})
	n.Close()

	assert.Equal(t, []string{"ord-1", "ord-2"}, delivered,
		"a panicking subscriber must not block the rest")
}

func TestNotifierDropsWhenQueueSaturated(t *testing.T) {
	n := NewNotifier(Config{Workers: 1, QueueSize: 1, EnqueueWait: 10 * time.Millisecond}, zaptest.NewLogger(t))

	block := make(chan struct{})
	var delivered int
	n.Subscribe(func(ev OrderEvent) {
		<-block
		delivered++
	})

	// First event occupies the worker, second fills the queue, third must be
	// dropped after the enqueue wait.
	for i := 0; i < 3; i++ {
		n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: "ord-1"})
	}
	close(block)
	n.Close()

	assert.LessOrEqual(t, delivered, 2)
	assert.GreaterOrEqual(t, delivered, 1)
}

func TestNotifierPublishAfterCloseIsDropped(t *testing.T) {
	n := NewNotifier(Config{Workers: 2, QueueSize: 16}, zaptest.NewLogger(t))

	var mu sync.Mutex
	var count int
	n.Subscribe(func(ev OrderEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: "ord-1"})
	n.Close()
	n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: "ord-2"})

	assert.Equal(t, 1, count, "events after shutdown are dropped, not delivered")
}

func TestNotifierConcurrentPublishAndClose(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		n := NewNotifier(Config{Workers: 2, QueueSize: 4}, zaptest.NewLogger(t))
		n.Subscribe(func(ev OrderEvent) {})

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			g := g
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					n.Publish(OrderEvent{
						Type:          OrderFilled,
						ClientOrderID: fmt.Sprintf("ord-%d-%d", g, i),
					})
				}
			}()
		}
		n.Close()
		wg.Wait()
	}
}

func TestNotifierCloseDrainsQueues(t *testing.T) {
	n := NewNotifier(Config{Workers: 2, QueueSize: 64}, zaptest.NewLogger(t))

	var mu sync.Mutex
	var count int
	n.Subscribe(func(ev OrderEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 40; i++ {
		n.Publish(OrderEvent{Type: OrderFilled, ClientOrderID: fmt.Sprintf("ord-%d", i)})
	}
	n.Close()

	assert.Equal(t, 40, count)
}
