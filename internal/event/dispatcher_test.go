package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"order_go/internal/domain"
	"order_go/internal/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderSettledEvent
	err    error
	gate   chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.OrderSettledEvent) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestDispatcher_PublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	m := infra.NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(8, pub, m)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	for _, id := range []string{"o-1", "o-2", "o-3"} {
		require.True(t, d.Emit(domain.OrderSettledEvent{OrderID: id}))
	}

	require.Eventually(t, func() bool { return pub.Count() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-d.Done()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "o-1", pub.events[0].OrderID)
	assert.Equal(t, "o-3", pub.events[2].OrderID)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("published")))
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	m := infra.NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(1, pub, m)

	// not running: the buffer fills after one event
	assert.True(t, d.Emit(domain.OrderSettledEvent{OrderID: "o-1"}))
	assert.False(t, d.Emit(domain.OrderSettledEvent{OrderID: "o-2"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
}

func TestDispatcher_EmitDoesNotWaitForPublisher(t *testing.T) {
	pub := &recordingPublisher{gate: make(chan struct{})}
	d := NewDispatcher(4, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	start := time.Now()
	d.Emit(domain.OrderSettledEvent{OrderID: "o-1"})
	d.Emit(domain.OrderSettledEvent{OrderID: "o-2"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(pub.gate)
	require.Eventually(t, func() bool { return pub.Count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-d.Done()
}

func TestDispatcher_PublishFailureIsCounted(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	m := infra.NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(4, pub, m)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.Emit(domain.OrderSettledEvent{OrderID: "o-1"})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventsPublished.WithLabelValues("failed")) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-d.Done()
}

func TestDispatcher_FlushesOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(4, pub, nil)

	d.Emit(domain.OrderSettledEvent{OrderID: "o-1"})
	d.Emit(domain.OrderSettledEvent{OrderID: "o-2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.Equal(t, 2, pub.Count())
}
