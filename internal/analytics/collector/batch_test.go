package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	err     error
	batches [][]kafka.Event
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func event(q string) analytics.SearchEvent {
	return analytics.SearchEvent{Type: analytics.EventSearch, Query: q}
}

func TestFlush(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, Config{BatchSize: 10, FlushInterval: time.Hour}, metrics.NewWithRegistry(prometheus.NewRegistry()))

	bc.Track(event("a"))
	bc.Track(event("b"))
	assert.Equal(t, 2, bc.BufferLen())

	bc.Flush(context.Background())
	assert.Equal(t, 0, bc.BufferLen())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "search", pub.batches[0][0].Key)
	assert.Equal(t, "a", pub.batches[0][0].Value.(analytics.SearchEvent).Query)
}

func TestFlushFailureRequeuesAndCaps(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	bc := NewBatchCollector(pub, Config{BatchSize: 10, FlushInterval: time.Hour, MaxBuffered: 3}, nil)

	for _, q := range []string{"a", "b", "c", "d"} {
		bc.Track(event(q))
	}
	bc.Flush(context.Background())
	assert.Equal(t, 3, bc.BufferLen())

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	bc.Flush(context.Background())
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "b", pub.batches[0][0].Value.(analytics.SearchEvent).Query)
}

func TestStartFlushesOnFullBatchAndShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, Config{BatchSize: 2, FlushInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)

	bc.Track(event("a"))
	bc.Track(event("b"))
	assert.Eventually(t, func() bool { return pub.published() == 2 }, time.Second, 5*time.Millisecond)

	bc.Track(event("c"))
	cancel()
	bc.Close()
	assert.Equal(t, 3, pub.published())
}
