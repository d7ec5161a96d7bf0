package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront-backend/internal/domain"
)

type fakeOutbox struct {
	mu     sync.Mutex
	events []domain.OutboxEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, ev *domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OutboxEvent
	for _, ev := range f.events {
		if ev.PublishedAt == nil && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.events {
		for _, id := range ids {
			if f.events[i].ID == id {
				f.events[i].PublishedAt = &now
			}
		}
	}
	return nil
}

func (f *fakeOutbox) pending() int {
	n, _ := f.FetchUnpublished(context.Background(), 1<<30)
	return len(n)
}

type inlineTx struct{}

func (inlineTx) Do(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]domain.OutboxEvent
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, events []domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func seed(t *testing.T, outbox *fakeOutbox, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ev, err := domain.NewOutboxEvent("order-1", domain.EventOrderCreated, map[string]int{"seq": i})
		require.NoError(t, err)
		require.NoError(t, outbox.Enqueue(context.Background(), ev))
	}
}

func TestPublishBatch(t *testing.T) {
	outbox := &fakeOutbox{}
	pub := &recordingPublisher{}
	seed(t, outbox, 3)

	p := NewOutboxPoller(outbox, inlineTx{}, pub, time.Second, 2)

	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, outbox.pending())

	n, err = p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, pub.count())
}

func TestPublishFailureKeepsEvents(t *testing.T) {
	outbox := &fakeOutbox{}
	pub := &recordingPublisher{err: errors.New("broker down")}
	seed(t, outbox, 2)

	p := NewOutboxPoller(outbox, inlineTx{}, pub, time.Second, 10)
	_, err := p.PublishBatch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, outbox.pending())

	pub.err = nil
	n, err := p.PublishBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, outbox.pending())
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	outbox := &fakeOutbox{}
	pub := &recordingPublisher{}
	seed(t, outbox, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p := NewOutboxPoller(outbox, inlineTx{}, pub, 10*time.Millisecond, 2)
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return pub.count() == 5 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestToMessage(t *testing.T) {
	ev := domain.OutboxEvent{ID: "e1", AggregateID: "o1", EventType: domain.EventOrderPaid, Payload: []byte(`{"a":1}`)}
	msg := toMessage(ev)
	assert.Equal(t, []byte("o1"), msg.Key)
	assert.Equal(t, []byte(`{"a":1}`), msg.Value)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, eventTypeHeader, msg.Headers[0].Key)
	assert.Equal(t, []byte(domain.EventOrderPaid), msg.Headers[0].Value)
}
