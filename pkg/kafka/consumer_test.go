package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonRetryable(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("handle: %w", NonRetryable(base))

	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "handle: bad payload", err.Error())

	assert.False(t, IsNonRetryable(base))
	assert.NoError(t, NonRetryable(nil))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type dlqWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *dlqWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *dlqWriter) Close() error { return nil }

func (w *dlqWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                              { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func newTestConsumer(t *testing.T, r *fakeReader, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(opts...)
	require.NoError(t, err)
	c.newReader = func(string) fetcher { return r }
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	r := newFakeReader(kafka.Message{
		Partition: 2,
		Offset:    41,
		Value:     []byte("x"),
		Headers:   []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}},
	})
	c := newTestConsumer(t, r)

	var mu sync.Mutex
	var seen []Meta
	c.RegisterHandler(funcHandler{topic: "obs", fn: func(ctx context.Context, _ []byte) error {
		meta, ok := MetaFromContext(ctx)
		assert.True(t, ok)
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, meta)
		if len(seen) < 3 {
			return errors.New("store unavailable")
		}
		return nil
	}})
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(r.offsets()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{41}, r.offsets())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, 3, seen[2].Attempt)
	assert.Equal(t, "obs", seen[2].Topic)
	assert.Equal(t, 2, seen[2].Partition)
	assert.Equal(t, "t-1", seen[2].TraceID)
}

func TestConsumerDeadLettersNonRetryable(t *testing.T) {
	r := newFakeReader(kafka.Message{Partition: 0, Offset: 7, Key: []byte("AAPL"), Value: []byte("{")})
	c := newTestConsumer(t, r, WithConsumerDLQ("obs.dlq"))
	w := &dlqWriter{}
	c.dlq = w

	var calls int32
	c.RegisterHandler(funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		atomic.AddInt32(&calls, 1)
		return NonRetryable(errors.New("decode failed"))
	}})
	require.NoError(t, c.Start())

	assert.Eventually(t, func() bool { return len(r.offsets()) == 1 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "obs.dlq", msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), msgs[0].Key)
	assert.Equal(t, "obs", header(msgs[0], "source_topic"))
	assert.Equal(t, "7", header(msgs[0], "source_offset"))
	assert.Equal(t, "decode failed", header(msgs[0], "error"))
}

func TestConsumerKeepsOffsetWhenDLQFails(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 3, Value: []byte("x")})
	c := newTestConsumer(t, r, WithConsumerDLQ("obs.dlq"))
	c.dlq = &dlqWriter{err: errors.New("broker down")}

	handled := make(chan struct{})
	c.RegisterHandler(funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		defer close(handled)
		panic("boom")
	}})
	require.NoError(t, c.Start())

	<-handled
	require.NoError(t, c.Stop(context.Background()))
	assert.Empty(t, r.offsets())
}

func TestConsumerStartWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t, newFakeReader())
	assert.Error(t, c.Start())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestConsumerStopClosesReaders(t *testing.T) {
	r := newFakeReader()
	c := newTestConsumer(t, r)
	c.RegisterHandler(funcHandler{topic: "obs", fn: func(context.Context, []byte) error { return nil }})
	require.NoError(t, c.Start())

	require.NoError(t, c.Stop(context.Background()))
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.True(t, r.closed)
}

func TestConsumerConfigValidation(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)

	_, err = NewConsumer(WithConsumerBrokers([]string{"b:9092"}), WithConsumerGroupID(""))
	assert.Error(t, err)

	_, err = NewConsumer(WithConsumerBrokers([]string{"b:9092"}), WithConsumerRetry(-1, 0, 0))
	assert.Error(t, err)
}
