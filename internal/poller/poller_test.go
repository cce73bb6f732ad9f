package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type resetCall struct {
	userID string
	cartID string
}

type mockResetter struct {
	m     sync.Mutex
	calls []resetCall
	err   error
	// failures is the number of calls that fail before the resetter recovers.
	failures int
}

func (m *mockResetter) ResetCartIfCurrent(_ context.Context, userID, cartID string) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls = append(m.calls, resetCall{userID, cartID})
	if m.failures > 0 {
		m.failures--
		return false, errors.New("mongo unavailable")
	}
	return m.err == nil, m.err
}

func (m *mockResetter) getCalls() []resetCall {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]resetCall(nil), m.calls...)
}

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	messages chan kafka.Message

	m         sync.Mutex
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) getCommitted() []int64 {
	f.m.Lock()
	defer f.m.Unlock()
	offsets := make([]int64, 0, len(f.committed))
	for _, m := range f.committed {
		offsets = append(offsets, m.Offset)
	}
	return offsets
}

func (f *fakeReader) Close() error {
	f.m.Lock()
	defer f.m.Unlock()
	f.closed = true
	return nil
}

func eventMessage(t *testing.T, event OrderPlacedEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.UserID), Value: value}
}

func TestHandleMessage_ResetsCart(t *testing.T) {
	resetter := &mockResetter{}
	p := &Poller{resetter: resetter, logger: zap.NewNop()}

	err := p.handleMessage(context.Background(), eventMessage(t, OrderPlacedEvent{
		UserID:    "123",
		CartID:    "cart-1",
		OrderCode: "ORD-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, []resetCall{{"123", "cart-1"}}, resetter.getCalls())
}

func TestHandleMessage_InvalidPayloads(t *testing.T) {
	resetter := &mockResetter{}
	p := &Poller{resetter: resetter, logger: zap.NewNop()}

	err := p.handleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	err = p.handleMessage(context.Background(), kafka.Message{Value: []byte(`{"cart_id":"c"}`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	err = p.handleMessage(context.Background(), kafka.Message{Value: []byte(`{"user_id": 42}`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	assert.Empty(t, resetter.getCalls())
}

func TestHandleMessage_ResetError(t *testing.T) {
	resetter := &mockResetter{err: errors.New("mongo down")}
	p := &Poller{resetter: resetter, logger: zap.NewNop()}

	err := p.handleMessage(context.Background(), eventMessage(t, OrderPlacedEvent{UserID: "123"}))
	assert.ErrorContains(t, err, "mongo down")
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resetter := &mockResetter{}
	reader := &fakeReader{messages: make(chan kafka.Message, 3)}
	p := &Poller{reader: reader, resetter: resetter, logger: zap.NewNop()}

	reader.messages <- withOffset(eventMessage(t, OrderPlacedEvent{UserID: "a", CartID: "1"}), 1)
	reader.messages <- kafka.Message{Value: []byte("garbage"), Offset: 2}
	reader.messages <- withOffset(eventMessage(t, OrderPlacedEvent{UserID: "b", CartID: "2"}), 3)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(resetter.getCalls()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	assert.Equal(t, []resetCall{{"a", "1"}, {"b", "2"}}, resetter.getCalls())
	assert.Equal(t, []int64{1, 2, 3}, reader.getCommitted())
	p.Close()
	assert.True(t, reader.closed)
}

func withOffset(m kafka.Message, offset int64) kafka.Message {
	m.Offset = offset
	return m
}

func TestRun_RetriesFailedResetBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resetter := &mockResetter{failures: 2}
	reader := &fakeReader{messages: make(chan kafka.Message, 2)}
	p := &Poller{reader: reader, resetter: resetter, logger: zap.NewNop(), backoff: time.Millisecond}

	reader.messages <- withOffset(eventMessage(t, OrderPlacedEvent{UserID: "a", CartID: "1"}), 7)
	reader.messages <- withOffset(eventMessage(t, OrderPlacedEvent{UserID: "b", CartID: "2"}), 8)

	go p.Run(ctx)

	require.Eventually(t, func() bool {
		return len(reader.getCommitted()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []resetCall{{"a", "1"}, {"a", "1"}, {"a", "1"}, {"b", "2"}}, resetter.getCalls())
	assert.Equal(t, []int64{7, 8}, reader.getCommitted())
}

func TestRun_CancelDuringRetryDoesNotCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resetter := &mockResetter{err: errors.New("mongo down")}
	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	p := &Poller{reader: reader, resetter: resetter, logger: zap.NewNop(), backoff: time.Hour}

	reader.messages <- withOffset(eventMessage(t, OrderPlacedEvent{UserID: "a", CartID: "1"}), 4)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(resetter.getCalls()) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	assert.Empty(t, reader.getCommitted())
}
