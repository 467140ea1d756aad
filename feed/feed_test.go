package feed_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomin-app/tomin-web/feed"
)

// fakeConn replays scripted events, then blocks until closed.
type fakeConn struct {
	events chan feed.Event
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(events ...feed.Event) *fakeConn {
	c := &fakeConn{
		events: make(chan feed.Event, len(events)),
		closed: make(chan struct{}),
	}
	for _, e := range events {
		c.events <- e
	}
	return c
}

func (c *fakeConn) Next() (feed.Event, error) {
	select {
	case event := <-c.events:
		return event, nil
	case <-c.closed:
		return feed.Event{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeTransport hands out one conn per Connect call, failing once the
// script runs out.
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (t *fakeTransport) Connect(ctx context.Context, subject string) (feed.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if len(t.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := t.conns[0]
	t.conns = t.conns[1:]
	return conn, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func tinyBackoff() feed.Backoff {
	return feed.Backoff{Base: time.Millisecond, Cap: 5 * time.Millisecond, MaxAttempts: 2}
}

func waitState(t *testing.T, sub *feed.Subscription, want feed.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sub.State() == want
	}, time.Second, time.Millisecond, "state is %s, want %s", sub.State(), want)
}

func TestSubscribeRequiresSubjectAndTransport(t *testing.T) {
	_, err := feed.Subscribe(context.Background(), &fakeTransport{}, "", nil)
	assert.Error(t, err)

	_, err = feed.Subscribe(context.Background(), nil, "user-1", nil)
	assert.Error(t, err)
}

func TestSubscriptionDispatchesOnlyUploadComplete(t *testing.T) {
	conn := newFakeConn(
		feed.Event{Type: "HEARTBEAT"},
		feed.Event{Type: feed.EventUploadComplete, Message: "statement ready"},
		feed.Event{Type: "SOMETHING_ELSE", Message: "ignored"},
	)
	transport := &fakeTransport{conns: []*fakeConn{conn}}

	var mu sync.Mutex
	var received []feed.Event
	sub, err := feed.Subscribe(context.Background(), transport, "user-1", func(e feed.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, feed.WithBackoff(tinyBackoff()))
	require.NoError(t, err)
	defer sub.Close()

	waitState(t, sub, feed.StateOpen)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, feed.EventUploadComplete, received[0].Type)
	assert.Equal(t, "statement ready", received[0].Message)
	mu.Unlock()
}

func TestCloseIsExplicitAndIdempotent(t *testing.T) {
	conn := newFakeConn()
	transport := &fakeTransport{conns: []*fakeConn{conn}}

	sub, err := feed.Subscribe(context.Background(), transport, "user-1", nil)
	require.NoError(t, err)

	waitState(t, sub, feed.StateOpen)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	<-sub.Done()
	assert.Equal(t, feed.StateClosedExplicit, sub.State())
}

func TestReconnectAfterTransportError(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn(feed.Event{Type: feed.EventUploadComplete})
	transport := &fakeTransport{conns: []*fakeConn{first, second}}

	received := make(chan feed.Event, 1)
	sub, err := feed.Subscribe(context.Background(), transport, "user-1", func(e feed.Event) {
		received <- e
	}, feed.WithBackoff(tinyBackoff()))
	require.NoError(t, err)
	defer sub.Close()

	waitState(t, sub, feed.StateOpen)
	first.Close()

	select {
	case event := <-received:
		assert.Equal(t, feed.EventUploadComplete, event.Type)
	case <-time.After(time.Second):
		t.Fatal("no event after reconnect")
	}
	assert.GreaterOrEqual(t, transport.dialCount(), 2)
}

func TestExhaustedReconnectsGoDown(t *testing.T) {
	transport := &fakeTransport{}

	var downErr error
	downCalled := make(chan struct{})
	sub, err := feed.Subscribe(context.Background(), transport, "user-1", nil,
		feed.WithBackoff(tinyBackoff()),
		feed.WithOnDown(func(cause error) {
			downErr = cause
			close(downCalled)
		}),
	)
	require.NoError(t, err)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}

	<-downCalled
	assert.Equal(t, feed.StateDown, sub.State())
	require.Error(t, downErr)
	assert.Contains(t, downErr.Error(), "unavailable")

	// MaxAttempts reconnects after the initial dial.
	assert.Equal(t, 3, transport.dialCount())
}

func TestBackoffDelay(t *testing.T) {
	b := feed.Backoff{Base: 500 * time.Millisecond, Cap: 30 * time.Second, MaxAttempts: 6}

	assert.Equal(t, 500*time.Millisecond, feed.DelayForTest(b, 1))
	assert.Equal(t, time.Second, feed.DelayForTest(b, 2))
	assert.Equal(t, 2*time.Second, feed.DelayForTest(b, 3))
	assert.Equal(t, 16*time.Second, feed.DelayForTest(b, 6))
	assert.Equal(t, 30*time.Second, feed.DelayForTest(b, 10))
}

func TestManagerReplacesSubscription(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	transport := &fakeTransport{conns: []*fakeConn{first, second}}

	manager := feed.NewManager(transport, feed.WithBackoff(tinyBackoff()))
	defer manager.Close()

	sub1, err := manager.Subscribe(context.Background(), "user-1", nil)
	require.NoError(t, err)
	waitState(t, sub1, feed.StateOpen)

	sub2, err := manager.Subscribe(context.Background(), "user-1", nil)
	require.NoError(t, err)

	// Opening the replacement closed the prior channel first.
	assert.Equal(t, feed.StateClosedExplicit, sub1.State())
	assert.True(t, manager.Active("user-1"))
	assert.NotSame(t, sub1, sub2)
}

func TestManagerUnsubscribe(t *testing.T) {
	transport := &fakeTransport{conns: []*fakeConn{newFakeConn()}}
	manager := feed.NewManager(transport, feed.WithBackoff(tinyBackoff()))

	sub, err := manager.Subscribe(context.Background(), "user-1", nil)
	require.NoError(t, err)
	waitState(t, sub, feed.StateOpen)

	manager.Unsubscribe("user-1")
	assert.False(t, manager.Active("user-1"))
	assert.Equal(t, feed.StateClosedExplicit, sub.State())

	// Unknown subjects are a no-op.
	manager.Unsubscribe("user-2")
}
