package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []string
	closes int
	block  chan struct{}
	err    error
}

func (c *fakeConn) Send(data []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type msg struct {
	N int `json:"n"`
}

func payload(n int) string {
	data, _ := json.Marshal(msg{N: n})
	return string(data)
}

// TestBroadcaster_Order tests per-viewer FIFO delivery
// TestBroadcaster_Order 测试每个观察端按发布顺序接收
func TestBroadcaster_Order(t *testing.T) {
	b := New(32, zap.NewNop().Sugar())
	a, c := &fakeConn{}, &fakeConn{}
	require.NoError(t, b.Register(a))
	require.NoError(t, b.Register(c))
	assert.Equal(t, 2, b.Count())

	var want []string
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(msg{N: i}))
		want = append(want, payload(i))
	}

	assert.Eventually(t, func() bool { return len(a.received()) == 20 && len(c.received()) == 20 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, a.received())
	assert.Equal(t, want, c.received())
}

// TestBroadcaster_SlowViewer tests that a stalled viewer is dropped without delaying others
// TestBroadcaster_SlowViewer 测试阻塞的观察端被移除且不影响其他连接
func TestBroadcaster_SlowViewer(t *testing.T) {
	b := New(2, zap.NewNop().Sugar())
	slow := &fakeConn{block: make(chan struct{})}
	defer close(slow.block)
	fast := &fakeConn{}
	require.NoError(t, b.Register(slow))
	require.NoError(t, b.Register(fast))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.Publish(msg{N: i})
			time.Sleep(2 * time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow viewer")
	}

	assert.Eventually(t, func() bool { return len(fast.received()) == 10 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, b.Count())
	assert.Equal(t, 1, slow.closeCount())
}

func TestBroadcaster_SendFailure(t *testing.T) {
	b := New(8, zap.NewNop().Sugar())
	broken := &fakeConn{err: errors.New("broken pipe")}
	ok := &fakeConn{}
	require.NoError(t, b.Register(broken))
	require.NoError(t, b.Register(ok))

	require.NoError(t, b.Publish(msg{N: 1}))
	assert.Eventually(t, func() bool { return b.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Publish(msg{N: 2}))
	assert.Eventually(t, func() bool { return len(ok.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, broken.received())
}

func TestBroadcaster_Unregister(t *testing.T) {
	b := New(8, zap.NewNop().Sugar())
	c := &fakeConn{}
	require.NoError(t, b.Register(c))
	require.NoError(t, b.Register(c))
	assert.Equal(t, 1, b.Count())

	b.Unregister(c)
	b.Unregister(c)
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, 1, c.closeCount())

	// no viewers is not an error
	assert.NoError(t, b.Publish(msg{N: 1}))
}

func TestBroadcaster_Send(t *testing.T) {
	b := New(8, zap.NewNop().Sugar())
	target, other := &fakeConn{}, &fakeConn{}
	require.NoError(t, b.Register(target))
	require.NoError(t, b.Register(other))

	require.NoError(t, b.Send(target, msg{N: 7}))
	assert.Eventually(t, func() bool { return len(target.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{payload(7)}, target.received())
	assert.Empty(t, other.received())

	assert.ErrorIs(t, b.Send(&fakeConn{}, msg{N: 1}), pkgerrors.ErrViewerGone)
}

func TestBroadcaster_Close(t *testing.T) {
	b := New(8, zap.NewNop().Sugar())
	c := &fakeConn{}
	require.NoError(t, b.Register(c))

	b.Close()
	assert.Equal(t, 0, b.Count())
	assert.Equal(t, 1, c.closeCount())
	assert.ErrorIs(t, b.Register(&fakeConn{}), pkgerrors.ErrViewerGone)
}

func TestBroadcaster_MarshalError(t *testing.T) {
	b := New(8, zap.NewNop().Sugar())
	assert.Error(t, b.Publish(make(chan int)))
}

func TestDialNATS_Unreachable(t *testing.T) {
	_, err := DialNATS("nats://127.0.0.1:1", "pktstream.events", zap.NewNop().Sugar())
	assert.Error(t, err)
}
