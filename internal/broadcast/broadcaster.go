package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/livp123/pktstream/internal/metrics"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"go.uber.org/zap"
)

// DefaultQueueSize is the per-viewer outbound buffer used when none is configured.
const DefaultQueueSize = 64

// Drop reasons, used as metric labels.
const (
	dropSendFailed = "send_failed"
	dropQueueFull  = "queue_full"
)

// Conn is one viewer endpoint. Send is only ever called from a single goroutine per Conn.
// Conn 表示一个观察端连接。
type Conn interface {
	Send(data []byte) error
	Close() error
}

type client struct {
	conn  Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Broadcaster fans events out to every registered viewer.
// Each viewer has its own bounded queue and writer goroutine, so a slow or
// dead viewer never delays the others or the publisher.
// Broadcaster 将事件分发给所有已注册的观察端，慢连接不会阻塞其他连接。
type Broadcaster struct {
	queueSize int
	log       *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[Conn]*client
	closed  bool
}

// New creates a Broadcaster.
func New(queueSize int, log *zap.SugaredLogger) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Broadcaster{
		queueSize: queueSize,
		log:       log,
		clients:   make(map[Conn]*client),
	}
}

// Register adds a viewer. Registering the same Conn twice is a no-op.
// Register 注册观察端，重复注册无副作用。
func (b *Broadcaster) Register(conn Conn) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return pkgerrors.ErrViewerGone
	}
	if _, ok := b.clients[conn]; ok {
		return nil
	}

	c := &client{
		conn:  conn,
		queue: make(chan []byte, b.queueSize),
		done:  make(chan struct{}),
	}
	b.clients[conn] = c
	metrics.ViewersConnected.Inc()
	go b.writeLoop(c)

	b.log.Debugf("Viewer registered (%d connected)", len(b.clients))
	return nil
}

// Unregister removes a viewer and closes it. Unknown or already removed viewers are ignored.
// Unregister 移除并关闭观察端，可重复调用。
func (b *Broadcaster) Unregister(conn Conn) {
	b.mu.Lock()
	c, ok := b.clients[conn]
	if ok {
		delete(b.clients, conn)
	}
	remaining := len(b.clients)
	b.mu.Unlock()

	if !ok {
		return
	}
	c.stop()
	if err := conn.Close(); err != nil {
		b.log.Debugf("Closing viewer: %v", err)
	}
	metrics.ViewersConnected.Dec()
	b.log.Debugf("Viewer unregistered (%d connected)", remaining)
}

// Publish serializes event once and queues it for every viewer.
// It never blocks on delivery; viewers whose queue is full are dropped.
// Publish 序列化事件并投递到所有观察端队列，不会阻塞。
func (b *Broadcaster) Publish(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var full []Conn
	b.mu.RLock()
	for conn, c := range b.clients {
		select {
		case c.queue <- data:
		default:
			full = append(full, conn)
		}
	}
	b.mu.RUnlock()

	for _, conn := range full {
		b.drop(conn, dropQueueFull, pkgerrors.ErrViewerQueueFull)
	}
	return nil
}

// Send queues event for a single viewer only.
func (b *Broadcaster) Send(conn Conn, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	b.mu.RLock()
	c, ok := b.clients[conn]
	b.mu.RUnlock()
	if !ok {
		return pkgerrors.ErrViewerGone
	}

	select {
	case c.queue <- data:
		return nil
	default:
		b.drop(conn, dropQueueFull, pkgerrors.ErrViewerQueueFull)
		return pkgerrors.ErrViewerQueueFull
	}
}

// Count returns the number of registered viewers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close unregisters every viewer and rejects new registrations.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	conns := make([]Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		b.Unregister(conn)
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.queue:
			if err := c.conn.Send(data); err != nil {
				b.drop(c.conn, dropSendFailed, err)
				return
			}
		}
	}
}

func (b *Broadcaster) drop(conn Conn, reason string, err error) {
	b.mu.RLock()
	_, ok := b.clients[conn]
	b.mu.RUnlock()
	if !ok {
		return
	}
	b.log.Warnf("⚠️  Dropping viewer (%s): %v", reason, err)
	metrics.ViewerDrops.WithLabelValues(reason).Inc()
	b.Unregister(conn)
}
