package capture

import (
	"context"
	"sync"

	"github.com/livp123/pktstream/internal/metrics"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"go.uber.org/zap"
)

const eventQueueSize = 256

// Publisher delivers session events to viewers.
type Publisher interface {
	Publish(event any) error
}

// Status is the manager's view for status endpoints.
type Status struct {
	Session        *Info             `json:"session,omitempty"`
	TopAddresses   []Count           `json:"top_addresses"`
	ProtocolCounts map[string]uint64 `json:"protocol_counts"`
	Records        uint64            `json:"records"`
}

// Manager owns the single active capture session and the aggregates it feeds.
// Manager 持有唯一的活动抓包会话及其汇总数据。
type Manager struct {
	ctx       context.Context
	opts      Options
	launcher  Launcher
	filter    *Filter
	publisher Publisher
	tracker   *Tracker
	log       *zap.SugaredLogger

	mu      sync.Mutex
	current *Session
	wg      sync.WaitGroup
}

// NewManager creates a Manager. ctx bounds the lifetime of every session it starts.
// NewManager 创建 Manager，ctx 决定其启动的所有会话的生命周期。
func NewManager(ctx context.Context, opts Options, launcher Launcher, filter *Filter, publisher Publisher, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		ctx:       ctx,
		opts:      opts.withDefaults(),
		launcher:  launcher,
		filter:    filter,
		publisher: publisher,
		tracker:   NewTracker(),
		log:       log,
	}
}

// RequestStart starts a new session and returns without waiting for it.
// It fails with ErrSessionAlreadyRunning while another session is not yet terminal.
// RequestStart 启动新会话并立即返回；已有会话运行时返回 ErrSessionAlreadyRunning。
func (m *Manager) RequestStart(duration int) (*Session, error) {
	if duration <= 0 || (m.opts.MaxDuration > 0 && duration > m.opts.MaxDuration) {
		return nil, pkgerrors.NewDurationError(duration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.State().Terminal() {
		metrics.StartRejected.Inc()
		return nil, pkgerrors.ErrSessionAlreadyRunning
	}

	s := newSession(duration, m.opts, m.tracker, m.filter, m.launcher, m.log)
	m.current = s
	events := make(chan Event, eventQueueSize)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		s.Run(m.ctx, events)
	}()
	go func() {
		defer m.wg.Done()
		m.forward(events)
	}()

	m.log.Infof("📡 Capture session %s requested (%ds)", s.ID(), duration)
	return s, nil
}

// forward hands events to the publisher until the session closes the channel.
func (m *Manager) forward(events <-chan Event) {
	for ev := range events {
		if err := m.publisher.Publish(ev); err != nil {
			m.log.Warnf("Failed to publish %s event: %v", ev.Kind(), err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(ev.Kind()).Inc()
	}
}

// Current returns the most recent session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Status returns the current session and aggregates.
func (m *Manager) Status() Status {
	st := Status{
		TopAddresses:   m.tracker.TopAddresses(m.opts.TopN),
		ProtocolCounts: m.tracker.ProtocolSummary(),
		Records:        m.tracker.Total(),
	}
	if s := m.Current(); s != nil {
		info := s.Info()
		st.Session = &info
	}
	return st
}

// Wait blocks until every started session and its event forwarding has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
