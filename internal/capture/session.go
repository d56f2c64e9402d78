package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/livp123/pktstream/internal/metrics"
	"github.com/livp123/pktstream/internal/utils/fileutil"
	"github.com/livp123/pktstream/internal/utils/fmtutil"
	"go.uber.org/zap"
)

// State is the lifecycle state of a capture session.
// State 是抓包会话的生命周期状态。
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options controls session timing and the shared output artifact.
// Options 控制会话时序与输出文件。
type Options struct {
	Output         string        // file the producer appends to
	PollInterval   time.Duration // tail loop period
	GracePeriod    time.Duration // wait before the first read
	DrainBuffer    time.Duration // extra tailing after the duration elapses
	StatusEvery    int           // countdown granularity in seconds
	FinalCountdown int           // report every second once remaining <= this
	TopN           int
	MaxLineBytes   int
	MaxDuration    int // 0 means unbounded
	WatchFS        bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Output:         "capture.txt",
		PollInterval:   500 * time.Millisecond,
		GracePeriod:    time.Second,
		DrainBuffer:    2 * time.Second,
		StatusEvery:    5,
		FinalCountdown: 5,
		TopN:           DefaultTopN,
		MaxLineBytes:   minReadChunk,
		WatchFS:        true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Output == "" {
		o.Output = d.Output
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.StatusEvery <= 0 {
		o.StatusEvery = d.StatusEvery
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = d.MaxLineBytes
	}
	return o
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Duration  int       `json:"duration"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Offset    int64     `json:"offset"`
	Remaining int       `json:"remaining"`
	Error     string    `json:"error,omitempty"`
}

// Session runs one bounded capture: launch the producer, tail its output,
// count each parsed record and emit events. A Session is single use.
// Session 执行一次有时限的抓包：启动抓包程序、追踪输出、统计并发送事件。
type Session struct {
	id       string
	duration int
	opts     Options
	tracker  *Tracker
	filter   *Filter
	launcher Launcher
	log      *zap.SugaredLogger

	state atomic.Int32
	done  chan struct{}

	mu        sync.RWMutex
	startedAt time.Time
	offset    int64
	err       error
}

func newSession(duration int, opts Options, tracker *Tracker, filter *Filter, launcher Launcher, log *zap.SugaredLogger) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		duration: duration,
		opts:     opts.withDefaults(),
		tracker:  tracker,
		filter:   filter,
		launcher: launcher,
		log:      log.With("session", id),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Duration() int { return s.duration }

func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session reaches a terminal state and its events are flushed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the failure cause of a Failed session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:        s.id,
		State:     s.State(),
		Duration:  s.duration,
		StartedAt: s.startedAt,
		Offset:    s.offset,
	}
	if info.State == StateRunning {
		info.Remaining = remainingSeconds(s.duration, time.Since(s.startedAt))
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	return info
}

func remainingSeconds(duration int, elapsed time.Duration) int {
	r := duration - int(elapsed/time.Second)
	if r < 0 {
		return 0
	}
	return r
}

// Run executes the session and closes events when it reaches a terminal state.
// Errors are reported as a status event and never returned.
// Run 执行会话，结束后关闭 events；错误以状态事件上报。
func (s *Session) Run(ctx context.Context, events chan<- Event) {
	defer close(s.done)
	defer close(events)

	emit := func(ev Event) {
		events <- ev
	}

	emit(NewStatus(msgStarting, s.duration))
	s.tracker.Reset()

	if err := fileutil.RemoveIfExists(s.opts.Output); err != nil {
		s.fail(err, emit)
		return
	}

	proc, err := s.launcher.Launch(ctx, s.duration, s.opts.Output)
	if err != nil {
		s.fail(err, emit)
		return
	}
	start := time.Now()
	s.mu.Lock()
	s.startedAt = start
	s.mu.Unlock()
	s.state.Store(int32(StateRunning))
	metrics.SessionActive.Set(1)
	s.log.Infof("▶️  Capture running for %ds (output %s)", s.duration, s.opts.Output)

	go func() {
		if err := proc.Wait(); err != nil {
			s.log.Debugf("Producer pid %d exited: %v", proc.Pid(), err)
			return
		}
		s.log.Debugf("Producer pid %d exited", proc.Pid())
	}()

	if err := sleepCtx(ctx, s.opts.GracePeriod); err != nil {
		s.fail(err, emit)
		return
	}

	follower, err := OpenFollower(s.opts.Output, s.opts.MaxLineBytes, s.opts.WatchFS, s.log)
	if err != nil {
		s.fail(err, emit)
		return
	}
	defer follower.Close()

	if err := s.tail(ctx, start, follower, emit); err != nil {
		s.fail(err, emit)
		return
	}

	s.state.Store(int32(StateCompleted))
	metrics.SessionActive.Set(0)
	emit(NewStatus(msgCompleted))
	metrics.SessionsTotal.WithLabelValues(StateCompleted.String()).Inc()
	s.log.Infof("✅ Capture completed: %s records, %s consumed", fmtutil.FormatCount(s.tracker.Total()), fmtutil.FormatBytes(follower.Offset()))
}

// tail polls the follower until duration + drain buffer has elapsed, then drains once more.
func (s *Session) tail(ctx context.Context, start time.Time, f *Follower, emit func(Event)) error {
	total := time.Duration(s.duration)*time.Second + s.opts.DrainBuffer
	lastReported := s.duration
	emit(NewStatus(msgCapturing, s.duration))

	for {
		if err := s.drain(f, emit); err != nil {
			return err
		}

		elapsed := time.Since(start)
		if elapsed >= total {
			break
		}

		remaining := remainingSeconds(s.duration, elapsed)
		if remaining != lastReported && (remaining%s.opts.StatusEvery == 0 || remaining <= s.opts.FinalCountdown) {
			emit(NewStatus(msgCapturing, remaining))
			lastReported = remaining
		}

		wait := s.opts.PollInterval
		if left := total - elapsed; left < wait {
			wait = left
		}
		if err := f.Wait(ctx, wait); err != nil {
			return err
		}
	}

	// final drain for lines written right at the deadline
	return s.drain(f, emit)
}

func (s *Session) drain(f *Follower, emit func(Event)) error {
	res, err := f.ReadLines()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.offset = f.Offset()
	s.mu.Unlock()
	metrics.BytesConsumed.Add(float64(res.Bytes))
	for i := 0; i < res.Oversized; i++ {
		metrics.ObserveLine(metrics.LineOversized)
	}
	if res.Oversized > 0 {
		s.log.Warnf("Skipped %d unterminated run(s) longer than %d bytes", res.Oversized, s.opts.MaxLineBytes)
	}

	for _, line := range res.Lines {
		s.process(line, emit)
	}
	return nil
}

func (s *Session) process(line string, emit func(Event)) {
	r, ok := Parse(line)
	if !ok {
		metrics.ObserveLine(metrics.LineMalformed)
		s.log.Debugf("Skipping malformed line: %q", line)
		return
	}
	if !s.filter.Match(r) {
		metrics.ObserveLine(metrics.LineFiltered)
		return
	}
	metrics.ObserveLine(metrics.LineParsed)

	s.tracker.AddRecord(r)
	emit(PacketEvent{
		Packet:         r,
		IPCounts:       s.tracker.TopAddressMap(s.opts.TopN),
		ProtocolCounts: s.tracker.ProtocolSummary(),
	})
}

func (s *Session) fail(err error, emit func(Event)) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.Errorf("❌ Capture failed: %v", err)
	s.state.Store(int32(StateFailed))
	metrics.SessionActive.Set(0)
	emit(NewStatus(msgError, err.Error()))
	metrics.SessionsTotal.WithLabelValues(StateFailed.String()).Inc()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
