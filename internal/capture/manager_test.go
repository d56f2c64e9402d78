package capture

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, launcher Launcher, pub Publisher) *Manager {
	opts := testOptions(t)
	opts.MaxDuration = 60
	return NewManager(context.Background(), opts, launcher, nil, pub, zap.NewNop().Sugar())
}

// TestManager_SingleSession tests that a second start is rejected while one runs
// TestManager_SingleSession 测试运行期间拒绝第二次启动
func TestManager_SingleSession(t *testing.T) {
	launcher := &scriptLauncher{writes: []string{sampleLine + "\n"}}
	pub := &recorder{}
	m := newTestManager(t, launcher, pub)

	first, err := m.RequestStart(1)
	require.NoError(t, err)

	second, err := m.RequestStart(1)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, pkgerrors.ErrSessionAlreadyRunning)
	assert.Same(t, first, m.Current())

	m.Wait()
	assert.Equal(t, StateCompleted, first.State())
	assert.Equal(t, int32(1), launcher.launched.Load())
	assert.Equal(t, uint64(1), m.Tracker().Total())

	statuses, packets := split(pub.snapshot())
	assert.Len(t, packets, 1)
	assert.Equal(t, 1, countOf(statuses, msgCompleted))
	assert.Equal(t, 1, countOf(statuses, "Starting packet capture for 1 seconds..."))

	// a finished session frees the slot
	third, err := m.RequestStart(1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), third.ID())
	m.Wait()
	assert.Equal(t, int32(2), launcher.launched.Load())
}

func TestManager_InvalidDuration(t *testing.T) {
	m := newTestManager(t, &scriptLauncher{}, &recorder{})

	for _, d := range []int{0, -5, 61} {
		s, err := m.RequestStart(d)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidDuration, "duration %d", d)
	}
	assert.Nil(t, m.Current())
}

func TestManager_Status(t *testing.T) {
	m := newTestManager(t, &scriptLauncher{writes: []string{sampleLine + "\n"}}, &recorder{})

	st := m.Status()
	assert.Nil(t, st.Session)
	assert.Zero(t, st.Records)

	s, err := m.RequestStart(1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, time.Second, 5*time.Millisecond)
	st = m.Status()
	require.NotNil(t, st.Session)
	assert.Equal(t, s.ID(), st.Session.ID)
	assert.Equal(t, 1, st.Session.Duration)

	m.Wait()
	st = m.Status()
	assert.Equal(t, StateCompleted, st.Session.State)
	assert.Equal(t, uint64(1), st.Records)
	assert.Equal(t, []Count{{Key: "10.0.0.1", Count: 1}}, st.TopAddresses)
	assert.Equal(t, map[string]uint64{"TCP": 1}, st.ProtocolCounts)
}

func TestManager_FailedSessionFreesSlot(t *testing.T) {
	launcher := &scriptLauncher{err: assert.AnError}
	pub := &recorder{}
	m := newTestManager(t, launcher, pub)

	s, err := m.RequestStart(1)
	require.NoError(t, err)
	m.Wait()
	assert.Equal(t, StateFailed, s.State())

	launcher.err = nil
	_, err = m.RequestStart(1)
	assert.NoError(t, err)
	m.Wait()
}
