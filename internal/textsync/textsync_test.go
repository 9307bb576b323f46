package textsync

import (
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	writes []string
}

func (r *recorder) write(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, v)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func newTestSync(t *testing.T, initial string) (*Synchronizer, *clock.Fake, *recorder) {
	t.Helper()
	clk := clock.NewFake()
	rec := &recorder{}
	s := New(Config{Initial: initial, Delay: 500 * time.Millisecond, Clock: clk, Write: rec.write})
	return s, clk, rec
}

func TestSynchronizer_SeedsFromRemote(t *testing.T) {
	s, _, _ := newTestSync(t, "select 1")
	assert.Equal(t, "select 1", s.Read())
	assert.Equal(t, "select 1", s.Remote())
	assert.False(t, s.Pending())
}

func TestSynchronizer_WriteIsVisibleImmediately(t *testing.T) {
	s, _, rec := newTestSync(t, "")

	assert.True(t, s.Write("sel"))
	assert.Equal(t, "sel", s.Read())
	assert.True(t, s.Pending())
	assert.Empty(t, rec.all())
}

func TestSynchronizer_DebounceCoalescesBurst(t *testing.T) {
	s, clk, rec := newTestSync(t, "")

	for _, v := range []string{"s", "se", "sel", "sele", "selec", "select"} {
		s.Write(v)
		clk.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, rec.all(), "no write before the quiet period elapses")

	clk.Advance(400 * time.Millisecond)
	require.Equal(t, []string{"select"}, rec.all())
	assert.False(t, s.Pending())
	assert.Equal(t, "select", s.Remote())
}

func TestSynchronizer_TimerRestartsFromLastWrite(t *testing.T) {
	s, clk, rec := newTestSync(t, "")

	s.Write("a")
	clk.Advance(499 * time.Millisecond)
	s.Write("ab")
	clk.Advance(499 * time.Millisecond)
	assert.Empty(t, rec.all())

	clk.Advance(time.Millisecond)
	assert.Equal(t, []string{"ab"}, rec.all())
}

func TestSynchronizer_OneWritePerQuietPeriod(t *testing.T) {
	s, clk, rec := newTestSync(t, "")

	s.Write("first")
	clk.Advance(time.Second)
	s.Write("second")
	clk.Advance(time.Second)

	assert.Equal(t, []string{"first", "second"}, rec.all())
}

func TestSynchronizer_EqualWriteIsNoop(t *testing.T) {
	s, clk, rec := newTestSync(t, "same")

	assert.False(t, s.Write("same"))
	assert.False(t, s.Pending())
	assert.Equal(t, 0, clk.Pending())

	s.Write("other")
	clk.Advance(400 * time.Millisecond)
	assert.False(t, s.Write("other"), "equal write must not restart the timer")
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"other"}, rec.all())
}

func TestSynchronizer_RemoteChanged(t *testing.T) {
	tests := []struct {
		name        string
		pendingEdit bool
		remote      string
		wantLocal   string
		wantChanged bool
	}{
		{name: "no pending edit overwrites local", remote: "from store", wantLocal: "from store", wantChanged: true},
		{name: "same value is not a change", remote: "initial", wantLocal: "initial", wantChanged: false},
		{name: "pending edit wins", pendingEdit: true, remote: "from store", wantLocal: "edited", wantChanged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clk, rec := newTestSync(t, "initial")
			if tt.pendingEdit {
				s.Write("edited")
			}

			changed := s.RemoteChanged(tt.remote)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantLocal, s.Read())

			clk.Advance(time.Second)
			if tt.pendingEdit {
				assert.Equal(t, []string{"edited"}, rec.all(), "pending local write still fires")
			} else {
				assert.Empty(t, rec.all())
			}
		})
	}
}

func TestSynchronizer_FlushAndStop(t *testing.T) {
	s, clk, rec := newTestSync(t, "")

	s.Write("flush me")
	s.Flush()
	assert.Equal(t, []string{"flush me"}, rec.all())
	assert.False(t, s.Pending())

	clk.Advance(time.Second)
	assert.Len(t, rec.all(), 1, "stopped timer must not fire again")

	s.Write("dropped")
	s.Stop()
	clk.Advance(time.Second)
	assert.Len(t, rec.all(), 1)
	assert.Equal(t, "dropped", s.Read())
}
