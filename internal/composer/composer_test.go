package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/clock"
	"github.com/leapstack-labs/querycomposer/internal/notifier"
	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/search"
	"github.com/leapstack-labs/querycomposer/internal/statement"
	"github.com/leapstack-labs/querycomposer/internal/testutil"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type memStore struct {
	mu        sync.Mutex
	queries   map[string]string
	engines   map[string]string
	execs     map[string]string
	setCalls  int
	failWrite bool
}

func newMemStore() *memStore {
	return &memStore{queries: map[string]string{}, engines: map[string]string{}, execs: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[key], nil
}

func (m *memStore) Set(_ context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.failWrite {
		return errors.New("disk full")
	}
	m.queries[key] = text
	return nil
}

func (m *memStore) LoadSession(_ context.Context, key string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engines[key], m.execs[key], nil
}

func (m *memStore) SetEngine(_ context.Context, key, engineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[key] = engineID
	return nil
}

func (m *memStore) SetExecution(_ context.Context, key, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[key] = executionID
	return nil
}

func (m *memStore) query(key string) (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[key], m.setCalls
}

type submission struct {
	text, engineID string
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []submission
	handle  string
	err     error
	started chan struct{}
	release chan struct{}
}

func (e *fakeExecutor) Submit(ctx context.Context, text, engineID string) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, submission{text: text, engineID: engineID})
	started, release := e.started, e.release
	e.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return e.handle, e.err
}

func (e *fakeExecutor) submissions() []submission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]submission(nil), e.calls...)
}

type fakeDocs struct {
	fromExecution []string
	fromText      []string
}

func (d *fakeDocs) CreateFromExecution(_ context.Context, executionID, engineID, text string) (string, error) {
	d.fromExecution = append(d.fromExecution, executionID+"|"+engineID+"|"+text)
	return "doc-exec", nil
}

func (d *fakeDocs) CreateFromText(_ context.Context, text, engineID string) (string, error) {
	d.fromText = append(d.fromText, text+"|"+engineID)
	return "doc-text", nil
}

// --- harness ---

type harness struct {
	session  *Session
	store    *memStore
	executor *fakeExecutor
	docs     *fakeDocs
	clock    *clock.Fake
	notices  chan notifier.Notice
}

func testEngines(t *testing.T) *registry.EngineRegistry {
	t.Helper()
	r, err := registry.NewEngineRegistry(
		registry.Engine{ID: "presto", Language: "presto", OrderIndex: 0},
		registry.Engine{ID: "duck", Language: "duckdb", OrderIndex: 1},
		registry.Engine{ID: "hive", Language: "hive", OrderIndex: 2},
	)
	require.NoError(t, err)
	return r
}

func newHarness(t *testing.T, seed func(*memStore)) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		executor: &fakeExecutor{handle: "exec-1"},
		docs:     &fakeDocs{},
		clock:    clock.NewFake(),
	}
	if seed != nil {
		seed(h.store)
	}

	n := notifier.New()
	h.notices = n.Subscribe()
	t.Cleanup(func() { n.Unsubscribe(h.notices) })

	s, err := New(context.Background(), Config{
		Key:           "default",
		Engines:       testEngines(t),
		DefaultEngine: "duck",
		Clock:         h.clock,
		Store:         h.store,
		Executor:      h.executor,
		Documents:     h.docs,
		Notifier:      n,
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	h.session = s
	return h
}

type runResult struct {
	handle string
	err    error
}

// startRun launches Run and waits until it sits in its throttle window.
func (h *harness) startRun(t *testing.T) <-chan runResult {
	t.Helper()
	before := h.clock.Pending()
	done := make(chan runResult, 1)
	go func() {
		handle, err := h.session.Run(context.Background())
		done <- runResult{handle, err}
	}()
	require.Eventually(t, func() bool { return h.clock.Pending() > before }, time.Second, time.Millisecond)
	return done
}

func (h *harness) run(t *testing.T) runResult {
	t.Helper()
	done := h.startRun(t)
	h.clock.Advance(DefaultRunThrottle)
	select {
	case res := <-done:
		return res
	case <-time.After(time.Second):
		t.Fatal("run did not finish")
		return runResult{}
	}
}

// --- tests ---

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Config{Executor: &fakeExecutor{}, Engines: testEngines(t)})
	require.Error(t, err)
	_, err = New(context.Background(), Config{Store: newMemStore(), Engines: testEngines(t)})
	require.Error(t, err)
	_, err = New(context.Background(), Config{Store: newMemStore(), Executor: &fakeExecutor{}})
	require.Error(t, err)
}

func TestSession_RestoresFromStore(t *testing.T) {
	h := newHarness(t, func(m *memStore) {
		m.queries["default"] = "select 42"
		m.engines["default"] = "hive"
		m.execs["default"] = "exec-old"
	})

	assert.Equal(t, "select 42", h.session.Buffer())
	assert.Equal(t, "hive", h.session.EngineID())
	assert.Equal(t, "exec-old", h.session.ExecutionID())
}

func TestSession_EngineFallsBackToDefault(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.engines["default"] = "retired-engine" })
	assert.Equal(t, "duck", h.session.EngineID(), "stored engine no longer registered")

	engine, ok := h.session.Engine()
	require.True(t, ok)
	assert.Equal(t, "duckdb", engine.Language)
}

func TestSession_EditIsDebouncedToStore(t *testing.T) {
	h := newHarness(t, nil)

	h.session.Edit("s")
	h.session.Edit("se")
	h.session.Edit("select 1")
	assert.Equal(t, "select 1", h.session.Buffer())

	_, calls := h.store.query("default")
	assert.Equal(t, 0, calls)

	h.clock.Advance(textsyncDelay)
	stored, calls := h.store.query("default")
	assert.Equal(t, 1, calls)
	assert.Equal(t, "select 1", stored)
}

func TestSession_StoreFailureIsNotSurfaced(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.failWrite = true })

	h.session.Edit("select 1")
	h.clock.Advance(textsyncDelay)

	assert.Equal(t, "select 1", h.session.Buffer())
}

func TestSession_RunWholeBuffer(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select * from t" })

	res := h.run(t)
	require.NoError(t, res.err)
	assert.Equal(t, "exec-1", res.handle)
	assert.Equal(t, []submission{{text: "select * from t", engineID: "duck"}}, h.executor.submissions())
	assert.Equal(t, "exec-1", h.session.ExecutionID())

	h.session.CloseExecution()
	assert.Equal(t, "", h.session.ExecutionID())
	assert.Equal(t, "select * from t", h.session.Buffer())
	assert.Equal(t, "", h.store.execs["default"])
}

func TestSession_RunSelection(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "SELECT 1; SELECT 2;" })

	sel := textrange.New(12, 14)
	h.session.SetSelection(&sel)
	assert.True(t, h.session.HasSelection())

	res := h.run(t)
	require.NoError(t, res.err)
	require.Len(t, h.executor.submissions(), 1)
	assert.Equal(t, "SELECT 2;", h.executor.submissions()[0].text)

	h.session.SetSelection(nil)
	assert.False(t, h.session.HasSelection())
	assert.Nil(t, h.session.Selection())
}

func TestSession_RunDroppedDuringThrottleWindow(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1" })

	done := h.startRun(t)

	_, err := h.session.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)

	h.clock.Advance(DefaultRunThrottle)
	res := <-done
	require.NoError(t, res.err)
	assert.Len(t, h.executor.submissions(), 1)
}

func TestSession_RunDroppedWhileSubmitting(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1" })
	h.executor.started = make(chan struct{}, 1)
	h.executor.release = make(chan struct{})

	done := h.startRun(t)
	h.clock.Advance(DefaultRunThrottle)
	<-h.executor.started

	_, err := h.session.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)

	close(h.executor.release)
	res := <-done
	require.NoError(t, res.err)
	assert.Len(t, h.executor.submissions(), 1)

	// The guard is released once the first run completes.
	h.executor.started = nil
	h.executor.release = nil
	res = h.run(t)
	require.NoError(t, res.err)
	assert.Len(t, h.executor.submissions(), 2)
}

func TestSession_RunCancelledDuringThrottle(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.session.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.executor.submissions())
}

func TestSession_SubmitFailureKeepsState(t *testing.T) {
	h := newHarness(t, func(m *memStore) {
		m.queries["default"] = "select broken"
		m.engines["default"] = "presto"
		m.execs["default"] = "exec-prev"
	})
	h.executor.err = errors.New("connection refused")

	res := h.run(t)
	require.Error(t, res.err)

	var subErr *SubmitError
	require.True(t, errors.As(res.err, &subErr))
	assert.Equal(t, "presto", subErr.EngineID)
	assert.Contains(t, subErr.Error(), "connection refused")

	assert.Equal(t, "exec-prev", h.session.ExecutionID())
	assert.Equal(t, "select broken", h.session.Buffer())
	assert.Equal(t, "presto", h.session.EngineID())

	notices := notifier.Drain(h.notices)
	require.Len(t, notices, 1)
	assert.Equal(t, notifier.LevelError, notices[0].Level)
}

func TestSession_SelectEngine(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, "hive", h.session.SelectEngine("hive"))
	assert.Equal(t, "hive", h.session.EngineID())
	assert.Equal(t, "hive", h.store.engines["default"])

	assert.Equal(t, "duck", h.session.SelectEngine("missing"), "unknown id uses the default engine")
	assert.Equal(t, "duck", h.session.EngineID())

	assert.Equal(t, "duck", h.session.SelectEngine(""))
}

func TestSession_Keymap(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1" })

	km := h.session.Keymap()
	assert.Equal(t, []string{"Alt-1", "Alt-2", "Alt-3", "Shift-Enter"}, km.Keys())

	require.True(t, km.Dispatch("Alt-3"))
	assert.Equal(t, "hive", h.session.EngineID())
	require.True(t, km.Dispatch("Alt-1"))
	assert.Equal(t, "presto", h.session.EngineID())

	// The run key triggers a run through the throttle window.
	before := h.clock.Pending()
	go km.Dispatch("Shift-Enter")
	require.Eventually(t, func() bool { return h.clock.Pending() > before }, time.Second, time.Millisecond)
	h.clock.Advance(DefaultRunThrottle)
	require.Eventually(t, func() bool { return h.session.ExecutionID() == "exec-1" }, time.Second, time.Millisecond)
	assert.Equal(t, "presto", h.executor.submissions()[0].engineID)
}

func TestSession_RebuildKeymapAfterRegistryChange(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.session.engines.Register(registry.Engine{ID: "spark", Language: "sparksql", OrderIndex: 3}))

	assert.Equal(t, 4, h.session.Keymap().Len(), "keymap is not rebuilt implicitly")
	h.session.RebuildKeymap()
	assert.Equal(t, 5, h.session.Keymap().Len())
}

func TestSession_Clear(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1" })

	res := h.run(t)
	require.NoError(t, res.err)
	sel := textrange.New(0, 3)
	h.session.SetSelection(&sel)

	h.session.Clear()
	assert.Equal(t, "", h.session.Buffer())
	assert.Equal(t, "", h.session.ExecutionID())
	assert.False(t, h.session.HasSelection())

	// Clearing an already-empty session is harmless.
	h.session.Clear()
	assert.Equal(t, "", h.session.Buffer())
	assert.Equal(t, "", h.session.ExecutionID())
}

func TestSession_CreateDocument(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1" })

	path, err := h.session.CreateDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/datadoc/doc-text/", path)
	assert.Equal(t, []string{"select 1|duck"}, h.docs.fromText)

	res := h.run(t)
	require.NoError(t, res.err)

	path, err = h.session.CreateDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/datadoc/doc-exec/", path)
	assert.Equal(t, []string{"exec-1|duck|select 1"}, h.docs.fromExecution)
}

func TestSession_SearchAndReplace(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "abcabc" })

	res, err := h.session.Search("a", search.Options{CaseSensitive: true})
	require.NoError(t, err)
	assert.Equal(t, []textrange.Range{textrange.New(0, 1), textrange.New(3, 4)}, res.Ranges)

	require.NoError(t, h.session.ReplaceAll("X"))
	assert.Equal(t, "XbcXbc", h.session.Buffer())

	// The search re-ran against the new buffer.
	require.NotNil(t, h.session.Matches())
	assert.Empty(t, h.session.Matches().Ranges)

	h.session.Edit("a-a")
	assert.Equal(t, []textrange.Range{textrange.New(0, 1), textrange.New(2, 3)}, h.session.Matches().Ranges)

	require.NoError(t, h.session.Replace([]textrange.Range{textrange.New(2, 3)}, "b"))
	assert.Equal(t, "a-b", h.session.Buffer())
}

func TestSession_ReplaceRejectsBadRanges(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "abc" })

	err := h.session.ReplaceAll("x")
	var rangeErr *search.InvalidRangeError
	require.True(t, errors.As(err, &rangeErr), "no active search")

	_, err = h.session.Search("b", search.Options{})
	require.NoError(t, err)

	err = h.session.Replace([]textrange.Range{textrange.New(1, 10)}, "x")
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "abc", h.session.Buffer())
}

func TestSession_SearchInvalidPattern(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "abc" })

	_, err := h.session.Search("(", search.Options{UseRegex: true})
	assert.ErrorIs(t, err, search.ErrInvalidPattern)
	assert.Nil(t, h.session.Matches())

	_, err = h.session.Search("b", search.Options{})
	require.NoError(t, err)
	h.session.ClearSearch()
	assert.Nil(t, h.session.Matches())
}

func TestSession_InsertUDF(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select my_fn(1)" })

	err := h.session.InsertUDF("create temporary function my_fn as 'x'")
	assert.ErrorIs(t, err, ErrUDFUnsupported, "duckdb has no UDF support")

	h.session.SelectEngine("hive")
	require.NoError(t, h.session.InsertUDF("create temporary function my_fn as 'x'"))
	assert.Equal(t, "create temporary function my_fn as 'x'\n\nselect my_fn(1)", h.session.Buffer())

	notices := notifier.Drain(h.notices)
	require.Len(t, notices, 1)
	assert.Equal(t, "UDF Added!", notices[0].Message)
}

func TestSession_RemoteChanged(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1" })

	_, err := h.session.Search("2", search.Options{})
	require.NoError(t, err)

	assert.True(t, h.session.RemoteChanged("select 2"))
	assert.Equal(t, "select 2", h.session.Buffer())
	assert.Len(t, h.session.Matches().Ranges, 1)

	h.session.Edit("select 3")
	assert.False(t, h.session.RemoteChanged("select 4"), "pending local edit wins")
	assert.Equal(t, "select 3", h.session.Buffer())

	h.clock.Advance(textsyncDelay)
	stored, _ := h.store.query("default")
	assert.Equal(t, "select 3", stored)
}

func TestSession_BufferChangeDropsSelection(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 1; select 2;" })
	selectRange := func() {
		sel := textrange.New(12, 14)
		h.session.SetSelection(&sel)
	}

	selectRange()
	h.session.Edit("select 2; select 1;")
	assert.Nil(t, h.session.Selection(), "edit")

	selectRange()
	h.session.Edit("select 2; select 1;")
	assert.True(t, h.session.HasSelection(), "unchanged text keeps the selection")

	_, err := h.session.Search("select", search.Options{})
	require.NoError(t, err)
	require.NoError(t, h.session.ReplaceAll("SELECT"))
	assert.Nil(t, h.session.Selection(), "replace")
	h.clock.Advance(textsyncDelay)

	selectRange()
	require.True(t, h.session.RemoteChanged("select 5; select 6;"))
	assert.Nil(t, h.session.Selection(), "remote change")

	h.session.SelectEngine("hive")
	selectRange()
	require.NoError(t, h.session.InsertUDF("create temporary function f as 'x';"))
	assert.Nil(t, h.session.Selection(), "udf insert")

	sel := textrange.New(0, 3)
	h.session.EditWithSelection("select 7; select 8;", &sel)
	assert.Equal(t, &sel, h.session.Selection())
}

func TestSession_CloseFlushesPendingEdit(t *testing.T) {
	h := newHarness(t, nil)

	h.session.Edit("select 9")
	h.session.Close()

	stored, calls := h.store.query("default")
	assert.Equal(t, "select 9", stored)
	assert.Equal(t, 1, calls)
}

func TestSession_Format(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select a from t where a > 1;select 2" })

	sel := textrange.New(0, 6)
	h.session.SetSelection(&sel)
	require.NoError(t, h.session.Format())
	assert.Equal(t, "SELECT a\nFROM t\nWHERE a > 1;\n\nSELECT 2", h.session.Buffer())
	assert.Nil(t, h.session.Selection())

	h.clock.Advance(textsyncDelay)
	stored, _ := h.store.query("default")
	assert.Equal(t, h.session.Buffer(), stored)
}

func TestSession_FormatUnterminatedKeepsBuffer(t *testing.T) {
	h := newHarness(t, func(m *memStore) { m.queries["default"] = "select 'open" })

	err := h.session.Format()
	require.Error(t, err)
	assert.True(t, errors.Is(err, statement.ErrUnterminated))
	assert.Equal(t, "select 'open", h.session.Buffer())
}
