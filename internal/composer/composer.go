// Package composer implements the query composer session: the editable query
// buffer, engine selection, selection-aware runs, search and replace, and the
// engine keymap.
//
// All state transitions go through Session methods. The buffer is written
// only through the debounced synchronizer; match ranges are recomputed after
// every buffer change so they always refer to the current text.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/clock"
	"github.com/leapstack-labs/querycomposer/internal/format"
	"github.com/leapstack-labs/querycomposer/internal/keymap"
	"github.com/leapstack-labs/querycomposer/internal/notifier"
	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/search"
	"github.com/leapstack-labs/querycomposer/internal/statement"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
	"github.com/leapstack-labs/querycomposer/internal/textsync"
)

// DefaultRunThrottle coalesces accidental double runs.
const DefaultRunThrottle = 250 * time.Millisecond

// persistTimeout bounds fire-and-forget store writes.
const persistTimeout = 5 * time.Second

// DefaultUDFLanguages lists engine languages that accept user defined functions.
var DefaultUDFLanguages = []string{"hive", "presto", "sparksql", "trino"}

// Store is the slower, authoritative home of the session state.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, text string) error
	LoadSession(ctx context.Context, key string) (engineID, executionID string, err error)
	SetEngine(ctx context.Context, key, engineID string) error
	SetExecution(ctx context.Context, key, executionID string) error
}

// Executor submits query text to an engine.
type Executor interface {
	Submit(ctx context.Context, text, engineID string) (string, error)
}

// DocumentService creates documents from composer content.
type DocumentService interface {
	CreateFromExecution(ctx context.Context, executionID, engineID, text string) (string, error)
	CreateFromText(ctx context.Context, text, engineID string) (string, error)
}

// Config configures a Session.
type Config struct {
	// Key scopes the persisted state, typically the environment name.
	Key           string
	Engines       *registry.EngineRegistry
	DefaultEngine string
	Keys          keymap.Keys
	UDFLanguages  []string

	// Debounce defaults to textsync.DefaultDelay. RunThrottle defaults to
	// DefaultRunThrottle; a negative value disables it.
	Debounce    time.Duration
	RunThrottle time.Duration
	Clock       clock.Clock

	Store     Store
	Executor  Executor
	Documents DocumentService
	Oracle    statement.Oracle
	Notifier  *notifier.Notifier
	Logger    *slog.Logger
}

// Session is one composer: buffer, engine, execution handle and search state.
type Session struct {
	mu sync.Mutex

	key          string
	engines      *registry.EngineRegistry
	preferred    string
	keys         keymap.Keys
	udfLanguages map[string]struct{}
	throttle     time.Duration
	clock        clock.Clock

	store     Store
	executor  Executor
	documents DocumentService
	resolver  *statement.Resolver
	notifier  *notifier.Notifier
	logger    *slog.Logger

	buffer      *textsync.Synchronizer
	engineID    string
	executionID string
	selection   *textrange.Range
	matches     *search.Result
	keymap      *keymap.Keymap
	running     bool
}

// New creates a session seeded from the store.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("composer: store is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("composer: executor is required")
	}
	if cfg.Engines == nil {
		return nil, errors.New("composer: engine registry is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notifier.New()
	}
	switch {
	case cfg.RunThrottle == 0:
		cfg.RunThrottle = DefaultRunThrottle
	case cfg.RunThrottle < 0:
		cfg.RunThrottle = 0
	}
	if cfg.UDFLanguages == nil {
		cfg.UDFLanguages = DefaultUDFLanguages
	}

	query, err := cfg.Store.Get(ctx, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	engineID, executionID, err := cfg.Store.LoadSession(ctx, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	logger := cfg.Logger.With("session", cfg.Key)
	s := &Session{
		key:          cfg.Key,
		engines:      cfg.Engines,
		preferred:    cfg.DefaultEngine,
		keys:         cfg.Keys,
		udfLanguages: make(map[string]struct{}, len(cfg.UDFLanguages)),
		throttle:     cfg.RunThrottle,
		clock:        cfg.Clock,
		store:        cfg.Store,
		executor:     cfg.Executor,
		documents:    cfg.Documents,
		resolver:     statement.NewResolver(cfg.Oracle, logger),
		notifier:     cfg.Notifier,
		logger:       logger,
		engineID:     engineID,
		executionID:  executionID,
	}
	for _, lang := range cfg.UDFLanguages {
		s.udfLanguages[strings.ToLower(lang)] = struct{}{}
	}

	s.buffer = textsync.New(textsync.Config{
		Initial: query,
		Delay:   cfg.Debounce,
		Clock:   cfg.Clock,
		Write:   s.writeRemote,
		Logger:  logger,
	})
	s.RebuildKeymap()

	return s, nil
}

// writeRemote is the synchronizer's fire-and-forget remote write.
func (s *Session) writeRemote(text string) {
	s.persist("query", func(ctx context.Context) error {
		return s.store.Set(ctx, s.key, text)
	})
}

func (s *Session) persist(what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Error("failed to persist session state", "field", what, "error", err)
	}
}

// Close sends any pending buffer write to the store.
func (s *Session) Close() {
	s.buffer.Flush()
}

// Notifier returns the notice broadcaster used by the session.
func (s *Session) Notifier() *notifier.Notifier {
	return s.notifier
}

// Buffer returns the current local query text.
func (s *Session) Buffer() string {
	return s.buffer.Read()
}

// Edit replaces the buffer. The execution handle is untouched; a selection
// made against the old text is dropped.
func (s *Session) Edit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeBufferLocked(text)
}

func (s *Session) writeBufferLocked(text string) {
	if s.buffer.Write(text) {
		s.selection = nil
		s.refreshSearchLocked()
	}
}

// EditWithSelection replaces the buffer and sets a selection in the new
// text's coordinates.
func (s *Session) EditWithSelection(text string, sel *textrange.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeBufferLocked(text)
	if sel != nil {
		r := *sel
		s.selection = &r
	}
}

// RemoteChanged feeds an external change of the stored query into the
// session. It is ignored while a local edit is pending.
func (s *Session) RemoteChanged(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.buffer.RemoteChanged(text) {
		return false
	}
	s.logger.Debug("buffer replaced by remote change")
	s.selection = nil
	s.refreshSearchLocked()
	return true
}

// SetSelection records the editor selection in buffer coordinates. A nil
// selection means the whole buffer.
func (s *Session) SetSelection(sel *textrange.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel == nil {
		s.selection = nil
		return
	}
	r := *sel
	s.selection = &r
}

// Selection returns a copy of the current selection, or nil.
func (s *Session) Selection() *textrange.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return nil
	}
	r := *s.selection
	return &r
}

// HasSelection reports whether a selection is set.
func (s *Session) HasSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection != nil
}

// ExecutionID returns the current execution handle, or "".
func (s *Session) ExecutionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executionID
}

// CloseExecution dismisses the current execution. The buffer is untouched.
func (s *Session) CloseExecution() {
	s.mu.Lock()
	s.executionID = ""
	s.mu.Unlock()
	s.persist("execution", func(ctx context.Context) error {
		return s.store.SetExecution(ctx, s.key, "")
	})
}

// Clear empties the buffer and then dismisses the execution.
func (s *Session) Clear() {
	s.mu.Lock()
	s.writeBufferLocked("")
	s.executionID = ""
	s.selection = nil
	s.mu.Unlock()

	s.persist("execution", func(ctx context.Context) error {
		return s.store.SetExecution(ctx, s.key, "")
	})
}

// InsertUDF prepends a user defined function script to the buffer. Only
// engines whose language supports UDFs accept it.
func (s *Session) InsertUDF(script string) error {
	engine, ok := s.Engine()
	if !ok {
		return ErrNoEngine
	}
	if !s.SupportsUDF(engine.Language) {
		return fmt.Errorf("%w: %s", ErrUDFUnsupported, engine.Language)
	}

	s.mu.Lock()
	s.writeBufferLocked(script + "\n\n" + s.buffer.Read())
	s.mu.Unlock()

	s.notifier.Info("UDF Added!")
	return nil
}

// Format rewrites the buffer as formatted SQL. A buffer that cannot be
// tokenized is left unchanged.
func (s *Session) Format() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := format.SQL(s.buffer.Read())
	if err != nil {
		return fmt.Errorf("format query: %w", err)
	}
	s.writeBufferLocked(out)
	return nil
}

// SupportsUDF reports whether language accepts user defined functions.
func (s *Session) SupportsUDF(language string) bool {
	_, ok := s.udfLanguages[strings.ToLower(language)]
	return ok
}

// CreateDocument creates a document from the current execution when there is
// one, otherwise from the raw buffer. It returns the path to navigate to.
func (s *Session) CreateDocument(ctx context.Context) (string, error) {
	if s.documents == nil {
		return "", errors.New("composer: no document service configured")
	}

	s.mu.Lock()
	executionID := s.executionID
	engineID := s.effectiveEngineLocked()
	text := s.buffer.Read()
	s.mu.Unlock()

	var (
		docID string
		err   error
	)
	if executionID != "" {
		docID, err = s.documents.CreateFromExecution(ctx, executionID, engineID, text)
	} else {
		docID, err = s.documents.CreateFromText(ctx, text, engineID)
	}
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("document created", "document", docID, "from_execution", executionID != "")
	return DocumentPath(docID), nil
}

// DocumentPath is the navigation target for a document id.
func DocumentPath(id string) string {
	return "/datadoc/" + id + "/"
}
