package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jira-assistant/internal/logging"
	"jira-assistant/internal/models"
)

// State is a step of the generate, edit, publish flow
type State string

const (
	StateIdle          State = "idle"
	StateGenerating    State = "generating"
	StateEdited        State = "edited"
	StatePublishing    State = "publishing"
	StatePublished     State = "published"
	StatePublishFailed State = "publish_failed"
)

var (
	// ErrBlankStatement is returned when the problem statement is empty
	ErrBlankStatement = errors.New("problem statement is blank")
	// ErrNoProject is returned when an operation needs a generated tree
	ErrNoProject = errors.New("no project has been generated")
	// ErrBusy is returned while a generation or publish is running
	ErrBusy = errors.New("session is busy")
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("session not found")
)

// Snapshot is a copy of a session's state
type Snapshot struct {
	ID         string              `json:"id"`
	State      State               `json:"state"`
	Project    *models.ProjectData `json:"project,omitempty"`
	ActiveEdit *EditTarget         `json:"activeEdit,omitempty"`
	Draft      *Patch              `json:"draft,omitempty"`
}

// Session owns one project tree and walks it from generation to publish.
// Only one generation or publish runs at a time; other calls get ErrBusy.
type Session struct {
	id        string
	generator Generator
	publisher Publisher
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	project *models.ProjectData
	editor  Editor
}

// NewSession creates an idle session
func NewSession(id string, generator Generator, publisher Publisher, logger *zap.Logger) *Session {
	return &Session{
		id:        id,
		generator: generator,
		publisher: publisher,
		logger:    logging.OrNop(logger).With(zap.String("session", id)),
		state:     StateIdle,
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Project returns a copy of the current tree, or nil
func (s *Session) Project() *models.ProjectData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Clone()
}

// Snapshot returns a copy of the whole session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{ID: s.id, State: s.state, Project: s.project.Clone()}
	if target, draft, ok := s.editor.Active(); ok {
		snap.ActiveEdit = &target
		snap.Draft = &draft
	}
	return snap
}

func (s *Session) busy() bool {
	return s.state.busy()
}

func (st State) busy() bool {
	return st == StateGenerating || st == StatePublishing
}

// Generate replaces the tree with one built from statement. On failure the
// previous tree and state are kept.
func (s *Session) Generate(ctx context.Context, statement string) (*models.ProjectData, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, ErrBlankStatement
	}

	s.mu.Lock()
	if s.busy() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	prev := s.state
	s.state = StateGenerating
	s.mu.Unlock()

	s.logger.Info("Generating project structure", zap.Int("statement_len", len(statement)))
	project, err := s.generator.Generate(ctx, statement)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = prev
		s.logger.Warn("Generation failed", zap.Error(err))
		return nil, err
	}

	s.project = project
	s.editor.Cancel()
	s.state = StateEdited
	return project.Clone(), nil
}

// BeginEdit opens an edit on target and returns the seeded draft
func (s *Session) BeginEdit(target EditTarget) (Patch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return Patch{}, err
	}
	return s.editor.Begin(s.project, target)
}

// UpdateEdit merges patch into the open draft
func (s *Session) UpdateEdit(patch Patch) (Patch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return Patch{}, err
	}
	return s.editor.Update(patch)
}

// SaveEdit applies the open draft to the tree
func (s *Session) SaveEdit() (*models.ProjectData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return nil, err
	}

	target, _, _ := s.editor.Active()
	project, err := s.editor.Save(s.project)
	if err != nil {
		return nil, err
	}
	s.project = project
	s.state = StateEdited
	s.logger.Debug("Saved edit", zap.String("kind", string(target.Kind)), zap.String("id", target.ID))
	return project.Clone(), nil
}

// CancelEdit discards the open draft
func (s *Session) CancelEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrBusy
	}
	s.editor.Cancel()
	return nil
}

func (s *Session) editable() error {
	if s.busy() {
		return ErrBusy
	}
	if s.project == nil {
		return ErrNoProject
	}
	return nil
}

// Publish sends the tree to the publisher. Success clears the tree;
// failure keeps it so the caller may edit and retry.
func (s *Session) Publish(ctx context.Context) error {
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.editor.Cancel()
	s.state = StatePublishing
	project := s.project.Clone()
	s.mu.Unlock()

	s.logger.Info("Publishing project", zap.String("key", project.Key))
	err := s.publisher.Publish(ctx, project)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StatePublishFailed
		s.logger.Warn("Publish failed", zap.Error(err))
		return err
	}

	s.project = nil
	s.state = StatePublished
	s.logger.Info("Project published", zap.String("key", project.Key))
	return nil
}

// Abandon drops the tree and any open edit
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrBusy
	}
	s.project = nil
	s.editor.Cancel()
	s.state = StateIdle
	return nil
}

// Store keeps sessions in memory. Sessions untouched for longer than the
// eviction TTL are dropped by RunEviction.
type Store struct {
	generator Generator
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*storeEntry
}

type storeEntry struct {
	session  *Session
	lastSeen time.Time
}

// NewStore creates an empty session store
func NewStore(generator Generator, publisher Publisher, logger *zap.Logger) *Store {
	return &Store{
		generator: generator,
		publisher: publisher,
		logger:    logging.OrNop(logger),
		now:       time.Now,
		sessions:  make(map[string]*storeEntry),
	}
}

// Create starts a new idle session
func (st *Store) Create() *Session {
	session := NewSession(uuid.New().String(), st.generator, st.publisher, st.logger)

	st.mu.Lock()
	st.sessions[session.ID()] = &storeEntry{session: session, lastSeen: st.now()}
	st.mu.Unlock()
	return session
}

// Get returns the session with the given id and marks it as recently used
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	entry, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	entry.lastSeen = st.now()
	return entry.session, nil
}

// Delete abandons and removes a session
func (st *Store) Delete(id string) error {
	session, err := st.Get(id)
	if err != nil {
		return err
	}
	if err := session.Abandon(); err != nil {
		return err
	}

	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
	return nil
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// EvictIdle removes sessions last used before now minus ttl and returns how
// many were removed. Sessions that are generating or publishing are kept.
func (st *Store) EvictIdle(now time.Time, ttl time.Duration) int {
	cutoff := now.Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, entry := range st.sessions {
		if entry.lastSeen.After(cutoff) || entry.session.State().busy() {
			continue
		}
		delete(st.sessions, id)
		removed++
	}
	if removed > 0 {
		st.logger.Info("Evicted idle sessions", zap.Int("count", removed), zap.Int("remaining", len(st.sessions)))
	}
	return removed
}

// RunEviction drops idle sessions every interval until ctx is done.
// A non-positive ttl disables eviction.
func (st *Store) RunEviction(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.EvictIdle(st.now(), ttl)
		}
	}
}
