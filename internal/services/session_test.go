package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-assistant/internal/models"
)

type generatorFunc func(ctx context.Context, statement string) (*models.ProjectData, error)

func (f generatorFunc) Generate(ctx context.Context, statement string) (*models.ProjectData, error) {
	return f(ctx, statement)
}

type publisherFunc func(ctx context.Context, project *models.ProjectData) error

func (f publisherFunc) Publish(ctx context.Context, project *models.ProjectData) error {
	return f(ctx, project)
}

func newTestSession(pub Publisher) *Session {
	if pub == nil {
		pub = NewLogPublisher(0, nil)
	}
	return NewSession("test", NewKeywordGenerator(0, nil), pub, nil)
}

func TestSessionHappyPath(t *testing.T) {
	var published *models.ProjectData
	s := newTestSession(publisherFunc(func(ctx context.Context, p *models.ProjectData) error {
		published = p
		return nil
	}))
	ctx := context.Background()
	assert.Equal(t, StateIdle, s.State())

	project, err := s.Generate(ctx, "  We need food delivery  ")
	require.NoError(t, err)
	assert.Equal(t, "FOODEL", project.Key)
	assert.Equal(t, StateEdited, s.State())

	draft, err := s.BeginEdit(EditTarget{Kind: EditProject})
	require.NoError(t, err)
	assert.Equal(t, "Food Delivery Platform", *draft.Name)

	_, err = s.UpdateEdit(Patch{Name: strPtr("Meal Runner")})
	require.NoError(t, err)
	snap := s.Snapshot()
	require.NotNil(t, snap.ActiveEdit)
	assert.Equal(t, EditProject, snap.ActiveEdit.Kind)

	project, err = s.SaveEdit()
	require.NoError(t, err)
	assert.Equal(t, "Meal Runner", project.Name)
	assert.Equal(t, "FOODEL", project.Key)

	require.NoError(t, s.Publish(ctx))
	assert.Equal(t, StatePublished, s.State())
	assert.Nil(t, s.Project())
	require.NotNil(t, published)
	assert.Equal(t, "Meal Runner", published.Name)

	_, err = s.BeginEdit(EditTarget{Kind: EditEpic})
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestSessionRejectsBlankStatement(t *testing.T) {
	s := newTestSession(nil)
	_, err := s.Generate(context.Background(), " \n\t")
	assert.ErrorIs(t, err, ErrBlankStatement)
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionRequiresProject(t *testing.T) {
	s := newTestSession(nil)
	assert.ErrorIs(t, s.Publish(context.Background()), ErrNoProject)
	_, err := s.SaveEdit()
	assert.ErrorIs(t, err, ErrNoProject)
	_, err = s.UpdateEdit(Patch{})
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestSessionPublishFailureKeepsTree(t *testing.T) {
	fail := true
	s := newTestSession(publisherFunc(func(ctx context.Context, p *models.ProjectData) error {
		if fail {
			return &PublishError{Stage: "epic", Node: p.Epic.Title, Err: errors.New("unavailable")}
		}
		return nil
	}))
	ctx := context.Background()

	_, err := s.Generate(ctx, "chat")
	require.NoError(t, err)

	err = s.Publish(ctx)
	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, StatePublishFailed, s.State())
	require.NotNil(t, s.Project())

	// edits are allowed again after a failed publish
	_, err = s.BeginEdit(EditTarget{Kind: EditTask, ID: "task-1"})
	require.NoError(t, err)
	_, err = s.SaveEdit()
	require.NoError(t, err)
	assert.Equal(t, StateEdited, s.State())

	fail = false
	require.NoError(t, s.Publish(ctx))
	assert.Equal(t, StatePublished, s.State())
}

func TestSessionGenerationFailureKeepsPreviousTree(t *testing.T) {
	calls := 0
	s := NewSession("test", generatorFunc(func(ctx context.Context, statement string) (*models.ProjectData, error) {
		calls++
		if calls > 1 {
			return nil, &GenError{Backend: "test", Err: errors.New("quota")}
		}
		return TemplateProject("Chat Application", "CHAAPP"), nil
	}), NewLogPublisher(0, nil), nil)

	_, err := s.Generate(context.Background(), "chat")
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), "again")
	var genErr *GenError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, StateEdited, s.State())
	assert.Equal(t, "CHAAPP", s.Project().Key)
}

func TestSessionRegenerateReplacesTreeAndDropsDraft(t *testing.T) {
	s := newTestSession(nil)
	ctx := context.Background()

	_, err := s.Generate(ctx, "chat")
	require.NoError(t, err)
	_, err = s.BeginEdit(EditTarget{Kind: EditEpic})
	require.NoError(t, err)

	project, err := s.Generate(ctx, "booking")
	require.NoError(t, err)
	assert.Equal(t, "BOOSYS", project.Key)
	assert.Nil(t, s.Snapshot().ActiveEdit)
}

func TestSessionBusyWhileGenerating(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewSession("test", generatorFunc(func(ctx context.Context, statement string) (*models.ProjectData, error) {
		close(started)
		<-release
		return TemplateProject("Chat Application", "CHAAPP"), nil
	}), NewLogPublisher(0, nil), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Generate(context.Background(), "chat")
		assert.NoError(t, err)
	}()

	<-started
	assert.Equal(t, StateGenerating, s.State())
	_, err := s.Generate(context.Background(), "chat")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Abandon(), ErrBusy)
	assert.ErrorIs(t, s.CancelEdit(), ErrBusy)

	close(release)
	wg.Wait()
	assert.Equal(t, StateEdited, s.State())
}

func TestSessionAbandon(t *testing.T) {
	s := newTestSession(nil)
	_, err := s.Generate(context.Background(), "social")
	require.NoError(t, err)
	_, err = s.BeginEdit(EditTarget{Kind: EditEpic})
	require.NoError(t, err)

	require.NoError(t, s.Abandon())
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Project)
	assert.Nil(t, snap.ActiveEdit)
}

func TestSessionProjectIsACopy(t *testing.T) {
	s := newTestSession(nil)
	project, err := s.Generate(context.Background(), "chat")
	require.NoError(t, err)

	project.Name = "mutated"
	s.Project().Epic.Title = "mutated"
	assert.Equal(t, "Chat Application", s.Project().Name)
	assert.Equal(t, "Chat Application Development", s.Project().Epic.Title)
}

func TestStore(t *testing.T) {
	st := NewStore(NewKeywordGenerator(0, nil), NewLogPublisher(0, nil), nil)
	a := st.Create()
	b := st.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, st.Len())

	got, err := st.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, st.Delete(a.ID()))
	_, err = st.Get(a.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, st.Delete("missing"), ErrSessionNotFound)
	assert.Equal(t, 1, st.Len())
}

func TestStoreEvictsIdleSessions(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gen := generatorFunc(func(ctx context.Context, statement string) (*models.ProjectData, error) {
		close(started)
		<-release
		return TemplateProject("Chat Application", "CHAAPP"), nil
	})

	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	st := NewStore(gen, NewLogPublisher(0, nil), nil)
	st.now = func() time.Time { return clock }

	idle := st.Create()
	recent := st.Create()
	busy := st.Create()

	done := make(chan error, 1)
	go func() {
		_, err := busy.Generate(context.Background(), "chat")
		done <- err
	}()
	<-started

	clock = clock.Add(20 * time.Minute)
	_, err := st.Get(recent.ID())
	require.NoError(t, err)

	assert.Equal(t, 1, st.EvictIdle(clock.Add(15*time.Minute), 30*time.Minute))
	_, err = st.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = st.Get(busy.ID())
	assert.NoError(t, err)
	_, err = st.Get(recent.ID())
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, st.EvictIdle(clock, time.Hour))
	assert.Equal(t, 2, st.EvictIdle(clock.Add(time.Hour), time.Minute))
	assert.Equal(t, 0, st.Len())
}

func TestRunEvictionStopsWithContext(t *testing.T) {
	st := NewStore(NewKeywordGenerator(0, nil), NewLogPublisher(0, nil), nil)
	st.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.RunEviction(ctx, time.Nanosecond, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return st.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	st.RunEviction(context.Background(), 0, 0)
}
