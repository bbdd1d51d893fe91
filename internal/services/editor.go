package services

import (
	"errors"
	"fmt"

	"jira-assistant/internal/models"
)

// EditKind names the level of the tree an edit targets
type EditKind string

const (
	EditProject EditKind = "project"
	EditEpic    EditKind = "epic"
	EditStory   EditKind = "story"
	EditTask    EditKind = "task"
)

var (
	// ErrNoActiveEdit is returned when saving or updating without an open edit
	ErrNoActiveEdit = errors.New("no edit in progress")
	// ErrInvalidPriority is returned for priorities other than Low, Medium or High
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidEditKind is returned for unknown edit kinds
	ErrInvalidEditKind = errors.New("invalid edit kind")
)

// ParseEditKind validates an edit kind
func ParseEditKind(s string) (EditKind, error) {
	switch k := EditKind(s); k {
	case EditProject, EditEpic, EditStory, EditTask:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEditKind, s)
}

// EditTarget identifies one node of the tree
type EditTarget struct {
	Kind EditKind `json:"kind"`
	ID   string   `json:"id"`
}

// Patch is a partial field update. Nil fields are left alone.
type Patch struct {
	Name        *string          `json:"name,omitempty"`
	Key         *string          `json:"key,omitempty"`
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Priority    *models.Priority `json:"priority,omitempty"`
}

// merge overlays the non-nil fields of other onto p
func (p Patch) merge(other Patch) Patch {
	if other.Name != nil {
		p.Name = other.Name
	}
	if other.Key != nil {
		p.Key = other.Key
	}
	if other.Title != nil {
		p.Title = other.Title
	}
	if other.Description != nil {
		p.Description = other.Description
	}
	if other.Priority != nil {
		p.Priority = other.Priority
	}
	return p
}

// ApplyEdit returns a copy of tree with patch applied to the target node.
// Unknown story or task ids leave the copy untouched. The project name and
// key are set independently; the key is not re-derived from the name.
func ApplyEdit(tree *models.ProjectData, target EditTarget, patch Patch) *models.ProjectData {
	out := tree.Clone()
	if out == nil {
		return nil
	}

	switch target.Kind {
	case EditProject:
		setString(&out.Name, patch.Name)
		setString(&out.Key, patch.Key)
	case EditEpic:
		setString(&out.Epic.Title, patch.Title)
		setString(&out.Epic.Description, patch.Description)
	case EditStory:
		if story := out.FindStory(target.ID); story != nil {
			setString(&story.Title, patch.Title)
			setString(&story.Description, patch.Description)
			setPriority(&story.Priority, patch.Priority)
		}
	case EditTask:
		if task := out.FindTask(target.ID); task != nil {
			setString(&task.Title, patch.Title)
			setString(&task.Description, patch.Description)
			setPriority(&task.Priority, patch.Priority)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setPriority(dst *models.Priority, v *models.Priority) {
	if v != nil && v.Valid() {
		*dst = *v
	}
}

// Editor tracks the single edit that may be open at a time
type Editor struct {
	active *EditTarget
	draft  Patch
}

// Active returns the open edit target and its draft
func (e *Editor) Active() (EditTarget, Patch, bool) {
	if e.active == nil {
		return EditTarget{}, Patch{}, false
	}
	return *e.active, e.draft, true
}

// Begin opens an edit on target, seeding the draft with the node's current
// values. Any previous unsaved draft is discarded.
func (e *Editor) Begin(tree *models.ProjectData, target EditTarget) (Patch, error) {
	if _, err := ParseEditKind(string(target.Kind)); err != nil {
		return Patch{}, err
	}

	e.active = &target
	e.draft = currentValues(tree, target)
	return e.draft, nil
}

// Update merges patch into the open draft
func (e *Editor) Update(patch Patch) (Patch, error) {
	if e.active == nil {
		return Patch{}, ErrNoActiveEdit
	}
	if patch.Priority != nil {
		p, err := models.ParsePriority(string(*patch.Priority))
		if err != nil {
			return Patch{}, fmt.Errorf("%w: %v", ErrInvalidPriority, err)
		}
		patch.Priority = &p
	}

	e.draft = e.draft.merge(patch)
	return e.draft, nil
}

// Save applies the draft to tree and closes the edit
func (e *Editor) Save(tree *models.ProjectData) (*models.ProjectData, error) {
	if e.active == nil {
		return nil, ErrNoActiveEdit
	}
	out := ApplyEdit(tree, *e.active, e.draft)
	e.Cancel()
	return out, nil
}

// Cancel discards the open edit, if any
func (e *Editor) Cancel() {
	e.active = nil
	e.draft = Patch{}
}

func currentValues(tree *models.ProjectData, target EditTarget) Patch {
	if tree == nil {
		return Patch{}
	}
	switch target.Kind {
	case EditProject:
		return Patch{Name: strPtr(tree.Name), Key: strPtr(tree.Key)}
	case EditEpic:
		return Patch{Title: strPtr(tree.Epic.Title), Description: strPtr(tree.Epic.Description)}
	case EditStory:
		if story := tree.FindStory(target.ID); story != nil {
			return Patch{Title: strPtr(story.Title), Description: strPtr(story.Description), Priority: priorityPtr(story.Priority)}
		}
	case EditTask:
		if task := tree.FindTask(target.ID); task != nil {
			return Patch{Title: strPtr(task.Title), Description: strPtr(task.Description), Priority: priorityPtr(task.Priority)}
		}
	}
	return Patch{}
}

func strPtr(s string) *string { return &s }

func priorityPtr(p models.Priority) *models.Priority { return &p }
