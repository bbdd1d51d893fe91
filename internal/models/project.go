package models

import (
	"fmt"
	"strings"
)

// Priority is the urgency of a story or task
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority accepts Low, Medium or High in any case and returns the canonical form
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("invalid priority %q (want Low, Medium or High)", s)
}

// Valid reports whether p is one of the canonical priorities
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is the smallest unit of work under a user story
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// UserStory is a feature-level unit of work under an epic
type UserStory struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Tasks       []Task   `json:"tasks"`
}

// Epic groups the user stories of a project
type Epic struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	UserStories []UserStory `json:"userStories"`
}

// ProjectData is the root of a generated hierarchy. It is the contract
// shared by every generator and publisher.
type ProjectData struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Epic Epic   `json:"epic"`
}

// Clone returns a deep copy of the project tree
func (p *ProjectData) Clone() *ProjectData {
	if p == nil {
		return nil
	}
	out := *p
	if p.Epic.UserStories != nil {
		out.Epic.UserStories = make([]UserStory, len(p.Epic.UserStories))
		for i, story := range p.Epic.UserStories {
			out.Epic.UserStories[i] = story
			if story.Tasks != nil {
				out.Epic.UserStories[i].Tasks = append([]Task(nil), story.Tasks...)
			}
		}
	}
	return &out
}

// Counts returns the number of stories and tasks in the tree
func (p *ProjectData) Counts() (stories, tasks int) {
	if p == nil {
		return 0, 0
	}
	for _, story := range p.Epic.UserStories {
		tasks += len(story.Tasks)
	}
	return len(p.Epic.UserStories), tasks
}

// FindStory returns the first story with the given id
func (p *ProjectData) FindStory(id string) *UserStory {
	for i := range p.Epic.UserStories {
		if p.Epic.UserStories[i].ID == id {
			return &p.Epic.UserStories[i]
		}
	}
	return nil
}

// FindTask scans stories in order and returns the first task with the given id
func (p *ProjectData) FindTask(id string) *Task {
	for i := range p.Epic.UserStories {
		tasks := p.Epic.UserStories[i].Tasks
		for j := range tasks {
			if tasks[j].ID == id {
				return &tasks[j]
			}
		}
	}
	return nil
}
