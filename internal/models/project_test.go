package models

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *ProjectData {
	return &ProjectData{
		Name: "Chat Application",
		Key:  "CHAAPP",
		Epic: Epic{
			ID:    "epic-1",
			Title: "Chat Application Development",
			UserStories: []UserStory{
				{ID: "story-1", Title: "Login", Priority: PriorityHigh, Tasks: []Task{
					{ID: "task-1", Title: "Form", Priority: PriorityHigh},
					{ID: "task-2", Title: "Session", Priority: PriorityLow},
				}},
				{ID: "story-2", Title: "Rooms", Priority: PriorityMedium, Tasks: []Task{
					{ID: "task-3", Title: "List rooms", Priority: PriorityMedium},
				}},
			},
		},
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"low": PriorityLow, " Medium ": PriorityMedium, "HIGH": PriorityHigh} {
		got, err := ParsePriority(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParsePriority("urgent")
	assert.Error(t, err)
	assert.False(t, Priority("urgent").Valid())
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleTree()
	clone := orig.Clone()
	require.True(t, cmp.Equal(orig, clone))

	clone.Epic.UserStories[0].Tasks[0].Title = "changed"
	clone.Epic.UserStories[1].Title = "changed"

	assert.Equal(t, "Form", orig.Epic.UserStories[0].Tasks[0].Title)
	assert.Equal(t, "Rooms", orig.Epic.UserStories[1].Title)
	assert.Nil(t, (*ProjectData)(nil).Clone())
}

func TestCountsAndLookup(t *testing.T) {
	tree := sampleTree()
	stories, tasks := tree.Counts()
	assert.Equal(t, 2, stories)
	assert.Equal(t, 3, tasks)

	require.NotNil(t, tree.FindStory("story-2"))
	assert.Nil(t, tree.FindStory("story-9"))
	require.NotNil(t, tree.FindTask("task-3"))
	assert.Equal(t, "List rooms", tree.FindTask("task-3").Title)
	assert.Nil(t, tree.FindTask("task-9"))
}

func TestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleTree())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	epic := raw["epic"].(map[string]any)
	assert.Contains(t, epic, "userStories")
	story := epic["userStories"].([]any)[0].(map[string]any)
	assert.Contains(t, story, "tasks")
	assert.Equal(t, "High", story["priority"])
}
