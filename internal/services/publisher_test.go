package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"jira-assistant/internal/config"
	"jira-assistant/internal/helpers"
	"jira-assistant/internal/models"
)

func TestLogPublisherPublishesTwiceIndependently(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pub := NewLogPublisher(0, zap.New(core))
	tree := templateTree()

	require.NoError(t, pub.Publish(context.Background(), tree))
	require.NoError(t, pub.Publish(context.Background(), tree))

	entries := logs.FilterMessage("Pushing to Jira").All()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		fields := entry.ContextMap()
		assert.EqualValues(t, 3, fields["stories"])
		assert.EqualValues(t, 8, fields["tasks"])

		payload, ok := fields["payload"].(publishedTree)
		require.True(t, ok)
		assert.Equal(t, "FOODEL", payload.Project.Key)
		assert.Equal(t, "Food Delivery Platform Development", payload.Epic.Title)
		assert.Len(t, payload.UserStories[0].Tasks, 3)
	}
	assert.Empty(t, cmp.Diff(templateTree(), tree), "publish must not modify the tree")
}

func TestLogPublisherRejectsNil(t *testing.T) {
	assert.Error(t, NewLogPublisher(0, nil).Publish(context.Background(), nil))
}

func TestLogPublisherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLogPublisher(time.Hour, nil).Publish(ctx, templateTree())

	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDryRunPublisher(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDryRunPublisher(&buf).Publish(context.Background(), templateTree()))

	out := buf.String()
	assert.Contains(t, out, "Dry run mode")
	assert.Contains(t, out, "Food Delivery Platform (FOODEL)")
	assert.Contains(t, out, "Touch gesture support [Low] (task-8)")
	assert.Contains(t, out, "Summary: 1 epic, 3 stories, 8 tasks")
	assert.Contains(t, out, "[1/12] Would create Epic: Food Delivery Platform Development")
	assert.Contains(t, out, "[2/12] Would create Story: User Authentication System")
	assert.Contains(t, out, "[12/12] Would create Sub-task: Touch gesture support")
}

func TestNewPublisher(t *testing.T) {
	cfg := config.Default()
	pub, err := NewPublisher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, pub)

	cfg.Publish.Mode = config.PublishDryRun
	pub, err = NewPublisher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &DryRunPublisher{}, pub)

	cfg.Publish.Mode = config.PublishJira
	pub, err = NewPublisher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &JiraPublisher{}, pub)

	cfg.Publish.Mode = "fax"
	_, err = NewPublisher(cfg, nil)
	assert.Error(t, err)
}

func TestSaveProjectAndSummary(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	path, err := SaveProject(templateTree(), dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "foodel-structure-20250102-030405.json"), path)

	summary, err := os.ReadFile(filepath.Join(dir, "foodel-summary-20250102-030405.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(summary), "# Food Delivery Platform\n"))
	assert.Contains(t, string(summary), "**Total Tasks:** 8")
	assert.Contains(t, string(summary), "- [Low] Touch gesture support")
}

func TestSaveProjectKeepsEarlierRuns(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := SaveProject(templateTree(), dir, now)
	require.NoError(t, err)

	renamed := templateTree()
	renamed.Name = "Food Delivery Reloaded"
	second, err := SaveProject(renamed, dir, now)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(dir, "foodel-structure-20250102-030405-2.json"), second)
	assert.FileExists(t, filepath.Join(dir, "foodel-summary-20250102-030405-2.md"))

	var kept models.ProjectData
	require.NoError(t, helpers.LoadJSON(first, &kept))
	assert.Equal(t, "Food Delivery Platform", kept.Name)
}
