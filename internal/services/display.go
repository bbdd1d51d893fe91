package services

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jira-assistant/internal/helpers"
	"jira-assistant/internal/models"
)

// DisplayProject prints the project tree in a formatted way
func DisplayProject(console *helpers.Console, project *models.ProjectData) {
	console.Title("Project Structure: %s (%s)", project.Name, project.Key)
	console.Info("Epic: %s", project.Epic.Title)
	console.Info("Description: %s", project.Epic.Description)
	console.Separator()

	for i, story := range project.Epic.UserStories {
		console.Info("Story %d: %s [%s] (%s)", i+1, story.Title, story.Priority, story.ID)
		console.Info("  %s", story.Description)

		for j, task := range story.Tasks {
			console.Info("    Task %d.%d: %s [%s] (%s)", i+1, j+1, task.Title, task.Priority, task.ID)
			if task.Description != "" {
				console.Info("      %s", task.Description)
			}
		}
		console.Separator()
	}

	stories, tasks := project.Counts()
	console.Info("Summary: 1 epic, %d stories, %d tasks", stories, tasks)
}

// SaveProject writes the tree as JSON plus a markdown summary into outputDir
// and returns the JSON path
func SaveProject(project *models.ProjectData, outputDir string, now time.Time) (string, error) {
	if err := helpers.EnsureDir(outputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	prefix := strings.ToLower(project.Key)
	if prefix == "" {
		prefix = "project"
	}

	jsonPath := helpers.NextFreePath(filepath.Join(outputDir, helpers.GenerateOutputFilename(prefix+"-structure", "json", now)))
	if err := helpers.SaveJSON(project, jsonPath); err != nil {
		return "", fmt.Errorf("failed to save project structure: %w", err)
	}

	summaryPath := helpers.NextFreePath(filepath.Join(outputDir, helpers.GenerateOutputFilename(prefix+"-summary", "md", now)))
	if err := helpers.SaveText(ProjectSummary(project), summaryPath); err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}

	return jsonPath, nil
}

// ProjectSummary renders the tree as markdown
func ProjectSummary(project *models.ProjectData) string {
	var summary strings.Builder

	stories, tasks := project.Counts()
	summary.WriteString(fmt.Sprintf("# %s\n\n", project.Name))
	summary.WriteString(fmt.Sprintf("**Key:** %s\n", project.Key))
	summary.WriteString(fmt.Sprintf("**Total Stories:** %d\n", stories))
	summary.WriteString(fmt.Sprintf("**Total Tasks:** %d\n\n", tasks))

	summary.WriteString(fmt.Sprintf("## Epic: %s\n\n", project.Epic.Title))
	summary.WriteString(fmt.Sprintf("%s\n\n", project.Epic.Description))

	for i, story := range project.Epic.UserStories {
		summary.WriteString(fmt.Sprintf("### Story %d: %s\n\n", i+1, story.Title))
		summary.WriteString(fmt.Sprintf("**Priority:** %s\n\n", story.Priority))
		summary.WriteString(fmt.Sprintf("%s\n\n", story.Description))

		if len(story.Tasks) > 0 {
			summary.WriteString("**Tasks:**\n")
			for _, task := range story.Tasks {
				summary.WriteString(fmt.Sprintf("- [%s] %s: %s\n", task.Priority, task.Title, task.Description))
			}
			summary.WriteString("\n")
		}
	}

	return summary.String()
}
