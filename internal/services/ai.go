package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"jira-assistant/internal/config"
	"jira-assistant/internal/logging"
	"jira-assistant/internal/models"
)

const anthropicVersion = "2023-06-01"

const structurePrompt = `You are a senior project manager and technical lead. Turn the following problem statement into a Jira project with one epic, its user stories and their tasks.

Problem Statement:
%s

Respond with a JSON object that follows this exact structure:
{
  "name": "Project name",
  "key": "Up to 6 uppercase letters",
  "epic": {
    "id": "epic-1",
    "title": "Epic title",
    "description": "Detailed epic description",
    "userStories": [
      {
        "id": "story-1",
        "title": "User story title",
        "description": "As a [user type], I want [goal] so that [benefit]",
        "priority": "High|Medium|Low",
        "tasks": [
          {
            "id": "task-1",
            "title": "Task title",
            "description": "What has to be done",
            "priority": "High|Medium|Low"
          }
        ]
      }
    ]
  }
}

Guidelines:
- Create 3-6 user stories, each with 2-5 tasks
- Story ids are story-1, story-2, ...; task ids are task-1, task-2, ... across the whole project
- Prioritize based on business value and technical dependencies
- Use proper user story format: "As a [persona], I want [goal] so that [benefit]"

Respond ONLY with valid JSON. Do not include any markdown formatting or explanations.`

// AnthropicGenerator asks the Anthropic messages API for a project structure
type AnthropicGenerator struct {
	config *config.AnthropicConfig
	client *http.Client
	logger *zap.Logger
}

// NewAnthropicGenerator creates a new Anthropic-backed generator
func NewAnthropicGenerator(anthropicConfig *config.AnthropicConfig, logger *zap.Logger) *AnthropicGenerator {
	return &AnthropicGenerator{
		config: anthropicConfig,
		client: &http.Client{
			Timeout: time.Duration(anthropicConfig.TimeoutSeconds) * time.Second,
		},
		logger: logging.OrNop(logger),
	}
}

// Generate calls the API with retry and normalizes the returned tree
func (g *AnthropicGenerator) Generate(ctx context.Context, statement string) (*models.ProjectData, error) {
	attempts := g.config.RetryCount
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(g.config.RetryDelaySeconds) * time.Second

	var lastErr *GenError
	for attempt := 1; attempt <= attempts; attempt++ {
		project, err := g.generateOnce(ctx, statement)
		if err == nil {
			return project, nil
		}

		var genErr *GenError
		if !errors.As(err, &genErr) {
			genErr = &GenError{Backend: config.BackendAnthropic, Err: err}
		}
		lastErr = genErr
		g.logger.Warn("Generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err))

		if !genErr.Retryable || attempt == attempts {
			break
		}
		if err := sleepContext(ctx, delay); err != nil {
			return nil, &GenError{Backend: config.BackendAnthropic, Err: err}
		}
	}

	return nil, lastErr
}

func (g *AnthropicGenerator) generateOnce(ctx context.Context, statement string) (*models.ProjectData, error) {
	reqBody := map[string]interface{}{
		"model":      g.config.Model,
		"max_tokens": g.config.MaxTokens,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": fmt.Sprintf(structurePrompt, statement),
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &GenError{Backend: config.BackendAnthropic, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	url := strings.TrimRight(g.config.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &GenError{Backend: config.BackendAnthropic, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GenError{Backend: config.BackendAnthropic, Retryable: ctx.Err() == nil, Err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, &GenError{
			Backend:   config.BackendAnthropic,
			Retryable: retryable,
			Err:       fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var apiResponse struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, &GenError{Backend: config.BackendAnthropic, Retryable: true, Err: fmt.Errorf("failed to decode API response: %w", err)}
	}

	if len(apiResponse.Content) == 0 {
		return nil, &GenError{Backend: config.BackendAnthropic, Retryable: true, Err: fmt.Errorf("empty response from API")}
	}

	project, err := ParseProjectJSON(apiResponse.Content[0].Text)
	if err != nil {
		// Model output varies between calls, so a malformed answer is worth another try.
		return nil, &GenError{Backend: config.BackendAnthropic, Retryable: true, Err: err}
	}

	g.logger.Info("Generated project structure",
		zap.String("backend", config.BackendAnthropic),
		zap.String("name", project.Name),
		zap.String("key", project.Key))
	return project, nil
}

// ParseProjectJSON decodes model output into a normalized project tree
func ParseProjectJSON(text string) (*models.ProjectData, error) {
	responseText := strings.TrimSpace(text)

	// Remove any potential markdown formatting
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var project models.ProjectData
	if err := json.Unmarshal([]byte(responseText), &project); err != nil {
		return nil, fmt.Errorf("failed to parse AI response as JSON: %w\nResponse: %s", err, responseText)
	}

	if strings.TrimSpace(project.Name) == "" {
		return nil, fmt.Errorf("AI response has no project name")
	}

	NormalizeProject(&project)
	return &project, nil
}

// NormalizeProject fills missing ids and keys and canonicalizes priorities.
// Ids already present are kept; duplicates are renumbered.
func NormalizeProject(project *models.ProjectData) {
	project.Key = sanitizeKey(project.Key)
	if project.Key == "" {
		project.Key = DeriveKey(project.Name)
	}
	if project.Epic.ID == "" {
		project.Epic.ID = "epic-1"
	}
	if project.Epic.Title == "" {
		project.Epic.Title = project.Name + " Development"
	}

	storyIDs := make(map[string]bool)
	taskIDs := make(map[string]bool)
	taskN := 0
	for i := range project.Epic.UserStories {
		story := &project.Epic.UserStories[i]
		if story.ID == "" || storyIDs[story.ID] {
			story.ID = fmt.Sprintf("story-%d", i+1)
			for n := i + 1; storyIDs[story.ID]; n++ {
				story.ID = fmt.Sprintf("story-%d", n)
			}
		}
		storyIDs[story.ID] = true
		story.Priority = normalizePriority(story.Priority)
		if story.Tasks == nil {
			story.Tasks = []models.Task{}
		}

		for j := range story.Tasks {
			taskN++
			task := &story.Tasks[j]
			if task.ID == "" || taskIDs[task.ID] {
				task.ID = fmt.Sprintf("task-%d", taskN)
				for n := taskN; taskIDs[task.ID]; n++ {
					task.ID = fmt.Sprintf("task-%d", n)
				}
			}
			taskIDs[task.ID] = true
			task.Priority = normalizePriority(task.Priority)
		}
	}
	if project.Epic.UserStories == nil {
		project.Epic.UserStories = []models.UserStory{}
	}
}

// sanitizeKey keeps the A-Z letters of a model-supplied key, at most six
func sanitizeKey(key string) string {
	var out strings.Builder
	for _, r := range strings.ToUpper(key) {
		if r >= 'A' && r <= 'Z' {
			out.WriteRune(r)
			if out.Len() == maxKeyLen {
				break
			}
		}
	}
	return out.String()
}

func normalizePriority(p models.Priority) models.Priority {
	parsed, err := models.ParsePriority(string(p))
	if err != nil {
		return models.PriorityMedium
	}
	return parsed
}
