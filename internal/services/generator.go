package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"jira-assistant/internal/config"
	"jira-assistant/internal/logging"
	"jira-assistant/internal/models"
)

// DefaultProjectName is used when no keyword rule matches
const DefaultProjectName = "Custom Application"

// Generator turns a problem statement into a project hierarchy
type Generator interface {
	Generate(ctx context.Context, statement string) (*models.ProjectData, error)
}

// GenError reports a failed generation
type GenError struct {
	Backend   string
	Retryable bool
	Err       error
}

func (e *GenError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Backend, e.Err)
}

func (e *GenError) Unwrap() error { return e.Err }

// NewGenerator builds the generator selected in the configuration
func NewGenerator(cfg *config.Config, logger *zap.Logger) (Generator, error) {
	switch cfg.Generator.Backend {
	case config.BackendKeyword, "":
		return NewKeywordGenerator(time.Duration(cfg.Generator.LatencyMS)*time.Millisecond, logger), nil
	case config.BackendAnthropic:
		return NewAnthropicGenerator(&cfg.Anthropic, logger), nil
	}
	return nil, fmt.Errorf("unknown generator backend %q", cfg.Generator.Backend)
}

type nameRule struct {
	all  []string
	any  []string
	name string
}

func (r nameRule) matches(text string) bool {
	for _, kw := range r.all {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, kw := range r.any {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Order matters: the first matching rule names the project.
var nameRules = []nameRule{
	{all: []string{"food", "delivery"}, name: "Food Delivery Platform"},
	{any: []string{"e-commerce", "shopping"}, name: "E-Commerce Platform"},
	{any: []string{"chat", "messaging"}, name: "Chat Application"},
	{any: []string{"booking", "reservation"}, name: "Booking System"},
	{any: []string{"social", "network"}, name: "Social Platform"},
	{all: []string{"project", "management"}, name: "Project Management Tool"},
}

// ExtractProjectName picks a project name from keywords in the statement
func ExtractProjectName(statement string) string {
	text := strings.ToLower(statement)
	for _, rule := range nameRules {
		if rule.matches(text) {
			return rule.name
		}
	}
	return DefaultProjectName
}

const maxKeyLen = 6

// DeriveKey builds a project key from a name: upper-cased, everything but
// letters and whitespace dropped, the first three characters of every
// space-separated word, at most six letters.
func DeriveKey(name string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || unicode.IsSpace(r) {
			cleaned.WriteRune(r)
		}
	}

	var key strings.Builder
	for _, word := range strings.Split(cleaned.String(), " ") {
		runes := []rune(word)
		if len(runes) > 3 {
			runes = runes[:3]
		}
		// Whitespace other than a plain space stays inside a word but never
		// reaches the key
		for _, r := range runes {
			if r >= 'A' && r <= 'Z' && key.Len() < maxKeyLen {
				key.WriteRune(r)
			}
		}
	}
	return key.String()
}

// KeywordGenerator fills a fixed template named after keywords in the statement
type KeywordGenerator struct {
	latency time.Duration
	logger  *zap.Logger
}

// NewKeywordGenerator creates a keyword generator that waits latency before answering
func NewKeywordGenerator(latency time.Duration, logger *zap.Logger) *KeywordGenerator {
	return &KeywordGenerator{latency: latency, logger: logging.OrNop(logger)}
}

// Generate never fails on its own; it only returns ctx errors while waiting
func (g *KeywordGenerator) Generate(ctx context.Context, statement string) (*models.ProjectData, error) {
	if err := sleepContext(ctx, g.latency); err != nil {
		return nil, &GenError{Backend: config.BackendKeyword, Err: err}
	}

	name := ExtractProjectName(statement)
	project := TemplateProject(name, DeriveKey(name))
	g.logger.Info("Generated project structure",
		zap.String("name", project.Name),
		zap.String("key", project.Key))
	return project, nil
}

// TemplateProject returns the fixed epic, story and task template for a project
func TemplateProject(name, key string) *models.ProjectData {
	return &models.ProjectData{
		Name: name,
		Key:  key,
		Epic: models.Epic{
			ID:          "epic-1",
			Title:       name + " Development",
			Description: fmt.Sprintf("Complete development of %s with all core features and functionality as described in the problem statement.", name),
			UserStories: []models.UserStory{
				{
					ID:          "story-1",
					Title:       "User Authentication System",
					Description: "As a user, I want to securely sign up, log in, and manage my account so that my data is protected and I can access personalized features.",
					Priority:    models.PriorityHigh,
					Tasks: []models.Task{
						{ID: "task-1", Title: "Implement user registration", Description: "Create registration form with validation and email verification", Priority: models.PriorityHigh},
						{ID: "task-2", Title: "Implement user login", Description: "Create login form with authentication and session management", Priority: models.PriorityHigh},
						{ID: "task-3", Title: "Password reset functionality", Description: "Allow users to reset their password via email", Priority: models.PriorityMedium},
					},
				},
				{
					ID:          "story-2",
					Title:       "Core Application Features",
					Description: "As a user, I want to access the main features of the application so that I can accomplish my primary goals.",
					Priority:    models.PriorityHigh,
					Tasks: []models.Task{
						{ID: "task-4", Title: "Design main user interface", Description: "Create responsive and intuitive UI for core features", Priority: models.PriorityHigh},
						{ID: "task-5", Title: "Implement core functionality", Description: "Build the main features as described in requirements", Priority: models.PriorityHigh},
						{ID: "task-6", Title: "Add search and filtering", Description: "Allow users to find content quickly", Priority: models.PriorityMedium},
					},
				},
				{
					ID:          "story-3",
					Title:       "Mobile Optimization",
					Description: "As a user, I want the application to work seamlessly on mobile devices so that I can use it anywhere.",
					Priority:    models.PriorityMedium,
					Tasks: []models.Task{
						{ID: "task-7", Title: "Responsive design implementation", Description: "Ensure all features work properly on mobile devices", Priority: models.PriorityMedium},
						{ID: "task-8", Title: "Touch gesture support", Description: "Add appropriate touch interactions for mobile users", Priority: models.PriorityLow},
					},
				},
			},
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
