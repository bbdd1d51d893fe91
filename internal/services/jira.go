package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"jira-assistant/internal/config"
	"jira-assistant/internal/helpers"
	"jira-assistant/internal/logging"
	"jira-assistant/internal/models"
	"jira-assistant/internal/repositories"
)

// JIRA issue type names used for each level of the tree
const (
	IssueTypeEpic    = "Epic"
	IssueTypeStory   = "Story"
	IssueTypeSubTask = "Sub-task"
)

// ErrMissingIssueType is returned when a project lacks an issue type the tree needs
var ErrMissingIssueType = errors.New("project is missing issue types")

// JiraClient is the subset of the JIRA REST API the services need
type JiraClient interface {
	TestConnection(ctx context.Context) ([]models.JiraProjectInfo, error)
	GetProjectInfo(ctx context.Context, projectKey string) (*models.JiraProjectInfo, error)
	GetIssueTypes(ctx context.Context, projectKey string) ([]models.JiraIssueTypeInfo, error)
	CreateProject(ctx context.Context, project *models.JiraCreateProject) (*models.JiraCreateProjectResponse, error)
	CreateIssue(ctx context.Context, issue *models.JiraIssue) (*models.JiraResponse, error)
}

// JiraService handles JIRA connection checks for the CLI
type JiraService struct {
	repo    JiraClient
	config  *config.JiraConfig
	console *helpers.Console
}

// NewJiraService creates a new JIRA service
func NewJiraService(jiraConfig *config.JiraConfig, console *helpers.Console) *JiraService {
	if console == nil {
		console = helpers.Stdout
	}
	return &JiraService{
		repo:    repositories.NewJiraRepository(jiraConfig),
		config:  jiraConfig,
		console: console,
	}
}

// TestConnection tests the JIRA connection and validates project access
// for projectKey. An empty key only checks authentication.
func (s *JiraService) TestConnection(ctx context.Context, projectKey string) error {
	s.console.Info("Testing JIRA authentication and listing accessible projects...")

	projects, err := s.repo.TestConnection(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	s.console.Success("Authentication successful! Found %d accessible projects:", len(projects))

	projectFound := false
	for _, project := range projects {
		marker := "📋"
		if project.Key == projectKey {
			marker = "✅"
			projectFound = true
		}
		s.console.Info("  %s %s (%s)", marker, project.Key, project.Name)
	}

	if projectKey == "" {
		s.console.Success("JIRA connection successful")
		return nil
	}

	if !projectFound {
		s.console.Warning("Project key '%s' not found in accessible projects!", projectKey)
		return fmt.Errorf("project key '%s' not found in accessible projects", projectKey)
	}

	s.console.Info("Testing access to project '%s'...", projectKey)
	if _, err := s.repo.GetProjectInfo(ctx, projectKey); err != nil {
		return fmt.Errorf("failed to access project: %w", err)
	}

	s.console.Success("Successfully accessed project '%s'", projectKey)

	types, err := resolveIssueTypes(ctx, s.repo, projectKey)
	if err != nil {
		s.console.Warning("%v", err)
		return err
	}
	s.console.Info("Issue types: %s, %s, %s", types.epic, types.story, types.subtask)

	s.console.Success("JIRA connection successful")
	return nil
}

// issueTypeNames holds the project's own names for each level of the tree
type issueTypeNames struct {
	epic    string
	story   string
	subtask string
}

// resolveIssueTypes checks that the project has epic, story and sub-task
// types. Any sub-task type is accepted when none is named "Sub-task".
func resolveIssueTypes(ctx context.Context, client JiraClient, projectKey string) (issueTypeNames, error) {
	types, err := client.GetIssueTypes(ctx, projectKey)
	if err != nil {
		return issueTypeNames{}, fmt.Errorf("failed to get issue types: %w", err)
	}

	var names issueTypeNames
	for _, it := range types {
		switch {
		case strings.EqualFold(it.Name, IssueTypeEpic):
			names.epic = it.Name
		case strings.EqualFold(it.Name, IssueTypeStory):
			names.story = it.Name
		case it.Subtask && (names.subtask == "" || strings.EqualFold(it.Name, IssueTypeSubTask)):
			names.subtask = it.Name
		}
	}

	var missing []string
	if names.epic == "" {
		missing = append(missing, IssueTypeEpic)
	}
	if names.story == "" {
		missing = append(missing, IssueTypeStory)
	}
	if names.subtask == "" {
		missing = append(missing, IssueTypeSubTask)
	}
	if len(missing) > 0 {
		return names, fmt.Errorf("%w in %s: %s", ErrMissingIssueType, projectKey, strings.Join(missing, ", "))
	}
	return names, nil
}

// JiraPublisher creates the project, epic, stories and sub-tasks in JIRA
type JiraPublisher struct {
	repo   JiraClient
	config *config.JiraConfig
	logger *zap.Logger
}

// NewJiraPublisher creates a publisher backed by the JIRA REST API
func NewJiraPublisher(jiraConfig *config.JiraConfig, logger *zap.Logger) *JiraPublisher {
	return NewJiraPublisherWithClient(repositories.NewJiraRepository(jiraConfig), jiraConfig, logger)
}

// NewJiraPublisherWithClient creates a publisher using the given client
func NewJiraPublisherWithClient(client JiraClient, jiraConfig *config.JiraConfig, logger *zap.Logger) *JiraPublisher {
	return &JiraPublisher{repo: client, config: jiraConfig, logger: logging.OrNop(logger)}
}

// Publish walks the tree top-down. The first failure stops the walk.
func (p *JiraPublisher) Publish(ctx context.Context, project *models.ProjectData) error {
	if project == nil {
		return fmt.Errorf("no project to publish")
	}

	projectKey := p.config.ProjectKey
	if projectKey == "" {
		projectKey = project.Key
	}

	var created []string
	fail := func(stage, node string, err error) error {
		p.logger.Error("Publish failed",
			zap.String("stage", stage),
			zap.String("node", node),
			zap.Strings("created", created),
			zap.Error(err))
		return &PublishError{Stage: stage, Node: node, Created: created, Err: err}
	}

	if err := p.ensureProject(ctx, projectKey, project); err != nil {
		return fail("project", projectKey, err)
	}
	types, err := resolveIssueTypes(ctx, p.repo, projectKey)
	if err != nil {
		return fail("issue types", projectKey, err)
	}

	epicKey, err := p.createIssueWithRetry(ctx, projectKey, project.Epic.Title, project.Epic.Description, types.epic, "", "")
	if err != nil {
		return fail("epic", project.Epic.Title, err)
	}
	created = append(created, epicKey)
	p.logger.Info("Created epic", zap.String("key", epicKey))

	for _, story := range project.Epic.UserStories {
		storyKey, err := p.createIssueWithRetry(ctx, projectKey, story.Title, story.Description, types.story, story.Priority, epicKey)
		if err != nil {
			return fail("story", story.Title, err)
		}
		created = append(created, storyKey)
		p.logger.Info("Created story", zap.String("key", storyKey), zap.String("epic", epicKey))

		for _, task := range story.Tasks {
			taskKey, err := p.createIssueWithRetry(ctx, projectKey, task.Title, task.Description, types.subtask, task.Priority, storyKey)
			if err != nil {
				return fail("task", task.Title, err)
			}
			created = append(created, taskKey)
			p.logger.Debug("Created task", zap.String("key", taskKey), zap.String("story", storyKey))
		}
	}

	p.logger.Info("JIRA tickets created successfully",
		zap.String("project", projectKey),
		zap.Int("issues", len(created)))
	return nil
}

func (p *JiraPublisher) ensureProject(ctx context.Context, projectKey string, project *models.ProjectData) error {
	_, err := p.repo.GetProjectInfo(ctx, projectKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrProjectNotFound) || !p.config.CreateProject {
		return err
	}

	resp, err := p.repo.CreateProject(ctx, &models.JiraCreateProject{
		Key:            projectKey,
		Name:           project.Name,
		Description:    project.Epic.Description,
		ProjectTypeKey: "software",
		LeadAccountID:  p.config.LeadAccountID,
	})
	if err != nil {
		return err
	}
	p.logger.Info("Created project", zap.String("key", resp.Key))
	return nil
}

// createIssueWithRetry creates a JIRA issue with retry logic
func (p *JiraPublisher) createIssueWithRetry(ctx context.Context, projectKey, title, description, issueType string, priority models.Priority, parent string) (string, error) {
	attempts := p.config.RetryCount
	if attempts < 1 {
		attempts = 1
	}
	delay := time.Duration(p.config.RetryDelaySeconds) * time.Second

	var lastErr error
	tried := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		key, err := p.createIssue(ctx, projectKey, title, description, issueType, priority, parent)
		if err == nil {
			return key, nil
		}

		lastErr = err
		p.logger.Warn("Create issue attempt failed",
			zap.String("type", issueType),
			zap.Int("attempt", attempt),
			zap.Error(err))

		var apiErr *repositories.JiraAPIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			break
		}
		if attempt < attempts {
			if err := sleepContext(ctx, delay); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", tried, lastErr)
}

// createIssue creates a single JIRA issue
func (p *JiraPublisher) createIssue(ctx context.Context, projectKey, title, description, issueType string, priority models.Priority, parent string) (string, error) {
	issue := &models.JiraIssue{
		Fields: models.JiraFields{
			Project: models.JiraKeyRef{
				Key: projectKey,
			},
			Summary:     title,
			Description: description,
			IssueType: models.JiraNameRef{
				Name: issueType,
			},
		},
	}

	if parent != "" {
		issue.Fields.Parent = &models.JiraKeyRef{Key: parent}
	}
	if p.config.SetPriority && priority.Valid() {
		issue.Fields.Priority = &models.JiraNameRef{Name: string(priority)}
	}

	resp, err := p.repo.CreateIssue(ctx, issue)
	if err != nil {
		return "", err
	}

	return resp.Key, nil
}
