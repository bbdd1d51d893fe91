package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"jira-assistant/internal/config"
	"jira-assistant/internal/helpers"
	"jira-assistant/internal/logging"
	"jira-assistant/internal/models"
)

// Publisher sends a finished project tree to an issue tracker. The result
// is a single success or failure for the whole tree.
type Publisher interface {
	Publish(ctx context.Context, project *models.ProjectData) error
}

// PublishError reports the node a publish stopped at. Created lists the
// issue keys made before the failure; they are not rolled back.
type PublishError struct {
	Stage   string
	Node    string
	Created []string
	Err     error
}

func (e *PublishError) Error() string {
	msg := fmt.Sprintf("publish failed at %s %q: %v", e.Stage, e.Node, e.Err)
	if len(e.Created) > 0 {
		msg += fmt.Sprintf(" (already created: %s)", strings.Join(e.Created, ", "))
	}
	return msg
}

func (e *PublishError) Unwrap() error { return e.Err }

// NewPublisher builds the publisher selected in the configuration
func NewPublisher(cfg *config.Config, logger *zap.Logger) (Publisher, error) {
	switch cfg.Publish.Mode {
	case config.PublishLog, "":
		return NewLogPublisher(time.Duration(cfg.Publish.LatencyMS)*time.Millisecond, logger), nil
	case config.PublishDryRun:
		return NewDryRunPublisher(nil), nil
	case config.PublishJira:
		return NewJiraPublisher(&cfg.Jira, logger), nil
	}
	return nil, fmt.Errorf("unknown publish mode %q", cfg.Publish.Mode)
}

// publishedTask, publishedStory and publishedTree are the shape written
// to the log. Ids are internal and left out.
type publishedTask struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
}

type publishedStory struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	Tasks       []publishedTask `json:"tasks"`
}

type publishedTree struct {
	Project struct {
		Name string `json:"name"`
		Key  string `json:"key"`
	} `json:"project"`
	Epic struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"epic"`
	UserStories []publishedStory `json:"userStories"`
}

func toPublishedTree(project *models.ProjectData) publishedTree {
	var out publishedTree
	out.Project.Name = project.Name
	out.Project.Key = project.Key
	out.Epic.Title = project.Epic.Title
	out.Epic.Description = project.Epic.Description
	out.UserStories = make([]publishedStory, 0, len(project.Epic.UserStories))
	for _, story := range project.Epic.UserStories {
		ps := publishedStory{
			Title:       story.Title,
			Description: story.Description,
			Priority:    story.Priority,
			Tasks:       make([]publishedTask, 0, len(story.Tasks)),
		}
		for _, task := range story.Tasks {
			ps.Tasks = append(ps.Tasks, publishedTask{Title: task.Title, Description: task.Description, Priority: task.Priority})
		}
		out.UserStories = append(out.UserStories, ps)
	}
	return out
}

// LogPublisher only writes the tree to the structured log
type LogPublisher struct {
	latency time.Duration
	logger  *zap.Logger
}

// NewLogPublisher creates a log-only publisher that waits latency before answering
func NewLogPublisher(latency time.Duration, logger *zap.Logger) *LogPublisher {
	return &LogPublisher{latency: latency, logger: logging.OrNop(logger)}
}

// Publish logs the tree and reports success
func (p *LogPublisher) Publish(ctx context.Context, project *models.ProjectData) error {
	if project == nil {
		return fmt.Errorf("no project to publish")
	}
	if err := sleepContext(ctx, p.latency); err != nil {
		return &PublishError{Stage: "project", Node: project.Name, Err: err}
	}

	stories, tasks := project.Counts()
	p.logger.Info("Pushing to Jira",
		zap.Any("payload", toPublishedTree(project)),
		zap.Int("stories", stories),
		zap.Int("tasks", tasks))
	return nil
}

// DryRunPublisher prints what would be created and never contacts JIRA
type DryRunPublisher struct {
	console *helpers.Console
}

// NewDryRunPublisher creates a dry-run publisher writing to out (stdout when nil)
func NewDryRunPublisher(out io.Writer) *DryRunPublisher {
	return &DryRunPublisher{console: helpers.NewConsole(out)}
}

// Publish prints the tree
func (p *DryRunPublisher) Publish(ctx context.Context, project *models.ProjectData) error {
	if project == nil {
		return fmt.Errorf("no project to publish")
	}
	p.console.Info("Dry run mode - no JIRA tickets will be created")
	DisplayProject(p.console, project)

	stories, tasks := project.Counts()
	total := 1 + stories + tasks
	n := 1
	p.console.Progress(n, total, fmt.Sprintf("Would create %s: %s", IssueTypeEpic, project.Epic.Title))
	for _, story := range project.Epic.UserStories {
		n++
		p.console.Progress(n, total, fmt.Sprintf("Would create %s: %s", IssueTypeStory, story.Title))
		for _, task := range story.Tasks {
			n++
			p.console.Progress(n, total, fmt.Sprintf("Would create %s: %s", IssueTypeSubTask, task.Title))
		}
	}
	return nil
}
