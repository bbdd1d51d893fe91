package repositories

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

	"jira-assistant/internal/config"
	"jira-assistant/internal/models"
)

// ErrProjectNotFound is returned when JIRA answers 404 for a project
var ErrProjectNotFound = errors.New("JIRA project not found")

// JiraAPIError carries an unexpected JIRA status code
type JiraAPIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *JiraAPIError) Error() string {
	return fmt.Sprintf("%s: JIRA API returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when sent again
func (e *JiraAPIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// JiraRepository handles JIRA API interactions
type JiraRepository struct {
	config *config.JiraConfig
	client *http.Client
}

// NewJiraRepository creates a new JIRA repository
func NewJiraRepository(jiraConfig *config.JiraConfig) *JiraRepository {
	return &JiraRepository{
		config: jiraConfig,
		client: &http.Client{
			Timeout: time.Duration(jiraConfig.Timeout) * time.Second,
		},
	}
}

func (r *JiraRepository) url(path string) string {
	return strings.TrimRight(r.config.BaseURL, "/") + path
}

// do sends a request and decodes a JSON answer when the status matches want
func (r *JiraRepository) do(ctx context.Context, op, method, path string, body, out interface{}, want int) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url(path), reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(r.config.Username, r.config.APIToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return &JiraAPIError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// TestConnection tests the JIRA connection and returns accessible projects
func (r *JiraRepository) TestConnection(ctx context.Context) ([]models.JiraProjectInfo, error) {
	var projects []models.JiraProjectInfo
	if err := r.do(ctx, "list projects", http.MethodGet, "/rest/api/2/project", nil, &projects, http.StatusOK); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProjectInfo gets information about a specific project
func (r *JiraRepository) GetProjectInfo(ctx context.Context, projectKey string) (*models.JiraProjectInfo, error) {
	var project models.JiraProjectInfo
	err := r.do(ctx, "get project", http.MethodGet, "/rest/api/2/project/"+projectKey, nil, &project, http.StatusOK)
	if err != nil {
		var apiErr *JiraAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectKey)
		}
		return nil, err
	}
	return &project, nil
}

// GetIssueTypes gets available issue types for a project
func (r *JiraRepository) GetIssueTypes(ctx context.Context, projectKey string) ([]models.JiraIssueTypeInfo, error) {
	var projectInfo struct {
		IssueTypes []models.JiraIssueTypeInfo `json:"issueTypes"`
	}
	if err := r.do(ctx, "get issue types", http.MethodGet, "/rest/api/2/project/"+projectKey, nil, &projectInfo, http.StatusOK); err != nil {
		return nil, err
	}
	return projectInfo.IssueTypes, nil
}

// CreateProject creates a new software project
func (r *JiraRepository) CreateProject(ctx context.Context, project *models.JiraCreateProject) (*models.JiraCreateProjectResponse, error) {
	var resp models.JiraCreateProjectResponse
	if err := r.do(ctx, "create project", http.MethodPost, "/rest/api/2/project", project, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateIssue creates a new JIRA issue
func (r *JiraRepository) CreateIssue(ctx context.Context, issue *models.JiraIssue) (*models.JiraResponse, error) {
	var jiraResp models.JiraResponse
	if err := r.do(ctx, "create issue", http.MethodPost, "/rest/api/2/issue", issue, &jiraResp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &jiraResp, nil
}
