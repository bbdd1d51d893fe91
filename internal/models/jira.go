package models

// Request bodies for the Jira REST v2 API

// JiraIssue is the body of POST /rest/api/2/issue
type JiraIssue struct {
	Fields JiraFields `json:"fields"`
}

// JiraFields holds the fields set when creating an epic, story or sub-task
type JiraFields struct {
	Project     JiraKeyRef  `json:"project"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	IssueType   JiraNameRef `json:"issuetype"`
	Parent      *JiraKeyRef `json:"parent,omitempty"`
	// Not every project exposes priority on the create screen
	Priority *JiraNameRef `json:"priority,omitempty"`
}

// JiraKeyRef points at a project or issue by key
type JiraKeyRef struct {
	Key string `json:"key"`
}

// JiraNameRef points at an issue type or priority by name
type JiraNameRef struct {
	Name string `json:"name"`
}

// JiraCreateProject is the body of POST /rest/api/2/project
type JiraCreateProject struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ProjectTypeKey string `json:"projectTypeKey"`
	LeadAccountID  string `json:"leadAccountId"`
}

// Response bodies

// JiraResponse is returned when an issue is created
type JiraResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// JiraCreateProjectResponse is returned when a project is created
type JiraCreateProjectResponse struct {
	ID  int    `json:"id"`
	Key string `json:"key"`
}

// JiraProjectInfo is one entry of GET /rest/api/2/project
type JiraProjectInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// JiraIssueTypeInfo is an issue type available in a project
type JiraIssueTypeInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}
