// Package model defines the data models for the application.
// All models use GORM for ORM operations with SQLite database.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// StringArray is a custom type for storing string arrays in SQLite
type StringArray []string

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// TaskStatus represents the lifecycle state of a review task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// TaskPriority represents scheduling priority of a review task
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityNormal TaskPriority = "NORMAL"
)

// Score returns the numeric weight used in queue score calculation.
// Higher values dequeue earlier.
func (p TaskPriority) Score() int {
	switch p {
	case TaskPriorityHigh:
		return 100
	case TaskPriorityNormal:
		return 50
	default:
		return 50
	}
}

// EventType represents the webhook event that triggered a task
type EventType string

const (
	EventTypePush         EventType = "PUSH"
	EventTypePullRequest  EventType = "PULL_REQUEST"
	EventTypeMergeRequest EventType = "MERGE_REQUEST"
)

// PriorityFor maps a triggering event to its scheduling priority.
// Pull and merge requests block humans, so they jump the queue.
func PriorityFor(event EventType) TaskPriority {
	switch event {
	case EventTypePullRequest, EventTypeMergeRequest:
		return TaskPriorityHigh
	default:
		return TaskPriorityNormal
	}
}

// ReviewTask represents a scheduled code review unit of work
type ReviewTask struct {
	ID        string         `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Project association and dedupe key
	ProjectID  string `gorm:"size:20;not null;index;uniqueIndex:idx_project_commit,priority:1" json:"project_id"`
	CommitHash string `gorm:"size:64;not null;uniqueIndex:idx_project_commit,priority:2" json:"commit_hash"`

	// Source information
	RepoURL   string    `gorm:"size:512;not null" json:"repo_url"`
	Branch    string    `gorm:"size:255" json:"branch,omitempty"`
	PRNumber  int       `gorm:"index" json:"pr_number,omitempty"`
	EventType EventType `gorm:"size:50;not null" json:"event_type"`

	// Pull/merge request context, empty for push events
	PRTitle       string `gorm:"size:512" json:"pr_title,omitempty"`
	PRDescription string `gorm:"type:text" json:"pr_description,omitempty"`

	// Author is the webhook sender that triggered the review
	Author string `gorm:"size:255" json:"author,omitempty"`

	// Scheduling
	Priority TaskPriority `gorm:"size:20;not null;default:NORMAL" json:"priority"`
	Status   TaskStatus   `gorm:"size:20;not null;default:PENDING;index" json:"status"`

	// Retry bookkeeping
	RetryCount int `gorm:"default:0;not null" json:"retry_count"`
	MaxRetries int `gorm:"default:3;not null" json:"max_retries"`

	// Timing
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error handling
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// Relations
	Records []ReviewRecord `gorm:"foreignKey:TaskID" json:"records,omitempty"`
}

// Project represents a registered repository that receives reviews
type Project struct {
	ID        string         `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:255;not null" json:"name"`
	Platform string `gorm:"size:50;not null" json:"platform"` // github, gitlab, gitea
	RepoURL  string `gorm:"size:512;not null;uniqueIndex" json:"repo_url"`

	// DefaultBranch is used when a webhook payload omits the ref
	DefaultBranch string `gorm:"size:255;default:main" json:"default_branch"`

	// WebhookSecret verifies inbound webhook signatures (stored, never serialized)
	WebhookSecret string `gorm:"size:255" json:"-"`

	// AccessToken authenticates diff and file-content fetches (stored, never serialized)
	AccessToken string `gorm:"size:512" json:"-"`

	Enabled bool `gorm:"default:true;index" json:"enabled"`
}

// PromptTemplate stores a reusable review prompt
type PromptTemplate struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Category string `gorm:"size:100;not null;index:idx_category_enabled,priority:1" json:"category"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Content  string `gorm:"type:text;not null" json:"content"`
	Enabled  bool   `gorm:"default:true;index:idx_category_enabled,priority:2" json:"enabled"`
}

// ReviewRecord stores the outcome of a completed review pipeline run
type ReviewRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Association
	TaskID string `gorm:"size:20;not null;index" json:"task_id"` // xid reference

	// Provider that ultimately produced the result
	Provider string `gorm:"size:100;not null" json:"provider"`
	Model    string `gorm:"size:255" json:"model,omitempty"`

	// Result payload
	Summary     string  `gorm:"type:text" json:"summary,omitempty"`
	Issues      JSONMap `gorm:"type:json" json:"issues,omitempty"`
	IssuesCount int     `gorm:"default:0" json:"issues_count"`

	// Token accounting
	InputTokens  int `gorm:"default:0" json:"input_tokens"`
	OutputTokens int `gorm:"default:0" json:"output_tokens"`

	// DegradationEvents records provider fallback transitions during the run
	DegradationEvents StringArray `gorm:"type:json" json:"degradation_events,omitempty"`

	// Duration in milliseconds
	Duration int64 `json:"duration,omitempty"`
}

// AllModels returns all models for auto-migration.
// TaskLog is excluded; it lives in a separate log database.
func AllModels() []interface{} {
	return []interface{}{
		&Project{},
		&ReviewTask{},
		&PromptTemplate{},
		&ReviewRecord{},
	}
}
