// Package platform defines the client interface for Git hosting platforms.
// GitHub, GitLab and Gitea each implement this interface; review assembly
// only ever talks to the interface.
package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// PullRequest holds the subset of pull/merge request data a review needs.
type PullRequest struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	HeadBranch  string `json:"head_branch"`
	HeadSHA     string `json:"head_sha"`
	BaseBranch  string `json:"base_branch"`
	Author      string `json:"author"`
	URL         string `json:"url"`
}

// WebhookEventType represents the type of webhook event
type WebhookEventType string

const (
	EventTypePush         WebhookEventType = "push"
	EventTypePullRequest  WebhookEventType = "pull_request"
	EventTypeMergeRequest WebhookEventType = "merge_request"
)

// Normalized PR/MR action names that should trigger a review.
const (
	PREventActionOpened      = "opened"
	PREventActionSynchronize = "synchronize"
	PREventActionReopened    = "reopened"
)

// WebhookEvent represents a parsed webhook event
type WebhookEvent struct {
	Type          WebhookEventType `json:"type"`
	Platform      string           `json:"platform"`
	Owner         string           `json:"owner"`
	Repo          string           `json:"repo"`
	RepoURL       string           `json:"repo_url"`
	Ref           string           `json:"ref"` // branch or tag name
	CommitSHA     string           `json:"commit_sha"`
	PRNumber      int              `json:"pr_number,omitempty"`
	Action        string           `json:"action,omitempty"`
	Sender        string           `json:"sender"`
	PRTitle       string           `json:"pr_title,omitempty"`
	PRDescription string           `json:"pr_description,omitempty"`
	RawPayload    []byte           `json:"-"`
}

// Client is a Git hosting platform client. Implementations fetch review
// inputs over the platform's HTTP API; nothing here shells out to git.
type Client interface {
	// Name returns the platform name (github, gitlab, gitea)
	Name() string

	// GetBaseURL returns the base URL of the platform
	GetBaseURL() string

	// MatchesURL reports whether the repository URL belongs to this
	// platform instance (public domain or configured self-hosted host)
	MatchesURL(repoURL string) bool

	// ParseRepoPath parses owner and repo from a repository URL.
	// GitHub/Gitea use two-level owner/repo; GitLab supports nested
	// group/subgroup/project namespaces.
	ParseRepoPath(repoURL string) (owner, repo string, err error)

	// GetDiff fetches the unified diff of a single commit
	GetDiff(ctx context.Context, repoURL, commitHash string) (string, error)

	// GetFileContent fetches the content of one file at a given ref
	GetFileContent(ctx context.Context, repoURL, path, ref string) (string, error)

	// GetPullRequest retrieves pull request details
	GetPullRequest(ctx context.Context, repoURL string, number int) (*PullRequest, error)

	// ParseWebhook verifies and parses an incoming webhook request
	ParseWebhook(r *http.Request, secret string) (*WebhookEvent, error)

	// ValidateToken validates the configured access token
	ValidateToken(ctx context.Context) error
}

// Options holds options for constructing a platform client
type Options struct {
	Token              string // access token
	BaseURL            string // base URL for self-hosted instances
	InsecureSkipVerify bool   // skip SSL certificate verification
}

// ClientFactory creates a client instance
type ClientFactory func(opts *Options) (Client, error)

var registry = make(map[string]ClientFactory)

// Register registers a client factory under a platform name. Registration
// happens from init functions; a duplicate name is a wiring bug, so it
// panics rather than silently replacing the earlier factory.
func Register(name string, factory ClientFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("duplicate git platform client registered: %s", name))
	}
	registry[name] = factory
}

// Create creates a client by platform name
func Create(name string, opts *Options) (Client, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, &ClientError{
			Platform: name,
			Message:  "platform not registered",
		}
	}
	return factory(opts)
}

// Registered returns the names of all registered platform factories.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ClientError represents a platform-level error
type ClientError struct {
	Platform string
	Message  string
	Status   int // HTTP-like status from the platform API, 0 if unknown
	Err      error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return "[" + e.Platform + "] " + e.Message + ": " + e.Err.Error()
	}
	return "[" + e.Platform + "] " + e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ShouldProcessPREvent reports whether a PR/MR webhook action warrants a
// review. Opened, synchronize and reopened (and their platform-specific
// spellings) do; closed, merged, labeled and the rest do not.
func ShouldProcessPREvent(action string) bool {
	switch strings.ToLower(action) {
	case PREventActionOpened, PREventActionSynchronize, PREventActionReopened:
		return true
	case "open", "update", "reopen":
		return true
	default:
		return false
	}
}
