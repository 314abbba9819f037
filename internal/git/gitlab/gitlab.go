// Package gitlab implements the Git platform client for GitLab.
package gitlab

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

const defaultGitLabURL = "https://gitlab.com"

func init() {
	platform.Register("gitlab", NewClient)
}

// Client implements the platform.Client interface for GitLab
type Client struct {
	client  *gitlab.Client
	token   string
	baseURL string
}

// NewClient creates a new GitLab client instance
func NewClient(opts *platform.Options) (platform.Client, error) {
	var clientOpts []gitlab.ClientOptionFunc

	if opts.BaseURL != "" && opts.BaseURL != defaultGitLabURL {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(opts.BaseURL))
	}
	if opts.InsecureSkipVerify {
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
		clientOpts = append(clientOpts, gitlab.WithHTTPClient(httpClient))
	}

	client, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "failed to create client",
			Err:      err,
		}
	}

	return &Client{
		client:  client,
		token:   opts.Token,
		baseURL: opts.BaseURL,
	}, nil
}

// Name returns the platform name
func (c *Client) Name() string {
	return "gitlab"
}

// GetBaseURL returns the base URL of the platform
func (c *Client) GetBaseURL() string {
	if c.isDefaultGitLab() {
		return defaultGitLabURL
	}
	return c.baseURL
}

func (c *Client) isDefaultGitLab() bool {
	return c.baseURL == "" || c.baseURL == defaultGitLabURL
}

func (c *Client) extractHostFromBaseURL() string {
	if c.isDefaultGitLab() {
		return "gitlab.com"
	}
	host := strings.TrimPrefix(c.baseURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

// MatchesURL checks if the given repository URL belongs to this GitLab instance
func (c *Client) MatchesURL(repoURL string) bool {
	if repoURL == "" {
		return false
	}
	url := strings.TrimSuffix(repoURL, ".git")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "git@")
	url = strings.Replace(url, ":", "/", 1)

	urlParts := strings.Split(url, "/")
	if len(urlParts) == 0 {
		return false
	}
	urlDomain := urlParts[0]

	if c.isDefaultGitLab() {
		return strings.Contains(urlDomain, "gitlab.com")
	}
	configuredHost := c.extractHostFromBaseURL()
	baseParts := strings.Split(configuredHost, "/")
	if len(baseParts) > 0 {
		return urlDomain == baseParts[0] || strings.HasPrefix(url, configuredHost)
	}
	return false
}

// ParseRepoPath parses owner and repo from a repository URL.
// GitLab supports multi-level namespaces: group/subgroup/.../project.
// The project name is the last segment; everything before it is the owner.
func (c *Client) ParseRepoPath(repoURL string) (owner, repo string, err error) {
	if repoURL == "" {
		return "", "", &platform.ClientError{
			Platform: "gitlab",
			Message:  "empty repository URL",
		}
	}

	url := strings.TrimSuffix(repoURL, ".git")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "git@")
	url = strings.TrimSuffix(url, "/")

	// git@gitlab.com:group/subgroup/project
	if strings.Contains(url, ":") {
		parts := strings.SplitN(url, ":", 2)
		url = parts[0] + "/" + parts[1]
	}

	var cleanParts []string
	for _, part := range strings.Split(url, "/") {
		if part != "" {
			cleanParts = append(cleanParts, part)
		}
	}

	// A first segment containing a dot is a domain, not a group
	var pathParts []string
	if len(cleanParts) > 0 && strings.Contains(cleanParts[0], ".") {
		if len(cleanParts) > 1 {
			pathParts = cleanParts[1:]
		}
	} else {
		pathParts = cleanParts
	}

	if len(pathParts) < 2 {
		return "", "", &platform.ClientError{
			Platform: "gitlab",
			Message:  fmt.Sprintf("invalid repository URL format: %s", repoURL),
		}
	}

	repo = pathParts[len(pathParts)-1]
	owner = strings.Join(pathParts[:len(pathParts)-1], "/")
	return owner, repo, nil
}

// projectPath builds the GitLab project identifier from owner and repo
func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

// GetDiff fetches the diff of a single commit and renders it as unified
// diff text. The GitLab API returns per-file diffs without file headers,
// so the headers are reconstructed here.
func (c *Client) GetDiff(ctx context.Context, repoURL, commitHash string) (string, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return "", err
	}
	pid := projectPath(owner, repo)

	var all []*gitlab.Diff
	opts := &gitlab.GetCommitDiffOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		diffs, resp, err := c.client.Commits.GetCommitDiff(pid, commitHash, opts, gitlab.WithContext(ctx))
		if err != nil {
			logger.Error("Failed to fetch commit diff",
				zap.Error(err),
				zap.String("project", pid),
				zap.String("commit", commitHash),
			)
			return "", &platform.ClientError{
				Platform: "gitlab",
				Message:  "failed to fetch commit diff",
				Status:   statusCode(resp),
				Err:      err,
			}
		}
		all = append(all, diffs...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var sb strings.Builder
	for _, d := range all {
		oldPath := d.OldPath
		newPath := d.NewPath
		if oldPath == "" {
			oldPath = newPath
		}
		if newPath == "" {
			newPath = oldPath
		}
		fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", oldPath, newPath)
		switch {
		case d.NewFile:
			fmt.Fprintf(&sb, "new file mode %s\n", d.BMode)
		case d.DeletedFile:
			fmt.Fprintf(&sb, "deleted file mode %s\n", d.AMode)
		case d.RenamedFile:
			fmt.Fprintf(&sb, "rename from %s\n", d.OldPath)
			fmt.Fprintf(&sb, "rename to %s\n", d.NewPath)
		}
		if d.Diff != "" {
			fmt.Fprintf(&sb, "--- a/%s\n", oldPath)
			fmt.Fprintf(&sb, "+++ b/%s\n", newPath)
			sb.WriteString(d.Diff)
			if !strings.HasSuffix(d.Diff, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}

// GetFileContent fetches the content of one file at a given ref
func (c *Client) GetFileContent(ctx context.Context, repoURL, path, ref string) (string, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return "", err
	}
	pid := projectPath(owner, repo)

	raw, resp, err := c.client.RepositoryFiles.GetRawFile(pid, path, &gitlab.GetRawFileOptions{
		Ref: gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", &platform.ClientError{
			Platform: "gitlab",
			Message:  "failed to fetch file content: " + path,
			Status:   statusCode(resp),
			Err:      err,
		}
	}
	return string(raw), nil
}

// GetPullRequest retrieves merge request details
func (c *Client) GetPullRequest(ctx context.Context, repoURL string, number int) (*platform.PullRequest, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return nil, err
	}
	pid := projectPath(owner, repo)

	mr, resp, err := c.client.MergeRequests.GetMergeRequest(pid, int64(number), nil, gitlab.WithContext(ctx))
	if err != nil {
		logger.Error("Failed to get merge request",
			zap.Error(err),
			zap.String("project", pid),
			zap.Int("number", number),
		)
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "failed to get merge request",
			Status:   statusCode(resp),
			Err:      err,
		}
	}

	return &platform.PullRequest{
		Number:      int(mr.IID),
		Title:       mr.Title,
		Description: mr.Description,
		State:       mr.State,
		HeadBranch:  mr.SourceBranch,
		HeadSHA:     mr.SHA,
		BaseBranch:  mr.TargetBranch,
		Author:      mr.Author.Username,
		URL:         mr.WebURL,
	}, nil
}

// ParseWebhook verifies the X-Gitlab-Token header (when a secret is
// configured) and parses push and merge request events.
func (c *Client) ParseWebhook(r *http.Request, secret string) (*platform.WebhookEvent, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "failed to read webhook body",
			Err:      err,
		}
	}

	if secret != "" {
		token := r.Header.Get("X-Gitlab-Token")
		if token != secret {
			logger.Warn("Invalid webhook token received")
			return nil, &platform.ClientError{
				Platform: "gitlab",
				Message:  "invalid webhook token",
			}
		}
	}

	eventType := r.Header.Get("X-Gitlab-Event")
	if eventType == "" {
		// Some proxies strip the header; fall back to the payload's kind
		var fallback struct {
			ObjectKind string `json:"object_kind"`
		}
		if err := json.Unmarshal(body, &fallback); err == nil {
			switch fallback.ObjectKind {
			case "merge_request":
				eventType = "Merge Request Hook"
			case "push":
				eventType = "Push Hook"
			}
		}
	}

	event := &platform.WebhookEvent{
		Platform:   "gitlab",
		RawPayload: body,
	}

	switch eventType {
	case "Push Hook":
		return parsePushEvent(body, event)
	case "Merge Request Hook":
		return parseMergeRequestEvent(body, event)
	default:
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  fmt.Sprintf("unsupported event type: %s", eventType),
		}
	}
}

func parsePushEvent(body []byte, event *platform.WebhookEvent) (*platform.WebhookEvent, error) {
	var payload struct {
		Ref      string `json:"ref"`
		After    string `json:"after"`
		UserName string `json:"user_name"`
		Project  struct {
			PathWithNamespace string `json:"path_with_namespace"`
			WebURL            string `json:"web_url"`
		} `json:"project"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "failed to parse push event",
			Err:      err,
		}
	}

	parts := strings.SplitN(payload.Project.PathWithNamespace, "/", 2)
	if len(parts) != 2 {
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "invalid project path",
		}
	}

	event.Type = platform.EventTypePush
	event.Owner = parts[0]
	event.Repo = parts[1]
	event.RepoURL = payload.Project.WebURL
	event.Ref = strings.TrimPrefix(payload.Ref, "refs/heads/")
	event.CommitSHA = payload.After
	event.Sender = payload.UserName
	return event, nil
}

func parseMergeRequestEvent(body []byte, event *platform.WebhookEvent) (*platform.WebhookEvent, error) {
	var payload struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Project struct {
			PathWithNamespace string `json:"path_with_namespace"`
			WebURL            string `json:"web_url"`
		} `json:"project"`
		ObjectAttributes struct {
			IID          int    `json:"iid"`
			Title        string `json:"title"`
			Description  string `json:"description"`
			SourceBranch string `json:"source_branch"`
			LastCommit   struct {
				ID string `json:"id"`
			} `json:"last_commit"`
			Action string `json:"action"`
		} `json:"object_attributes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "failed to parse merge request event",
			Err:      err,
		}
	}

	parts := strings.SplitN(payload.Project.PathWithNamespace, "/", 2)
	if len(parts) != 2 {
		return nil, &platform.ClientError{
			Platform: "gitlab",
			Message:  "invalid project path",
		}
	}

	attrs := payload.ObjectAttributes
	event.Type = platform.EventTypeMergeRequest
	event.Owner = parts[0]
	event.Repo = parts[1]
	event.RepoURL = payload.Project.WebURL
	event.Ref = attrs.SourceBranch
	event.CommitSHA = attrs.LastCommit.ID
	event.PRNumber = attrs.IID
	event.Action = normalizeAction(attrs.Action)
	event.Sender = payload.User.Username
	event.PRTitle = attrs.Title
	event.PRDescription = attrs.Description

	logger.Info("Parsed GitLab merge request webhook",
		zap.String("action", event.Action),
		zap.String("owner", event.Owner),
		zap.String("repo", event.Repo),
		zap.Int("mr_number", event.PRNumber),
	)
	return event, nil
}

// normalizeAction maps GitLab MR action names to the unified action set
func normalizeAction(action string) string {
	switch strings.ToLower(action) {
	case "open", "opened":
		return platform.PREventActionOpened
	case "update", "updated":
		return platform.PREventActionSynchronize
	case "reopen", "reopened":
		return platform.PREventActionReopened
	case "close", "closed":
		return "closed"
	case "merge", "merged":
		return "merged"
	default:
		return strings.ToLower(action)
	}
}

// ValidateToken validates the GitLab token
func (c *Client) ValidateToken(ctx context.Context) error {
	_, _, err := c.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return &platform.ClientError{
			Platform: "gitlab",
			Message:  "invalid token",
			Err:      err,
		}
	}
	return nil
}

func statusCode(resp *gitlab.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
