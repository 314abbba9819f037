// Package gitea implements the Git platform client for Gitea.
package gitea

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"code.gitea.io/sdk/gitea"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

const defaultGiteaURL = "https://gitea.com"

func init() {
	platform.Register("gitea", NewClient)
}

// Client implements the platform.Client interface for Gitea
type Client struct {
	client  *gitea.Client
	token   string
	baseURL string
}

// NewClient creates a new Gitea client instance. Gitea is almost always
// self-hosted, so a base URL is expected; gitea.com is only a fallback.
func NewClient(opts *platform.Options) (platform.Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultGiteaURL
	}

	clientOpts := []gitea.ClientOption{
		gitea.SetToken(opts.Token),
	}
	if opts.InsecureSkipVerify {
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
		clientOpts = append(clientOpts, gitea.SetHTTPClient(httpClient))
	}

	client, err := gitea.NewClient(baseURL, clientOpts...)
	if err != nil {
		return nil, &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to create client",
			Err:      err,
		}
	}

	return &Client{
		client:  client,
		token:   opts.Token,
		baseURL: baseURL,
	}, nil
}

// Name returns the platform name
func (c *Client) Name() string {
	return "gitea"
}

// GetBaseURL returns the base URL of the platform
func (c *Client) GetBaseURL() string {
	return c.baseURL
}

func (c *Client) extractHostFromBaseURL() string {
	host := strings.TrimPrefix(c.baseURL, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

// MatchesURL checks if the given repository URL belongs to this Gitea instance
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

	configuredHost := c.extractHostFromBaseURL()
	baseParts := strings.Split(configuredHost, "/")
	if len(baseParts) > 0 {
		return urlDomain == baseParts[0] || strings.HasPrefix(url, configuredHost)
	}
	return false
}

// ParseRepoPath parses owner and repo from a repository URL.
// Gitea uses a two-level structure: owner/repo.
func (c *Client) ParseRepoPath(repoURL string) (owner, repo string, err error) {
	if repoURL == "" {
		return "", "", &platform.ClientError{
			Platform: "gitea",
			Message:  "empty repository URL",
		}
	}

	url := strings.TrimSuffix(repoURL, ".git")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "git@")
	url = strings.TrimSuffix(url, "/")
	url = strings.Replace(url, ":", "/", 1)

	var parts []string
	for _, p := range strings.Split(url, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	switch {
	case len(parts) == 2 && !strings.Contains(parts[0], "."):
		// owner/repo
		return parts[0], parts[1], nil
	case len(parts) >= 3:
		// domain/owner/repo
		return parts[1], parts[2], nil
	default:
		return "", "", &platform.ClientError{
			Platform: "gitea",
			Message:  fmt.Sprintf("invalid repository URL format: %s", repoURL),
		}
	}
}

// GetDiff fetches the unified diff for a single commit.
// The Gitea SDK binds its context at construction, so ctx is honored only
// through the underlying HTTP client's timeout.
func (c *Client) GetDiff(ctx context.Context, repoURL, commitHash string) (string, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return "", err
	}

	diff, resp, err := c.client.GetCommitDiff(owner, repo, commitHash)
	if err != nil {
		logger.Error("Failed to fetch commit diff",
			zap.Error(err),
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.String("commit", commitHash),
		)
		return "", &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to fetch commit diff",
			Status:   statusCode(resp),
			Err:      err,
		}
	}
	return string(diff), nil
}

// GetFileContent fetches the content of one file at a given ref
func (c *Client) GetFileContent(ctx context.Context, repoURL, path, ref string) (string, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return "", err
	}

	content, resp, err := c.client.GetFile(owner, repo, ref, path)
	if err != nil {
		return "", &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to fetch file content: " + path,
			Status:   statusCode(resp),
			Err:      err,
		}
	}
	return string(content), nil
}

// GetPullRequest retrieves pull request details
func (c *Client) GetPullRequest(ctx context.Context, repoURL string, number int) (*platform.PullRequest, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.client.GetPullRequest(owner, repo, int64(number))
	if err != nil {
		logger.Error("Failed to get pull request",
			zap.Error(err),
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.Int("number", number),
		)
		return nil, &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to get pull request",
			Status:   statusCode(resp),
			Err:      err,
		}
	}

	result := &platform.PullRequest{
		Number:      int(pr.Index),
		Title:       pr.Title,
		Description: pr.Body,
		State:       string(pr.State),
		URL:         pr.HTMLURL,
	}
	if pr.Head != nil {
		result.HeadBranch = pr.Head.Ref
		result.HeadSHA = pr.Head.Sha
	}
	if pr.Base != nil {
		result.BaseBranch = pr.Base.Ref
	}
	if pr.Poster != nil {
		result.Author = pr.Poster.UserName
	}
	return result, nil
}

// ParseWebhook verifies the X-Gitea-Signature HMAC-SHA256 (when a secret
// is configured) and parses push and pull_request events.
func (c *Client) ParseWebhook(r *http.Request, secret string) (*platform.WebhookEvent, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to read webhook body",
			Err:      err,
		}
	}

	if secret != "" {
		signature := r.Header.Get("X-Gitea-Signature")
		if signature == "" {
			return nil, &platform.ClientError{
				Platform: "gitea",
				Message:  "missing webhook signature header (X-Gitea-Signature)",
			}
		}

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expectedSig := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(signature), []byte(expectedSig)) {
			logger.Warn("Invalid webhook signature received")
			return nil, &platform.ClientError{
				Platform: "gitea",
				Message:  "invalid webhook signature",
			}
		}
	}

	eventType := r.Header.Get("X-Gitea-Event")
	event := &platform.WebhookEvent{
		Platform:   "gitea",
		RawPayload: body,
	}

	switch eventType {
	case "push":
		return parsePushEvent(body, event)
	case "pull_request":
		return parsePullRequestEvent(body, event)
	default:
		return nil, &platform.ClientError{
			Platform: "gitea",
			Message:  fmt.Sprintf("unsupported event type: %s", eventType),
		}
	}
}

func parsePushEvent(body []byte, event *platform.WebhookEvent) (*platform.WebhookEvent, error) {
	var payload struct {
		Ref    string `json:"ref"`
		After  string `json:"after"`
		Sender struct {
			Login string `json:"login"`
		} `json:"sender"`
		Repository struct {
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
			Name    string `json:"name"`
			HTMLURL string `json:"html_url"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to parse push event",
			Err:      err,
		}
	}

	event.Type = platform.EventTypePush
	event.Owner = payload.Repository.Owner.Login
	event.Repo = payload.Repository.Name
	event.RepoURL = payload.Repository.HTMLURL
	event.Ref = strings.TrimPrefix(payload.Ref, "refs/heads/")
	event.CommitSHA = payload.After
	event.Sender = payload.Sender.Login
	return event, nil
}

func parsePullRequestEvent(body []byte, event *platform.WebhookEvent) (*platform.WebhookEvent, error) {
	var payload struct {
		Action      string `json:"action"`
		Number      int64  `json:"number"`
		PullRequest struct {
			Title string `json:"title"`
			Body  string `json:"body"`
			Head  struct {
				Ref string `json:"ref"`
				Sha string `json:"sha"`
			} `json:"head"`
		} `json:"pull_request"`
		Sender struct {
			Login string `json:"login"`
		} `json:"sender"`
		Repository struct {
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
			Name    string `json:"name"`
			HTMLURL string `json:"html_url"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &platform.ClientError{
			Platform: "gitea",
			Message:  "failed to parse pull_request event",
			Err:      err,
		}
	}

	pr := payload.PullRequest
	event.Type = platform.EventTypePullRequest
	event.Owner = payload.Repository.Owner.Login
	event.Repo = payload.Repository.Name
	event.RepoURL = payload.Repository.HTMLURL
	event.Ref = pr.Head.Ref
	event.CommitSHA = pr.Head.Sha
	event.PRNumber = int(payload.Number)
	event.Action = normalizeAction(payload.Action)
	event.Sender = payload.Sender.Login
	event.PRTitle = pr.Title
	event.PRDescription = pr.Body

	logger.Info("Parsed Gitea pull_request webhook",
		zap.String("action", event.Action),
		zap.String("owner", event.Owner),
		zap.String("repo", event.Repo),
		zap.Int("pr_number", event.PRNumber),
	)
	return event, nil
}

// normalizeAction maps Gitea PR action names to the unified action set
func normalizeAction(action string) string {
	switch strings.ToLower(action) {
	case "opened", "open":
		return platform.PREventActionOpened
	case "synchronize", "synchronized":
		return platform.PREventActionSynchronize
	case "reopened", "reopen":
		return platform.PREventActionReopened
	default:
		return strings.ToLower(action)
	}
}

// ValidateToken validates the Gitea token
func (c *Client) ValidateToken(ctx context.Context) error {
	_, _, err := c.client.GetMyUserInfo()
	if err != nil {
		return &platform.ClientError{
			Platform: "gitea",
			Message:  "invalid token",
			Err:      err,
		}
	}
	return nil
}

func statusCode(resp *gitea.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
