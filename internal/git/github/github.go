// Package github implements the Git platform client for GitHub.
package github

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

const (
	// Default GitHub URL for public GitHub
	defaultGitHubURL = "https://github.com"

	// URL prefixes and suffixes
	gitSuffix   = ".git"
	httpsPrefix = "https://"
	httpPrefix  = "http://"
	gitAtPrefix = "git@"

	// Path separator used in git@ format URLs (e.g., git@github.com:owner/repo)
	gitAtPathSeparator = ":"
)

func init() {
	platform.Register("github", NewClient)
}

// Client implements the platform.Client interface for GitHub
type Client struct {
	client  *github.Client
	token   string
	baseURL string
}

// NewClient creates a new GitHub client instance
func NewClient(opts *platform.Options) (platform.Client, error) {
	ctx := context.Background()

	var httpClient *http.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(ctx, ts)
		if opts.InsecureSkipVerify {
			transport := httpClient.Transport.(*oauth2.Transport)
			if transport.Base == nil {
				transport.Base = &http.Transport{}
			}
			if t, ok := transport.Base.(*http.Transport); ok {
				if t.TLSClientConfig == nil {
					t.TLSClientConfig = &tls.Config{}
				}
				t.TLSClientConfig.InsecureSkipVerify = true
			}
		}
	} else {
		// Anonymous mode works for public repositories
		transport := &http.Transport{}
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Transport: transport}
	}

	var client *github.Client
	var err error
	if opts.BaseURL != "" && opts.BaseURL != defaultGitHubURL {
		// GitHub Enterprise
		client, err = github.NewClient(httpClient).WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, &platform.ClientError{
				Platform: "github",
				Message:  "failed to create enterprise client",
				Err:      err,
			}
		}
	} else {
		client = github.NewClient(httpClient)
	}

	return &Client{
		client:  client,
		token:   opts.Token,
		baseURL: opts.BaseURL,
	}, nil
}

// Name returns the platform name
func (c *Client) Name() string {
	return "github"
}

// GetBaseURL returns the base URL of the platform
func (c *Client) GetBaseURL() string {
	if c.isDefaultGitHub() {
		return defaultGitHubURL
	}
	return c.baseURL
}

// isDefaultGitHub returns true when configured for public GitHub
// rather than GitHub Enterprise
func (c *Client) isDefaultGitHub() bool {
	return c.baseURL == "" || c.baseURL == defaultGitHubURL
}

// normalizeURL removes protocol prefixes, the .git suffix and trailing
// slashes, and converts git@host:path format to host/path.
func normalizeURL(url string) string {
	url = strings.TrimSuffix(url, gitSuffix)
	url = strings.TrimPrefix(url, httpsPrefix)
	url = strings.TrimPrefix(url, httpPrefix)
	url = strings.TrimPrefix(url, gitAtPrefix)
	url = strings.TrimSuffix(url, "/")
	if idx := strings.Index(url, gitAtPathSeparator); idx != -1 {
		url = url[:idx] + "/" + url[idx+1:]
	}
	return url
}

// extractHostFromBaseURL extracts the hostname from the configured baseURL
func (c *Client) extractHostFromBaseURL() string {
	if c.isDefaultGitHub() {
		return "github.com"
	}
	host := strings.TrimPrefix(c.baseURL, httpsPrefix)
	host = strings.TrimPrefix(host, httpPrefix)
	return strings.TrimSuffix(host, "/")
}

// MatchesURL checks if the given repository URL belongs to this GitHub instance
func (c *Client) MatchesURL(repoURL string) bool {
	if repoURL == "" {
		return false
	}
	url := normalizeURL(repoURL)
	urlParts := strings.Split(url, "/")
	if len(urlParts) == 0 {
		return false
	}
	urlDomain := urlParts[0]

	if c.isDefaultGitHub() {
		return strings.Contains(urlDomain, "github.com")
	}
	configuredHost := c.extractHostFromBaseURL()
	baseParts := strings.Split(configuredHost, "/")
	if len(baseParts) > 0 {
		baseDomain := baseParts[0]
		return urlDomain == baseDomain || strings.HasPrefix(url, configuredHost)
	}
	return false
}

// ParseRepoPath parses owner and repo from a repository URL.
// GitHub uses a two-level structure: owner/repo.
// Supported formats:
//   - https://github.com/owner/repo
//   - https://github.com/owner/repo.git
//   - github.com/owner/repo
//   - owner/repo
func (c *Client) ParseRepoPath(repoURL string) (owner, repo string, err error) {
	if repoURL == "" {
		return "", "", &platform.ClientError{
			Platform: "github",
			Message:  "empty repository URL",
		}
	}

	url := normalizeURL(repoURL)
	var parts []string
	for _, p := range strings.Split(url, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	switch {
	case len(parts) == 2:
		// owner/repo
		return parts[0], parts[1], nil
	case len(parts) >= 3:
		// domain/owner/repo[/extra]
		return parts[1], parts[2], nil
	default:
		return "", "", &platform.ClientError{
			Platform: "github",
			Message:  fmt.Sprintf("invalid repository URL format: %s", repoURL),
		}
	}
}

// GetDiff fetches the unified diff for a single commit
func (c *Client) GetDiff(ctx context.Context, repoURL, commitHash string) (string, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return "", err
	}

	diff, resp, err := c.client.Repositories.GetCommitRaw(ctx, owner, repo, commitHash, github.RawOptions{
		Type: github.Diff,
	})
	if err != nil {
		logger.Error("Failed to fetch commit diff",
			zap.Error(err),
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.String("commit", commitHash),
		)
		return "", &platform.ClientError{
			Platform: "github",
			Message:  "failed to fetch commit diff",
			Status:   statusCode(resp),
			Err:      err,
		}
	}
	return diff, nil
}

// GetFileContent fetches the content of one file at a given ref
func (c *Client) GetFileContent(ctx context.Context, repoURL, path, ref string) (string, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return "", err
	}

	fileContent, _, resp, err := c.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if err != nil {
		return "", &platform.ClientError{
			Platform: "github",
			Message:  "failed to fetch file content: " + path,
			Status:   statusCode(resp),
			Err:      err,
		}
	}
	if fileContent == nil {
		return "", &platform.ClientError{
			Platform: "github",
			Message:  "path is not a file: " + path,
		}
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return "", &platform.ClientError{
			Platform: "github",
			Message:  "failed to decode file content: " + path,
			Err:      err,
		}
	}
	return content, nil
}

// GetPullRequest retrieves pull request details
func (c *Client) GetPullRequest(ctx context.Context, repoURL string, number int) (*platform.PullRequest, error) {
	owner, repo, err := c.ParseRepoPath(repoURL)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		logger.Error("Failed to get pull request",
			zap.Error(err),
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.Int("number", number),
		)
		return nil, &platform.ClientError{
			Platform: "github",
			Message:  "failed to get pull request",
			Status:   statusCode(resp),
			Err:      err,
		}
	}

	return &platform.PullRequest{
		Number:      pr.GetNumber(),
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		State:       pr.GetState(),
		HeadBranch:  pr.GetHead().GetRef(),
		HeadSHA:     pr.GetHead().GetSHA(),
		BaseBranch:  pr.GetBase().GetRef(),
		Author:      pr.GetUser().GetLogin(),
		URL:         pr.GetHTMLURL(),
	}, nil
}

// ParseWebhook verifies the X-Hub-Signature-256 HMAC (when a secret is
// configured) and parses push and pull_request events.
func (c *Client) ParseWebhook(r *http.Request, secret string) (*platform.WebhookEvent, error) {
	var body []byte
	var err error

	if secret != "" {
		// ValidatePayload reads the body and checks the signature header
		body, err = github.ValidatePayload(r, []byte(secret))
		if err != nil {
			logger.Warn("Failed to validate webhook payload", zap.Error(err))
			return nil, &platform.ClientError{
				Platform: "github",
				Message:  "invalid webhook signature",
				Err:      err,
			}
		}
	} else {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, &platform.ClientError{
				Platform: "github",
				Message:  "failed to read webhook body",
				Err:      err,
			}
		}
	}

	eventType := r.Header.Get("X-GitHub-Event")
	event := &platform.WebhookEvent{
		Platform:   "github",
		RawPayload: body,
	}

	switch eventType {
	case "push":
		var payload github.PushEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &platform.ClientError{
				Platform: "github",
				Message:  "failed to parse push event",
				Err:      err,
			}
		}
		event.Type = platform.EventTypePush
		event.Owner = payload.GetRepo().GetOwner().GetLogin()
		event.Repo = payload.GetRepo().GetName()
		event.RepoURL = payload.GetRepo().GetHTMLURL()
		event.Ref = strings.TrimPrefix(payload.GetRef(), "refs/heads/")
		event.CommitSHA = payload.GetAfter()
		event.Sender = payload.GetSender().GetLogin()

	case "pull_request":
		var payload github.PullRequestEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &platform.ClientError{
				Platform: "github",
				Message:  "failed to parse pull_request event",
				Err:      err,
			}
		}
		pr := payload.GetPullRequest()
		event.Type = platform.EventTypePullRequest
		event.Owner = payload.GetRepo().GetOwner().GetLogin()
		event.Repo = payload.GetRepo().GetName()
		event.RepoURL = payload.GetRepo().GetHTMLURL()
		event.Ref = pr.GetHead().GetRef()
		event.CommitSHA = pr.GetHead().GetSHA()
		event.PRNumber = pr.GetNumber()
		// GitHub actions are already lowercase: opened, synchronize, ...
		event.Action = strings.ToLower(payload.GetAction())
		event.Sender = payload.GetSender().GetLogin()
		event.PRTitle = pr.GetTitle()
		event.PRDescription = pr.GetBody()

	default:
		return nil, &platform.ClientError{
			Platform: "github",
			Message:  fmt.Sprintf("unsupported event type: %s", eventType),
		}
	}

	return event, nil
}

// ValidateToken validates the GitHub token
func (c *Client) ValidateToken(ctx context.Context) error {
	_, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return &platform.ClientError{
			Platform: "github",
			Message:  "invalid token",
			Err:      err,
		}
	}
	return nil
}

func statusCode(resp *github.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
