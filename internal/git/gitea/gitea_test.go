package gitea

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "error", Format: "console"})
}

// newTestClient points the SDK at a stub server so client construction
// does not reach out to a live Gitea instance.
func newTestClient(t *testing.T) platform.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version": "1.22.0"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&platform.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestParseRepoPath(t *testing.T) {
	c := newTestClient(t)

	cases := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"https://gitea.example.com/acme/widgets", "acme", "widgets", false},
		{"https://gitea.example.com/acme/widgets.git", "acme", "widgets", false},
		{"git@gitea.example.com:acme/widgets.git", "acme", "widgets", false},
		{"acme/widgets", "acme", "widgets", false},
		{"", "", "", true},
	}
	for _, tc := range cases {
		owner, repo, err := c.ParseRepoPath(tc.url)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRepoPath(%q) succeeded, want error", tc.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRepoPath(%q) error: %v", tc.url, err)
			continue
		}
		if owner != tc.wantOwner || repo != tc.wantRepo {
			t.Errorf("ParseRepoPath(%q) = %s/%s, want %s/%s", tc.url, owner, repo, tc.wantOwner, tc.wantRepo)
		}
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestParseWebhookPush(t *testing.T) {
	c := newTestClient(t)
	body := []byte(`{
		"ref": "refs/heads/main",
		"after": "abc123",
		"sender": {"login": "dev"},
		"repository": {"name": "widgets", "owner": {"login": "acme"}, "html_url": "https://gitea.example.com/acme/widgets"}
	}`)

	secret := "hook-secret"
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gitea-Event", "push")
	req.Header.Set("X-Gitea-Signature", signBody(secret, body))

	event, err := c.ParseWebhook(req, secret)
	if err != nil {
		t.Fatalf("ParseWebhook() error: %v", err)
	}
	if event.Type != platform.EventTypePush {
		t.Errorf("Type = %s, want push", event.Type)
	}
	if event.Owner != "acme" || event.Repo != "widgets" {
		t.Errorf("repo = %s/%s, want acme/widgets", event.Owner, event.Repo)
	}
	if event.CommitSHA != "abc123" {
		t.Errorf("CommitSHA = %s, want abc123", event.CommitSHA)
	}
}

func TestParseWebhookMissingSignature(t *testing.T) {
	c := newTestClient(t)
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Gitea-Event", "push")

	if _, err := c.ParseWebhook(req, "hook-secret"); err == nil {
		t.Fatal("ParseWebhook() accepted unsigned payload")
	}
}

func TestParseWebhookBadSignature(t *testing.T) {
	c := newTestClient(t)
	body := []byte(`{"ref": "refs/heads/main"}`)
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gitea-Event", "push")
	req.Header.Set("X-Gitea-Signature", signBody("wrong-secret", body))

	if _, err := c.ParseWebhook(req, "hook-secret"); err == nil {
		t.Fatal("ParseWebhook() accepted payload signed with wrong secret")
	}
}

func TestParseWebhookPullRequest(t *testing.T) {
	c := newTestClient(t)
	body := []byte(`{
		"action": "opened",
		"number": 9,
		"pull_request": {
			"title": "Add feature",
			"body": "Description",
			"head": {"ref": "feature", "sha": "def456"}
		},
		"sender": {"login": "dev"},
		"repository": {"name": "widgets", "owner": {"login": "acme"}, "html_url": "https://gitea.example.com/acme/widgets"}
	}`)

	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gitea-Event", "pull_request")

	event, err := c.ParseWebhook(req, "")
	if err != nil {
		t.Fatalf("ParseWebhook() error: %v", err)
	}
	if event.Type != platform.EventTypePullRequest {
		t.Errorf("Type = %s, want pull_request", event.Type)
	}
	if event.PRNumber != 9 {
		t.Errorf("PRNumber = %d, want 9", event.PRNumber)
	}
	if event.Action != platform.PREventActionOpened {
		t.Errorf("Action = %s, want opened", event.Action)
	}
	if event.CommitSHA != "def456" {
		t.Errorf("CommitSHA = %s, want def456", event.CommitSHA)
	}
}
