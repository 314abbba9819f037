package platform

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

type fakeClient struct {
	name    string
	baseURL string
	matches func(string) bool
}

func (f *fakeClient) Name() string       { return f.name }
func (f *fakeClient) GetBaseURL() string { return f.baseURL }
func (f *fakeClient) MatchesURL(repoURL string) bool {
	return f.matches(repoURL)
}
func (f *fakeClient) ParseRepoPath(repoURL string) (string, string, error) {
	return "", "", nil
}
func (f *fakeClient) GetDiff(ctx context.Context, repoURL, commitHash string) (string, error) {
	return "", nil
}
func (f *fakeClient) GetFileContent(ctx context.Context, repoURL, path, ref string) (string, error) {
	return "", nil
}
func (f *fakeClient) GetPullRequest(ctx context.Context, repoURL string, number int) (*PullRequest, error) {
	return nil, nil
}
func (f *fakeClient) ParseWebhook(r *http.Request, secret string) (*WebhookEvent, error) {
	return nil, nil
}
func (f *fakeClient) ValidateToken(ctx context.Context) error { return nil }

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("test-dup", func(opts *Options) (Client, error) {
		return &fakeClient{name: "test-dup"}, nil
	})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Register() did not panic on duplicate name")
		}
	}()
	Register("test-dup", func(opts *Options) (Client, error) {
		return &fakeClient{name: "test-dup"}, nil
	})
}

func TestCreateUnregistered(t *testing.T) {
	_, err := Create("no-such-platform", &Options{})
	if err == nil {
		t.Fatal("Create() succeeded for unregistered platform")
	}
	if !strings.Contains(err.Error(), "not registered") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFactoryClientFor(t *testing.T) {
	github := &fakeClient{
		name: "github",
		matches: func(url string) bool {
			return strings.Contains(url, "github.com")
		},
	}
	gitlab := &fakeClient{
		name: "gitlab",
		matches: func(url string) bool {
			return strings.Contains(url, "gitlab.example.com")
		},
	}
	f := NewFactoryWithClients(github, gitlab)

	client, err := f.ClientFor("https://github.com/acme/widgets")
	if err != nil {
		t.Fatalf("ClientFor() error: %v", err)
	}
	if client.Name() != "github" {
		t.Errorf("ClientFor() resolved %s, want github", client.Name())
	}

	client, err = f.ClientFor("https://gitlab.example.com/acme/widgets")
	if err != nil {
		t.Fatalf("ClientFor() error: %v", err)
	}
	if client.Name() != "gitlab" {
		t.Errorf("ClientFor() resolved %s, want gitlab", client.Name())
	}

	if _, err := f.ClientFor("https://bitbucket.org/acme/widgets"); err == nil {
		t.Error("ClientFor() succeeded for unconfigured platform")
	}
}

func TestFactoryClientByName(t *testing.T) {
	f := NewFactoryWithClients(&fakeClient{name: "gitea"})

	if _, err := f.ClientByName("gitea"); err != nil {
		t.Errorf("ClientByName(gitea) error: %v", err)
	}
	if _, err := f.ClientByName("github"); err == nil {
		t.Error("ClientByName(github) succeeded with no github configured")
	}
}

func TestShouldProcessPREvent(t *testing.T) {
	cases := []struct {
		action string
		want   bool
	}{
		{"opened", true},
		{"Opened", true},
		{"synchronize", true},
		{"reopened", true},
		{"open", true},
		{"update", true},
		{"reopen", true},
		{"closed", false},
		{"merged", false},
		{"labeled", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ShouldProcessPREvent(tc.action); got != tc.want {
			t.Errorf("ShouldProcessPREvent(%q) = %v, want %v", tc.action, got, tc.want)
		}
	}
}
