// Package reviewer assembles review context from Git platforms, renders
// prompt templates, and orchestrates AI provider calls with fallback.
package reviewer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/diff"
	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// ClientResolver resolves a Git platform client for a repository URL.
type ClientResolver interface {
	ClientFor(repoURL string) (platform.Client, error)
}

// FileContent pairs a file path with its full content at the reviewed commit.
type FileContent struct {
	FilePath string
	Content  string
}

// CodeContext is the assembled input for a review prompt. Field names
// match what prompt templates reference.
type CodeContext struct {
	RepoURL    string
	CommitHash string
	Branch     string
	EventType  model.EventType

	// Diff is the raw unified diff, truncated to the token budget.
	Diff string

	// Files lists metadata for every changed file, not just the ones
	// whose content was fetched.
	Files []diff.FileDiff
	Stats diff.Stats

	// FileContents holds full contents for the most heavily changed
	// files, packed under the remaining token budget.
	FileContents []FileContent

	// Pull/merge request context, nil for push events.
	PRNumber      int
	PRTitle       *string
	PRDescription *string
}

// TokenEstimator estimates the token cost of a piece of text.
type TokenEstimator func(text string) int

// EstimateTokens is the default estimator, a fixed four characters per
// token heuristic.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// charsPerToken converts a token budget into a character allowance for
// truncation. Truncated output never exceeds budget*charsPerToken chars.
const charsPerToken = 4

const truncationMarkerFormat = "...[TRUNCATED: %d more chars]"

// Assembler builds CodeContext for a task, degrading to partial context
// on upstream failures rather than blocking the review.
type Assembler struct {
	resolver ClientResolver
	estimate TokenEstimator

	maxContextTokens int
	maxFileTokens    int
	maxFiles         int
}

// NewAssembler creates an assembler with limits from configuration.
func NewAssembler(resolver ClientResolver, cfg config.ReviewConfig) *Assembler {
	a := &Assembler{
		resolver:         resolver,
		estimate:         EstimateTokens,
		maxContextTokens: cfg.MaxContextTokens,
		maxFileTokens:    cfg.MaxFileTokens,
		maxFiles:         cfg.MaxFiles,
	}
	if a.maxContextTokens <= 0 {
		a.maxContextTokens = 100000
	}
	if a.maxFileTokens <= 0 {
		a.maxFileTokens = 10000
	}
	if a.maxFiles <= 0 {
		a.maxFiles = 50
	}
	return a
}

// WithTokenEstimator overrides the default token estimator.
func (a *Assembler) WithTokenEstimator(fn TokenEstimator) *Assembler {
	if fn != nil {
		a.estimate = fn
	}
	return a
}

// AssembleContext builds the review context for a task. Client
// resolution, diff fetch, and per-file content failures degrade to
// partial context; only invalid task input is an error.
func (a *Assembler) AssembleContext(ctx context.Context, task *model.ReviewTask) (*CodeContext, error) {
	if task == nil || strings.TrimSpace(task.RepoURL) == "" || strings.TrimSpace(task.CommitHash) == "" {
		return nil, errors.New(errors.ErrCodeValidation,
			"task repo URL and commit hash are required")
	}

	cc := &CodeContext{
		RepoURL:    task.RepoURL,
		CommitHash: task.CommitHash,
		Branch:     task.Branch,
		EventType:  task.EventType,
		PRNumber:   task.PRNumber,
	}
	if task.EventType != model.EventTypePush {
		title := task.PRTitle
		description := task.PRDescription
		cc.PRTitle = &title
		cc.PRDescription = &description
	}

	client, err := a.resolver.ClientFor(task.RepoURL)
	if err != nil {
		logger.Warn("No git client for repository, assembling empty context",
			zap.String("task_id", task.ID),
			zap.String("repo_url", task.RepoURL),
			zap.Error(err),
		)
		cc.Files = []diff.FileDiff{}
		return cc, nil
	}

	raw, err := client.GetDiff(ctx, task.RepoURL, task.CommitHash)
	if err != nil {
		logger.Warn("Diff fetch failed, assembling context without diff",
			zap.String("task_id", task.ID),
			zap.String("commit", task.CommitHash),
			zap.Error(err),
		)
		raw = ""
	}

	meta := diff.Extract(raw)
	cc.Files = meta.Files
	cc.Stats = meta.Stats
	cc.Diff = truncateToTokens(raw, a.maxContextTokens)

	remaining := a.maxContextTokens - a.estimate(cc.Diff)
	cc.FileContents = a.fetchContents(ctx, client, task, meta.Files, remaining)
	return cc, nil
}

// fetchContents fetches file contents for the most heavily changed
// files, packing them under the remaining token budget.
func (a *Assembler) fetchContents(ctx context.Context, client platform.Client, task *model.ReviewTask, files []diff.FileDiff, remaining int) []FileContent {
	candidates := make([]diff.FileDiff, len(files))
	copy(candidates, files)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LinesAdded+candidates[i].LinesDeleted >
			candidates[j].LinesAdded+candidates[j].LinesDeleted
	})
	if len(candidates) > a.maxFiles {
		candidates = candidates[:a.maxFiles]
	}

	var contents []FileContent
	for _, f := range candidates {
		if f.IsBinary || f.ChangeType == diff.ChangeTypeDelete {
			continue
		}
		if remaining <= 0 {
			break
		}

		content, err := client.GetFileContent(ctx, task.RepoURL, f.FilePath, task.CommitHash)
		if err != nil {
			logger.Warn("File content fetch failed, omitting file from context",
				zap.String("task_id", task.ID),
				zap.String("path", f.FilePath),
				zap.Error(err),
			)
			continue
		}

		budget := a.maxFileTokens
		if remaining < budget {
			budget = remaining
		}
		content = truncateToTokens(content, budget)
		contents = append(contents, FileContent{FilePath: f.FilePath, Content: content})

		remaining -= a.estimate(content)
	}
	return contents
}

// truncateToTokens cuts text down to a token budget, appending a marker
// that reports how many characters were dropped. When the budget cannot
// even fit the marker the text is hard-truncated without one. The
// result never exceeds budget*charsPerToken characters.
func truncateToTokens(text string, budgetTokens int) string {
	if budgetTokens < 0 {
		budgetTokens = 0
	}
	allowed := budgetTokens * charsPerToken
	if len(text) <= allowed {
		return text
	}

	// The marker length depends on the dropped-character count, which
	// depends on the marker length. The digit count stabilizes after a
	// couple of rounds.
	marker := fmt.Sprintf(truncationMarkerFormat, len(text)-allowed)
	for i := 0; i < 4; i++ {
		keep := allowed - len(marker)
		if keep < 0 {
			return text[:allowed]
		}
		next := fmt.Sprintf(truncationMarkerFormat, len(text)-keep)
		if len(next) == len(marker) {
			return text[:keep] + next
		}
		marker = next
	}
	return text[:allowed]
}
