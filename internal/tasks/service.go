// Package tasks creates review tasks from incoming webhook events and
// hands them to the scheduling queue.
package tasks

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/idgen"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

const defaultMaxRetries = 3

// EnqueueQueue is the queue surface task creation needs.
type EnqueueQueue interface {
	Enqueue(ctx context.Context, taskID string, priority model.TaskPriority) error
}

// CreateRequest carries the fields needed to create a review task.
type CreateRequest struct {
	ProjectID     string
	EventType     model.EventType
	RepoURL       string
	Branch        string
	CommitHash    string
	PRNumber      int
	PRTitle       string
	PRDescription string
	Author        string
}

// Service creates review tasks. Creation is idempotent per
// (project, commit): a second webhook for the same commit returns the
// existing task instead of scheduling a duplicate review.
type Service struct {
	store      store.Store
	queue      EnqueueQueue
	maxRetries int
}

// NewService creates a task service.
func NewService(s store.Store, queue EnqueueQueue, cfg config.TaskConfig) *Service {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Service{store: s, queue: queue, maxRetries: maxRetries}
}

// CreateTask creates and enqueues a review task. The returned bool is
// false when the (project, commit) pair already had a task. The database
// row is authoritative: an enqueue failure is logged, not returned, and
// the recovery sweep or a manual requeue can pick the task up later.
func (s *Service) CreateTask(ctx context.Context, req CreateRequest) (*model.ReviewTask, bool, error) {
	if strings.TrimSpace(req.ProjectID) == "" ||
		strings.TrimSpace(req.RepoURL) == "" ||
		strings.TrimSpace(req.CommitHash) == "" {
		return nil, false, errors.New(errors.ErrCodeValidation,
			"project id, repo URL, and commit hash are required")
	}

	existing, err := s.store.Task().FindByProjectAndCommit(req.ProjectID, req.CommitHash)
	if err == nil {
		logger.Info("Duplicate webhook for commit, reusing existing task",
			zap.String("task_id", existing.ID),
			zap.String("project_id", req.ProjectID),
			zap.String("commit", req.CommitHash),
		)
		return existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	task := &model.ReviewTask{
		ID:            idgen.NewTaskID(),
		ProjectID:     req.ProjectID,
		CommitHash:    req.CommitHash,
		RepoURL:       req.RepoURL,
		Branch:        req.Branch,
		PRNumber:      req.PRNumber,
		PRTitle:       req.PRTitle,
		PRDescription: req.PRDescription,
		Author:        req.Author,
		EventType:     req.EventType,
		Priority:      model.PriorityFor(req.EventType),
		Status:        model.TaskStatusPending,
		MaxRetries:    s.maxRetries,
	}

	if err := s.store.Task().Create(task); err != nil {
		// A concurrent webhook delivery may have won the unique index.
		if winner, ferr := s.store.Task().FindByProjectAndCommit(req.ProjectID, req.CommitHash); ferr == nil {
			return winner, false, nil
		}
		return nil, false, err
	}

	if err := s.queue.Enqueue(ctx, task.ID, task.Priority); err != nil {
		logger.Error("Failed to enqueue new task",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}

	logger.Info("Review task created",
		zap.String("task_id", task.ID),
		zap.String("project_id", task.ProjectID),
		zap.String("event_type", string(task.EventType)),
		zap.String("priority", string(task.Priority)),
		zap.String("commit", task.CommitHash),
	)
	return task, true, nil
}

// CreateFromWebhook maps a parsed webhook event onto a create request
// for the matched project. Empty refs fall back to the project's
// default branch.
func (s *Service) CreateFromWebhook(ctx context.Context, project *model.Project, event *platform.WebhookEvent) (*model.ReviewTask, bool, error) {
	branch := event.Ref
	if branch == "" {
		branch = project.DefaultBranch
	}
	return s.CreateTask(ctx, CreateRequest{
		ProjectID:     project.ID,
		EventType:     eventTypeFor(event.Type),
		RepoURL:       project.RepoURL,
		Branch:        branch,
		CommitHash:    event.CommitSHA,
		PRNumber:      event.PRNumber,
		PRTitle:       event.PRTitle,
		PRDescription: event.PRDescription,
		Author:        event.Sender,
	})
}

// Requeue puts an existing PENDING task back on the queue. Used by the
// API to recover tasks whose original enqueue failed.
func (s *Service) Requeue(ctx context.Context, taskID string) error {
	task, err := s.store.Task().GetByID(taskID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.New(errors.ErrCodeTaskNotFound, "task not found: "+taskID)
		}
		return err
	}
	if task.Status != model.TaskStatusPending {
		return errors.ErrInvalidState(
			"cannot requeue task " + taskID + " in status " + string(task.Status))
	}
	return s.queue.Enqueue(ctx, task.ID, task.Priority)
}

func eventTypeFor(t platform.WebhookEventType) model.EventType {
	switch t {
	case platform.EventTypePullRequest:
		return model.EventTypePullRequest
	case platform.EventTypeMergeRequest:
		return model.EventTypeMergeRequest
	default:
		return model.EventTypePush
	}
}
