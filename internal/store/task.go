package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/errors"
)

// TaskStore defines operations for the ReviewTask model.
type TaskStore interface {
	// Task CRUD
	Create(task *model.ReviewTask) error
	GetByID(id string) (*model.ReviewTask, error)
	GetByIDWithRecords(id string) (*model.ReviewTask, error)
	Save(task *model.ReviewTask) error
	Delete(id string) error

	// FindByProjectAndCommit returns the task for a (project, commit) pair.
	// Used for webhook deduplication. Returns gorm.ErrRecordNotFound when absent.
	FindByProjectAndCommit(projectID, commitHash string) (*model.ReviewTask, error)

	// Lifecycle transitions. Each transition enforces its source state and
	// returns a task-invalid-state error when the precondition does not hold.
	MarkTaskStarted(id string, startedAt time.Time) error
	MarkTaskCompleted(id string) error
	MarkTaskFailed(id string, errMsg string) (*model.ReviewTask, error)
	MarkTaskFailedPermanently(id string, errMsg string) error
	ResetToPending(id string) error

	// Task queries
	List(statusFilter, projectFilter string, limit, offset int) ([]model.ReviewTask, int64, error)
	ListByStatus(status model.TaskStatus) ([]model.ReviewTask, error)
	ListStaleRunning(startedBefore time.Time) ([]model.ReviewTask, error)

	// Statistics queries
	CountAll() (int64, error)
	CountByStatus(status model.TaskStatus) (int64, error)
	CountCompletedAfter(start time.Time) (int64, error)
	GetAverageDurationAfter(start time.Time) (float64, error)
}

// taskStore implements TaskStore using GORM.
type taskStore struct {
	db *gorm.DB
}

func newTaskStore(db *gorm.DB) TaskStore {
	return &taskStore{db: db}
}

// Task CRUD implementations

func (s *taskStore) Create(task *model.ReviewTask) error {
	return s.db.Create(task).Error
}

func (s *taskStore) GetByID(id string) (*model.ReviewTask, error) {
	var task model.ReviewTask
	err := s.db.First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *taskStore) GetByIDWithRecords(id string) (*model.ReviewTask, error) {
	var task model.ReviewTask
	err := s.db.Preload("Records").First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *taskStore) Save(task *model.ReviewTask) error {
	return s.db.Save(task).Error
}

func (s *taskStore) Delete(id string) error {
	return s.db.Delete(&model.ReviewTask{}, "id = ?", id).Error
}

func (s *taskStore) FindByProjectAndCommit(projectID, commitHash string) (*model.ReviewTask, error) {
	var task model.ReviewTask
	err := s.db.Where("project_id = ? AND commit_hash = ?", projectID, commitHash).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Lifecycle transitions

// MarkTaskStarted moves a task from PENDING to RUNNING and records the start time.
func (s *taskStore) MarkTaskStarted(id string, startedAt time.Time) error {
	result := s.db.Model(&model.ReviewTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusRunning,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionError(id, model.TaskStatusRunning)
	}
	return nil
}

// MarkTaskCompleted moves a task from RUNNING to COMPLETED and records completion time.
func (s *taskStore) MarkTaskCompleted(id string) error {
	result := s.db.Model(&model.ReviewTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":        model.TaskStatusCompleted,
			"completed_at":  time.Now(),
			"error_message": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionError(id, model.TaskStatusCompleted)
	}
	return nil
}

// MarkTaskFailed records a processing failure on a RUNNING task.
// The retry count is incremented; when it reaches the task's retry limit the
// task becomes FAILED with a completion time, otherwise it returns to PENDING
// so it can be requeued. The updated task is returned so callers can act on
// the resulting state.
func (s *taskStore) MarkTaskFailed(id string, errMsg string) (*model.ReviewTask, error) {
	var task model.ReviewTask
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrCodeTaskNotFound, "task not found: "+id)
			}
			return err
		}
		if task.Status != model.TaskStatusRunning {
			return errors.ErrInvalidState(
				"cannot fail task " + id + " in status " + string(task.Status))
		}

		task.RetryCount++
		task.ErrorMessage = errMsg
		updates := map[string]interface{}{
			"retry_count":   task.RetryCount,
			"error_message": errMsg,
		}

		if task.RetryCount >= task.MaxRetries {
			now := time.Now()
			task.Status = model.TaskStatusFailed
			task.CompletedAt = &now
			updates["status"] = model.TaskStatusFailed
			updates["completed_at"] = now
		} else {
			task.Status = model.TaskStatusPending
			updates["status"] = model.TaskStatusPending
		}

		return tx.Model(&model.ReviewTask{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkTaskFailedPermanently moves a RUNNING task directly to FAILED without
// consuming a retry. Used for errors that retrying cannot fix.
func (s *taskStore) MarkTaskFailedPermanently(id string, errMsg string) error {
	result := s.db.Model(&model.ReviewTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":        model.TaskStatusFailed,
			"completed_at":  time.Now(),
			"error_message": errMsg,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionError(id, model.TaskStatusFailed)
	}
	return nil
}

// ResetToPending reverts a RUNNING task to PENDING and clears its start
// time. Used by the recovery sweep on tasks whose worker died.
func (s *taskStore) ResetToPending(id string) error {
	result := s.db.Model(&model.ReviewTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusRunning).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusPending,
			"started_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.transitionError(id, model.TaskStatusPending)
	}
	return nil
}

// transitionError reports why a conditional transition matched no rows.
func (s *taskStore) transitionError(id string, target model.TaskStatus) error {
	var task model.ReviewTask
	if err := s.db.First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.New(errors.ErrCodeTaskNotFound, "task not found: "+id)
		}
		return err
	}
	return errors.ErrInvalidState(
		"cannot transition task " + id + " from " + string(task.Status) + " to " + string(target))
}

// Task queries

func (s *taskStore) List(statusFilter, projectFilter string, limit, offset int) ([]model.ReviewTask, int64, error) {
	var tasks []model.ReviewTask
	var total int64

	query := s.db.Model(&model.ReviewTask{})
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}
	if projectFilter != "" {
		query = query.Where("project_id = ?", projectFilter)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&tasks).Error
	return tasks, total, err
}

func (s *taskStore) ListByStatus(status model.TaskStatus) ([]model.ReviewTask, error) {
	var tasks []model.ReviewTask
	err := s.db.Where("status = ?", status).Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// ListStaleRunning returns RUNNING tasks whose start time is older than the
// given cutoff. These are tasks abandoned by a crashed worker.
func (s *taskStore) ListStaleRunning(startedBefore time.Time) ([]model.ReviewTask, error) {
	var tasks []model.ReviewTask
	err := s.db.Where("status = ? AND started_at < ?", model.TaskStatusRunning, startedBefore).
		Order("started_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// Statistics queries

func (s *taskStore) CountAll() (int64, error) {
	var count int64
	err := s.db.Model(&model.ReviewTask{}).Count(&count).Error
	return count, err
}

func (s *taskStore) CountByStatus(status model.TaskStatus) (int64, error) {
	var count int64
	err := s.db.Model(&model.ReviewTask{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *taskStore) CountCompletedAfter(start time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.ReviewTask{}).
		Where("completed_at >= ? AND status = ?", start, model.TaskStatusCompleted).
		Count(&count).Error
	return count, err
}

// GetAverageDurationAfter returns the mean wall time in seconds of tasks
// completed after the given start time.
func (s *taskStore) GetAverageDurationAfter(start time.Time) (float64, error) {
	var avg float64
	err := s.db.Model(&model.ReviewTask{}).
		Where("completed_at >= ? AND status = ? AND started_at IS NOT NULL", start, model.TaskStatusCompleted).
		Select("AVG(strftime('%s', completed_at) - strftime('%s', started_at))").
		Row().Scan(&avg)
	return avg, err
}
