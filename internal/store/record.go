package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/model"
)

// RecordStore defines operations for the ReviewRecord model.
type RecordStore interface {
	Create(record *model.ReviewRecord) error
	GetByID(id uint) (*model.ReviewRecord, error)
	ListByTaskID(taskID string) ([]model.ReviewRecord, error)
	GetLatestByTaskID(taskID string) (*model.ReviewRecord, error)

	// Statistics queries
	CountIssuesAfter(start time.Time) (int64, error)
	SumTokensAfter(start time.Time) (int64, int64, error)
}

// recordStore implements RecordStore using GORM.
type recordStore struct {
	db *gorm.DB
}

func newRecordStore(db *gorm.DB) RecordStore {
	return &recordStore{db: db}
}

func (s *recordStore) Create(record *model.ReviewRecord) error {
	return s.db.Create(record).Error
}

func (s *recordStore) GetByID(id uint) (*model.ReviewRecord, error) {
	var record model.ReviewRecord
	err := s.db.First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *recordStore) ListByTaskID(taskID string) ([]model.ReviewRecord, error) {
	var records []model.ReviewRecord
	err := s.db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&records).Error
	return records, err
}

func (s *recordStore) GetLatestByTaskID(taskID string) (*model.ReviewRecord, error) {
	var record model.ReviewRecord
	err := s.db.Where("task_id = ?", taskID).Order("created_at DESC").First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *recordStore) CountIssuesAfter(start time.Time) (int64, error) {
	var total int64
	err := s.db.Model(&model.ReviewRecord{}).
		Where("created_at >= ?", start).
		Select("COALESCE(SUM(issues_count), 0)").
		Row().Scan(&total)
	return total, err
}

func (s *recordStore) SumTokensAfter(start time.Time) (int64, int64, error) {
	var sums struct {
		Input  int64
		Output int64
	}
	err := s.db.Model(&model.ReviewRecord{}).
		Where("created_at >= ?", start).
		Select("COALESCE(SUM(input_tokens), 0) as input, COALESCE(SUM(output_tokens), 0) as output").
		Scan(&sums).Error
	return sums.Input, sums.Output, err
}
