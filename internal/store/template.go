package store

import (
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/errors"
)

// TemplateStore defines operations for the PromptTemplate model.
type TemplateStore interface {
	Create(tmpl *model.PromptTemplate) error
	GetByID(id uint) (*model.PromptTemplate, error)
	Update(tmpl *model.PromptTemplate) error
	Delete(id uint) error
	ListByCategory(category string) ([]model.PromptTemplate, error)

	// FindByCategoryAndEnabled returns the newest enabled template in a
	// category. Returns a template-not-found error when the category has
	// no enabled templates.
	FindByCategoryAndEnabled(category string) (*model.PromptTemplate, error)
}

// templateStore implements TemplateStore using GORM.
type templateStore struct {
	db *gorm.DB
}

func newTemplateStore(db *gorm.DB) TemplateStore {
	return &templateStore{db: db}
}

func (s *templateStore) Create(tmpl *model.PromptTemplate) error {
	return s.db.Create(tmpl).Error
}

func (s *templateStore) GetByID(id uint) (*model.PromptTemplate, error) {
	var tmpl model.PromptTemplate
	err := s.db.First(&tmpl, id).Error
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (s *templateStore) Update(tmpl *model.PromptTemplate) error {
	return s.db.Save(tmpl).Error
}

func (s *templateStore) Delete(id uint) error {
	return s.db.Delete(&model.PromptTemplate{}, id).Error
}

func (s *templateStore) ListByCategory(category string) ([]model.PromptTemplate, error) {
	var templates []model.PromptTemplate
	err := s.db.Where("category = ?", category).Order("created_at DESC").Find(&templates).Error
	return templates, err
}

func (s *templateStore) FindByCategoryAndEnabled(category string) (*model.PromptTemplate, error) {
	var tmpl model.PromptTemplate
	err := s.db.Where("category = ? AND enabled = ?", category, true).
		Order("created_at DESC").
		First(&tmpl).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.ErrCodeTemplateNotFound,
				"no enabled template for category: "+category)
		}
		return nil, err
	}
	return &tmpl, nil
}
