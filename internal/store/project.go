package store

import (
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/idgen"
)

// ProjectStore defines operations for the Project model.
type ProjectStore interface {
	Create(project *model.Project) error
	GetByID(id string) (*model.Project, error)
	GetByRepoURL(repoURL string) (*model.Project, error)
	Update(project *model.Project) error
	Delete(id string) error
	List(limit, offset int) ([]model.Project, int64, error)
	ListEnabled() ([]model.Project, error)

	// Ensure returns the ID of the project for repoURL, creating a new
	// enabled project when none exists yet.
	Ensure(repoURL, platform, name string) (string, error)
}

// projectStore implements ProjectStore using GORM.
type projectStore struct {
	db *gorm.DB
}

func newProjectStore(db *gorm.DB) ProjectStore {
	return &projectStore{db: db}
}

func (s *projectStore) Create(project *model.Project) error {
	return s.db.Create(project).Error
}

func (s *projectStore) GetByID(id string) (*model.Project, error) {
	var project model.Project
	err := s.db.First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *projectStore) GetByRepoURL(repoURL string) (*model.Project, error) {
	var project model.Project
	err := s.db.Where("repo_url = ?", repoURL).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *projectStore) Update(project *model.Project) error {
	return s.db.Save(project).Error
}

func (s *projectStore) Delete(id string) error {
	return s.db.Delete(&model.Project{}, "id = ?", id).Error
}

func (s *projectStore) List(limit, offset int) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	query := s.db.Model(&model.Project{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&projects).Error
	return projects, total, err
}

func (s *projectStore) ListEnabled() ([]model.Project, error) {
	var projects []model.Project
	err := s.db.Where("enabled = ?", true).Find(&projects).Error
	return projects, err
}

func (s *projectStore) Ensure(repoURL, platform, name string) (string, error) {
	var project model.Project
	err := s.db.Where("repo_url = ?", repoURL).
		Attrs(model.Project{
			ID:       idgen.NewID(),
			RepoURL:  repoURL,
			Platform: platform,
			Name:     name,
			Enabled:  true,
		}).
		FirstOrCreate(&project).Error
	if err != nil {
		return "", err
	}
	return project.ID, nil
}
