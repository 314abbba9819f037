// Package store provides data access layer interfaces and implementations.
// This package abstracts database operations to improve maintainability
// and decouple business logic from specific database implementations.
package store

import "gorm.io/gorm"

// Store aggregates all data store interfaces.
// It provides a single point of access for all database operations.
type Store interface {
	Task() TaskStore
	Project() ProjectStore
	Template() TemplateStore
	Record() RecordStore

	// DB returns the underlying database connection for advanced operations.
	// Use sparingly - prefer using specific store methods.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db            *gorm.DB
	taskStore     TaskStore
	projectStore  ProjectStore
	templateStore TemplateStore
	recordStore   RecordStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:            db,
		taskStore:     newTaskStore(db),
		projectStore:  newProjectStore(db),
		templateStore: newTemplateStore(db),
		recordStore:   newRecordStore(db),
	}
}

func (s *gormStore) Task() TaskStore {
	return s.taskStore
}

func (s *gormStore) Project() ProjectStore {
	return s.projectStore
}

func (s *gormStore) Template() TemplateStore {
	return s.templateStore
}

func (s *gormStore) Record() RecordStore {
	return s.recordStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txStore := &gormStore{
			db:            tx,
			taskStore:     newTaskStore(tx),
			projectStore:  newProjectStore(tx),
			templateStore: newTemplateStore(tx),
			recordStore:   newRecordStore(tx),
		}
		return fn(txStore)
	})
}
