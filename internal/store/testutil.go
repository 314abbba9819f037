// Package store provides test utilities for database testing.
package store

import (
	"crypto/sha256"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/reviewflow/reviewflow/internal/database"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/idgen"
)

// SetupTestDB creates a file-backed SQLite database for testing.
// It returns a Store instance and a cleanup function.
// The cleanup function should be called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	// Reset database state to allow re-initialization
	database.ResetForTesting()

	// Create temporary database file
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	// Initialize database with temp path
	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()
	store := NewStore(db)

	// Cleanup function
	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return store, cleanup
}

// CreateTestProject creates a test Project with default values.
func CreateTestProject(t *testing.T, store Store, overrides ...func(*model.Project)) *model.Project {
	project := &model.Project{
		ID:       idgen.NewID(),
		Name:     "test-project",
		Platform: "github",
		RepoURL:  fmt.Sprintf("https://github.com/test/%s", idgen.NewID()),
		Enabled:  true,
	}

	// Apply overrides
	for _, override := range overrides {
		override(project)
	}

	if err := store.Project().Create(project); err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}

	return project
}

// CreateTestTask creates a test ReviewTask with default values.
// Fields can be overridden by passing a function that modifies the task.
func CreateTestTask(t *testing.T, store Store, projectID string, overrides ...func(*model.ReviewTask)) *model.ReviewTask {
	// Generate unique values to avoid UNIQUE constraint violations
	uniqueID := t.Name() + "-" + time.Now().Format("150405.000000")
	uniqueCommit := fmt.Sprintf("%x", sha256.Sum256([]byte(uniqueID)))[:40]

	task := &model.ReviewTask{
		ID:         idgen.NewTaskID(),
		ProjectID:  projectID,
		CommitHash: uniqueCommit,
		RepoURL:    "https://github.com/test/repo",
		Branch:     "main",
		EventType:  model.EventTypePush,
		Priority:   model.TaskPriorityNormal,
		Status:     model.TaskStatusPending,
		MaxRetries: 3,
	}

	// Apply overrides
	for _, override := range overrides {
		override(task)
	}

	if err := store.Task().Create(task); err != nil {
		t.Fatalf("Failed to create test task: %v", err)
	}

	return task
}
