package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewflow/reviewflow/internal/model"
)

func TestRecordCreateAndList(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	project := CreateTestProject(t, store)
	task := CreateTestTask(t, store, project.ID)

	record := &model.ReviewRecord{
		TaskID:      task.ID,
		Provider:    "anthropic",
		Model:       "claude-3-5-sonnet",
		Summary:     "looks fine",
		IssuesCount: 2,
		Issues: model.JSONMap{
			"items": []interface{}{"unchecked error", "shadowed variable"},
		},
		InputTokens:  1200,
		OutputTokens: 300,
		Duration:     4500,
	}
	require.NoError(t, store.Record().Create(record))

	records, err := store.Record().ListByTaskID(task.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "anthropic", records[0].Provider)
	assert.Equal(t, 2, records[0].IssuesCount)
}

func TestRecordGetLatestByTaskID(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	project := CreateTestProject(t, store)
	task := CreateTestTask(t, store, project.ID)

	first := &model.ReviewRecord{TaskID: task.ID, Provider: "anthropic"}
	require.NoError(t, store.Record().Create(first))
	time.Sleep(5 * time.Millisecond)
	second := &model.ReviewRecord{
		TaskID:            task.ID,
		Provider:          "mock",
		DegradationEvents: model.StringArray{"Primary provider 'anthropic' failed: timeout"},
	}
	require.NoError(t, store.Record().Create(second))

	latest, err := store.Record().GetLatestByTaskID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "mock", latest.Provider)
	require.Len(t, latest.DegradationEvents, 1)
}

func TestRecordStatistics(t *testing.T) {
	store, cleanup := SetupTestDB(t)
	defer cleanup()

	project := CreateTestProject(t, store)
	task := CreateTestTask(t, store, project.ID)

	require.NoError(t, store.Record().Create(&model.ReviewRecord{
		TaskID: task.ID, Provider: "anthropic", IssuesCount: 3, InputTokens: 100, OutputTokens: 40,
	}))
	require.NoError(t, store.Record().Create(&model.ReviewRecord{
		TaskID: task.ID, Provider: "anthropic", IssuesCount: 1, InputTokens: 50, OutputTokens: 10,
	}))

	since := time.Now().Add(-time.Hour)

	issues, err := store.Record().CountIssuesAfter(since)
	require.NoError(t, err)
	assert.Equal(t, int64(4), issues)

	in, out, err := store.Record().SumTokensAfter(since)
	require.NoError(t, err)
	assert.Equal(t, int64(150), in)
	assert.Equal(t, int64(50), out)
}
