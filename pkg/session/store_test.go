package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/foreman-dev/foreman/pkg/llm"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sessions.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := NewGormStore(db)
	require.NoError(t, err)
	return store
}

func TestLoad_MissingThread(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Load(context.Background(), "no-such-thread")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New("thread-1")
	sess.UserInput = "create a project"
	sess.Queue = []string{"project_maker", "task_maker"}
	sess.Followup = "Which project should the task belong to?"
	sess.Resume = "workflow"
	sess.Append(llm.UserMessage("create a project"), llm.AssistantMessage("Done"))
	sess.Actions = append(sess.Actions, Action{
		Name:   "project_maker",
		Params: map[string]string{"project_name": "Atlas"},
	})

	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, sess.Queue, loaded.Queue)
	assert.Equal(t, sess.Followup, loaded.Followup)
	assert.Equal(t, sess.Resume, loaded.Resume)
	assert.Equal(t, sess.Messages, loaded.Messages)
	assert.Equal(t, sess.Actions, loaded.Actions)
	assert.True(t, loaded.Suspended())
}

func TestSave_OverwritesExistingThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := New("thread-1")
	sess.Output = "first"
	require.NoError(t, store.Save(ctx, sess))

	sess.Output = "second"
	sess.Queue = []string{"analyst"}
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Output)
	assert.Equal(t, []string{"analyst"}, loaded.Queue)
}

func TestSuspended(t *testing.T) {
	sess := New("thread-1")
	assert.False(t, sess.Suspended())

	sess.Followup = "Which project?"
	assert.True(t, sess.Suspended())
}
