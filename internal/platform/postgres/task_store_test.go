package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerdock/docflow-api/internal/task"
)

var taskRowColumns = []string{
	"id", "type", "payload", "status", "error_message", "created_at", "updated_at",
}

func newTaskStoreWithMock(t *testing.T) (*PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresTaskStore(db), mock
}

// memoTask is a minimal task.Task for persistence tests.
type memoTask struct {
	id uuid.UUID
}

func (t *memoTask) ID() uuid.UUID                 { return t.id }
func (t *memoTask) Type() string                  { return task.TaskTypeDocumentProcessing }
func (t *memoTask) Payload() []byte               { return []byte(`{"document_id":"x"}`) }
func (t *memoTask) Status() task.TaskStatus       { return task.TaskStatusPending }
func (t *memoTask) Execute(context.Context) error { return nil }

func TestPostgresTaskStore_SaveTask(t *testing.T) {
	t.Parallel()

	t.Run("inserts the task row", func(t *testing.T) {
		t.Parallel()

		s, mock := newTaskStoreWithMock(t)

		mock.ExpectExec("INSERT INTO tasks").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SaveTask(context.Background(), &memoTask{id: uuid.New()}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database failures", func(t *testing.T) {
		t.Parallel()

		s, mock := newTaskStoreWithMock(t)

		mock.ExpectExec("INSERT INTO tasks").
			WillReturnError(assert.AnError)

		err := s.SaveTask(context.Background(), &memoTask{id: uuid.New()})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task to database")
	})
}

func TestPostgresTaskStore_UpdateTaskStatus(t *testing.T) {
	t.Parallel()

	t.Run("updates the row", func(t *testing.T) {
		t.Parallel()

		s, mock := newTaskStoreWithMock(t)
		id := uuid.New()

		mock.ExpectExec("UPDATE tasks").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateTaskStatus(context.Background(), id, task.TaskStatusCompleted, ""))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is a no-op", func(t *testing.T) {
		t.Parallel()

		s, mock := newTaskStoreWithMock(t)

		mock.ExpectExec("UPDATE tasks").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, s.UpdateTaskStatus(context.Background(), uuid.New(), task.TaskStatusFailed, "boom"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTaskStore_GetPendingTasks(t *testing.T) {
	t.Parallel()

	s, mock := newTaskStoreWithMock(t)

	id := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows(taskRowColumns).
		AddRow(id.String(), task.TaskTypeDocumentProcessing, []byte(`{"document_id":"x"}`),
			string(task.TaskStatusPending), nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM tasks").
		WithArgs(task.TaskStatusPending).
		WillReturnRows(rows)

	tasks, err := s.GetPendingTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	loaded := tasks[0]
	assert.Equal(t, id, loaded.ID())
	assert.Equal(t, task.TaskTypeDocumentProcessing, loaded.Type())
	assert.Equal(t, task.TaskStatusPending, loaded.Status())

	// Rows are data carriers only; they must refuse to execute directly.
	assert.Error(t, loaded.Execute(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_GetProcessingTasks(t *testing.T) {
	t.Parallel()

	t.Run("without age filter", func(t *testing.T) {
		t.Parallel()

		s, mock := newTaskStoreWithMock(t)

		mock.ExpectQuery("SELECT (.+) FROM tasks").
			WithArgs(task.TaskStatusProcessing).
			WillReturnRows(sqlmock.NewRows(taskRowColumns))

		tasks, err := s.GetProcessingTasks(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with age filter adds the cutoff argument", func(t *testing.T) {
		t.Parallel()

		s, mock := newTaskStoreWithMock(t)

		mock.ExpectQuery("SELECT (.+) FROM tasks").
			WithArgs(task.TaskStatusProcessing, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(taskRowColumns))

		tasks, err := s.GetProcessingTasks(context.Background(), 30*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
