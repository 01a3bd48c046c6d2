package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/mtlprog/tasksync/internal/domain"
	"github.com/mtlprog/tasksync/internal/service"
)

// TestUndoCreate_DeletesTask undoes a fresh task away.
func (s *TaskServiceTestSuite) TestUndoCreate_DeletesTask() {
	ctx := context.Background()
	task := s.createTask("Buy milk", "2 liters", "alice")

	result, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(result.Deletion)
	s.Nil(result.Task)
	s.Equal("Create action undone", result.Deletion.Message)
	s.Equal(task.ID, result.Deletion.TaskID)

	_, err = s.taskService.GetTask(ctx, task.ID)
	s.ErrorIs(err, domain.ErrTaskNotFound)

	records := s.records("alice")
	s.Require().Len(records, 1)
	s.True(records[0].IsUndone)
	s.NotNil(records[0].UndoneAt)

	last := s.publisher.last()
	s.Equal(domain.EventActionUndone, last.Name)
	payload, ok := last.Payload.(domain.ActionEvent)
	s.Require().True(ok)
	s.Equal(records[0].ID, payload.Action.ID)
	s.Equal(result.Deletion, payload.Result)
}

// TestRedoCreate_RestoresSameTask recreates the task with its original id.
func (s *TaskServiceTestSuite) TestRedoCreate_RestoresSameTask() {
	ctx := context.Background()
	task := s.createTask("Buy milk", "2 liters", "alice")

	_, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)

	result, err := s.historyService.Redo(ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(result.Task)
	s.Equal(task.ID, result.Task.ID)
	s.Equal("Buy milk", result.Task.Title)
	s.True(task.CreatedAt.Equal(result.Task.CreatedAt))

	s.Empty(s.records("alice"), "redo consumes the record")
	s.Equal(domain.EventActionRedone, s.publisher.last().Name)
}

// TestUndoRedoUpdate restores both sides of an update.
func (s *TaskServiceTestSuite) TestUndoRedoUpdate() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "bob")

	_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
		Title:       ptr("X2"),
		Description: ptr("Y2"),
		Completed:   ptr(true),
		PerformedBy: "bob",
	})
	s.Require().NoError(err)

	undone, err := s.historyService.Undo(ctx, "bob")
	s.Require().NoError(err)
	s.Require().NotNil(undone.Task)
	s.Equal("X", undone.Task.Title)
	s.Equal("Y", undone.Task.Description)
	s.False(undone.Task.Completed)
	s.Nil(undone.Task.UpdatedAt)

	stored, err := s.taskService.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("X", stored.Title)

	redone, err := s.historyService.Redo(ctx, "bob")
	s.Require().NoError(err)
	s.Require().NotNil(redone.Task)
	s.Equal("X2", redone.Task.Title)
	s.True(redone.Task.Completed)

	// The CREATE is still outstanding; the UPDATE record was consumed.
	records := s.records("bob")
	s.Require().Len(records, 1)
	s.Equal(domain.ActionTypeCreate, records[0].ActionType)
}

// TestUndoDelete_RestoresTask brings a deleted task back under its id.
func (s *TaskServiceTestSuite) TestUndoDelete_RestoresTask() {
	ctx := context.Background()
	task := s.createTask("Buy milk", "2 liters", "alice")

	_, err := s.taskService.DeleteTask(ctx, task.ID, "alice")
	s.Require().NoError(err)

	result, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(result.Task)
	s.Equal(task.ID, result.Task.ID)
	s.Equal("Buy milk", result.Task.Title)
	s.Equal("2 liters", result.Task.Description)
	s.Equal("alice", result.Task.CreatedBy)

	stored, err := s.taskService.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(task.Title, stored.Title)

	redone, err := s.historyService.Redo(ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(redone.Deletion)
	s.Equal("Delete action redone", redone.Deletion.Message)

	_, err = s.taskService.GetTask(ctx, task.ID)
	s.ErrorIs(err, domain.ErrTaskNotFound)
}

// TestUndo_NothingToUndo reports an empty history.
func (s *TaskServiceTestSuite) TestUndo_NothingToUndo() {
	_, err := s.historyService.Undo(context.Background(), "nobody")
	s.ErrorIs(err, domain.ErrNoActionsToUndo)
}

// TestRedo_NothingToRedo reports an empty redo stack.
func (s *TaskServiceTestSuite) TestRedo_NothingToRedo() {
	s.createTask("t", "d", "alice")

	_, err := s.historyService.Redo(context.Background(), "alice")
	s.ErrorIs(err, domain.ErrNoActionsToRedo)
}

// TestUndo_RequiresActor rejects an anonymous undo.
func (s *TaskServiceTestSuite) TestUndo_RequiresActor() {
	_, err := s.historyService.Undo(context.Background(), " ")
	s.ErrorIs(err, domain.ErrValidation)
}

// TestUndo_LastInFirstOut walks back through a user's actions in reverse order.
func (s *TaskServiceTestSuite) TestUndo_LastInFirstOut() {
	ctx := context.Background()
	task := s.createTask("v1", "d", "alice")

	for _, title := range []string{"v2", "v3"} {
		_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
			Title:       ptr(title),
			PerformedBy: "alice",
		})
		s.Require().NoError(err)
	}

	for _, want := range []string{"v2", "v1"} {
		result, err := s.historyService.Undo(ctx, "alice")
		s.Require().NoError(err)
		s.Require().NotNil(result.Task)
		s.Equal(want, result.Task.Title)
	}

	result, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)
	s.NotNil(result.Deletion)

	_, err = s.historyService.Undo(ctx, "alice")
	s.ErrorIs(err, domain.ErrNoActionsToUndo)

	// Redo picks the most recently performed undone action first.
	for _, want := range []string{"v3", "v2", "v1"} {
		result, err := s.historyService.Redo(ctx, "alice")
		s.Require().NoError(err)
		s.Require().NotNil(result.Task)
		s.Equal(want, result.Task.Title)
	}
}

// TestUndo_IsolatedPerUser leaves other users' actions alone.
func (s *TaskServiceTestSuite) TestUndo_IsolatedPerUser() {
	ctx := context.Background()
	aliceTask := s.createTask("alice task", "d", "alice")
	bobTask := s.createTask("bob task", "d", "bob")

	result, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(aliceTask.ID, result.Deletion.TaskID)

	_, err = s.taskService.GetTask(ctx, bobTask.ID)
	s.NoError(err, "bob's task is untouched")

	_, err = s.historyService.Undo(ctx, "alice")
	s.ErrorIs(err, domain.ErrNoActionsToUndo)

	stats, err := s.historyService.HistoryStats(ctx, "bob")
	s.Require().NoError(err)
	s.Equal(1, stats.Outstanding)
	s.Equal(0, stats.Undone)
}

// TestUndo_CrossUserEdit undoes a user's edit to a task created by someone else.
func (s *TaskServiceTestSuite) TestUndo_CrossUserEdit() {
	ctx := context.Background()
	task := s.createTask("shared", "d", "alice")

	_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
		Completed:   ptr(true),
		PerformedBy: "bob",
	})
	s.Require().NoError(err)

	result, err := s.historyService.Undo(ctx, "bob")
	s.Require().NoError(err)
	s.False(result.Task.Completed)
	s.Equal("alice", result.Task.LastUpdatedBy)
}

// TestUndo_ConcurrentSingleAction lets exactly one of two racing undos win.
func (s *TaskServiceTestSuite) TestUndo_ConcurrentSingleAction() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "carol")

	// Make the UPDATE the only outstanding action.
	_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
		Title:       ptr("X2"),
		PerformedBy: "carol",
	})
	s.Require().NoError(err)
	_, err = s.pool.Exec(ctx, "DELETE FROM action_records WHERE action_type = 'CREATE'")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.historyService.Undo(ctx, "carol")
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		s.ErrorIs(err, domain.ErrNoActionsToUndo)
	}
	s.Equal(1, successCount, "exactly one undo should succeed")

	stored, err := s.taskService.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("X", stored.Title)
}

// TestRedoPolicyClear drops the redo stack on a new mutation.
func (s *TaskServiceTestSuite) TestRedoPolicyClear() {
	ctx := context.Background()
	s.createTask("first", "d", "alice")

	_, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)

	s.createTask("second", "d", "alice")

	_, err = s.historyService.Redo(ctx, "alice")
	s.ErrorIs(err, domain.ErrNoActionsToRedo)
}

// TestRedoPolicyPreserve keeps undone actions redoable after new mutations.
func (s *TaskServiceTestSuite) TestRedoPolicyPreserve() {
	ctx := context.Background()
	s.useOptions(service.WithRedoPolicy(service.RedoPolicyPreserve))

	first := s.createTask("first", "d", "alice")
	_, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)

	s.createTask("second", "d", "alice")

	result, err := s.historyService.Redo(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(first.ID, result.Task.ID)
}

// TestRedoPolicyClear_OtherUsersKeepRedo only clears the acting user's stack.
func (s *TaskServiceTestSuite) TestRedoPolicyClear_OtherUsersKeepRedo() {
	ctx := context.Background()
	s.createTask("alice", "d", "alice")

	_, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)

	s.createTask("bob", "d", "bob")

	_, err = s.historyService.Redo(ctx, "alice")
	s.NoError(err)
}

// TestUndoUpdate_TaskDeletedByOtherUser re-inserts the snapshot.
func (s *TaskServiceTestSuite) TestUndoUpdate_TaskDeletedByOtherUser() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "alice")

	_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
		Title:       ptr("X2"),
		PerformedBy: "alice",
	})
	s.Require().NoError(err)

	_, err = s.taskService.DeleteTask(ctx, task.ID, "bob")
	s.Require().NoError(err)

	result, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(task.ID, result.Task.ID)
	s.Equal("X", result.Task.Title)
}

// TestUndoCreate_TaskAlreadyGone still consumes the action.
func (s *TaskServiceTestSuite) TestUndoCreate_TaskAlreadyGone() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "alice")

	_, err := s.taskService.DeleteTask(ctx, task.ID, "bob")
	s.Require().NoError(err)

	result, err := s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(task.ID, result.Deletion.TaskID)

	stats, err := s.historyService.HistoryStats(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(0, stats.Outstanding)
	s.Equal(1, stats.Undone)
}

// TestHistory_ListsMostRecentFirst returns the user's records and honors the limit.
func (s *TaskServiceTestSuite) TestHistory_ListsMostRecentFirst() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "alice")

	_, err := s.taskService.DeleteTask(ctx, task.ID, "alice")
	s.Require().NoError(err)

	records, err := s.historyService.History(ctx, "alice", 0)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(domain.ActionTypeDelete, records[0].ActionType)
	s.Equal(domain.ActionTypeCreate, records[1].ActionType)
	s.Greater(records[0].Seq, records[1].Seq)

	records, err = s.historyService.History(ctx, "alice", 1)
	s.Require().NoError(err)
	s.Len(records, 1)
}

// TestStatsByActor reports each user with history.
func (s *TaskServiceTestSuite) TestStatsByActor() {
	ctx := context.Background()
	s.createTask("a", "d", "alice")
	s.createTask("b", "d", "bob")

	_, err := s.historyService.Undo(ctx, "bob")
	s.Require().NoError(err)

	stats, err := s.historyService.StatsByActor(ctx)
	s.Require().NoError(err)

	byUser := map[string]domain.HistoryStats{}
	for _, st := range stats {
		byUser[st.PerformedBy] = st
	}
	s.Equal(1, byUser["alice"].Outstanding)
	s.Equal(1, byUser["bob"].Undone)
	s.True(byUser["bob"].CanRedo())
	s.False(byUser["bob"].CanUndo())
}

// TestPruneHistory removes only records older than the cutoff.
func (s *TaskServiceTestSuite) TestPruneHistory() {
	ctx := context.Background()
	s.createTask("old", "d", "alice")
	s.createTask("new", "d", "alice")

	_, err := s.pool.Exec(ctx, `
		UPDATE action_records SET performed_at = NOW() - INTERVAL '2 days'
		WHERE new_state->>'title' = 'old'
	`)
	s.Require().NoError(err)

	pruned, err := s.historyService.PruneHistory(ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(int64(1), pruned)

	records := s.records("alice")
	s.Require().Len(records, 1)
	s.Equal("new", records[0].NewState.Title)

	_, err = s.historyService.PruneHistory(ctx, 0)
	s.ErrorIs(err, domain.ErrValidation)
}

// TestPruneHistory_StoreTimeout bounds the prune by the store deadline.
func (s *TaskServiceTestSuite) TestPruneHistory_StoreTimeout() {
	s.createTask("old", "d", "alice")
	s.useOptions(service.WithStoreTimeout(time.Nanosecond))

	_, err := s.historyService.PruneHistory(context.Background(), time.Hour)
	s.ErrorIs(err, domain.ErrStorage)
	s.Len(s.records("alice"), 1)
}

// TestUndo_StoreFailureAppliesNothing keeps the record outstanding and the
// task unchanged when the undo cannot reach the store.
func (s *TaskServiceTestSuite) TestUndo_StoreFailureAppliesNothing() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "alice")
	_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
		Title:       ptr("X2"),
		PerformedBy: "alice",
	})
	s.Require().NoError(err)

	s.publisher = &recordingPublisher{}
	s.useOptions(service.WithStoreTimeout(time.Nanosecond))

	_, err = s.historyService.Undo(ctx, "alice")
	s.ErrorIs(err, domain.ErrStorage)

	records := s.records("alice")
	s.Require().Len(records, 2)
	for _, record := range records {
		s.False(record.IsUndone)
	}

	stored, err := s.taskRepo.GetByID(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("X2", stored.Title)
	s.Empty(s.publisher.names())
}

// TestRedo_StoreFailureAppliesNothing keeps the record undone and the task
// unchanged when the redo cannot reach the store.
func (s *TaskServiceTestSuite) TestRedo_StoreFailureAppliesNothing() {
	ctx := context.Background()
	task := s.createTask("X", "Y", "alice")
	_, err := s.taskService.UpdateTask(ctx, task.ID, service.UpdateTaskParams{
		Title:       ptr("X2"),
		PerformedBy: "alice",
	})
	s.Require().NoError(err)

	_, err = s.historyService.Undo(ctx, "alice")
	s.Require().NoError(err)

	s.publisher = &recordingPublisher{}
	s.useOptions(service.WithStoreTimeout(time.Nanosecond))

	_, err = s.historyService.Redo(ctx, "alice")
	s.ErrorIs(err, domain.ErrStorage)

	records := s.records("alice")
	s.Require().Len(records, 2)
	s.True(records[0].IsUndone)
	s.Equal(domain.ActionTypeUpdate, records[0].ActionType)

	stored, err := s.taskRepo.GetByID(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal("X", stored.Title)
	s.Empty(s.publisher.names())
}
