package mirror

import (
	"encoding/json"
	"testing"
	"time"

	"taskboard/api/internal/realtime"
	"taskboard/api/internal/store"
)

func seedMirror() *Mirror {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return New(
		store.Board{ID: "board-1", Name: "Launch"},
		[]store.List{
			{ID: "list-todo", BoardID: "board-1", Name: "Todo", Position: 0, CreatedAt: base},
			{ID: "list-done", BoardID: "board-1", Name: "Done", Position: 1, CreatedAt: base},
		},
		[]store.Task{
			{ID: "task-1", ListID: "list-todo", BoardID: "board-1", Title: "Write docs", Position: 0, CreatedAt: base},
			{ID: "task-2", ListID: "list-todo", BoardID: "board-1", Title: "Cut release", Position: 1, CreatedAt: base},
		},
	)
}

func mustApply(t *testing.T, m *Mirror, eventType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := m.Apply(realtime.Event{Type: eventType, BoardID: "board-1", Payload: raw}); err != nil {
		t.Fatalf("apply %s: %v", eventType, err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	m := seedMirror()
	task := store.Task{ID: "task-3", ListID: "list-todo", BoardID: "board-1", Title: "Announce", Position: 2}

	mustApply(t, m, realtime.EventTaskCreated, task)
	mustApply(t, m, realtime.EventTaskCreated, task)

	snapshot := m.Snapshot()
	if len(snapshot.Tasks) != 3 {
		t.Fatalf("expected 3 tasks after duplicate apply, got %d", len(snapshot.Tasks))
	}
}

func TestMoveTaskReparents(t *testing.T) {
	m := seedMirror()

	mustApply(t, m, realtime.EventTaskMoved, map[string]any{
		"taskId": "task-1", "listId": "list-done", "position": 0,
	})

	for _, task := range m.Snapshot().Tasks {
		if task.ID == "task-1" {
			if task.ListID != "list-done" || task.Position != 0 {
				t.Fatalf("expected task-1 in list-done at 0, got %s/%d", task.ListID, task.Position)
			}
			return
		}
	}
	t.Fatal("task-1 missing after move")
}

func TestMoveUnknownTaskIsIgnored(t *testing.T) {
	m := seedMirror()

	mustApply(t, m, realtime.EventTaskMoved, map[string]any{
		"taskId": "task-ghost", "listId": "list-done", "position": 5,
	})

	if len(m.Snapshot().Tasks) != 2 {
		t.Fatalf("expected unchanged task set, got %d tasks", len(m.Snapshot().Tasks))
	}
}

func TestDeleteListCascadesTasks(t *testing.T) {
	m := seedMirror()

	mustApply(t, m, realtime.EventListDeleted, map[string]string{"listId": "list-todo"})

	snapshot := m.Snapshot()
	if len(snapshot.Lists) != 1 {
		t.Fatalf("expected 1 list, got %d", len(snapshot.Lists))
	}
	if len(snapshot.Tasks) != 0 {
		t.Fatalf("expected the list's tasks to cascade away, got %d", len(snapshot.Tasks))
	}
}

func TestEventsForOtherBoardsAreIgnored(t *testing.T) {
	m := seedMirror()
	raw, _ := json.Marshal(store.Task{ID: "task-x", ListID: "list-1", BoardID: "board-2"})

	if err := m.Apply(realtime.Event{Type: realtime.EventTaskCreated, BoardID: "board-2", Payload: raw}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(m.Snapshot().Tasks) != 2 {
		t.Fatalf("expected foreign-board event to be ignored")
	}
}

func TestAssignUserDeduplicates(t *testing.T) {
	m := seedMirror()
	payload := map[string]any{
		"taskId": "task-1",
		"user":   store.AssignedUser{ID: "assign-1", UserID: "user-9", Username: "nadia"},
	}

	mustApply(t, m, realtime.EventUserAssigned, payload)
	mustApply(t, m, realtime.EventUserAssigned, payload)

	for _, task := range m.Snapshot().Tasks {
		if task.ID == "task-1" {
			if len(task.AssignedUsers) != 1 {
				t.Fatalf("expected 1 assignee, got %d", len(task.AssignedUsers))
			}
			return
		}
	}
	t.Fatal("task-1 missing")
}

func TestSnapshotOrdering(t *testing.T) {
	m := seedMirror()
	mustApply(t, m, realtime.EventTaskCreated, store.Task{
		ID: "task-0", ListID: "list-todo", BoardID: "board-1", Title: "First", Position: 0,
	})

	snapshot := m.Snapshot()
	if snapshot.Lists[0].ID != "list-todo" || snapshot.Lists[1].ID != "list-done" {
		t.Fatalf("unexpected list order: %s, %s", snapshot.Lists[0].ID, snapshot.Lists[1].ID)
	}
	// Equal positions fall back to creation time, then id.
	if snapshot.Tasks[0].ID != "task-0" {
		t.Fatalf("expected task-0 first within list-todo, got %s", snapshot.Tasks[0].ID)
	}
}

func TestRestoreRollsBackOptimisticState(t *testing.T) {
	m := seedMirror()
	before := m.Snapshot()

	mustApply(t, m, realtime.EventTaskDeleted, map[string]string{"taskId": "task-1"})
	mustApply(t, m, realtime.EventTaskCreated, store.Task{ID: "task-9", ListID: "list-done", BoardID: "board-1"})
	if len(m.Snapshot().Tasks) != 2 {
		t.Fatalf("setup: expected 2 tasks, got %d", len(m.Snapshot().Tasks))
	}

	m.Restore(before)

	after := m.Snapshot()
	if len(after.Tasks) != 2 {
		t.Fatalf("expected 2 tasks after restore, got %d", len(after.Tasks))
	}
	ids := map[string]bool{}
	for _, task := range after.Tasks {
		ids[task.ID] = true
	}
	if !ids["task-1"] || !ids["task-2"] || ids["task-9"] {
		t.Fatalf("restore did not return original task set: %v", ids)
	}
}

func TestRestoreKeepsComments(t *testing.T) {
	m := seedMirror()
	mustApply(t, m, realtime.EventCommentAdded, store.Comment{ID: "c-1", TaskID: "task-1", Comment: "ship it"})
	before := m.Snapshot()

	mustApply(t, m, realtime.EventCommentAdded, store.Comment{ID: "c-2", TaskID: "task-1", Comment: "hold on"})
	m.Restore(before)

	comments := m.TaskComments("task-1")
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment after restore, got %d", len(comments))
	}
	if comments[0].ID != "c-1" {
		t.Fatalf("expected comment c-1 to survive restore, got %s", comments[0].ID)
	}
}

func TestSetMembersReplacesRoster(t *testing.T) {
	m := seedMirror()

	m.SetMembers([]store.BoardMember{
		{ID: "bm-1", BoardID: "board-1", UserID: "user-1", Role: "owner"},
		{ID: "bm-2", BoardID: "board-1", UserID: "user-2", Role: "member"},
	})
	m.AddMember(store.BoardMember{ID: "bm-2", BoardID: "board-1", UserID: "user-2", Role: "member"})
	m.SetMembers([]store.BoardMember{
		{ID: "bm-1", BoardID: "board-1", UserID: "user-1", Role: "owner"},
	})

	snapshot := m.Snapshot()
	if len(snapshot.Members) != 1 {
		t.Fatalf("expected 1 member after replace, got %d", len(snapshot.Members))
	}
	if snapshot.Members[0].UserID != "user-1" {
		t.Fatalf("unexpected member: %s", snapshot.Members[0].UserID)
	}
}

func TestDeleteOpenBoardClearsState(t *testing.T) {
	m := seedMirror()
	m.UpsertBoard(store.Board{ID: "board-2", Name: "Backlog"})
	m.SetMembers([]store.BoardMember{{ID: "bm-1", BoardID: "board-1", UserID: "user-1", Role: "owner"}})

	m.DeleteBoard("board-2")
	if len(m.Snapshot().Boards) != 1 {
		t.Fatalf("expected 1 board after listing delete, got %d", len(m.Snapshot().Boards))
	}

	m.DeleteBoard("board-1")

	snapshot := m.Snapshot()
	if len(snapshot.Boards) != 0 || len(snapshot.Lists) != 0 || len(snapshot.Tasks) != 0 || len(snapshot.Members) != 0 {
		t.Fatalf("expected empty mirror after open board delete, got %+v", snapshot)
	}
}

func TestCommentsAccumulateInOrder(t *testing.T) {
	m := seedMirror()

	mustApply(t, m, realtime.EventCommentAdded, store.Comment{ID: "c-1", TaskID: "task-1", Comment: "first"})
	mustApply(t, m, realtime.EventCommentAdded, store.Comment{ID: "c-2", TaskID: "task-1", Comment: "second"})
	mustApply(t, m, realtime.EventCommentAdded, store.Comment{ID: "c-1", TaskID: "task-1", Comment: "first"})

	comments := m.TaskComments("task-1")
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != "c-1" || comments[1].ID != "c-2" {
		t.Fatalf("unexpected comment order: %s, %s", comments[0].ID, comments[1].ID)
	}
}
