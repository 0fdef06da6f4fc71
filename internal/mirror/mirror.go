// Package mirror keeps an in-memory replica of one board, fed by the
// realtime event stream. Consumers read a consistent snapshot instead
// of refetching the board after every event. All apply primitives are
// idempotent upserts so a replayed or duplicated event converges to
// the same state.
package mirror

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"taskboard/api/internal/realtime"
	"taskboard/api/internal/store"
)

type Mirror struct {
	mu       sync.RWMutex
	board    store.Board
	boards   map[string]store.Board
	members  map[string]store.BoardMember
	lists    map[string]store.List
	tasks    map[string]store.Task
	comments map[string][]store.Comment
}

// New creates a mirror seeded with the board's current server state.
func New(board store.Board, lists []store.List, tasks []store.Task) *Mirror {
	m := &Mirror{
		board:    board,
		boards:   map[string]store.Board{board.ID: board},
		members:  make(map[string]store.BoardMember),
		lists:    make(map[string]store.List, len(lists)),
		tasks:    make(map[string]store.Task, len(tasks)),
		comments: make(map[string][]store.Comment),
	}
	for _, list := range lists {
		m.lists[list.ID] = list
	}
	for _, task := range tasks {
		m.tasks[task.ID] = task
	}
	return m
}

// Apply folds one realtime event into the replica. Events for other
// boards and event types the mirror does not track are ignored.
func (m *Mirror) Apply(event realtime.Event) error {
	if event.BoardID != "" && event.BoardID != m.BoardID() {
		return nil
	}

	switch event.Type {
	case realtime.EventListCreated, realtime.EventListUpdated:
		var list store.List
		if err := json.Unmarshal(event.Payload, &list); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.UpsertList(list)
	case realtime.EventListDeleted:
		var ref struct {
			ListID string `json:"listId"`
		}
		if err := json.Unmarshal(event.Payload, &ref); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.DeleteList(ref.ListID)
	case realtime.EventTaskCreated, realtime.EventTaskUpdated:
		var task store.Task
		if err := json.Unmarshal(event.Payload, &task); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.UpsertTask(task)
	case realtime.EventTaskMoved:
		var move struct {
			TaskID   string `json:"taskId"`
			ListID   string `json:"listId"`
			Position int    `json:"position"`
		}
		if err := json.Unmarshal(event.Payload, &move); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.MoveTask(move.TaskID, move.ListID, move.Position)
	case realtime.EventTaskDeleted:
		var ref struct {
			TaskID string `json:"taskId"`
		}
		if err := json.Unmarshal(event.Payload, &ref); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.DeleteTask(ref.TaskID)
	case realtime.EventUserAssigned:
		var assigned struct {
			TaskID string             `json:"taskId"`
			User   store.AssignedUser `json:"user"`
		}
		if err := json.Unmarshal(event.Payload, &assigned); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.AssignUser(assigned.TaskID, assigned.User)
	case realtime.EventCommentAdded:
		var comment store.Comment
		if err := json.Unmarshal(event.Payload, &comment); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		m.AddComment(comment)
	}
	return nil
}

func (m *Mirror) BoardID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.board.ID
}

// UpsertBoard tracks a board in the user's board listing. The mirror
// follows one open board at a time; others appear only in the listing.
func (m *Mirror) UpsertBoard(board store.Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards[board.ID] = board
	if board.ID == m.board.ID {
		m.board = board
	}
}

// DeleteBoard removes a board from the listing. Deleting the open board
// clears its lists, tasks, members and comments as well.
func (m *Mirror) DeleteBoard(boardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boards, boardID)
	if boardID != m.board.ID {
		return
	}
	m.board = store.Board{}
	m.members = make(map[string]store.BoardMember)
	m.lists = make(map[string]store.List)
	m.tasks = make(map[string]store.Task)
	m.comments = make(map[string][]store.Comment)
}

// SetMembers replaces the open board's member roster, as returned by a
// members fetch.
func (m *Mirror) SetMembers(members []store.BoardMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = make(map[string]store.BoardMember, len(members))
	for _, member := range members {
		m.members[member.UserID] = member
	}
}

func (m *Mirror) AddMember(member store.BoardMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.UserID] = member
}

func (m *Mirror) UpsertList(list store.List) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[list.ID] = list
}

// DeleteList drops the list and cascades to its tasks, matching the
// server's delete behavior.
func (m *Mirror) DeleteList(listID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, listID)
	for id, task := range m.tasks {
		if task.ListID == listID {
			delete(m.tasks, id)
			delete(m.comments, id)
		}
	}
}

func (m *Mirror) UpsertTask(task store.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

// MoveTask re-parents a task within the board. Unknown tasks are
// ignored; the next full task-updated event fills the gap.
func (m *Mirror) MoveTask(taskID, listID string, position int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return
	}
	task.ListID = listID
	task.Position = position
	m.tasks[taskID] = task
}

func (m *Mirror) DeleteTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	delete(m.comments, taskID)
}

func (m *Mirror) AssignUser(taskID string, user store.AssignedUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return
	}
	for _, existing := range task.AssignedUsers {
		if existing.UserID == user.UserID {
			return
		}
	}
	task.AssignedUsers = append(task.AssignedUsers, user)
	m.tasks[taskID] = task
}

func (m *Mirror) AddComment(comment store.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.comments[comment.TaskID] {
		if existing.ID == comment.ID {
			return
		}
	}
	m.comments[comment.TaskID] = append(m.comments[comment.TaskID], comment)
}

// Snapshot is an immutable copy of the replica, ordered the way the
// server orders reads.
type Snapshot struct {
	Board    store.Board
	Boards   []store.Board
	Members  []store.BoardMember
	Lists    []store.List
	Tasks    []store.Task
	Comments map[string][]store.Comment
}

func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lists := make([]store.List, 0, len(m.lists))
	for _, list := range m.lists {
		lists = append(lists, list)
	}
	sort.Slice(lists, func(i, j int) bool {
		if lists[i].Position != lists[j].Position {
			return lists[i].Position < lists[j].Position
		}
		if !lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].CreatedAt.Before(lists[j].CreatedAt)
		}
		return lists[i].ID < lists[j].ID
	})

	tasks := make([]store.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ListID != tasks[j].ListID {
			return tasks[i].ListID < tasks[j].ListID
		}
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})

	boards := make([]store.Board, 0, len(m.boards))
	for _, board := range m.boards {
		boards = append(boards, board)
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].ID < boards[j].ID })

	members := make([]store.BoardMember, 0, len(m.members))
	for _, member := range m.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })

	comments := make(map[string][]store.Comment, len(m.comments))
	for taskID, list := range m.comments {
		copied := make([]store.Comment, len(list))
		copy(copied, list)
		comments[taskID] = copied
	}

	return Snapshot{Board: m.board, Boards: boards, Members: members, Lists: lists, Tasks: tasks, Comments: comments}
}

// Restore replaces the replica with a previously captured snapshot,
// used to roll back optimistic local changes after a rejected write.
func (m *Mirror) Restore(snapshot Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.board = snapshot.Board
	m.boards = make(map[string]store.Board, len(snapshot.Boards))
	for _, board := range snapshot.Boards {
		m.boards[board.ID] = board
	}
	m.members = make(map[string]store.BoardMember, len(snapshot.Members))
	for _, member := range snapshot.Members {
		m.members[member.UserID] = member
	}
	m.lists = make(map[string]store.List, len(snapshot.Lists))
	for _, list := range snapshot.Lists {
		m.lists[list.ID] = list
	}
	m.tasks = make(map[string]store.Task, len(snapshot.Tasks))
	for _, task := range snapshot.Tasks {
		m.tasks[task.ID] = task
	}
	m.comments = make(map[string][]store.Comment, len(snapshot.Comments))
	for taskID, list := range snapshot.Comments {
		copied := make([]store.Comment, len(list))
		copy(copied, list)
		m.comments[taskID] = copied
	}
}

// TaskComments returns the comments seen for a task, oldest first.
func (m *Mirror) TaskComments(taskID string) []store.Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Comment, len(m.comments[taskID]))
	copy(out, m.comments[taskID])
	return out
}
