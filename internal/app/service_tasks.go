package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/api/internal/store"
)

// ── Lists ──

func (s *Service) CreateList(ctx context.Context, userID, boardID, name string) (store.List, error) {
	name = strings.TrimSpace(name)
	if boardID == "" || name == "" {
		return store.List{}, errValidation("board id and name are required")
	}
	if _, err := s.store.GetBoard(ctx, boardID); errors.Is(err, sql.ErrNoRows) {
		return store.List{}, errNotFound("board not found")
	} else if err != nil {
		return store.List{}, err
	}
	if err := s.requireMember(ctx, boardID, userID); err != nil {
		return store.List{}, err
	}

	maxPosition, err := s.store.MaxListPosition(ctx, boardID)
	if err != nil {
		return store.List{}, err
	}

	list, err := s.store.InsertList(ctx, store.List{
		ID:       uuid.NewString(),
		BoardID:  boardID,
		Name:     name,
		Position: nextPosition(maxPosition),
	})
	if err != nil {
		return store.List{}, err
	}

	s.logActivity(ctx, boardID, userID, "create", "list", list.ID, list)
	return list, nil
}

func (s *Service) UpdateList(ctx context.Context, userID, listID string, name *string, position *int) (store.List, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return store.List{}, errValidation("list name cannot be empty")
	}
	current, err := s.listForMember(ctx, listID, userID)
	if err != nil {
		return store.List{}, err
	}

	list, err := s.store.UpdateList(ctx, listID, name, position)
	if err != nil {
		return store.List{}, err
	}

	s.logActivity(ctx, current.BoardID, userID, "update", "list", listID, map[string]any{"name": name, "position": position})
	return list, nil
}

// DeleteList removes the list and, via cascade, every task it holds.
// The deleted list is returned so callers still know its board.
func (s *Service) DeleteList(ctx context.Context, userID, listID string) (store.List, error) {
	list, err := s.listForMember(ctx, listID, userID)
	if err != nil {
		return store.List{}, err
	}
	if err := s.store.DeleteList(ctx, listID); err != nil {
		return store.List{}, err
	}
	s.logActivity(ctx, list.BoardID, userID, "delete", "list", listID, nil)
	return list, nil
}

// ── Tasks ──

type CreateTaskInput struct {
	ListID      string     `json:"listId"`
	BoardID     string     `json:"boardId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    string     `json:"priority"`
}

type UpdateTaskInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ListID      *string    `json:"listId"`
	Position    *int       `json:"position"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    *string    `json:"priority"`
	Archived    *bool      `json:"archived"`
}

func (s *Service) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (store.Task, error) {
	title := strings.TrimSpace(input.Title)
	if input.ListID == "" || input.BoardID == "" || title == "" {
		return store.Task{}, errValidation("list id, board id and title are required")
	}

	list, err := s.store.GetList(ctx, input.ListID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Task{}, errNotFound("list not found")
	}
	if err != nil {
		return store.Task{}, err
	}
	if list.BoardID != input.BoardID {
		return store.Task{}, errValidation("list does not belong to this board")
	}
	if err := s.requireMember(ctx, input.BoardID, userID); err != nil {
		return store.Task{}, err
	}

	maxPosition, err := s.store.MaxTaskPosition(ctx, input.ListID)
	if err != nil {
		return store.Task{}, err
	}

	task, err := s.store.InsertTask(ctx, store.Task{
		ID:          uuid.NewString(),
		ListID:      input.ListID,
		BoardID:     input.BoardID,
		Title:       title,
		Description: input.Description,
		Position:    nextPosition(maxPosition),
		DueDate:     input.DueDate,
		Priority:    normalizePriority(input.Priority),
		CreatedBy:   userID,
	})
	if err != nil {
		return store.Task{}, err
	}
	task.AssignedUsers = []store.AssignedUser{}
	task.Labels = []store.Label{}

	s.logActivity(ctx, input.BoardID, userID, "create", "task", task.ID, task)
	return task, nil
}

// UpdateTask also covers moves: a listId/position pair re-parents the task
// within its board. The task's board never changes here; a destination list
// from another board is rejected so board_id always matches the list's.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTaskInput) (store.Task, error) {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return store.Task{}, errValidation("task title cannot be empty")
	}
	current, err := s.taskForMember(ctx, taskID, userID)
	if err != nil {
		return store.Task{}, err
	}

	if input.ListID != nil && *input.ListID != current.ListID {
		destination, err := s.store.GetList(ctx, *input.ListID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, errNotFound("list not found")
		}
		if err != nil {
			return store.Task{}, err
		}
		if destination.BoardID != current.BoardID {
			return store.Task{}, errValidation("cannot move task to a list on another board")
		}
	}

	var priority *string
	if input.Priority != nil {
		p := normalizePriority(*input.Priority)
		priority = &p
	}

	task, err := s.store.UpdateTask(ctx, taskID, store.TaskUpdate{
		Title:       input.Title,
		Description: input.Description,
		ListID:      input.ListID,
		Position:    input.Position,
		DueDate:     input.DueDate,
		Priority:    priority,
		Archived:    input.Archived,
	})
	if err != nil {
		return store.Task{}, err
	}

	s.logActivity(ctx, current.BoardID, userID, "update", "task", taskID, input)
	return s.materializeTask(ctx, task)
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) (store.Task, error) {
	task, err := s.taskForMember(ctx, taskID, userID)
	if err != nil {
		return store.Task{}, err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return store.Task{}, err
	}
	s.logActivity(ctx, task.BoardID, userID, "delete", "task", taskID, nil)
	return task, nil
}

// materializeTask attaches the denormalized children so callers never need a
// follow-up read after an update.
func (s *Service) materializeTask(ctx context.Context, task store.Task) (store.Task, error) {
	assignees, err := s.store.ListAssignees(ctx, task.ID)
	if err != nil {
		return store.Task{}, err
	}
	labels, err := s.store.LabelsForTask(ctx, task.ID)
	if err != nil {
		return store.Task{}, err
	}
	task.AssignedUsers = assignees
	task.Labels = labels
	return task, nil
}

func normalizePriority(priority string) string {
	switch priority {
	case "low", "medium", "high":
		return priority
	default:
		return "medium"
	}
}

// ── Assignments ──

// AssignUser assigns a user to a task. An assignee who is not yet a board
// member is enrolled as a member first rather than rejected.
func (s *Service) AssignUser(ctx context.Context, actorID, taskID, userID string) (store.AssignedUser, string, error) {
	if userID == "" {
		return store.AssignedUser{}, "", errValidation("user id is required")
	}
	task, err := s.taskForMember(ctx, taskID, actorID)
	if err != nil {
		return store.AssignedUser{}, "", err
	}

	assignee, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AssignedUser{}, "", errNotFound("user not found")
	}
	if err != nil {
		return store.AssignedUser{}, "", err
	}

	member, err := s.store.IsBoardMember(ctx, task.BoardID, assignee.ID)
	if err != nil {
		return store.AssignedUser{}, "", err
	}
	if !member {
		if err := s.store.InsertBoardMember(ctx, store.BoardMember{
			ID:      uuid.NewString(),
			BoardID: task.BoardID,
			UserID:  assignee.ID,
			Role:    "member",
		}); err != nil {
			return store.AssignedUser{}, "", err
		}
		s.reindexBoard(ctx, task.BoardID)
	}

	exists, err := s.store.AssignmentExists(ctx, taskID, assignee.ID)
	if err != nil {
		return store.AssignedUser{}, "", err
	}
	if exists {
		return store.AssignedUser{}, "", errConflict("user already assigned to this task")
	}

	assignment, err := s.store.InsertAssignment(ctx, store.TaskAssignment{
		ID:     uuid.NewString(),
		TaskID: taskID,
		UserID: assignee.ID,
	})
	if err != nil {
		return store.AssignedUser{}, "", err
	}

	s.logActivity(ctx, task.BoardID, actorID, "assign", "task", taskID, map[string]any{"assignedUserId": assignee.ID})
	return store.AssignedUser{
		ID:        assignment.ID,
		UserID:    assignee.ID,
		Username:  assignee.Username,
		FirstName: assignee.FirstName,
		LastName:  assignee.LastName,
	}, task.BoardID, nil
}

func (s *Service) UnassignUser(ctx context.Context, actorID, taskID, assignmentID string) error {
	task, err := s.taskForMember(ctx, taskID, actorID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAssignment(ctx, assignmentID); err != nil {
		return err
	}
	s.logActivity(ctx, task.BoardID, actorID, "update", "task", taskID, map[string]any{"removedAssignment": assignmentID})
	return nil
}

// ── Labels ──

func (s *Service) CreateLabel(ctx context.Context, userID, boardID, name, color string) (store.Label, error) {
	if boardID == "" || strings.TrimSpace(name) == "" {
		return store.Label{}, errValidation("board id and name are required")
	}
	if err := s.requireMember(ctx, boardID, userID); err != nil {
		return store.Label{}, err
	}

	label, err := s.store.InsertLabel(ctx, store.Label{
		ID:      uuid.NewString(),
		BoardID: boardID,
		Name:    strings.TrimSpace(name),
		Color:   color,
	})
	if err != nil {
		return store.Label{}, err
	}

	s.logActivity(ctx, boardID, userID, "create", "label", label.ID, label)
	return label, nil
}

func (s *Service) BoardLabels(ctx context.Context, userID, boardID string) ([]store.Label, error) {
	if err := s.requireMember(ctx, boardID, userID); err != nil {
		return nil, err
	}
	return s.store.LabelsByBoard(ctx, boardID)
}

func (s *Service) UpdateLabel(ctx context.Context, userID, labelID string, name, color *string) (store.Label, error) {
	current, err := s.store.GetLabel(ctx, labelID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Label{}, errNotFound("label not found")
	}
	if err != nil {
		return store.Label{}, err
	}
	if err := s.requireMember(ctx, current.BoardID, userID); err != nil {
		return store.Label{}, err
	}

	label, err := s.store.UpdateLabel(ctx, labelID, name, color)
	if err != nil {
		return store.Label{}, err
	}

	s.logActivity(ctx, current.BoardID, userID, "update", "label", labelID, map[string]any{"name": name, "color": color})
	return label, nil
}

func (s *Service) DeleteLabel(ctx context.Context, userID, labelID string) error {
	label, err := s.store.GetLabel(ctx, labelID)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("label not found")
	}
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, label.BoardID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteLabel(ctx, labelID); err != nil {
		return err
	}
	s.logActivity(ctx, label.BoardID, userID, "delete", "label", labelID, nil)
	return nil
}

func (s *Service) AddLabelToTask(ctx context.Context, userID, taskID, labelID string) (store.TaskLabel, error) {
	if labelID == "" {
		return store.TaskLabel{}, errValidation("label id is required")
	}
	task, err := s.taskForMember(ctx, taskID, userID)
	if err != nil {
		return store.TaskLabel{}, err
	}

	label, err := s.store.GetLabel(ctx, labelID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TaskLabel{}, errNotFound("label not found")
	}
	if err != nil {
		return store.TaskLabel{}, err
	}
	if label.BoardID != task.BoardID {
		return store.TaskLabel{}, errNotFound("label does not belong to this board")
	}

	exists, err := s.store.TaskLabelExists(ctx, taskID, labelID)
	if err != nil {
		return store.TaskLabel{}, err
	}
	if exists {
		return store.TaskLabel{}, errConflict("label already added to task")
	}

	taskLabel, err := s.store.InsertTaskLabel(ctx, store.TaskLabel{
		ID:      uuid.NewString(),
		TaskID:  taskID,
		LabelID: labelID,
	})
	if err != nil {
		return store.TaskLabel{}, err
	}

	s.logActivity(ctx, task.BoardID, userID, "update", "task", taskID, map[string]any{"addedLabel": labelID})
	return taskLabel, nil
}

func (s *Service) RemoveLabelFromTask(ctx context.Context, userID, taskID, labelID string) error {
	task, err := s.taskForMember(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTaskLabel(ctx, taskID, labelID); err != nil {
		return err
	}
	s.logActivity(ctx, task.BoardID, userID, "update", "task", taskID, map[string]any{"removedLabel": labelID})
	return nil
}

// ── Comments ──

func (s *Service) CreateComment(ctx context.Context, userID, taskID, text string) (store.Comment, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Comment{}, "", errValidation("comment cannot be empty")
	}
	task, err := s.taskForMember(ctx, taskID, userID)
	if err != nil {
		return store.Comment{}, "", err
	}

	commentID := uuid.NewString()
	if err := s.store.InsertComment(ctx, store.Comment{
		ID:      commentID,
		TaskID:  taskID,
		UserID:  userID,
		Comment: text,
	}); err != nil {
		return store.Comment{}, "", err
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return store.Comment{}, "", err
	}

	s.logActivity(ctx, task.BoardID, userID, "create", "comment", commentID, map[string]any{"taskId": taskID})
	return comment, task.BoardID, nil
}

func (s *Service) TaskComments(ctx context.Context, userID, taskID string) ([]store.Comment, error) {
	if _, err := s.taskForMember(ctx, taskID, userID); err != nil {
		return nil, err
	}
	return s.store.CommentsByTask(ctx, taskID)
}

// DeleteComment is author-only: membership on the board is not enough.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("comment not found")
	}
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return errForbidden("not authorized to delete this comment")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	task, err := s.store.GetTask(ctx, comment.TaskID)
	if err == nil {
		s.logActivity(ctx, task.BoardID, userID, "delete", "comment", commentID, nil)
	}
	return nil
}
