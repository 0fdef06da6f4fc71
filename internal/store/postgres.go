package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, first_name, last_name, created_at
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, first_name, last_name, created_at
		FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email=$1 OR username=$2)
	`, email, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, first_name, last_name, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Username, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ── Boards ──

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
	`, board.ID, board.Name, board.Description, board.OwnerID)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	var board Board
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner_id, created_at, updated_at
		FROM boards WHERE id=$1
	`, boardID).Scan(&board.ID, &board.Name, &board.Description, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt)
	if err != nil {
		return Board{}, err
	}
	return board, nil
}

// ListBoardsForUser returns the boards the user is a member of, newest first,
// filtered by a case-insensitive match on name or description.
func (s *PostgresStore) ListBoardsForUser(ctx context.Context, userID, search string, limit, offset int) ([]Board, int, error) {
	pattern := "%" + search + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.description, b.owner_id, b.created_at, b.updated_at
		FROM boards b
		INNER JOIN board_members bm ON b.id = bm.board_id
		WHERE bm.user_id = $1 AND (b.name ILIKE $2 OR COALESCE(b.description, '') ILIKE $2)
		ORDER BY b.created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var board Board
		if err := rows.Scan(&board.ID, &board.Name, &board.Description, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, board)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate boards: %w", err)
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM boards b
		INNER JOIN board_members bm ON b.id = bm.board_id
		WHERE bm.user_id = $1 AND (b.name ILIKE $2 OR COALESCE(b.description, '') ILIKE $2)
	`, userID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count boards: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, boardID, name string, description *string) (Board, error) {
	var board Board
	err := s.db.QueryRowContext(ctx, `
		UPDATE boards SET name=$2, description=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, name, description, owner_id, created_at, updated_at
	`, boardID, name, description).Scan(&board.ID, &board.Name, &board.Description, &board.OwnerID, &board.CreatedAt, &board.UpdatedAt)
	if err != nil {
		return Board{}, fmt.Errorf("update board: %w", err)
	}
	return board, nil
}

// DeleteBoard removes the board; lists, tasks, members, labels, assignments
// and comments go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, boardID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return nil
}

// ── Board members ──

func (s *PostgresStore) InsertBoardMember(ctx context.Context, member BoardMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_members (id, board_id, user_id, role)
		VALUES ($1, $2, $3, $4)
	`, member.ID, member.BoardID, member.UserID, member.Role)
	if err != nil {
		return fmt.Errorf("insert board member: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsBoardMember(ctx context.Context, boardID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM board_members WHERE board_id=$1 AND user_id=$2)
	`, boardID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check board member: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListBoardMembers(ctx context.Context, boardID string) ([]BoardMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bm.id, bm.board_id, bm.user_id, bm.role, bm.created_at, u.username, u.email
		FROM board_members bm
		INNER JOIN users u ON bm.user_id = u.id
		WHERE bm.board_id = $1
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	items := make([]BoardMember, 0)
	for rows.Next() {
		var member BoardMember
		if err := rows.Scan(&member.ID, &member.BoardID, &member.UserID, &member.Role, &member.CreatedAt, &member.Username, &member.Email); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		items = append(items, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board members: %w", err)
	}
	return items, nil
}

// ── Lists ──

func (s *PostgresStore) InsertList(ctx context.Context, list List) (List, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lists (id, board_id, name, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, board_id, name, position, created_at, updated_at
	`, list.ID, list.BoardID, list.Name, list.Position).Scan(&list.ID, &list.BoardID, &list.Name, &list.Position, &list.CreatedAt, &list.UpdatedAt)
	if err != nil {
		return List{}, fmt.Errorf("insert list: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) GetList(ctx context.Context, listID string) (List, error) {
	var list List
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, position, created_at, updated_at
		FROM lists WHERE id=$1
	`, listID).Scan(&list.ID, &list.BoardID, &list.Name, &list.Position, &list.CreatedAt, &list.UpdatedAt)
	if err != nil {
		return List{}, err
	}
	return list, nil
}

// ListsByBoard orders by position with creation time then id as tie-breaks,
// so colliding positions after a move still present deterministically.
func (s *PostgresStore) ListsByBoard(ctx context.Context, boardID string) ([]List, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, name, position, created_at, updated_at
		FROM lists
		WHERE board_id = $1
		ORDER BY position ASC, created_at ASC, id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	items := make([]List, 0)
	for rows.Next() {
		var list List
		if err := rows.Scan(&list.ID, &list.BoardID, &list.Name, &list.Position, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		items = append(items, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateList(ctx context.Context, listID string, name *string, position *int) (List, error) {
	var list List
	err := s.db.QueryRowContext(ctx, `
		UPDATE lists
		SET name=COALESCE($2, name), position=COALESCE($3, position), updated_at=NOW()
		WHERE id=$1
		RETURNING id, board_id, name, position, created_at, updated_at
	`, listID, name, position).Scan(&list.ID, &list.BoardID, &list.Name, &list.Position, &list.CreatedAt, &list.UpdatedAt)
	if err != nil {
		return List{}, fmt.Errorf("update list: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) DeleteList(ctx context.Context, listID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id=$1`, listID)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// MaxListPosition returns the highest position among a board's lists, or -1
// when the board has none.
func (s *PostgresStore) MaxListPosition(ctx context.Context, boardID string) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) FROM lists WHERE board_id=$1
	`, boardID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max list position: %w", err)
	}
	return max, nil
}

// ── Tasks ──

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) (Task, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, list_id, board_id, title, description, position, due_date, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, list_id, board_id, title, description, position, due_date, priority, archived, created_by, created_at, updated_at
	`, task.ID, task.ListID, task.BoardID, task.Title, task.Description, task.Position, task.DueDate, task.Priority, task.CreatedBy).Scan(
		&task.ID, &task.ListID, &task.BoardID, &task.Title, &task.Description, &task.Position,
		&task.DueDate, &task.Priority, &task.Archived, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var task Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, list_id, board_id, title, description, position, due_date, priority, archived, created_by, created_at, updated_at
		FROM tasks WHERE id=$1
	`, taskID).Scan(&task.ID, &task.ListID, &task.BoardID, &task.Title, &task.Description, &task.Position,
		&task.DueDate, &task.Priority, &task.Archived, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

// TasksByBoard returns the board's non-archived tasks with assignees and
// labels aggregated in one pass, ordered within each list.
func (s *PostgresStore) TasksByBoard(ctx context.Context, boardID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.list_id, t.board_id, t.title, t.description, t.position, t.due_date,
			t.priority, t.archived, t.created_by, t.created_at, t.updated_at,
			COALESCE(json_agg(DISTINCT jsonb_build_object(
				'id', ta.id,
				'user_id', ta.user_id,
				'username', u.username,
				'first_name', u.first_name,
				'last_name', u.last_name
			)) FILTER (WHERE ta.id IS NOT NULL), '[]'::json) AS assigned_users,
			COALESCE(json_agg(DISTINCT jsonb_build_object(
				'id', l.id,
				'name', l.name,
				'color', l.color
			)) FILTER (WHERE l.id IS NOT NULL), '[]'::json) AS labels
		FROM tasks t
		LEFT JOIN task_assignments ta ON t.id = ta.task_id
		LEFT JOIN users u ON ta.user_id = u.id
		LEFT JOIN task_labels tl ON t.id = tl.task_id
		LEFT JOIN labels l ON tl.label_id = l.id
		WHERE t.board_id = $1 AND t.archived = FALSE
		GROUP BY t.id
		ORDER BY t.list_id, t.position ASC, t.created_at ASC, t.id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		task, err := scanTaskWithChildren(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board tasks: %w", err)
	}
	return items, nil
}

func scanTaskWithChildren(rows *sql.Rows) (Task, error) {
	var task Task
	var assignedJSON, labelsJSON []byte
	if err := rows.Scan(&task.ID, &task.ListID, &task.BoardID, &task.Title, &task.Description, &task.Position,
		&task.DueDate, &task.Priority, &task.Archived, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt,
		&assignedJSON, &labelsJSON); err != nil {
		return Task{}, fmt.Errorf("scan task: %w", err)
	}
	if err := json.Unmarshal(assignedJSON, &task.AssignedUsers); err != nil {
		return Task{}, fmt.Errorf("decode assigned users: %w", err)
	}
	if err := json.Unmarshal(labelsJSON, &task.Labels); err != nil {
		return Task{}, fmt.Errorf("decode labels: %w", err)
	}
	return task, nil
}

// TaskUpdate carries the optional fields of a task update; nil means "leave
// unchanged". ListID and Position together express a move.
type TaskUpdate struct {
	Title       *string
	Description *string
	ListID      *string
	Position    *int
	DueDate     *time.Time
	Priority    *string
	Archived    *bool
}

func (s *PostgresStore) UpdateTask(ctx context.Context, taskID string, update TaskUpdate) (Task, error) {
	var task Task
	err := s.db.QueryRowContext(ctx, `
		UPDATE tasks SET
			title=COALESCE($2, title),
			description=COALESCE($3, description),
			list_id=COALESCE($4, list_id),
			position=COALESCE($5, position),
			due_date=COALESCE($6, due_date),
			priority=COALESCE($7, priority),
			archived=COALESCE($8, archived),
			updated_at=NOW()
		WHERE id=$1
		RETURNING id, list_id, board_id, title, description, position, due_date, priority, archived, created_by, created_at, updated_at
	`, taskID, update.Title, update.Description, update.ListID, update.Position, update.DueDate, update.Priority, update.Archived).Scan(
		&task.ID, &task.ListID, &task.BoardID, &task.Title, &task.Description, &task.Position,
		&task.DueDate, &task.Priority, &task.Archived, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// MaxTaskPosition returns the highest position among a list's tasks, or -1
// when the list is empty.
func (s *PostgresStore) MaxTaskPosition(ctx context.Context, listID string) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) FROM tasks WHERE list_id=$1
	`, listID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max task position: %w", err)
	}
	return max, nil
}

// ── Task assignments ──

func (s *PostgresStore) InsertAssignment(ctx context.Context, assignment TaskAssignment) (TaskAssignment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO task_assignments (id, task_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, task_id, user_id, created_at
	`, assignment.ID, assignment.TaskID, assignment.UserID).Scan(
		&assignment.ID, &assignment.TaskID, &assignment.UserID, &assignment.CreatedAt)
	if err != nil {
		return TaskAssignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return assignment, nil
}

func (s *PostgresStore) AssignmentExists(ctx context.Context, taskID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM task_assignments WHERE task_id=$1 AND user_id=$2)
	`, taskID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteAssignment(ctx context.Context, assignmentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_assignments WHERE id=$1`, assignmentID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAssignees(ctx context.Context, taskID string) ([]AssignedUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ta.id, ta.user_id, u.username, u.first_name, u.last_name
		FROM task_assignments ta
		INNER JOIN users u ON ta.user_id = u.id
		WHERE ta.task_id = $1
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	items := make([]AssignedUser, 0)
	for rows.Next() {
		var assignee AssignedUser
		if err := rows.Scan(&assignee.ID, &assignee.UserID, &assignee.Username, &assignee.FirstName, &assignee.LastName); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		items = append(items, assignee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignees: %w", err)
	}
	return items, nil
}

// ── Labels ──

func (s *PostgresStore) InsertLabel(ctx context.Context, label Label) (Label, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO labels (id, board_id, name, color)
		VALUES ($1, $2, $3, $4)
		RETURNING id, board_id, name, color
	`, label.ID, label.BoardID, label.Name, label.Color).Scan(&label.ID, &label.BoardID, &label.Name, &label.Color)
	if err != nil {
		return Label{}, fmt.Errorf("insert label: %w", err)
	}
	return label, nil
}

func (s *PostgresStore) GetLabel(ctx context.Context, labelID string) (Label, error) {
	var label Label
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, color FROM labels WHERE id=$1
	`, labelID).Scan(&label.ID, &label.BoardID, &label.Name, &label.Color)
	if err != nil {
		return Label{}, err
	}
	return label, nil
}

func (s *PostgresStore) LabelsByBoard(ctx context.Context, boardID string) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, name, color FROM labels WHERE board_id=$1 ORDER BY name
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	items := make([]Label, 0)
	for rows.Next() {
		var label Label
		if err := rows.Scan(&label.ID, &label.BoardID, &label.Name, &label.Color); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		items = append(items, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateLabel(ctx context.Context, labelID string, name, color *string) (Label, error) {
	var label Label
	err := s.db.QueryRowContext(ctx, `
		UPDATE labels SET name=COALESCE($2, name), color=COALESCE($3, color)
		WHERE id=$1
		RETURNING id, board_id, name, color
	`, labelID, name, color).Scan(&label.ID, &label.BoardID, &label.Name, &label.Color)
	if err != nil {
		return Label{}, fmt.Errorf("update label: %w", err)
	}
	return label, nil
}

func (s *PostgresStore) DeleteLabel(ctx context.Context, labelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE id=$1`, labelID)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTaskLabel(ctx context.Context, taskLabel TaskLabel) (TaskLabel, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO task_labels (id, task_id, label_id)
		VALUES ($1, $2, $3)
		RETURNING id, task_id, label_id
	`, taskLabel.ID, taskLabel.TaskID, taskLabel.LabelID).Scan(&taskLabel.ID, &taskLabel.TaskID, &taskLabel.LabelID)
	if err != nil {
		return TaskLabel{}, fmt.Errorf("insert task label: %w", err)
	}
	return taskLabel, nil
}

func (s *PostgresStore) TaskLabelExists(ctx context.Context, taskID, labelID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM task_labels WHERE task_id=$1 AND label_id=$2)
	`, taskID, labelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check task label: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) DeleteTaskLabel(ctx context.Context, taskID, labelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_labels WHERE task_id=$1 AND label_id=$2`, taskID, labelID)
	if err != nil {
		return fmt.Errorf("delete task label: %w", err)
	}
	return nil
}

func (s *PostgresStore) LabelsForTask(ctx context.Context, taskID string) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.board_id, l.name, l.color
		FROM task_labels tl
		INNER JOIN labels l ON tl.label_id = l.id
		WHERE tl.task_id = $1
		ORDER BY l.name
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task labels: %w", err)
	}
	defer rows.Close()

	items := make([]Label, 0)
	for rows.Next() {
		var label Label
		if err := rows.Scan(&label.ID, &label.BoardID, &label.Name, &label.Color); err != nil {
			return nil, fmt.Errorf("scan task label: %w", err)
		}
		items = append(items, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task labels: %w", err)
	}
	return items, nil
}

// ── Comments ──

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, user_id, comment)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.TaskID, comment.UserID, comment.Comment)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT tc.id, tc.task_id, tc.user_id, tc.comment, tc.created_at, u.username, u.email, u.first_name, u.last_name
		FROM task_comments tc
		INNER JOIN users u ON tc.user_id = u.id
		WHERE tc.id=$1
	`, commentID).Scan(&comment.ID, &comment.TaskID, &comment.UserID, &comment.Comment, &comment.CreatedAt,
		&comment.Username, &comment.Email, &comment.FirstName, &comment.LastName)
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (s *PostgresStore) CommentsByTask(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tc.id, tc.task_id, tc.user_id, tc.comment, tc.created_at, u.username, u.email, u.first_name, u.last_name
		FROM task_comments tc
		INNER JOIN users u ON tc.user_id = u.id
		WHERE tc.task_id = $1
		ORDER BY tc.created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var comment Comment
		if err := rows.Scan(&comment.ID, &comment.TaskID, &comment.UserID, &comment.Comment, &comment.CreatedAt,
			&comment.Username, &comment.Email, &comment.FirstName, &comment.LastName); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ── Activity log ──

func (s *PostgresStore) InsertActivity(ctx context.Context, activity Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, board_id, user_id, action, entity_type, entity_id, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.BoardID, activity.UserID, activity.Action, activity.EntityType, activity.EntityID, nullableJSON(activity.Changes))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActivitiesByBoard(ctx context.Context, boardID string, limit, offset int) ([]Activity, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT al.id, al.board_id, al.user_id, al.action, al.entity_type, al.entity_id, al.changes, al.created_at,
			COALESCE(u.username, '')
		FROM activity_logs al
		LEFT JOIN users u ON al.user_id = u.id
		WHERE al.board_id = $1
		ORDER BY al.created_at DESC
		LIMIT $2 OFFSET $3
	`, boardID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var activity Activity
		var changes []byte
		if err := rows.Scan(&activity.ID, &activity.BoardID, &activity.UserID, &activity.Action,
			&activity.EntityType, &activity.EntityID, &changes, &activity.CreatedAt, &activity.Username); err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		activity.Changes = changes
		items = append(items, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate activities: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs WHERE board_id=$1`, boardID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return items, total, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
