package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

// BoardView is the denormalized read model for a single board: its lists in
// order and its non-archived tasks with assignees and labels attached.
type BoardView struct {
	Board store.Board  `json:"board"`
	Lists []store.List `json:"lists"`
	Tasks []store.Task `json:"tasks"`
}

type BoardPage struct {
	Boards []store.Board `json:"boards"`
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

func (s *Service) CreateBoard(ctx context.Context, userID, name string, description *string) (store.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Board{}, errValidation("board name is required")
	}

	board := store.Board{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		OwnerID:     userID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return store.Board{}, err
	}
	if err := s.store.InsertBoardMember(ctx, store.BoardMember{
		ID:      uuid.NewString(),
		BoardID: board.ID,
		UserID:  userID,
		Role:    "owner",
	}); err != nil {
		return store.Board{}, err
	}

	s.logActivity(ctx, board.ID, userID, "create", "board", board.ID, board)
	s.indexBoard(ctx, board)
	return board, nil
}

func (s *Service) ListBoards(ctx context.Context, userID, query string, page, limit int) (BoardPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	if s.search != nil && strings.TrimSpace(query) != "" {
		if boards, total, ok := s.searchBoards(userID, query, page, limit); ok {
			return BoardPage{Boards: boards, Total: total, Page: page, Limit: limit}, nil
		}
	}

	boards, total, err := s.store.ListBoardsForUser(ctx, userID, strings.TrimSpace(query), limit, (page-1)*limit)
	if err != nil {
		return BoardPage{}, err
	}
	return BoardPage{Boards: boards, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) GetBoardView(ctx context.Context, userID, boardID string) (BoardView, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return BoardView{}, errNotFound("board not found")
	}
	if err != nil {
		return BoardView{}, err
	}
	if err := s.requireMember(ctx, boardID, userID); err != nil {
		return BoardView{}, err
	}

	lists, err := s.store.ListsByBoard(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	tasks, err := s.store.TasksByBoard(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	return BoardView{Board: board, Lists: lists, Tasks: tasks}, nil
}

func (s *Service) UpdateBoard(ctx context.Context, userID, boardID, name string, description *string) (store.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Board{}, errValidation("board name is required")
	}
	if _, err := s.requireOwner(ctx, boardID, userID); err != nil {
		return store.Board{}, err
	}

	board, err := s.store.UpdateBoard(ctx, boardID, name, description)
	if err != nil {
		return store.Board{}, err
	}

	s.logActivity(ctx, boardID, userID, "update", "board", boardID, map[string]any{"name": name, "description": description})
	s.indexBoard(ctx, board)
	return board, nil
}

func (s *Service) DeleteBoard(ctx context.Context, userID, boardID string) error {
	if _, err := s.requireOwner(ctx, boardID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteBoard(boardID)
	}
	return nil
}

func (s *Service) AddBoardMember(ctx context.Context, userID, boardID, email string) (store.BoardMember, error) {
	if strings.TrimSpace(email) == "" {
		return store.BoardMember{}, errValidation("email is required")
	}
	if _, err := s.requireOwner(ctx, boardID, userID); err != nil {
		return store.BoardMember{}, err
	}

	invited, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return store.BoardMember{}, errNotFound("user not found")
	}
	if err != nil {
		return store.BoardMember{}, err
	}

	already, err := s.store.IsBoardMember(ctx, boardID, invited.ID)
	if err != nil {
		return store.BoardMember{}, err
	}
	if already {
		return store.BoardMember{}, errConflict("user is already a board member")
	}

	member := store.BoardMember{
		ID:      uuid.NewString(),
		BoardID: boardID,
		UserID:  invited.ID,
		Role:    "member",
	}
	if err := s.store.InsertBoardMember(ctx, member); err != nil {
		return store.BoardMember{}, err
	}

	s.logActivity(ctx, boardID, userID, "update", "board", boardID, map[string]any{"action": "added_member", "memberId": invited.ID})
	s.reindexBoard(ctx, boardID)
	return member, nil
}

func (s *Service) BoardMembers(ctx context.Context, userID, boardID string) ([]store.BoardMember, error) {
	if err := s.requireMember(ctx, boardID, userID); err != nil {
		return nil, err
	}
	return s.store.ListBoardMembers(ctx, boardID)
}

// ── Search index sync ──

func (s *Service) indexBoard(ctx context.Context, board store.Board) {
	if s.search == nil {
		return
	}
	members, err := s.store.ListBoardMembers(ctx, board.ID)
	if err != nil {
		members = nil
	}
	memberIDs := make([]string, 0, len(members))
	for _, member := range members {
		memberIDs = append(memberIDs, member.UserID)
	}
	if len(memberIDs) == 0 {
		memberIDs = []string{board.OwnerID}
	}
	description := ""
	if board.Description != nil {
		description = *board.Description
	}
	s.search.IndexBoard(search.BoardRecord{
		ID:          board.ID,
		Name:        board.Name,
		Description: description,
		OwnerID:     board.OwnerID,
		MemberIDs:   memberIDs,
		CreatedAt:   board.CreatedAt.Unix(),
	})
}

func (s *Service) reindexBoard(ctx context.Context, boardID string) {
	if s.search == nil {
		return
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return
	}
	s.indexBoard(ctx, board)
}

func (s *Service) searchBoards(userID, query string, page, limit int) ([]store.Board, int, bool) {
	results, total, ok := s.search.SearchBoards(query, userID, limit, (page-1)*limit)
	if !ok {
		return nil, 0, false
	}
	boards := make([]store.Board, 0, len(results))
	for _, result := range results {
		var description *string
		if result.Description != "" {
			d := result.Description
			description = &d
		}
		boards = append(boards, store.Board{
			ID:          result.ID,
			Name:        result.Name,
			Description: description,
			OwnerID:     result.OwnerID,
			CreatedAt:   time.Unix(result.CreatedAt, 0),
			UpdatedAt:   time.Unix(result.CreatedAt, 0),
		})
	}
	return boards, total, true
}
