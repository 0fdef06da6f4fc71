package app

import (
	"context"
	"database/sql"
	"errors"

	"taskboard/api/internal/store"
)

// Access checks read persisted membership at call time; revoked membership
// takes effect on the next call.

// CanAccess reports whether the user is a member of the board. Used by the
// realtime layer to validate join-board requests.
func (s *Service) CanAccess(ctx context.Context, boardID, userID string) (bool, error) {
	return s.store.IsBoardMember(ctx, boardID, userID)
}

// requireMember fails with FORBIDDEN unless a board_members row exists.
func (s *Service) requireMember(ctx context.Context, boardID, userID string) error {
	member, err := s.store.IsBoardMember(ctx, boardID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errForbidden("access denied")
	}
	return nil
}

// requireOwner resolves the board (NOT_FOUND first) and fails with
// FORBIDDEN unless the user owns it.
func (s *Service) requireOwner(ctx context.Context, boardID, userID string) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Board{}, errNotFound("board not found")
	}
	if err != nil {
		return store.Board{}, err
	}
	if board.OwnerID != userID {
		return store.Board{}, errForbidden("only the board owner may do this")
	}
	return board, nil
}

// taskForMember resolves a task (NOT_FOUND first) and checks the acting
// user's membership on its board.
func (s *Service) taskForMember(ctx context.Context, taskID, userID string) (store.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Task{}, errNotFound("task not found")
	}
	if err != nil {
		return store.Task{}, err
	}
	if err := s.requireMember(ctx, task.BoardID, userID); err != nil {
		return store.Task{}, err
	}
	return task, nil
}

// listForMember resolves a list (NOT_FOUND first) and checks the acting
// user's membership on its board.
func (s *Service) listForMember(ctx context.Context, listID, userID string) (store.List, error) {
	list, err := s.store.GetList(ctx, listID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.List{}, errNotFound("list not found")
	}
	if err != nil {
		return store.List{}, err
	}
	if err := s.requireMember(ctx, list.BoardID, userID); err != nil {
		return store.List{}, err
	}
	return list, nil
}
