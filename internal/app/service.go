package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/config"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Username     string
	Email        string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	UserExists(ctx context.Context, email, username string) (bool, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error

	InsertBoard(context.Context, store.Board) error
	GetBoard(context.Context, string) (store.Board, error)
	ListBoardsForUser(ctx context.Context, userID, search string, limit, offset int) ([]store.Board, int, error)
	UpdateBoard(ctx context.Context, boardID, name string, description *string) (store.Board, error)
	DeleteBoard(context.Context, string) error

	InsertBoardMember(context.Context, store.BoardMember) error
	IsBoardMember(ctx context.Context, boardID, userID string) (bool, error)
	ListBoardMembers(context.Context, string) ([]store.BoardMember, error)

	InsertList(context.Context, store.List) (store.List, error)
	GetList(context.Context, string) (store.List, error)
	ListsByBoard(context.Context, string) ([]store.List, error)
	UpdateList(ctx context.Context, listID string, name *string, position *int) (store.List, error)
	DeleteList(context.Context, string) error
	MaxListPosition(context.Context, string) (int, error)

	InsertTask(context.Context, store.Task) (store.Task, error)
	GetTask(context.Context, string) (store.Task, error)
	TasksByBoard(context.Context, string) ([]store.Task, error)
	UpdateTask(ctx context.Context, taskID string, update store.TaskUpdate) (store.Task, error)
	DeleteTask(context.Context, string) error
	MaxTaskPosition(context.Context, string) (int, error)

	InsertAssignment(context.Context, store.TaskAssignment) (store.TaskAssignment, error)
	AssignmentExists(ctx context.Context, taskID, userID string) (bool, error)
	DeleteAssignment(context.Context, string) error
	ListAssignees(context.Context, string) ([]store.AssignedUser, error)

	InsertLabel(context.Context, store.Label) (store.Label, error)
	GetLabel(context.Context, string) (store.Label, error)
	LabelsByBoard(context.Context, string) ([]store.Label, error)
	UpdateLabel(ctx context.Context, labelID string, name, color *string) (store.Label, error)
	DeleteLabel(context.Context, string) error
	InsertTaskLabel(context.Context, store.TaskLabel) (store.TaskLabel, error)
	TaskLabelExists(ctx context.Context, taskID, labelID string) (bool, error)
	DeleteTaskLabel(ctx context.Context, taskID, labelID string) error
	LabelsForTask(context.Context, string) ([]store.Label, error)

	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	CommentsByTask(context.Context, string) ([]store.Comment, error)
	DeleteComment(context.Context, string) error

	InsertActivity(context.Context, store.Activity) error
	ActivitiesByBoard(ctx context.Context, boardID string, limit, offset int) ([]store.Activity, int, error)

	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error

	Ping(ctx context.Context) error
}

// sessionStore is the refresh-token backend; Redis when configured,
// otherwise the Postgres store itself.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   *search.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		search:   searchService,
	}
}

func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchService,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Auth ──

type SignUpInput struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (s *Service) SignUp(ctx context.Context, input SignUpInput) (store.User, Session, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" || email == "" || input.Password == "" {
		return store.User{}, Session{}, errValidation("username, email and password are required")
	}
	if len(input.Password) < 6 {
		return store.User{}, Session{}, errValidation("password must be at least 6 characters")
	}

	exists, err := s.store.UserExists(ctx, email, username)
	if err != nil {
		return store.User{}, Session{}, err
	}
	if exists {
		return store.User{}, Session{}, errConflict("user already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, Session{}, err
	}

	user := store.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, Session{}, err
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return store.User{}, Session{}, err
	}
	return user, session, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (store.User, Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.User{}, Session{}, errValidation("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, Session{}, errUnauthorized("invalid credentials")
	}
	if err != nil {
		return store.User{}, Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return store.User{}, Session{}, errUnauthorized("invalid credentials")
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return store.User{}, Session{}, err
	}
	return user, session, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, errUnauthorized("refresh token invalid")
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Redis records only carry the user id; rehydrate display fields.
	if user.Username == "" {
		full, err := s.store.GetUserByID(ctx, user.ID)
		if err != nil {
			return Session{}, errUnauthorized("refresh token invalid")
		}
		user = full
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Username, user.Email, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := uuid.NewString() + uuid.NewString()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, errNotFound("user not found")
	}
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if strings.TrimSpace(email) == "" || newPassword == "" {
		return errValidation("email and new password are required")
	}
	if len(newPassword) < 6 {
		return errValidation("password must be at least 6 characters")
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound("email not found")
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, user.ID, string(hash))
}

// ── Activity log ──

// logActivity records the audit entry for a mutation. Writes are
// fire-and-forget: the primary mutation has already committed, so a log
// failure is reported server-side instead of failing the request.
func (s *Service) logActivity(ctx context.Context, boardID, userID, action, entityType, entityID string, changes any) {
	activity := store.Activity{
		ID:         uuid.NewString(),
		BoardID:    boardID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if changes != nil {
		encoded, err := json.Marshal(changes)
		if err != nil {
			log.Printf("activity: encode changes for %s %s: %v", entityType, entityID, err)
		} else {
			activity.Changes = encoded
		}
	}
	if err := s.store.InsertActivity(ctx, activity); err != nil {
		log.Printf("activity: log %s %s %s: %v", action, entityType, entityID, err)
	}
}

func (s *Service) Activities(ctx context.Context, userID, boardID string, page, limit int) ([]store.Activity, int, error) {
	if err := s.requireMember(ctx, boardID, userID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return s.store.ActivitiesByBoard(ctx, boardID, limit, (page-1)*limit)
}

func nextPosition(maxPosition int) int {
	return maxPosition + 1
}
