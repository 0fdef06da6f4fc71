package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/realtime"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	hub        *realtime.Hub
	corsOrigin string
}

// NewHTTPServer wires the REST surface. hub may be nil, in which case
// mutations are not fanned out to websocket clients.
func NewHTTPServer(service *Service, hub *realtime.Hub, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, hub: hub, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Password reset serves the logged-out recovery page, so no session.
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password" {
		var body struct {
			Email       string `json:"email"`
			NewPassword string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ResetPassword(r.Context(), body.Email, body.NewPassword); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// The websocket endpoint authenticates via query parameter because
	// browsers cannot set headers on a websocket dial.
	if r.Method == http.MethodGet && r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		user, err := s.service.CurrentUser(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/users" {
		users, err := s.service.ListUsers(r.Context())
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" {
		switch parts[1] {
		case "boards":
			s.handleBoards(w, r, session, parts[2:])
			return
		case "lists":
			s.handleLists(w, r, session, parts[2:])
			return
		case "tasks":
			s.handleTasks(w, r, session, parts[2:])
			return
		case "comments":
			if r.Method == http.MethodDelete && len(parts) == 3 {
				if err := s.service.DeleteComment(r.Context(), session.UserID, parts[2]); err != nil {
					s.respondError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"ok": true})
				return
			}
		case "labels":
			s.handleLabels(w, r, session, parts[2:])
			return
		case "activities":
			if r.Method == http.MethodGet && len(parts) == 3 {
				s.handleActivities(w, r, session, parts[2])
				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// ── Auth handlers ──

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body SignUpInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, session, err := s.service.SignUp(r.Context(), body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	payload := sessionPayload(session)
	payload["user"] = user
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, session, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}
	payload := sessionPayload(session)
	payload["user"] = user
	writeJSON(w, http.StatusOK, payload)
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"username":     session.Username,
		"email":        session.Email,
		"expiresAt":    session.ExpiresAt,
	}
}

// ── Websocket ──

func (s *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVER_ERROR", "Realtime not configured", nil)
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	s.hub.ServeWS(w, r, session.UserID, session.Username)
}

// broadcast fans a mutation out to the board's websocket room.
func (s *HTTPServer) broadcast(boardID, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("http: encode %s broadcast: %v", eventType, err)
		return
	}
	s.hub.Broadcast(boardID, realtime.Event{Type: eventType, BoardID: boardID, Payload: raw})
}

// ── Boards ──

func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body struct {
			Name        string  `json:"name"`
			Description *string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		board, err := s.service.CreateBoard(r.Context(), session.UserID, body.Name, body.Description)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, board)

	case len(parts) == 0 && r.Method == http.MethodGet:
		page, err := queryInt(r, "page", 1)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		limit, err := queryInt(r, "limit", 10)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("search"))
		pageResult, err := s.service.ListBoards(r.Context(), session.UserID, query, page, limit)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResult)

	case len(parts) == 1 && r.Method == http.MethodGet:
		view, err := s.service.GetBoardView(r.Context(), session.UserID, parts[0])
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name        string  `json:"name"`
			Description *string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		board, err := s.service.UpdateBoard(r.Context(), session.UserID, parts[0], body.Name, body.Description)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, board)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteBoard(r.Context(), session.UserID, parts[0]); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[1] == "members" && r.Method == http.MethodPost:
		var body struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		member, err := s.service.AddBoardMember(r.Context(), session.UserID, parts[0], body.Email)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, member)

	case len(parts) == 2 && parts[1] == "members" && r.Method == http.MethodGet:
		members, err := s.service.BoardMembers(r.Context(), session.UserID, parts[0])
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ── Lists ──

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body struct {
			BoardID string `json:"boardId"`
			Name    string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		list, err := s.service.CreateList(r.Context(), session.UserID, body.BoardID, body.Name)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(list.BoardID, realtime.EventListCreated, list)
		writeJSON(w, http.StatusCreated, list)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name     *string `json:"name"`
			Position *int    `json:"position"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		list, err := s.service.UpdateList(r.Context(), session.UserID, parts[0], body.Name, body.Position)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(list.BoardID, realtime.EventListUpdated, list)
		writeJSON(w, http.StatusOK, list)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		list, err := s.service.DeleteList(r.Context(), session.UserID, parts[0])
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(list.BoardID, realtime.EventListDeleted, map[string]any{"listId": list.ID})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ── Tasks ──

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body CreateTaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.CreateTask(r.Context(), session.UserID, body)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(task.BoardID, realtime.EventTaskCreated, task)
		writeJSON(w, http.StatusCreated, task)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body UpdateTaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.UpdateTask(r.Context(), session.UserID, parts[0], body)
		if err != nil {
			s.respondError(w, err)
			return
		}
		if body.ListID != nil || body.Position != nil {
			s.broadcast(task.BoardID, realtime.EventTaskMoved, map[string]any{
				"taskId":   task.ID,
				"listId":   task.ListID,
				"position": task.Position,
			})
		} else {
			s.broadcast(task.BoardID, realtime.EventTaskUpdated, task)
		}
		writeJSON(w, http.StatusOK, task)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		task, err := s.service.DeleteTask(r.Context(), session.UserID, parts[0])
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(task.BoardID, realtime.EventTaskDeleted, map[string]any{"taskId": task.ID})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[1] == "assign" && r.Method == http.MethodPost:
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		assigned, boardID, err := s.service.AssignUser(r.Context(), session.UserID, parts[0], body.UserID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(boardID, realtime.EventUserAssigned, map[string]any{
			"taskId": parts[0],
			"user":   assigned,
		})
		writeJSON(w, http.StatusCreated, assigned)

	case len(parts) == 3 && parts[1] == "assign" && r.Method == http.MethodDelete:
		if err := s.service.UnassignUser(r.Context(), session.UserID, parts[0], parts[2]); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[1] == "comments" && r.Method == http.MethodGet:
		comments, err := s.service.TaskComments(r.Context(), session.UserID, parts[0])
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comments)

	case len(parts) == 2 && parts[1] == "comments" && r.Method == http.MethodPost:
		var body struct {
			Comment string `json:"comment"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		comment, boardID, err := s.service.CreateComment(r.Context(), session.UserID, parts[0], body.Comment)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.broadcast(boardID, realtime.EventCommentAdded, comment)
		writeJSON(w, http.StatusCreated, comment)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ── Labels ──

func (s *HTTPServer) handleLabels(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var body struct {
			BoardID string `json:"boardId"`
			Name    string `json:"name"`
			Color   string `json:"color"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		label, err := s.service.CreateLabel(r.Context(), session.UserID, body.BoardID, body.Name, body.Color)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, label)

	case len(parts) == 2 && parts[0] == "board" && r.Method == http.MethodGet:
		labels, err := s.service.BoardLabels(r.Context(), session.UserID, parts[1])
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, labels)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name  *string `json:"name"`
			Color *string `json:"color"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		label, err := s.service.UpdateLabel(r.Context(), session.UserID, parts[0], body.Name, body.Color)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, label)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteLabel(r.Context(), session.UserID, parts[0]); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(parts) == 2 && parts[0] == "task" && r.Method == http.MethodPost:
		var body struct {
			LabelID string `json:"labelId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		taskLabel, err := s.service.AddLabelToTask(r.Context(), session.UserID, parts[1], body.LabelID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, taskLabel)

	case len(parts) == 3 && parts[0] == "task" && r.Method == http.MethodDelete:
		if err := s.service.RemoveLabelFromTask(r.Context(), session.UserID, parts[1], parts[2]); err != nil {
			s.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// ── Activity log ──

func (s *HTTPServer) handleActivities(w http.ResponseWriter, r *http.Request, session Session, boardID string) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	activities, total, err := s.service.Activities(r.Context(), session.UserID, boardID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if activities == nil {
		activities = []store.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activities": activities,
		"total":      total,
		"page":       page,
		"limit":      limit,
	})
}

// ── Plumbing ──

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) respondError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		// A websocket upgrade needs the raw ResponseWriter for hijacking.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return parsed, nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
