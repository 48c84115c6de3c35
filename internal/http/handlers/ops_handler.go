package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bindbot/internal/domain"
	"github.com/tbourn/bindbot/internal/http/middleware"
	"github.com/tbourn/bindbot/internal/repo"
	"github.com/tbourn/bindbot/internal/services"
	"github.com/tbourn/bindbot/internal/utils"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Store is the read side of the bot store used by the ops API.
type Store interface {
	Stats(ctx context.Context) (repo.Stats, error)
	RecentBindings(ctx context.Context, limit int) ([]domain.Binding, error)
	RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error)
	Binding(ctx context.Context, id int64) (*domain.Binding, error)
	User(ctx context.Context, id int64) (*domain.User, error)
}

// Handlers serves the ops endpoints.
type Handlers struct {
	store Store
}

// New binds Handlers to store.
func New(store Store) *Handlers {
	return &Handlers{store: store}
}

// BindingDTO is one binding request as exposed by the API.
type BindingDTO struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Server         string    `json:"server"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	AdminMessageID *int      `json:"admin_message_id"`
	UserMessageID  *int      `json:"user_message_id"`
}

// UserDTO is a stored user profile.
type UserDTO struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// LogDTO is one audit log entry.
type LogDTO struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type bindingsResponse struct {
	Bindings []BindingDTO `json:"bindings"`
}

type logsResponse struct {
	Logs []LogDTO `json:"logs"`
}

// limitParam reads ?limit, defaulting to 20 and capping at 100. Values that
// are not integers are rejected.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n := utils.AtoiDefault(raw, -1)
	if n < 1 {
		return 0, false
	}
	return utils.Clamp(n, 1, maxLimit), true
}

// idParam parses the :id path segment as a positive int64.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func toBindingDTO(b domain.Binding) BindingDTO {
	return BindingDTO{
		ID:             b.ID,
		UserID:         b.UserID,
		Server:         b.Server,
		Status:         b.Status,
		CreatedAt:      b.CreatedAt.UTC(),
		AdminMessageID: b.AdminMessageID,
		UserMessageID:  b.UserMessageID,
	}
}

// Stats godoc
// @ID          getStats
// @Summary     Bot counters
// @Description Returns the number of users, bindings (total and pending) and audit log entries.
// @Tags        Ops
// @Produce     json
//
// @Success     200  {object}  repo.Stats
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("collect stats")
		Fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not collect stats")
		return
	}
	c.JSON(http.StatusOK, st)
}

// ListBindings godoc
// @ID          listBindings
// @Summary     Latest binding requests
// @Description Returns binding requests newest first. Unanswered requests carry a null admin_message_id until the operator was notified.
// @Tags        Bindings
// @Produce     json
//
// @Param       limit  query  int  false  "Max items"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.bindingsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /bindings [get]
func (h *Handlers) ListBindings(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
		return
	}
	rows, err := h.store.RecentBindings(c.Request.Context(), limit)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("list bindings")
		Fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list bindings")
		return
	}
	out := make([]BindingDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBindingDTO(b))
	}
	c.JSON(http.StatusOK, bindingsResponse{Bindings: out})
}

// GetBinding godoc
// @ID          getBinding
// @Summary     Get one binding request
// @Tags        Bindings
// @Produce     json
//
// @Param       id  path  int  true  "Binding ID"  minimum(1)
//
// @Success     200  {object}  handlers.BindingDTO
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Binding not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /bindings/{id} [get]
func (h *Handlers) GetBinding(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	b, err := h.store.Binding(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrBindingNotFound):
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "binding not found")
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Int64("binding_id", id).Msg("get binding")
		Fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, "could not load binding")
		return
	}
	c.JSON(http.StatusOK, toBindingDTO(*b))
}

// GetUser godoc
// @ID          getUser
// @Summary     Get one user
// @Description Returns the latest profile stored for a Telegram user id.
// @Tags        Users
// @Produce     json
//
// @Param       id  path  int  true  "Telegram user ID"  minimum(1)
//
// @Success     200  {object}  handlers.UserDTO
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}
	u, err := h.store.User(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Int64("user_id", id).Msg("get user")
		Fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, "could not load user")
		return
	}
	c.JSON(http.StatusOK, UserDTO{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		RegisteredAt: u.RegisteredAt.UTC(),
	})
}

// ListLogs godoc
// @ID          listLogs
// @Summary     Latest audit log entries
// @Tags        Logs
// @Produce     json
//
// @Param       limit  query  int  false  "Max items"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.logsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /logs [get]
func (h *Handlers) ListLogs(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
		return
	}
	rows, err := h.store.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("list logs")
		Fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list logs")
		return
	}
	out := make([]LogDTO, 0, len(rows))
	for _, e := range rows {
		out = append(out, LogDTO{ID: e.ID, UserID: e.UserID, Action: e.Action, Timestamp: e.Timestamp.UTC()})
	}
	c.JSON(http.StatusOK, logsResponse{Logs: out})
}
