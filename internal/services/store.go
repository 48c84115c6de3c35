// Package services – Store
//
// This file implements Store, the persistence facade behind the dialog
// controller. It owns users, bindings (requests), the audit log and the error
// journal, and exposes the correlation lookup that routes an operator reply
// back to the requesting user.
//
// Every write is committed before the method returns. Audit-log and
// error-journal writes never fail the caller: problems are logged and
// swallowed.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// user/binding identifiers where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/bindbot/internal/domain"
	"github.com/tbourn/bindbot/internal/repo"
)

// Route is the correlation record resolved from an admin message id.
type Route struct {
	BindingID     int64
	UserID        int64
	UserMessageID int // 0 when the acknowledgement id is unknown
}

// Store coordinates persistence for the bot. It is safe for concurrent use
// to the extent *gorm.DB is.
type Store struct {
	DB *gorm.DB

	// UpdateTTL is how long a processed update id is remembered.
	UpdateTTL time.Duration
	now       func() time.Time
	claims    atomic.Int64
}

// DefaultUpdateTTL outlives the transport's own redelivery window (24h).
const DefaultUpdateTTL = 48 * time.Hour

// pruneEvery is how many claims pass between sweeps of expired update ids.
const pruneEvery = 500

// NewStore constructs a Store bound to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, UpdateTTL: DefaultUpdateTTL, now: time.Now}
}

func (s *Store) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/Store").Start(ctx, name, trace.WithAttributes(attrs...))
}

// UpsertUser inserts or replaces the profile for id.
func (s *Store) UpsertUser(ctx context.Context, id int64, username, firstName, lastName string) error {
	ctx, span := s.span(ctx, "UpsertUser", attribute.Int64("user.id", id))
	defer span.End()

	if _, err := repo.UpsertUser(ctx, s.DB, id, username, firstName, lastName); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// CreateRequest inserts a pending binding and returns its id.
func (s *Store) CreateRequest(ctx context.Context, userID int64, server string) (int64, error) {
	ctx, span := s.span(ctx, "CreateRequest",
		attribute.Int64("user.id", userID),
		attribute.String("server", server),
	)
	defer span.End()

	if strings.TrimSpace(server) == "" {
		return 0, ErrInvalidServer
	}
	b, err := repo.CreateBinding(ctx, s.DB, userID, server)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("binding.id", b.ID))
	return b.ID, nil
}

// AttachMessageIDs correlates binding requestID with the acknowledgement
// sent to the user and the notification sent to the operator.
func (s *Store) AttachMessageIDs(ctx context.Context, requestID int64, userMsgID, adminMsgID int) error {
	ctx, span := s.span(ctx, "AttachMessageIDs",
		attribute.Int64("binding.id", requestID),
		attribute.Int("message.user", userMsgID),
		attribute.Int("message.admin", adminMsgID),
	)
	defer span.End()

	err := repo.AttachMessageIDs(ctx, s.DB, requestID, userMsgID, adminMsgID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		err = ErrBindingNotFound
	case errors.Is(err, repo.ErrAlreadyAttached):
		err = ErrAlreadyAttached
	case errors.Is(err, repo.ErrDuplicate):
		err = ErrAdminMessageTaken
	}
	span.SetStatus(codes.Error, err.Error())
	return err
}

// FindRequestByAdminMessageID resolves the user behind an operator
// notification. A miss returns ErrRequestNotFound.
func (s *Store) FindRequestByAdminMessageID(ctx context.Context, adminMsgID int) (Route, error) {
	ctx, span := s.span(ctx, "FindRequestByAdminMessageID", attribute.Int("message.admin", adminMsgID))
	defer span.End()

	b, err := repo.FindBindingByAdminMessageID(ctx, s.DB, adminMsgID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Route{}, ErrRequestNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		return Route{}, err
	}
	r := Route{BindingID: b.ID, UserID: b.UserID}
	if b.UserMessageID != nil {
		r.UserMessageID = *b.UserMessageID
	}
	return r, nil
}

// AppendLog records an audit action. Failures are logged and swallowed.
func (s *Store) AppendLog(ctx context.Context, userID int64, action string) {
	ctx, span := s.span(ctx, "AppendLog",
		attribute.Int64("user.id", userID),
		attribute.String("action", action),
	)
	defer span.End()

	if err := repo.AppendLog(ctx, s.DB, userID, action); err != nil {
		span.SetStatus(codes.Error, err.Error())
		zerolog.Ctx(ctx).Error().Err(err).
			Int64("user_id", userID).
			Str("action", action).
			Msg("audit log write failed")
	}
}

// RecordError appends text to the error journal. Failures are logged and
// swallowed.
func (s *Store) RecordError(ctx context.Context, text string) {
	ctx, span := s.span(ctx, "RecordError")
	defer span.End()

	if err := repo.RecordError(ctx, s.DB, text); err != nil {
		span.SetStatus(codes.Error, err.Error())
		zerolog.Ctx(ctx).Error().Err(err).Str("error_text", text).Msg("error journal write failed")
	}
}

// Stats returns table counters.
func (s *Store) Stats(ctx context.Context) (repo.Stats, error) {
	ctx, span := s.span(ctx, "Stats")
	defer span.End()
	return repo.CollectStats(ctx, s.DB)
}

// RecentLogs returns up to limit audit records, newest first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	ctx, span := s.span(ctx, "RecentLogs", attribute.Int("limit", limit))
	defer span.End()
	return repo.ListRecentLogs(ctx, s.DB, limit)
}

// RecentBindings returns up to limit bindings, newest first.
func (s *Store) RecentBindings(ctx context.Context, limit int) ([]domain.Binding, error) {
	ctx, span := s.span(ctx, "RecentBindings", attribute.Int("limit", limit))
	defer span.End()
	return repo.ListRecentBindings(ctx, s.DB, limit)
}

// Binding returns binding id, or ErrBindingNotFound.
func (s *Store) Binding(ctx context.Context, id int64) (*domain.Binding, error) {
	ctx, span := s.span(ctx, "Binding", attribute.Int64("binding.id", id))
	defer span.End()

	b, err := repo.GetBinding(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBindingNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return b, nil
}

// User returns the profile stored for id, or ErrUserNotFound.
func (s *Store) User(ctx context.Context, id int64) (*domain.User, error) {
	ctx, span := s.span(ctx, "User", attribute.Int64("user.id", id))
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return u, nil
}

// UserIDs returns every stored user id.
func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	ctx, span := s.span(ctx, "UserIDs")
	defer span.End()
	return repo.ListUserIDs(ctx, s.DB)
}

// ClaimUpdate marks updateID as processed. It reports false when the id was
// already claimed, meaning the transport redelivered an update that has been
// handled before.
func (s *Store) ClaimUpdate(ctx context.Context, updateID int, chatID int64) (bool, error) {
	ctx, span := s.span(ctx, "ClaimUpdate", attribute.Int("update.id", updateID))
	defer span.End()

	now := time.Now().UTC()
	if s.now != nil {
		now = s.now().UTC()
	}
	ttl := s.UpdateTTL
	if ttl <= 0 {
		ttl = DefaultUpdateTTL
	}
	err := repo.ClaimUpdate(ctx, s.DB, int64(updateID), chatID, now, ttl)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return false, nil
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	if s.claims.Add(1)%pruneEvery == 0 {
		if n, err := repo.PruneUpdates(ctx, s.DB, now); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("prune processed updates failed")
		} else if n > 0 {
			zerolog.Ctx(ctx).Debug().Int64("pruned", n).Msg("expired update ids pruned")
		}
	}
	return true, nil
}
