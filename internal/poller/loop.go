// Package poller runs the long-poll receive loop: it pulls updates from the
// chat transport, hands each one to the dialog controller synchronously and
// restarts after failures until a consecutive-failure bound is reached.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/bindbot/internal/bot"
	"github.com/tbourn/bindbot/internal/observability"
)

// Receiver long-polls the transport. It returns the updates received and the
// offset to resume from.
type Receiver interface {
	Poll(ctx context.Context, offset int, timeout time.Duration) ([]bot.Event, int, error)
}

// Dispatcher handles one event to completion and maps its failures to a
// user-visible reply.
type Dispatcher interface {
	Handle(ctx context.Context, ev bot.Event) bot.Result
	FailureReply(ev bot.Event, err error) bot.Reply
}

// Journal persists unexpected handler failures.
type Journal interface {
	RecordError(ctx context.Context, text string)
}

// Deduper claims update ids so a redelivered update is handled only once.
// ClaimUpdate reports false for an id that was already claimed.
type Deduper interface {
	ClaimUpdate(ctx context.Context, updateID int, chatID int64) (bool, error)
}

// Config bounds the retry behavior.
type Config struct {
	MaxRestarts       int
	NetworkRetryDelay time.Duration
	ErrorRetryDelay   time.Duration
	PollTimeout       time.Duration
}

// Option customizes a Loop.
type Option func(*Loop)

// WithSleep replaces the context-aware sleep used between restarts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.sleep = fn }
}

// WithLogger sets the base logger (default: global zerolog logger).
func WithLogger(lg zerolog.Logger) Option {
	return func(l *Loop) { l.log = lg }
}

// WithDeduper skips updates that d has already seen. A claim error is logged
// and the update is handled anyway.
func WithDeduper(d Deduper) Option {
	return func(l *Loop) { l.dedup = d }
}

// Loop is the receive loop. It is not safe for concurrent Run calls.
type Loop struct {
	cfg     Config
	recv    Receiver
	disp    Dispatcher
	send    bot.Sender
	journal Journal
	dedup   Deduper
	sleep   func(ctx context.Context, d time.Duration) error
	log     zerolog.Logger

	offset int
}

// New builds a Loop. MaxRestarts below 1 is treated as 1.
func New(cfg Config, recv Receiver, disp Dispatcher, send bot.Sender, journal Journal, opts ...Option) *Loop {
	if cfg.MaxRestarts < 1 {
		cfg.MaxRestarts = 1
	}
	l := &Loop{
		cfg:     cfg,
		recv:    recv,
		disp:    disp,
		send:    send,
		journal: journal,
		sleep:   sleepCtx,
		log:     log.Logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Offset returns the next update offset the loop will request.
func (l *Loop) Offset() int { return l.offset }

// Run polls until ctx is cancelled or MaxRestarts consecutive polls fail.
// A successful poll resets the failure count. Cancellation returns ctx.Err();
// exhausting the bound returns ErrMaxRestarts after logging a terminal line.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Int("max_restarts", l.cfg.MaxRestarts).
		Dur("poll_timeout", l.cfg.PollTimeout).
		Msg("bot started")

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := l.pollOnce(ctx)
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		kind, delay := "other", l.cfg.ErrorRetryDelay
		if IsNetworkError(err) {
			kind, delay = "network", l.cfg.NetworkRetryDelay
		}
		observability.ObserveRestart(kind)

		if failures >= l.cfg.MaxRestarts {
			l.log.Error().Err(err).
				Str("kind", kind).
				Int("restarts", failures).
				Msg("bot stopped: max restarts reached")
			return ErrMaxRestarts
		}

		l.log.Warn().Err(err).
			Str("kind", kind).
			Int("attempt", failures).
			Int("max_restarts", l.cfg.MaxRestarts).
			Dur("retry_in", delay).
			Msg("polling failed, restarting")
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// pollOnce runs one receive cycle and dispatches its updates in order. The
// offset advances past each update once it has been handled.
func (l *Loop) pollOnce(ctx context.Context) error {
	events, next, err := l.recv.Poll(ctx, l.offset, l.cfg.PollTimeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.dispatch(ctx, ev)
		if ev.UpdateID >= l.offset {
			l.offset = ev.UpdateID + 1
		}
	}
	if next > l.offset {
		l.offset = next
	}
	return nil
}

// dispatch handles one event. Handler failures are logged, journaled and
// answered via the dispatcher's failure reply; they never reach Run.
func (l *Loop) dispatch(ctx context.Context, ev bot.Event) {
	lg := l.log.With().
		Str("event_id", uuid.NewString()).
		Int("update_id", ev.UpdateID).
		Int64("chat_id", ev.ChatID).
		Int64("user_id", ev.SenderID).
		Logger()
	// Handlers run to completion even if shutdown starts mid-event.
	hctx := lg.WithContext(context.WithoutCancel(ctx))

	if l.dedup != nil {
		fresh, err := l.dedup.ClaimUpdate(hctx, ev.UpdateID, ev.ChatID)
		if err != nil {
			lg.Warn().Err(err).Msg("update claim failed")
		} else if !fresh {
			lg.Info().Msg("redelivered update skipped")
			return
		}
	}

	res := l.disp.Handle(hctx, ev)
	if res.Err == nil {
		lg.Debug().Str("route", res.Route).Str("outcome", string(res.Outcome)).Msg("update handled")
		return
	}

	lg.Error().Err(res.Err).Str("route", res.Route).Msg("update handling failed")
	l.journal.RecordError(hctx, fmt.Sprintf("update %d chat %d route %s: %v", ev.UpdateID, ev.ChatID, res.Route, res.Err))

	r := l.disp.FailureReply(ev, res.Err)
	if r.Text == "" || r.ChatID == 0 {
		return
	}
	if _, err := l.send.Send(hctx, r.ChatID, r.Text, r.Keyboard); err != nil {
		lg.Warn().Err(err).Msg("failure notice not delivered")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
