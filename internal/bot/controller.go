package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/bindbot/internal/domain"
	"github.com/tbourn/bindbot/internal/observability"
	"github.com/tbourn/bindbot/internal/repo"
	"github.com/tbourn/bindbot/internal/services"
)

// Store is the persistence contract the controller depends on.
type Store interface {
	UpsertUser(ctx context.Context, id int64, username, firstName, lastName string) error
	CreateRequest(ctx context.Context, userID int64, server string) (int64, error)
	AttachMessageIDs(ctx context.Context, requestID int64, userMsgID, adminMsgID int) error
	FindRequestByAdminMessageID(ctx context.Context, adminMsgID int) (services.Route, error)
	AppendLog(ctx context.Context, userID int64, action string)

	Stats(ctx context.Context) (repo.Stats, error)
	RecentLogs(ctx context.Context, limit int) ([]domain.LogEntry, error)
	UserIDs(ctx context.Context) ([]int64, error)
}

// Outcome names what a handled event did. Values are bounded and used as
// metric labels.
type Outcome string

const (
	OutcomeStarted        Outcome = "started"
	OutcomeChannel        Outcome = "channel"
	OutcomeServerMenu     Outcome = "server_menu"
	OutcomeMainMenu       Outcome = "main_menu"
	OutcomeRequestCreated Outcome = "request_created"
	OutcomeReplyDelivered Outcome = "reply_delivered"
	OutcomeReplyNotFound  Outcome = "reply_not_found"
	OutcomeReplyRejected  Outcome = "reply_rejected"
	OutcomeStats          Outcome = "stats"
	OutcomeLogs           Outcome = "logs"
	OutcomeBroadcastHint  Outcome = "broadcast_hint"
	OutcomeBroadcastSent  Outcome = "broadcast_sent"
	OutcomeFallback       Outcome = "fallback"
	OutcomeIgnored        Outcome = "ignored"
)

// Result is the per-event outcome returned to the transport loop. Err is set
// when the handler failed; the loop owns the user-visible fallback.
type Result struct {
	Route   string
	Outcome Outcome
	Err     error
}

// Reply is a message the loop should send on the controller's behalf.
type Reply struct {
	ChatID   int64
	Text     string
	Keyboard *Keyboard
}

// Options configures a Controller.
type Options struct {
	AdminID    int64
	ChannelURL string
	Servers    []string

	// Location formats timestamps shown to the operator (default time.Local).
	Location *time.Location
	// Now is the clock (default time.Now).
	Now func() time.Time
	// LogsLimit bounds the operator's log view (default 10).
	LogsLimit int
}

// Controller is the dialog state machine. It holds no per-user state; every
// decision is made from the event, static configuration and the store.
type Controller struct {
	adminID    int64
	channelURL string
	servers    map[string]struct{}
	serverList []string
	loc        *time.Location
	now        func() time.Time
	logsLimit  int
	printer    *message.Printer

	store  Store
	sender Sender
	routes []route
}

// New builds a Controller. Servers are copied; matching is exact.
func New(opts Options, store Store, sender Sender) *Controller {
	c := &Controller{
		adminID:    opts.AdminID,
		channelURL: opts.ChannelURL,
		servers:    make(map[string]struct{}, len(opts.Servers)),
		serverList: append([]string(nil), opts.Servers...),
		loc:        opts.Location,
		now:        opts.Now,
		logsLimit:  opts.LogsLimit,
		printer:    message.NewPrinter(language.Russian),
		store:      store,
		sender:     sender,
	}
	for _, s := range opts.Servers {
		c.servers[s] = struct{}{}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logsLimit <= 0 {
		c.logsLimit = 10
	}
	c.routes = defaultRoutes()
	return c
}

// Routes returns route names in evaluation order.
func (c *Controller) Routes() []string {
	out := make([]string, len(c.routes))
	for i, r := range c.routes {
		out[i] = r.name
	}
	return out
}

// Handle runs the first matching route for ev to completion. It never
// panics; handler failures, panics included, come back in Result.Err.
func (c *Controller) Handle(ctx context.Context, ev Event) (res Result) {
	ctx, span := otel.Tracer("bot/Controller").Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.Int64("chat.id", ev.ChatID),
			attribute.Int64("user.id", ev.SenderID),
			attribute.Int("update.id", ev.UpdateID),
		),
	)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("route", res.Route).
				Msg("handler panic recovered")
			res.Err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
		span.SetAttributes(
			attribute.String("bot.route", res.Route),
			attribute.String("bot.outcome", string(res.Outcome)),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
		observability.ObserveUpdate(res.Route, string(res.Outcome), time.Since(start), res.Err != nil)
	}()

	for _, r := range c.routes {
		if r.match(c, ev) {
			res.Route = r.name
			res.Outcome, res.Err = r.handle(c, ctx, ev)
			return res
		}
	}
	return res
}

// FailureReply maps a handler failure to the message shown in the chat that
// triggered it. End users get the generic notice with the main menu; the
// operator gets the failure text.
func (c *Controller) FailureReply(ev Event, err error) Reply {
	if c.isAdmin(ev.SenderID) {
		return Reply{ChatID: ev.ChatID, Text: operatorFailureText(err)}
	}
	return Reply{ChatID: ev.ChatID, Text: TextTransientError, Keyboard: MainMenu()}
}

func (c *Controller) isAdmin(id int64) bool { return id == c.adminID }

func (c *Controller) isServer(text string) bool {
	_, ok := c.servers[text]
	return ok
}

func (c *Controller) send(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error) {
	id, err := c.sender.Send(ctx, chatID, text, kb)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	return id, nil
}

// menuFor returns the home menu for the sender.
func (c *Controller) menuFor(senderID int64) *Keyboard {
	if c.isAdmin(senderID) {
		return AdminMenu()
	}
	return MainMenu()
}
