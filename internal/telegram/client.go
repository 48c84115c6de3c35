// Package telegram adapts the Telegram Bot API to the bot package: it turns
// long-poll updates into bot.Event values and renders outbound messages with
// reply keyboards. Outbound sends share one token-bucket limiter.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/bindbot/internal/bot"
	"github.com/tbourn/bindbot/internal/observability"
)

// Options configures a Client.
type Options struct {
	Token string
	// Endpoint is a Bot API URL format with two %s verbs (token, method).
	// Empty means tgbotapi.APIEndpoint.
	Endpoint    string
	PollTimeout time.Duration
	SendRPS     float64
	SendBurst   int
	// HTTPClient overrides the transport. Its Timeout should exceed PollTimeout.
	HTTPClient *http.Client
}

// Client is a bot.Sender and a long-poll receiver.
type Client struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// ctxDoer binds getUpdates requests to ctx so shutdown aborts an in-flight
// long poll. Other methods keep the request's own context: a handler that
// already started must be able to finish its sends. tgbotapi offers no
// per-call context.
type ctxDoer struct {
	ctx context.Context
	hc  *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/getUpdates") {
		req = req.WithContext(d.ctx)
	}
	return d.hc.Do(req)
}

// New authenticates against the Bot API (getMe) and returns a Client whose
// long polls are cancelled when ctx is.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram: empty token")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.PollTimeout + 15*time.Second}
	}
	rps, burst := opts.SendRPS, opts.SendBurst
	if rps <= 0 {
		rps = 25
	}
	if burst < 1 {
		burst = 1
	}

	_ = tgbotapi.SetLogger(botLogger{})
	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, ctxDoer{ctx: ctx, hc: hc})
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("telegram authorized")

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Username returns the bot's own username.
func (c *Client) Username() string { return c.api.Self.UserName }

// Send delivers text to chatID and returns the Telegram message id. A 429
// with retry_after is retried once after the advised delay.
func (c *Client) Send(ctx context.Context, chatID int64, text string, kb *bot.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = renderKeyboard(kb)
	}

	id, err := c.send(ctx, msg)
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		wait := time.Duration(apiErr.RetryAfter) * time.Second
		log.Ctx(ctx).Warn().Int64("chat_id", chatID).Dur("retry_after", wait).Msg("telegram flood control")
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
		id, err = c.send(ctx, msg)
	}
	observability.ObserveSend(err)
	return id, err
}

func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	out, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return out.MessageID, nil
}

// Poll performs one getUpdates long poll starting at offset. It returns the
// message events received and the next offset; updates that carry no user
// message still advance the offset.
func (c *Client) Poll(ctx context.Context, offset int, timeout time.Duration) ([]bot.Event, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, offset, err
	}
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(timeout / time.Second)
	cfg.AllowedUpdates = []string{"message"}

	updates, err := c.api.GetUpdates(cfg)
	if err != nil {
		return nil, offset, fmt.Errorf("telegram: getUpdates: %w", err)
	}

	next := offset
	events := make([]bot.Event, 0, len(updates))
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
		if ev, ok := toEvent(u); ok {
			events = append(events, ev)
		}
	}
	return events, next, nil
}

// toEvent converts a message update. Non-message updates and messages without
// a sender are dropped.
func toEvent(u tgbotapi.Update) (bot.Event, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{
		UpdateID:  u.UpdateID,
		MessageID: m.MessageID,
		ChatID:    m.Chat.ID,
		SenderID:  m.From.ID,
		Username:  m.From.UserName,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
		Text:      m.Text,
	}
	if m.IsCommand() {
		ev.Command = m.Command()
		ev.CommandArgs = strings.TrimSpace(m.CommandArguments())
	}
	if m.ReplyToMessage != nil {
		ev.ReplyToMessageID = m.ReplyToMessage.MessageID
	}
	return ev, true
}

func renderKeyboard(kb *bot.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, label := range r {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// botLogger routes tgbotapi's internal logging into zerolog at debug level.
type botLogger struct{}

func (botLogger) Println(v ...interface{}) {
	log.Debug().Str("component", "tgbotapi").Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (botLogger) Printf(format string, v ...interface{}) {
	log.Debug().Str("component", "tgbotapi").Msgf(format, v...)
}
