package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/bindbot/internal/observability"
	"github.com/tbourn/bindbot/internal/services"
)

// Route names, in evaluation order.
const (
	RouteCommand       = "command"
	RouteOperatorReply = "operator_reply"
	RouteServer        = "server"
	RouteMenu          = "menu"
	RouteFallback      = "fallback"
)

type handlerFunc func(c *Controller, ctx context.Context, ev Event) (Outcome, error)

type route struct {
	name   string
	match  func(c *Controller, ev Event) bool
	handle handlerFunc
}

// defaultRoutes is the ordered route table. The first match wins; fallback
// always matches.
func defaultRoutes() []route {
	return []route{
		{name: RouteCommand, match: matchCommand, handle: handleCommand},
		{name: RouteOperatorReply, match: matchOperatorReply, handle: handleOperatorReply},
		{name: RouteServer, match: matchServer, handle: handleServer},
		{name: RouteMenu, match: matchMenu, handle: handleMenu},
		{name: RouteFallback, match: func(*Controller, Event) bool { return true }, handle: handleFallback},
	}
}

// ---- commands ----

type commandEntry struct {
	adminOnly bool
	handle    handlerFunc
}

var commands = map[string]commandEntry{
	"start":     {handle: handleStart},
	"restart":   {handle: handleStart},
	"broadcast": {adminOnly: true, handle: handleBroadcast},
}

func lookupCommand(c *Controller, ev Event) (commandEntry, bool) {
	if ev.Command == "" {
		return commandEntry{}, false
	}
	entry, ok := commands[strings.ToLower(ev.Command)]
	if !ok || (entry.adminOnly && !c.isAdmin(ev.SenderID)) {
		return commandEntry{}, false
	}
	return entry, true
}

func matchCommand(c *Controller, ev Event) bool {
	_, ok := lookupCommand(c, ev)
	return ok
}

func handleCommand(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	entry, _ := lookupCommand(c, ev)
	return entry.handle(c, ctx, ev)
}

func handleStart(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	if err := c.store.UpsertUser(ctx, ev.SenderID, ev.Username, ev.FirstName, ev.LastName); err != nil {
		return "", fmt.Errorf("register user %d: %w", ev.SenderID, err)
	}
	c.store.AppendLog(ctx, ev.SenderID, "start_command")

	text, kb := textWelcomeUser, MainMenu()
	if c.isAdmin(ev.SenderID) {
		text, kb = textWelcomeAdmin, AdminMenu()
	}
	if _, err := c.send(ctx, ev.ChatID, text, kb); err != nil {
		return "", err
	}
	return OutcomeStarted, nil
}

func handleBroadcast(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	body := strings.TrimSpace(ev.CommandArgs)
	if body == "" {
		if _, err := c.send(ctx, ev.ChatID, textBroadcastUsage, AdminMenu()); err != nil {
			return "", err
		}
		return OutcomeBroadcastHint, nil
	}

	ids, err := c.store.UserIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("list recipients: %w", err)
	}

	var delivered, failed int
	for _, id := range ids {
		if c.isAdmin(id) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, err := c.sender.Send(ctx, id, body, nil); err != nil {
			failed++
			zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", id).Msg("broadcast delivery failed")
			continue
		}
		delivered++
	}
	c.store.AppendLog(ctx, ev.SenderID, fmt.Sprintf("broadcast:%d", delivered))

	report := c.printer.Sprintf("📢 Рассылка завершена\n✅ Доставлено: %d\n❌ Ошибок: %d", delivered, failed)
	if _, err := c.send(ctx, ev.ChatID, report, AdminMenu()); err != nil {
		return "", err
	}
	return OutcomeBroadcastSent, nil
}

// ---- operator reply ----

func matchOperatorReply(c *Controller, ev Event) bool {
	return ev.IsReply() && c.isAdmin(ev.SenderID)
}

func handleOperatorReply(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	rt, err := c.store.FindRequestByAdminMessageID(ctx, ev.ReplyToMessageID)
	if errors.Is(err, services.ErrRequestNotFound) {
		if _, err := c.send(ctx, ev.ChatID, textReplyNotFound, nil); err != nil {
			return "", err
		}
		return OutcomeReplyNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("route reply to %d: %w", ev.ReplyToMessageID, err)
	}

	if strings.TrimSpace(ev.Text) == "" {
		if _, err := c.send(ctx, ev.ChatID, textReplyNoText, nil); err != nil {
			return "", err
		}
		return OutcomeReplyRejected, nil
	}

	if _, err := c.send(ctx, rt.UserID, ev.Text, nil); err != nil {
		return "", err
	}
	if _, err := c.send(ctx, ev.ChatID, textReplyDelivered, nil); err != nil {
		return "", err
	}
	c.store.AppendLog(ctx, ev.SenderID, fmt.Sprintf("admin_reply_sent:%d", rt.UserID))
	return OutcomeReplyDelivered, nil
}

// ---- server selection ----

func matchServer(c *Controller, ev Event) bool {
	return c.isServer(ev.Text)
}

// handleServer records the choice, creates the request, acknowledges the user
// and notifies the operator. Message ids are attached only when both sends
// succeeded, so a request is either fully correlated or not at all.
func handleServer(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	server := ev.Text
	c.store.AppendLog(ctx, ev.SenderID, "server_selected:"+server)

	reqID, err := c.store.CreateRequest(ctx, ev.SenderID, server)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	observability.ObserveBindingCreated()

	userMsgID, err := c.send(ctx, ev.ChatID, serverAckText(server), MainMenu())
	if err != nil {
		return "", err
	}
	note := adminNotificationText(ev.Username, ev.SenderID, server, c.now().In(c.loc))
	adminMsgID, err := c.send(ctx, c.adminID, note, nil)
	if err != nil {
		return "", err
	}

	if err := c.store.AttachMessageIDs(ctx, reqID, userMsgID, adminMsgID); err != nil {
		return "", fmt.Errorf("correlate request %d: %w", reqID, err)
	}
	return OutcomeRequestCreated, nil
}

// ---- menu labels ----

type menuEntry struct {
	adminOnly bool
	handle    handlerFunc
}

var menu = map[string]menuEntry{
	LabelBind:      {handle: handleBind},
	LabelChannel:   {handle: handleChannel},
	LabelBack:      {handle: handleBack},
	LabelStats:     {adminOnly: true, handle: handleStats},
	LabelBroadcast: {adminOnly: true, handle: handleBroadcastHint},
	LabelLogs:      {adminOnly: true, handle: handleLogs},
	LabelMainMenu:  {adminOnly: true, handle: handleBack},
}

func lookupMenu(c *Controller, ev Event) (menuEntry, bool) {
	entry, ok := menu[ev.Text]
	if !ok || (entry.adminOnly && !c.isAdmin(ev.SenderID)) {
		return menuEntry{}, false
	}
	return entry, true
}

func matchMenu(c *Controller, ev Event) bool {
	_, ok := lookupMenu(c, ev)
	return ok
}

func handleMenu(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	entry, _ := lookupMenu(c, ev)
	return entry.handle(c, ctx, ev)
}

func handleBind(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	c.store.AppendLog(ctx, ev.SenderID, "bind_click")
	if _, err := c.send(ctx, ev.ChatID, textChooseServer, ServersMenu(c.serverList)); err != nil {
		return "", err
	}
	return OutcomeServerMenu, nil
}

func handleChannel(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	c.store.AppendLog(ctx, ev.SenderID, "channel_click")
	if _, err := c.send(ctx, ev.ChatID, channelText(c.channelURL), MainMenu()); err != nil {
		return "", err
	}
	return OutcomeChannel, nil
}

func handleBack(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	if _, err := c.send(ctx, ev.ChatID, textMainMenu, MainMenu()); err != nil {
		return "", err
	}
	return OutcomeMainMenu, nil
}

func handleStats(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	st, err := c.store.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("collect stats: %w", err)
	}
	text := c.printer.Sprintf(
		"📊 Статистика бота:\n\n👥 Пользователей: %d\n🔗 Заявок на привязку: %d\n⏳ Ожидают ответа: %d\n📋 Записей в логах: %d",
		st.Users, st.Bindings, st.Pending, st.Logs,
	)
	if _, err := c.send(ctx, ev.ChatID, text, AdminMenu()); err != nil {
		return "", err
	}
	return OutcomeStats, nil
}

func handleBroadcastHint(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	if _, err := c.send(ctx, ev.ChatID, textBroadcastUsage, AdminMenu()); err != nil {
		return "", err
	}
	return OutcomeBroadcastHint, nil
}

func handleLogs(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	entries, err := c.store.RecentLogs(ctx, c.logsLimit)
	if err != nil {
		return "", fmt.Errorf("recent logs: %w", err)
	}
	text := textNoLogs
	if len(entries) > 0 {
		var b strings.Builder
		b.WriteString("📋 Последние действия:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "\n%s | %d | %s", e.Timestamp.In(c.loc).Format("02.01 15:04"), e.UserID, e.Action)
		}
		text = b.String()
	}
	if _, err := c.send(ctx, ev.ChatID, text, AdminMenu()); err != nil {
		return "", err
	}
	return OutcomeLogs, nil
}

// ---- fallback ----

func handleFallback(c *Controller, ctx context.Context, ev Event) (Outcome, error) {
	if ev.Command == "" && strings.TrimSpace(ev.Text) == "" {
		return OutcomeIgnored, nil
	}
	if _, err := c.send(ctx, ev.ChatID, textUseMenu, c.menuFor(ev.SenderID)); err != nil {
		return "", err
	}
	return OutcomeFallback, nil
}
