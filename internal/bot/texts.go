package bot

import (
	"fmt"
	"strings"
	"time"
)

// Outbound message texts.
const (
	textWelcomeAdmin = "👑 Добро пожаловать в админ-панель!"
	textWelcomeUser  = "🤖 Добро пожаловать в бот для привязки аккаунтов Black Russia!\n\nВыберите действие:"
	textChooseServer = "🎮 Выберите ваш сервер:"
	textMainMenu     = "Выберите действие:"
	textUseMenu      = "Пожалуйста, воспользуйтесь кнопками меню."

	textReplyDelivered = "✅ Сообщение доставлено пользователю"
	textReplyNotFound  = "❌ Не удалось найти заявку"
	textReplyNoText    = "❌ Можно отправить только текстовый ответ"

	textBroadcastUsage = "📢 Чтобы сделать рассылку, отправьте:\n/broadcast <текст сообщения>"
	textNoLogs         = "📋 Логи пусты"

	// TextTransientError is the only failure text end users ever see.
	TextTransientError = "⚠️ Произошла временная ошибка. Пожалуйста, попробуйте позже."

	noUsernamePlaceholder = "нет"
	notificationTimeFmt   = "15:04 02.01.2006"
)

func channelText(url string) string {
	return "📢 Перейдите в наш канал: " + url
}

func serverAckText(server string) string {
	return fmt.Sprintf("✅ Сервер %s найден!\n🔄 Генерируется процесс привязки, ожидайте...", server)
}

func adminNotificationText(username string, userID int64, server string, at time.Time) string {
	name := noUsernamePlaceholder
	if u := strings.TrimSpace(username); u != "" {
		name = u
	}
	name = "@" + name
	return fmt.Sprintf(
		"🔔 Новая заявка на привязку!\n\n"+
			"👤 Пользователь: %s\n"+
			"🆔 ID: %d\n"+
			"🎮 Сервер: %s\n"+
			"🕒 Время: %s\n\n"+
			"💬 Ответьте на это сообщение чтобы отправить ответ пользователю.",
		name, userID, server, at.Format(notificationTimeFmt),
	)
}

func operatorFailureText(err error) string {
	return "❌ Ошибка при обработке: " + err.Error()
}
