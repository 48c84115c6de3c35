package bot

// Menu labels. Matching against inbound text is exact.
const (
	LabelBind    = "🔗 Привязать аккаунт"
	LabelChannel = "📢 Наш канал"
	LabelBack    = "⬅️ Назад"

	LabelStats     = "📊 Статистика"
	LabelBroadcast = "📢 Рассылка"
	LabelLogs      = "📋 Логи"
	LabelMainMenu  = "⬅️ Главное меню"
)

const serversPerRow = 4

// MainMenu is shown to end users.
func MainMenu() *Keyboard {
	return &Keyboard{Rows: [][]string{{LabelBind, LabelChannel}}}
}

// AdminMenu is shown to the operator.
func AdminMenu() *Keyboard {
	return &Keyboard{Rows: [][]string{
		{LabelStats, LabelBroadcast},
		{LabelLogs, LabelMainMenu},
	}}
}

// ServersMenu lays servers out four per row followed by a back button.
func ServersMenu(servers []string) *Keyboard {
	rows := make([][]string, 0, len(servers)/serversPerRow+2)
	for i := 0; i < len(servers); i += serversPerRow {
		end := i + serversPerRow
		if end > len(servers) {
			end = len(servers)
		}
		row := make([]string, end-i)
		copy(row, servers[i:end])
		rows = append(rows, row)
	}
	rows = append(rows, []string{LabelBack})
	return &Keyboard{Rows: rows}
}
