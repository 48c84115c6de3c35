package bot

import (
	"strings"
	"testing"
	"time"
)

func TestAdminNotificationText_UsernameRendering(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	cases := map[string]string{
		"alex": "👤 Пользователь: @alex\n",
		"":     "👤 Пользователь: @нет\n",
		"   ":  "👤 Пользователь: @нет\n",
	}
	for in, want := range cases {
		got := adminNotificationText(in, 42, "MOSCOW", at)
		if !strings.Contains(got, want) {
			t.Fatalf("username %q: %q missing %q", in, got, want)
		}
	}
}
