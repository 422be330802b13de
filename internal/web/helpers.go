package web

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

func itoa(value int) string {
	return strconv.Itoa(value)
}

func esc(value string) string {
	return templ.EscapeString(value)
}

func signed(value int) string {
	if value > 0 {
		return "+" + itoa(value)
	}
	return itoa(value)
}

func playerLabel(player DisplayPlayer) string {
	var b strings.Builder
	b.WriteString(esc(player.ID))
	if player.IsHost {
		b.WriteString(` <span class="tag">host</span>`)
	}
	if player.IsViewer {
		b.WriteString(` <span class="tag">you</span>`)
	}
	return b.String()
}
