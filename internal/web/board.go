package web

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// DisplayBoard renders the shared game board for one viewer. The page
// reloads itself whenever the websocket reports a new phase.
func DisplayBoard(state DisplayState) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Meme Party</title>
  </head>
  <body>
    <main class="shell" id="board"`)
		b.WriteString(` data-session="` + esc(state.SessionID) + `"`)
		b.WriteString(` data-player="` + esc(state.ViewerID) + `"`)
		b.WriteString(` data-token="` + strconv.FormatInt(state.PhaseToken, 10) + `"`)
		b.WriteString(` data-status="` + esc(state.Status) + `">`)
		b.WriteString(`
      <header class="hero">
        <span class="tag">` + esc(state.RoundLabel) + `</span>
        <h1>` + esc(state.StageTitle) + `</h1>
        <p>` + esc(state.StageStatus) + `</p>`)
		if state.PhaseEndsAt != "" {
			b.WriteString(`
        <p class="timer" data-ends-at="` + esc(state.PhaseEndsAt) + `">Ends at ` + esc(state.PhaseEndsAt) + `</p>`)
		}
		b.WriteString(`
      </header>`)

		if entry := state.Entry; entry != nil {
			writeEntry(&b, entry)
		}

		if state.ShowScores && len(state.Scores) > 0 {
			title := "Round scores"
			if state.ShowFinal {
				title = "Final scores"
			}
			b.WriteString(`
      <section class="panel scores">
        <h2>` + title + `</h2>
        <ol>`)
			for _, score := range state.Scores {
				b.WriteString(`
          <li>` + esc(score.Label) + ` <strong>` + signed(score.Score) + `</strong></li>`)
			}
			b.WriteString(`
        </ol>
      </section>`)
		}

		b.WriteString(`
      <section class="panel players">
        <h2>Players (` + itoa(len(state.Players)) + `)</h2>
        <ul>`)
		for _, player := range state.Players {
			b.WriteString(`
          <li>` + playerLabel(player) + `</li>`)
		}
		b.WriteString(`
        </ul>
      </section>
    </main>
    <script>` + boardScript + `</script>
  </body>
</html>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeEntry(b *strings.Builder, entry *DisplayEntry) {
	b.WriteString(`
      <section class="panel entry">`)
	if entry.Template != "" {
		b.WriteString(`
        <h2>` + esc(entry.Template) + `</h2>`)
	}
	if entry.ImageURL != "" {
		b.WriteString(`
        <img src="` + esc(entry.ImageURL) + `" alt="` + esc(entry.Template) + `"/>`)
	}
	for _, text := range entry.Texts {
		b.WriteString(`
        <p class="caption">` + esc(text) + `</p>`)
	}
	if entry.Raw != "" {
		b.WriteString(`
        <pre>` + esc(entry.Raw) + `</pre>`)
	}
	if entry.PlayerID != "" {
		b.WriteString(`
        <p class="author">by ` + esc(entry.PlayerID) + `</p>`)
	}
	b.WriteString(`
      </section>`)
}

const boardScript = `
      const board = document.getElementById("board");
      const scheme = location.protocol === "https:" ? "wss://" : "ws://";
      const url = scheme + location.host + "/ws/sessions/" + encodeURIComponent(board.dataset.session) +
        "?player_id=" + encodeURIComponent(board.dataset.player);
      const socket = new WebSocket(url);
      socket.addEventListener("message", (event) => {
        const msg = JSON.parse(event.data);
        if (msg.type === "session_closed") {
          socket.close();
          return;
        }
        if (msg.type !== "session" || !msg.view) {
          return;
        }
        if (String(msg.view.phase_token) !== board.dataset.token || msg.view.roster.length !== document.querySelectorAll(".players li").length) {
          location.reload();
        }
      });
    `
