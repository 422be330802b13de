package web

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDisplayBoardEscapesContent(t *testing.T) {
	state := DisplayState{
		SessionID:  "s-1",
		ViewerID:   "bob",
		Status:     "voting",
		RoundLabel: "Round 1 of 3",
		StageTitle: "Entry 1 of 2",
		Entry:      &DisplayEntry{Template: "drake", Texts: []string{`<script>alert(1)</script>`}},
		Players:    []DisplayPlayer{{ID: "alice", IsHost: true}, {ID: "bob", IsViewer: true}},
	}
	var buf bytes.Buffer
	if err := DisplayBoard(state).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	page := buf.String()
	if strings.Contains(page, "<script>alert(1)</script>") {
		t.Fatalf("caption was not escaped")
	}
	if !strings.Contains(page, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Fatalf("expected escaped caption in page")
	}
	if !strings.Contains(page, "Players (2)") {
		t.Fatalf("expected player count")
	}
}

func TestDisplayBoardScores(t *testing.T) {
	state := DisplayState{
		SessionID:  "s-1",
		ViewerID:   "alice",
		ShowScores: true,
		ShowFinal:  true,
		Scores:     []DisplayScore{{Label: "alice", Score: 3}, {Label: "bob", Score: -1}},
	}
	var buf bytes.Buffer
	if err := DisplayBoard(state).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	page := buf.String()
	for _, want := range []string{"Final scores", "<strong>+3</strong>", "<strong>-1</strong>"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}
