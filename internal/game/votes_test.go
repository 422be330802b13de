package game

import (
	"context"
	"testing"
)

func TestSubmissionScoreSumsVotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startGame(t, testConfig(1), "ada", "ben", "cy", "dee")
	h.finalizeAll(t, id, "ada", "ben", "cy", "dee")

	sub := h.activeSubmission(t, id)
	if sub.PlayerID != "ada" {
		t.Fatalf("expected ada's entry first, got %s", sub.PlayerID)
	}
	for voter, value := range map[string]int{"ben": 1, "cy": 1, "dee": -1} {
		if err := h.engine.CastVote(ctx, id, voter, 1, sub.ID, value); err != nil {
			t.Fatalf("vote by %s: %v", voter, err)
		}
	}
	score, err := h.engine.SubmissionScore(ctx, sub.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
}

func TestSelfAndDuplicateVotesRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startGame(t, testConfig(1), "ada", "ben", "cy")
	h.finalizeAll(t, id, "ada", "ben", "cy")
	sub := h.activeSubmission(t, id)

	expectErr(t, h.engine.CastVote(ctx, id, sub.PlayerID, 1, sub.ID, 1), ErrConflict)
	if err := h.engine.CastVote(ctx, id, "ben", 1, sub.ID, 1); err != nil {
		t.Fatalf("vote: %v", err)
	}
	expectErr(t, h.engine.CastVote(ctx, id, "ben", 1, sub.ID, -1), ErrConflict)

	score, err := h.engine.SubmissionScore(ctx, sub.ID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 1 {
		t.Fatalf("expected score 1, got %d", score)
	}
	if got := h.activeSubmission(t, id).ID; got != sub.ID {
		t.Fatalf("expected voting to wait for cy")
	}
}

func TestVoteValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startGame(t, testConfig(1), "ada", "ben", "cy")

	expectErr(t, h.engine.CastVote(ctx, id, "ben", 1, "whatever", 1), ErrValidation)

	h.finalizeAll(t, id, "ada", "ben", "cy")
	sub := h.activeSubmission(t, id)
	session := h.session(t, id)
	other := session.VotingOrder[1]

	expectErr(t, h.engine.CastVote(ctx, id, "ben", 1, sub.ID, 2), ErrValidation)
	expectErr(t, h.engine.CastVote(ctx, id, "ben", 2, sub.ID, 1), ErrValidation)
	expectErr(t, h.engine.CastVote(ctx, id, "ben", 1, other, 1), ErrValidation)
	expectErr(t, h.engine.CastVote(ctx, id, "ben", 1, "missing", 1), ErrNotFound)
	expectErr(t, h.engine.CastVote(ctx, id, "zed", 1, sub.ID, 1), ErrAuthorization)
}

func TestAllVotesAdvanceEarly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startGame(t, testConfig(1), "ada", "ben", "cy")
	h.finalizeAll(t, id, "ada", "ben", "cy")
	before := h.session(t, id)
	sub := h.activeSubmission(t, id)

	if err := h.engine.CastVote(ctx, id, "ben", 1, sub.ID, 1); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := h.engine.CastVote(ctx, id, "cy", 1, sub.ID, 0); err != nil {
		t.Fatalf("vote: %v", err)
	}

	after := h.session(t, id)
	if after.VotingIndex == nil || *after.VotingIndex != 1 {
		t.Fatalf("expected voting index 1, got %v", after.VotingIndex)
	}
	if after.PhaseToken != before.PhaseToken+1 {
		t.Fatalf("expected token %d, got %d", before.PhaseToken+1, after.PhaseToken)
	}
	call, _ := h.scheduler.last()
	if call.token != after.PhaseToken {
		t.Fatalf("expected timer armed for the new token")
	}
}

func TestPlayerTotalScoreAcrossRounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	players := []string{"ada", "ben", "cy", "dee"}
	id := h.startGame(t, testConfig(3), players...)

	rounds := []map[string]int{
		{"ben": 1, "cy": 1, "dee": 0},
		{"ben": -1, "cy": 0, "dee": 0},
		{"ben": 1, "cy": 1, "dee": 1},
	}
	for round, votes := range rounds {
		h.finalizeAll(t, id, players...)
		sub := h.activeSubmission(t, id)
		if sub.PlayerID != "ada" || sub.Round != round+1 {
			t.Fatalf("expected ada's round %d entry, got %+v", round+1, sub)
		}
		for voter, value := range votes {
			if err := h.engine.CastVote(ctx, id, voter, round+1, sub.ID, value); err != nil {
				t.Fatalf("vote: %v", err)
			}
		}
		// ada votes on someone else; that never counts towards her total.
		next := h.activeSubmission(t, id)
		if err := h.engine.CastVote(ctx, id, "ada", round+1, next.ID, 1); err != nil {
			t.Fatalf("vote: %v", err)
		}
		if round < len(rounds)-1 {
			h.forceUntil(t, id, "ada", StatusCreating)
		}
	}

	total, err := h.engine.PlayerTotalScore(ctx, id, "ada")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected total 4, got %d", total)
	}

	h.forceUntil(t, id, "ada", StatusFinalResults)
	stats, err := h.engine.FinalStats(ctx, id, "ben")
	if err != nil {
		t.Fatalf("final stats: %v", err)
	}
	for _, player := range stats.Players {
		if player.PlayerID == "ada" && player.TotalScore != 4 {
			t.Fatalf("expected ada total 4 in final stats, got %d", player.TotalScore)
		}
	}
	if len(stats.Players) != len(players) {
		t.Fatalf("expected every roster member ranked, got %d", len(stats.Players))
	}
}
