package server

import (
	"encoding/json"
	"strconv"
	"time"

	"meme-party/internal/game"
	"meme-party/internal/web"
)

func buildDisplayState(view *game.SessionView, viewerID string, round *game.RoundResults, final *game.FinalResults) web.DisplayState {
	stageTitle, stageStatus := buildDisplayStage(view)
	roundLabel := "--"
	if view.Round > 0 {
		roundLabel = "Round " + strconv.Itoa(view.Round) + " of " + strconv.Itoa(view.TotalRounds)
	}
	phaseEndsAt := ""
	if view.Deadline != nil {
		phaseEndsAt = view.Deadline.UTC().Format(time.RFC3339)
	}
	players := make([]web.DisplayPlayer, 0, len(view.Roster))
	for _, playerID := range view.Roster {
		players = append(players, web.DisplayPlayer{
			ID:       playerID,
			IsHost:   playerID == view.HostID,
			IsViewer: playerID == viewerID,
		})
	}

	state := web.DisplayState{
		SessionID:   view.SessionID,
		ViewerID:    viewerID,
		Status:      string(view.Status),
		PhaseToken:  view.PhaseToken,
		PhaseEndsAt: phaseEndsAt,
		RoundLabel:  roundLabel,
		StageTitle:  stageTitle,
		StageStatus: stageStatus,
		Players:     players,
	}
	switch {
	case view.ActiveSubmission != nil:
		state.Entry = displayEntry(view.ActiveSubmission.Content, "")
	case view.OwnEntry != nil:
		state.Entry = displayEntry(view.OwnEntry.Content, "")
	}
	if final != nil {
		state.ShowScores = true
		state.ShowFinal = true
		for _, player := range final.Players {
			state.Scores = append(state.Scores, web.DisplayScore{Label: player.PlayerID, Score: player.TotalScore})
		}
	} else if round != nil {
		state.ShowScores = true
		for _, entry := range round.Entries {
			state.Scores = append(state.Scores, web.DisplayScore{Label: entry.PlayerID, Score: entry.Score})
		}
		if len(round.Entries) > 0 {
			top := round.Entries[0]
			state.Entry = displayEntry(top.Content, top.PlayerID)
		}
	}
	return state
}

func buildDisplayStage(view *game.SessionView) (string, string) {
	switch view.Status {
	case game.StatusWaiting:
		return "Waiting for players", "Share the session link so everyone can join."
	case game.StatusCreating:
		return "Make your meme", "Pick a template and write your captions."
	case game.StatusVoting:
		status := "Vote on this entry."
		if view.IsOwnSubmission {
			status = "This one is yours. Sit back while the others vote."
		} else if view.HasVoted {
			status = "Vote recorded. Waiting for the others."
		}
		index := 0
		if view.VotingIndex != nil {
			index = *view.VotingIndex
		}
		return "Entry " + strconv.Itoa(index+1) + " of " + strconv.Itoa(view.VotingCount), status
	case game.StatusRoundResults:
		return "Round results", "Top entry of the round."
	case game.StatusFinalResults:
		return "Final results", "Tallying the whole game."
	case game.StatusFinished:
		return "Game complete", "Thanks for playing!"
	}
	return "Waiting for updates", "Loading session status."
}

func displayEntry(content json.RawMessage, playerID string) *web.DisplayEntry {
	entry := &web.DisplayEntry{PlayerID: playerID}
	var shaped game.DefaultEntry
	if err := json.Unmarshal(content, &shaped); err == nil && shaped.Template != "" {
		entry.Template = shaped.Template
		entry.ImageURL = shaped.ImageURL
		entry.Texts = shaped.Texts
		return entry
	}
	entry.Raw = string(content)
	return entry
}
