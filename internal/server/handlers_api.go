package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type createSessionRequest struct {
	Rounds              *int `json:"rounds" binding:"omitempty,min=1,max=10"`
	CreationSeconds     *int `json:"creation_seconds" binding:"omitempty,min=1,max=3600"`
	VoteSeconds         *int `json:"vote_seconds" binding:"omitempty,min=1,max=3600"`
	ResultsSeconds      *int `json:"results_seconds" binding:"omitempty,min=1,max=3600"`
	FinalResultsSeconds *int `json:"final_results_seconds" binding:"omitempty,min=1,max=3600"`
}

type sessionURI struct {
	ID string `uri:"id" binding:"required,entityid"`
}

type roundURI struct {
	ID    string `uri:"id" binding:"required,entityid"`
	Round int    `uri:"round" binding:"required,min=1"`
}

type entryRequest struct {
	Content json.RawMessage `json:"content" binding:"required"`
}

type voteRequest struct {
	SubmissionID string `json:"submission_id" binding:"required,entityid"`
	Value        *int   `json:"value" binding:"required,min=-1,max=1"`
}

var createSessionMessages = bindMessages{
	"rounds":                {"min": "rounds must be between 1 and 10", "max": "rounds must be between 1 and 10"},
	"creation_seconds":      {"max": "creation_seconds must be at most one hour"},
	"vote_seconds":          {"max": "vote_seconds must be at most one hour"},
	"results_seconds":       {"max": "results_seconds must be at most one hour"},
	"final_results_seconds": {"max": "final_results_seconds must be at most one hour"},
}

var voteMessages = bindMessages{
	"value": {"min": "value must be -1, 0 or 1", "max": "value must be -1, 0 or 1"},
}

func (s *Server) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": s.engine.Templates()})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, createSessionMessages) {
		return
	}
	cfg := s.defaults
	if req.Rounds != nil {
		cfg.RoundCount = *req.Rounds
	}
	if req.CreationSeconds != nil {
		cfg.CreationDuration = seconds(*req.CreationSeconds)
	}
	if req.VoteSeconds != nil {
		cfg.VoteDurationPerEntry = seconds(*req.VoteSeconds)
	}
	if req.ResultsSeconds != nil {
		cfg.ResultsDuration = seconds(*req.ResultsSeconds)
	}
	if req.FinalResultsSeconds != nil {
		cfg.FinalResultsDuration = seconds(*req.FinalResultsSeconds)
	}

	id, err := s.engine.CreateSession(c.Request.Context(), currentPlayer(c), cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (s *Server) handleSessionView(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	s.respondView(c, uri.ID)
}

func (s *Server) handleJoin(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.JoinSession(c.Request.Context(), uri.ID, currentPlayer(c)); err != nil {
		writeError(c, err)
		return
	}
	s.respondView(c, uri.ID)
}

func (s *Server) handleStart(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.StartSession(c.Request.Context(), uri.ID, currentPlayer(c)); err != nil {
		writeError(c, err)
		return
	}
	s.respondView(c, uri.ID)
}

func (s *Server) handleAdvance(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.ForceAdvance(c.Request.Context(), uri.ID, currentPlayer(c)); err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("session_id", uri.ID).Str("player_id", currentPlayer(c)).Msg("phase skipped by host")
	s.respondView(c, uri.ID)
}

func (s *Server) handleSubmitEntry(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	var req entryRequest
	if !bindJSON(c, &req, nil) {
		return
	}
	if err := s.engine.SubmitEntry(c.Request.Context(), uri.ID, currentPlayer(c), uri.Round, req.Content); err != nil {
		writeError(c, err)
		return
	}
	s.respondView(c, uri.ID)
}

func (s *Server) handleFinalizeEntry(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.engine.FinalizeEntry(c.Request.Context(), uri.ID, currentPlayer(c), uri.Round); err != nil {
		writeError(c, err)
		return
	}
	s.respondView(c, uri.ID)
}

func (s *Server) handleVote(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	var req voteRequest
	if !bindJSON(c, &req, voteMessages) {
		return
	}
	err := s.engine.CastVote(c.Request.Context(), uri.ID, currentPlayer(c), uri.Round, req.SubmissionID, *req.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	s.respondView(c, uri.ID)
}

func (s *Server) handleRoundStats(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	stats, err := s.engine.RoundStats(c.Request.Context(), uri.ID, currentPlayer(c), uri.Round)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleFinalStats(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	stats, err := s.engine.FinalStats(c.Request.Context(), uri.ID, currentPlayer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) respondView(c *gin.Context, sessionID string) {
	view, err := s.engine.GetSessionView(c.Request.Context(), sessionID, currentPlayer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}
