package server

import (
	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"

	"meme-party/internal/game"
	"meme-party/internal/web"
)

func (s *Server) handleDisplayView(c *gin.Context) {
	var uri sessionURI
	if !bindURI(c, &uri) {
		return
	}
	ctx := c.Request.Context()
	viewerID := currentPlayer(c)
	view, err := s.engine.GetSessionView(ctx, uri.ID, viewerID)
	if err != nil {
		writeError(c, err)
		return
	}

	var round *game.RoundResults
	var final *game.FinalResults
	switch view.Status {
	case game.StatusRoundResults:
		round, err = s.engine.RoundStats(ctx, uri.ID, viewerID, view.Round)
	case game.StatusFinalResults, game.StatusFinished:
		final, err = s.engine.FinalStats(ctx, uri.ID, viewerID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	templ.Handler(web.DisplayBoard(buildDisplayState(view, viewerID, round, final))).ServeHTTP(c.Writer, c.Request)
}
