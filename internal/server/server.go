package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meme-party/internal/config"
	"meme-party/internal/game"
	"meme-party/internal/logging"
)

const playerHeader = "X-Player-ID"

type Server struct {
	engine   *game.Engine
	hub      *Hub
	cfg      config.Config
	defaults game.Config
}

// New wires the HTTP transport to an engine. The hub must be the engine's
// notifier so that websocket clients see every committed change.
func New(engine *game.Engine, hub *Hub, cfg config.Config) *Server {
	registerValidators()
	s := &Server{
		engine:   engine,
		hub:      hub,
		cfg:      cfg,
		defaults: cfg.GameConfig(),
	}
	hub.views = engine.GetSessionView
	return s
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})
	r.GET("/api/templates", s.handleTemplates)

	api := r.Group("/api/sessions", requirePlayer())
	api.POST("", s.handleCreateSession)
	api.GET("/:id", s.handleSessionView)
	api.POST("/:id/join", s.handleJoin)
	api.POST("/:id/start", s.handleStart)
	api.POST("/:id/advance", s.handleAdvance)
	api.PUT("/:id/rounds/:round/entry", s.handleSubmitEntry)
	api.POST("/:id/rounds/:round/entry/finalize", s.handleFinalizeEntry)
	api.POST("/:id/rounds/:round/votes", s.handleVote)
	api.GET("/:id/rounds/:round/stats", s.handleRoundStats)
	api.GET("/:id/stats", s.handleFinalStats)

	r.GET("/ws/sessions/:id", requirePlayer(), s.handleWebsocket)
	r.GET("/sessions/:id/display", requirePlayer(), s.handleDisplayView)
	return r
}
