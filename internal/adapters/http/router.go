package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Slideboard/internal/adapters/signal"
	"github.com/dkeye/Slideboard/internal/app"
	"github.com/dkeye/Slideboard/internal/config"
	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie. It only labels connections in logs; rooms are
// joined by user id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// Deps are the collaborators the HTTP surface needs. Persistence and
// Assets may be nil.
type Deps struct {
	Orch        *app.Orchestrator
	Persistence core.Persistence
	Assets      afero.Fs
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("SlideboardSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	if deps.Assets != nil && cfg.Assets.PublicBase != "" {
		r.StaticFS(cfg.Assets.PublicBase, afero.NewHttpFs(deps.Assets))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Str("assets", cfg.Assets.PublicBase).Msg("router setup")

	api := r.Group("/api")

	ctrl := signal.NewSignalWSController(deps.Orch, deps.Orch.Registry, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/rooms/:roomID", savedRoomHandler(deps.Persistence))
	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(deps.Orch.Rooms.Keys())})
	})

	return r
}

// savedAtReporter is implemented by stores that track when a room was saved.
type savedAtReporter interface {
	SavedAt(ctx context.Context, key domain.RoomKey) (time.Time, error)
}

// savedRoomHandler returns the last saved snapshot of a room.
func savedRoomHandler(p core.Persistence) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := domain.ParseRoomKey(c.Param("roomID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if p == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
			return
		}
		snap, err := p.Load(c.Request.Context(), key)
		switch {
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		case err != nil:
			log.Error().Err(err).Str("module", "adapters.http").Str("room", string(key)).Msg("load saved room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
			return
		}
		body := gin.H{"roomID": key, "slides": snap.Slides, "currentSlide": snap.CurrentSlide}
		if r, ok := p.(savedAtReporter); ok {
			if at, err := r.SavedAt(c.Request.Context(), key); err == nil {
				body["savedAt"] = at.UTC()
			} else {
				log.Warn().Err(err).Str("module", "adapters.http").Str("room", string(key)).Msg("saved time")
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
