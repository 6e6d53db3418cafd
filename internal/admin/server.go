package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/identity"
)

// Directory is the part of the identity store the admin surface uses.
type Directory interface {
	Create(ctx context.Context, username string) (identity.Player, error)
	Get(ctx context.Context, id string) (identity.Player, error)
	GetByName(ctx context.Context, username string) (identity.Player, error)
	List(ctx context.Context) ([]identity.Player, error)
	GetMany(ctx context.Context, ids []string) ([]identity.Player, error)
}

// Presence is the part of the presence cache the admin surface uses.
type Presence interface {
	OnlineIds(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Server exposes player management and server state over HTTP.
type Server struct {
	port      uint16
	directory Directory
	presence  Presence
	world     *game.World
}

func NewServer(port uint16, directory Directory, presence Presence, world *game.World) *Server {
	return &Server{
		port:      port,
		directory: directory,
		presence:  presence,
		world:     world,
	}
}

func (s *Server) Start(ctx context.Context) error {
	svr := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = svr.Shutdown(shutdownCtx)
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "admin server started", "port", s.port)
	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving admin on port %d: %w", s.port, err)
	}
	return nil
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.POST("/players", s.createPlayer)
	r.GET("/players", s.listPlayers)
	r.GET("/players/by-name/:name", s.getPlayerByName)
	r.GET("/players/:id", s.getPlayer)
	r.GET("/online-players", s.listOnlinePlayers)
	r.GET("/map", s.getMap)
	r.GET("/health", s.health)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
