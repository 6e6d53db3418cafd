package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/identity"
)

type createPlayerRequest struct {
	Username string `json:"username" binding:"required"`
}

type onlinePlayer struct {
	Id       string         `json:"id"`
	Username string         `json:"username"`
	Position *game.Position `json:"position,omitempty"`
}

type mapResponse struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Tiles  [][]bool `json:"tiles"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Presence  string    `json:"presence"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) createPlayer(c *gin.Context) {
	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	p, err := s.directory.Create(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, "creating player", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listPlayers(c *gin.Context) {
	ps, err := s.directory.List(c.Request.Context())
	if err != nil {
		s.internalError(c, "listing players", err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (s *Server) getPlayer(c *gin.Context) {
	s.writePlayer(c, func() (identity.Player, error) {
		return s.directory.Get(c.Request.Context(), c.Param("id"))
	})
}

func (s *Server) getPlayerByName(c *gin.Context) {
	s.writePlayer(c, func() (identity.Player, error) {
		return s.directory.GetByName(c.Request.Context(), c.Param("name"))
	})
}

func (s *Server) writePlayer(c *gin.Context, load func() (identity.Player, error)) {
	p, err := load()
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		s.internalError(c, "loading player", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// listOnlinePlayers joins the presence online set with directory records and
// live positions from the world.
func (s *Server) listOnlinePlayers(c *gin.Context) {
	ctx := c.Request.Context()

	ids, err := s.presence.OnlineIds(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
		return
	}

	ps, err := s.directory.GetMany(ctx, ids)
	if err != nil {
		s.internalError(c, "loading online players", err)
		return
	}

	out := make([]onlinePlayer, 0, len(ps))
	for _, p := range ps {
		op := onlinePlayer{Id: p.Id, Username: p.Username}
		if e, ok := s.world.Entity(p.Id); ok {
			pos := e.Pos
			op.Position = &pos
		}
		out = append(out, op)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getMap(c *gin.Context) {
	grid := s.world.Map()
	c.JSON(http.StatusOK, mapResponse{Width: grid.Width(), Height: grid.Height(), Tiles: grid.Tiles()})
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{Status: "up", Presence: "up", Timestamp: time.Now().UTC()}
	if err := s.presence.Ping(c.Request.Context()); err != nil {
		resp.Presence = "down"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) internalError(c *gin.Context, what string, err error) {
	slog.ErrorContext(c.Request.Context(), what, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
