package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/identity"
	"github.com/pixil98/go-netplay/internal/protocol"
	"github.com/pixil98/go-netplay/internal/session"
)

// State is where a connection is in its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type lifecycle struct {
	state    State
	playerId string
}

func (l *lifecycle) to(ctx context.Context, next State) {
	slog.DebugContext(ctx, "connection state", "playerId", l.playerId, "from", l.state, "to", next)
	l.state = next
}

// RunSession drives one client connection from authentication to cleanup. It
// returns once the connection is closed. A nil error means the connection
// ended normally; ErrAuth means it never joined.
func (m *PlayerManager) RunSession(ctx context.Context, conn session.Transport) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	lc := &lifecycle{state: StateConnecting}
	lc.to(ctx, StateAuthenticating)

	ident, err := m.authenticate(ctx, conn)
	if err != nil {
		lc.to(ctx, StateDisconnected)
		m.refuse(ctx, conn, err)
		return err
	}
	lc.playerId = ident.Id

	s, err := m.join(ctx, ident, conn)
	if err != nil {
		lc.to(ctx, StateDisconnected)
		m.refuse(ctx, conn, err)
		return err
	}
	lc.to(ctx, StateJoined)
	slog.InfoContext(ctx, "player joined", "playerId", ident.Id, "username", ident.Username)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		m.Disconnect(cleanupCtx, s)
		lc.to(ctx, StateDisconnected)
	}()

	go s.WritePump(ctx)
	m.greet(ctx, s, ident)

	return m.receive(ctx, s, conn)
}

func (m *PlayerManager) authenticate(ctx context.Context, conn session.Transport) (identity.Identity, error) {
	var timer *time.Timer
	if m.authTimeout > 0 {
		timer = time.AfterFunc(m.authTimeout, func() {
			_ = conn.Close()
		})
	}
	raw, err := conn.ReadMessage()
	if timer != nil && !timer.Stop() {
		return identity.Identity{}, fmt.Errorf("%w: no auth request within %s", ErrAuth, m.authTimeout)
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: reading auth request: %w", ErrAuth, err)
	}

	msg, err := protocol.Decode(raw)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	req, ok := msg.(*protocol.AuthRequest)
	if !ok {
		return identity.Identity{}, fmt.Errorf("%w: expected %s, got %s", ErrAuth, protocol.KindAuthRequest, msg.Kind())
	}

	ident, err := m.directory.Resolve(ctx, req.PlayerId)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: resolving %q: %w", ErrAuth, req.PlayerId, err)
	}
	return ident, nil
}

// refuse tells the client why it was turned away and closes the connection.
func (m *PlayerManager) refuse(ctx context.Context, conn session.Transport, cause error) {
	slog.InfoContext(ctx, "connection refused", "error", cause)

	text := "Authentication failed"
	switch {
	case errors.Is(cause, identity.ErrNotFound):
		text = "Player not found"
	case errors.Is(cause, protocol.ErrMalformed), errors.Is(cause, protocol.ErrUnknownKind):
		text = "Invalid auth request"
	case errors.Is(cause, session.ErrDuplicateSession):
		text = "Player already connected"
	}

	if data, err := protocol.Encode(&protocol.Error{Message: text}); err == nil {
		_ = conn.WriteMessage(data)
	}
	_ = conn.Close()
}

// greet sends the joining player everyone already present, then announces
// it to the others.
func (m *PlayerManager) greet(ctx context.Context, s *session.Session, ident identity.Identity) {
	for _, p := range m.world.Players() {
		if p.Id == ident.Id {
			continue
		}
		m.send(ctx, s, &protocol.PlayerConnected{PlayerId: p.Id, Username: p.DisplayName})
		m.send(ctx, s, &protocol.PositionUpdate{PlayerId: p.Id, X: p.Pos.X, Y: p.Pos.Y})
	}

	m.bcast.ToOthers(ctx, ident.Id, &protocol.PlayerConnected{PlayerId: ident.Id, Username: ident.Username})
}

func (m *PlayerManager) send(ctx context.Context, s *session.Session, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		slog.ErrorContext(ctx, "encoding message", "kind", msg.Kind(), "error", err)
		return
	}
	if !s.Enqueue(data) {
		slog.DebugContext(ctx, "dropping message for player", "playerId", s.PlayerId(), "kind", msg.Kind())
	}
}

func (m *PlayerManager) receive(ctx context.Context, s *session.Session, conn session.Transport) error {
	limiter := rate.NewLimiter(m.msgRate, m.msgBurst)

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.Done():
				return nil
			default:
			}
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading from player %s: %w", s.PlayerId(), err)
		}

		s.Touch()
		if !limiter.Allow() {
			slog.WarnContext(ctx, "rate limited message", "playerId", s.PlayerId())
			continue
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			slog.WarnContext(ctx, "dropping malformed message", "playerId", s.PlayerId(), "error", err)
			continue
		}

		switch msg := msg.(type) {
		case *protocol.PositionUpdate:
			m.move(ctx, s, msg)
		default:
			slog.WarnContext(ctx, "dropping unexpected message", "playerId", s.PlayerId(), "kind", msg.Kind())
		}
	}
}

// move applies a position reported by the session's own player and relays
// it to everyone else.
func (m *PlayerManager) move(ctx context.Context, s *session.Session, msg *protocol.PositionUpdate) {
	id := s.PlayerId()
	if msg.PlayerId != "" && msg.PlayerId != id {
		slog.WarnContext(ctx, "dropping position update for another player", "playerId", id, "claimed", msg.PlayerId)
		return
	}

	pos := game.Position{X: msg.X, Y: msg.Y}

	// An evicted session may still hold a message it read before the newer
	// session took over the entity.
	m.joinMu.Lock()
	current := m.sessions.Get(id) == s
	var err error
	if current {
		err = m.world.UpdatePosition(id, pos)
	}
	m.joinMu.Unlock()

	if !current {
		slog.InfoContext(ctx, "dropping position update from replaced session", "playerId", id)
		return
	}
	if err != nil {
		slog.InfoContext(ctx, "rejected position update", "playerId", id, "error", err)
		return
	}

	m.bcast.ToOthers(ctx, id, &protocol.PositionUpdate{PlayerId: id, X: pos.X, Y: pos.Y})

	if err := m.presence.SavePosition(ctx, id, pos); err != nil {
		slog.WarnContext(ctx, "saving player position", "playerId", id, "error", err)
	}
}
