package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/time/rate"

	"github.com/pixil98/go-netplay/internal/broadcast"
	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/identity"
	"github.com/pixil98/go-netplay/internal/presence"
	"github.com/pixil98/go-netplay/internal/protocol"
	"github.com/pixil98/go-netplay/internal/session"
)

const (
	DefaultWelcomeTemplate = "Welcome, {{ .Username }}!"
	DefaultAuthTimeout     = 10 * time.Second
	DefaultMessageRate     = 30
	cleanupTimeout         = 5 * time.Second
)

var ErrAuth = errors.New("authentication failed")

// DuplicatePolicy decides what happens when an identity that already has a
// live session connects again.
type DuplicatePolicy int

const (
	// DuplicateEvict closes the earlier session; the new one takes over the
	// player's entity.
	DuplicateEvict DuplicatePolicy = iota
	// DuplicateReject refuses the new connection.
	DuplicateReject
)

func (p *DuplicatePolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "evict", "":
		*p = DuplicateEvict
	case "reject":
		*p = DuplicateReject
	default:
		return fmt.Errorf("unknown duplicate policy: %s", text)
	}
	return nil
}

// PlayerManager runs the lifecycle of every player connection against the
// shared world and session registry.
type PlayerManager struct {
	world     *game.World
	sessions  *session.Registry
	bcast     *broadcast.Broadcaster
	presence  presence.Cache
	directory identity.Directory

	duplicates  DuplicatePolicy
	welcome     *template.Template
	authTimeout time.Duration
	sendQueue   int
	msgRate     rate.Limit
	msgBurst    int

	// joinMu keeps the registry and the world in step while a session joins,
	// leaves or moves. It is never held across I/O.
	joinMu sync.Mutex
}

type PlayerManagerOpt func(*PlayerManager)

func WithDuplicatePolicy(p DuplicatePolicy) PlayerManagerOpt {
	return func(m *PlayerManager) {
		m.duplicates = p
	}
}

func WithWelcomeTemplate(t *template.Template) PlayerManagerOpt {
	return func(m *PlayerManager) {
		m.welcome = t
	}
}

func WithAuthTimeout(d time.Duration) PlayerManagerOpt {
	return func(m *PlayerManager) {
		m.authTimeout = d
	}
}

func WithSendQueue(n int) PlayerManagerOpt {
	return func(m *PlayerManager) {
		m.sendQueue = n
	}
}

// WithMessageRate limits how many messages per second a session may send.
// Zero disables the limit.
func WithMessageRate(perSecond int) PlayerManagerOpt {
	return func(m *PlayerManager) {
		if perSecond <= 0 {
			m.msgRate = rate.Inf
			m.msgBurst = 0
			return
		}
		m.msgRate = rate.Limit(perSecond)
		m.msgBurst = perSecond
	}
}

// ParseWelcomeTemplate parses the text sent to a player once they join. The
// template sees the player's Id and Username and has the sprig functions.
func ParseWelcomeTemplate(text string) (*template.Template, error) {
	return template.New("welcome").Funcs(sprig.TxtFuncMap()).Parse(text)
}

func NewPlayerManager(
	world *game.World,
	sessions *session.Registry,
	bcast *broadcast.Broadcaster,
	cache presence.Cache,
	directory identity.Directory,
	opts ...PlayerManagerOpt,
) *PlayerManager {
	m := &PlayerManager{
		world:       world,
		sessions:    sessions,
		bcast:       bcast,
		presence:    cache,
		directory:   directory,
		duplicates:  DuplicateEvict,
		welcome:     template.Must(ParseWelcomeTemplate(DefaultWelcomeTemplate)),
		authTimeout: DefaultAuthTimeout,
		sendQueue:   session.DefaultSendQueue,
		msgRate:     rate.Limit(DefaultMessageRate),
		msgBurst:    DefaultMessageRate,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start blocks until ctx is done, then ends every live session.
func (m *PlayerManager) Start(ctx context.Context) error {
	<-ctx.Done()
	m.sessions.KickAll()
	return nil
}

// Disconnect ends s and, if it is still the registered session for its
// player, removes the player from the world, marks it offline and tells
// everyone else it left. Calling it again for the same session does nothing.
func (m *PlayerManager) Disconnect(ctx context.Context, s *session.Session) {
	s.Kick()

	m.joinMu.Lock()
	removed := m.sessions.Remove(s)
	if removed {
		err := m.world.RemovePlayer(s.PlayerId())
		if err != nil && !errors.Is(err, game.ErrNotFound) {
			slog.ErrorContext(ctx, "removing player from world", "playerId", s.PlayerId(), "error", err)
		}
	}
	m.joinMu.Unlock()

	if !removed {
		return
	}

	if err := m.presence.MarkOffline(ctx, s.PlayerId()); err != nil {
		slog.WarnContext(ctx, "marking player offline", "playerId", s.PlayerId(), "error", err)
	}
	m.bcast.ToOthers(ctx, s.PlayerId(), &protocol.PlayerDisconnected{PlayerId: s.PlayerId()})

	slog.InfoContext(ctx, "player left", "playerId", s.PlayerId(), "username", s.Username())
}

// join registers the session and the player's entity, then marks the player
// online. Welcome and the map are queued before the session becomes visible
// to broadcasts so they are always the first messages the client gets.
func (m *PlayerManager) join(ctx context.Context, ident identity.Identity, conn session.Transport) (*session.Session, error) {
	s := session.New(ident.Id, ident.Username, conn, session.WithSendQueue(m.sendQueue))
	grid := m.world.Map()
	m.send(ctx, s, &protocol.Welcome{PlayerId: ident.Id, Text: m.welcomeText(ident)})
	m.send(ctx, s, &protocol.MapSnapshot{Width: grid.Width(), Height: grid.Height(), Tiles: grid.Tiles()})

	m.joinMu.Lock()
	if m.duplicates == DuplicateReject {
		if err := m.sessions.Add(s); err != nil {
			m.joinMu.Unlock()
			return nil, fmt.Errorf("%w: %w", ErrAuth, err)
		}
	} else if prev := m.sessions.Replace(s); prev != nil {
		prev.Kick()
		slog.InfoContext(ctx, "evicted previous session", "playerId", ident.Id)
	}

	err := m.world.AddPlayer(game.NewPlayer(ident.Id, ident.Username))
	if err != nil && !errors.Is(err, game.ErrConflict) {
		m.sessions.Remove(s)
		m.joinMu.Unlock()
		return nil, fmt.Errorf("adding player to world: %w", err)
	}
	m.joinMu.Unlock()

	if err := m.presence.MarkOnline(ctx, ident.Id); err != nil {
		slog.WarnContext(ctx, "marking player online", "playerId", ident.Id, "error", err)
	}

	return s, nil
}

func (m *PlayerManager) welcomeText(ident identity.Identity) string {
	var buf strings.Builder
	if err := m.welcome.Execute(&buf, ident); err != nil {
		return "Welcome, " + ident.Username + "!"
	}
	return buf.String()
}
