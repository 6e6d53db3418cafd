package player

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-netplay/internal/broadcast"
	"github.com/pixil98/go-netplay/internal/game"
	"github.com/pixil98/go-netplay/internal/identity"
	"github.com/pixil98/go-netplay/internal/presence"
	"github.com/pixil98/go-netplay/internal/presence/presencetest"
	"github.com/pixil98/go-netplay/internal/protocol"
	"github.com/pixil98/go-netplay/internal/session"
	"github.com/pixil98/go-netplay/internal/session/sessiontest"
	"github.com/pixil98/go-testutil"
)

type fakeDirectory map[string]string

func (d fakeDirectory) Resolve(_ context.Context, id string) (identity.Identity, error) {
	name, ok := d[id]
	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}
	return identity.Identity{Id: id, Username: name}, nil
}

type harness struct {
	world    *game.World
	sessions *session.Registry
	presence *presencetest.Cache
	manager  *PlayerManager
	ctx      context.Context
}

func newHarness(t *testing.T, opts ...PlayerManagerOpt) *harness {
	t.Helper()

	grid, err := game.GenerateMap(10, 10, 0, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("generating map: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		world:    game.NewWorld(grid),
		sessions: session.NewRegistry(),
		presence: presencetest.NewCache(),
		ctx:      ctx,
	}
	dir := fakeDirectory{"a": "alice", "b": "bob"}
	h.manager = NewPlayerManager(h.world, h.sessions, broadcast.NewBroadcaster(h.sessions), h.presence, dir, opts...)
	return h
}

// connect starts a session for conn and returns the channel its result is
// delivered on.
func (h *harness) connect(conn *sessiontest.Transport) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- h.manager.RunSession(h.ctx, conn)
	}()
	return result
}

type client struct {
	*sessiontest.Transport
	result <-chan error
	roster int
}

// join authenticates as id and waits until the welcome and the positions of
// everyone already present have arrived.
func (h *harness) join(t *testing.T, id string) *client {
	t.Helper()

	roster := 0
	for _, p := range h.world.PlayerIds() {
		if p != id {
			roster++
		}
	}
	conn := sessiontest.NewTransport()
	c := &client{Transport: conn, result: h.connect(conn), roster: roster}
	conn.SendMessage(t, &protocol.AuthRequest{PlayerId: id})
	conn.WaitFor(t, protocol.KindWelcome)
	waitUntil(t, "roster", func() bool {
		return len(conn.MessagesOf(t, protocol.KindPositionUpdate)) >= roster
	})
	return c
}

// moves returns the position updates received after the roster.
func (c *client) moves(t *testing.T) []protocol.PositionUpdate {
	t.Helper()

	var out []protocol.PositionUpdate
	for i, m := range c.MessagesOf(t, protocol.KindPositionUpdate) {
		if i < c.roster {
			continue
		}
		out = append(out, *m.(*protocol.PositionUpdate))
	}
	return out
}

func (c *client) waitMoves(t *testing.T, n int) []protocol.PositionUpdate {
	t.Helper()

	waitUntil(t, "position updates", func() bool {
		return len(c.moves(t)) >= n
	})
	return c.moves(t)
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()

	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to end")
		return nil
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayerManager_Join(t *testing.T) {
	h := newHarness(t)

	a := h.join(t, "a")

	welcome := a.WaitFor(t, protocol.KindWelcome).(*protocol.Welcome)
	testutil.AssertEqual(t, "welcome id", welcome.PlayerId, "a")
	testutil.AssertEqual(t, "welcome text", welcome.Text, "Welcome, alice!")

	snapshot := a.WaitFor(t, protocol.KindMapSnapshot).(*protocol.MapSnapshot)
	testutil.AssertEqual(t, "map width", snapshot.Width, 10)
	testutil.AssertEqual(t, "map height", snapshot.Height, 10)
	testutil.AssertEqual(t, "tiles", reflect.DeepEqual(snapshot.Tiles, h.world.Map().Tiles()), true)

	testutil.AssertEqual(t, "players", strings.Join(h.world.PlayerIds(), ","), "a")
	testutil.AssertEqual(t, "online", h.presence.IsOnline("a"), true)
	testutil.AssertEqual(t, "sessions", h.sessions.Len(), 1)
}

func TestPlayerManager_JoinAnnouncesToOthers(t *testing.T) {
	h := newHarness(t)

	a := h.join(t, "a")
	b := h.join(t, "b")

	joined := a.WaitFor(t, protocol.KindPlayerConnected).(*protocol.PlayerConnected)
	testutil.AssertEqual(t, "joined", *joined, protocol.PlayerConnected{PlayerId: "b", Username: "bob"})

	present := b.WaitFor(t, protocol.KindPlayerConnected).(*protocol.PlayerConnected)
	testutil.AssertEqual(t, "present", *present, protocol.PlayerConnected{PlayerId: "a", Username: "alice"})
	where := b.WaitFor(t, protocol.KindPositionUpdate).(*protocol.PositionUpdate)
	testutil.AssertEqual(t, "present position", *where, protocol.PositionUpdate{PlayerId: "a"})
}

func TestPlayerManager_WelcomeTemplate(t *testing.T) {
	tmpl, err := ParseWelcomeTemplate("Hello {{ .Username | upper }} ({{ .Id }})")
	if err != nil {
		t.Fatalf("parsing template: %v", err)
	}
	h := newHarness(t, WithWelcomeTemplate(tmpl))

	a := h.join(t, "a")

	welcome := a.WaitFor(t, protocol.KindWelcome).(*protocol.Welcome)
	testutil.AssertEqual(t, "welcome text", welcome.Text, "Hello ALICE (a)")
}

func TestPlayerManager_PositionRelay(t *testing.T) {
	h := newHarness(t)

	a := h.join(t, "a")
	b := h.join(t, "b")

	a.SendMessage(t, &protocol.PositionUpdate{PlayerId: "a", X: 5, Y: 5})

	got := b.waitMoves(t, 1)
	testutil.AssertEqual(t, "relayed count", len(got), 1)
	testutil.AssertEqual(t, "relayed", got[0], protocol.PositionUpdate{PlayerId: "a", X: 5, Y: 5})

	e, _ := h.world.Entity("a")
	testutil.AssertEqual(t, "world position", e.Pos, game.Position{X: 5, Y: 5})
	waitUntil(t, "saved position", func() bool {
		return h.presence.Saves("a") == 1
	})
	pos, _ := h.presence.Position("a")
	testutil.AssertEqual(t, "saved position", pos, game.Position{X: 5, Y: 5})

	// B's move reaches A after anything A's own update could have produced.
	b.SendMessage(t, &protocol.PositionUpdate{X: 1, Y: 2})
	fromB := a.waitMoves(t, 1)
	testutil.AssertEqual(t, "no echo count", len(fromB), 1)
	testutil.AssertEqual(t, "no echo", fromB[0], protocol.PositionUpdate{PlayerId: "b", X: 1, Y: 2})
}

func TestPlayerManager_RejectedUpdates(t *testing.T) {
	tests := map[string]struct {
		raw []byte
	}{
		"out of bounds": {
			raw: []byte(`{"type":"position_update","data":{"player_id":"a","pos_x":10,"pos_y":0}}`),
		},
		"negative": {
			raw: []byte(`{"type":"position_update","data":{"player_id":"a","pos_x":-1,"pos_y":3}}`),
		},
		"other player": {
			raw: []byte(`{"type":"position_update","data":{"player_id":"b","pos_x":1,"pos_y":1}}`),
		},
		"malformed": {
			raw: []byte(`{"type":"position_update","data":`),
		},
		"missing coordinate": {
			raw: []byte(`{"type":"position_update","data":{"player_id":"a","pos_x":1}}`),
		},
		"unexpected kind": {
			raw: []byte(`{"type":"auth","data":{"player_id":"a"}}`),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			a := h.join(t, "a")
			b := h.join(t, "b")

			a.Send(tt.raw)

			// The session survives and later updates still go through.
			a.SendMessage(t, &protocol.PositionUpdate{PlayerId: "a", X: 2, Y: 3})
			got := b.waitMoves(t, 1)
			testutil.AssertEqual(t, "relayed count", len(got), 1)
			testutil.AssertEqual(t, "relayed", got[0], protocol.PositionUpdate{PlayerId: "a", X: 2, Y: 3})
			waitUntil(t, "saved position", func() bool {
				return h.presence.Saves("a") >= 1
			})
			testutil.AssertEqual(t, "saves", h.presence.Saves("a"), 1)

			other, _ := h.world.Entity("b")
			testutil.AssertEqual(t, "other untouched", other.Pos, game.Position{})
		})
	}
}

func TestPlayerManager_AuthFailures(t *testing.T) {
	tests := map[string]struct {
		raw    []byte
		expMsg string
	}{
		"unknown identity": {
			raw:    []byte(`{"type":"auth","data":{"player_id":"nobody"}}`),
			expMsg: "Player not found",
		},
		"missing id": {
			raw:    []byte(`{"type":"auth","data":{}}`),
			expMsg: "Invalid auth request",
		},
		"not json": {
			raw:    []byte(`hello`),
			expMsg: "Invalid auth request",
		},
		"wrong first message": {
			raw:    []byte(`{"type":"position_update","data":{"player_id":"a","pos_x":1,"pos_y":1}}`),
			expMsg: "Authentication failed",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			conn := sessiontest.NewTransport()
			result := h.connect(conn)
			conn.Send(tt.raw)

			err := waitResult(t, result)
			testutil.AssertEqual(t, "is auth error", errors.Is(err, ErrAuth), true)
			conn.WaitClosed(t)

			msg := conn.WaitFor(t, protocol.KindError).(*protocol.Error)
			testutil.AssertEqual(t, "error message", msg.Message, tt.expMsg)
			testutil.AssertEqual(t, "players", len(h.world.PlayerIds()), 0)
			testutil.AssertEqual(t, "online", h.presence.OnlineCount(), 0)
			testutil.AssertEqual(t, "sessions", h.sessions.Len(), 0)
		})
	}
}

func TestPlayerManager_AuthTimeout(t *testing.T) {
	h := newHarness(t, WithAuthTimeout(20*time.Millisecond))

	conn := sessiontest.NewTransport()
	err := waitResult(t, h.connect(conn))

	testutil.AssertErrorContains(t, err, "no auth request")
	testutil.AssertEqual(t, "closed", conn.Closed(), true)
}

func TestPlayerManager_Disconnect(t *testing.T) {
	h := newHarness(t)

	a := h.join(t, "a")
	b := h.join(t, "b")

	a.Close()
	testutil.AssertEqual(t, "session result", waitResult(t, a.result), nil)

	left := b.WaitFor(t, protocol.KindPlayerDisconnected).(*protocol.PlayerDisconnected)
	testutil.AssertEqual(t, "left", left.PlayerId, "a")
	testutil.AssertEqual(t, "players", strings.Join(h.world.PlayerIds(), ","), "b")
	testutil.AssertEqual(t, "a online", h.presence.IsOnline("a"), false)
	testutil.AssertEqual(t, "b online", h.presence.IsOnline("b"), true)
	testutil.AssertEqual(t, "sessions", h.sessions.Len(), 1)
}

func TestPlayerManager_DisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t)

	a := h.join(t, "a")
	b := h.join(t, "b")

	s := h.sessions.Get("b")
	h.manager.Disconnect(h.ctx, s)
	h.manager.Disconnect(h.ctx, s)

	b.WaitClosed(t)
	testutil.AssertEqual(t, "session result", waitResult(t, b.result), nil)
	a.WaitFor(t, protocol.KindPlayerDisconnected)

	testutil.AssertEqual(t, "left messages", len(a.MessagesOf(t, protocol.KindPlayerDisconnected)), 1)
	testutil.AssertEqual(t, "players", strings.Join(h.world.PlayerIds(), ","), "a")
	testutil.AssertEqual(t, "online", h.presence.OnlineCount(), 1)
}

func TestPlayerManager_DuplicateEvict(t *testing.T) {
	h := newHarness(t)

	b := h.join(t, "b")
	first := h.join(t, "a")
	first.SendMessage(t, &protocol.PositionUpdate{X: 4, Y: 4})
	b.waitMoves(t, 1)

	second := h.join(t, "a")

	first.WaitClosed(t)
	testutil.AssertEqual(t, "first result", waitResult(t, first.result), nil)

	testutil.AssertEqual(t, "players", strings.Join(h.world.PlayerIds(), ","), "a,b")
	e, _ := h.world.Entity("a")
	testutil.AssertEqual(t, "position kept", e.Pos, game.Position{X: 4, Y: 4})
	testutil.AssertEqual(t, "online", h.presence.IsOnline("a"), true)
	testutil.AssertEqual(t, "second open", second.Closed(), false)
	testutil.AssertEqual(t, "left messages", len(b.MessagesOf(t, protocol.KindPlayerDisconnected)), 0)

	second.SendMessage(t, &protocol.PositionUpdate{X: 6, Y: 1})
	got := b.waitMoves(t, 2)
	testutil.AssertEqual(t, "second session move", got[1], protocol.PositionUpdate{PlayerId: "a", X: 6, Y: 1})
}

func TestPlayerManager_DuplicateReject(t *testing.T) {
	h := newHarness(t, WithDuplicatePolicy(DuplicateReject))

	first := h.join(t, "a")

	second := sessiontest.NewTransport()
	result := h.connect(second)
	second.SendMessage(t, &protocol.AuthRequest{PlayerId: "a"})

	err := waitResult(t, result)
	testutil.AssertEqual(t, "is auth error", errors.Is(err, ErrAuth), true)
	testutil.AssertEqual(t, "is duplicate", errors.Is(err, session.ErrDuplicateSession), true)

	msg := second.WaitFor(t, protocol.KindError).(*protocol.Error)
	testutil.AssertEqual(t, "error message", msg.Message, "Player already connected")
	testutil.AssertEqual(t, "first open", first.Closed(), false)
	testutil.AssertEqual(t, "players", strings.Join(h.world.PlayerIds(), ","), "a")
}

func TestPlayerManager_PresenceFailureKeepsPlaying(t *testing.T) {
	h := newHarness(t)
	h.presence.Err = errors.New("presence down")

	a := h.join(t, "a")
	b := h.join(t, "b")

	a.SendMessage(t, &protocol.PositionUpdate{X: 3, Y: 3})

	got := b.waitMoves(t, 1)
	testutil.AssertEqual(t, "relayed count", len(got), 1)
	testutil.AssertEqual(t, "relayed", got[0], protocol.PositionUpdate{PlayerId: "a", X: 3, Y: 3})
	e, _ := h.world.Entity("a")
	testutil.AssertEqual(t, "world position", e.Pos, game.Position{X: 3, Y: 3})
}

func TestPlayerManager_RateLimit(t *testing.T) {
	h := newHarness(t, WithMessageRate(1))

	a := h.join(t, "a")
	b := h.join(t, "b")

	for i := range 5 {
		a.SendMessage(t, &protocol.PositionUpdate{X: float64(i), Y: 0})
	}
	b.waitMoves(t, 1)
	time.Sleep(20 * time.Millisecond)

	testutil.AssertEqual(t, "relayed", len(b.moves(t)), 1)
}

func TestPlayerManager_StartKicksSessions(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, "a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.manager.Start(ctx)
	}()
	cancel()

	testutil.AssertEqual(t, "start result", <-done, nil)
	a.WaitClosed(t)
	testutil.AssertEqual(t, "session result", waitResult(t, a.result), nil)
	testutil.AssertEqual(t, "players", len(h.world.PlayerIds()), 0)
}

func TestDuplicatePolicy_UnmarshalText(t *testing.T) {
	tests := map[string]struct {
		text   string
		exp    DuplicatePolicy
		expErr string
	}{
		"evict":   {text: "evict", exp: DuplicateEvict},
		"empty":   {text: "", exp: DuplicateEvict},
		"reject":  {text: "reject", exp: DuplicateReject},
		"unknown": {text: "queue", expErr: "unknown duplicate policy"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var p DuplicatePolicy
			err := p.UnmarshalText([]byte(tt.text))
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "policy", p, tt.exp)
		})
	}
}

func TestPlayerManager_WelcomeAndMapComeFirst(t *testing.T) {
	h := newHarness(t)
	h.join(t, "a")

	stop := make(chan struct{})
	flooded := make(chan struct{})
	bcast := broadcast.NewBroadcaster(h.sessions)
	go func() {
		defer close(flooded)
		for {
			select {
			case <-stop:
				return
			default:
			}
			bcast.ToAll(h.ctx, &protocol.NpcBatchUpdate{})
			time.Sleep(time.Millisecond)
		}
	}()

	b := sessiontest.NewTransport()
	h.connect(b)
	b.SendMessage(t, &protocol.AuthRequest{PlayerId: "b"})
	b.WaitFor(t, protocol.KindWelcome)
	close(stop)
	<-flooded

	msgs := b.Messages(t)
	if len(msgs) < 2 {
		t.Fatalf("expected at least 2 messages, got %d", len(msgs))
	}
	testutil.AssertEqual(t, "first", msgs[0].Kind(), protocol.KindWelcome)
	testutil.AssertEqual(t, "second", msgs[1].Kind(), protocol.KindMapSnapshot)
}

func TestPlayerManager_ReplacedSessionCannotMove(t *testing.T) {
	h := newHarness(t)

	h.join(t, "a")
	old := h.sessions.Get("a")
	before, _ := h.world.Entity("a")

	second := h.join(t, "a")
	testutil.AssertEqual(t, "replaced", h.sessions.Get("a") != old, true)

	h.manager.move(h.ctx, old, &protocol.PositionUpdate{X: 7, Y: 7})

	after, _ := h.world.Entity("a")
	testutil.AssertEqual(t, "position", after.Pos, before.Pos)
	testutil.AssertEqual(t, "saves", h.presence.Saves("a"), 0)
	testutil.AssertEqual(t, "second open", second.Closed(), false)
}

func TestPlayerManager_PresenceOutageDoesNotDelayRelay(t *testing.T) {
	h := newHarness(t)
	retrying := presence.NewRetrying(h.presence, presence.WithBackoff(time.Second))
	dir := fakeDirectory{"a": "alice", "b": "bob"}
	h.manager = NewPlayerManager(h.world, h.sessions, broadcast.NewBroadcaster(h.sessions), retrying, dir)

	a := h.join(t, "a")
	b := h.join(t, "b")
	h.presence.SetErr(errors.New("presence down"))

	start := time.Now()
	a.SendMessage(t, &protocol.PositionUpdate{X: 2, Y: 3})
	got := b.waitMoves(t, 1)

	testutil.AssertEqual(t, "relayed before retries", time.Since(start) < 500*time.Millisecond, true)
	testutil.AssertEqual(t, "move", got[0], protocol.PositionUpdate{PlayerId: "a", X: 2, Y: 3})
	e, _ := h.world.Entity("a")
	testutil.AssertEqual(t, "world", e.Pos, game.Position{X: 2, Y: 3})
}
