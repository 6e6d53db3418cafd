package protocol

// Kind tags every message on the wire.
type Kind string

const (
	KindAuthRequest        Kind = "auth"
	KindWelcome            Kind = "welcome"
	KindMapSnapshot        Kind = "map"
	KindPositionUpdate     Kind = "position_update"
	KindPlayerConnected    Kind = "player_connected"
	KindPlayerDisconnected Kind = "player_disconnected"
	KindNpcBatchUpdate     Kind = "npc_update"
	KindError              Kind = "error"
)

// Message is implemented only by the types in this file.
type Message interface {
	Kind() Kind
	validate() error
}

// AuthRequest is the first message a client sends.
type AuthRequest struct {
	PlayerId string `json:"player_id"`
}

// Welcome acknowledges a successful authentication.
type Welcome struct {
	PlayerId string `json:"player_id"`
	Text     string `json:"message"`
}

// MapSnapshot carries the full walkability grid, indexed [y][x].
type MapSnapshot struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Tiles  [][]bool `json:"tiles"`
}

// PositionUpdate is reported by a client for its own player and relayed by
// the server to everyone else.
type PositionUpdate struct {
	PlayerId string  `json:"player_id"`
	X        float64 `json:"pos_x"`
	Y        float64 `json:"pos_y"`
}

type PlayerConnected struct {
	PlayerId string `json:"player_id"`
	Username string `json:"username"`
}

type PlayerDisconnected struct {
	PlayerId string `json:"player_id"`
}

type NpcPosition struct {
	NpcId string  `json:"npc_id"`
	X     float64 `json:"pos_x"`
	Y     float64 `json:"pos_y"`
}

// NpcBatchUpdate holds every NPC position after one tick.
type NpcBatchUpdate struct {
	NPCs []NpcPosition `json:"npcs"`
}

// Error is sent to a client right before the server closes its connection.
type Error struct {
	Message string `json:"message"`
}

func (*AuthRequest) Kind() Kind        { return KindAuthRequest }
func (*Welcome) Kind() Kind            { return KindWelcome }
func (*MapSnapshot) Kind() Kind        { return KindMapSnapshot }
func (*PositionUpdate) Kind() Kind     { return KindPositionUpdate }
func (*PlayerConnected) Kind() Kind    { return KindPlayerConnected }
func (*PlayerDisconnected) Kind() Kind { return KindPlayerDisconnected }
func (*NpcBatchUpdate) Kind() Kind     { return KindNpcBatchUpdate }
func (*Error) Kind() Kind              { return KindError }
