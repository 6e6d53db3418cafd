package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrMalformed   = errors.New("malformed message")
)

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// constructors lists every kind Decode accepts.
var constructors = map[Kind]func() Message{
	KindAuthRequest:        func() Message { return &AuthRequest{} },
	KindWelcome:            func() Message { return &Welcome{} },
	KindMapSnapshot:        func() Message { return &MapSnapshot{} },
	KindPositionUpdate:     func() Message { return &PositionUpdate{} },
	KindPlayerConnected:    func() Message { return &PlayerConnected{} },
	KindPlayerDisconnected: func() Message { return &PlayerDisconnected{} },
	KindNpcBatchUpdate:     func() Message { return &NpcBatchUpdate{} },
	KindError:              func() Message { return &Error{} },
}

// Encode wraps m in its kind-tagged envelope.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", m.Kind(), err)
	}

	return json.Marshal(envelope{Type: m.Kind(), Data: data})
}

// Decode parses one envelope. Unknown kinds fail with ErrUnknownKind and bad
// payloads with ErrMalformed.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	newMsg, ok := constructors[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformed, env.Type)
	}

	m := newMsg()
	if err := json.Unmarshal(env.Data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, env.Type, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, env.Type, err)
	}

	return m, nil
}

func (m *AuthRequest) validate() error {
	if m.PlayerId == "" {
		return errors.New("player_id is required")
	}
	return nil
}

func (m *Welcome) validate() error {
	if m.PlayerId == "" {
		return errors.New("player_id is required")
	}
	return nil
}

func (m *MapSnapshot) validate() error {
	if len(m.Tiles) != m.Height {
		return fmt.Errorf("expected %d rows, got %d", m.Height, len(m.Tiles))
	}
	for y, row := range m.Tiles {
		if len(row) != m.Width {
			return fmt.Errorf("row %d: expected %d tiles, got %d", y, m.Width, len(row))
		}
	}
	return nil
}

// UnmarshalJSON rejects updates missing a coordinate instead of reading it as 0.
func (m *PositionUpdate) UnmarshalJSON(b []byte) error {
	var aux struct {
		PlayerId string   `json:"player_id"`
		X        *float64 `json:"pos_x"`
		Y        *float64 `json:"pos_y"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.X == nil || aux.Y == nil {
		return errors.New("pos_x and pos_y are required")
	}

	*m = PositionUpdate{PlayerId: aux.PlayerId, X: *aux.X, Y: *aux.Y}
	return nil
}

// A client may leave player_id empty; the server fills in the sender.
func (m *PositionUpdate) validate() error {
	return nil
}

func (m *PlayerConnected) validate() error {
	if m.PlayerId == "" {
		return errors.New("player_id is required")
	}
	return nil
}

func (m *PlayerDisconnected) validate() error {
	if m.PlayerId == "" {
		return errors.New("player_id is required")
	}
	return nil
}

func (m *NpcBatchUpdate) validate() error {
	for i, n := range m.NPCs {
		if n.NpcId == "" {
			return fmt.Errorf("npc %d: npc_id is required", i)
		}
	}
	return nil
}

func (m *Error) validate() error {
	return nil
}
