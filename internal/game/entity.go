package game

import "github.com/google/uuid"

// Kind discriminates the entities held by the world.
type Kind int

const (
	KindPlayer Kind = iota
	KindNPC
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	default:
		return "unknown"
	}
}

// Position is a location on the map grid, in tile units.
type Position struct {
	X float64 `json:"pos_x"`
	Y float64 `json:"pos_y"`
}

// Entity is any simulated object in the world. Fields that only apply to one
// kind are left empty for the other.
type Entity struct {
	Id   string
	Kind Kind
	Pos  Position

	// Player only
	IdentityRef string
	DisplayName string

	// NPC only
	Archetype string
}

// NewPlayer builds a player entity for an authenticated identity. The entity
// shares the identity's id so that one identity maps to one entity.
func NewPlayer(identityId, username string) Entity {
	return Entity{
		Id:          identityId,
		Kind:        KindPlayer,
		IdentityRef: identityId,
		DisplayName: username,
	}
}

// NewNPC builds an NPC entity with a freshly generated id.
func NewNPC(archetype string, pos Position) Entity {
	return Entity{
		Id:        uuid.New().String(),
		Kind:      KindNPC,
		Pos:       pos,
		Archetype: archetype,
	}
}
