package npc

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Archetype describes a kind of NPC and how many of it to spawn.
type Archetype struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (a *Archetype) Validate() error {
	if a == nil {
		return fmt.Errorf("spec must be set")
	}

	el := errors.NewErrorList()

	if a.Name == "" {
		el.Add(fmt.Errorf("name must be set"))
	}

	if a.Count < 0 {
		el.Add(fmt.Errorf("count must not be negative"))
	}

	return el.Err()
}

// ArchetypeSource is a set of archetypes keyed by id.
type ArchetypeSource interface {
	Ids() []string
	Get(id string) (*Archetype, bool)
}
