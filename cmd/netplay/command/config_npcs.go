package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-netplay/internal/npc"
	"github.com/pixil98/go-netplay/internal/storage"
)

type NpcConfig struct {
	Path string `json:"path"`
}

func (c *NpcConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if _, err := os.Stat(c.Path); err != nil {
		return fmt.Errorf("invalid path %q: %w", c.Path, err)
	}
	return nil
}

func (c *NpcConfig) BuildArchetypes() (*storage.FileStore[*npc.Archetype], error) {
	return storage.NewFileStore[*npc.Archetype](c.Path)
}
