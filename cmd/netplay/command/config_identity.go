package command

import (
	"fmt"

	"github.com/pixil98/go-netplay/internal/identity"
)

type IdentityConfig struct {
	DSN string `json:"dsn"`
}

func (c *IdentityConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return nil
}

func (c *IdentityConfig) BuildStore() (*identity.Store, error) {
	return identity.Open(c.DSN)
}
