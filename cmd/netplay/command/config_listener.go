package command

import (
	"fmt"
	"strings"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-netplay/internal/listener"
	"github.com/pixil98/go-netplay/internal/player"
)

type ListenerConfig struct {
	Port                 uint16 `json:"port"`
	Path                 string `json:"path"`
	SendQueue            int    `json:"send_queue"`
	MaxMessagesPerSecond *int   `json:"max_messages_per_second,omitempty"`
	WriteTimeout         string `json:"write_timeout"`
}

func (c *ListenerConfig) Validate() error {
	el := errors.NewErrorList()

	if c.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		el.Add(fmt.Errorf("path must start with /"))
	}
	if c.SendQueue < 0 {
		el.Add(fmt.Errorf("send_queue must not be negative"))
	}
	if c.MaxMessagesPerSecond != nil && *c.MaxMessagesPerSecond < 0 {
		el.Add(fmt.Errorf("max_messages_per_second must not be negative"))
	}
	if _, err := parseDuration(c.WriteTimeout, listener.DefaultWriteTimeout); err != nil {
		el.Add(fmt.Errorf("parsing write_timeout: %w", err))
	}

	return el.Err()
}

// PlayerManagerOpts returns the per-connection limits for the player manager.
func (c *ListenerConfig) PlayerManagerOpts() []player.PlayerManagerOpt {
	var opts []player.PlayerManagerOpt
	if c.SendQueue > 0 {
		opts = append(opts, player.WithSendQueue(c.SendQueue))
	}
	if c.MaxMessagesPerSecond != nil {
		opts = append(opts, player.WithMessageRate(*c.MaxMessagesPerSecond))
	}
	return opts
}

func (c *ListenerConfig) BuildListener(cm *listener.ConnectionManager) *listener.WebsocketListener {
	var opts []listener.WebsocketListenerOpt
	if c.Path != "" {
		opts = append(opts, listener.WithPath(c.Path))
	}
	if d, err := parseDuration(c.WriteTimeout, listener.DefaultWriteTimeout); err == nil {
		opts = append(opts, listener.WithWriteTimeout(d))
	}
	return listener.NewWebsocketListener(c.Port, cm, opts...)
}
