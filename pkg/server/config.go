package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/malbeclabs/hybridqa/pkg/agent"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
	defaultSearchK           = 6
)

type Config struct {
	Logger *slog.Logger

	Agent Answerer
	Store agent.RelationalStore
	Index agent.TextIndex

	Version           string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for MCP endpoint authentication
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Agent == nil {
		return fmt.Errorf("agent is required")
	}
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Index == nil {
		return fmt.Errorf("index is required")
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
