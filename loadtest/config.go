package loadtest

import (
	"time"

	"github.com/hairizuan-noorazman/stormbot/agent"
)

// Params describes one load test.
type Params struct {
	TargetURL string
	Users     int
	Duration  time.Duration
	AIEnabled bool
}

// Config holds the orchestrator configuration.
type Config struct {
	Agent agent.Config
	// Now is the clock used for the deadline and report timestamps.
	Now func() time.Time
}

// DefaultConfig returns the production orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Agent: agent.DefaultConfig(),
		Now:   time.Now,
	}
}
