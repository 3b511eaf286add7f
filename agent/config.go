package agent

import (
	"time"

	"github.com/hairizuan-noorazman/stormbot/action"
)

// DefaultConfidenceThreshold is the analysis confidence above which agents consult the
// strategy engine instead of picking a basic action at random.
const DefaultConfidenceThreshold = 0.6

// Config holds the agent runner configuration.
type Config struct {
	Delays              action.Delays
	ConfidenceThreshold float64
	EventBuffer         int
	// Seed makes agent randomness reproducible; zero seeds from the clock.
	Seed uint64
	// Now is the clock used for load timing and the deadline check.
	Now func() time.Time
}

// DefaultConfig returns human-paced agent settings.
func DefaultConfig() Config {
	return Config{
		Delays:              action.DefaultDelays(),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		EventBuffer:         defaultEventBuffer,
		Now:                 time.Now,
	}
}
