package travel

import "github.com/jcourtner/wayfarer/pkg/character"

// Mode is a named travel mode. SpeedFactor divides travel time: riding at
// 2.0 halves the journey relative to walking.
type Mode struct {
	Name        string  `json:"name"`
	SpeedFactor float64 `json:"speed_factor"`
}

var (
	ModeWalking  = Mode{Name: "walking", SpeedFactor: 1.0}
	ModeRiding   = Mode{Name: "riding", SpeedFactor: 2.0}
	ModeCarriage = Mode{Name: "carriage", SpeedFactor: 1.5}
	ModeRunning  = Mode{Name: "running", SpeedFactor: 1.3}
)

// ModeFor derives the travel mode from character state: mounted characters
// ride, everyone else walks. Carriage and running are reserved for item and
// status effects outside this engine.
func ModeFor(c *character.Character) Mode {
	if c.HasMount {
		return ModeRiding
	}
	return ModeWalking
}
