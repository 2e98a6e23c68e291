package character

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/d20"

	"github.com/jcourtner/wayfarer/pkg/world"
)

// DefaultMovementSpeed is the baseline speed used to scale travel time.
// A character at this speed covers one distance unit per second.
const DefaultMovementSpeed = 30

// Stats are the six core ability scores backing the d20 sheet.
type Stats struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// ToAttributes converts Stats to a map for d20.Actor compatibility.
func (s *Stats) ToAttributes() map[string]int {
	return map[string]int{
		"strength":     s.Strength,
		"dexterity":    s.Dexterity,
		"constitution": s.Constitution,
		"intelligence": s.Intelligence,
		"wisdom":       s.Wisdom,
		"charisma":     s.Charisma,
	}
}

// Character is a player's avatar, scoped to one guild. The same user may
// have one character per guild; storage keys carry both IDs.
//
// Travel fields are mutated exclusively by the travel orchestrator.
// Invariant: IsTraveling is true iff TravelDestination and TravelEndTime
// are both set. Normalize repairs records that violate it.
type Character struct {
	UserID        string   `json:"user_id"`
	GuildID       string   `json:"guild_id"`
	Name          string   `json:"name,omitempty"`
	Level         int      `json:"level,omitempty"`
	MovementSpeed int      `json:"movement_speed,omitempty"`
	HasMount      bool     `json:"has_mount,omitempty"`
	Stats         Stats    `json:"stats,omitempty"`
	HP            int      `json:"hp,omitempty"`
	MaxHP         int      `json:"max_hp,omitempty"`
	AC            int      `json:"ac,omitempty"`
	Inventory     []string `json:"inventory,omitempty"`

	CurrentArea       string  `json:"current_area,omitempty"`
	IsTraveling       bool    `json:"is_traveling,omitempty"`
	TravelDestination string  `json:"travel_destination,omitempty"`
	TravelEndTime     float64 `json:"travel_end_time,omitempty"` // epoch seconds

	// Sheet is the runtime d20 actor, rebuilt from stats on load.
	Sheet *d20.Actor `json:"-"`
}

// New creates a character with travel defaults applied.
func New(guildID, userID, name string) *Character {
	return &Character{
		UserID:        userID,
		GuildID:       guildID,
		Name:          name,
		Level:         1,
		MovementSpeed: DefaultMovementSpeed,
	}
}

// Speed returns the movement speed, falling back to the default for
// records authored before the field existed.
func (c *Character) Speed() int {
	if c.MovementSpeed <= 0 {
		return DefaultMovementSpeed
	}
	return c.MovementSpeed
}

// BuildSheet constructs the runtime d20 actor from the character's stats.
func (c *Character) BuildSheet() error {
	actor, err := d20.NewActor(c.UserID).
		WithHP(c.MaxHP).
		WithAC(c.AC).
		WithAttributes(c.Stats.ToAttributes()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build actor: %w", err)
	}
	if c.HP != c.MaxHP && c.HP > 0 {
		if err := actor.SetHP(c.HP); err != nil {
			return fmt.Errorf("failed to set HP: %w", err)
		}
	}
	c.Sheet = actor
	return nil
}

// UnmarshalJSON rebuilds the d20 sheet after decoding, so loaded
// characters are immediately usable at runtime.
func (c *Character) UnmarshalJSON(data []byte) error {
	type alias Character
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Character(aux)
	if c.MaxHP > 0 {
		if err := c.BuildSheet(); err != nil {
			return fmt.Errorf("failed to rebuild sheet: %w", err)
		}
	}
	return nil
}

// Normalize repairs a corrupt traveling-flag combination: a character
// flagged as traveling without a destination or end time is treated as not
// traveling. Returns true if a repair was made.
func (c *Character) Normalize(logger *slog.Logger) bool {
	if !c.IsTraveling {
		return false
	}
	if c.TravelDestination != "" && c.TravelEndTime > 0 {
		return false
	}
	if logger != nil {
		logger.Warn("Repairing corrupt travel state",
			"guild_id", c.GuildID,
			"user_id", c.UserID,
			"destination", c.TravelDestination,
			"end_time", c.TravelEndTime)
	}
	c.ClearTravel()
	return true
}

// BeginTravel sets the traveling state for a journey ending at end.
func (c *Character) BeginTravel(destination string, end time.Time) {
	c.IsTraveling = true
	c.TravelDestination = destination
	c.TravelEndTime = float64(end.UnixMilli()) / 1000.0
}

// ClearTravel resets all travel fields.
func (c *Character) ClearTravel() {
	c.IsTraveling = false
	c.TravelDestination = ""
	c.TravelEndTime = 0
}

// TravelEnd returns the journey end as a time.Time. Zero when not traveling.
func (c *Character) TravelEnd() time.Time {
	if c.TravelEndTime <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(c.TravelEndTime * 1000.0))
}

// MoveTo relocates the character to destination, which must be a direct
// exit of the current area. Connectivity is re-checked because world data
// may have been edited while a journey was in flight.
func (c *Character) MoveTo(g *world.Graph, destination string) error {
	dest, ok := g.Area(destination)
	if !ok {
		return fmt.Errorf("area not found: %s", destination)
	}
	if c.CurrentArea != "" && !g.Connected(c.CurrentArea, dest.Name) {
		return fmt.Errorf("%s is not connected to %s", dest.Name, c.CurrentArea)
	}
	c.CurrentArea = dest.Name
	return nil
}
