package world

import (
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxDangerLevel is the top of the authored danger scale.
const MaxDangerLevel = 10

var titleCaser = cases.Title(language.English)

// Coord is a position on the 2D world plane.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two coordinates.
func Distance(a, b Coord) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Area is a traversable node in the world graph. Connectivity is persisted
// as a list of area names and resolved against the Graph arena at load time;
// Area never holds pointers to other areas, so serialization stays acyclic.
type Area struct {
	Name                   string   `json:"name"`
	Description            string   `json:"description,omitempty"`
	Coordinates            Coord    `json:"coordinates"`
	DangerLevel            int      `json:"danger_level"`
	Continent              string   `json:"continent,omitempty"`
	AllowsIntercontinental bool     `json:"allows_intercontinental_travel,omitempty"`
	ChannelID              string   `json:"channel_id,omitempty"`
	ConnectedNames         []string `json:"connected_areas,omitempty"`
	NPCs                   []string `json:"npcs,omitempty"`
	Inventory              []string `json:"inventory,omitempty"`
}

// NewArea constructs an area with the danger level clamped to [0, MaxDangerLevel].
func NewArea(name string, x, y float64, danger int) *Area {
	a := &Area{
		Name:        name,
		Coordinates: Coord{X: x, Y: y},
		DangerLevel: danger,
	}
	a.ClampDanger()
	return a
}

// ClampDanger forces DangerLevel into the authored [0, MaxDangerLevel] range.
// Called on construction and again after loading untrusted records.
func (a *Area) ClampDanger() {
	if a.DangerLevel < 0 {
		a.DangerLevel = 0
	}
	if a.DangerLevel > MaxDangerLevel {
		a.DangerLevel = MaxDangerLevel
	}
}

// ConnectedTo reports whether name is a direct exit of this area.
// Matching is case-insensitive, same as Graph lookups.
func (a *Area) ConnectedTo(name string) bool {
	for _, n := range a.ConnectedNames {
		if equalNames(n, name) {
			return true
		}
	}
	return false
}

// DistanceTo returns the Euclidean distance to another area.
func (a *Area) DistanceTo(b *Area) float64 {
	return Distance(a.Coordinates, b.Coordinates)
}

// DisplayName returns the area name title-cased for player-facing messages.
func (a *Area) DisplayName() string {
	return titleCaser.String(a.Name)
}
