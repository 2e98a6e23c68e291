package worlddata

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jcourtner/wayfarer/pkg/travel"
	"github.com/jcourtner/wayfarer/pkg/world"
)

// File is the authored world definition: the area graph, its groupings,
// and the encounter catalog.
type File struct {
	Name       string             `json:"name,omitempty"`
	Areas      []*world.Area      `json:"areas"`
	Regions    []world.Region     `json:"regions,omitempty"`
	Continents []world.Continent  `json:"continents,omitempty"`
	Encounters []travel.Encounter `json:"encounters,omitempty"`
}

// Load reads a world definition from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world file: %w", err)
	}
	return &f, nil
}

// BuildGraph constructs and resolves the world graph from a definition.
// Danger levels are clamped and dangling or asymmetric connections are
// logged and repaired by Resolve.
func BuildGraph(f *File, logger *slog.Logger) *world.Graph {
	g := world.NewGraph(logger)
	for _, a := range f.Areas {
		g.Add(a)
	}
	g.Resolve()
	return g
}
