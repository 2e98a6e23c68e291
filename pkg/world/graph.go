package world

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
)

// suggestionMaxDistance bounds how far a fuzzy match may be from the query
// before we stop offering it as a "did you mean".
const suggestionMaxDistance = 3

// Graph is the arena of world areas, addressed by name. Areas reference each
// other only through name lists; the graph resolves and validates those
// references, so there are no object cycles to serialize.
type Graph struct {
	mu         sync.RWMutex
	areas      map[string]*Area // keyed by folded name
	resolvedAt time.Time
	logger     *slog.Logger
}

// NewGraph creates an empty world graph.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		areas:  make(map[string]*Area),
		logger: logger,
	}
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func equalNames(a, b string) bool {
	return foldName(a) == foldName(b)
}

// Add inserts or replaces an area and invalidates the resolved state.
func (g *Graph) Add(a *Area) {
	a.ClampDanger()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.areas[foldName(a.Name)] = a
	g.resolvedAt = time.Time{}
}

// Area looks up an area by name. Matching is case-insensitive.
func (g *Graph) Area(name string) (*Area, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.areas[foldName(name)]
	return a, ok
}

// Names returns the names of all areas in the graph.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.areas))
	for _, a := range g.areas {
		names = append(names, a.Name)
	}
	return names
}

// Len returns the number of areas in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.areas)
}

// Suggest returns the closest area name to the query by edit distance,
// for "did you mean" messages. Returns "" when nothing is close enough.
func (g *Graph) Suggest(name string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	best := ""
	bestDist := suggestionMaxDistance + 1
	query := foldName(name)
	for folded, a := range g.areas {
		d := levenshtein.ComputeDistance(query, folded)
		if d < bestDist {
			best = a.Name
			bestDist = d
		}
	}
	return best
}

// Connect links two areas bidirectionally. Connectivity is symmetric by
// construction; asymmetric data can only arrive from static files and is
// repaired by Resolve.
func (g *Graph) Connect(nameA, nameB string) error {
	a, ok := g.Area(nameA)
	if !ok {
		return fmt.Errorf("area not found: %s", nameA)
	}
	b, ok := g.Area(nameB)
	if !ok {
		return fmt.Errorf("area not found: %s", nameB)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !a.ConnectedTo(b.Name) {
		a.ConnectedNames = append(a.ConnectedNames, b.Name)
	}
	if !b.ConnectedTo(a.Name) {
		b.ConnectedNames = append(b.ConnectedNames, a.Name)
	}
	g.resolvedAt = time.Time{}
	return nil
}

// Resolve validates every area's connection list against the arena.
// Unresolved names are logged and dropped (a dangling reference degrades to
// "no such exit", never a crash). Asymmetric connections found in loaded
// data are logged and repaired so that symmetry holds afterwards.
func (g *Graph) Resolve() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, a := range g.areas {
		// Fresh slice: readers holding a snapshot of the old one must
		// never see it rewritten underneath them.
		kept := make([]string, 0, len(a.ConnectedNames))
		for _, name := range a.ConnectedNames {
			other, ok := g.areas[foldName(name)]
			if !ok {
				g.logger.Warn("Dropping unresolved area connection",
					"area", a.Name, "connection", name)
				continue
			}
			kept = append(kept, other.Name)
		}
		a.ConnectedNames = kept
	}

	// Repair asymmetry after dangling names are gone.
	for _, a := range g.areas {
		for _, name := range a.ConnectedNames {
			other := g.areas[foldName(name)]
			if !other.ConnectedTo(a.Name) {
				g.logger.Warn("Repairing asymmetric area connection",
					"area", other.Name, "missing_connection", a.Name)
				other.ConnectedNames = append(other.ConnectedNames, a.Name)
			}
		}
	}

	g.resolvedAt = time.Now()
}

// Invalidate marks the resolved connection state stale, forcing the next
// EnsureResolved to re-run Resolve. Called after admin edits to area data.
func (g *Graph) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolvedAt = time.Time{}
}

// EnsureResolved re-resolves connections if they have never been resolved
// or the last resolution is older than maxAge. Connectivity rarely changes,
// so callers typically pass a long TTL.
func (g *Graph) EnsureResolved(maxAge time.Duration) {
	g.mu.RLock()
	stale := g.resolvedAt.IsZero() || time.Since(g.resolvedAt) > maxAge
	g.mu.RUnlock()
	if stale {
		g.Resolve()
	}
}

// Connected reports whether to is a direct exit of from. The connection
// list is read under the graph lock, so callers are safe against a
// concurrent Resolve; use this over Area.ConnectedTo on shared areas.
func (g *Graph) Connected(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.areas[foldName(from)]
	if !ok {
		return false
	}
	return a.ConnectedTo(to)
}
