package narrative

import (
	"context"
	"fmt"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/travel"
	"github.com/jcourtner/wayfarer/pkg/world"
)

// StaticNarrator produces scene summaries from authored area data. The
// LLM-backed narrator lives in the gateway process; the engine falls back
// to this one when no richer narrator is wired in.
type StaticNarrator struct{}

var _ travel.Narrator = (*StaticNarrator)(nil)

// NewStaticNarrator creates a narrator that composes from area records.
func NewStaticNarrator() *StaticNarrator {
	return &StaticNarrator{}
}

func (n *StaticNarrator) SceneSummary(ctx context.Context, c *character.Character, a *world.Area) (string, error) {
	if a.Description == "" {
		return fmt.Sprintf("%s arrives at %s.", c.Name, a.DisplayName()), nil
	}
	return fmt.Sprintf("%s arrives at %s. %s", c.Name, a.DisplayName(), a.Description), nil
}
