package travel

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/jcourtner/wayfarer/pkg/world"
)

// EncounterType classifies an encounter definition.
type EncounterType string

const (
	EncounterCombat EncounterType = "combat"
	EncounterEvent  EncounterType = "event"
)

// maxDangerChance caps the per-roll encounter probability. Travel is never
// guaranteed-dangerous.
const maxDangerChance = 0.9

// Encounter is an immutable definition from the catalog. Occurrences are
// recorded by appending a copy to a session's encounter log.
type Encounter struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Type               EncounterType  `json:"type"`
	Description        string         `json:"description,omitempty"`
	DangerLevel        int            `json:"danger_level"`
	RequiredPartyLevel int            `json:"required_party_level"`
	Rewards            map[string]int `json:"rewards,omitempty"`
}

// DangerChance computes the encounter probability for one roll between two
// areas under the given weather. Danger levels are authored on a 0-10
// scale; the /20 normalization targets a 0-50% baseline before weather,
// and the difference bonus makes transitions into unfamiliar danger
// slightly riskier.
func DangerChance(from, to *world.Area, w Weather) float64 {
	base := float64(from.DangerLevel+to.DangerLevel) / 20.0
	diff := from.DangerLevel - to.DangerLevel
	if diff < 0 {
		diff = -diff
	}
	chance := (base + float64(diff)*0.05) * w.DangerLevel
	if chance < 0 {
		return 0
	}
	if chance > maxDangerChance {
		return maxDangerChance
	}
	return chance
}

// Manager decides, once per travel tick, whether a random encounter fires
// and which one.
type Manager struct {
	catalog []Encounter
	rng     *rand.Rand
	logger  *slog.Logger
}

// NewManager creates an encounter manager over a catalog. The catalog is
// loaded once and treated as static. A nil rng gets a time-seeded source.
func NewManager(catalog []Encounter, rng *rand.Rand, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{catalog: catalog, rng: rng, logger: logger}
}

// CatalogSize returns the number of encounter definitions loaded.
func (m *Manager) CatalogSize() int {
	return len(m.catalog)
}

// Generate rolls for an encounter on a leg between two areas. Returns nil
// when nothing fires.
//
// Two danger-0 areas are a safe zone: nil is returned before any RNG draw,
// so safety there is deterministic regardless of seed.
func (m *Manager) Generate(avgPartyLevel float64, w Weather, from, to *world.Area) *Encounter {
	if from.DangerLevel == 0 && to.DangerLevel == 0 {
		return nil
	}

	if m.rng.Float64() > DangerChance(from, to, w) {
		return nil
	}

	maxDanger := from.DangerLevel
	if to.DangerLevel > maxDanger {
		maxDanger = to.DangerLevel
	}

	var eligible []Encounter
	for _, e := range m.catalog {
		if float64(e.RequiredPartyLevel) <= avgPartyLevel && e.DangerLevel <= maxDanger {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		m.logger.Debug("No eligible encounters for leg",
			"from", from.Name, "to", to.Name, "avg_level", avgPartyLevel)
		return nil
	}

	// Weighting by repetition: danger and weather bias the pick without a
	// separate normalization step.
	dangerWeight := maxDanger / 2
	if dangerWeight < 1 {
		dangerWeight = 1
	}

	var weighted []Encounter
	for _, e := range eligible {
		switch e.Type {
		case EncounterCombat:
			n := dangerWeight
			if w.DangerLevel > 1.2 {
				n *= 2
			}
			for i := 0; i < n; i++ {
				weighted = append(weighted, e)
			}
		case EncounterEvent:
			n := 1
			if w.DangerLevel < 1.2 {
				n = 2
			}
			for i := 0; i < n; i++ {
				weighted = append(weighted, e)
			}
		default:
			weighted = append(weighted, e)
		}
	}

	pick := weighted[m.rng.Intn(len(weighted))]
	return &pick
}
