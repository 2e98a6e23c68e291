package travel

import (
	"log/slog"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcourtner/wayfarer/pkg/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCatalog() []Encounter {
	return []Encounter{
		{ID: "wolf", Name: "Wolf Pack", Type: EncounterCombat, DangerLevel: 3, RequiredPartyLevel: 1},
		{ID: "bandits", Name: "Bandit Ambush", Type: EncounterCombat, DangerLevel: 5, RequiredPartyLevel: 3},
		{ID: "merchant", Name: "Traveling Merchant", Type: EncounterEvent, DangerLevel: 0, RequiredPartyLevel: 0},
		{ID: "dragon", Name: "Dragon Sighting", Type: EncounterCombat, DangerLevel: 9, RequiredPartyLevel: 8},
	}
}

func TestDangerChance_Bounds(t *testing.T) {
	// Every danger pair under every weather must land in [0, 0.9].
	for from := 0; from <= world.MaxDangerLevel; from++ {
		for to := 0; to <= world.MaxDangerLevel; to++ {
			a := world.NewArea("a", 0, 0, from)
			b := world.NewArea("b", 1, 1, to)
			for _, w := range Weathers {
				chance := DangerChance(a, b, w)
				assert.GreaterOrEqual(t, chance, 0.0,
					"from=%d to=%d weather=%s", from, to, w.Name)
				assert.LessOrEqual(t, chance, maxDangerChance,
					"from=%d to=%d weather=%s", from, to, w.Name)
			}
		}
	}
}

func TestDangerChance_WeatherScales(t *testing.T) {
	a := world.NewArea("a", 0, 0, 3)
	b := world.NewArea("b", 1, 1, 5)

	clear, _ := WeatherByName("clear")
	storm, _ := WeatherByName("storm")

	assert.Greater(t, DangerChance(a, b, storm), DangerChance(a, b, clear),
		"storm must raise encounter chance over clear weather")
}

func TestDangerChance_DifferenceBonus(t *testing.T) {
	clear, _ := WeatherByName("clear")

	even := DangerChance(world.NewArea("a", 0, 0, 4), world.NewArea("b", 1, 1, 4), clear)
	skewed := DangerChance(world.NewArea("a", 0, 0, 1), world.NewArea("b", 1, 1, 7), clear)

	// Same danger sum, but the skewed transition is riskier.
	assert.Greater(t, skewed, even)
}

func TestGenerate_SafeZoneIsDeterministic(t *testing.T) {
	m := NewManager(testCatalog(), rand.New(rand.NewSource(42)), testLogger())
	from := world.NewArea("Marketplace Square", 0, 0, 0)
	to := world.NewArea("Quiet Meadow", 1, 0, 0)
	storm, _ := WeatherByName("storm")

	for i := 0; i < 1000; i++ {
		require.Nil(t, m.Generate(10, storm, from, to),
			"no encounter may ever fire between two danger-0 areas")
	}
}

func TestGenerate_RespectsEligibility(t *testing.T) {
	m := NewManager(testCatalog(), rand.New(rand.NewSource(7)), testLogger())
	from := world.NewArea("Dark Forest", 0, 0, 5)
	to := world.NewArea("Sunken City", 3, 4, 9)
	storm, _ := WeatherByName("storm")

	avgLevel := 3.0
	fired := 0
	for i := 0; i < 2000; i++ {
		enc := m.Generate(avgLevel, storm, from, to)
		if enc == nil {
			continue
		}
		fired++
		assert.LessOrEqual(t, float64(enc.RequiredPartyLevel), avgLevel,
			"encounter %s above party level", enc.ID)
		assert.LessOrEqual(t, enc.DangerLevel, 9,
			"encounter %s above leg danger", enc.ID)
		assert.NotEqual(t, "dragon", enc.ID,
			"dragon requires level 8")
	}
	// Chance is capped at 0.9 here, so plenty of rolls must have fired.
	assert.Greater(t, fired, 100)
}

func TestGenerate_NoEligibleEncounters(t *testing.T) {
	catalog := []Encounter{
		{ID: "dragon", Name: "Dragon Sighting", Type: EncounterCombat, DangerLevel: 9, RequiredPartyLevel: 8},
	}
	m := NewManager(catalog, rand.New(rand.NewSource(1)), testLogger())
	from := world.NewArea("a", 0, 0, 5)
	to := world.NewArea("b", 1, 1, 5)
	storm, _ := WeatherByName("storm")

	for i := 0; i < 500; i++ {
		assert.Nil(t, m.Generate(1, storm, from, to))
	}
}

func TestWeatherByName(t *testing.T) {
	w, ok := WeatherByName("rain")
	require.True(t, ok)
	assert.Equal(t, 1.3, w.SpeedModifier)
	assert.Equal(t, 1.2, w.DangerLevel)

	_, ok = WeatherByName("hail")
	assert.False(t, ok)
}

func TestRollWeather_CoversTable(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		seen[RollWeather(rng).Name] = true
	}
	assert.Len(t, seen, len(Weathers), "every weather entry should be reachable")
}
