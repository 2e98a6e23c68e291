package character

import (
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jcourtner/wayfarer/pkg/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNew_Defaults(t *testing.T) {
	c := New("guild1", "user1", "Aria")
	if c.Level != 1 {
		t.Errorf("Expected level 1, got %d", c.Level)
	}
	if c.MovementSpeed != DefaultMovementSpeed {
		t.Errorf("Expected default speed, got %d", c.MovementSpeed)
	}
	if c.IsTraveling {
		t.Error("New character should not be traveling")
	}
}

func TestSpeed_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		speed    int
		expected int
	}{
		{"zero falls back", 0, DefaultMovementSpeed},
		{"negative falls back", -10, DefaultMovementSpeed},
		{"positive kept", 15, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Character{MovementSpeed: tt.speed}
			if got := c.Speed(); got != tt.expected {
				t.Errorf("Expected speed %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestTravelState_RoundTrip(t *testing.T) {
	c := New("guild1", "user1", "Aria")
	c.CurrentArea = "Marketplace Square"

	end := time.Now().Add(25 * time.Second)
	c.BeginTravel("Dark Forest", end)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Failed to marshal character: %v", err)
	}

	var loaded Character
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to unmarshal character: %v", err)
	}

	if !loaded.IsTraveling {
		t.Error("Expected traveling flag to survive round trip")
	}
	if loaded.TravelDestination != "Dark Forest" {
		t.Errorf("Expected destination Dark Forest, got %q", loaded.TravelDestination)
	}
	drift := loaded.TravelEnd().Sub(end)
	if math.Abs(drift.Seconds()) > 0.01 {
		t.Errorf("End time drifted %v across round trip", drift)
	}
}

func TestClearTravel(t *testing.T) {
	c := New("guild1", "user1", "Aria")
	c.BeginTravel("Dark Forest", time.Now().Add(time.Minute))
	c.ClearTravel()

	if c.IsTraveling || c.TravelDestination != "" || c.TravelEndTime != 0 {
		t.Errorf("Expected travel fields reset, got %+v", c)
	}
	if !c.TravelEnd().IsZero() {
		t.Error("Expected zero end time after clear")
	}
}

func TestNormalize_RepairsCorruptState(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Character)
		repaired bool
	}{
		{
			name:     "not traveling is untouched",
			mutate:   func(c *Character) {},
			repaired: false,
		},
		{
			name: "consistent traveling state is untouched",
			mutate: func(c *Character) {
				c.BeginTravel("Dark Forest", time.Now().Add(time.Minute))
			},
			repaired: false,
		},
		{
			name: "traveling without destination is repaired",
			mutate: func(c *Character) {
				c.IsTraveling = true
				c.TravelEndTime = float64(time.Now().Unix())
			},
			repaired: true,
		},
		{
			name: "traveling without end time is repaired",
			mutate: func(c *Character) {
				c.IsTraveling = true
				c.TravelDestination = "Dark Forest"
			},
			repaired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("guild1", "user1", "Aria")
			tt.mutate(c)
			if got := c.Normalize(testLogger()); got != tt.repaired {
				t.Errorf("Normalize() = %v, want %v", got, tt.repaired)
			}
			if tt.repaired && c.IsTraveling {
				t.Error("Expected traveling flag cleared after repair")
			}
		})
	}
}

func TestBuildSheet_RestoredOnLoad(t *testing.T) {
	c := New("guild1", "user1", "Aria")
	c.MaxHP = 20
	c.HP = 12
	c.AC = 14
	c.Stats = Stats{Strength: 14, Dexterity: 12, Constitution: 13, Intelligence: 10, Wisdom: 11, Charisma: 8}
	if err := c.BuildSheet(); err != nil {
		t.Fatalf("Failed to build sheet: %v", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var loaded Character
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if loaded.Sheet == nil {
		t.Fatal("Expected sheet rebuilt on load")
	}
	if loaded.Sheet.HP() != 12 {
		t.Errorf("Expected HP 12 on rebuilt sheet, got %d", loaded.Sheet.HP())
	}
}

func TestMoveTo(t *testing.T) {
	g := world.NewGraph(testLogger())
	g.Add(world.NewArea("Marketplace Square", 0, 0, 0))
	g.Add(world.NewArea("Dark Forest", 3, 4, 5))
	g.Add(world.NewArea("Sunken City", 10, 10, 9))
	if err := g.Connect("Marketplace Square", "Dark Forest"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	c := New("guild1", "user1", "Aria")
	c.CurrentArea = "Marketplace Square"

	if err := c.MoveTo(g, "Dark Forest"); err != nil {
		t.Fatalf("Expected move to connected area, got %v", err)
	}
	if c.CurrentArea != "Dark Forest" {
		t.Errorf("Expected current area Dark Forest, got %q", c.CurrentArea)
	}

	if err := c.MoveTo(g, "Sunken City"); err == nil {
		t.Error("Expected error moving to unconnected area")
	}
	if err := c.MoveTo(g, "Atlantis"); err == nil {
		t.Error("Expected error moving to unknown area")
	}
	if c.CurrentArea != "Dark Forest" {
		t.Errorf("Failed moves must not relocate, got %q", c.CurrentArea)
	}
}
