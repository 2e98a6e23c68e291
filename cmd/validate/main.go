package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jcourtner/wayfarer/internal/worlddata"
	"github.com/jcourtner/wayfarer/pkg/travel"
	"github.com/jcourtner/wayfarer/pkg/world"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <world.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	v := &WorldValidator{}

	if err := v.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("World file is valid!")
}

type WorldValidator struct {
	errors []string
}

func (v *WorldValidator) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *WorldValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	f, err := worlddata.Load(filename)
	if err != nil {
		return err
	}

	v.errors = nil
	v.validateAreas(f.Areas)
	v.validateRegions(f)
	v.validateEncounters(f.Encounters)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *WorldValidator) validateAreas(areas []*world.Area) {
	byName := make(map[string]*world.Area, len(areas))
	for _, a := range areas {
		name := strings.ToLower(strings.TrimSpace(a.Name))
		if name == "" {
			v.errorf("area with empty name")
			continue
		}
		if _, dup := byName[name]; dup {
			v.errorf("duplicate area name: %s", a.Name)
			continue
		}
		byName[name] = a

		if a.DangerLevel < 0 || a.DangerLevel > world.MaxDangerLevel {
			v.errorf("area %s: danger_level %d outside [0, %d]",
				a.Name, a.DangerLevel, world.MaxDangerLevel)
		}
	}

	for _, a := range areas {
		for _, conn := range a.ConnectedNames {
			other, ok := byName[strings.ToLower(strings.TrimSpace(conn))]
			if !ok {
				v.errorf("area %s: dangling connection to unknown area %q", a.Name, conn)
				continue
			}
			if !other.ConnectedTo(a.Name) {
				v.errorf("asymmetric connection: %s lists %s, but not the reverse",
					a.Name, other.Name)
			}
			if !world.SameContinent(a, other) && !a.AllowsIntercontinental && !other.AllowsIntercontinental {
				v.errorf("intercontinental connection %s <-> %s with no port on either side",
					a.Name, other.Name)
			}
		}
	}
}

func (v *WorldValidator) validateRegions(f *worlddata.File) {
	areaNames := make(map[string]bool, len(f.Areas))
	for _, a := range f.Areas {
		areaNames[strings.ToLower(a.Name)] = true
	}
	continentNames := make(map[string]bool, len(f.Continents))
	for _, c := range f.Continents {
		continentNames[strings.ToLower(c.Name)] = true
	}

	for _, r := range f.Regions {
		for _, name := range r.AreaNames {
			if !areaNames[strings.ToLower(name)] {
				v.errorf("region %s references unknown area %q", r.Name, name)
			}
		}
		if r.Continent != "" && len(continentNames) > 0 && !continentNames[strings.ToLower(r.Continent)] {
			v.errorf("region %s references unknown continent %q", r.Name, r.Continent)
		}
	}
}

func (v *WorldValidator) validateEncounters(encounters []travel.Encounter) {
	seen := make(map[string]bool, len(encounters))
	for _, e := range encounters {
		if e.ID == "" {
			v.errorf("encounter %q has no id", e.Name)
			continue
		}
		if seen[e.ID] {
			v.errorf("duplicate encounter id: %s", e.ID)
		}
		seen[e.ID] = true

		switch e.Type {
		case travel.EncounterCombat, travel.EncounterEvent:
		default:
			v.errorf("encounter %s: unknown type %q", e.ID, e.Type)
		}
		if e.DangerLevel < 0 || e.DangerLevel > world.MaxDangerLevel {
			v.errorf("encounter %s: danger_level %d outside [0, %d]",
				e.ID, e.DangerLevel, world.MaxDangerLevel)
		}
		if e.RequiredPartyLevel < 0 {
			v.errorf("encounter %s: negative required_party_level", e.ID)
		}
	}
}
