package world

// Region groups areas for narrative and lookup purposes.
type Region struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Continent   string   `json:"continent,omitempty"`
	AreaNames   []string `json:"areas,omitempty"`
}

// Continent is the top-level grouping. Travel between areas on different
// continents requires the departure area to allow intercontinental travel.
type Continent struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	RegionNames []string `json:"regions,omitempty"`
}

// SameContinent reports whether two areas share a continent. Areas with no
// continent authored are treated as local to each other.
func SameContinent(a, b *Area) bool {
	if a.Continent == "" || b.Continent == "" {
		return true
	}
	return equalNames(a.Continent, b.Continent)
}
