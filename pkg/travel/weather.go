package travel

import "math/rand"

// Weather is a named modifier set affecting journey duration and encounter
// probability. SpeedModifier multiplies base travel time (>1.0 is slower);
// DangerLevel multiplies encounter chance (>1.0 is more dangerous).
type Weather struct {
	Name          string  `json:"name"`
	SpeedModifier float64 `json:"speed_modifier"`
	DangerLevel   float64 `json:"danger_level"`
}

// Weathers is the fixed weather table.
var Weathers = []Weather{
	{Name: "clear", SpeedModifier: 1.0, DangerLevel: 1.0},
	{Name: "rain", SpeedModifier: 1.3, DangerLevel: 1.2},
	{Name: "storm", SpeedModifier: 1.8, DangerLevel: 1.5},
	{Name: "fog", SpeedModifier: 1.4, DangerLevel: 1.3},
	{Name: "wind", SpeedModifier: 1.2, DangerLevel: 1.1},
}

// RollWeather picks a weather entry uniformly at random. Weather is rolled
// once per journey at departure and never re-rolled mid-flight, so a
// journey's conditions stay narratively stable.
func RollWeather(rng *rand.Rand) Weather {
	return Weathers[rng.Intn(len(Weathers))]
}

// WeatherByName looks up a weather entry, for tests and admin tooling.
func WeatherByName(name string) (Weather, bool) {
	for _, w := range Weathers {
		if w.Name == name {
			return w, true
		}
	}
	return Weather{}, false
}
