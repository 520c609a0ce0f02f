package config

import "sort"

// Presets are named simulation windows, in hours.
var Presets = map[string]SimulationConfig{
	"short":   {TStart: 0, TEnd: 12, TSteps: 121},
	"day":     {TStart: 0, TEnd: 24, TSteps: 241},
	"default": {TStart: DefaultTStart, TEnd: DefaultTEnd, TSteps: DefaultTSteps},
	"week":    {TStart: 0, TEnd: 168, TSteps: 673},
	"log":     {TStart: 0, TEnd: 72, TSteps: 300, LogScale: true},
}

func GetPreset(name string) *SimulationConfig {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return &p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
