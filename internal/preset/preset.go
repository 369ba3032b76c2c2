// Package preset keeps named carrier/beat pairs and the user's resonance
// log on disk as JSON.
package preset

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
	ErrEmptyName      = errors.New("preset name is empty")
)

// Preset is one stored tone. Volume is not part of a preset; loading one
// keeps the current volume.
type Preset struct {
	CarrierHz   float64 `json:"carrier"`
	BeatHz      float64 `json:"beat"`
	Description string  `json:"desc"`
}

// Validate rejects values the oscillator should never be handed from disk.
func (p Preset) Validate() error {
	switch {
	case math.IsNaN(p.CarrierHz) || math.IsInf(p.CarrierHz, 0),
		math.IsNaN(p.BeatHz) || math.IsInf(p.BeatHz, 0):
		return fmt.Errorf("%w: non-finite frequency", ErrInvalidPreset)
	case p.CarrierHz <= 0:
		return fmt.Errorf("%w: carrier %v Hz must be positive", ErrInvalidPreset, p.CarrierHz)
	case p.BeatHz < 0:
		return fmt.Errorf("%w: beat %v Hz must not be negative", ErrInvalidPreset, p.BeatHz)
	}
	return nil
}

// Named pairs a preset with its name, for ordered listings.
type Named struct {
	Name string `json:"name"`
	Preset
}

// Category groups presets for display.
type Category struct {
	Name    string  `json:"name"`
	Band    Band    `json:"band,omitempty"`
	Presets []Named `json:"presets"`
}

// Band is a brainwave band, named by its beat range.
type Band string

const (
	Delta Band = "delta"
	Theta Band = "theta"
	Alpha Band = "alpha"
	Beta  Band = "beta"
	Gamma Band = "gamma"
)

// Bands lists the brainwave bands from slowest to fastest.
var Bands = []Band{Delta, Theta, Alpha, Beta, Gamma}

// CustomCategory holds every preset that is not built in.
const CustomCategory = "Custom Sounds"

type builtinCategory struct {
	name    string
	band    Band
	presets []Named
}

func named(name string, carrier, beat float64, desc string) Named {
	return Named{Name: name, Preset: Preset{CarrierHz: carrier, BeatHz: beat, Description: desc}}
}

var builtins = []builtinCategory{
	{"Delta Waves (0.5–4 Hz)", Delta, []Named{
		named("Delta Sleep", 120, 3.5, "Delta rhythm for restful, deep sleep."),
		named("Delta Healing", 100, 2.5, "Deep delta for physical healing and regeneration."),
		named("Delta Renewal", 100, 1.0, "Ultra-low delta for cellular repair."),
		named("Deep Sleep", 100, 1.5, "Sub-delta drift: ideal for deep sleep and hypnosis."),
		named("Float State", 80, 0.5, "Delta flotation state for deep introspection."),
		named("Astral Hum", 30, 0.7, "Sub-delta hum to ease into astral travel."),
		named("Focus 3", 200, 3.0, "Monroe Institute Focus 3 pre-hypnagogic state."),
	}},
	{"Theta Waves (4–8 Hz)", Theta, []Named{
		named("Theta Relax", 200, 6.0, "Gentle theta for relaxation and stress reduction."),
		named("Theta Meditation", 250, 5.0, "Theta rhythm for deep meditation."),
		named("Theta Insight", 220, 7.0, "Theta for creative insights and intuition."),
		named("Gateway Voyage", 100, 4.0, "Access deeper mind states, OBEs."),
		named("Lucid Entry", 140, 6.0, "High-theta for lucid dreaming."),
		named("Deep Theta OBE", 180, 5.5, "Theta tuned for out-of-body induction."),
		named("Astra Journey", 210, 7.5, "Theta blend for guided astral exploration."),
		named("OBE Induction", 130, 4.5, "Hemi-Sync out-of-body induction pattern."),
		named("Patterning", 110, 7.0, "Hemi-Sync patterning for visualization."),
		named("Stargate Schumann", 100, 7.83, "Schumann resonance for clarity."),
		named("Stargate Protocol I", 90, 6.5, "Project Stargate training pattern I."),
	}},
	{"Alpha Waves (8–12 Hz)", Alpha, []Named{
		named("Alpha Relax", 300, 10.0, "Alpha for calm and stress relief."),
		named("Alpha Creativity", 270, 8.0, "Alpha to boost creative thinking."),
		named("Alpha Focus", 260, 12.0, "Upper alpha for improved concentration."),
		named("Alpha Memory", 240, 9.0, "Alpha to enhance memory retention."),
		named("Mind Mirror", 150, 8.0, "Alpha/SMR blend for clarity."),
		named("Light Journey", 200, 10.0, "Alpha exploration for awareness."),
		named("Focus 10", 100, 10.0, "Mind awake, body asleep state."),
		named("Focus 12", 100, 12.0, "Expanded awareness state."),
		named("Stargate Protocol II", 90, 9.5, "Project Stargate pattern II."),
	}},
	{"Beta Waves (13–30 Hz)", Beta, []Named{
		named("Beta Focus", 210, 14.0, "Low beta for focused attention."),
		named("Beta Cognition", 200, 16.0, "Mid beta for analytical thinking."),
		named("Beta Alertness", 160, 18.0, "High beta for alertness."),
		named("Beta Energy", 150, 20.0, "High beta for motivation."),
		named("Beta Performance", 180, 22.0, "Peak beta for performance."),
		named("Peak Focus", 250, 14.0, "Low-beta concentration boost."),
		named("Brain Spark", 200, 25.0, "High-beta spark for alertness."),
		named("Focus 15", 200, 15.0, "Focus 15: no-time awareness."),
		named("Focus 21", 150, 21.0, "Focus 21: astral time travel."),
		named("Focus 27", 150, 27.0, "Focus 27: exploration."),
	}},
	{"Gamma Waves (30–50 Hz)", Gamma, []Named{
		named("Gamma Integration", 400, 30.0, "Gamma for information integration."),
		named("Gamma Learning", 360, 35.0, "Gamma for accelerated learning."),
		named("Gamma Cognition", 420, 40.0, "High gamma for cognition."),
		named("Gamma Consciousness", 300, 45.0, "Gamma for expanded awareness."),
	}},
}

// Defaults returns the built-in presets keyed by name.
func Defaults() map[string]Preset {
	m := make(map[string]Preset, 41)
	for _, c := range builtins {
		for _, p := range c.presets {
			m[p.Name] = p.Preset
		}
	}
	return m
}

// IsBuiltin reports whether name is one of the shipped presets.
func IsBuiltin(name string) bool {
	_, ok := builtinIndex[name]
	return ok
}

var builtinIndex = Defaults()

// BandNames returns the built-in preset names of a band in display order.
func BandNames(b Band) []string {
	for _, c := range builtins {
		if c.band == b {
			names := make([]string, len(c.presets))
			for i, p := range c.presets {
				names[i] = p.Name
			}
			return names
		}
	}
	return nil
}
