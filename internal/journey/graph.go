// Package journey drifts the tone through neighbouring brainwave bands on
// its own, gliding between presets.
package journey

import "github.com/satindergrewal/binaural/internal/preset"

// Node is a band in the journey graph.
type Node struct {
	Band     preset.Band
	Adjacent []preset.Band
}

// Graph links each band to its neighbours by beat frequency. Transitions
// only follow edges, so a journey never jumps from delta to gamma.
var Graph = map[preset.Band]*Node{
	preset.Delta: {Band: preset.Delta, Adjacent: []preset.Band{preset.Theta}},
	preset.Theta: {Band: preset.Theta, Adjacent: []preset.Band{preset.Delta, preset.Alpha}},
	preset.Alpha: {Band: preset.Alpha, Adjacent: []preset.Band{preset.Theta, preset.Beta}},
	preset.Beta:  {Band: preset.Beta, Adjacent: []preset.Band{preset.Alpha, preset.Gamma}},
	preset.Gamma: {Band: preset.Gamma, Adjacent: []preset.Band{preset.Beta}},
}

// IsValidBand checks if a band exists in the graph.
func IsValidBand(b preset.Band) bool {
	_, ok := Graph[b]
	return ok
}
