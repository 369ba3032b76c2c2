package journey

import "github.com/satindergrewal/binaural/internal/preset"

// bandInfo is shown in status and logs alongside the band name.
var bandInfo = map[preset.Band]struct {
	lowHz, highHz float64
	text          string
}{
	preset.Delta: {0, 4, "deep sleep, healing, unconscious drift"},
	preset.Theta: {4, 8, "meditation, hypnagogia, vivid imagery"},
	preset.Alpha: {8, 13, "relaxed wakefulness, calm focus"},
	preset.Beta:  {13, 30, "alert thinking, concentration, energy"},
	preset.Gamma: {30, 1e9, "integration, heightened perception"},
}

// Describe returns a short description of a band.
func Describe(b preset.Band) string {
	if info, ok := bandInfo[b]; ok {
		return info.text
	}
	return string(b) + " band"
}

// BandFor classifies a beat frequency. Negative beats count by magnitude.
func BandFor(beatHz float64) preset.Band {
	if beatHz < 0 {
		beatHz = -beatHz
	}
	for _, b := range preset.Bands {
		info := bandInfo[b]
		if beatHz >= info.lowHz && beatHz < info.highHz {
			return b
		}
	}
	return preset.Gamma
}
