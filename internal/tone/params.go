package tone

import (
	"errors"
	"fmt"
	"math"
)

// Tuner band used by the hum tuner and the nudge buttons.
const (
	TunerMinHz = 60.0
	TunerMaxHz = 400.0
	NudgeStep  = 0.1
)

// ErrNonFinite is returned when a parameter is NaN or infinite.
var ErrNonFinite = errors.New("tone: parameter is not finite")

// Params are the three live tone parameters. The left channel plays
// CarrierHz, the right channel plays CarrierHz+BeatHz.
type Params struct {
	CarrierHz float64 `json:"carrier"`
	BeatHz    float64 `json:"beat"`
	Volume    float64 `json:"volume"`
}

// RightHz returns the right-channel frequency.
func (p Params) RightHz() float64 {
	return p.CarrierHz + p.BeatHz
}

// Validate rejects non-finite values. Out-of-range but finite values are
// accepted; the oscillator stays numerically stable for them.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"carrier", p.CarrierHz},
		{"beat", p.BeatHz},
		{"volume", p.Volume},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s=%v: %w", f.name, f.v, ErrNonFinite)
		}
	}
	return nil
}

// Nudge moves hz by delta, clamps it to the tuner band and rounds to 0.01 Hz.
func Nudge(hz, delta float64) float64 {
	v := hz + delta
	if v < TunerMinHz {
		v = TunerMinHz
	} else if v > TunerMaxHz {
		v = TunerMaxHz
	}
	return RoundHz(v)
}

// RoundHz rounds to two decimals, the precision shown to users and stored
// in the resonance log.
func RoundHz(hz float64) float64 {
	return math.Round(hz*100) / 100
}
