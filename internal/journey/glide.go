package journey

import "github.com/satindergrewal/binaural/internal/tone"

// Smoothstep eases t in [0, 1] with zero slope at both ends, so a glide
// starts and lands without an audible kink in pitch.
func Smoothstep(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	}
	return t * t * (3 - 2*t)
}

// blend moves carrier and beat of p from `from` toward `to` by t and
// leaves volume as p has it. At t=1 the result is exactly `to`.
func blend(p, from, to tone.Params, t float64) tone.Params {
	p.CarrierHz = from.CarrierHz*(1-t) + to.CarrierHz*t
	p.BeatHz = from.BeatHz*(1-t) + to.BeatHz*t
	return p
}
