package tone

import "math"

const twoPi = 2 * math.Pi

// Phase is the oscillator state carried between blocks, in radians.
type Phase struct {
	Left  float64
	Right float64
}

// Fill writes len(out)/2 interleaved stereo frames into out and returns the
// phase advanced past the last frame. Frame i is
//
//	left  = sin(ph.Left  + 2π·carrier/sampleRate·i) · volume
//	right = sin(ph.Right + 2π·(carrier+beat)/sampleRate·i) · volume
//
// Because the returned phase continues the ramp instead of restarting it, a
// frequency change between blocks bends the slope without moving the phase.
func Fill(out []float32, ph Phase, p Params, sampleRate float64) Phase {
	n := len(out) / 2
	lStep := twoPi * cyclesPerSample(p.CarrierHz, sampleRate)
	rStep := twoPi * (cyclesPerSample(p.CarrierHz, sampleRate) + cyclesPerSample(p.BeatHz, sampleRate))
	vol := p.Volume

	for i := 0; i < n; i++ {
		fi := float64(i)
		out[2*i] = float32(math.Sin(ph.Left+lStep*fi) * vol)
		out[2*i+1] = float32(math.Sin(ph.Right+rStep*fi) * vol)
	}

	fn := float64(n)
	return Phase{
		Left:  Wrap(ph.Left + lStep*fn),
		Right: Wrap(ph.Right + rStep*fn),
	}
}

// FillFloat64 is Fill for separate float64 channel buffers of equal length.
func FillFloat64(left, right []float64, ph Phase, p Params, sampleRate float64) Phase {
	n := min(len(left), len(right))
	lStep := twoPi * cyclesPerSample(p.CarrierHz, sampleRate)
	rStep := twoPi * (cyclesPerSample(p.CarrierHz, sampleRate) + cyclesPerSample(p.BeatHz, sampleRate))

	for i := 0; i < n; i++ {
		fi := float64(i)
		left[i] = math.Sin(ph.Left+lStep*fi) * p.Volume
		right[i] = math.Sin(ph.Right+rStep*fi) * p.Volume
	}

	fn := float64(n)
	return Phase{
		Left:  Wrap(ph.Left + lStep*fn),
		Right: Wrap(ph.Right + rStep*fn),
	}
}

// cyclesPerSample reduces hz/sampleRate modulo one cycle. Whole cycles do not
// change the phase, and dropping them keeps huge finite inputs from
// overflowing once multiplied by 2π.
func cyclesPerSample(hz, sampleRate float64) float64 {
	c := math.Mod(hz/sampleRate, 1)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// Wrap maps x into [0, 2π).
func Wrap(x float64) float64 {
	r := math.Mod(x, twoPi)
	if math.IsNaN(r) {
		return 0
	}
	if r < 0 {
		r += twoPi
	}
	if r >= twoPi {
		r = 0
	}
	return r
}
