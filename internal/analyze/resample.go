package analyze

// Resample maps x from rate `from` to rate `to` by linear interpolation over
// the index mapping. The output has int(len(x)*to/from) samples; output i
// reads input position i*len(x)/outLen, and positions past the last input
// sample hold the last value.
//
// This is deliberately coarse (no anti-alias filter). Test fixtures depend on
// it being reproduced exactly.
func Resample(x []float64, from, to int) []float64 {
	if from <= 0 || to <= 0 || len(x) == 0 {
		return nil
	}
	if from == to {
		return x
	}
	n := len(x)
	outLen := int(float64(n) * float64(to) / float64(from))
	out := make([]float64, outLen)
	last := n - 1
	step := float64(n) / float64(outLen)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = x[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = x[j] + frac*(x[j+1]-x[j])
	}
	return out
}
