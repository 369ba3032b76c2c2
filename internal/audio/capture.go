package audio

import "context"

// Capture collects want samples from a blocking input. Each call to read
// refills block; the last block is trimmed to fit. When ctx is done or read
// fails, Capture stops and returns the samples gathered so far with the
// error.
func Capture(ctx context.Context, want int, block []float32, read func() error) ([]float64, error) {
	samples := make([]float64, 0, max(want, 0))
	for len(samples) < want {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		if err := read(); err != nil {
			return samples, err
		}
		for _, v := range block[:min(len(block), want-len(samples))] {
			samples = append(samples, float64(v))
		}
	}
	return samples, nil
}
