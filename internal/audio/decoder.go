package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

// DecodeFile runs FFmpeg to decode any audio file to interleaved stereo
// float samples at sampleRate.
func DecodeFile(path string, sampleRate int) ([]float64, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return BytesToFloats(out), nil
}

// BytesToFloats converts little-endian float32 bytes to float64 samples.
// A trailing partial sample is dropped.
func BytesToFloats(b []byte) []float64 {
	samples := make([]float64, len(b)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return samples
}
