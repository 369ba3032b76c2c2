package analyze

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	"github.com/satindergrewal/binaural/internal/audio"
)

var (
	// ErrNotWAV is returned by LoadWAV for input without a RIFF/WAVE header.
	ErrNotWAV = errors.New("analyze: not a WAV file")
	// ErrUnsupportedFormat is returned by LoadWAV for encodings other than
	// integer PCM and 32/64-bit IEEE float.
	ErrUnsupportedFormat = errors.New("analyze: unsupported WAV encoding")
)

// WAVE format tags.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// LoadWAV decodes a PCM or IEEE float WAV at its native rate and channel
// layout, scaled to [-1, 1).
func LoadWAV(r io.ReadSeeker) (Signal, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Signal{}, ErrNotWAV
	}
	switch dec.WavAudioFormat {
	case formatPCM, formatExtensible:
	case formatIEEEFloat:
		return loadFloat(dec)
	default:
		return Signal{}, fmt.Errorf("%w: format tag %#x", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("decode wav: %w", err)
	}

	depth := int(dec.BitDepth)
	if depth <= 0 {
		depth = buf.SourceBitDepth
	}
	scale := 1 / float64(int64(1)<<(depth-1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		if depth == 8 {
			v -= 128 // 8-bit WAV is unsigned
		}
		samples[i] = float64(v) * scale
	}
	return Signal{
		Samples:    samples,
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
	}, nil
}

// loadFloat reads little-endian float32 or float64 samples from the data
// chunk. The integer buffer of the wav decoder would hand back raw bit
// patterns for these.
func loadFloat(dec *wav.Decoder) (Signal, error) {
	var size int
	switch dec.BitDepth {
	case 32, 64:
		size = int(dec.BitDepth) / 8
	default:
		return Signal{}, fmt.Errorf("%w: %d-bit float", ErrUnsupportedFormat, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return Signal{}, fmt.Errorf("decode wav: %w", err)
	}
	if dec.PCMChunk == nil {
		return Signal{}, fmt.Errorf("decode wav: %w", wav.ErrPCMChunkNotFound)
	}
	raw, err := io.ReadAll(io.LimitReader(dec.PCMChunk, int64(dec.PCMSize)))
	if err != nil {
		return Signal{}, fmt.Errorf("decode wav: %w", err)
	}

	samples := make([]float64, len(raw)/size)
	for i := range samples {
		b := raw[i*size:]
		if size == 4 {
			samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		} else {
			samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
	}
	return Signal{
		Samples:    samples,
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
	}, nil
}

// LoadFile reads a hum recording. WAV files keep their native rate and are
// resampled by Analyze; other formats (mp3, ogg, flac, ...) are decoded by
// ffmpeg straight to stereo at rate.
func LoadFile(path string, rate int) (Signal, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		f, err := os.Open(path)
		if err != nil {
			return Signal{}, err
		}
		defer f.Close()
		sig, err := LoadWAV(f)
		if err != nil {
			return Signal{}, fmt.Errorf("%s: %w", path, err)
		}
		return sig, nil
	}

	samples, err := audio.DecodeFile(path, rate)
	if err != nil {
		return Signal{}, err
	}
	return Signal{Samples: samples, Channels: audio.Channels, SampleRate: rate}, nil
}
