package audio

import "time"

// Network stream format. Opus only accepts 48 kHz with 20 ms frames here,
// so the stream backend runs sessions at exactly this rate and block length.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // frames per channel per 20ms block
	FrameSamples  = FrameSize * Channels // total interleaved samples per block
	FrameBytes    = FrameSamples * 2     // bytes per block (int16 = 2 bytes)
)

// Local device defaults, matching common sound card rates.
const (
	DeviceSampleRate  = 44100
	DeviceBlockLength = 1024
)
