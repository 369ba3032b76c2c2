package session

import (
	"errors"
	"fmt"
)

// Channels is fixed: left carries the carrier, right carries carrier+beat.
const Channels = 2

// ErrUnsupportedConfig is wrapped by devices that cannot open a stream with
// the requested sample rate or block length.
var ErrUnsupportedConfig = errors.New("unsupported stream configuration")

// StreamConfig describes the output stream a Session asks a Device for.
type StreamConfig struct {
	SampleRate  int
	BlockLength int // frames per callback
	Channels    int
}

// BlockFunc fills one block of interleaved stereo float32 samples.
// len(out) is BlockLength*Channels. It runs on the device's audio context.
type BlockFunc func(out []float32)

// Device opens output streams. Implementations live in internal/device and
// internal/stream.
type Device interface {
	Open(cfg StreamConfig, fn BlockFunc) (Stream, error)
}

// Stream is an opened device stream.
//
// Close must halt the stream and release it synchronously: once Close
// returns, fn is never called again.
type Stream interface {
	Start() error
	Close() error
}

// DeviceError reports an output or input device that is unavailable or
// rejected the requested configuration.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
