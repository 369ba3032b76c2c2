package render

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	exportBitDepth = 16
	exportChannels = 2
	wavFormatPCM   = 1
	int16Max       = 32767
)

// PCM16 interleaves the waveform as signed 16-bit values, truncating toward
// zero after scaling by 32767.
func PCM16(wf *Waveform) []int {
	out := make([]int, 2*wf.Frames())
	for i := range wf.Left {
		out[2*i] = int(int16(wf.Left[i] * int16Max))
		out[2*i+1] = int(int16(wf.Right[i] * int16Max))
	}
	return out
}

// WriteWAV encodes wf as a 16-bit stereo PCM WAV.
func WriteWAV(w io.WriteSeeker, wf *Waveform) error {
	enc := wav.NewEncoder(w, wf.SampleRate, exportBitDepth, exportChannels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: exportChannels, SampleRate: wf.SampleRate},
		Data:           PCM16(wf),
		SourceBitDepth: exportBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return &Error{Op: "export", Err: fmt.Errorf("write samples: %w", err)}
	}
	if err := enc.Close(); err != nil {
		return &Error{Op: "export", Err: fmt.Errorf("finalize header: %w", err)}
	}
	return nil
}

// WriteFile writes wf to path as a WAV file.
func WriteFile(path string, wf *Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return &Error{Op: "export", Err: err}
	}
	if err := WriteWAV(f, wf); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &Error{Op: "export", Err: err}
	}
	return nil
}
