package preset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync"
	"time"

	"github.com/satindergrewal/binaural/internal/tone"
)

// Entry is one marked tone. Timestamp is kept as text so files written by
// older tools with zone-less ISO times still load.
type Entry struct {
	Hz        float64 `json:"hz"`
	Timestamp string  `json:"timestamp"`
}

// ErrInvalidEntry is returned for a resonance record without a positive,
// finite hz.
var ErrInvalidEntry = errors.New("invalid resonance entry")

// rawEntry tells a missing hz apart from zero.
type rawEntry struct {
	Hz        *float64 `json:"hz"`
	Timestamp string   `json:"timestamp"`
}

func (r rawEntry) entry() (Entry, error) {
	switch {
	case r.Hz == nil:
		return Entry{}, fmt.Errorf("%w: missing hz", ErrInvalidEntry)
	case math.IsNaN(*r.Hz) || math.IsInf(*r.Hz, 0) || *r.Hz <= 0:
		return Entry{}, fmt.Errorf("%w: hz %v must be positive", ErrInvalidEntry, *r.Hz)
	}
	return Entry{Hz: *r.Hz, Timestamp: r.Timestamp}, nil
}

// ResonanceLog is an append-only JSON list of tones the user marked as
// resonant.
type ResonanceLog struct {
	path string
	mu   sync.Mutex
}

func NewResonanceLog(path string) *ResonanceLog {
	return &ResonanceLog{path: path}
}

// Entries returns the saved tones, oldest first. A missing file is an
// empty log.
func (l *ResonanceLog) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Mark appends hz (rounded to 0.01) with the given time and returns the new
// entry and the total number of entries.
func (l *ResonanceLog) Mark(hz float64, at time.Time) (Entry, int, error) {
	if err := (tone.Params{CarrierHz: hz}).Validate(); err != nil {
		return Entry{}, 0, err
	}
	if hz <= 0 {
		return Entry{}, 0, fmt.Errorf("%w: hz %v must be positive", ErrInvalidEntry, hz)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return Entry{}, 0, err
	}
	e := Entry{Hz: tone.RoundHz(hz), Timestamp: at.Format(time.RFC3339Nano)}
	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Entry{}, 0, fmt.Errorf("encode resonance log: %w", err)
	}
	if err := writeFileAtomic(l.path, data); err != nil {
		return Entry{}, 0, err
	}
	return e, len(entries), nil
}

// read loads the list, accepting the legacy single-object layout.
func (l *ResonanceLog) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read resonance log: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var raw []rawEntry
	if data[0] == '{' {
		raw = make([]rawEntry, 1)
		err = json.Unmarshal(data, &raw[0])
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse resonance log %s: %w", l.path, err)
	}

	entries := make([]Entry, len(raw))
	for i, r := range raw {
		if entries[i], err = r.entry(); err != nil {
			return nil, fmt.Errorf("parse resonance log %s: entry %d: %w", l.path, i, err)
		}
	}
	return entries, nil
}
