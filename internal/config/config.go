package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/binaural/internal/audio"
)

// Backends accepted in BINAURAL_BACKEND.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendStream    = "stream"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port   int
	LogDev bool

	// Output
	Backend     string
	SampleRate  int
	BlockLength int // frames per device callback

	// Starting tone
	CarrierHz float64
	BeatHz    float64
	Volume    float64

	// Files
	PresetsFile   string
	ResonanceFile string

	// Hum analysis
	AnalysisRate    int
	AnalysisSeconds float64
	BandMinHz       float64
	BandMaxHz       float64
	ThresholdDB     float64
	RecordSeconds   float64

	// Export
	ExportSeconds float64

	// Journey
	StartingBand string
	DwellMin     time.Duration
	DwellMax     time.Duration
	Glide        time.Duration
}

// Load reads configuration from environment variables with sane defaults.
// The stream backend defaults to Opus framing (48kHz, 20ms blocks).
func Load() Config {
	backend := strings.ToLower(envStr("BINAURAL_BACKEND", BackendPortAudio))
	rate, block := audio.DeviceSampleRate, audio.DeviceBlockLength
	if backend == BackendStream {
		rate, block = audio.SampleRate, audio.FrameSize
	}

	return Config{
		Port:   envInt("BINAURAL_PORT", 8080),
		LogDev: envBool("BINAURAL_LOG_DEV", false),

		Backend:     backend,
		SampleRate:  envInt("BINAURAL_SAMPLE_RATE", rate),
		BlockLength: envInt("BINAURAL_BLOCK_LENGTH", block),

		CarrierHz: envFloat("BINAURAL_CARRIER", 100),
		BeatHz:    envFloat("BINAURAL_BEAT", 4),
		Volume:    envFloat("BINAURAL_VOLUME", 0.5),

		PresetsFile:   envStr("BINAURAL_PRESETS_FILE", "binaural_presets.json"),
		ResonanceFile: envStr("BINAURAL_RESONANCE_FILE", "user_resonance.json"),

		AnalysisRate:    envInt("BINAURAL_ANALYSIS_RATE", 44100),
		AnalysisSeconds: envFloat("BINAURAL_ANALYSIS_SECONDS", 3),
		BandMinHz:       envFloat("BINAURAL_BAND_MIN", 60),
		BandMaxHz:       envFloat("BINAURAL_BAND_MAX", 400),
		ThresholdDB:     envFloat("BINAURAL_THRESHOLD_DB", 10),
		RecordSeconds:   envFloat("BINAURAL_RECORD_SECONDS", 3),

		ExportSeconds: envFloat("BINAURAL_EXPORT_SECONDS", 5),

		StartingBand: envStr("BINAURAL_JOURNEY_BAND", "theta"),
		DwellMin:     time.Duration(envInt("BINAURAL_DWELL_MIN", 300)) * time.Second,
		DwellMax:     time.Duration(envInt("BINAURAL_DWELL_MAX", 900)) * time.Second,
		Glide:        envDuration("BINAURAL_GLIDE", 8*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("8s", "1m30s") or bare seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}
