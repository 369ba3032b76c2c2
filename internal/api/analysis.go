package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/satindergrewal/binaural/internal/analyze"
	"github.com/satindergrewal/binaural/internal/preset"
	"github.com/satindergrewal/binaural/internal/render"
	"github.com/satindergrewal/binaural/internal/tone"
)

// maxUpload caps hum recordings posted to /api/analyze.
const maxUpload = 64 << 20

// export renders the current tone (or the one in the body) to a WAV file and
// sends it as an attachment.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	p := s.Store.Snapshot()
	req := struct {
		Seconds    float64  `json:"seconds"`
		SampleRate int      `json:"sample_rate"`
		CarrierHz  *float64 `json:"carrier"`
		BeatHz     *float64 `json:"beat"`
		Volume     *float64 `json:"volume"`
	}{Seconds: s.Options.ExportSeconds, SampleRate: s.Options.ExportRate}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.CarrierHz != nil {
		p.CarrierHz = *req.CarrierHz
	}
	if req.BeatHz != nil {
		p.BeatHz = *req.BeatHz
	}
	if req.Volume != nil {
		p.Volume = *req.Volume
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wf, err := render.Render(p, req.Seconds, req.SampleRate)
	switch {
	case errors.Is(err, render.ErrSilent):
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The WAV encoder seeks back to patch the header, so go through a file.
	f, err := os.CreateTemp("", "binaural-*.wav")
	if err != nil {
		s.Log.Error("export temp file", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := render.WriteWAV(f, wf); err != nil {
		s.Log.Error("export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	name := fmt.Sprintf("binaural_%g_%g.wav", tone.RoundHz(p.CarrierHz), tone.RoundHz(p.BeatHz))
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Now(), f)
	s.Log.Info("exported",
		zap.Float64("carrier", p.CarrierHz),
		zap.Float64("beat", p.BeatHz),
		zap.Float64("seconds", wf.Duration()),
		zap.Int("sample_rate", wf.SampleRate),
	)
}

// band reads min, max and threshold query overrides.
func (s *Server) band(r *http.Request) (minHz, maxHz, thresholdDB float64, err error) {
	minHz, maxHz, thresholdDB = s.Options.BandMinHz, s.Options.BandMaxHz, s.Options.ThresholdDB
	q := r.URL.Query()
	for _, f := range []struct {
		key string
		dst *float64
	}{{"min", &minHz}, {"max", &maxHz}, {"threshold", &thresholdDB}} {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("%s: %w", f.key, err)
		}
	}
	return minHz, maxHz, thresholdDB, nil
}

type analysisResponse struct {
	analyze.Result
	Applied bool    `json:"applied"`
	Carrier float64 `json:"carrier"`
}

// analyzeUpload finds the hum frequency in a posted WAV recording.
func (s *Server) analyzeUpload(w http.ResponseWriter, r *http.Request) {
	minHz, maxHz, thr, err := s.band(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	sig, err := analyze.LoadWAV(bytes.NewReader(data))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, analyze.ErrNotWAV) || errors.Is(err, analyze.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, err)
		return
	}
	s.analyzeAndApply(w, sig, minHz, maxHz, thr, r.URL.Query().Get("apply") == "true")
}

// record captures a hum from the input device and tunes the carrier to it.
// Playback is paused during capture and resumed with the same settings.
func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	if s.Recorder == nil {
		writeError(w, http.StatusNotImplemented, errors.New("this backend has no input device"))
		return
	}
	minHz, maxHz, thr, err := s.band(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.recording.TryLock() {
		writeError(w, http.StatusConflict, errors.New("a recording is already in progress"))
		return
	}
	defer s.recording.Unlock()

	var resume *struct{ rate, block int }
	if sess := s.Player.StopActive(); sess != nil {
		cfg := sess.Config()
		resume = &struct{ rate, block int }{cfg.SampleRate, cfg.BlockLength}
	}

	s.Log.Info("recording hum", zap.Float64("seconds", s.Options.RecordSeconds))
	sig, recErr := s.Recorder.Record(r.Context(), s.Options.RecordSeconds, s.Analyzer.Rate())

	if resume != nil {
		if _, err := s.Player.Start(resume.rate, resume.block); err != nil {
			s.Log.Warn("resuming output after recording", zap.Error(err))
		}
	}
	if recErr != nil {
		s.Log.Error("recording", zap.Error(recErr))
		writeError(w, deviceStatus(recErr), recErr)
		return
	}
	s.analyzeAndApply(w, sig, minHz, maxHz, thr, true)
}

func (s *Server) analyzeAndApply(w http.ResponseWriter, sig analyze.Signal, minHz, maxHz, thr float64, apply bool) {
	res, err := s.Analyzer.Analyze(sig, minHz, maxHz, thr)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	resp := analysisResponse{Result: res}
	if res.Found && apply {
		p := s.Store.Update(func(p tone.Params) tone.Params {
			p.CarrierHz = tone.RoundHz(res.FrequencyHz)
			return p
		})
		s.setLastPreset("")
		resp.Applied = true
		s.Log.Info("carrier tuned to hum", zap.Float64("hz", p.CarrierHz), zap.Float64("peak_db", res.PeakDB))
	}
	resp.Carrier = s.Store.Snapshot().CarrierHz
	writeJSON(w, http.StatusOK, resp)
}

// --- Resonance ---

func (s *Server) listResonance(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Resonance.Entries()
	if err != nil {
		s.Log.Error("reading resonance log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []preset.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// markResonance saves hz, or the current carrier when hz is left out.
func (s *Server) markResonance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hz *float64 `json:"hz"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	hz := s.Store.Snapshot().CarrierHz
	if req.Hz != nil {
		hz = *req.Hz
	}
	e, total, err := s.Resonance.Mark(hz, time.Now())
	if err != nil {
		if errors.Is(err, tone.ErrNonFinite) || errors.Is(err, preset.ErrInvalidEntry) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.Log.Error("marking resonance", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": e, "total": total})
}
