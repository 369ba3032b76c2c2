package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/satindergrewal/binaural/internal/analyze"
	"github.com/satindergrewal/binaural/internal/journey"
	"github.com/satindergrewal/binaural/internal/preset"
	"github.com/satindergrewal/binaural/internal/render"
	"github.com/satindergrewal/binaural/internal/session"
	"github.com/satindergrewal/binaural/internal/tone"
)

// --- fakes ---

type fakeDevice struct {
	mu      sync.Mutex
	opened  []session.StreamConfig
	openErr error
}

type nopStream struct{}

func (nopStream) Start() error { return nil }
func (nopStream) Close() error { return nil }

func (d *fakeDevice) Open(cfg session.StreamConfig, fn session.BlockFunc) (session.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened = append(d.opened, cfg)
	return nopStream{}, nil
}

func (d *fakeDevice) opens() []session.StreamConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.opened)
}

type fakeRecorder struct {
	sig   analyze.Signal
	err   error
	calls int
}

func (f *fakeRecorder) Record(ctx context.Context, seconds float64, rate int) (analyze.Signal, error) {
	f.calls++
	return f.sig, f.err
}

func sine(hz float64, rate int, seconds float64) analyze.Signal {
	n := int(float64(rate) * seconds)
	s := make([]float64, n)
	for i := range s {
		s[i] = 0.5 * math.Sin(2*math.Pi*hz*float64(i)/float64(rate))
	}
	return analyze.Signal{Samples: s, Channels: 1, SampleRate: rate}
}

type harness struct {
	srv    *Server
	store  *tone.Store
	dev    *fakeDevice
	player *session.Player
}

func newHarness(t *testing.T, mod func(*Deps)) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	dir := t.TempDir()

	presets, err := preset.Open(filepath.Join(dir, "presets.json"), log)
	if err != nil {
		t.Fatal(err)
	}
	store := tone.NewStore(tone.Params{CarrierHz: 100, BeatHz: 4, Volume: 0.5})
	dev := &fakeDevice{}
	player := session.NewPlayer(dev, store, log)
	t.Cleanup(func() { player.StopActive() })

	d := Deps{
		Store:     store,
		Player:    player,
		Presets:   presets,
		Resonance: preset.NewResonanceLog(filepath.Join(dir, "resonance.json")),
		Analyzer:  analyze.New(8000, 1),
		Options: Options{
			SampleRate:    44100,
			BlockLength:   1024,
			ExportRate:    8000,
			ExportSeconds: 0.1,
			RecordSeconds: 1,
			BandMinHz:     60,
			BandMaxHz:     400,
			ThresholdDB:   10,
		},
		Log: log,
	}
	if mod != nil {
		mod(&d)
	}
	return &harness{srv: New(d), store: store, dev: dev, player: player}
}

func (h *harness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// --- Parameters ---

func TestGetParams(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "GET", "/api/params", nil)
	wantStatus(t, rec, http.StatusOK)

	got := decodeBody[map[string]float64](t, rec)
	want := map[string]float64{"carrier": 100, "beat": 4, "volume": 0.5, "right": 104, "version": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestSetParamsIsPartial(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "POST", "/api/params", map[string]float64{"beat": 7.83})
	wantStatus(t, rec, http.StatusOK)

	want := tone.Params{CarrierHz: 100, BeatHz: 7.83, Volume: 0.5}
	if diff := cmp.Diff(want, h.store.Snapshot()); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
}

func TestSetParamsRejectsBadBody(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "POST", "/api/params", []byte(`{"carrier": "loud"}`))
	wantStatus(t, rec, http.StatusBadRequest)
	if h.store.Snapshot().CarrierHz != 100 {
		t.Error("rejected update changed the store")
	}
}

func TestNudgeClampsToTunerBand(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Set(tone.Params{CarrierHz: 399.95, BeatHz: 4, Volume: 0.5})

	wantStatus(t, h.do(t, "POST", "/api/nudge", map[string]float64{"delta": 0.1}), http.StatusOK)
	if got := h.store.Snapshot().CarrierHz; got != 400 {
		t.Errorf("carrier = %v, want 400", got)
	}
	wantStatus(t, h.do(t, "POST", "/api/nudge", map[string]float64{"delta": -0.25}), http.StatusOK)
	if got := h.store.Snapshot().CarrierHz; got != 399.75 {
		t.Errorf("carrier = %v, want 399.75", got)
	}
}

func TestEnvelope(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "GET", "/api/envelope?rate=1000", nil)
	wantStatus(t, rec, http.StatusOK)

	env := decodeBody[tone.Envelope](t, rec)
	// beat 4 Hz: two periods is 0.5 s.
	if len(env.Time) != 500 || len(env.Envelope) != 500 {
		t.Errorf("envelope has %d/%d points, want 500", len(env.Time), len(env.Envelope))
	}

	wantStatus(t, h.do(t, "GET", "/api/envelope?rate=-3", nil), http.StatusBadRequest)
}

// --- Sessions ---

func TestSessionStartStop(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, "POST", "/api/session/start", nil)
	wantStatus(t, rec, http.StatusOK)
	got := decodeBody[sessionResponse](t, rec)
	if !got.Running || got.SampleRate != 44100 || got.BlockLength != 1024 || got.ID == "" {
		t.Errorf("session = %+v", got)
	}

	status := decodeBody[map[string]json.RawMessage](t, h.do(t, "GET", "/api/status", nil))
	if string(status["session"]) == "null" {
		t.Error("status shows no session after start")
	}

	rec = h.do(t, "POST", "/api/session/stop", nil)
	wantStatus(t, rec, http.StatusOK)
	if stopped := decodeBody[map[string]bool](t, rec)["stopped"]; !stopped {
		t.Error("stop reported nothing stopped")
	}
	if h.player.Active() != nil {
		t.Error("session still active after stop")
	}

	rec = h.do(t, "POST", "/api/session/stop", nil)
	if stopped := decodeBody[map[string]bool](t, rec)["stopped"]; stopped {
		t.Error("second stop reported a session")
	}
}

func TestSessionStartUsesRequestConfig(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "POST", "/api/session/start", map[string]int{"sample_rate": 48000, "block_length": 256})
	wantStatus(t, rec, http.StatusOK)

	want := []session.StreamConfig{{SampleRate: 48000, BlockLength: 256, Channels: 2}}
	if diff := cmp.Diff(want, h.dev.opens()); diff != "" {
		t.Errorf("opened streams mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		body    any
		want    int
	}{
		{"bad block length", nil, map[string]int{"block_length": -1}, http.StatusBadRequest},
		{"unsupported by device", &session.DeviceError{Op: "open", Err: session.ErrUnsupportedConfig}, nil, http.StatusBadRequest},
		{"device failure", errors.New("no default output device"), nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.dev.openErr = tt.openErr
			wantStatus(t, h.do(t, "POST", "/api/session/start", tt.body), tt.want)
			if h.player.Active() != nil {
				t.Error("failed start left an active session")
			}
		})
	}
}

// --- Presets ---

func TestPresetLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Set(tone.Params{CarrierHz: 136.1, BeatHz: 7.83, Volume: 0.2})

	rec := h.do(t, "POST", "/api/presets/", map[string]string{"name": "  My Tone ", "desc": "evening"})
	wantStatus(t, rec, http.StatusCreated)

	h.store.Set(tone.Params{CarrierHz: 100, BeatHz: 4, Volume: 0.7})
	rec = h.do(t, "POST", "/api/presets/"+url.PathEscape("My Tone")+"/load", nil)
	wantStatus(t, rec, http.StatusOK)
	want := tone.Params{CarrierHz: 136.1, BeatHz: 7.83, Volume: 0.7}
	if diff := cmp.Diff(want, h.store.Snapshot()); diff != "" {
		t.Errorf("after load (-want +got):\n%s", diff)
	}

	list := decodeBody[struct {
		Categories []preset.Category `json:"categories"`
		Selected   string            `json:"selected"`
	}](t, h.do(t, "GET", "/api/presets/", nil))
	if list.Selected != "My Tone" {
		t.Errorf("selected = %q, want My Tone", list.Selected)
	}
	last := list.Categories[len(list.Categories)-1]
	if last.Name != preset.CustomCategory || len(last.Presets) != 1 || last.Presets[0].Description != "evening" {
		t.Errorf("custom category = %+v", last)
	}

	wantStatus(t, h.do(t, "DELETE", "/api/presets/"+url.PathEscape("My Tone"), nil), http.StatusNoContent)
	wantStatus(t, h.do(t, "DELETE", "/api/presets/"+url.PathEscape("My Tone"), nil), http.StatusNotFound)
	wantStatus(t, h.do(t, "POST", "/api/presets/"+url.PathEscape("My Tone")+"/load", nil), http.StatusNotFound)
}

func TestLoadBuiltinPresetKeepsVolume(t *testing.T) {
	h := newHarness(t, nil)
	name := preset.BandNames(preset.Alpha)[0]
	want := preset.Defaults()[name]

	wantStatus(t, h.do(t, "POST", "/api/presets/"+url.PathEscape(name)+"/load", nil), http.StatusOK)
	p := h.store.Snapshot()
	if p.CarrierHz != want.CarrierHz || p.BeatHz != want.BeatHz || p.Volume != 0.5 {
		t.Errorf("after loading %q: %+v", name, p)
	}
}

func TestSavePresetRejectsEmptyName(t *testing.T) {
	h := newHarness(t, nil)
	wantStatus(t, h.do(t, "POST", "/api/presets/", map[string]string{"name": "   "}), http.StatusBadRequest)
}

func TestSavePresetRejectsInvalidTone(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Set(tone.Params{CarrierHz: -5, BeatHz: 4, Volume: 0.5})
	wantStatus(t, h.do(t, "POST", "/api/presets/", map[string]string{"name": "neg"}), http.StatusBadRequest)
}

// --- Export ---

func TestExportWritesWAV(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "POST", "/api/export", nil)
	wantStatus(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "binaural_100_4.wav") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	sig, err := analyze.LoadWAV(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if sig.Channels != 2 || sig.SampleRate != 8000 || sig.Frames() != 800 {
		t.Errorf("exported %d ch @ %d Hz, %d frames; want 2 @ 8000, 800", sig.Channels, sig.SampleRate, sig.Frames())
	}
}

func TestExportErrors(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"silent", map[string]float64{"volume": 0}, http.StatusUnprocessableEntity},
		{"zero duration", map[string]float64{"seconds": -1}, http.StatusBadRequest},
		{"too long", map[string]float64{"seconds": 1e5}, http.StatusBadRequest},
		{"overflowing duration", map[string]float64{"seconds": 1e300}, http.StatusBadRequest},
		{"bad json", []byte(`{`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			wantStatus(t, h.do(t, "POST", "/api/export", tt.body), tt.want)
		})
	}
}

// --- Analysis ---

func wavBytes(t *testing.T, p tone.Params, rate int) []byte {
	t.Helper()
	wf, err := render.Render(p, 1, rate)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "hum.wav")
	if err := render.WriteFile(path, wf); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAnalyzeUploadAppliesPeak(t *testing.T) {
	h := newHarness(t, nil)
	body := wavBytes(t, tone.Params{CarrierHz: 200, BeatHz: 0, Volume: 1}, 8000)

	rec := h.do(t, "POST", "/api/analyze?apply=true", body)
	wantStatus(t, rec, http.StatusOK)
	got := decodeBody[analysisResponse](t, rec)
	if !got.Found || !got.Applied || math.Abs(got.FrequencyHz-200) > 1 {
		t.Errorf("analysis = %+v", got)
	}
	if c := h.store.Snapshot().CarrierHz; math.Abs(c-200) > 1 {
		t.Errorf("carrier = %v, want about 200", c)
	}
}

func TestAnalyzeUploadWithoutApply(t *testing.T) {
	h := newHarness(t, nil)
	body := wavBytes(t, tone.Params{CarrierHz: 150, BeatHz: 0, Volume: 1}, 8000)

	rec := h.do(t, "POST", "/api/analyze", body)
	wantStatus(t, rec, http.StatusOK)
	if got := decodeBody[analysisResponse](t, rec); !got.Found || got.Applied {
		t.Errorf("analysis = %+v", got)
	}
	if h.store.Snapshot().CarrierHz != 100 {
		t.Error("carrier changed without apply")
	}
}

func TestAnalyzeUploadThresholdOverride(t *testing.T) {
	h := newHarness(t, nil)
	body := wavBytes(t, tone.Params{CarrierHz: 200, BeatHz: 0, Volume: 1}, 8000)

	rec := h.do(t, "POST", "/api/analyze?threshold=1000&apply=true", body)
	wantStatus(t, rec, http.StatusOK)
	if got := decodeBody[analysisResponse](t, rec); got.Found || got.Applied {
		t.Errorf("analysis = %+v, want no result", got)
	}
}

func TestAnalyzeUploadRejects(t *testing.T) {
	h := newHarness(t, nil)
	wantStatus(t, h.do(t, "POST", "/api/analyze", []byte("definitely not audio")), http.StatusUnsupportedMediaType)
	wantStatus(t, h.do(t, "POST", "/api/analyze?min=low", nil), http.StatusBadRequest)
}

func TestRecordTunesAndResumes(t *testing.T) {
	rec := &fakeRecorder{sig: sine(150, 8000, 1)}
	h := newHarness(t, func(d *Deps) { d.Recorder = rec })

	wantStatus(t, h.do(t, "POST", "/api/session/start", nil), http.StatusOK)
	first := h.player.Active()

	resp := h.do(t, "POST", "/api/record", nil)
	wantStatus(t, resp, http.StatusOK)

	if rec.calls != 1 {
		t.Errorf("recorder called %d times", rec.calls)
	}
	if c := h.store.Snapshot().CarrierHz; math.Abs(c-150) > 1 {
		t.Errorf("carrier = %v, want about 150", c)
	}
	active := h.player.Active()
	if active == nil || active == first {
		t.Fatal("output was not resumed with a new session")
	}
	if got := len(h.dev.opens()); got != 2 {
		t.Errorf("device opened %d times, want 2", got)
	}
	if cfg := active.Config(); cfg.SampleRate != 44100 || cfg.BlockLength != 1024 {
		t.Errorf("resumed with %+v", cfg)
	}
}

func TestRecordErrors(t *testing.T) {
	h := newHarness(t, nil)
	wantStatus(t, h.do(t, "POST", "/api/record", nil), http.StatusNotImplemented)

	fail := &fakeRecorder{err: &session.DeviceError{Op: "record", Err: errors.New("no input device")}}
	h = newHarness(t, func(d *Deps) { d.Recorder = fail })
	wantStatus(t, h.do(t, "POST", "/api/record", nil), http.StatusServiceUnavailable)

	quiet := &fakeRecorder{sig: analyze.Signal{Samples: make([]float64, 8000), Channels: 1, SampleRate: 8000}}
	h = newHarness(t, func(d *Deps) { d.Recorder = quiet })
	rec := h.do(t, "POST", "/api/record", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decodeBody[analysisResponse](t, rec); got.Found || h.store.Snapshot().CarrierHz != 100 {
		t.Errorf("silence produced %+v", got)
	}
}

// --- Resonance ---

func TestResonance(t *testing.T) {
	h := newHarness(t, nil)
	h.store.Set(tone.Params{CarrierHz: 136.104, BeatHz: 4, Volume: 0.5})

	wantStatus(t, h.do(t, "POST", "/api/resonance", nil), http.StatusCreated)
	rec := h.do(t, "POST", "/api/resonance", map[string]float64{"hz": 210.556})
	wantStatus(t, rec, http.StatusCreated)
	if total := decodeBody[map[string]json.RawMessage](t, rec)["total"]; string(total) != "2" {
		t.Errorf("total = %s, want 2", total)
	}
	wantStatus(t, h.do(t, "POST", "/api/resonance", map[string]float64{"hz": 0}), http.StatusBadRequest)

	entries := decodeBody[[]preset.Entry](t, h.do(t, "GET", "/api/resonance", nil))
	var hz []float64
	for _, e := range entries {
		hz = append(hz, e.Hz)
	}
	if diff := cmp.Diff([]float64{136.1, 210.56}, hz); diff != "" {
		t.Errorf("resonance log (-want +got):\n%s", diff)
	}
}

func TestResonanceEmpty(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "GET", "/api/resonance", nil)
	wantStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

// --- Journey ---

func TestJourneyNotRunning(t *testing.T) {
	h := newHarness(t, nil)
	wantStatus(t, h.do(t, "GET", "/api/journey", nil), http.StatusNotImplemented)
	wantStatus(t, h.do(t, "POST", "/api/journey", map[string]bool{"enabled": true}), http.StatusNotImplemented)
}

func TestJourneyControl(t *testing.T) {
	var sched *journey.Scheduler
	h := newHarness(t, func(d *Deps) {
		sched = journey.NewScheduler(d.Presets, d.Store, journey.Config{StartingBand: preset.Theta}, d.Log)
		d.Journey = sched
	})

	st := decodeBody[journey.Status](t, h.do(t, "GET", "/api/journey", nil))
	if st.Enabled || st.Band != "theta" {
		t.Errorf("initial status = %+v", st)
	}

	rec := h.do(t, "POST", "/api/journey", map[string]bool{"enabled": true})
	wantStatus(t, rec, http.StatusOK)
	if st := decodeBody[journey.Status](t, rec); !st.Enabled {
		t.Errorf("status after enable = %+v", st)
	}

	wantStatus(t, h.do(t, "POST", "/api/journey", nil), http.StatusBadRequest)
	wantStatus(t, h.do(t, "POST", "/api/journey/band", map[string]string{"band": "alpha"}), http.StatusAccepted)
	wantStatus(t, h.do(t, "POST", "/api/journey/band", map[string]string{"band": "omega"}), http.StatusBadRequest)
}

// --- Misc ---

func TestStatusReportsListeners(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Listeners = func() int { return 3 } })
	status := decodeBody[map[string]json.RawMessage](t, h.do(t, "GET", "/api/status", nil))
	if string(status["listeners"]) != "3" {
		t.Errorf("listeners = %s", status["listeners"])
	}
	if _, ok := status["journey"]; ok {
		t.Error("status has journey without a scheduler")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, "GET", "/metrics", nil)
	wantStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "binaural_") {
		t.Error("metrics output has no binaural_ series")
	}
}

func TestStreamRoutesOptional(t *testing.T) {
	h := newHarness(t, nil)
	wantStatus(t, h.do(t, "GET", "/stream", nil), http.StatusNotFound)

	h = newHarness(t, func(d *Deps) {
		d.Stream = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})
	wantStatus(t, h.do(t, "GET", "/stream", nil), http.StatusTeapot)
}
