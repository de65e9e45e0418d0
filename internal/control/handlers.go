// SPDX-License-Identifier: EPL-2.0

package control

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ik5/audtrack/device"
	"github.com/ik5/audtrack/engine"
	"github.com/ik5/audtrack/timeline"
)

type directionState struct {
	State  engine.State `json:"state"`
	Cursor float64      `json:"cursor"`
	Count  int          `json:"count"`
}

type stateResponse struct {
	Playback   directionState `json:"playback"`
	Recording  directionState `json:"recording"`
	SampleRate int            `json:"sample_rate"`
	StartMode  string         `json:"start_mode"`
	StopMode   string         `json:"stop_mode"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	play, rec := s.eng.State()
	writeJSON(w, http.StatusOK, stateResponse{
		Playback:   directionState{State: play, Cursor: s.eng.PlaybackCursor(), Count: s.eng.Underruns()},
		Recording:  directionState{State: rec, Cursor: s.eng.RecordingCursor(), Count: s.eng.Overruns()},
		SampleRate: s.eng.SampleRate(),
		StartMode:  s.eng.StartMode().String(),
		StopMode:   s.eng.StopMode().String(),
	})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start string `json:"start_mode"`
		Stop  string `json:"stop_mode"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Start != "" {
		m, err := engine.ParseStartMode(req.Start)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.eng.SetStartMode(m)
	}
	if req.Stop != "" {
		m, err := engine.ParseStopMode(req.Stop)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.eng.SetStopMode(m)
	}
	s.handleState(w, r)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate int `json:"sample_rate"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.eng.SetSampleRate(req.Rate); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleState(w, r)
}

type devicesResponse struct {
	Devices []deviceJSON `json:"devices"`
	Output  string       `json:"output"`
	Input   string       `json:"input"`
}

type deviceJSON struct {
	ID                string  `json:"id"`
	HostAPI           string  `json:"host_api"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devs, err := s.eng.Devices()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := devicesResponse{Devices: make([]deviceJSON, 0, len(devs))}
	for _, d := range devs {
		resp.Devices = append(resp.Devices, deviceJSON{
			ID:                d.ID,
			HostAPI:           d.HostAPI,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	resp.Output, _ = s.eng.OutputDevice()
	resp.Input, _ = s.eng.InputDevice()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckDevices(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.CheckDevices(); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleDevices(w, r)
}

func (s *Server) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = device.DefaultID
	}
	set := s.eng.SetOutputDevice
	if mux.Vars(r)["kind"] == "input" {
		set = s.eng.SetInputDevice
	}
	if err := set(req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleDevices(w, r)
}

type transportRequest struct {
	Group    string  `json:"group"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	recording := vars["dir"] == "recording"

	var err error
	switch vars["action"] {
	case "start":
		var req transportRequest
		if !s.decode(w, r, &req) {
			return
		}
		g, ok := s.group(req.Group)
		if !ok {
			s.writeError(w, fmt.Errorf("%w: group %q", errNotFound, req.Group))
			return
		}
		var cursor float64
		if recording {
			cursor, err = s.eng.StartRecording(g, req.Time, req.Duration)
		} else {
			cursor, err = s.eng.StartPlayback(g, req.Time, req.Duration)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"cursor": cursor})
		return
	case "stop":
		err = pick(recording, s.eng.StopRecording, s.eng.StopPlayback)()
	case "pause":
		err = pick(recording, s.eng.PauseRecording, s.eng.PausePlayback)()
	case "resume":
		err = pick(recording, s.eng.ResumeRecording, s.eng.ResumePlayback)()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.handleState(w, r)
}

func pick(cond bool, a, b func() error) func() error {
	if cond {
		return a
	}
	return b
}

type groupJSON struct {
	Name        string   `json:"name"`
	Lanes       []string `json:"lanes"`
	RecordLeft  string   `json:"record_left,omitempty"`
	RecordRight string   `json:"record_right,omitempty"`
	Solo        string   `json:"solo,omitempty"`
	RegionStart float64  `json:"region_start"`
}

func (s *Server) groupJSON(g *timeline.Group) groupJSON {
	out := groupJSON{Name: g.Name(), Lanes: []string{}, RegionStart: g.RegionStart()}
	for _, h := range g.Lanes() {
		if l, ok := s.reg.Get(h); ok {
			out.Lanes = append(out.Lanes, l.ID())
		}
	}
	left, right := g.RecordSlots()
	out.RecordLeft = s.laneID(left)
	out.RecordRight = s.laneID(right)
	out.Solo = s.laneID(g.Solo())
	return out
}

func (s *Server) laneID(h timeline.Handle) string {
	if l, ok := s.reg.Get(h); ok {
		return l.ID()
	}
	return ""
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)

	out := make([]groupJSON, 0, len(names))
	for _, name := range names {
		if g, ok := s.group(name); ok {
			out = append(out, s.groupJSON(g))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeError(w, fmt.Errorf("%w: group name required", errBadRequest))
		return
	}
	if _, ok := s.group(req.Name); ok {
		s.writeError(w, fmt.Errorf("%w: group %q exists", errBadRequest, req.Name))
		return
	}
	g := timeline.NewGroup(req.Name)
	s.AddGroup(g)
	writeJSON(w, http.StatusCreated, s.groupJSON(g))
}

// handleUpdateGroup applies whichever of the fields are present. Empty
// slot and solo IDs clear them.
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := s.group(mux.Vars(r)["name"])
	if !ok {
		s.writeError(w, fmt.Errorf("%w: group %q", errNotFound, mux.Vars(r)["name"]))
		return
	}
	var req struct {
		Add         []string `json:"add"`
		Remove      []string `json:"remove"`
		RecordLeft  *string  `json:"record_left"`
		RecordRight *string  `json:"record_right"`
		Solo        *string  `json:"solo"`
		RegionStart *float64 `json:"region_start"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	resolve := func(id string) (timeline.Handle, error) {
		if id == "" {
			return timeline.Handle{}, nil
		}
		h, ok := s.reg.Lookup(id)
		if !ok {
			return h, fmt.Errorf("%w: track %q", errNotFound, id)
		}
		return h, nil
	}
	for _, id := range req.Add {
		h, err := resolve(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		g.Add(h)
	}
	for _, id := range req.Remove {
		if h, err := resolve(id); err == nil {
			g.Remove(h)
		}
	}
	if req.RecordLeft != nil || req.RecordRight != nil {
		left, right := g.RecordSlots()
		var err error
		if req.RecordLeft != nil {
			if left, err = resolve(*req.RecordLeft); err != nil {
				s.writeError(w, err)
				return
			}
		}
		if req.RecordRight != nil {
			if right, err = resolve(*req.RecordRight); err != nil {
				s.writeError(w, err)
				return
			}
		}
		g.SetRecordSlots(left, right)
	}
	if req.Solo != nil {
		h, err := resolve(*req.Solo)
		if err != nil {
			s.writeError(w, err)
			return
		}
		g.SetSolo(h)
	}
	if req.RegionStart != nil {
		g.SetRegionStart(*req.RegionStart)
	}
	writeJSON(w, http.StatusOK, s.groupJSON(g))
}

type attributesJSON struct {
	Gain   float64 `json:"gain"`
	Pan    float64 `json:"pan"`
	Muted  bool    `json:"muted"`
	Hidden bool    `json:"hidden"`
	Scale  float64 `json:"scale"`
	Zero   float64 `json:"zero"`
}

type trackJSON struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Smart      bool           `json:"smart,omitempty"`
	SampleRate int            `json:"sample_rate,omitempty"`
	Channels   int            `json:"channels,omitempty"`
	Start      float64        `json:"start"`
	End        float64        `json:"end"`
	Blocks     int            `json:"blocks"`
	Version    uint64         `json:"version"`
	Readonly   bool           `json:"readonly"`
	Attributes attributesJSON `json:"attributes"`
}

func trackInfo(l timeline.Lane) trackJSON {
	a := l.Attributes()
	out := trackJSON{
		ID:         l.ID(),
		Name:       l.Name(),
		Attributes: attributesJSON(a),
	}
	if _, ok := l.(*timeline.SmartTrack); ok {
		out.Smart = true
	}
	if tr := l.CurrentTrack(); tr != nil {
		out.SampleRate = tr.SampleRate()
		out.Channels = tr.Channels()
		out.Start = tr.Start()
		out.End = tr.End()
		out.Blocks = len(tr.Blocks())
		out.Version = tr.Version()
		out.Readonly = tr.Readonly()
	}
	return out
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	handles := s.reg.Handles()
	out := make([]trackJSON, 0, len(handles))
	for _, h := range handles {
		if l, ok := s.reg.Get(h); ok {
			out = append(out, trackInfo(l))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		SampleRate int    `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Group      string `json:"group"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.SampleRate == 0 {
		req.SampleRate = s.eng.SampleRate()
	}
	if req.Channels == 0 {
		req.Channels = 1
	}
	var g *timeline.Group
	if req.Group != "" {
		var ok bool
		if g, ok = s.group(req.Group); !ok {
			s.writeError(w, fmt.Errorf("%w: group %q", errNotFound, req.Group))
			return
		}
	}
	tr, err := timeline.NewTrack(req.Name, req.SampleRate, req.Channels)
	if err != nil {
		s.writeError(w, err)
		return
	}
	h := s.reg.Add(tr)
	if g != nil {
		g.Add(h)
	}
	s.log.Info("track created", zap.String("id", tr.ID()), zap.String("name", req.Name))
	writeJSON(w, http.StatusCreated, trackInfo(tr))
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	h, l, ok := s.lane(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, fmt.Errorf("%w: track %q", errNotFound, mux.Vars(r)["id"]))
		return
	}
	s.mu.RLock()
	for _, g := range s.groups {
		g.Remove(h)
	}
	s.mu.RUnlock()
	if _, err := s.reg.Remove(h); err != nil {
		s.writeError(w, err)
		return
	}
	if err := l.Close(); err != nil {
		s.log.Warn("close track", zap.String("id", l.ID()), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	_, l, ok := s.lane(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, fmt.Errorf("%w: track %q", errNotFound, mux.Vars(r)["id"]))
		return
	}
	setter, ok := l.(interface{ SetAttributes(timeline.Attributes) })
	if !ok {
		s.writeError(w, fmt.Errorf("%w: lane has fixed attributes", errBadRequest))
		return
	}
	req := attributesJSON(l.Attributes())
	if !s.decode(w, r, &req) {
		return
	}
	setter.SetAttributes(timeline.Attributes(req))
	writeJSON(w, http.StatusOK, trackInfo(l))
}

type blockJSON struct {
	Time   float64 `json:"time"`
	Frames int     `json:"frames"`
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	tr, t0, dur, ok := s.rangeOf(w, r)
	if !ok {
		return
	}
	infos, err := tr.GetDataBlocksInfo(t0, dur)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]blockJSON, 0, len(infos))
	for _, b := range infos {
		out = append(out, blockJSON(b))
	}
	writeJSON(w, http.StatusOK, out)
}

type summaryJSON struct {
	Time       float64   `json:"time"`
	Decimation int       `json:"decimation"`
	Channels   int       `json:"channels"`
	Min        []float32 `json:"min"`
	Max        []float32 `json:"max"`
	Avg        []float32 `json:"avg"`
	Var        []float32 `json:"var"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	tr, t0, dur, ok := s.rangeOf(w, r)
	if !ok {
		return
	}
	hint := 1
	if v := r.URL.Query().Get("hint"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, fmt.Errorf("%w: hint %q", errBadRequest, v))
			return
		}
		hint = n
	}
	dec, segs, err := tr.GetSummary(t0, dur, hint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]summaryJSON, 0, len(segs))
	for _, seg := range segs {
		sum := seg.Summary
		out = append(out, summaryJSON{
			Time:       seg.Time,
			Decimation: sum.Decimation,
			Channels:   sum.Channels,
			Min:        sum.Min,
			Max:        sum.Max,
			Avg:        sum.Avg,
			Var:        sum.Var,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"decimation": dec, "segments": out})
}

func (s *Server) lane(id string) (timeline.Handle, timeline.Lane, bool) {
	h, ok := s.reg.Lookup(id)
	if !ok {
		return h, nil, false
	}
	l, ok := s.reg.Get(h)
	return h, l, ok
}

// rangeOf resolves the track and the t0/dur query. A missing dur reaches to
// the end of the track.
func (s *Server) rangeOf(w http.ResponseWriter, r *http.Request) (*timeline.Track, float64, float64, bool) {
	id := mux.Vars(r)["id"]
	_, l, ok := s.lane(id)
	if !ok || l.CurrentTrack() == nil {
		s.writeError(w, fmt.Errorf("%w: track %q", errNotFound, id))
		return nil, 0, 0, false
	}
	tr := l.CurrentTrack()

	q := r.URL.Query()
	t0, err := queryFloat(q.Get("t0"), 0)
	if err != nil {
		s.writeError(w, err)
		return nil, 0, 0, false
	}
	dur, err := queryFloat(q.Get("dur"), math.Max(tr.End()-t0, 0))
	if err != nil {
		s.writeError(w, err)
		return nil, 0, 0, false
	}
	return tr, t0, dur, true
}

func queryFloat(v string, fallback float64) (float64, error) {
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadRequest, v)
	}
	return f, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}
