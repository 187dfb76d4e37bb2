package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/Comcast/bearings/tools"
)

var behaviorPage = regexp.MustCompile(`^/behaviors/([-a-zA-Z0-9_]+)\.html$`)

// Handler builds the daemon's HTTP mux: the JSON API, the WebSocket
// endpoint, behavior doc pages, and metrics.
func (s *Service) Handler() *http.ServeMux {
	mux := http.NewServeMux()

	complain := func(w http.ResponseWriter, x interface{}, status int) {
		w.WriteHeader(status)
		js, _ := json.Marshal(map[string]interface{}{"error": fmt.Sprintf("%s", x)})
		w.Write(js)
		w.Write([]byte("\n"))
	}

	reply := func(w http.ResponseWriter, x interface{}) {
		js, err := json.Marshal(x)
		if err != nil {
			complain(w, err, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(js)
		w.Write([]byte("\n"))
	}

	decode := func(w http.ResponseWriter, r *http.Request, x interface{}) bool {
		if r.Method != http.MethodPost {
			complain(w, "POST only", http.StatusMethodNotAllowed)
			return false
		}
		js, err := io.ReadAll(r.Body)
		if err != nil {
			complain(w, err, http.StatusBadRequest)
			return false
		}
		if err := r.Body.Close(); err != nil {
			s.logger.Warn("body close failed", "error", err)
		}
		if err := json.Unmarshal(js, x); err != nil {
			complain(w, err, http.StatusBadRequest)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/activate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Behavior string                 `json:"behavior"`
			Subject  string                 `json:"subject"`
			Config   map[string]interface{} `json:"config"`
		}
		if !decode(w, r, &req) {
			return
		}
		id, err := s.Activate(r.Context(), req.Behavior, req.Subject, req.Config)
		if err != nil {
			complain(w, err, http.StatusBadRequest)
			return
		}
		reply(w, map[string]interface{}{"id": id})
	})

	mux.HandleFunc("/api/event", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID      string      `json:"id"`
			Event   string      `json:"event"`
			Payload interface{} `json:"payload"`
		}
		if !decode(w, r, &req) {
			return
		}
		c, err := s.Dispatch(r.Context(), req.ID, req.Event, req.Payload)
		if err != nil {
			complain(w, err, http.StatusBadRequest)
			return
		}
		reply(w, c)
	})

	mux.HandleFunc("/api/deactivate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID string `json:"id"`
		}
		if !decode(w, r, &req) {
			return
		}
		s.Deactivate(r.Context(), req.ID)
		reply(w, map[string]interface{}{"deactivated": req.ID})
	})

	mux.HandleFunc("/api/instances", func(w http.ResponseWriter, r *http.Request) {
		snaps := make([]interface{}, 0, 8)
		for _, id := range s.troupe.IDs() {
			if snap, have := s.troupe.Snapshot(id); have {
				snaps = append(snaps, snap)
			}
		}
		reply(w, snaps)
	})

	mux.HandleFunc("/api/behaviors", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]interface{}{
			"behaviors": s.reg.List(),
			"stats":     s.reg.Stats(),
		})
	})

	// A behavior's doc page: /behaviors/List.html renders std/List.
	mux.HandleFunc("/behaviors/", func(w http.ResponseWriter, r *http.Request) {
		ss := behaviorPage.FindStringSubmatch(r.URL.Path)
		if ss == nil {
			complain(w, "no behavior name; try /behaviors/Toggle.html", http.StatusNotFound)
			return
		}
		b, have := s.reg.Get("std/" + ss[1])
		if !have {
			complain(w, s.reg.ValidateReference("std/"+ss[1]), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		if err := tools.RenderBehaviorPage(b, w, nil, true); err != nil {
			s.logger.Warn("behavior page failed", "behavior", b.Name, "error", err)
		}
	})

	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/ws", s.hub)

	return mux
}
