// Package admin exposes a small HTTP surface to watch and poke the
// running pipeline.
package admin

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"fieldops-sim/internal/config"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/orchestrator"
	"fieldops-sim/internal/store"
)

type Server struct {
	Orch  *orchestrator.Orchestrator
	Cfg   *config.SimulationConfig
	Store store.Store
	tpl   *template.Template
}

//go:embed templates/index.html
var content embed.FS

func NewServer(orch *orchestrator.Orchestrator, cfg *config.SimulationConfig, st store.Store) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Orch: orch, Cfg: cfg, Store: st, tpl: tpl}
}

func (s *Server) routes() {
	http.HandleFunc("/", s.handleIndex)
	http.HandleFunc("/status", s.handleStatus)
	http.HandleFunc("/run-once", s.handleRunOnce)
	http.HandleFunc("/config", s.handleConfig)
	http.HandleFunc("/missions", s.handleMissions)
	http.HandleFunc("/contaminated", s.handleContaminated)
	http.HandleFunc("/clear-contamination", s.handleClearContamination)
}

func (s *Server) Start(addr string) error {
	s.routes()
	return http.ListenAndServe(addr, nil)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status   orchestrator.Status
		DeviceID string
	}{
		Status:   s.Orch.Status(),
		DeviceID: s.Cfg.DeviceID,
	}
	s.tpl.Execute(w, data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Orch.Status())
}

func (s *Server) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	s.Orch.TriggerOnce()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"device_id":              s.Cfg.DeviceID,
		"cycle_interval_seconds": int(s.Cfg.CycleInterval().Seconds()),
		"injection_probability":  s.Cfg.Injection.GlobalProbability,
		"cities":                 len(s.Cfg.Cities),
	})
}

// handleMissions lists recent missions. The since parameter accepts any of
// the date layouts upstream systems use; default is the last 30 days.
func (s *Server) handleMissions(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -30)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := mission.ParseDate(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		since = t
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	missions, err := s.Store.MissionsSince(r.Context(), since, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(missions)
}

func (s *Server) handleContaminated(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.ContaminatedMissionIDs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"mission_ids": ids})
}

func (s *Server) handleClearContamination(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("mission_id"), 10, 64)
	if err != nil {
		http.Error(w, "mission_id required", http.StatusBadRequest)
		return
	}
	if err := s.Store.ClearContamination(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
