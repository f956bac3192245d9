package admin

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldops-sim/internal/anomaly"
	"fieldops-sim/internal/config"
	"fieldops-sim/internal/detect"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/orchestrator"
	"fieldops-sim/internal/publish"
	"fieldops-sim/internal/store"
	"fieldops-sim/internal/trajectory"
)

type nilDetector struct{}

func (nilDetector) Detect(_ context.Context, _ []trajectory.Point) []detect.Score { return nil }

func testServer(st *store.Memory) *Server {
	cfg := config.Default()
	cfg.DeviceID = "tracker-test"
	orch := orchestrator.New(
		cfg,
		st,
		publish.NewStdout(discard{}),
		trajectory.NewGenerator(cfg, rand.New(rand.NewSource(1))),
		anomaly.NewInjector(rand.New(rand.NewSource(2))),
		anomaly.DefaultConfig().WithInjectionProbability(0),
		nilDetector{},
	)
	return NewServer(orch, cfg, st)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestHandleStatus(t *testing.T) {
	server := testServer(store.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	server.handleStatus(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var status orchestrator.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Running {
		t.Error("orchestrator reported running before Run")
	}
}

func TestHandleRunOnce(t *testing.T) {
	server := testServer(store.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/run-once", nil)
	w := httptest.NewRecorder()
	server.handleRunOnce(w, req)

	if w.Result().StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %v", w.Result().StatusCode)
	}
}

func TestHandleMissions(t *testing.T) {
	st := store.NewMemory()
	st.AddMission(mission.Mission{ID: 1, Subject: "old patrol", Start: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)})
	st.AddMission(mission.Mission{ID: 2, Subject: "recent patrol", Start: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)})
	server := testServer(st)

	req := httptest.NewRequest(http.MethodGet, "/missions?since=2026-02-01", nil)
	w := httptest.NewRecorder()
	server.handleMissions(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v", w.Result().StatusCode)
	}
	var missions []mission.Mission
	if err := json.NewDecoder(w.Result().Body).Decode(&missions); err != nil {
		t.Fatal(err)
	}
	if len(missions) != 1 || missions[0].ID != 2 {
		t.Fatalf("unexpected missions %+v", missions)
	}

	// The since parameter also accepts day-first dates.
	w = httptest.NewRecorder()
	server.handleMissions(w, httptest.NewRequest(http.MethodGet, "/missions?since=01/02/2026", nil))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("day-first date rejected: %v", w.Result().StatusCode)
	}

	w = httptest.NewRecorder()
	server.handleMissions(w, httptest.NewRequest(http.MethodGet, "/missions?since=not-a-date", nil))
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %v", w.Result().StatusCode)
	}
}

func TestHandleContaminated(t *testing.T) {
	st := store.NewMemory()
	if err := st.MarkContaminated(context.Background(), 5, "test"); err != nil {
		t.Fatal(err)
	}
	server := testServer(st)

	req := httptest.NewRequest(http.MethodGet, "/contaminated", nil)
	w := httptest.NewRecorder()
	server.handleContaminated(w, req)

	var body struct {
		MissionIDs []int64 `json:"mission_ids"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.MissionIDs) != 1 || body.MissionIDs[0] != 5 {
		t.Fatalf("unexpected ids %v", body.MissionIDs)
	}
}

func TestHandleClearContamination(t *testing.T) {
	st := store.NewMemory()
	if err := st.MarkContaminated(context.Background(), 5, "test"); err != nil {
		t.Fatal(err)
	}
	server := testServer(st)

	req := httptest.NewRequest(http.MethodPost, "/clear-contamination?mission_id=5", nil)
	w := httptest.NewRecorder()
	server.handleClearContamination(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %v", w.Result().StatusCode)
	}
	ids, _ := st.ContaminatedMissionIDs(context.Background())
	if len(ids) != 0 {
		t.Errorf("contamination not cleared: %v", ids)
	}

	// Missing mission_id is a client error.
	w = httptest.NewRecorder()
	server.handleClearContamination(w, httptest.NewRequest(http.MethodPost, "/clear-contamination", nil))
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", w.Result().StatusCode)
	}
}
