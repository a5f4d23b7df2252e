/*
handlers.go - HTTP handler implementations

PURPOSE:
  Implements the API surface: scenario browsing and loading, starting
  single runs, reading their audit records, and launching Monte Carlo
  batches. Handlers hold no simulation logic; they translate HTTP to
  engine calls and engine results to DTOs.

ENDPOINTS:
  GET  /api/scenarios            List loaded scenarios
  POST /api/scenarios/load       Load a YAML scenario definition
  POST /api/runs                 Start one run (synchronous)
  GET  /api/runs                 List completed runs
  GET  /api/runs/{id}/records    Daily records (optional ?farm=)
  GET  /api/runs/{id}/sales      Sale events
  GET  /api/runs/{id}/summary    Run summary
  POST /api/montecarlo           Run a perturbed batch (synchronous)

SYNCHRONOUS RUNS:
  Classroom scenarios simulate a few years in well under a second, so
  runs execute inline and the response carries the summary. A job queue
  would be the next step if course datasets grow.

SEE ALSO:
  - server.go: routing and middleware
  - factory/scenario.go: the YAML loader behind /scenarios/load
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/farmsim/factory"
	"github.com/warp/farmsim/sim"
)

// Handler carries the API's dependencies and its scenario/summary caches.
type Handler struct {
	Store  sim.RecordStore
	Logger *slog.Logger

	mu        sync.RWMutex
	scenarios map[string]*sim.Scenario
	presets   map[string]bool
	summaries map[sim.RunID]*sim.RunSummary
}

// NewHandler builds a handler with the built-in preset scenarios loaded.
func NewHandler(store sim.RecordStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		Store:     store,
		Logger:    logger,
		scenarios: make(map[string]*sim.Scenario),
		presets:   make(map[string]bool),
		summaries: make(map[sim.RunID]*sim.RunSummary),
	}
	for name := range factory.Presets() {
		scenario, err := factory.LoadPreset(name)
		if err != nil {
			// A broken preset is a programming error; fail loudly at startup.
			panic(err)
		}
		h.scenarios[scenario.Name] = scenario
		h.presets[scenario.Name] = true
	}
	return h
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ListScenarios returns every loaded scenario.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ScenarioDTO, 0, len(h.scenarios))
	for name, s := range h.scenarios {
		out = append(out, scenarioDTO(s, h.presets[name]))
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario parses a YAML scenario from the request body and registers
// it under its own name. Reloading a name replaces the definition.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	scenario, err := factory.ParseScenario(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid scenario", err)
		return
	}

	h.mu.Lock()
	h.scenarios[scenario.Name] = scenario
	h.presets[scenario.Name] = false
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", "name", scenario.Name, "farms", len(scenario.Farms))
	writeJSON(w, http.StatusCreated, scenarioDTO(scenario, false))
}

// =============================================================================
// RUNS
// =============================================================================

// StartRun executes one run of a loaded scenario and returns its summary.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	scenario, ok := h.scenario(req.Scenario)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario", nil)
		return
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Each run mutates its own clone; the registered scenario stays pristine.
	run, err := sim.NewRun(scenario.Clone(), factory.DemoEnvironment(scenario), h.Store, seed, h.Logger)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "failed to assemble run", err)
		return
	}
	summary, err := run.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run failed", err)
		return
	}

	h.mu.Lock()
	h.summaries[summary.RunID] = summary
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, summaryDTO(summary))
}

// ListRuns returns all persisted runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	metas, err := h.Store.Runs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	out := make([]RunDTO, 0, len(metas))
	for _, meta := range metas {
		out = append(out, runDTO(meta))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRecords streams a run's daily records, optionally filtered by farm.
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	run := sim.RunID(chi.URLParam(r, "id"))
	farm := sim.FarmID(r.URL.Query().Get("farm"))

	records, err := h.Store.Records(r.Context(), run, farm)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, recordDTO(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSales returns a run's sale events.
func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	run := sim.RunID(chi.URLParam(r, "id"))

	events, err := h.Store.Sales(r.Context(), run)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetSummary returns the cached summary of a completed run.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	run := sim.RunID(chi.URLParam(r, "id"))

	h.mu.RLock()
	summary, ok := h.summaries[run]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no summary for run", nil)
		return
	}
	writeJSON(w, http.StatusOK, summaryDTO(summary))
}

// =============================================================================
// MONTE CARLO
// =============================================================================

// RunMonteCarlo executes a perturbed batch and returns its statistics.
// Batch runs bypass the record store; only the statistics come back.
func (h *Handler) RunMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req MonteCarloRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	scenario, ok := h.scenario(req.Scenario)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scenario", nil)
		return
	}

	cfg := sim.MonteCarloConfig{
		Runs:                 req.Runs,
		BaseSeed:             req.BaseSeed,
		Workers:              req.Workers,
		YieldSigma:           req.YieldSigma,
		PriceSigma:           req.PriceSigma,
		SupplySigma:          req.SupplySigma,
		DisableBalanceChecks: req.DisableBalanceChecks,
	}
	result, err := sim.RunMonteCarlo(r.Context(), scenario, factory.DemoEnvironment(scenario), nil, cfg, h.Logger)
	if err != nil {
		if errors.Is(err, sim.ErrInvalidConfig) {
			writeError(w, http.StatusUnprocessableEntity, "invalid batch config", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "batch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, monteCarloDTO(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) scenario(name string) (*sim.Scenario, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.scenarios[name]
	return s, ok
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sim.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "store error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	dto := ErrorDTO{Error: msg}
	if err != nil {
		dto.Detail = err.Error()
	}
	writeJSON(w, status, dto)
}
