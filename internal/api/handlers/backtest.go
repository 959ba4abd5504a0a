package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/audit"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data/quality"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/strategyconfig"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/redis"
)

const (
	maxConfigBytes = 1 << 20
	maxStoredRuns  = 50
)

// Runner executes strategies
type Runner interface {
	Run(ctx context.Context, rc brain.RunConfig) (*brain.RunResult, error)
	Sweep(ctx context.Context, rc brain.RunConfig, parallelism int) ([]brain.SweepOutcome, error)
}

// Limiter admits or rejects a request
type Limiter interface {
	Allow(ctx context.Context, cfg redis.RateLimitConfig) (bool, int, error)
}

// BacktestHandler handles backtest API endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	runner      Runner
	limiter     Limiter
	parallelism int
	dataDir     string // submitted data.path must resolve inside it
	logger      *logger.Logger

	mu    sync.RWMutex
	runs  map[string]*brain.RunResult
	order []string
}

// NewBacktestHandler creates a new backtest handler; limiter may be nil
func NewBacktestHandler(runner Runner, limiter Limiter, parallelism int, dataDir string, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner:      runner,
		limiter:     limiter,
		parallelism: parallelism,
		dataDir:     dataDir,
		logger:      log,
		runs:        make(map[string]*brain.RunResult),
	}
}

// BacktestRequest is a strategy config submitted for a run
type BacktestRequest struct {
	Config        string `json:"config"`         // strategy YAML
	IncludeSeries bool   `json:"include_series"` // gross/costs/net/equity 시계열 포함
}

// SeriesView is the per-date output of a run
type SeriesView struct {
	Gross    *contracts.Series `json:"gross"`
	Costs    *contracts.Series `json:"costs"`
	Net      *contracts.Series `json:"net"`
	Equity   *contracts.Series `json:"equity"`
	Turnover *contracts.Series `json:"turnover"`
}

// BacktestResponse is the API view of a run
type BacktestResponse struct {
	RunID       string                   `json:"run_id"`
	StrategyID  string                   `json:"strategy_id"`
	ConfigHash  string                   `json:"config_hash"`
	Summary     backtest.Summary         `json:"summary"`
	Performance *audit.PerformanceReport `json:"performance,omitempty"`
	Quality     *quality.Report          `json:"quality,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
	Series      *SeriesView              `json:"series,omitempty"`
}

// Run executes a submitted strategy
// POST /api/backtests
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.admit(w, r) {
		return
	}

	req, sc, hash, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.runner.Run(ctx, brain.RunConfig{Strategy: sc, ConfigHash: hash})
	if err != nil {
		h.fail(w, err, "Backtest failed")
		return
	}
	h.store(res)

	resp := view(res, req.IncludeSeries)
	for _, warn := range strategyconfig.Warn(sc) {
		resp.Warnings = append(resp.Warnings, warn.Message)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Sweep runs a submitted strategy over its sweep.cost_bps grid
// POST /api/backtests/sweep
func (h *BacktestHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.admit(w, r) {
		return
	}

	_, sc, hash, ok := h.decode(w, r)
	if !ok {
		return
	}

	outcomes, err := h.runner.Sweep(ctx, brain.RunConfig{Strategy: sc, ConfigHash: hash}, h.parallelism)
	if err != nil {
		h.fail(w, err, "Sweep failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategy_id": sc.Meta.StrategyID,
		"config_hash": hash,
		"variants":    outcomes,
	})
}

// Get returns a stored run
// GET /api/backtests/{id}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.RLock()
	res, ok := h.runs[id]
	h.mu.RUnlock()

	if !ok {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	includeSeries, _ := strconv.ParseBool(r.URL.Query().Get("series"))
	respondJSON(w, http.StatusOK, view(res, includeSeries))
}

// List returns the stored run ids, oldest first
// GET /api/backtests
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ids := append([]string(nil), h.order...)
	h.mu.RUnlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  ids,
		"count": len(ids),
	})
}

func (h *BacktestHandler) admit(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}

	allowed, remaining, err := h.limiter.Allow(r.Context(), redis.BacktestRateLimit.Per(clientIP(r)))
	if err != nil {
		// Redis 장애 시 요청은 통과
		h.logger.WithError(err).Warn("Rate limit check failed")
		return true
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !allowed {
		respondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return false
	}
	return true
}

func (h *BacktestHandler) decode(w http.ResponseWriter, r *http.Request) (BacktestRequest, *strategyconfig.Config, string, bool) {
	var req BacktestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxConfigBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return req, nil, "", false
	}
	if req.Config == "" {
		respondError(w, http.StatusBadRequest, "config is required")
		return req, nil, "", false
	}

	sc, err := strategyconfig.Parse([]byte(req.Config))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return req, nil, "", false
	}
	if err := h.checkDataPath(sc.Data.Path); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return req, nil, "", false
	}
	hash, err := strategyconfig.Hash(sc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash config")
		return req, nil, "", false
	}
	return req, sc, hash, true
}

// checkDataPath keeps API-submitted file sources under the configured data directory
func (h *BacktestHandler) checkDataPath(path string) error {
	if path == "" {
		return nil
	}
	outside := fmt.Errorf("%w: data.path %q is outside the data directory", contracts.ErrInvalidConfiguration, path)
	if h.dataDir == "" {
		return outside
	}

	root, err := filepath.Abs(h.dataDir)
	if err != nil {
		return outside
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return outside
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return outside
	}
	return nil
}

func (h *BacktestHandler) fail(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, contracts.ErrInvalidConfiguration) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.WithError(err).Error(msg)
	respondError(w, http.StatusInternalServerError, msg)
}

func (h *BacktestHandler) store(res *brain.RunResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.runs[res.RunID]; !exists {
		h.order = append(h.order, res.RunID)
	}
	h.runs[res.RunID] = res

	for len(h.order) > maxStoredRuns {
		delete(h.runs, h.order[0])
		h.order = h.order[1:]
	}
}

func view(res *brain.RunResult, includeSeries bool) BacktestResponse {
	resp := BacktestResponse{
		RunID:       res.RunID,
		StrategyID:  res.StrategyID,
		ConfigHash:  res.ConfigHash,
		Summary:     res.Summary,
		Performance: res.Performance,
		Quality:     res.Quality,
	}
	if includeSeries && res.Backtest != nil {
		resp.Series = &SeriesView{
			Gross:    res.Backtest.Gross,
			Costs:    res.Backtest.Costs,
			Net:      res.Backtest.Net,
			Equity:   res.Backtest.Equity,
			Turnover: res.Backtest.Turnover,
		}
	}
	return resp
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
