package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/proofgridgo/internal/ctxlog"
	"github.com/specialistvlad/proofgridgo/internal/executor"
	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/pool"
	"github.com/specialistvlad/proofgridgo/internal/statusfeed"
)

// statsResponse is the body of GET /stats.
type statsResponse struct {
	Executor   string                  `json:"executor"`
	Pool       pool.Stats              `json:"pool"`
	FreeWorker []int                   `json:"free_workers"`
	Numa       map[int]numa.NodeStatus `json:"numa,omitempty"`
	Active     []executor.ActivePlan   `json:"active"`
	Plans      []string                `json:"plans"`
	Watchers   int                     `json:"watchers"`
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) statsHandler(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Executor:   a.executor.ID(),
		Pool:       a.executor.PoolStats(),
		FreeWorker: a.executor.WorkerFreeStatus(),
		Numa:       a.executor.NumaStatus(),
		Active:     a.executor.ActivePlans(),
		Plans:      a.registry.PlanNames(),
	}
	if a.feed != nil {
		resp.Watchers = a.feed.Watchers()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		ctxlog.FromContext(a.ctx).Warn("Failed to write stats response.", "error", err)
	}
}

// statusMux routes the status server endpoints.
func (a *App) statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/stats", a.statsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))
	if a.feed != nil {
		mux.Handle(statusfeed.Path, a.feed.Handler())
	}
	return mux
}

// startStatusServer runs the status HTTP server in the background.
func (a *App) startStatusServer() {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Configuring status server.")

	addr := fmt.Sprintf(":%d", a.config.StatusPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.statusMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("🩺 Status server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeStatusServer() {
	logger := ctxlog.FromContext(a.ctx)
	if a.feed != nil {
		a.feed.Close()
	}
	if a.httpServer == nil {
		logger.Debug("Status server was not running.")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down status server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Status server shutdown failed", "error", err)
		return
	}
	logger.Debug("Status server shut down gracefully.")
}
