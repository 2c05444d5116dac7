package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tovald/stocksync/internal/config"
	httpopenapi "github.com/tovald/stocksync/internal/http/openapi"
	"github.com/tovald/stocksync/internal/obs"
	"github.com/tovald/stocksync/internal/runlog"
	syncpkg "github.com/tovald/stocksync/internal/sync"
)

// SyncRunner is the slice of sync.Runner the handlers need.
type SyncRunner interface {
	Run(ctx context.Context) (syncpkg.RunReport, error)
	InFlight() bool
}

// App carries the dependencies of the HTTP layer.
type App struct {
	Cfg     config.Config
	Runner  SyncRunner
	Runs    *runlog.Log
	started time.Time
}

// NewApp wires the HTTP application.
func NewApp(cfg config.Config, runner SyncRunner, runs *runlog.Log) *App {
	return &App{Cfg: cfg, Runner: runner, Runs: runs, started: time.Now()}
}

// syncHandler is the scheduled trigger: it runs one full reconciliation pass
// synchronously and answers with a human-readable summary. GET is accepted
// alongside POST because common schedulers only issue GETs.
func (a *App) syncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	rep, err := a.Runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, syncpkg.ErrRunInFlight) {
			writeText(w, http.StatusConflict, "sync already running")
			return
		}
		a.Runs.Add(rep)
		writeText(w, http.StatusInternalServerError, "sync failed: "+err.Error())
		return
	}
	a.Runs.Add(rep)
	writeText(w, http.StatusOK, rep.Summary.String())
}

// runsHandler lists recent run reports, newest first.
func (a *App) runsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.Runs.Recent(0))
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"sync_running": a.Runner.InFlight(),
		"uptime_sec":   time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
	if status >= 500 {
		obs.Logger.Error("sync_trigger_failed", "status", status, "message", msg)
	}
}
