package httpapi

import (
	"expvar"
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync", app.syncHandler)
	mux.HandleFunc("/runs", app.runsHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/openapi.yaml", app.openapiHandler)
	return WithRequestID(WithLogging(mux))
}
