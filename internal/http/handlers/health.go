package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": len(a.Generator.Providers()),
		"tasks":     a.Tasks != nil,
	})
}

// Providers lists the registered providers and their models.
func (a *App) Providers(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"providers": a.Generator.Providers()})
}

func (a *App) MetricsHandler() http.Handler {
	return a.Metrics.Handler()
}
