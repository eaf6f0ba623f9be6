package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
	"imageservice/internal/metrics"
	"imageservice/internal/service"
)

// App carries the dependencies shared by every handler. Tasks may be nil when
// no task store is configured; the task routes then answer 503.
type App struct {
	Config    *infra.Config
	Logger    *infra.Logger
	Generator *service.Generator
	Tasks     *service.TaskService
	Metrics   *metrics.Collector
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorResponse{Error: errCode, Message: msg})
}

// fail maps a domain error onto its status code. Server side failures are
// logged with the request scoped logger and their detail is not echoed.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.HTTPStatus(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("vendor_message", domain.VendorMessage(err)).
			Msg("request failed")
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" && code < http.StatusInternalServerError {
		msg = de.Message
	}
	a.error(w, code, domain.ErrorCode(err), msg)
}
