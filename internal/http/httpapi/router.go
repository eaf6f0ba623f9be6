package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imageservice/internal/http/handlers"
	"imageservice/internal/infra"
	"imageservice/internal/middleware"
)

// NewRouter mounts every route. Health, metrics and the API description stay
// public; the image API is rate limited and, when enabled, requires a bearer
// token.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	logger := infra.OrNop(app.Logger)
	r.Use(
		middleware.RequestID(*logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Metrics),
	)
	if app.Config != nil && len(app.Config.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(app.Config.CORSAllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", app.MetricsHandler())
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/api", func(r chi.Router) {
		perMin := 0
		if app.Config != nil {
			perMin = app.Config.RateLimitPerMin
		}
		r.Use(middleware.RateLimit(perMin, app.Metrics))
		if app.Config != nil && app.Config.EnableAuth {
			r.Use(middleware.AuthJWT(app.Config.JWTSecret))
		}

		r.Get("/providers", app.Providers)
		r.Post("/images/generate", app.ImagesGenerate)
		r.Route("/images/tasks", func(r chi.Router) {
			r.Post("/", app.TasksCreate)
			r.Get("/{id}", app.TasksGet)
			r.Get("/{id}/archive", app.TasksArchive)
		})
		r.Get("/download/{file_name}", app.Download)
	})

	return r
}
