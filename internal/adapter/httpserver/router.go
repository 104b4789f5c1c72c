package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces.
// Empty input means every origin.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with middleware and routes.
func BuildRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer())
	r.Use(RequestID())
	r.Use(Metrics())

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(s.Cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// mutating endpoints are rate limited per caller IP
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(s.Cfg.RateLimitPerMin, time.Minute))
		wr.Post("/v1/scrape", s.ScrapeHandler())
		wr.Post("/v1/inbox/sync", s.InboxSyncHandler())
		wr.Post("/v1/applications/{id}/status", s.StatusHandler())
		wr.Post("/v1/resumes", s.ResumeUploadHandler())
		wr.Post("/v1/contacts/import", s.ContactsImportHandler())
		wr.Delete("/v1/tasks", s.TasksCancelHandler())
	})

	r.Get("/v1/jobs/{id}/match", s.MatchHandler())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return otelhttp.NewHandler(SecurityHeaders(r), "http.server")
}
