package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"clipforge/internal/http/handlers"
	"clipforge/internal/infra"
	"clipforge/internal/infra/geoip"
	"clipforge/internal/middleware"
)

// RouterOptions carries the cross-cutting collaborators the route tree needs.
type RouterOptions struct {
	Logger          infra.Logger
	Region          geoip.CountryResolver
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.Recoverer)
	r.Use(middleware.Region(opts.Region))
	r.Use(middleware.Logger(opts.Logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/estimates", func(r chi.Router) {
		r.Post("/", app.Estimate)
	})

	r.Route("/v1/prompts", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.PromptsCreate)
		} else {
			r.Post("/", app.PromptsCreate)
		}
		r.Get("/", app.PromptsList)
		r.Get("/{id}", app.PromptStatus)
		r.Post("/{id}/retry", app.PromptRetry)
		r.Get("/{id}/clips", app.PromptClips)
		r.Get("/{id}/download", app.PromptDownload)
	})

	r.Get("/v1/credits", app.CreditBalance)

	r.Route("/v1/integrations/kling", func(r chi.Router) {
		r.Get("/status", app.KlingStatus)
		r.Post("/key", app.KlingSetKey)
		r.Delete("/key", app.KlingDeleteKey)
	})

	return r
}
