package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kungukcm/Hospital-Booking-System/internal/conversation"
	"github.com/kungukcm/Hospital-Booking-System/internal/http/handlers"
	httpmiddleware "github.com/kungukcm/Hospital-Booking-System/internal/http/middleware"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	FormsHandler        *handlers.FormsHandler
	ConversationHandler *conversation.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// Per-IP limit on /v1 routes; zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))

		if forms := cfg.FormsHandler; forms != nil {
			v1.Post("/recommendations", forms.Recommendations)
			v1.Post("/predictions", forms.Predictions)
			v1.Post("/busiest", forms.Busiest)
			v1.Post("/least-busy", forms.LeastBusy)
			v1.Post("/alternatives", forms.Alternatives)
			v1.Post("/next-available", forms.NextAvailable)
			v1.Post("/day-summary", forms.DaySummary)
			v1.Route("/appointments", func(r chi.Router) {
				r.Get("/", forms.ListAppointments)
				r.Post("/", forms.BookAppointment)
				r.Delete("/", forms.CancelAppointment)
				r.Post("/reschedule", forms.RescheduleAppointment)
				r.Get("/stats", forms.AppointmentStats)
				r.Get("/next", forms.NextAppointment)
			})
		}

		if conv := cfg.ConversationHandler; conv != nil {
			v1.Route("/conversations", func(r chi.Router) {
				r.Post("/", conv.Start)
				r.Get("/{id}", conv.History)
				r.Post("/{id}/messages", conv.Message)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
