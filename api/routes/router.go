package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lxlibrary/lx-backend/api/controllers"
	chatcontrollers "github.com/lxlibrary/lx-backend/api/controllers/chat"
	txcontrollers "github.com/lxlibrary/lx-backend/api/controllers/transactions"
	"github.com/lxlibrary/lx-backend/api/middleware"
	"github.com/lxlibrary/lx-backend/pkg/config"
	"github.com/lxlibrary/lx-backend/pkg/logger"
)

// StateRegistry resolves the per-client and per-session state owners.
type StateRegistry interface {
	txcontrollers.StoreResolver
	chatcontrollers.SessionResolver
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry StateRegistry,
	deps map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", txcontrollers.CartFetch(registry, logg))
			r.Delete("/", txcontrollers.CartClear(registry, logg))
			r.Post("/items", txcontrollers.CartAddItem(registry, logg))
			r.Delete("/items/{itemId}", txcontrollers.CartRemoveItem(registry, logg))
			r.Post("/checkout", txcontrollers.CartCheckout(registry, logg))
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", txcontrollers.LoansList(registry, logg))
			r.Post("/", txcontrollers.LoanCreate(registry, logg))
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", chatcontrollers.ChatFetch(registry, logg))
			r.Post("/toggle", chatcontrollers.ChatToggle(registry, logg))
			r.Post("/messages", chatcontrollers.ChatSendMessage(registry, logg))
			r.Get("/quick-questions", chatcontrollers.ChatQuickQuestions(logg))
		})
	})

	return r
}
