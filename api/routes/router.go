package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/neurocare-backend/api/controllers"
	"github.com/angelmondragon/neurocare-backend/api/middleware"
	"github.com/angelmondragon/neurocare-backend/internal/products"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
)

type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions controllers.SessionProvider
	Products products.Service
	// Ready lists the dependencies pinged by /health/ready.
	Ready map[string]storage.Pinger
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Idempotency backs Idempotency-Key replay on checkout and cancel; nil disables it.
	Idempotency middleware.IdempotencyStore
}

func NewRouter(p Params) http.Handler {
	logg := p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(p.Config.App.CORSOrigins),
	)
	idempotent := middleware.Idempotency(p.Idempotency, p.Config.App.IdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, logg, p.Ready))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(p.Products, logg))
			r.Get("/{productID}", controllers.ProductDetail(p.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(p.Sessions, logg))
				r.Delete("/", controllers.CartClear(p.Sessions, logg))
				r.Post("/items", controllers.CartAddItem(p.Sessions, p.Products, logg))
				r.Patch("/items/{productID}", controllers.CartUpdateItem(p.Sessions, logg))
				r.Delete("/items/{productID}", controllers.CartRemoveItem(p.Sessions, logg))
			})
			r.With(idempotent).Post("/checkout", controllers.Checkout(p.Sessions, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(p.Sessions, logg))
				r.Get("/{orderID}", controllers.OrderDetail(p.Sessions, logg))
				r.With(idempotent).Post("/{orderID}/cancel", controllers.OrderCancel(p.Sessions, logg))
			})
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(p.Sessions, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Sessions, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(p.Sessions, logg))
			})
			r.Delete("/session", controllers.SessionEnd(p.Sessions, logg))
		})
	})

	return r
}
