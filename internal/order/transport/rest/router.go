package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"order-pipeline/internal/metrics"
	"order-pipeline/internal/transport/httpmw"
	sharedrest "order-pipeline/internal/transport/rest"
)

type RouterDeps struct {
	Handler *Handler
	Service string
	DB      sharedrest.Pinger
	Broker  sharedrest.BrokerChecker
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}

	r := chi.NewRouter()

	r.Use(httpmw.RequestID)
	r.Use(httpmw.AccessLog)
	r.Use(middleware.Recoverer)

	r.Post("/orders", d.Handler.CreateOrder)
	r.Get("/orders/{orderID}", d.Handler.GetOrder)

	r.Get("/health", sharedrest.NewHealthHandler(d.Service, d.DB, d.Broker))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
