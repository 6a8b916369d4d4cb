package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/{orderId}", handler.GetOrder)
		r.Get("/orders/{orderId}/paid", handler.CheckOrderPaid)
		r.Post("/orders/{orderId}/confirm", handler.ConfirmOrder)
		r.Post("/orders/{orderId}/refund", handler.RefundOrder)
	})

	r.Route("/distributions", func(r chi.Router) {
		r.Post("/", handler.CreateDistribution)
		r.Get("/{modelId}/records", handler.ListDistributionRecords)
	})

	return &Server{Router: r}
}
