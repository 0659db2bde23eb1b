package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every HTTP route.
func NewRouter(h *Handler, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(RequestID, Observe(logger))

	apiV1.HandleFunc("/users", h.ListClients).Methods(http.MethodGet)
	apiV1.HandleFunc("/users", h.CreateClient).Methods(http.MethodPost)
	apiV1.HandleFunc("/users/{id}", h.UpdateClient).Methods(http.MethodPut)

	apiV1.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	apiV1.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	apiV1.HandleFunc("/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	apiV1.HandleFunc("/accounts/{id}/transfer", h.CreditAccount).Methods(http.MethodPatch)
	apiV1.HandleFunc("/accounts/{id}/entries", h.GetAccountEntries).Methods(http.MethodGet)

	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost)
	apiV1.HandleFunc("/transfers/{id}", h.GetTransfer).Methods(http.MethodGet)

	return r
}
