package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/punchamoorthee/bankledger/internal/domain"
	"github.com/punchamoorthee/bankledger/internal/models"
	"github.com/punchamoorthee/bankledger/internal/service"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	out := make([]models.Client, 0, len(clients))
	for i := range clients {
		out = append(out, models.NewClient(&clients[i], service.BirthdateLayout))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req models.ClientRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondBadBody(w, err)
		return
	}
	c, err := h.clients.Create(r.Context(), clientInput(req))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/users/%d", c.ID))
	respondJSON(w, http.StatusCreated, models.NewClient(c, service.BirthdateLayout))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.ClientRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondBadBody(w, err)
		return
	}
	c, err := h.clients.Update(r.Context(), id, clientInput(req))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NewClient(c, service.BirthdateLayout))
}

func clientInput(req models.ClientRequest) service.ClientInput {
	in := service.ClientInput{
		Name:      req.Name,
		Address:   req.Address,
		Birthdate: req.Birthdate,
	}
	if req.Latitude != nil && req.Longitude != nil {
		in.Location = &domain.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	return in
}
