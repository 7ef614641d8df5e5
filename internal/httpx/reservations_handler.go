package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ReservationService interface {
	CreateReservation(ctx context.Context, actor string, dto booking.ReservationDTO) (booking.ReservationDTO, error)
	UpdateReservation(ctx context.Context, actor string, dto booking.ReservationDTO) (booking.ReservationDTO, error)
	DeleteReservation(ctx context.Context, actor string, id int64) error
	GetReservation(ctx context.Context, id int64) (booking.ReservationDTO, error)
	GetReservations(ctx context.Context) ([]booking.ReservationDTO, error)
	GetReservationsForItem(ctx context.Context, itemID int64) ([]booking.ReservationDTO, error)
}

type ReservationsHandler struct {
	Service ReservationService
	Log     *zap.Logger
}

func (h *ReservationsHandler) Register(r chi.Router) {
	r.Get("/api/reservations", h.list)
	r.Get("/api/reservations/{id:[0-9]+}", h.get)
	r.Get("/api/items/{id:[0-9]+}/reservations", h.listForItem)
	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Post("/api/reservations", h.create)
		r.Put("/api/reservations/{id:[0-9]+}", h.update)
		r.Delete("/api/reservations/{id:[0-9]+}", h.delete)
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (h *ReservationsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.GetReservations(ctx)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReservationsHandler) listForItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.GetReservationsForItem(ctx, id)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReservationsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.GetReservation(ctx, id)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReservationsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req booking.ReservationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Target <= 0 {
		writeErr(w, http.StatusBadRequest, "missing target")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.CreateReservation(ctx, Actor(r.Context()), req)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/reservations/%d", out.ID))
	writeJSON(w, http.StatusCreated, out)
}

func (h *ReservationsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req booking.ReservationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == 0 {
		req.ID = id
	}
	if req.ID != id {
		writeErr(w, http.StatusBadRequest, "id in path and body differ")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.UpdateReservation(ctx, Actor(r.Context()), req)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReservationsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.DeleteReservation(ctx, Actor(r.Context()), id); err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
