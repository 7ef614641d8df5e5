package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ItemService interface {
	CreateItem(ctx context.Context, actor string, dto booking.ItemDTO) (booking.ItemDTO, error)
	GetItem(ctx context.Context, id int64) (booking.ItemDTO, error)
	GetItems(ctx context.Context) ([]booking.ItemDTO, error)
	GetItemsByUser(ctx context.Context, username string) ([]booking.ItemDTO, error)
	QueryItems(ctx context.Context, query string) ([]booking.ItemDTO, error)
	UpdateItem(ctx context.Context, actor string, dto booking.ItemDTO) (booking.ItemDTO, error)
	DeleteItem(ctx context.Context, actor string, id int64) error
}

type ItemsHandler struct {
	Service ItemService
	Log     *zap.Logger
}

func (h *ItemsHandler) Register(r chi.Router) {
	r.Get("/api/items/{id:[0-9]+}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Get("/api/items", h.list)
		r.Get("/api/items/user/{username}", h.listByUser)
		r.Get("/api/items/query/{query}", h.query)
		r.Post("/api/items", h.create)
		r.Put("/api/items/{id:[0-9]+}", h.update)
		r.Delete("/api/items/{id:[0-9]+}", h.delete)
	})
}

func (h *ItemsHandler) respondList(w http.ResponseWriter, r *http.Request, load func(context.Context) ([]booking.ItemDTO, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := load(ctx)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ItemsHandler) list(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.Service.GetItems)
}

func (h *ItemsHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	h.respondList(w, r, func(ctx context.Context) ([]booking.ItemDTO, error) {
		return h.Service.GetItemsByUser(ctx, username)
	})
}

func (h *ItemsHandler) query(w http.ResponseWriter, r *http.Request) {
	q := chi.URLParam(r, "query")
	h.respondList(w, r, func(ctx context.Context) ([]booking.ItemDTO, error) {
		return h.Service.QueryItems(ctx, q)
	})
}

func (h *ItemsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.GetItem(ctx, id)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ItemsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req booking.ItemDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Service.CreateItem(ctx, Actor(r.Context()), req)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/items/%d", out.ID))
	writeJSON(w, http.StatusCreated, out)
}

func (h *ItemsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req booking.ItemDTO
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

	out, err := h.Service.UpdateItem(ctx, Actor(r.Context()), req)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ItemsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.DeleteItem(ctx, Actor(r.Context()), id); err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
