package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-reservations/internal/booking"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Registrar interface {
	Register(ctx context.Context, username, password string) (booking.User, error)
}

type UsersHandler struct {
	Accounts Registrar
	Log      *zap.Logger
}

type registerReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResp struct {
	Username string       `json:"username"`
	Role     booking.Role `json:"role"`
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Post("/api/users", h.register)
	r.With(RequireActor).Get("/api/users/me", h.me)
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Accounts.Register(ctx, req.Username, req.Password)
	if err != nil {
		writeServiceErr(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResp{Username: u.Username, Role: u.Role})
}

func (h *UsersHandler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"username": Actor(r.Context())})
}
