package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/horanet/hauth/internal/store"
)

// Handler wires the engine's HTTP endpoints: login, logout and the
// account management passthroughs.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, e *Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: e, validate: validator.New()}
}

// MountRoutes registers the engine routes on the provided router. The
// account management routes are not gated here; embedders gate them via
// the rule table (the demo reserves them to admins).
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/adduser", h.addUser)
	r.Put("/moduser/{login}", h.modUser)
	r.Delete("/deluser/{login}", h.delUser)
}

// Login verifies submitted credentials and, on success, issues the
// session cookie and echoes the principal. Failure is a bare 401 via
// the configured responder.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, private, no-store, must-revalidate")

	principal, err := h.engine.verifier.Verify(r.Context(), w, r)
	if err != nil {
		h.logger.Error("login store failure", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if principal == nil {
		h.engine.responder.Unauthenticated(w, r)
		return
	}

	raw, err := h.engine.tokens.Issue(*principal)
	if err != nil {
		h.logger.Error("issue session token", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.engine.tokens.WriteCookie(w, raw)
	h.writeJSON(w, http.StatusOK, principal)
}

// Logout clears the session cookie. The token itself stays valid until
// expiry; only this client's copy is discarded.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.engine.tokens.ClearCookie(w)
	h.engine.responder.LoggedOut(w, r)
}

type addUserRequest struct {
	store.NewUser
	Login string `json:"login" validate:"required"`
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req.NewUser.Login = req.Login
	user, err := h.engine.AddUser(r.Context(), req.NewUser)
	if err != nil {
		h.logger.Error("add user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) modUser(w http.ResponseWriter, r *http.Request) {
	var patch store.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	user, err := h.engine.ModUser(r.Context(), chi.URLParam(r, "login"), patch)
	if err != nil {
		h.logger.Error("mod user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) delUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.engine.DelUser(r.Context(), chi.URLParam(r, "login"))
	if err != nil {
		h.logger.Error("del user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// writeJSON encodes v, which may be a typed nil: a missing row is
// reported as a JSON null body with status 200, matching the idempotent
// CRUD contract.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}
