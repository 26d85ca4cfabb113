package tenant

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/api"
	"github.com/secureauth-ai/sentinel/internal/store"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts the schema endpoints on a router rooted at /api/tenants.
func (h *Handler) Register(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/{token}/columns", h.AddColumn)
	r.Delete("/{token}/columns/{name}", h.RemoveColumn)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CustomColumns []string `json:"custom_columns"`
	}
	if err := api.Decode(r, &in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	token, err := h.service.CreateTenant(r.Context(), in.CustomColumns)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteResult(w, http.StatusCreated, token, "tenant created")
}

func (h *Handler) AddColumn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := api.Decode(r, &in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.service.AddColumn(r.Context(), chi.URLParam(r, "token"), in.Name); err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, "", "column added")
}

func (h *Handler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	name := chi.URLParam(r, "name")

	if err := h.service.RemoveColumn(r.Context(), token, name); err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, "", "column removed")
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidSchema):
		api.WriteError(w, http.StatusBadRequest, "invalid schema: reserved or duplicate column name")
	case errors.Is(err, ErrProtectedColumn):
		api.WriteError(w, http.StatusForbidden, "protected column")
	case errors.Is(err, store.ErrDuplicateColumn):
		api.WriteError(w, http.StatusConflict, "duplicate column")
	case errors.Is(err, store.ErrUnknownColumn):
		api.WriteError(w, http.StatusNotFound, "unknown column")
	case errors.Is(err, store.ErrUnknownTenant):
		api.WriteError(w, http.StatusNotFound, "unknown tenant")
	default:
		h.log.Error("schema operation failed", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "schema operation failed")
	}
}
