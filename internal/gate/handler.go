package gate

import (
	"errors"
	"net/http"
	"time"

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

// Register mounts the gate endpoints on a router rooted at /api/tenants.
func (h *Handler) Register(r chi.Router) {
	r.Post("/{token}/login", h.Login)
	r.Post("/{token}/mfa/verify", h.VerifyMFA)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Column    string         `json:"column"`
		Value     string         `json:"value"`
		Password  string         `json:"password"`
		Location  store.Location `json:"location"`
		Device    string         `json:"device"`
		Timestamp time.Time      `json:"timestamp"`
	}
	if err := api.Decode(r, &in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if in.Column == "" || in.Password == "" {
		api.WriteError(w, http.StatusBadRequest, "column and password are required")
		return
	}

	out, err := h.service.Login(r.Context(), chi.URLParam(r, "token"), LoginInput{
		Column:    in.Column,
		Value:     in.Value,
		Password:  in.Password,
		Location:  in.Location,
		Device:    in.Device,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeOutcome(w, out)
}

func (h *Handler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Key    string `json:"key"`
		Column string `json:"column"`
		Value  string `json:"value"`
	}
	if err := api.Decode(r, &in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if in.Key == "" || in.Column == "" {
		api.WriteError(w, http.StatusBadRequest, "key and column are required")
		return
	}

	out, err := h.service.VerifyMFA(r.Context(), chi.URLParam(r, "token"), in.Key, in.Column, in.Value)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeOutcome(w, out)
}

func writeOutcome(w http.ResponseWriter, out *Outcome) {
	res := api.Result{
		Value:   out.Value,
		Success: out.State == StateAuthenticated,
		Message: out.Message,
	}
	switch out.State {
	case StateAuthenticated:
		api.Write(w, http.StatusOK, res)
	case StateRequiresMFA:
		api.Write(w, http.StatusOK, res)
	default:
		api.Write(w, http.StatusUnauthorized, res)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownTenant):
		api.WriteError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, store.ErrUnknownColumn):
		api.WriteError(w, http.StatusNotFound, "unknown column")
	case errors.Is(err, store.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "no user found with the given details")
	default:
		h.log.Error("gate operation failed", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "login failed")
	}
}
