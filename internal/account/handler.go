package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/api"
	"github.com/secureauth-ai/sentinel/internal/store"
	"github.com/secureauth-ai/sentinel/internal/tenant"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts the user endpoints on a router rooted at /api/tenants.
func (h *Handler) Register(r chi.Router) {
	r.Post("/{token}/users", h.SignUp)
	r.Get("/{token}/users", h.Get)
	r.Patch("/{token}/users", h.Update)
	r.Delete("/{token}/users", h.Remove)
}

// RecordView is the externally visible projection of a user record. The
// password and MFA key tokens never leave the service.
type RecordView struct {
	ID            int64             `json:"id"`
	TotalLogins   int               `json:"total_logins"`
	PrevLocations []store.Location  `json:"prev_locations"`
	PrevDevices   []string          `json:"prev_devices"`
	PrevLogins    []time.Time       `json:"prev_logins"`
	Attempts      int               `json:"attempts"`
	AllAttempts   int               `json:"all_attempts"`
	PendingMFA    bool              `json:"pending_mfa"`
	Details       map[string]string `json:"details"`
}

func viewOf(rec *store.Record) RecordView {
	return RecordView{
		ID:            rec.ID,
		TotalLogins:   rec.TotalLogins,
		PrevLocations: rec.PrevLocations,
		PrevDevices:   rec.PrevDevices,
		PrevLogins:    rec.PrevLogins,
		Attempts:      rec.Attempts,
		AllAttempts:   rec.AllAttempts,
		PendingMFA:    rec.PendingMFA,
		Details:       rec.Custom,
	}
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password          string            `json:"password"`
		Location          store.Location    `json:"location"`
		Device            string            `json:"device"`
		Details           map[string]string `json:"details"`
		UniqueIdentifiers []string          `json:"unique_identifiers"`
	}
	if err := api.Decode(r, &in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if in.Password == "" {
		api.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}

	mfaKey, err := h.service.SignUp(r.Context(), chi.URLParam(r, "token"), SignUpInput{
		Password:          in.Password,
		Location:          in.Location,
		Device:            in.Device,
		Details:           in.Details,
		UniqueIdentifiers: in.UniqueIdentifiers,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}

	// The MFA key is returned exactly once; it is stored only tokenized.
	api.WriteResult(w, http.StatusCreated, mfaKey, "user signed up")
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	column := r.URL.Query().Get("column")
	value := r.URL.Query().Get("value")

	if column == "" {
		recs, err := h.service.GetAllDetails(r.Context(), token)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		views := make([]RecordView, len(recs))
		for i, rec := range recs {
			views[i] = viewOf(rec)
		}
		api.WriteResult(w, http.StatusOK, views, "all details retrieved")
		return
	}

	rec, err := h.service.GetByIdentifier(r.Context(), token, column, value)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, viewOf(rec), "user details retrieved")
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Column         string            `json:"column"`
		Value          string            `json:"value"`
		Details        map[string]string `json:"details"`
		AllowProtected bool              `json:"allow_protected"`
	}
	if err := api.Decode(r, &in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	err := h.service.UpdateDetails(r.Context(), chi.URLParam(r, "token"),
		in.Column, in.Value, in.Details, in.AllowProtected)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, "", "details updated")
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	column := r.URL.Query().Get("column")
	value := r.URL.Query().Get("value")

	if err := h.service.RemoveUser(r.Context(), token, column, value); err != nil {
		h.writeErr(w, err)
		return
	}
	api.WriteResult(w, http.StatusOK, "", "user removed")
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateIdentifier):
		api.WriteError(w, http.StatusConflict, "user already exists with the given unique identifier")
	case errors.Is(err, tenant.ErrProtectedColumn):
		api.WriteError(w, http.StatusForbidden, "protected column: set allow_protected to override")
	case errors.Is(err, tenant.ErrInvalidSchema):
		api.WriteError(w, http.StatusBadRequest, "invalid value for protected column")
	case errors.Is(err, store.ErrUnknownTenant):
		api.WriteError(w, http.StatusNotFound, "unknown tenant")
	case errors.Is(err, store.ErrUnknownColumn):
		api.WriteError(w, http.StatusNotFound, "unknown column")
	case errors.Is(err, store.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "user not found")
	default:
		h.log.Error("account operation failed", zap.Error(err))
		api.WriteError(w, http.StatusInternalServerError, "account operation failed")
	}
}
