package tenant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/secureauth-ai/sentinel/internal/api"
)

func newTestRouter(t *testing.T) chi.Router {
	h := NewHandler(newTestService(t), zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/tenants", func(r chi.Router) {
		h.Register(r)
	})
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) (*httptest.ResponseRecorder, api.Result) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var res api.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return rr, res
}

func TestHandlerCreate(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSuccess bool
	}{
		{
			name:        "valid schema",
			body:        `{"custom_columns": ["username", "email"]}`,
			wantStatus:  http.StatusCreated,
			wantSuccess: true,
		},
		{
			name:       "reserved column",
			body:       `{"custom_columns": ["password"]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed payload",
			body:       `{"custom_columns": "username"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, res := doJSON(t, r, http.MethodPost, "/api/tenants/", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantSuccess, res.Success)
			if tt.wantSuccess {
				assert.NotEmpty(t, res.Value, "token is the payload")
			}
		})
	}
}

func TestHandlerColumns(t *testing.T) {
	r := newTestRouter(t)

	_, created := doJSON(t, r, http.MethodPost, "/api/tenants/", `{"custom_columns": ["username"]}`)
	token, ok := created.Value.(string)
	require.True(t, ok)

	rr, res := doJSON(t, r, http.MethodPost, "/api/tenants/"+token+"/columns", `{"name": "nickname"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, res.Success)

	rr, _ = doJSON(t, r, http.MethodPost, "/api/tenants/"+token+"/columns", `{"name": "password"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = doJSON(t, r, http.MethodPost, "/api/tenants/"+token+"/columns", `{"name": "nickname"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, res = doJSON(t, r, http.MethodDelete, "/api/tenants/"+token+"/columns/nickname", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, res.Success)

	rr, _ = doJSON(t, r, http.MethodDelete, "/api/tenants/"+token+"/columns/nickname", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = doJSON(t, r, http.MethodDelete, "/api/tenants/"+token+"/columns/password", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandlerUnknownTenant(t *testing.T) {
	r := newTestRouter(t)

	rr, res := doJSON(t, r, http.MethodPost, "/api/tenants/no-such-token/columns", `{"name": "nickname"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, res.Success)
}
