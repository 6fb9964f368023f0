package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eternalflame/internal/httpx"
	"eternalflame/pkg/token"
)

func TestAdminRoutesRequireElevation(t *testing.T) {
	svc, gw := newTestService(t)
	seedUsers(t, gw, "mochi")

	codec := token.NewCodec("test-secret", time.Hour)
	r := chi.NewRouter()
	r.Use(httpx.Authenticate(codec))
	NewHandler(svc).Routes(r)

	adminToken, err := codec.Issue(1, "root", true)
	require.NoError(t, err)
	userToken, err := codec.Issue(1, "mochi", false)
	require.NoError(t, err)

	call := func(method, path, body, tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/admin/stats", "", "").Code)
	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/admin/stats", "", userToken).Code)

	rec := call(http.MethodGet, "/admin/stats", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_users":1,"today_calculates":0,"total_calculates":0}`, rec.Body.String())

	rec = call(http.MethodGet, "/admin/users?page=1&per_page=5&search=mo", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var users struct {
		Items []UserItem `json:"items"`
		Total int64      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Equal(t, int64(1), users.Total)
	assert.Equal(t, "mochi", users.Items[0].Username)

	rec = call(http.MethodGet, "/admin/calculate-logs?page=x", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, rec.Body.String())

	rec = call(http.MethodPost, "/admin/settings", `{"key":"notice","value":"closed on Monday"}`, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(http.MethodPost, "/admin/settings", `{"value":"x"}`, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(http.MethodGet, "/admin/settings", "", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings map[string]Setting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "closed on Monday", settings["notice"].Value)
}
