package calculation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCalculate(t *testing.T) {
	audit := &recordingAudit{}
	r := chi.NewRouter()
	NewHandler(newTestService(nil, audit, nil)).Routes(r)

	rec := serve(t, r, `{"eventDate":"2023-01-15","petName":"Mochi"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 14, res.ElapsedMonths)
	assert.Equal(t, 8, res.SuggestedQuantity)
	assert.Equal(t, "Mochi", res.Label)
	assert.Len(t, res.Schedule, 6)
	assert.Contains(t, rec.Body.String(), `"desc":`)
	assert.Len(t, audit.records, 1)
}

func TestHandleCalculateErrors(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(newTestService(nil, nil, nil)).Routes(r)

	rec := serve(t, r, `{"eventDate":"2099-01-01","locale":"en"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"VALIDATION_ERROR"`)
	assert.Contains(t, rec.Body.String(), "Please select a date in the past.")

	rec = serve(t, r, `{}`, map[string]string{"Accept-Language": "zh-CN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "请提供日期")

	rec = serve(t, r, `{"eventDate":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
