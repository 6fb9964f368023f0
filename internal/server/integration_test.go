package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"eternalflame/pkg/sqlgateway"
)

// setupPostgres starts a disposable PostgreSQL container. Skipped unless
// TEST_INTEGRATION is set.
func setupPostgres(t *testing.T) sqlgateway.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("eternalflame_test"),
		postgres.WithUsername("eternalflame"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return sqlgateway.Config{Backend: sqlgateway.BackendPostgres, DSN: dsn}
}

func post(t *testing.T, url, tok string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostgresCalculateFlow(t *testing.T) {
	a := newAppWith(t, setupPostgres(t))
	ts := httptest.NewServer(a.handler)
	defer ts.Close()

	resp := post(t, ts.URL+"/api/auth/register", "", map[string]string{"username": "mochi", "password": "pw123456"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))

	resp = post(t, ts.URL+"/api/calculate", session.Token, map[string]string{"eventDate": "2023-01-15", "label": "Mochi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts.URL+"/api/admin/login", "", map[string]string{"username": "root", "password": "rootpass"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var adminSession struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&adminSession))

	resp = post(t, ts.URL+"/api/admin/settings", adminSession.Token, map[string]string{"key": "notice", "value": "a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = post(t, ts.URL+"/api/admin/settings", adminSession.Token, map[string]string{"key": "notice", "value": "b"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec := a.do(t, http.MethodGet, "/api/admin/stats", "", adminSession.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_users":1,"today_calculates":1,"total_calculates":1}`, rec.Body.String())
}

func TestPostgresConcurrentRegisterSingleWinner(t *testing.T) {
	a := newAppWith(t, setupPostgres(t))
	ts := httptest.NewServer(a.handler)
	defer ts.Close()

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"username":"tofu","password":"pw-%d"}`, i)
			resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewBufferString(body))
			if err != nil {
				return
			}
			resp.Body.Close()
			mu.Lock()
			statuses[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, statuses[http.StatusCreated], "only one registration should succeed")
	assert.Equal(t, n-1, statuses[http.StatusConflict])
}
