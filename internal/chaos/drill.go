// internal/chaos/drill.go
package chaos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"eternalflame/internal/calculation"
	"eternalflame/internal/clients"
	"eternalflame/internal/membership"
	"eternalflame/pkg/sqlgateway"
	"eternalflame/pkg/token"
)

var errInjected = errors.New("injected fault")

// Faults are the switches experiments flip.
type Faults struct {
	TranslatorDown atomic.Bool
	AuditDown      atomic.Bool
}

// Drill is a self-contained copy of the request path: a SQLite gateway, a
// local translation backend and the real services wired over them.
type Drill struct {
	Faults   *Faults
	Calc     calculation.Service
	Accounts membership.Service

	gw         *sqlgateway.Gateway
	translator *httptest.Server
	samples    atomic.Int64
}

// NewDrill builds a drill environment with its database under dir.
func NewDrill(dir string, logger zerolog.Logger) (*Drill, error) {
	cfg := sqlgateway.Config{Backend: sqlgateway.BackendSQLite, DSN: filepath.Join(dir, "drill.db")}
	if err := sqlgateway.Migrate(cfg, logger); err != nil {
		return nil, err
	}
	gw, err := sqlgateway.Open(cfg)
	if err != nil {
		return nil, err
	}

	faults := &Faults{}
	backend := httptest.NewServer(translationBackend(faults))

	codec := token.NewCodec("drill-secret", time.Hour)
	translator := clients.NewTranslatorClient(clients.TranslatorConfig{
		BaseURL:      backend.URL,
		Timeout:      time.Second,
		DisableCache: true,
	}, logger)
	audit := &faultyAudit{inner: calculation.NewAuditStore(gw), faults: faults}

	return &Drill{
		Faults:     faults,
		Calc:       calculation.NewService(translator, codec, audit, logger, calculation.Options{}),
		Accounts:   membership.NewService(gw, codec, nil, logger),
		gw:         gw,
		translator: backend,
	}, nil
}

func (d *Drill) Close() error {
	d.translator.Close()
	return d.gw.Close()
}

// translationBackend echoes each text with an EN: prefix, or fails while the
// translator fault is on.
func translationBackend(faults *Faults) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if faults.TranslatorDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "translator down"})
			return
		}

		var req struct {
			Q []string `json:"q"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out := make([]string, len(req.Q))
		for i, q := range req.Q {
			out[i] = "EN:" + q
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"translatedText": out})
	})
}

type faultyAudit struct {
	inner  calculation.AuditStore
	faults *Faults
}

func (a *faultyAudit) Append(ctx context.Context, rec calculation.AuditRecord) error {
	if a.faults.AuditDown.Load() {
		return fmt.Errorf("audit append: %w", errInjected)
	}
	return a.inner.Append(ctx, rec)
}

// auditRows counts stored audit records.
func (d *Drill) auditRows(ctx context.Context) (float64, error) {
	return d.scalar(ctx, "SELECT COUNT(*) AS n FROM calculate_logs")
}

// duplicateAccounts counts usernames stored more than once.
func (d *Drill) duplicateAccounts(ctx context.Context) (float64, error) {
	return d.scalar(ctx, "SELECT COUNT(*) - COUNT(DISTINCT username) AS n FROM users")
}

func (d *Drill) scalar(ctx context.Context, query string) (float64, error) {
	var n int64
	err := d.gw.WithCursor(ctx, func(cur *sqlgateway.Cursor) error {
		if err := cur.Query(ctx, query); err != nil {
			return err
		}
		row, ok := cur.FetchOne()
		if !ok {
			return fmt.Errorf("%w: no row", sqlgateway.ErrData)
		}
		n = row.Int64("n")
		return nil
	})
	return float64(n), err
}
