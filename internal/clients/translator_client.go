// internal/clients/translator_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var translationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eternalflame_translations_total",
		Help: "Translated texts by outcome (cache_hit, translated, fallback).",
	},
	[]string{"outcome"},
)

// Translator renders source-locale text in the target locale. It never
// fails: any problem yields the input unchanged.
type Translator interface {
	Translate(ctx context.Context, text string) string
	TranslateBatch(ctx context.Context, texts []string) []string
}

// NoopTranslator returns every input unchanged.
type NoopTranslator struct{}

func (NoopTranslator) Translate(_ context.Context, text string) string { return text }

func (NoopTranslator) TranslateBatch(_ context.Context, texts []string) []string {
	return append([]string{}, texts...)
}

type TranslatorConfig struct {
	BaseURL   string
	APIKey    string
	Source    string
	Target    string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	// DisableCache sends every text to the service.
	DisableCache bool
}

// TranslatorClient talks to a LibreTranslate-compatible /translate endpoint
// behind a circuit breaker and a TTL cache.
type TranslatorClient struct {
	cfg        TranslatorConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *expirable.LRU[string, string]
	logger     zerolog.Logger
}

func NewTranslatorClient(cfg TranslatorConfig, logger zerolog.Logger) *TranslatorClient {
	if cfg.Source == "" {
		cfg.Source = "zh"
	}
	if cfg.Target == "" {
		cfg.Target = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger = logger.With().Str("component", "translator").Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "translator",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	c := &TranslatorClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
	if !cfg.DisableCache {
		c.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return c
}

func (c *TranslatorClient) Translate(ctx context.Context, text string) string {
	return c.TranslateBatch(ctx, []string{text})[0]
}

// TranslateBatch translates texts in one request. Cached and blank entries
// are not sent; entries the service cannot translate come back unchanged.
func (c *TranslatorClient) TranslateBatch(ctx context.Context, texts []string) []string {
	out := append([]string{}, texts...)

	var (
		pending []string
		slots   []int
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if cached, ok := c.cached(text); ok {
			translationsTotal.WithLabelValues("cache_hit").Inc()
			out[i] = cached
			continue
		}
		pending = append(pending, text)
		slots = append(slots, i)
	}
	if len(pending) == 0 {
		return out
	}

	translated, err := c.request(ctx, pending)
	if err != nil {
		translationsTotal.WithLabelValues("fallback").Add(float64(len(pending)))
		c.logger.Warn().Err(err).Int("texts", len(pending)).Msg("translation failed, returning source text")
		return out
	}

	for j, i := range slots {
		if j >= len(translated) || strings.TrimSpace(translated[j]) == "" {
			translationsTotal.WithLabelValues("fallback").Inc()
			continue
		}
		out[i] = translated[j]
		if c.cache != nil {
			c.cache.Add(pending[j], translated[j])
		}
		translationsTotal.WithLabelValues("translated").Inc()
	}
	return out
}

func (c *TranslatorClient) cached(text string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	return c.cache.Get(text)
}

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	APIKey string   `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText json.RawMessage `json:"translatedText"`
	Error          string          `json:"error"`
}

func (c *TranslatorClient) request(ctx context.Context, texts []string) ([]string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (c *TranslatorClient) post(ctx context.Context, texts []string) ([]string, error) {
	body, err := json.Marshal(translateRequest{
		Q:      texts,
		Source: c.cfg.Source,
		Target: c.cfg.Target,
		Format: "text",
		APIKey: c.cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure translateResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&failure); err == nil && failure.Error != "" {
			return nil, fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, failure.Error)
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var many []string
	if err := json.Unmarshal(decoded.TranslatedText, &many); err == nil {
		return many, nil
	}
	var one string
	if err := json.Unmarshal(decoded.TranslatedText, &one); err == nil {
		return []string{one}, nil
	}
	return nil, errors.New("response has no translatedText")
}
