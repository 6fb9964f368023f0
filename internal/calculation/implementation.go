// internal/calculation/implementation.go
package calculation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eternalflame/internal/apperr"
	"eternalflame/internal/clients"
	"eternalflame/internal/locale"
	"eternalflame/internal/schedule"
	"eternalflame/pkg/token"
)

const dateLayout = "2006-01-02"

// MaxLabelLength bounds the label in runes; the audit column holds no more.
const MaxLabelLength = 128

// IdentityResolver turns a bearer token into an identity.
type IdentityResolver interface {
	Verify(tok string) (token.Identity, bool)
}

type Options struct {
	ScheduleCount int
	Location      *time.Location
	Now           func() time.Time
}

// service implements the Service interface.
type service struct {
	translator clients.Translator
	identities IdentityResolver
	audit      AuditStore
	logger     zerolog.Logger
	tracer     trace.Tracer

	count int
	loc   *time.Location
	now   func() time.Time
}

// NewService creates a new calculation service instance.
func NewService(translator clients.Translator, identities IdentityResolver, audit AuditStore, logger zerolog.Logger, opts Options) Service {
	if translator == nil {
		translator = clients.NoopTranslator{}
	}
	if opts.ScheduleCount <= 0 {
		opts.ScheduleCount = schedule.DefaultCount
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		translator: translator,
		identities: identities,
		audit:      audit,
		logger:     logger.With().Str("component", "calculation").Logger(),
		tracer:     otel.Tracer("eternalflame/calculation"),
		count:      opts.ScheduleCount,
		loc:        opts.Location,
		now:        opts.Now,
	}
}

// Calculate validates the request, derives the outcome, localizes it,
// records an audit entry and returns the response body.
func (s *service) Calculate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "calculation.calculate")
	defer span.End()

	loc := locale.Negotiate(req.Locale, req.AcceptLanguage)
	today := schedule.Civil(s.now().In(s.loc))
	span.SetAttributes(attribute.String("locale", loc))

	// Step 1: Validate the reference date and label
	event, err := parseEventDate(req.EventDate, today)
	if err == nil {
		err = checkLabel(req.Label)
	}
	if err != nil {
		span.SetAttributes(attribute.String("validation.key", apperr.KeyOf(err)))
		return nil, err
	}

	// Step 2: Compute
	outcome, err := schedule.Compute(event, today, s.count)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("compute schedule: %w", err))
	}
	span.AddEvent("computed", trace.WithAttributes(
		attribute.Int("elapsed.months", outcome.ElapsedMonths),
		attribute.Int("quantity", outcome.Quantity),
		attribute.Int("schedule.len", len(outcome.Schedule)),
	))

	result := &Result{
		ElapsedMonths:     outcome.ElapsedMonths,
		EventDate:         event.Format(dateLayout),
		Label:             strings.TrimSpace(req.Label),
		SuggestedQuantity: outcome.Quantity,
		Schedule:          make([]ScheduleEntry, len(outcome.Schedule)),
		Explanation:       outcome.Explanation,
		Locale:            loc,
	}
	for i, e := range outcome.Schedule {
		result.Schedule[i] = ScheduleEntry{
			Date:        e.Date.Format(dateLayout),
			Reason:      e.Reason.String(),
			Description: e.Reason.Description(),
		}
	}

	// Step 3: Translate if the locale needs it
	if locale.Translatable(loc) {
		s.translate(ctx, result)
		span.AddEvent("translated")
	}

	// Step 4: Resolve the caller, if any
	var accountID *int64
	if s.identities != nil && req.Token != "" {
		if id, ok := s.identities.Verify(req.Token); ok && !id.Elevated {
			accountID = &id.SubjectID
		}
	}
	span.SetAttributes(attribute.Bool("authenticated", accountID != nil))

	// Step 5: Audit
	if s.audit != nil {
		BestEffort(ctx, s.logger, "audit.append", func(ctx context.Context) error {
			payload, err := json.Marshal(result)
			if err != nil {
				return err
			}
			return s.audit.Append(ctx, AuditRecord{
				AccountID: accountID,
				Label:     result.Label,
				EventDate: result.EventDate,
				Locale:    loc,
				Payload:   string(payload),
			})
		})
	}

	return result, nil
}

func (s *service) translate(ctx context.Context, result *Result) {
	result.Explanation = s.translator.Translate(ctx, result.Explanation)

	descs := make([]string, len(result.Schedule))
	for i, e := range result.Schedule {
		descs[i] = e.Description
	}
	translated := s.translator.TranslateBatch(ctx, descs)
	if len(translated) != len(descs) {
		return
	}
	for i := range result.Schedule {
		result.Schedule[i].Description = translated[i]
	}
}

func checkLabel(label string) error {
	if utf8.RuneCountInString(strings.TrimSpace(label)) > MaxLabelLength {
		return apperr.Validation("label_too_long")
	}
	return nil
}

// parseEventDate reads the leading YYYY-MM-DD of raw and rejects dates after
// today.
func parseEventDate(raw string, today time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.Validation("eventDate_required")
	}
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}

	event, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("eventDate_invalid")
	}
	if event.After(today) {
		return time.Time{}, apperr.Validation("eventDate_future")
	}
	return event, nil
}
