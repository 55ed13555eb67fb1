package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"applygate/internal/events"
	"applygate/internal/ledger"
	"applygate/internal/paywall"
	"applygate/internal/paywall/metrics"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/sentinel"
	"applygate/pkg/requestcontext"
)

// Tx provides the transactional boundary binding a grant insert to its ledger
// debit. Either both commit or neither does, and transactions for the same
// viewer are serialized so two distinct-field requests cannot read the same
// balance. Implementations wrap a database transaction holding a per-viewer
// advisory lock or, in-memory, a sharded mutex.
type Tx interface {
	RunInTx(ctx context.Context, viewerID id.UserID, fn func(grants paywall.Store, entries ledger.Store) error) error
}

// Result reports the outcome of a disclosure request.
type Result struct {
	// Charged is false on replay: the grant already existed and no ledger
	// entry was appended.
	Charged bool
	Grant   *paywall.Grant
}

// Service is the disclosure gate. It consults the grant store before
// rendering decisions and charges the ledger exactly once per field.
type Service struct {
	grants  paywall.Store
	tx      Tx
	metrics *metrics.Metrics
	logger  *slog.Logger
	events  events.Publisher
	tracer  trace.Tracer
}

func NewService(grants paywall.Store, tx Tx, m *metrics.Metrics, logger *slog.Logger, publisher events.Publisher) *Service {
	return &Service{
		grants:  grants,
		tx:      tx,
		metrics: m,
		logger:  logger,
		events:  publisher,
		tracer:  otel.Tracer("applygate/paywall"),
	}
}

// IsDisclosed reports whether the viewer has already paid for the field.
func (s *Service) IsDisclosed(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey paywall.FieldKey) (bool, error) {
	if err := validateTriple(viewerID, applicationID, fieldKey); err != nil {
		return false, err
	}
	disclosed, err := s.grants.Exists(ctx, viewerID, applicationID, fieldKey)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check disclosure")
	}
	return disclosed, nil
}

// Disclosed lists every grant the viewer holds on the application.
func (s *Service) Disclosed(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID) ([]*paywall.Grant, error) {
	if viewerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "viewer ID required")
	}
	if applicationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	grants, err := s.grants.ListByViewer(ctx, viewerID, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list disclosures")
	}
	return grants, nil
}

// RequestDisclosure unlocks one field for the viewer. The first successful
// call debits the ledger and inserts the grant atomically; every later call
// with the same triple succeeds free of charge. A concurrent duplicate loses
// the uniqueness race and is likewise normalized to success.
func (s *Service) RequestDisclosure(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey paywall.FieldKey, cost int64) (*Result, error) {
	if err := validateTriple(viewerID, applicationID, fieldKey); err != nil {
		return nil, err
	}
	if cost <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "disclosure cost must be positive")
	}

	ctx, span := s.tracer.Start(ctx, "paywall.RequestDisclosure",
		trace.WithAttributes(
			attribute.String("viewer_id", viewerID.String()),
			attribute.String("application_id", applicationID.String()),
			attribute.String("field_key", fieldKey.String()),
		))
	defer span.End()

	// Fast path: already paid, no charge.
	disclosed, err := s.grants.Exists(ctx, viewerID, applicationID, fieldKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check disclosure")
	}
	if disclosed {
		s.metrics.RecordReplay()
		return &Result{Charged: false}, nil
	}

	now := requestcontext.Now(ctx)
	grant := &paywall.Grant{
		ViewerID:      viewerID,
		ApplicationID: applicationID,
		FieldKey:      fieldKey,
		Cost:          cost,
		GrantedAt:     now,
	}

	err = s.tx.RunInTx(ctx, viewerID, func(grants paywall.Store, entries ledger.Store) error {
		if _, err := ledger.ApplyDebit(ctx, entries, viewerID, cost, "field disclosure: "+fieldKey.String(), map[string]any{
			"application_id": applicationID.String(),
			"field_key":      fieldKey.String(),
		}, now); err != nil {
			return err
		}
		if err := grants.Insert(ctx, grant); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost the race to a concurrent request. Abort so the
				// debit rolls back; the winner already charged.
				return paywall.ErrAlreadyDisclosed
			}
			return err
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, paywall.ErrAlreadyDisclosed):
			s.metrics.RecordReplay()
			return &Result{Charged: false}, nil
		case errors.Is(err, ledger.ErrInsufficientBalance):
			s.metrics.RecordRejectedNoFunds()
			return nil, dErrors.Wrap(err, dErrors.CodeInsufficientBalance, "balance cannot cover disclosure")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to disclose field")
		}
	}

	s.metrics.RecordDisclosure(fieldKey.String())
	s.logger.InfoContext(ctx, "field disclosed",
		"viewer_id", viewerID.String(),
		"application_id", applicationID.String(),
		"field_key", fieldKey.String(),
		"cost", cost,
	)
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeFieldDisclosed,
		UserID:     viewerID.String(),
		OccurredAt: now,
		Payload: map[string]any{
			"application_id": applicationID.String(),
			"field_key":      fieldKey.String(),
			"cost":           cost,
		},
	})
	return &Result{Charged: true, Grant: grant}, nil
}

func validateTriple(viewerID id.UserID, applicationID id.ApplicationID, fieldKey paywall.FieldKey) error {
	if viewerID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "viewer ID required")
	}
	if applicationID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "application ID required")
	}
	if !fieldKey.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown field key")
	}
	return nil
}
