package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applygate/internal/events"
	"applygate/internal/ledger"
	"applygate/internal/paywall"
	paywallmetrics "applygate/internal/paywall/metrics"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

// Prometheus collectors register globally, so tests share one instance.
var testMetrics = paywallmetrics.New()

type fixture struct {
	svc      *Service
	grants   *paywall.InMemoryStore
	entries  *ledger.InMemoryStore
	recorder *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	grants := paywall.NewInMemoryStore()
	entries := ledger.NewInMemoryStore()
	recorder := events.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(grants, NewShardedTx(grants, entries), testMetrics, logger, recorder)
	return &fixture{svc: svc, grants: grants, entries: entries, recorder: recorder}
}

func (f *fixture) fund(t *testing.T, userID id.UserID, amount int64) {
	t.Helper()
	err := f.entries.Append(context.Background(), &ledger.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Type:      ledger.TypeTopUp,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID id.UserID) int64 {
	t.Helper()
	sum, err := f.entries.SumByUser(context.Background(), userID)
	require.NoError(t, err)
	return sum
}

func TestRequestDisclosure_ChargesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	f.fund(t, viewer, 10)

	res, err := f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldEmail, 5)
	require.NoError(t, err)
	assert.True(t, res.Charged)
	require.NotNil(t, res.Grant)
	assert.Equal(t, int64(5), res.Grant.Cost)
	assert.Equal(t, int64(5), f.balance(t, viewer))

	disclosed, err := f.svc.IsDisclosed(ctx, viewer, app, paywall.FieldEmail)
	require.NoError(t, err)
	assert.True(t, disclosed)

	published := f.recorder.ByType(events.TypeFieldDisclosed)
	require.Len(t, published, 1)
	assert.Equal(t, viewer.String(), published[0].UserID)
}

func TestRequestDisclosure_ReplayIsFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	f.fund(t, viewer, 10)

	_, err := f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldPhone, 5)
	require.NoError(t, err)

	res, err := f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldPhone, 5)
	require.NoError(t, err)
	assert.False(t, res.Charged)
	assert.Equal(t, int64(5), f.balance(t, viewer), "replay must not debit again")

	// Balance 5 is not enough for a fresh field but the replay still works.
	res, err = f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldPhone, 5)
	require.NoError(t, err)
	assert.False(t, res.Charged)
}

func TestRequestDisclosure_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	f.fund(t, viewer, 3)

	_, err := f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldFinancial, 5)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

	// Nothing landed: no grant, no ledger entry.
	disclosed, err := f.svc.IsDisclosed(ctx, viewer, app, paywall.FieldFinancial)
	require.NoError(t, err)
	assert.False(t, disclosed)
	assert.Equal(t, int64(3), f.balance(t, viewer))
}

func TestRequestDisclosure_DistinctFieldsChargeSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	f.fund(t, viewer, 10)

	_, err := f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldEmail, 5)
	require.NoError(t, err)
	_, err = f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldAddress, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.balance(t, viewer))

	grants, err := f.svc.Disclosed(ctx, viewer, app)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

func TestRequestDisclosure_ConcurrentDistinctFieldsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	f.fund(t, viewer, 5)

	// Different fields never collide on the grant key, so only per-viewer
	// transaction serialization keeps both from spending the same 5 credits.
	fields := []paywall.FieldKey{paywall.FieldEmail, paywall.FieldPhone}
	results := make([]error, len(fields))
	var wg sync.WaitGroup
	for i, field := range fields {
		wg.Add(1)
		go func(i int, field paywall.FieldKey) {
			defer wg.Done()
			_, results[i] = f.svc.RequestDisclosure(ctx, viewer, app, field, 5)
		}(i, field)
	}
	wg.Wait()

	var charged, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			charged++
		case dErrors.HasCode(err, dErrors.CodeInsufficientBalance):
			rejected++
		default:
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, charged)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(0), f.balance(t, viewer), "balance must never go negative")
}

func TestRequestDisclosure_ConcurrentDuplicatesChargeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	f.fund(t, viewer, 100)

	const attempts = 20
	var wg sync.WaitGroup
	charged := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldAttachments, 5)
			if err == nil {
				charged <- res.Charged
			}
		}()
	}
	wg.Wait()
	close(charged)

	var chargedCount int
	for c := range charged {
		if c {
			chargedCount++
		}
	}
	assert.Equal(t, 1, chargedCount, "exactly one request pays")
	assert.Equal(t, int64(95), f.balance(t, viewer))
}

func TestRequestDisclosure_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()

	_, err := f.svc.RequestDisclosure(ctx, id.UserID{}, app, paywall.FieldEmail, 5)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = f.svc.RequestDisclosure(ctx, viewer, id.ApplicationID{}, paywall.FieldEmail, 5)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldKey("ssn"), 5)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = f.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldEmail, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
