//go:build integration

package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"applygate/internal/events"
	"applygate/internal/ledger"
	"applygate/internal/paywall"
	paywallmetrics "applygate/internal/paywall/metrics"
	paywallservice "applygate/internal/paywall/service"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/testutil/containers"
)

// promauto registers globally, so every suite in the package shares one set.
var testPaywallMetrics = paywallmetrics.New()

type PaywallTxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	entries  *ledger.PostgresStore
	svc      *paywallservice.Service
}

func TestPaywallTxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PaywallTxSuite))
}

func (s *PaywallTxSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.entries = ledger.NewPostgres(s.postgres.DB)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = paywallservice.NewService(
		paywall.NewPostgres(s.postgres.DB),
		newPaywallPostgresTx(s.postgres.DB),
		testPaywallMetrics,
		logger,
		events.Nop{},
	)
}

func (s *PaywallTxSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "disclosure_grants", "credit_transactions")
	s.Require().NoError(err)
}

func (s *PaywallTxSuite) credit(viewer id.UserID, amount int64) {
	err := s.entries.Append(context.Background(), &ledger.Transaction{
		ID:          uuid.New(),
		UserID:      viewer,
		Amount:      amount,
		Type:        ledger.TypeTopUp,
		Description: "test balance",
		CreatedAt:   time.Now(),
	})
	s.Require().NoError(err)
}

// TestConcurrentDistinctFieldsCannotOverdraw verifies the per-viewer advisory
// lock: two simultaneous requests for different fields insert non-conflicting
// grant rows, so only transaction serialization keeps the shared balance from
// being spent twice.
func (s *PaywallTxSuite) TestConcurrentDistinctFieldsCannotOverdraw() {
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	s.credit(viewer, 5)

	fields := []paywall.FieldKey{paywall.FieldEmail, paywall.FieldPhone}
	results := make([]error, len(fields))

	var wg sync.WaitGroup
	for i, field := range fields {
		wg.Add(1)
		go func(i int, field paywall.FieldKey) {
			defer wg.Done()
			_, err := s.svc.RequestDisclosure(ctx, viewer, app, field, 5)
			results[i] = err
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
			s.Require().NoError(err)
		}
	}
	s.Equal(1, charged, "exactly one field should be unlocked")
	s.Equal(1, rejected, "the other request must be rejected, not overdraw")

	balance, err := s.entries.SumByUser(ctx, viewer)
	s.Require().NoError(err)
	s.Equal(int64(0), balance, "balance must never go negative")
}

// TestConcurrentSameFieldChargesOnce pins the duplicate-triple behavior on
// real storage: the loser of the grant-key race gets a free success and its
// debit rolls back.
func (s *PaywallTxSuite) TestConcurrentSameFieldChargesOnce() {
	ctx := context.Background()
	viewer := id.NewUserID()
	app := id.NewApplicationID()
	s.credit(viewer, 100)

	const goroutines = 10
	charged := make([]bool, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.svc.RequestDisclosure(ctx, viewer, app, paywall.FieldEmail, 5)
			s.NoError(err)
			if err == nil {
				charged[i] = res.Charged
			}
		}(i)
	}
	wg.Wait()

	var total int
	for _, c := range charged {
		if c {
			total++
		}
	}
	s.Equal(1, total, "only the race winner pays")

	balance, err := s.entries.SumByUser(ctx, viewer)
	s.Require().NoError(err)
	s.Equal(int64(95), balance)
}
