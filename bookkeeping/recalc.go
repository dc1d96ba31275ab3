package bookkeeping

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shopbook/shopbook/generic"
)

// =============================================================================
// LEDGER DEFINITIONS
// =============================================================================

var customerLedger = generic.Ledger{
	Name:          "customer",
	Owners:        CustomersCollection,
	Entries:       TransactionsCollection,
	OwnerField:    "customer_id",
	DerivedField:  "balance_after",
	TotalField:    "current_balance",
	ActivityField: "last_activity",
	Delta: func(doc generic.Document) (generic.Entry, error) {
		var tx Transaction
		if err := doc.Decode(&tx); err != nil {
			return generic.Entry{}, err
		}
		return generic.Entry{ID: doc.Ref.ID, At: tx.Date, Seq: doc.Seq, Delta: tx.Delta()}, nil
	},
}

var partyLedger = generic.Ledger{
	Name:          "party",
	Owners:        PartiesCollection,
	Entries:       PartyTransactionsCollection,
	OwnerField:    "party_id",
	DerivedField:  "due_after",
	TotalField:    "current_due",
	ActivityField: "last_activity",
	Delta: func(doc generic.Document) (generic.Entry, error) {
		var tx PartyTransaction
		if err := doc.Decode(&tx); err != nil {
			return generic.Entry{}, err
		}
		return generic.Entry{ID: doc.Ref.ID, At: tx.Date, Seq: doc.Seq, Delta: tx.Delta()}, nil
	},
}

// =============================================================================
// RECALCULATION
// =============================================================================

// RecalculateCustomer re-folds the customer's whole ledger and rewrites
// every BalanceAfter plus the customer's balance and last activity.
func (s *Service) RecalculateCustomer(ctx context.Context, customerID string) (generic.Result, error) {
	return s.recalculate(ctx, s.customers, customerID)
}

// RecalculateParty does the same for a party's due.
func (s *Service) RecalculateParty(ctx context.Context, partyID string) (generic.Result, error) {
	return s.recalculate(ctx, s.parties, partyID)
}

func (s *Service) recalculate(ctx context.Context, l generic.Ledger, ownerID string) (generic.Result, error) {
	start := time.Now()
	res, err := l.Recalculate(ctx, s.store, ownerID)
	s.recorder.ObserveRecalculation(l.Name, time.Since(start), err)
	if err != nil {
		return res, err
	}
	s.log.Debug("ledger recalculated",
		zap.String("ledger", l.Name),
		zap.String("owner_id", ownerID),
		zap.Int("entries", len(res.Points)),
		zap.String("total", res.Total.String()),
	)
	return res, nil
}

// RecalcFailure records one owner whose recalculation failed.
type RecalcFailure struct {
	Ledger  string
	OwnerID string
	Err     error
}

// RecalcReport summarises a RecalculateAll pass. Mirrors counts the
// customer transactions whose mirror had to be rebuilt or removed.
type RecalcReport struct {
	Customers int
	Parties   int
	Mirrors   int
	Failures  []RecalcFailure
}

// Err joins every failure, or returns nil.
func (r RecalcReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// RecalculateAll recalculates every customer, repairs CUSTOMER_DIRECT
// mirrors that are out of step with their payments, then recalculates
// every party. One owner failing does not stop the pass. Store errors
// while listing owners abort it.
func (s *Service) RecalculateAll(ctx context.Context) (RecalcReport, error) {
	var report RecalcReport

	n, err := s.recalculateLedger(ctx, s.customers, &report)
	if err != nil {
		return report, err
	}
	report.Customers = n

	if err := s.repairMirrors(ctx, &report); err != nil {
		return report, err
	}

	n, err = s.recalculateLedger(ctx, s.parties, &report)
	if err != nil {
		return report, err
	}
	report.Parties = n
	return report, nil
}

func (s *Service) recalculateLedger(ctx context.Context, l generic.Ledger, report *RecalcReport) (int, error) {
	owners, err := s.store.Query(ctx, l.Owners)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.recalculate(ctx, l, owner.Ref.ID); err != nil {
			s.log.Warn("recalculation failed",
				zap.String("ledger", l.Name),
				zap.String("owner_id", owner.Ref.ID),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, RecalcFailure{Ledger: l.Name, OwnerID: owner.Ref.ID, Err: err})
			continue
		}
		done++
	}
	return done, nil
}
