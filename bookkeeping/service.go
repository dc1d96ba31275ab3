package bookkeeping

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbook/shopbook/generic"
)

// Recorder receives ledger instrumentation. metrics.Metrics implements it.
type Recorder interface {
	ObserveRecalculation(ledger string, d time.Duration, err error)
	MirrorSynced(action string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRecalculation(string, time.Duration, error) {}
func (nopRecorder) MirrorSynced(string)                               {}

// Service runs every ledger operation against one document store. It holds
// no per-entity state; each call reads what it needs from the store.
type Service struct {
	store    generic.Store
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string

	customers generic.Ledger
	parties   generic.Ledger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the wall clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid generation, mostly for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store generic.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		log:       zap.NewNop(),
		recorder:  nopRecorder{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
		customers: customerLedger,
		parties:   partyLedger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying document store.
func (s *Service) Store() generic.Store { return s.store }

// =============================================================================
// LOAD HELPERS
// =============================================================================

func customerRef(id string) generic.Ref {
	return generic.Ref{Collection: CustomersCollection, ID: id}
}

func transactionRef(id string) generic.Ref {
	return generic.Ref{Collection: TransactionsCollection, ID: id}
}

func partyRef(id string) generic.Ref {
	return generic.Ref{Collection: PartiesCollection, ID: id}
}

func partyTransactionRef(id string) generic.Ref {
	return generic.Ref{Collection: PartyTransactionsCollection, ID: id}
}

// load reads and decodes one document. Missing documents produce a
// *generic.NotFoundError.
func load[T any](ctx context.Context, store generic.Store, ref generic.Ref) (T, *generic.Document, error) {
	var v T
	doc, err := store.Get(ctx, ref)
	if err != nil {
		return v, nil, err
	}
	if doc == nil {
		return v, nil, generic.NotFound(ref.Collection, ref.ID)
	}
	if err := doc.Decode(&v); err != nil {
		return v, nil, err
	}
	return v, doc, nil
}

func decodeAll[T any](docs []generic.Document, withSeq func(*T, int64)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, err
		}
		if withSeq != nil {
			withSeq(&v, doc.Seq)
		}
		out = append(out, v)
	}
	return out, nil
}
