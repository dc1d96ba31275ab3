package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shopbook/shopbook/generic"
)

// ContactInput is the editable profile of a customer or party.
type ContactInput struct {
	Name    string
	Phone   string
	Address string // customers only
	Notes   string
}

func (in ContactInput) normalize() ContactInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

func (in ContactInput) Validate() error {
	if in.Name == "" {
		return generic.Invalid("name", "name is required")
	}
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// CreateCustomer adds a customer with a zero balance.
func (s *Service) CreateCustomer(ctx context.Context, in ContactInput) (Customer, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}
	c := Customer{
		ID:        s.newID(),
		Name:      in.Name,
		Phone:     in.Phone,
		Address:   in.Address,
		Notes:     in.Notes,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, customerRef(c.ID), c); err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// UpdateCustomer edits the profile; the balance fields are untouched.
func (s *Service) UpdateCustomer(ctx context.Context, id string, in ContactInput) (Customer, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}
	var updated Customer
	err := s.store.Update(ctx, customerRef(id), func(doc generic.Document) (any, error) {
		if err := doc.Decode(&updated); err != nil {
			return nil, err
		}
		updated.Name = in.Name
		updated.Phone = in.Phone
		updated.Address = in.Address
		updated.Notes = in.Notes
		return updated, nil
	})
	if errors.Is(err, generic.ErrDocumentNotFound) {
		return Customer{}, generic.NotFound(CustomersCollection, id)
	}
	return updated, err
}

func (s *Service) GetCustomer(ctx context.Context, id string) (Customer, error) {
	c, _, err := load[Customer](ctx, s.store, customerRef(id))
	return c, err
}

// ListCustomers returns every customer sorted by name.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	docs, err := s.store.Query(ctx, CustomersCollection)
	if err != nil {
		return nil, err
	}
	customers, err := decodeAll[Customer](docs, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return strings.ToLower(customers[i].Name) < strings.ToLower(customers[j].Name)
	})
	return customers, nil
}

// DeleteCustomer removes the customer and all of its transactions in one
// batch. The customer ledger needs no recalculation afterwards. Mirrors of
// its direct-to-party payments are then removed through mirror sync so the
// affected parties' dues stay correct.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.requireExists(ctx, customerRef(id)); err != nil {
		return err
	}
	txs, err := s.ListTransactions(ctx, id)
	if err != nil {
		return err
	}

	writes := make([]generic.Write, 0, len(txs)+1)
	for _, tx := range txs {
		writes = append(writes, generic.DeleteDoc(transactionRef(tx.ID)))
	}
	writes = append(writes, generic.DeleteDoc(customerRef(id)))
	if err := s.store.BatchWrite(ctx, writes); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	s.log.Info("customer deleted", zap.String("customer_id", id), zap.Int("transactions", len(txs)))

	for _, tx := range txs {
		target := tx.MirrorTarget()
		if target == "" {
			continue
		}
		if err := s.SyncMirror(ctx, MirrorState{TransactionID: tx.ID, CustomerID: id}, target); err != nil {
			return err
		}
	}
	return nil
}

func sortLedger[T any](items []T, key func(T) generic.Entry) {
	sort.SliceStable(items, func(i, j int) bool {
		return generic.Less(key(items[i]), key(items[j]))
	})
}
