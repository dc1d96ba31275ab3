package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbook/shopbook/bookkeeping"
	"github.com/shopbook/shopbook/generic/store"
)

func loadScenario(t *testing.T, id string) *bookkeeping.Service {
	t.Helper()
	books := bookkeeping.NewService(store.NewMemory())
	s, ok := FindScenario(id)
	require.True(t, ok, id)
	require.NoError(t, s.Load(context.Background(), books))
	return books
}

func balancesByName(t *testing.T, books *bookkeeping.Service) (map[string]string, map[string]string) {
	t.Helper()
	ctx := context.Background()
	customers, err := books.ListCustomers(ctx)
	require.NoError(t, err)
	parties, err := books.ListParties(ctx)
	require.NoError(t, err)

	cb := make(map[string]string, len(customers))
	for _, c := range customers {
		cb[c.Name] = c.CurrentBalance.StringFixed(2)
	}
	pd := make(map[string]string, len(parties))
	for _, p := range parties {
		pd[p.Name] = p.CurrentDue.StringFixed(2)
	}
	return cb, pd
}

func TestScenario_CornerShop(t *testing.T) {
	customers, parties := balancesByName(t, loadScenario(t, "corner-shop"))

	assert.Equal(t, map[string]string{
		"Corner Shop: Asha":  "170.50",
		"Corner Shop: Ravi":  "0.00",
		"Corner Shop: Meena": "65.00",
	}, customers)
	assert.Equal(t, map[string]string{"Corner Shop: Metro Wholesale": "2000.00"}, parties)
}

func TestScenario_RunningBalance(t *testing.T) {
	books := loadScenario(t, "running-balance")
	customers, _ := balancesByName(t, books)
	assert.Equal(t, "375.00", customers["Running Balance: Farida"])
}

func TestScenario_DirectPayment(t *testing.T) {
	customers, parties := balancesByName(t, loadScenario(t, "direct-payment"))

	assert.Equal(t, "200.00", customers["Direct Payment: Kiran"])
	assert.Equal(t, "1000.00", parties["Direct Payment: Dairy Co-op"], "mirror moved away")
	assert.Equal(t, "600.00", parties["Direct Payment: Sunrise Bakery"])
}

func TestScenarioEndpoints(t *testing.T) {
	hs := newHarness(t)

	rec := hs.do(http.MethodGet, "/api/admin/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), len(Scenarios()))

	rec = hs.do(http.MethodPost, "/api/admin/scenarios/direct-payment/load", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = hs.do(http.MethodGet, "/api/customers", nil)
	assert.Len(t, decodeBody[[]CustomerDTO](t, rec), 1)

	rec = hs.do(http.MethodPost, "/api/admin/scenarios/nope/load", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
