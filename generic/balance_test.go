package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbook/shopbook/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func entry(id string, d int, seq int64, delta int64) generic.Entry {
	e := generic.Entry{ID: id, Seq: seq, Delta: decimal.NewFromInt(delta)}
	if d > 0 {
		e.At = day(d)
	}
	return e
}

func ids(points []generic.Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out
}

// =============================================================================
// FOLD
// =============================================================================

func TestFold_Empty(t *testing.T) {
	res := generic.Fold(nil)

	assert.True(t, res.Total.IsZero())
	assert.Empty(t, res.Points)
	assert.Nil(t, res.LastActivity)
}

func TestFold_RunningBalance(t *testing.T) {
	// GIVEN: credit 500 on day 1, payment 200 on day 2, passed out of order
	entries := []generic.Entry{
		entry("pay", 2, 2, -200),
		entry("credit", 1, 1, 500),
	}

	// WHEN
	res := generic.Fold(entries)

	// THEN
	assert.Equal(t, []string{"credit", "pay"}, ids(res.Points))
	assert.True(t, res.Points[0].Balance.Equal(decimal.NewFromInt(500)))
	assert.True(t, res.Points[1].Balance.Equal(decimal.NewFromInt(300)))
	assert.True(t, res.Total.Equal(decimal.NewFromInt(300)))
	require.NotNil(t, res.LastActivity)
	assert.True(t, day(2).Equal(*res.LastActivity))

	// Input slice is not reordered.
	assert.Equal(t, "pay", entries[0].ID)
}

func TestFold_TiesBreakOnSequenceThenID(t *testing.T) {
	res := generic.Fold([]generic.Entry{
		entry("c", 5, 3, 1),
		entry("b", 5, 1, 1),
		entry("a", 5, 3, 1),
	})

	assert.Equal(t, []string{"b", "a", "c"}, ids(res.Points))
}

func TestFold_UndatedEntriesComeFirst(t *testing.T) {
	res := generic.Fold([]generic.Entry{
		entry("dated", 3, 1, 100),
		entry("undated", 0, 2, 10),
	})

	assert.Equal(t, []string{"undated", "dated"}, ids(res.Points))
	assert.True(t, res.Total.Equal(decimal.NewFromInt(110)))
	require.NotNil(t, res.LastActivity)
	assert.True(t, day(3).Equal(*res.LastActivity))
}

func TestFold_OnlyUndatedHasNoLastActivity(t *testing.T) {
	res := generic.Fold([]generic.Entry{entry("x", 0, 1, 10)})

	assert.Nil(t, res.LastActivity)
	assert.True(t, res.Total.Equal(decimal.NewFromInt(10)))
}

func TestFold_IsDeterministic(t *testing.T) {
	entries := []generic.Entry{
		entry("a", 4, 1, 70),
		entry("b", 2, 2, -15),
		entry("c", 4, 3, 5),
		entry("d", 0, 4, 1),
	}
	reversed := make([]generic.Entry, len(entries))
	for i := range entries {
		reversed[len(entries)-1-i] = entries[i]
	}

	assert.True(t, generic.Fold(entries).Equal(generic.Fold(reversed)))
}

func TestFold_DecimalPrecision(t *testing.T) {
	res := generic.Fold([]generic.Entry{
		{ID: "a", At: day(1), Seq: 1, Delta: decimal.RequireFromString("0.1")},
		{ID: "b", At: day(2), Seq: 2, Delta: decimal.RequireFromString("0.2")},
	})

	assert.True(t, res.Total.Equal(decimal.RequireFromString("0.3")))
}

func TestResult_BalanceAfter(t *testing.T) {
	res := generic.Fold([]generic.Entry{entry("a", 1, 1, 5), entry("b", 2, 2, 7)})

	bal, ok := res.BalanceAfter("b")
	assert.True(t, ok)
	assert.True(t, bal.Equal(decimal.NewFromInt(12)))

	_, ok = res.BalanceAfter("missing")
	assert.False(t, ok)
}

func TestBalanceBefore(t *testing.T) {
	entries := []generic.Entry{
		entry("a", 1, 1, 100),
		entry("b", 5, 2, -40),
		entry("c", 9, 3, 10),
		entry("d", 0, 4, 1),
	}

	assert.True(t, generic.BalanceBefore(entries, day(5)).Equal(decimal.NewFromInt(101)), "entries on the day itself are excluded")
	assert.True(t, generic.BalanceBefore(entries, day(6)).Equal(decimal.NewFromInt(61)))
	assert.True(t, generic.BalanceBefore(entries, time.Time{}).IsZero(), "nothing precedes the beginning")
}

func TestWindowOf_OpeningMatchesBalanceBefore(t *testing.T) {
	entries := []generic.Entry{
		entry("a", 3, 3, 100),
		entry("b", 0, 1, 7),
		entry("c", 3, 2, -10),
		entry("d", 8, 4, 25),
	}

	for _, from := range []time.Time{{}, day(1), day(3), day(4), day(9)} {
		w := generic.WindowOf(entries, from, time.Time{})
		assert.True(t, w.Opening.Equal(generic.BalanceBefore(entries, from)), "from %s", from)
		assert.True(t, w.Closing.Equal(decimal.NewFromInt(122)), "from %s", from)
	}
}

// =============================================================================
// WINDOW
// =============================================================================

func TestWindowOf(t *testing.T) {
	entries := []generic.Entry{
		entry("a", 1, 1, 100),
		entry("b", 5, 2, 50),
		entry("c", 7, 3, -20),
		entry("d", 10, 4, -30),
	}

	tests := []struct {
		name     string
		from, to time.Time
		opening  int64
		points   []string
		closing  int64
	}{
		{"open bounds", time.Time{}, time.Time{}, 0, []string{"a", "b", "c", "d"}, 100},
		{"middle", day(3), day(7), 100, []string{"b", "c"}, 130},
		{"from only", day(6), time.Time{}, 150, []string{"c", "d"}, 100},
		{"to only", time.Time{}, day(4), 0, []string{"a"}, 100},
		{"empty range", day(2), day(4), 100, nil, 100},
		{"after everything", day(20), time.Time{}, 100, nil, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := generic.WindowOf(entries, tt.from, tt.to)

			assert.True(t, w.Opening.Equal(decimal.NewFromInt(tt.opening)), "opening %s", w.Opening)
			assert.Equal(t, tt.points, nilIfEmpty(ids(w.Points)))
			assert.True(t, w.Closing.Equal(decimal.NewFromInt(tt.closing)), "closing %s", w.Closing)
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// =============================================================================
// DATES
// =============================================================================

func TestParseDate(t *testing.T) {
	d, err := generic.ParseDate("2025-03-04")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC).Equal(d))

	d, err = generic.ParseDate("2025-03-04T10:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Hour())
	assert.Equal(t, time.UTC, d.Location())

	d, err = generic.ParseDate("  ")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = generic.ParseDate("04/03/2025")
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	noon := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)

	assert.True(t, day(4).Equal(generic.StartOfDay(noon)))
	end := generic.EndOfDay(noon)
	assert.True(t, end.Before(day(5)))
	assert.True(t, end.After(noon))
	assert.Equal(t, "", generic.FormatDate(time.Time{}))
	assert.Equal(t, "2025-03-04T12:00:00Z", generic.FormatDate(noon))
}
