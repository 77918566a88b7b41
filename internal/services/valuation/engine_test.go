package valuation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

func d(s string) time.Time {
	t, err := common.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var aapl = models.NewHoldingKey("main", "AAPL")

func purchase(date string, shares, price float64, seq int) models.Event {
	return models.Event{ID: "p" + date, Symbol: "AAPL", Date: d(date), Kind: models.EventPurchase, Shares: models.Float(shares), Price: models.Float(price), Seq: seq}
}

func sale(date string, shares, price float64, seq int) models.Event {
	return models.Event{ID: "s" + date, Symbol: "AAPL", Date: d(date), Kind: models.EventSale, Shares: models.Float(shares), Price: models.Float(price), Seq: seq}
}

func prices(pairs ...interface{}) *models.PriceSeries {
	ps := &models.PriceSeries{Symbol: "AAPL"}
	for i := 0; i < len(pairs); i += 2 {
		ps.Points = append(ps.Points, models.PricePoint{Date: d(pairs[i].(string)), Close: pairs[i+1].(float64)})
	}
	return ps
}

func pointAt(t *testing.T, vs *models.ValueSeries, date string) models.ValuePoint {
	t.Helper()
	p, ok := vs.At(d(date))
	require.True(t, ok, "no point at %s", date)
	return p
}

func TestCompute_PurchaseAndPriceMove(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-10", 10, 120, 0)},
		Prices: prices("2023-01-10", 120.0, "2023-01-11", 125.0),
		AsOf:   d("2023-01-11"),
	})
	require.NoError(t, err)
	require.Len(t, vs.Points, 2)

	p := pointAt(t, vs, "2023-01-11")
	assert.Equal(t, 10.0, p.SharesHeld)
	assert.Equal(t, 1250.0, p.MarketValue)
	assert.Equal(t, 1200.0, p.CostBasis)
	assert.True(t, vs.From.Equal(d("2023-01-10")))
}

func TestCompute_LastCloseCarriedForwardOverWeekend(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-13", 2, 100, 0)},
		Prices: prices("2023-01-13", 100.0, "2023-01-16", 110.0),
		AsOf:   d("2023-01-16"),
	})
	require.NoError(t, err)
	require.Len(t, vs.Points, 4)
	assert.Equal(t, 200.0, pointAt(t, vs, "2023-01-14").MarketValue)
	assert.Equal(t, 200.0, pointAt(t, vs, "2023-01-15").MarketValue)
	assert.Equal(t, 220.0, pointAt(t, vs, "2023-01-16").MarketValue)
}

func TestCompute_DividendReinvestOff(t *testing.T) {
	div := models.Event{ID: "dv", Symbol: "AAPL", Date: d("2023-05-10"), Kind: models.EventDividend, Amount: models.Float(5), Seq: 1}
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-05-01", 10, 50, 0), div},
		Prices: prices("2023-05-01", 50.0),
		AsOf:   d("2023-05-11"),
	})
	require.NoError(t, err)

	before := pointAt(t, vs, "2023-05-09")
	on := pointAt(t, vs, "2023-05-10")
	assert.Equal(t, 0.0, before.CumulativeDividends)
	assert.Equal(t, 5.0, on.CumulativeDividends)
	assert.Equal(t, 10.0, on.SharesHeld)
	assert.Equal(t, 500.0, on.CostBasis)
}

func TestCompute_DividendReinvestOn(t *testing.T) {
	div := models.Event{ID: "dv", Symbol: "AAPL", Date: d("2023-05-10"), Kind: models.EventDividend, Amount: models.Float(5), Seq: 1}
	vs, err := ComputeValueSeries(Input{
		Key:      aapl,
		Events:   []models.Event{purchase("2023-05-01", 10, 50, 0), div},
		Prices:   prices("2023-05-01", 40.0, "2023-05-10", 50.0),
		AsOf:     d("2023-05-12"),
		Settings: common.SymbolConfig{ReinvestDividends: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 10.0, pointAt(t, vs, "2023-05-09").SharesHeld)
	for _, date := range []string{"2023-05-10", "2023-05-11", "2023-05-12"} {
		p := pointAt(t, vs, date)
		if !approx(p.SharesHeld, 10.1) {
			t.Errorf("%s: shares = %v, want 10.1", date, p.SharesHeld)
		}
	}
	on := pointAt(t, vs, "2023-05-10")
	assert.Equal(t, 5.0, on.CumulativeDividends)
	assert.True(t, approx(on.CostBasis, 505))
	assert.True(t, approx(on.MarketValue, 505))
}

func TestCompute_PricesStartAfterFirstEvent(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-10", 10, 100, 0)},
		Prices: prices("2023-02-01", 110.0, "2023-02-02", 111.0),
		AsOf:   d("2023-02-02"),
	})
	require.NoError(t, err)

	for _, p := range vs.Points {
		if p.Date.Before(d("2023-02-01")) && p.MarketValue != 0 {
			t.Fatalf("%s: market value = %v before first price, want 0", p.Date.Format("2006-01-02"), p.MarketValue)
		}
	}
	assert.Equal(t, 1100.0, pointAt(t, vs, "2023-02-01").MarketValue)
	assert.Equal(t, 10.0, pointAt(t, vs, "2023-01-20").SharesHeld)
}

func TestCompute_NoPriceCoverageIsZeroNotError(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-10", 10, 100, 0)},
		AsOf:   d("2023-01-20"),
	})
	require.NoError(t, err)
	require.Len(t, vs.Points, 11)
	for _, p := range vs.Points {
		assert.Equal(t, 0.0, p.MarketValue)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	in := Input{
		Key: aapl,
		Events: []models.Event{
			purchase("2023-01-10", 10, 120, 0),
			sale("2023-02-10", 4, 130, 1),
			{ID: "dv", Symbol: "AAPL", Date: d("2023-03-01"), Kind: models.EventDividend, Price: models.Float(0.25), Seq: 2},
		},
		Prices:    prices("2023-01-10", 120.0, "2023-02-10", 130.0, "2023-03-01", 128.5),
		Dividends: &models.DividendSeries{Points: []models.DividendPoint{{Date: d("2023-02-15"), Amount: 0.2}}},
		AsOf:      d("2023-03-31"),
		Settings:  common.SymbolConfig{ReinvestDividends: true},
	}
	a, err := ComputeValueSeries(in)
	require.NoError(t, err)
	b, err := ComputeValueSeries(in)
	require.NoError(t, err)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.Equal(t, string(ja), string(jb))
}

func TestCompute_SharesEqualPurchaseSumProperty(t *testing.T) {
	events := []models.Event{
		purchase("2023-01-03", 5, 10, 0),
		purchase("2023-01-05", 2.5, 11, 1),
		purchase("2023-01-05", 1, 11, 2),
		purchase("2023-01-20", 7, 12, 3),
	}
	vs, err := ComputeValueSeries(Input{Key: aapl, Events: events, AsOf: d("2023-01-31")})
	require.NoError(t, err)

	for _, p := range vs.Points {
		want := 0.0
		for _, e := range events {
			if !e.Date.After(p.Date) {
				want += *e.Shares
			}
		}
		if !approx(p.SharesHeld, want) {
			t.Errorf("%s: shares = %v, want %v", p.Date.Format("2006-01-02"), p.SharesHeld, want)
		}
	}
}

func TestCompute_SaleReducesCostProportionally(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-10", 10, 100, 0), purchase("2023-01-11", 10, 200, 1), sale("2023-01-12", 5, 300, 2)},
		AsOf:   d("2023-01-12"),
	})
	require.NoError(t, err)
	p := pointAt(t, vs, "2023-01-12")
	assert.Equal(t, 15.0, p.SharesHeld)
	assert.True(t, approx(p.CostBasis, 2250), "cost = %v", p.CostBasis)
}

func TestCompute_SaleExceedingHoldingsFails(t *testing.T) {
	_, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-10", 10, 100, 0), sale("2023-01-11", 11, 100, 1)},
		AsOf:   d("2023-01-12"),
	})
	require.Error(t, err)
	var compErr *models.ComputationError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, aapl, compErr.Key)
	assert.True(t, compErr.Date.Equal(d("2023-01-11")))
}

func TestCompute_SameDayOrderFollowsInsertion(t *testing.T) {
	// Sale inserted before the purchase on the same day cannot be satisfied
	_, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{sale("2023-01-10", 5, 100, 0), purchase("2023-01-10", 10, 100, 1)},
		AsOf:   d("2023-01-10"),
	})
	assert.Error(t, err)

	// Purchase then sale is fine
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{sale("2023-01-10", 5, 100, 1), purchase("2023-01-10", 10, 100, 0)},
		AsOf:   d("2023-01-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, vs.Points[0].SharesHeld)
}

func TestCompute_NonPositiveTradeFails(t *testing.T) {
	bad := purchase("2023-01-10", 0, 100, 0)
	_, err := ComputeValueSeries(Input{Key: aapl, Events: []models.Event{bad}, AsOf: d("2023-01-10")})
	assert.Error(t, err)
}

func TestCompute_ProviderDividendUsesSharesEnteringDay(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key: aapl,
		Events: []models.Event{
			purchase("2023-02-01", 100, 10, 0),
			purchase("2023-02-15", 50, 10, 1), // bought on the ex-date, not entitled
		},
		Dividends: &models.DividendSeries{Points: []models.DividendPoint{{Date: d("2023-02-15"), Amount: 0.5}}},
		AsOf:      d("2023-02-16"),
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, pointAt(t, vs, "2023-02-15").CumulativeDividends)
}

func TestCompute_ExplicitDividendOverridesProvider(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key: aapl,
		Events: []models.Event{
			purchase("2023-02-01", 100, 10, 0),
			{ID: "dv", Symbol: "AAPL", Date: d("2023-02-15"), Kind: models.EventDividend, Amount: models.Float(42), Seq: 1},
		},
		Dividends: &models.DividendSeries{Points: []models.DividendPoint{{Date: d("2023-02-15"), Amount: 0.5}}},
		AsOf:      d("2023-02-15"),
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, pointAt(t, vs, "2023-02-15").CumulativeDividends)
}

func TestCompute_AttributedCashDividend(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-02-01", 100, 10, 0)},
		CashEvents: []models.CashEvent{
			{Date: d("2023-02-10"), Kind: models.CashDividend, Amount: 7, Note: "DIV:AAPL", Seq: 1},
			{Date: d("2023-02-10"), Kind: models.CashDividend, Amount: 9, Note: "DIV:MSFT", Seq: 2},
			{Date: d("2023-02-10"), Kind: models.CashDeposit, Amount: 1000, Seq: 3},
		},
		Dividends: &models.DividendSeries{Points: []models.DividendPoint{{Date: d("2023-02-10"), Amount: 0.5}}},
		AsOf:      d("2023-02-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, 7.0, pointAt(t, vs, "2023-02-10").CumulativeDividends)
}

func TestCompute_PurchaseWithoutPriceUsesClose(t *testing.T) {
	e := models.Event{ID: "p", Symbol: "AAPL", Date: d("2023-01-11"), Kind: models.EventPurchase, Shares: models.Float(2), Seq: 0}
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{e},
		Prices: prices("2023-01-10", 30.0),
		AsOf:   d("2023-01-11"),
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, pointAt(t, vs, "2023-01-11").CostBasis)
	assert.Empty(t, vs.Warnings)
}

func TestCompute_ReinvestWithoutCloseWarns(t *testing.T) {
	div := models.Event{ID: "dv", Symbol: "AAPL", Date: d("2023-05-10"), Kind: models.EventDividend, Amount: models.Float(5), Seq: 1}
	vs, err := ComputeValueSeries(Input{
		Key:      aapl,
		Events:   []models.Event{purchase("2023-05-01", 10, 50, 0), div},
		AsOf:     d("2023-05-10"),
		Settings: common.SymbolConfig{ReinvestDividends: true},
	})
	require.NoError(t, err)
	assert.Len(t, vs.Warnings, 1)
	assert.Equal(t, 10.0, pointAt(t, vs, "2023-05-10").SharesHeld)
	assert.Equal(t, 5.0, pointAt(t, vs, "2023-05-10").CumulativeDividends)
}

func TestCompute_FromAfterFirstEventKeepsState(t *testing.T) {
	vs, err := ComputeValueSeries(Input{
		Key:    aapl,
		Events: []models.Event{purchase("2023-01-10", 10, 100, 0)},
		Prices: prices("2023-01-10", 100.0),
		From:   d("2023-01-15"),
		AsOf:   d("2023-01-16"),
	})
	require.NoError(t, err)
	require.Len(t, vs.Points, 2)
	assert.Equal(t, 10.0, vs.Points[0].SharesHeld)
}

func TestCompute_NoEventsIsEmpty(t *testing.T) {
	vs, err := ComputeValueSeries(Input{Key: aapl, AsOf: d("2023-01-10")})
	require.NoError(t, err)
	assert.Empty(t, vs.Points)
}

func TestCompute_IgnoresOtherSymbols(t *testing.T) {
	other := purchase("2023-01-10", 10, 100, 0)
	other.Symbol = "MSFT"
	vs, err := ComputeValueSeries(Input{Key: aapl, Events: []models.Event{other, purchase("2023-01-11", 1, 1, 1)}, AsOf: d("2023-01-11")})
	require.NoError(t, err)
	require.Len(t, vs.Points, 1)
	assert.Equal(t, 1.0, vs.Points[0].SharesHeld)
}
