package cashflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

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

func TestPerformance_FromDeposits(t *testing.T) {
	p := &models.Portfolio{
		Name: "main",
		Events: []models.Event{
			{Symbol: "AAPL", Date: d("2023-01-02"), Kind: models.EventPurchase, Shares: models.Float(10), Price: models.Float(100)},
		},
		CashEvents: []models.CashEvent{
			{Date: d("2023-01-01"), Kind: models.CashDeposit, Amount: 2000},
			{Date: d("2023-06-01"), Kind: models.CashWithdrawal, Amount: 500},
			{Date: d("2023-03-01"), Kind: models.CashDividend, Amount: 10, Note: "DIV:AAPL"},
		},
	}

	perf := Performance(p, 1650, 0, d("2024-01-02"))
	assert.False(t, perf.DerivedFromTrades)
	assert.Equal(t, 2000.0, perf.TotalDeposited)
	assert.Equal(t, 500.0, perf.TotalWithdrawn)
	assert.Equal(t, 1500.0, perf.NetCapital)
	assert.InDelta(t, 10.0, perf.SimpleReturnPct, 1e-9)
	assert.Equal(t, d("2023-01-01"), perf.FirstDate)
	// 1000 in, 1650 out one year later
	assert.InDelta(t, 65.0, perf.AnnualizedReturnPct, 0.1)
}

func TestPerformance_DerivedFromTrades(t *testing.T) {
	p := &models.Portfolio{
		Name: "main",
		Events: []models.Event{
			{Symbol: "AAPL", Date: d("2023-01-02"), Kind: models.EventPurchase, Shares: models.Float(10), Price: models.Float(100)},
			{Symbol: "AAPL", Date: d("2023-07-03"), Kind: models.EventSale, Shares: models.Float(5), Price: models.Float(120)},
			{Symbol: "MSFT", Date: d("2023-02-01"), Kind: models.EventPurchase, Shares: models.Float(1), Amount: models.Float(250)},
			{Symbol: "XYZ", Date: d("2023-02-01"), Kind: models.EventPurchase, Shares: models.Float(1)},
		},
	}

	perf := Performance(p, 900, 20, d("2024-01-02"))
	assert.True(t, perf.DerivedFromTrades)
	assert.Equal(t, 1250.0, perf.TotalDeposited)
	assert.Equal(t, 600.0, perf.TotalWithdrawn)
	assert.Equal(t, 650.0, perf.NetCapital)
	assert.InDelta(t, (920.0-650.0)/650.0*100, perf.SimpleReturnPct, 1e-9)
	assert.Greater(t, perf.AnnualizedReturnPct, 0.0)
}

func TestPerformance_Empty(t *testing.T) {
	perf := Performance(&models.Portfolio{Name: "main"}, 0, 0, d("2024-01-02"))
	assert.Zero(t, perf.NetCapital)
	assert.Zero(t, perf.SimpleReturnPct)
	assert.Zero(t, perf.AnnualizedReturnPct)
}

func TestComputeXIRR_SameDay(t *testing.T) {
	flows := []cashFlow{{date: d("2024-01-02"), amount: -100}}
	assert.Zero(t, computeXIRR(flows, 110, d("2024-01-02")))
}

func TestComputeXIRR_Loss(t *testing.T) {
	flows := []cashFlow{{date: d("2023-01-01"), amount: -1000}}
	rate := computeXIRR(flows, 800, d("2024-01-01"))
	assert.InDelta(t, -20.0, rate, 0.1)
}
