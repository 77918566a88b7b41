// Package cashflow derives capital performance for a portfolio: money in,
// money out, and the simple and annualized return on it.
package cashflow

import (
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// Performance computes capital metrics for p. currentValue is the market
// value of all holdings and dividends the cash they have paid, both as of
// asOf. Purchases without a price or amount cannot be costed and are left
// out of the trade-derived figures.
func Performance(p *models.Portfolio, currentValue, dividends float64, asOf time.Time) *models.CapitalPerformance {
	perf := &models.CapitalPerformance{CurrentValue: currentValue, Dividends: dividends}

	for _, c := range p.CashEvents {
		switch c.Kind {
		case models.CashDeposit:
			perf.TotalDeposited += c.Amount
		case models.CashWithdrawal:
			perf.TotalWithdrawn += c.Amount
		default:
			continue
		}
		if perf.FirstDate.IsZero() || c.Date.Before(perf.FirstDate) {
			perf.FirstDate = c.Date
		}
	}

	trades := tradeFlows(p.Events)
	if perf.TotalDeposited == 0 && perf.TotalWithdrawn == 0 {
		perf.DerivedFromTrades = true
		for _, f := range trades {
			if f.amount < 0 {
				perf.TotalDeposited -= f.amount
			} else {
				perf.TotalWithdrawn += f.amount
			}
			if perf.FirstDate.IsZero() || f.date.Before(perf.FirstDate) {
				perf.FirstDate = f.date
			}
		}
	}

	perf.NetCapital = perf.TotalDeposited - perf.TotalWithdrawn
	if perf.NetCapital > 0 {
		perf.SimpleReturnPct = (currentValue + dividends - perf.NetCapital) / perf.NetCapital * 100
	}

	// annualized return follows actual investment activity, not cash movements
	perf.AnnualizedReturnPct = computeXIRR(trades, currentValue+dividends, asOf)
	return perf
}

// cashFlow is one dated flow from the investor's point of view: purchases
// are negative, sales positive.
type cashFlow struct {
	date   time.Time
	amount float64
}

func tradeFlows(events []models.Event) []cashFlow {
	var flows []cashFlow
	for _, e := range events {
		var gross float64
		switch {
		case e.Price != nil:
			gross = e.SharesValue() * *e.Price
		case e.Amount != nil:
			gross = *e.Amount
		default:
			continue
		}
		switch e.Kind {
		case models.EventPurchase:
			flows = append(flows, cashFlow{date: e.Date, amount: -gross})
		case models.EventSale:
			flows = append(flows, cashFlow{date: e.Date, amount: gross})
		}
	}
	return flows
}

// computeXIRR calculates annualized return using Newton-Raphson XIRR, with
// the terminal value as a positive flow at asOf. Returns a percentage, or 0
// when there is nothing to solve.
func computeXIRR(trades []cashFlow, terminal float64, asOf time.Time) float64 {
	if len(trades) == 0 {
		return 0
	}
	flows := append([]cashFlow(nil), trades...)
	if terminal > 0 {
		flows = append(flows, cashFlow{date: asOf, amount: terminal})
	}
	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].date.Before(flows[j].date)
	})

	// Need at least one negative and one positive flow
	hasNeg, hasPos := false, false
	for _, f := range flows {
		if f.amount < 0 {
			hasNeg = true
		}
		if f.amount > 0 {
			hasPos = true
		}
	}
	if !hasNeg || !hasPos {
		return 0
	}
	// all on one day: no time has passed to annualize over
	if !flows[len(flows)-1].date.After(flows[0].date) {
		return 0
	}

	rate := solveXIRR(flows)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate * 100
}

// solveXIRR uses Newton-Raphson to find the rate r such that NPV(r) = 0.
func solveXIRR(flows []cashFlow) float64 {
	const (
		maxIter = 100
		tol     = 1e-7
		minRate = -0.999
	)

	baseDate := flows[0].date
	years := make([]float64, len(flows))
	for i, f := range flows {
		years[i] = f.date.Sub(baseDate).Hours() / 24 / 365.25
	}

	// Initial guess from simple return
	invested, received := 0.0, 0.0
	for _, f := range flows {
		if f.amount < 0 {
			invested -= f.amount
		} else {
			received += f.amount
		}
	}
	rate := 0.1
	if invested > 0 {
		if simple := received/invested - 1; simple > -0.9 && simple < 10 {
			rate = simple
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		npv, dnpv := 0.0, 0.0
		for i, f := range flows {
			base := 1 + rate
			if base <= 0 {
				rate = minRate
				base = 1 + rate
			}
			discount := math.Pow(base, years[i])
			if discount == 0 {
				continue
			}
			npv += f.amount / discount
			if years[i] != 0 {
				dnpv -= years[i] * f.amount / (discount * base)
			}
		}

		if math.Abs(npv) < tol {
			return rate
		}
		if dnpv == 0 {
			break
		}
		rate = math.Min(math.Max(rate-npv/dnpv, minRate), 100)
	}

	return bisectXIRR(flows, years)
}

// bisectXIRR is the fallback solver when Newton-Raphson does not converge.
func bisectXIRR(flows []cashFlow, years []float64) float64 {
	const (
		maxIter = 200
		tol     = 1e-6
	)

	npvAt := func(rate float64) float64 {
		sum := 0.0
		for i, f := range flows {
			sum += f.amount / math.Pow(1+rate, years[i])
		}
		return sum
	}

	lo, hi := -0.99, 10.0
	npvLo, npvHi := npvAt(lo), npvAt(hi)
	if npvLo*npvHi > 0 {
		return math.NaN()
	}

	for iter := 0; iter < maxIter; iter++ {
		mid := (lo + hi) / 2
		npvMid := npvAt(mid)
		if math.Abs(npvMid) < tol {
			return mid
		}
		if npvMid*npvLo < 0 {
			hi = mid
		} else {
			lo = mid
			npvLo = npvMid
		}
	}
	return (lo + hi) / 2
}
