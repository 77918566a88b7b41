package models

import (
	"strings"
	"time"
)

// CashKind categorizes a portfolio-level cash event.
type CashKind string

const (
	CashDeposit    CashKind = "cash_deposit"
	CashWithdrawal CashKind = "cash_withdrawal"
	CashDividend   CashKind = "dividend"
)

// DividendNotePrefix marks a cash dividend as attributed to a symbol ("DIV:AAPL").
const DividendNotePrefix = "DIV:"

// ValidCashKind returns true if k is a known cash event kind.
func ValidCashKind(k CashKind) bool {
	switch k {
	case CashDeposit, CashWithdrawal, CashDividend:
		return true
	default:
		return false
	}
}

// IsInflow returns true if the cash event adds to the balance.
func (k CashKind) IsInflow() bool {
	return k == CashDeposit || k == CashDividend
}

// CashEvent is a portfolio-level cash balance change, independent of share counts.
type CashEvent struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	Kind   CashKind  `json:"kind"`
	Amount float64   `json:"amount"`
	Note   string    `json:"note,omitempty"`
	Seq    int       `json:"seq"`
}

// DividendSymbol returns the symbol a cash dividend is attributed to, or "".
func (c CashEvent) DividendSymbol() string {
	if c.Kind != CashDividend || !strings.HasPrefix(c.Note, DividendNotePrefix) {
		return ""
	}
	rest := strings.TrimPrefix(c.Note, DividendNotePrefix)
	if i := strings.IndexAny(rest, " \t;,"); i >= 0 {
		rest = rest[:i]
	}
	return NormalizeSymbol(rest)
}

// SignedAmount returns the amount with outflows negated.
func (c CashEvent) SignedAmount() float64 {
	if c.Kind.IsInflow() {
		return c.Amount
	}
	return -c.Amount
}

// CapitalPerformance summarises money put into a portfolio against what it
// is worth now. Deposits and withdrawals drive the simple return when the
// portfolio records them; otherwise purchases and sales stand in for them.
type CapitalPerformance struct {
	TotalDeposited      float64   `json:"total_deposited"`
	TotalWithdrawn      float64   `json:"total_withdrawn"`
	NetCapital          float64   `json:"net_capital"`
	CurrentValue        float64   `json:"current_value"`
	Dividends           float64   `json:"dividends"`
	SimpleReturnPct     float64   `json:"simple_return_pct"`
	AnnualizedReturnPct float64   `json:"annualized_return_pct"`
	FirstDate           time.Time `json:"first_date"`
	DerivedFromTrades   bool      `json:"derived_from_trades"`
}
