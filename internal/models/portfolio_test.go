package models

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestHoldingKey_RoundTrip(t *testing.T) {
	key := NewHoldingKey("retirement", " aapl ")
	if key.String() != "retirement/AAPL" {
		t.Fatalf("String() = %q, want retirement/AAPL", key.String())
	}
	parsed, ok := ParseHoldingKey(key.String())
	if !ok || parsed != key {
		t.Errorf("ParseHoldingKey(%q) = %v, %v", key.String(), parsed, ok)
	}
}

func TestParseHoldingKey_SymbolWithSlash(t *testing.T) {
	key := NewHoldingKey("main", "brk/b")
	parsed, ok := ParseHoldingKey(key.String())
	if !ok || parsed.Portfolio != "main" || parsed.Symbol != "BRK/B" {
		t.Errorf("ParseHoldingKey(%q) = %v, %v", key.String(), parsed, ok)
	}
}

func TestParseHoldingKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "AAPL", "/AAPL", "main/"} {
		if _, ok := ParseHoldingKey(s); ok {
			t.Errorf("ParseHoldingKey(%q) should fail", s)
		}
	}
}

func TestPortfolio_SymbolsAndFirstDate(t *testing.T) {
	p := &Portfolio{Name: "main", Events: []Event{
		{Symbol: "msft", Date: day("2023-03-01"), Kind: EventPurchase, Shares: Float(1)},
		{Symbol: "AAPL", Date: day("2023-01-02"), Kind: EventPurchase, Shares: Float(10)},
		{Symbol: "MSFT", Date: day("2023-02-01"), Kind: EventPurchase, Shares: Float(2)},
	}}

	syms := p.Symbols()
	if len(syms) != 2 || syms[0] != "AAPL" || syms[1] != "MSFT" {
		t.Errorf("Symbols() = %v, want [AAPL MSFT]", syms)
	}
	if got := p.FirstEventDate(""); !got.Equal(day("2023-01-02")) {
		t.Errorf("FirstEventDate(\"\") = %v", got)
	}
	if got := p.FirstEventDate("msft"); !got.Equal(day("2023-02-01")) {
		t.Errorf("FirstEventDate(msft) = %v", got)
	}
	if n := len(p.EventsFor("MSFT")); n != 2 {
		t.Errorf("EventsFor(MSFT) returned %d events, want 2", n)
	}
}

func TestPortfolio_NextSeq(t *testing.T) {
	p := &Portfolio{
		Events:     []Event{{Seq: 3}, {Seq: 1}},
		CashEvents: []CashEvent{{Seq: 7}},
	}
	if got := p.NextSeq(); got != 8 {
		t.Errorf("NextSeq() = %d, want 8", got)
	}
	if got := (&Portfolio{}).NextSeq(); got != 0 {
		t.Errorf("NextSeq() on empty = %d, want 0", got)
	}
}

func TestCashEvent_DividendSymbol(t *testing.T) {
	tests := []struct {
		ev   CashEvent
		want string
	}{
		{CashEvent{Kind: CashDividend, Note: "DIV:aapl"}, "AAPL"},
		{CashEvent{Kind: CashDividend, Note: "DIV:MSFT quarterly"}, "MSFT"},
		{CashEvent{Kind: CashDividend, Note: "quarterly"}, ""},
		{CashEvent{Kind: CashDeposit, Note: "DIV:AAPL"}, ""},
	}
	for _, tt := range tests {
		if got := tt.ev.DividendSymbol(); got != tt.want {
			t.Errorf("DividendSymbol(%q) = %q, want %q", tt.ev.Note, got, tt.want)
		}
	}
}

func TestCashEvent_SignedAmount(t *testing.T) {
	if got := (CashEvent{Kind: CashWithdrawal, Amount: 50}).SignedAmount(); got != -50 {
		t.Errorf("withdrawal SignedAmount = %v, want -50", got)
	}
	if got := (CashEvent{Kind: CashDeposit, Amount: 50}).SignedAmount(); got != 50 {
		t.Errorf("deposit SignedAmount = %v, want 50", got)
	}
}

func TestValueSeries_At(t *testing.T) {
	vs := &ValueSeries{Points: []ValuePoint{
		{Date: day("2023-01-02"), MarketValue: 1},
		{Date: day("2023-01-03"), MarketValue: 2},
		{Date: day("2023-01-04"), MarketValue: 3},
	}}
	p, ok := vs.At(day("2023-01-03"))
	if !ok || p.MarketValue != 2 {
		t.Errorf("At(2023-01-03) = %v, %v", p, ok)
	}
	if _, ok := vs.At(day("2023-01-05")); ok {
		t.Error("At past end should be false")
	}
	last, ok := vs.Last()
	if !ok || last.MarketValue != 3 {
		t.Errorf("Last() = %v, %v", last, ok)
	}
}
