package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderStatus draws one portfolio's holdings as a table. Pending holdings
// show their last cached value, flagged, rather than nothing.
func renderStatus(st *models.PortfolioStatus) string {
	var b strings.Builder

	title := st.Portfolio
	if st.Stale {
		title += pendingStyle.Render(fmt.Sprintf("  (%d pending)", st.Pending))
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SYMBOL", "STATE", "SHARES", "VALUE", "COST", "DIVIDENDS", "AS OF", "LIVE")
	for _, h := range st.Holdings {
		state := string(h.State)
		if h.Stale {
			state = pendingStyle.Render("pending")
		}
		if h.LastError != "" {
			state = errorStyle.Render(string(h.State) + " !")
		}
		asOf := "-"
		if !h.ValueAsOf.IsZero() {
			asOf = common.FormatDate(h.ValueAsOf)
		}
		live := "-"
		if h.RealtimePrice > 0 {
			live = fmt.Sprintf("%.2f", h.RealtimePrice)
		}
		t.Row(
			h.Symbol,
			state,
			formatShares(h.SharesHeld),
			fmt.Sprintf("%.2f", h.MarketValue),
			fmt.Sprintf("%.2f", h.CostBasis),
			fmt.Sprintf("%.2f", h.Dividends),
			asOf,
			live,
		)
	}
	t.Row("TOTAL", "", "", fmt.Sprintf("%.2f", st.TotalValue), "", "", "", "")
	b.WriteString(t.Render())

	for _, h := range st.Holdings {
		if h.LastError != "" {
			b.WriteString("\n" + errorStyle.Render(h.Symbol+": "+h.LastError))
		}
		for _, w := range h.Warnings {
			b.WriteString("\n" + mutedStyle.Render(h.Symbol+": "+w))
		}
	}
	if c := st.Capital; c != nil && c.NetCapital > 0 {
		label := "capital"
		if c.DerivedFromTrades {
			label += " (from trades)"
		}
		b.WriteString(fmt.Sprintf("\n%s %.2f  return %.2f%%  annualized %.2f%%",
			label, c.NetCapital, c.SimpleReturnPct, c.AnnualizedReturnPct))
	}
	if !st.LastCycleAt.IsZero() {
		b.WriteString("\n" + mutedStyle.Render("last sync "+st.LastCycleAt.Format("2006-01-02 15:04:05")))
	}
	return b.String()
}

func formatShares(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
