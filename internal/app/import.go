package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

type importFile struct {
	Events []importEvent `json:"events"`
	Cash   []importCash  `json:"cash"`
}

type importEvent struct {
	ID     string   `json:"id"`
	Symbol string   `json:"symbol"`
	Date   string   `json:"date"`
	Type   string   `json:"type"`
	Shares *float64 `json:"shares"`
	Price  *float64 `json:"price"`
	Amount *float64 `json:"amount"`
	Note   string   `json:"note"`
}

type importCash struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

// ImportEventsFromFile reads a JSON events file and records each event in
// portfolio, in file order. Events whose ID already exists in the portfolio
// are skipped, so re-importing the same file is harmless. Invalid entries
// are logged and skipped. Returns (imported count, skipped count, error).
func ImportEventsFromFile(ctx context.Context, svc interfaces.PortfolioService, logger *common.Logger, portfolio, filePath string) (int, int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read events file %s: %w", filePath, err)
	}

	var file importFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("failed to parse events file %s: %w", filePath, err)
	}

	existing := map[string]bool{}
	if p, err := svc.GetPortfolio(ctx, portfolio); err == nil {
		for _, e := range p.Events {
			existing[e.ID] = true
		}
		for _, c := range p.CashEvents {
			existing[c.ID] = true
		}
	}

	imported, skipped := 0, 0
	for _, ie := range file.Events {
		if ie.ID != "" && existing[ie.ID] {
			skipped++
			continue
		}
		date, err := common.ParseDate(ie.Date)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", ie.Symbol).Msg("Skipping event with invalid date")
			skipped++
			continue
		}
		_, err = svc.AddEvent(ctx, portfolio, models.Event{
			ID:     ie.ID,
			Symbol: ie.Symbol,
			Date:   date,
			Kind:   models.EventKind(ie.Type),
			Shares: ie.Shares,
			Price:  ie.Price,
			Amount: ie.Amount,
			Note:   ie.Note,
		})
		if err != nil {
			logger.Warn().Err(err).Str("symbol", ie.Symbol).Str("date", ie.Date).Msg("Skipping invalid event")
			skipped++
			continue
		}
		imported++
	}

	for _, ic := range file.Cash {
		if ic.ID != "" && existing[ic.ID] {
			skipped++
			continue
		}
		date, err := common.ParseDate(ic.Date)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping cash event with invalid date")
			skipped++
			continue
		}
		_, err = svc.AddCashEvent(ctx, portfolio, models.CashEvent{
			ID:     ic.ID,
			Date:   date,
			Kind:   models.CashKind(ic.Type),
			Amount: ic.Amount,
			Note:   ic.Note,
		})
		if err != nil {
			logger.Warn().Err(err).Str("date", ic.Date).Msg("Skipping invalid cash event")
			skipped++
			continue
		}
		imported++
	}

	logger.Info().
		Str("portfolio", portfolio).
		Int("imported", imported).
		Int("skipped", skipped).
		Msg("Events imported")
	return imported, skipped, nil
}
