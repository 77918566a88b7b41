// Package portfolio provides the foreground portfolio surface: event CRUD that
// marks affected holdings dirty before returning, and cache-only status reads.
// It never recomputes; that belongs to the background scheduler.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service implements PortfolioService
type Service struct {
	portfolios interfaces.PortfolioStore
	series     interfaces.SeriesStore
	tracker    interfaces.DirtyTracker
	logger     *common.Logger
	now        func() time.Time // injectable clock for testing
}

// NewService creates a new portfolio service
func NewService(storage interfaces.StorageManager, tracker interfaces.DirtyTracker, logger *common.Logger) *Service {
	return &Service{
		portfolios: storage.PortfolioStore(),
		series:     storage.SeriesStore(),
		tracker:    tracker,
		logger:     logger,
		now:        time.Now,
	}
}

// ListPortfolios returns available portfolio names
func (s *Service) ListPortfolios(ctx context.Context) ([]string, error) {
	return s.portfolios.ListPortfolios(ctx)
}

// GetPortfolio loads a portfolio's event log
func (s *Service) GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	events, cash, err := s.portfolios.LoadEvents(ctx, name)
	if err != nil {
		return nil, err
	}
	return &models.Portfolio{Name: name, Events: events, CashEvents: cash}, nil
}

// CreatePortfolio creates an empty portfolio file if none exists
func (s *Service) CreatePortfolio(ctx context.Context, name string) error {
	_, _, err := s.portfolios.LoadEvents(ctx, name)
	if err == nil {
		return fmt.Errorf("portfolio %q already exists", name)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return s.portfolios.SaveEvents(ctx, name, nil, nil)
}

// AddEvent appends an event and marks its holding dirty
func (s *Service) AddEvent(ctx context.Context, portfolio string, event models.Event) (*models.Event, error) {
	p, err := s.loadOrEmpty(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	if err := validateEvent(&event); err != nil {
		return nil, err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	} else if slices.ContainsFunc(p.Events, func(e models.Event) bool { return e.ID == event.ID }) {
		return nil, fmt.Errorf("event %s already exists in %s", event.ID, portfolio)
	}
	event.Seq = p.NextSeq()
	p.Events = append(p.Events, event)

	if err := s.save(ctx, p, "event added", event.Symbol); err != nil {
		return nil, err
	}
	s.logger.Info().Str("portfolio", portfolio).Str("symbol", event.Symbol).Str("kind", string(event.Kind)).Msg("Event added")
	return &event, nil
}

// UpdateEvent replaces an event by ID, keeping its insertion order
func (s *Service) UpdateEvent(ctx context.Context, portfolio string, event models.Event) error {
	p, err := s.GetPortfolio(ctx, portfolio)
	if err != nil {
		return err
	}
	if err := validateEvent(&event); err != nil {
		return err
	}
	for i, existing := range p.Events {
		if existing.ID != event.ID {
			continue
		}
		event.Seq = existing.Seq
		p.Events[i] = event
		// A symbol change dirties both holdings
		return s.save(ctx, p, "event updated", existing.Symbol, event.Symbol)
	}
	return fmt.Errorf("event %s in %s: %w", event.ID, portfolio, models.ErrNotFound)
}

// DeleteEvent removes an event by ID
func (s *Service) DeleteEvent(ctx context.Context, portfolio, eventID string) error {
	p, err := s.GetPortfolio(ctx, portfolio)
	if err != nil {
		return err
	}
	for i, existing := range p.Events {
		if existing.ID != eventID {
			continue
		}
		p.Events = append(p.Events[:i], p.Events[i+1:]...)
		return s.save(ctx, p, "event deleted", existing.Symbol)
	}
	return fmt.Errorf("event %s in %s: %w", eventID, portfolio, models.ErrNotFound)
}

// AddCashEvent appends a portfolio-level cash event. A dividend attributed to
// a symbol marks that holding dirty.
func (s *Service) AddCashEvent(ctx context.Context, portfolio string, event models.CashEvent) (*models.CashEvent, error) {
	p, err := s.loadOrEmpty(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	if !models.ValidCashKind(event.Kind) {
		return nil, fmt.Errorf("invalid cash event kind %q", event.Kind)
	}
	if event.Date.IsZero() {
		return nil, fmt.Errorf("cash event requires a date")
	}
	if event.Amount <= 0 {
		return nil, fmt.Errorf("cash event amount must be positive")
	}
	event.Date = common.Day(event.Date)
	if event.ID == "" {
		event.ID = uuid.NewString()
	} else if slices.ContainsFunc(p.CashEvents, func(e models.CashEvent) bool { return e.ID == event.ID }) {
		return nil, fmt.Errorf("cash event %s already exists in %s", event.ID, portfolio)
	}
	event.Seq = p.NextSeq()
	p.CashEvents = append(p.CashEvents, event)

	if err := s.save(ctx, p, "cash event added", event.DividendSymbol()); err != nil {
		return nil, err
	}
	return &event, nil
}

// DeleteCashEvent removes a cash event by ID
func (s *Service) DeleteCashEvent(ctx context.Context, portfolio, eventID string) error {
	p, err := s.GetPortfolio(ctx, portfolio)
	if err != nil {
		return err
	}
	for i, existing := range p.CashEvents {
		if existing.ID != eventID {
			continue
		}
		p.CashEvents = append(p.CashEvents[:i], p.CashEvents[i+1:]...)
		return s.save(ctx, p, "cash event deleted", existing.DividendSymbol())
	}
	return fmt.Errorf("cash event %s in %s: %w", eventID, portfolio, models.ErrNotFound)
}

// RequestRecompute marks every holding of a portfolio dirty
func (s *Service) RequestRecompute(ctx context.Context, portfolio string) error {
	p, err := s.GetPortfolio(ctx, portfolio)
	if err != nil {
		return err
	}
	keys := make([]models.HoldingKey, 0)
	for _, sym := range p.Symbols() {
		keys = append(keys, models.NewHoldingKey(portfolio, sym))
	}
	return s.tracker.MarkDirty(ctx, "recompute requested", keys...)
}

// save writes the portfolio then marks symbols dirty before returning. A
// failed mark is returned so the caller never assumes a clean cache.
func (s *Service) save(ctx context.Context, p *models.Portfolio, reason string, symbols ...string) error {
	if err := s.portfolios.SaveEvents(ctx, p.Name, p.Events, p.CashEvents); err != nil {
		return fmt.Errorf("failed to save portfolio %s: %w", p.Name, err)
	}
	keys := make([]models.HoldingKey, 0, len(symbols))
	seen := map[string]bool{}
	for _, sym := range symbols {
		sym = models.NormalizeSymbol(sym)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		keys = append(keys, models.NewHoldingKey(p.Name, sym))
	}
	if err := s.tracker.MarkDirty(ctx, reason, keys...); err != nil {
		return fmt.Errorf("portfolio %s saved but marking dirty failed: %w", p.Name, err)
	}
	return nil
}

func (s *Service) loadOrEmpty(ctx context.Context, name string) (*models.Portfolio, error) {
	p, err := s.GetPortfolio(ctx, name)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Portfolio{Name: name}, nil
	}
	return p, err
}

func validateEvent(e *models.Event) error {
	e.Symbol = models.NormalizeSymbol(e.Symbol)
	e.Kind = models.EventKind(strings.ToLower(string(e.Kind)))
	if e.Symbol == "" {
		return fmt.Errorf("event requires a symbol")
	}
	if e.Date.IsZero() {
		return fmt.Errorf("event requires a date")
	}
	e.Date = common.Day(e.Date)
	if !models.ValidEventKind(e.Kind) {
		return fmt.Errorf("invalid event kind %q", e.Kind)
	}
	switch e.Kind {
	case models.EventPurchase, models.EventSale:
		if e.SharesValue() <= 0 {
			return fmt.Errorf("%s requires a positive share count", e.Kind)
		}
		if e.Price != nil && *e.Price < 0 {
			return fmt.Errorf("price cannot be negative")
		}
	case models.EventDividend:
		if e.Amount == nil && e.Price == nil {
			return fmt.Errorf("dividend requires an amount or a per-share price")
		}
	}
	return nil
}

// Compile-time check
var _ interfaces.PortfolioService = (*Service)(nil)
