// Package interfaces defines service contracts for folio
package interfaces

import (
	"context"
	"iter"

	"github.com/bobmcallan/folio/internal/models"
)

// DirtyTracker is the sole gate for whether a holding needs recomputation.
// Every mark is persisted before the call returns.
type DirtyTracker interface {
	MarkDirty(ctx context.Context, reason string, keys ...models.HoldingKey) error

	// Drain yields the dirty entries of a snapshot taken at first iteration.
	// Once fully consumed the sequence yields nothing more.
	Drain(ctx context.Context) iter.Seq[models.DirtyEntry]

	// Clear removes the entry only if it has not been re-marked since drained.
	Clear(ctx context.Context, entry models.DirtyEntry) (bool, error)

	IsDirty(ctx context.Context, key models.HoldingKey) (bool, error)
	Len(ctx context.Context) (int, error)

	// Corrupted reports (and resets) whether a corrupt dirty file was replaced
	// since the last call, meaning every holding must be treated as dirty.
	Corrupted() bool
}

// PortfolioService is the foreground surface: event CRUD plus cache-only reads.
type PortfolioService interface {
	ListPortfolios(ctx context.Context) ([]string, error)
	GetPortfolio(ctx context.Context, name string) (*models.Portfolio, error)
	CreatePortfolio(ctx context.Context, name string) error

	AddEvent(ctx context.Context, portfolio string, event models.Event) (*models.Event, error)
	UpdateEvent(ctx context.Context, portfolio string, event models.Event) error
	DeleteEvent(ctx context.Context, portfolio, eventID string) error
	AddCashEvent(ctx context.Context, portfolio string, event models.CashEvent) (*models.CashEvent, error)
	DeleteCashEvent(ctx context.Context, portfolio, eventID string) error

	// RequestRecompute marks every holding of the portfolio dirty
	RequestRecompute(ctx context.Context, portfolio string) error

	Status(ctx context.Context, portfolio string) (*models.PortfolioStatus, error)
	Journal(ctx context.Context, portfolio string) (*models.Journal, bool, error)
}

// SyncService is the background scheduler.
type SyncService interface {
	Start() error
	Stop()
	RunCycle(ctx context.Context) error
	RefreshRealtime(ctx context.Context) error
	DrainDirty(ctx context.Context) error
}
