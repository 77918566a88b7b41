package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when a key has no cached artifact.
var ErrNotFound = errors.New("not found")

// TransientFetchError is a recoverable market data failure (network, rate limit, 5xx).
// The symbol stays dirty and is retried next cycle.
type TransientFetchError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch error for %s (%s): %v", e.Symbol, e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// DataGapError reports that the provider returned nothing for a range it should cover.
type DataGapError struct {
	Symbol string
	From   time.Time
	To     time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("no data for %s between %s and %s",
		e.Symbol, e.From.Format("2006-01-02"), e.To.Format("2006-01-02"))
}

// CacheCorruptionError reports an unreadable cache artifact. The artifact is
// treated as absent and rebuilt.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache file %s: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// ComputationError reports an event log that cannot be replayed, such as a sale
// exceeding the shares held.
type ComputationError struct {
	Key    HoldingKey
	Date   time.Time
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("cannot value %s on %s: %s", e.Key, e.Date.Format("2006-01-02"), e.Reason)
}

// IsTransient reports whether err is a TransientFetchError.
func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

// IsDataGap reports whether err is a DataGapError.
func IsDataGap(err error) bool {
	var g *DataGapError
	return errors.As(err, &g)
}
