// Package portfoliofs stores portfolio event logs as one CSV file per portfolio.
// This is the authoritative tier: files are only written on explicit saves and
// never rebuilt.
package portfoliofs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

const fileExt = ".csv"

const (
	rowEvent = "event"
	rowCash  = "cash"
	rowMeta  = "meta" // legacy rows, read and dropped
)

// Columns is the header written to every portfolio file.
var Columns = []string{"row_type", "symbol", "date", "type", "shares", "price", "amount", "note", "id"}

// Store reads and writes portfolio CSV files in a directory.
type Store struct {
	dir    string
	logger *common.Logger
	mu     sync.Mutex
}

// NewStore creates a new portfolio store rooted at dir.
func NewStore(logger *common.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create portfolio path %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// ValidName reports whether name is usable as a portfolio file name.
func ValidName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\:`)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// ListPortfolios returns the sorted names of all portfolio files.
func (s *Store) ListPortfolios(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, name[len(name)-len(fileExt):]))
	}
	sort.Strings(names)
	return names, nil
}

// LoadEvents parses a portfolio file. Row order defines insertion order.
func (s *Store) LoadEvents(_ context.Context, name string) ([]models.Event, []models.CashEvent, error) {
	if !ValidName(name) {
		return nil, nil, fmt.Errorf("invalid portfolio name %q", name)
	}
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("portfolio %q: %w", name, models.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open portfolio %s: %w", name, err)
	}
	defer f.Close()

	events, cash, err := decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse portfolio %s: %w", name, err)
	}
	return events, cash, nil
}

// SaveEvents atomically rewrites a portfolio file. Events are written in
// insertion order.
func (s *Store) SaveEvents(_ context.Context, name string, events []models.Event, cash []models.CashEvent) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid portfolio name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := encode(tmpFile, events, cash); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write portfolio %s: %w", name, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.logger.Debug().Str("portfolio", name).Int("events", len(events)).Int("cash", len(cash)).Msg("Portfolio saved")
	return nil
}

// DeletePortfolio removes a portfolio file.
func (s *Store) DeletePortfolio(_ context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid portfolio name %q", name)
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("portfolio %q: %w", name, models.ErrNotFound)
		}
		return err
	}
	return nil
}

// ModTime returns the last modification time of a portfolio file.
func (s *Store) ModTime(_ context.Context, name string) (time.Time, error) {
	info, err := os.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("portfolio %q: %w", name, models.ErrNotFound)
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// --- codec ---

func decode(r io.Reader) ([]models.Event, []models.CashEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["row_type"]; !ok {
		return nil, nil, fmt.Errorf("missing row_type column")
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var events []models.Event
	var cash []models.CashEvent
	seq := 0
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch strings.ToLower(get(rec, "row_type")) {
		case rowEvent:
			symbol := models.NormalizeSymbol(get(rec, "symbol"))
			if symbol == "" {
				continue
			}
			date, err := common.ParseDate(get(rec, "date"))
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
			kind := models.EventKind(strings.ToLower(get(rec, "type")))
			if kind == "" {
				kind = models.EventPurchase
			}
			if !models.ValidEventKind(kind) {
				return nil, nil, fmt.Errorf("line %d: unknown event type %q", line, kind)
			}
			ev := models.Event{
				ID:     idOrNew(get(rec, "id")),
				Symbol: symbol,
				Date:   date,
				Kind:   kind,
				Note:   get(rec, "note"),
				Seq:    seq,
			}
			if ev.Shares, err = parseOptional(get(rec, "shares")); err != nil {
				return nil, nil, fmt.Errorf("line %d shares: %w", line, err)
			}
			if ev.Price, err = parseOptional(get(rec, "price")); err != nil {
				return nil, nil, fmt.Errorf("line %d price: %w", line, err)
			}
			if ev.Amount, err = parseOptional(get(rec, "amount")); err != nil {
				return nil, nil, fmt.Errorf("line %d amount: %w", line, err)
			}
			events = append(events, ev)
			seq++

		case rowCash:
			date, err := common.ParseDate(get(rec, "date"))
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
			kind := models.CashKind(strings.ToLower(get(rec, "type")))
			if kind == "" {
				kind = models.CashDeposit
			}
			if !models.ValidCashKind(kind) {
				return nil, nil, fmt.Errorf("line %d: unknown cash type %q", line, kind)
			}
			amount, err := parseOptional(get(rec, "amount"))
			if err != nil {
				return nil, nil, fmt.Errorf("line %d amount: %w", line, err)
			}
			cash = append(cash, models.CashEvent{
				ID:     idOrNew(get(rec, "id")),
				Date:   date,
				Kind:   kind,
				Amount: floatOrZero(amount),
				Note:   get(rec, "note"),
				Seq:    seq,
			})
			seq++

		case rowMeta, "":
			continue
		}
	}
	return events, cash, nil
}

type row struct {
	seq    int
	fields []string
}

func encode(w io.Writer, events []models.Event, cash []models.CashEvent) error {
	rows := make([]row, 0, len(events)+len(cash))
	for _, e := range events {
		rows = append(rows, row{seq: e.Seq, fields: []string{
			rowEvent, models.NormalizeSymbol(e.Symbol), common.FormatDate(e.Date), string(e.Kind),
			formatOptional(e.Shares), formatOptional(e.Price), formatOptional(e.Amount), e.Note, e.ID,
		}})
	}
	for _, c := range cash {
		rows = append(rows, row{seq: c.Seq, fields: []string{
			rowCash, "", common.FormatDate(c.Date), string(c.Kind),
			"", "", formatOptional(&c.Amount), c.Note, c.ID,
		}})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writer.Write(r.fields); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
