// Package seriesfs implements the file-based series cache: price, dividend and
// value histories, realtime snapshots, journals, the dirty set and sync status.
// Every artifact is a human-readable JSON file replaced atomically.
package seriesfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	pricesDir    = "prices"
	dividendsDir = "dividends"
	valuesDir    = "values"
	realtimeDir  = "realtime"
	journalsDir  = "journals"
	dirtyKey     = "dirty"
	statusKey    = "status"
	metaKey      = "meta"
)

// Store provides file-based JSON storage for the cache tier.
type Store struct {
	basePath string
	logger   *common.Logger

	seriesMu sync.Mutex // serialises price/dividend read-merge-write
	dirtyMu  sync.Mutex
	statusMu sync.Mutex
}

// NewStore creates a new series store rooted at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache path %s: %w", path, err)
	}
	for _, dir := range []string{pricesDir, dividendsDir, valuesDir, realtimeDir, journalsDir} {
		if err := os.MkdirAll(filepath.Join(path, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	logger.Debug().Str("path", path).Msg("Series cache opened")
	return &Store{
		basePath: path,
		logger:   logger,
	}, nil
}

// DataPath returns the cache root.
func (s *Store) DataPath() string {
	return s.basePath
}

// PurgeDerived removes value series, journals and status. Price and dividend
// histories and the dirty set are kept.
func (s *Store) PurgeDerived(_ context.Context) (map[string]int, error) {
	counts := map[string]int{}

	entries, err := os.ReadDir(s.dir(valuesDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read values directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(s.dir(valuesDir), e.Name())
		counts["values"] += purgeDir(sub)
		os.Remove(sub)
	}
	counts["journals"] = purgeDir(s.dir(journalsDir))

	if err := os.Remove(filePath(s.basePath, statusKey)); err == nil {
		counts["status"] = 1
	}

	s.logger.Info().
		Int("values", counts["values"]).
		Int("journals", counts["journals"]).
		Msg("Purged derived cache")
	return counts, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func (s *Store) dir(name string) string {
	return filepath.Join(s.basePath, name)
}

// load reads key from dir into dest. It returns false when the file is absent
// or unreadable; corrupt files are logged and treated as absent.
func (s *Store) load(dir, key string, dest interface{}) (bool, error) {
	err := readJSON(dir, key, dest)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		var corrupt *models.CacheCorruptionError
		if errors.As(err, &corrupt) {
			s.logger.Warn().Str("path", corrupt.Path).Err(corrupt.Err).Msg("Ignoring corrupt cache file")
			return false, nil
		}
		return false, err
	}
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func filePath(dir, key string) string {
	return filepath.Join(dir, sanitizeKey(key)+".json")
}

func readJSON(dir, key string, dest interface{}) error {
	path := filePath(dir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return &models.CacheCorruptionError{Path: path, Err: errors.New("empty file")}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &models.CacheCorruptionError{Path: path, Err: err}
	}
	return nil
}

func writeJSON(dir, key string, data interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	target := filePath(dir, key)
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func listKeys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".tmp-") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}

func deleteJSON(dir, key string) error {
	if err := os.Remove(filePath(dir, key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func purgeDir(dir string) int {
	keys, err := listKeys(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, key := range keys {
		if deleteJSON(dir, key) == nil {
			count++
		}
	}
	return count
}
