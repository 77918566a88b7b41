package seriesfs

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// LoadDirtySet reads the persisted dirty set. A corrupt file yields an empty
// set with corrupted=true so callers can fail safe.
func (s *Store) LoadDirtySet(_ context.Context) (*models.DirtySet, bool, error) {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return s.readDirtySet()
}

// UpdateDirtySet runs fn against the persisted dirty set and writes the result
// before returning. Calls are serialised so concurrent marks and clears never
// overwrite each other.
func (s *Store) UpdateDirtySet(_ context.Context, fn func(set *models.DirtySet, corrupted bool) error) error {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()

	set, corrupted, err := s.readDirtySet()
	if err != nil {
		return err
	}
	if err := fn(set, corrupted); err != nil {
		return err
	}
	return writeJSON(s.basePath, dirtyKey, set)
}

func (s *Store) readDirtySet() (*models.DirtySet, bool, error) {
	set := models.NewDirtySet()
	err := readJSON(s.basePath, dirtyKey, set)
	switch {
	case err == nil:
		if set.Entries == nil {
			set.Entries = make(map[string]models.DirtyEntry)
		}
		if set.NextGeneration == 0 {
			set.NextGeneration = 1
		}
		return set, false, nil
	case errors.Is(err, models.ErrNotFound):
		return models.NewDirtySet(), false, nil
	default:
		var corrupt *models.CacheCorruptionError
		if errors.As(err, &corrupt) {
			s.logger.Warn().Str("path", corrupt.Path).Err(corrupt.Err).Msg("Dirty set unreadable, treating every holding as dirty")
			return models.NewDirtySet(), true, nil
		}
		return nil, false, err
	}
}

// LoadStatus reads the sync status, returning an empty status when absent.
func (s *Store) LoadStatus(_ context.Context) (*models.SyncStatus, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.readStatus()
}

// UpdateStatus runs fn against the sync status and persists the result.
func (s *Store) UpdateStatus(_ context.Context, fn func(status *models.SyncStatus) error) error {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	status, err := s.readStatus()
	if err != nil {
		return err
	}
	if err := fn(status); err != nil {
		return err
	}
	status.UpdatedAt = time.Now()
	return writeJSON(s.basePath, statusKey, status)
}

func (s *Store) readStatus() (*models.SyncStatus, error) {
	status := models.NewSyncStatus()
	ok, err := s.load(s.basePath, statusKey, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.NewSyncStatus(), nil
	}
	if status.Symbols == nil {
		status.Symbols = make(map[string]*models.SymbolStatus)
	}
	if status.JournalsBuiltAt == nil {
		status.JournalsBuiltAt = make(map[string]time.Time)
	}
	return status, nil
}

type cacheMeta struct {
	SchemaVersion string    `json:"schema_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LoadSchemaVersion returns the schema version the cache was written with,
// or "" when it was never recorded.
func (s *Store) LoadSchemaVersion(_ context.Context) (string, error) {
	var meta cacheMeta
	if _, err := s.load(s.basePath, metaKey, &meta); err != nil {
		return "", err
	}
	return meta.SchemaVersion, nil
}

// SaveSchemaVersion records the schema version of the cache.
func (s *Store) SaveSchemaVersion(_ context.Context, version string) error {
	return writeJSON(s.basePath, metaKey, cacheMeta{SchemaVersion: version, UpdatedAt: time.Now()})
}
