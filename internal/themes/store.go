// -----------------------------------------------------------------------
// Theme Store - Badgerhold-backed registry of exported themes
// -----------------------------------------------------------------------

package themes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/models"
)

// Store implements interfaces.ThemeStore over a local badgerhold database.
type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens or creates the registry at dir.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create theme store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open theme store: %w", err)
	}

	s := &Store{
		store:  store,
		logger: arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug().Str("path", dir).Msg("Theme store opened")
	return s, nil
}

// Close reclaims value-log space and closes the underlying database.
func (s *Store) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Badger().RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		s.logger.Warn().Err(err).Msg("Value log GC failed")
	}
	return s.store.Close()
}

// Put stores or replaces a theme document by name, preserving CreatedAt
// on replacement.
func (s *Store) Put(ctx context.Context, doc *models.ThemeDocument) error {
	if doc == nil || doc.Name == "" {
		return fmt.Errorf("theme document needs a name")
	}
	now := time.Now()
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	// Check if exists to preserve CreatedAt
	var existing models.ThemeDocument
	if err := s.store.Get(doc.Name, &existing); err == nil {
		doc.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Upsert(doc.Name, doc); err != nil {
		return fmt.Errorf("failed to store theme %s: %w", doc.Name, err)
	}

	s.logger.Info().
		Str("theme", doc.Name).
		Int("vectors", len(doc.Config.Datasets.Vector)).
		Int("rasters", len(doc.Config.Datasets.Raster)).
		Int("customs", len(doc.Config.Datasets.Custom)).
		Msg("Theme stored")
	return nil
}

// Get retrieves a theme by name.
func (s *Store) Get(ctx context.Context, name string) (*models.ThemeDocument, error) {
	var doc models.ThemeDocument
	err := s.store.Get(name, &doc)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrThemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme %s: %w", name, err)
	}
	return &doc, nil
}

// List returns all stored themes ordered by name.
func (s *Store) List(ctx context.Context) ([]models.ThemeDocument, error) {
	var docs []models.ThemeDocument
	if err := s.store.Find(&docs, nil); err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	return docs, nil
}

// Delete removes a theme by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.store.Delete(name, &models.ThemeDocument{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrThemeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete theme %s: %w", name, err)
	}
	s.logger.Info().Str("theme", name).Msg("Theme deleted")
	return nil
}

// ResolveVector finds a vector dataset by layer name across all stored
// themes, returning the dataset and the owning theme name.
func (s *Store) ResolveVector(ctx context.Context, layerName string) (*models.Vector, string, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, "", err
	}
	for i := range docs {
		if vector, ok := docs[i].Config.VectorByName(layerName); ok {
			return vector, docs[i].Name, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", interfaces.ErrDatasetNotFound, layerName)
}
