// -----------------------------------------------------------------------
// Theme Store Interface - Persistent registry of exported themes
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/atlas/pkg/models"
)

// ErrThemeNotFound is returned when a theme is not in the registry
var ErrThemeNotFound = errors.New("theme not found")

// ErrDatasetNotFound is returned when no stored theme defines the
// requested dataset
var ErrDatasetNotFound = errors.New("dataset not found")

// ThemeStore persists exported theme documents and resolves dataset
// definitions by name for the worker side of the fabric.
type ThemeStore interface {
	// Put stores or replaces a theme document by name.
	Put(ctx context.Context, doc *models.ThemeDocument) error

	// Get retrieves a theme by name, returns ErrThemeNotFound if absent.
	Get(ctx context.Context, name string) (*models.ThemeDocument, error)

	// List returns all stored themes.
	List(ctx context.Context) ([]models.ThemeDocument, error)

	// Delete removes a theme by name, returns ErrThemeNotFound if absent.
	Delete(ctx context.Context, name string) error

	// ResolveVector finds a vector dataset by layer name across all
	// stored themes, returning the dataset and the owning theme name.
	// Returns ErrDatasetNotFound when no theme defines the layer.
	ResolveVector(ctx context.Context, layerName string) (*models.Vector, string, error)

	// Close releases the underlying store.
	Close() error
}
