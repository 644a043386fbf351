// -----------------------------------------------------------------------
// Engine - Job executor over a pluggable render backend
// -----------------------------------------------------------------------

package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/models"
)

// DefaultDpi applies when a request carries no usable dpi.
const DefaultDpi = 96

// DefaultCacheSize bounds the prepared-layer cache when not configured.
const DefaultCacheSize = 64

// Engine is the default JobExecutor: it decodes layer definitions,
// prepares them through a per-process cache and routes each job kind to
// its runner on the render backend.
type Engine struct {
	backend interfaces.RenderBackend
	themes  interfaces.ThemeStore // optional, resolves GetFeatureInfo query layers
	cache   *layerCache
	logger  arbor.ILogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithThemeStore attaches a theme registry for query layer resolution.
func WithThemeStore(store interfaces.ThemeStore) Option {
	return func(e *Engine) {
		e.themes = store
	}
}

// WithCacheSize bounds the prepared-layer cache. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(e *Engine) {
		e.cache = newLayerCache(size)
	}
}

// New builds an engine over a render backend. The engine owns the backend
// from here on; Close tears it down.
func New(backend interfaces.RenderBackend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		cache:   newLayerCache(DefaultCacheSize),
		logger:  arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases the backend and its prepared layers.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// CachedLayers reports how many prepared layers are currently held.
func (e *Engine) CachedLayers() int {
	return e.cache.len()
}

// Process implements interfaces.JobExecutor.
func (e *Engine) Process(ctx context.Context, job models.Job) (*models.JobResult, error) {
	switch j := job.(type) {
	case *models.GetMapJob:
		return e.runGetMap(ctx, j)
	case *models.GetFeatureInfoJob:
		return e.runGetFeatureInfo(ctx, j)
	case *models.GetFeatureJob:
		return e.runGetFeature(ctx, j)
	case *models.LegendJob:
		return e.runLegend(ctx, j)
	default:
		return nil, fmt.Errorf("%w: %T", models.ErrUnsupportedJobKind, job)
	}
}

// prepareDataset returns a layer handle, reusing the cache when the layer
// was already prepared with the same style.
func (e *Engine) prepareDataset(ref *models.DatasetRef) (interfaces.LayerHandle, error) {
	key := cacheKey(ref.Name, ref.Style)
	if handle, ok := e.cache.get(key); ok {
		return handle, nil
	}

	style, err := models.DecodeStyle(ref.Style)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", ref.Name, err)
	}
	handle, err := e.backend.PrepareLayer(ref, style)
	if err != nil {
		return nil, fmt.Errorf("prepare layer %s: %w", ref.Name, err)
	}

	e.cache.put(key, handle)
	e.logger.Debug().Str("layer", ref.Name).Str("family", ref.Family).Msg("Layer prepared")
	return handle, nil
}

// prepareVector adapts a bare vector dataset into the flattened reference
// form and prepares it.
func (e *Engine) prepareVector(v *models.Vector) (interfaces.LayerHandle, error) {
	return e.prepareDataset(&models.DatasetRef{
		Family: "vector",
		Name:   v.Name, Title: v.Title, Style: v.Style, Driver: v.Driver,
		ID: v.ID, Crs: v.Crs, BBox: v.BBox,
		Vector: v,
	})
}

