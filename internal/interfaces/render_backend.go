// -----------------------------------------------------------------------
// Render Backend Interface - Pluggable map rendering engine
// -----------------------------------------------------------------------

package interfaces

import (
	"github.com/ternarybob/atlas/pkg/models"
)

// LayerHandle is a prepared, reusable layer owned by a render backend.
// Handles are only valid with the backend that produced them.
type LayerHandle interface {
	// Name returns the layer name the handle was prepared under.
	Name() string
}

// MapRequest describes one map image to render. Layers are ordered
// bottom-up: the first handle is drawn first.
type MapRequest struct {
	Layers       []LayerHandle
	BBox         models.BBox
	Crs          string
	Width        int
	Height       int
	Dpi          int
	Format       string  // media type, e.g. image/png
	ExtentBuffer float64 // map units added around the bbox
}

// IdentifyRequest describes a point identification against rendered
// layers. Pixel coordinates are relative to the map image described by
// the embedded geometry.
type IdentifyRequest struct {
	Layers    []LayerHandle
	BBox      models.BBox
	Crs       string
	Width     int
	Height    int
	Dpi       int
	PixelX    int
	PixelY    int
	Tolerance float64 // search radius in map units
}

// FeatureRequest describes a filtered feature fetch against one prepared
// layer.
type FeatureRequest struct {
	Layer  LayerHandle
	Filter string // backend filter expression, empty selects all
}

// FeatureResult is the backend's answer to a FeatureRequest: the matched
// features plus the total match count before any windowing.
type FeatureResult struct {
	Features []models.QueryFeature
	Matched  int
}

// LegendRequest describes one legend sheet.
type LegendRequest struct {
	Layers []LayerHandle
	Dpi    int
}

// RenderBackend is the pluggable rendering engine behind the job
// executor. A backend owns its prepared layers and any native resources;
// Close releases them.
type RenderBackend interface {
	// Name identifies the backend in logs and configuration.
	Name() string

	// PrepareLayer builds a reusable handle from a dataset definition and
	// its decoded style document. The style may be empty.
	PrepareLayer(dataset *models.DatasetRef, style []byte) (LayerHandle, error)

	// RenderMap draws the requested image and returns the encoded bytes
	// in the requested format.
	RenderMap(req *MapRequest) ([]byte, error)

	// IdentifyFeatures returns the features hit at the request's pixel
	// position, one slice entry per hit.
	IdentifyFeatures(req *IdentifyRequest) ([]models.GeoJSONFeature, error)

	// QueryFeatures fetches the features of one layer that match the
	// request filter.
	QueryFeatures(req *FeatureRequest) (*FeatureResult, error)

	// RenderLegend draws a legend sheet for the given layers as PNG.
	RenderLegend(req *LegendRequest) ([]byte, error)

	// Close releases backend resources. Prepared handles are invalid
	// afterwards.
	Close() error
}
