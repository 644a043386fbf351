// -----------------------------------------------------------------------
// Solid Backend - Deterministic development renderer
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/models"
)

// FixtureFeatureCount is how many features the solid backend synthesizes
// per vector layer on a query.
const FixtureFeatureCount = 3

// Legend sheet geometry in pixels.
const (
	legendWidth     = 160
	legendRowHeight = 20
)

// SolidBackend is a render backend without a native rendering stack:
// every layer draws as a translucent solid fill whose color derives from
// the layer name, identification reports synthetic point hits and queries
// return fixture features with WKB point geometry. Output is fully
// deterministic, which keeps the job plumbing testable end to end.
type SolidBackend struct {
	svgPaths []string
	logger   arbor.ILogger

	mu     sync.Mutex
	closed bool
}

// Option configures a SolidBackend.
type Option func(*SolidBackend)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(b *SolidBackend) {
		b.logger = logger
	}
}

// WithSvgPaths records the SVG symbol search paths. The solid fill has no
// symbols to resolve; the paths are kept for parity with real backends.
func WithSvgPaths(paths []string) Option {
	return func(b *SolidBackend) {
		b.svgPaths = paths
	}
}

// NewSolidBackend builds the development backend.
func NewSolidBackend(opts ...Option) *SolidBackend {
	b := &SolidBackend{
		logger: arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger.Debug().Strs("svg_paths", b.svgPaths).Msg("Solid backend ready")
	return b
}

// Name implements interfaces.RenderBackend.
func (b *SolidBackend) Name() string { return "solid" }

// solidLayer is the backend's prepared layer form.
type solidLayer struct {
	name   string
	family string
	fill   color.NRGBA
	bbox   models.BBox
	fields []models.Field
}

func (l *solidLayer) Name() string { return l.name }

// LayerColor derives a stable fill color from a layer name. Channels are
// floored away from black so every layer stays visible on white.
func LayerColor(name string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()
	return color.NRGBA{
		R: 64 + byte(sum)%192,
		G: 64 + byte(sum>>8)%192,
		B: 64 + byte(sum>>16)%192,
		A: 255,
	}
}

// PrepareLayer implements interfaces.RenderBackend. The style document is
// accepted and ignored: a solid fill takes nothing from it.
func (b *SolidBackend) PrepareLayer(dataset *models.DatasetRef, style []byte) (interfaces.LayerHandle, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	if dataset == nil || dataset.Name == "" {
		return nil, fmt.Errorf("dataset needs a name")
	}
	layer := &solidLayer{
		name:   dataset.Name,
		family: dataset.Family,
		fill:   LayerColor(dataset.Name),
		bbox:   dataset.BBox,
	}
	if dataset.Vector != nil {
		layer.fields = dataset.Vector.Fields
	}
	return layer, nil
}

// RenderMap implements interfaces.RenderBackend. Layers composite
// bottom-up as translucent fills; PNG keeps a transparent base, JPEG gets
// white.
func (b *SolidBackend) RenderMap(req *interfaces.MapRequest) ([]byte, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("image size %dx%d", req.Width, req.Height)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, req.Width, req.Height))
	if req.Format != "" && req.Format != models.DefaultImageFormat {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	}

	for _, handle := range req.Layers {
		layer, err := asSolid(handle)
		if err != nil {
			return nil, err
		}
		fill := layer.fill
		fill.A = 0xa0
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(fill), image.Point{}, draw.Over)
	}

	return encodeImage(canvas, req.Format)
}

// IdentifyFeatures implements interfaces.RenderBackend. Every vector
// layer reports one hit when the pixel lies on the canvas; the hit
// carries the map-space point and the layer's declared fields.
func (b *SolidBackend) IdentifyFeatures(req *interfaces.IdentifyRequest) ([]models.GeoJSONFeature, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("image size %dx%d", req.Width, req.Height)
	}

	features := []models.GeoJSONFeature{}
	inside := req.PixelX >= 0 && req.PixelX < req.Width && req.PixelY >= 0 && req.PixelY < req.Height
	if !inside {
		return features, nil
	}

	mapX := req.BBox.XMin + (float64(req.PixelX)+0.5)*req.BBox.Width()/float64(req.Width)
	mapY := req.BBox.YMax - (float64(req.PixelY)+0.5)*req.BBox.Height()/float64(req.Height)

	for _, handle := range req.Layers {
		layer, err := asSolid(handle)
		if err != nil {
			return nil, err
		}
		if layer.family != "" && layer.family != "vector" {
			continue
		}
		props := map[string]any{
			"layer": layer.name,
			"x":     mapX,
			"y":     mapY,
		}
		for _, field := range layer.fields {
			if _, taken := props[field.Name]; !taken {
				props[field.Name] = ""
			}
		}
		features = append(features, models.NewGeoJSONFeature(props))
	}
	return features, nil
}

// QueryFeatures implements interfaces.RenderBackend. A fixed number of
// fixture features is synthesized across the layer extent. Filters are
// not evaluated; a non-empty filter is echoed on each feature so callers
// can trace what was applied.
func (b *SolidBackend) QueryFeatures(req *interfaces.FeatureRequest) (*interfaces.FeatureResult, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	layer, err := asSolid(req.Layer)
	if err != nil {
		return nil, err
	}

	features := make([]models.QueryFeature, 0, FixtureFeatureCount)
	for i := 0; i < FixtureFeatureCount; i++ {
		x, y := fixturePoint(layer.bbox, i)
		attrs := []models.Attribute{
			{Name: "fid", Value: i + 1},
			{Name: "layer", Value: layer.name},
		}
		if req.Filter != "" {
			attrs = append(attrs, models.Attribute{Name: "filter", Value: req.Filter})
		}
		for _, field := range layer.fields {
			attrs = append(attrs, models.Attribute{Name: field.Name, Value: ""})
		}
		features = append(features, models.QueryFeature{
			Geometry:   models.GeometryAttribute(PointWKB(x, y)),
			Attributes: attrs,
		})
	}
	return &interfaces.FeatureResult{Features: features, Matched: len(features)}, nil
}

// RenderLegend implements interfaces.RenderBackend: one swatch row per
// layer on a white sheet, PNG-encoded. Zero layers yield a single blank
// row.
func (b *SolidBackend) RenderLegend(req *interfaces.LegendRequest) ([]byte, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}

	rows := len(req.Layers)
	if rows == 0 {
		rows = 1
	}
	sheet := image.NewNRGBA(image.Rect(0, 0, legendWidth, rows*legendRowHeight))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, handle := range req.Layers {
		layer, err := asSolid(handle)
		if err != nil {
			return nil, err
		}
		top := i * legendRowHeight
		swatch := image.Rect(4, top+4, legendRowHeight-4, top+legendRowHeight-4)
		draw.Draw(sheet, swatch, image.NewUniform(layer.fill), image.Point{}, draw.Src)
	}

	return encodeImage(sheet, models.DefaultImageFormat)
}

// Close implements interfaces.RenderBackend.
func (b *SolidBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *SolidBackend) ensureOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("render backend is closed")
	}
	return nil
}

// asSolid asserts a handle came from this backend.
func asSolid(handle interfaces.LayerHandle) (*solidLayer, error) {
	layer, ok := handle.(*solidLayer)
	if !ok {
		return nil, fmt.Errorf("layer handle %T is not a solid layer", handle)
	}
	return layer, nil
}

// fixturePoint spreads synthetic features across the layer extent; a zero
// extent degenerates to its corner point.
func fixturePoint(bbox models.BBox, i int) (float64, float64) {
	f := (float64(i) + 0.5) / FixtureFeatureCount
	return bbox.XMin + bbox.Width()*f, bbox.YMin + bbox.Height()*f
}

// PointWKB encodes a 2D point as little-endian WKB.
func PointWKB(x, y float64) []byte {
	buf := make([]byte, 21)
	buf[0] = 1 // little endian
	binary.LittleEndian.PutUint32(buf[1:5], 1)
	binary.LittleEndian.PutUint64(buf[5:13], math.Float64bits(x))
	binary.LittleEndian.PutUint64(buf[13:21], math.Float64bits(y))
	return buf
}

// encodeImage serializes a canvas in the requested media type; empty
// means PNG.
func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "", models.DefaultImageFormat:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png encode: %w", err)
		}
	case "image/jpeg", "image/jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}
