package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultImageFormat is assumed when a map request names no format.
const DefaultImageFormat = "image/png"

// WmsMapParams carries the WMS-style parameters of a GetMap request.
// Layers and Styles are comma-separated and positional: the n-th style
// applies to the n-th layer.
type WmsMapParams struct {
	BBox          string `json:"bbox"`
	Crs           string `json:"crs"`
	Width         string `json:"width"`
	Height        string `json:"height"`
	Dpi           string `json:"dpi,omitempty"`
	FormatOptions string `json:"format_options,omitempty"`
	Layers        string `json:"layers"`
	Styles        string `json:"styles"`
	Format        string `json:"format,omitempty"`
}

// LayerNames returns the requested layer names in order.
func (p *WmsMapParams) LayerNames() []string {
	return splitList(p.Layers)
}

// StyleNames returns the requested style names in order.
func (p *WmsMapParams) StyleNames() []string {
	return splitList(p.Styles)
}

// ImageFormat returns the requested media type, defaulting to image/png.
func (p *WmsMapParams) ImageFormat() string {
	if p.Format == "" {
		return DefaultImageFormat
	}
	return p.Format
}

// EffectiveDpi resolves the render DPI: the explicit dpi field wins, then
// the trailing integer of format_options ("...dpi:96"), then fallback.
func (p *WmsMapParams) EffectiveDpi(fallback int) int {
	if p.Dpi != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(p.Dpi)); err == nil {
			return v
		}
	}
	if p.FormatOptions != "" {
		parts := strings.Split(p.FormatOptions, ":")
		if v, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			return v
		}
	}
	return fallback
}

// BBoxValues parses the 4-value "x_min,y_min,x_max,y_max" form.
func (p *WmsMapParams) BBoxValues() (BBox, error) {
	return parseBBox(p.BBox)
}

// SizePx parses width and height as pixel counts.
func (p *WmsMapParams) SizePx() (int, int, error) {
	w, err := strconv.Atoi(strings.TrimSpace(p.Width))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: width %q is not an integer", ErrMalformedEnvelope, p.Width)
	}
	h, err := strconv.Atoi(strings.TrimSpace(p.Height))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: height %q is not an integer", ErrMalformedEnvelope, p.Height)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: image size %dx%d", ErrMalformedEnvelope, w, h)
	}
	return w, h, nil
}

// Validate enforces the decode-time rules: the spatial fields are required,
// layers must name at least one layer, and styles are mandatory and
// positional.
func (p *WmsMapParams) Validate() error {
	if err := requireFields(
		"service_params.bbox", p.BBox,
		"service_params.crs", p.Crs,
		"service_params.width", p.Width,
		"service_params.height", p.Height,
	); err != nil {
		return err
	}
	layers := p.LayerNames()
	if len(layers) == 0 {
		return fmt.Errorf("%w: service_params.layers", ErrMissingRequiredField)
	}
	styles := p.StyleNames()
	if len(styles) == 0 {
		return fmt.Errorf("%w: service_params.styles (one style per layer)", ErrMissingRequiredField)
	}
	if len(styles) != len(layers) {
		return fmt.Errorf("%w: %d styles for %d layers (styles are positional)",
			ErrMalformedEnvelope, len(styles), len(layers))
	}
	return nil
}

// WmsFeatureInfoParams carries the parameters of a GetFeatureInfo request.
// Pixel coordinates are accepted under either naming convention: i/j (WMS
// 1.3) or x/y (WMS 1.1).
type WmsFeatureInfoParams struct {
	BBox          string `json:"bbox"`
	Crs           string `json:"crs"`
	Width         string `json:"width"`
	Height        string `json:"height"`
	Dpi           string `json:"dpi,omitempty"`
	FormatOptions string `json:"format_options,omitempty"`
	X             string `json:"x,omitempty"`
	Y             string `json:"y,omitempty"`
	I             string `json:"i,omitempty"`
	J             string `json:"j,omitempty"`
	InfoFormat    string `json:"info_format"`
	QueryLayers   string `json:"query_layers"`
}

// PixelX resolves the horizontal pixel coordinate, preferring i over x.
func (p *WmsFeatureInfoParams) PixelX() (int, error) {
	return parsePixel("i/x", p.I, p.X)
}

// PixelY resolves the vertical pixel coordinate, preferring j over y.
func (p *WmsFeatureInfoParams) PixelY() (int, error) {
	return parsePixel("j/y", p.J, p.Y)
}

// QueryLayerNames returns the layer names to identify against, in order.
func (p *WmsFeatureInfoParams) QueryLayerNames() []string {
	return splitList(p.QueryLayers)
}

// EffectiveDpi resolves the render DPI the same way map requests do.
func (p *WmsFeatureInfoParams) EffectiveDpi(fallback int) int {
	m := WmsMapParams{Dpi: p.Dpi, FormatOptions: p.FormatOptions}
	return m.EffectiveDpi(fallback)
}

// BBoxValues parses the 4-value "x_min,y_min,x_max,y_max" form.
func (p *WmsFeatureInfoParams) BBoxValues() (BBox, error) {
	return parseBBox(p.BBox)
}

// SizePx parses width and height as pixel counts.
func (p *WmsFeatureInfoParams) SizePx() (int, int, error) {
	m := WmsMapParams{Width: p.Width, Height: p.Height}
	return m.SizePx()
}

// Validate enforces the decode-time rules: spatial fields, a pixel
// coordinate pair under at least one naming convention, and query layers.
func (p *WmsFeatureInfoParams) Validate() error {
	if err := requireFields(
		"service_params.bbox", p.BBox,
		"service_params.crs", p.Crs,
		"service_params.width", p.Width,
		"service_params.height", p.Height,
	); err != nil {
		return err
	}
	if _, err := p.PixelX(); err != nil {
		return err
	}
	if _, err := p.PixelY(); err != nil {
		return err
	}
	if len(p.QueryLayerNames()) == 0 {
		return fmt.Errorf("%w: service_params.query_layers", ErrMissingRequiredField)
	}
	return nil
}

func parsePixel(name, preferred, alternate string) (int, error) {
	raw := preferred
	if raw == "" {
		raw = alternate
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: service_params.%s pixel coordinate", ErrMissingRequiredField, name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: pixel coordinate %q is not an integer", ErrMalformedEnvelope, raw)
	}
	return v, nil
}

func parseBBox(raw string) (BBox, error) {
	parts := splitList(raw)
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("%w: bbox %q needs 4 comma-separated values", ErrMalformedEnvelope, raw)
	}
	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w: bbox value %q is not a number", ErrMalformedEnvelope, part)
		}
		values[i] = v
	}
	return BBox{XMin: values[0], YMin: values[1], XMax: values[2], YMax: values[3]}, nil
}

// requireFields takes alternating name, value pairs and reports the first
// empty value in declaration order.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequiredField, pairs[i])
		}
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}
