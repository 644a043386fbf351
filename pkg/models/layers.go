package models

import "fmt"

// BBox is an axis-aligned extent. Z values are carried for completeness and
// stay zero for planar layers.
type BBox struct {
	XMin float64 `json:"x_min" yaml:"x_min" xml:"x_min"`
	YMin float64 `json:"y_min" yaml:"y_min" xml:"y_min"`
	ZMin float64 `json:"z_min,omitempty" yaml:"z_min,omitempty" xml:"z_min,omitempty"`
	XMax float64 `json:"x_max" yaml:"x_max" xml:"x_max"`
	YMax float64 `json:"y_max" yaml:"y_max" xml:"y_max"`
	ZMax float64 `json:"z_max,omitempty" yaml:"z_max,omitempty" xml:"z_max,omitempty"`
}

// BBoxFromList builds a BBox from the 6-value form
// [x_min, y_min, z_min, x_max, y_max, z_max].
func BBoxFromList(values []float64) (BBox, error) {
	if len(values) != 6 {
		return BBox{}, fmt.Errorf("bbox list needs 6 values, got %d", len(values))
	}
	return BBox{
		XMin: values[0],
		YMin: values[1],
		ZMin: values[2],
		XMax: values[3],
		YMax: values[4],
		ZMax: values[5],
	}, nil
}

// Width returns the horizontal span.
func (b BBox) Width() float64 { return b.XMax - b.XMin }

// Height returns the vertical span.
func (b BBox) Height() float64 { return b.YMax - b.YMin }

// Buffered returns the bbox grown by d on every side.
func (b BBox) Buffered(d float64) BBox {
	return BBox{
		XMin: b.XMin - d,
		YMin: b.YMin - d,
		ZMin: b.ZMin,
		XMax: b.XMax + d,
		YMax: b.YMax + d,
		ZMax: b.ZMax,
	}
}

// Crs identifies a coordinate reference system in the three notations the
// fabric needs downstream.
type Crs struct {
	PostgisSrid int    `json:"postgis_srid" yaml:"postgis_srid" xml:"postgis_srid"`
	AuthID      string `json:"auth_id" yaml:"auth_id" xml:"auth_id"`
	OgcURI      string `json:"ogc_uri" yaml:"ogc_uri" xml:"ogc_uri"`
}

// Field describes one attribute column of a vector dataset.
type Field struct {
	Name string `json:"name" yaml:"name" xml:"name"`
	Type string `json:"type" yaml:"type" xml:"type"`
}

// OgrSource points at a file-backed vector source.
type OgrSource struct {
	Path      string `json:"path" yaml:"path" xml:"path"`
	LayerName string `json:"layer_name,omitempty" yaml:"layer_name,omitempty" xml:"layer_name,omitempty"`
	LayerID   string `json:"layer_id,omitempty" yaml:"layer_id,omitempty" xml:"layer_id,omitempty"`
}

// PostgresSource carries the decoded connection parameters of a PostGIS
// table source.
type PostgresSource struct {
	Dbname         string `json:"dbname" yaml:"dbname" xml:"dbname"`
	GeometryColumn string `json:"geometry_column,omitempty" yaml:"geometry_column,omitempty" xml:"geometry_column,omitempty"`
	Host           string `json:"host,omitempty" yaml:"host,omitempty" xml:"host,omitempty"`
	Key            string `json:"key,omitempty" yaml:"key,omitempty" xml:"key,omitempty"`
	Password       string `json:"password,omitempty" yaml:"password,omitempty" xml:"password,omitempty"`
	Port           string `json:"port,omitempty" yaml:"port,omitempty" xml:"port,omitempty"`
	Schema         string `json:"schema,omitempty" yaml:"schema,omitempty" xml:"schema,omitempty"`
	Srid           string `json:"srid,omitempty" yaml:"srid,omitempty" xml:"srid,omitempty"`
	Table          string `json:"table" yaml:"table" xml:"table"`
	Type           string `json:"type,omitempty" yaml:"type,omitempty" xml:"type,omitempty"`
	Username       string `json:"username,omitempty" yaml:"username,omitempty" xml:"username,omitempty"`
}

// WfsSource is a placeholder for WFS-backed vector sources; the upstream
// decode does not expose connection details yet.
type WfsSource struct{}

// GdalSource points at a file-backed raster source.
type GdalSource struct {
	Path      string `json:"path" yaml:"path" xml:"path"`
	LayerName string `json:"layer_name,omitempty" yaml:"layer_name,omitempty" xml:"layer_name,omitempty"`
}

// WmsSource carries the decoded parameters of a cascading WMS raster source.
type WmsSource struct {
	ContextualWmsLegend string `json:"contextual_wms_legend,omitempty" yaml:"contextual_wms_legend,omitempty" xml:"contextual_wms_legend,omitempty"`
	Crs                 string `json:"crs,omitempty" yaml:"crs,omitempty" xml:"crs,omitempty"`
	DpiMode             string `json:"dpi_mode,omitempty" yaml:"dpi_mode,omitempty" xml:"dpi_mode,omitempty"`
	FeatureCount        string `json:"feature_count,omitempty" yaml:"feature_count,omitempty" xml:"feature_count,omitempty"`
	Format              string `json:"format,omitempty" yaml:"format,omitempty" xml:"format,omitempty"`
	Layers              string `json:"layers,omitempty" yaml:"layers,omitempty" xml:"layers,omitempty"`
	URL                 string `json:"url" yaml:"url" xml:"url"`
}

// WmtsSource extends the WMS parameters with tile-set details.
type WmtsSource struct {
	ContextualWmsLegend string `json:"contextual_wms_legend,omitempty" yaml:"contextual_wms_legend,omitempty" xml:"contextual_wms_legend,omitempty"`
	Crs                 string `json:"crs,omitempty" yaml:"crs,omitempty" xml:"crs,omitempty"`
	DpiMode             string `json:"dpi_mode,omitempty" yaml:"dpi_mode,omitempty" xml:"dpi_mode,omitempty"`
	FeatureCount        string `json:"feature_count,omitempty" yaml:"feature_count,omitempty" xml:"feature_count,omitempty"`
	Format              string `json:"format,omitempty" yaml:"format,omitempty" xml:"format,omitempty"`
	Layers              string `json:"layers,omitempty" yaml:"layers,omitempty" xml:"layers,omitempty"`
	Styles              string `json:"styles,omitempty" yaml:"styles,omitempty" xml:"styles,omitempty"`
	TileDimensions      string `json:"tile_dimensions,omitempty" yaml:"tile_dimensions,omitempty" xml:"tile_dimensions,omitempty"`
	TileMatrixSet       string `json:"tile_matrix_set" yaml:"tile_matrix_set" xml:"tile_matrix_set"`
	TilePixelRatio      string `json:"tile_pixel_ratio,omitempty" yaml:"tile_pixel_ratio,omitempty" xml:"tile_pixel_ratio,omitempty"`
	URL                 string `json:"url" yaml:"url" xml:"url"`
}

// VectorTileSource carries the decoded parameters of an XYZ vector-tile
// source.
type VectorTileSource struct {
	StyleURL string `json:"style_url,omitempty" yaml:"style_url,omitempty" xml:"style_url,omitempty"`
	URL      string `json:"url" yaml:"url" xml:"url"`
	Zmin     string `json:"zmin,omitempty" yaml:"zmin,omitempty" xml:"zmin,omitempty"`
	Zmax     string `json:"zmax,omitempty" yaml:"zmax,omitempty" xml:"zmax,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty" xml:"type,omitempty"`
}

// DataSource is a one-of over the supported provider families; exactly one
// member is set.
type DataSource struct {
	Ogr        *OgrSource        `json:"ogr,omitempty" yaml:"ogr,omitempty" xml:"ogr,omitempty"`
	Postgres   *PostgresSource   `json:"postgres,omitempty" yaml:"postgres,omitempty" xml:"postgres,omitempty"`
	Wfs        *WfsSource        `json:"wfs,omitempty" yaml:"wfs,omitempty" xml:"wfs,omitempty"`
	Gdal       *GdalSource       `json:"gdal,omitempty" yaml:"gdal,omitempty" xml:"gdal,omitempty"`
	Wms        *WmsSource        `json:"wms,omitempty" yaml:"wms,omitempty" xml:"wms,omitempty"`
	Wmts       *WmtsSource       `json:"wmts,omitempty" yaml:"wmts,omitempty" xml:"wmts,omitempty"`
	VectorTile *VectorTileSource `json:"vector_tile,omitempty" yaml:"vector_tile,omitempty" xml:"vector_tile,omitempty"`
}

// Vector is a vector dataset description. Style is the urlsafe-base64
// encoded style document of the layer.
type Vector struct {
	Path         string     `json:"path" yaml:"path" xml:"path"`
	Name         string     `json:"name" yaml:"name" xml:"name" validate:"required"`
	Title        string     `json:"title,omitempty" yaml:"title,omitempty" xml:"title,omitempty"`
	Style        string     `json:"style,omitempty" yaml:"style,omitempty" xml:"style,omitempty"`
	Driver       string     `json:"driver" yaml:"driver" xml:"driver"`
	BBoxWgs84    BBox       `json:"bbox_wgs84" yaml:"bbox_wgs84" xml:"bbox_wgs84"`
	Fields       []Field    `json:"fields" yaml:"fields" xml:"fields>field"`
	Source       DataSource `json:"source" yaml:"source" xml:"source"`
	ID           string     `json:"id" yaml:"id" xml:"id"`
	Crs          Crs        `json:"crs" yaml:"crs" xml:"crs"`
	BBox         BBox       `json:"bbox" yaml:"bbox" xml:"bbox"`
	MinimumScale float64    `json:"minimum_scale,omitempty" yaml:"minimum_scale,omitempty" xml:"minimum_scale,omitempty"`
	MaximumScale float64    `json:"maximum_scale,omitempty" yaml:"maximum_scale,omitempty" xml:"maximum_scale,omitempty"`
}

// Raster is a raster dataset description.
type Raster struct {
	Path         string     `json:"path" yaml:"path" xml:"path"`
	Name         string     `json:"name" yaml:"name" xml:"name" validate:"required"`
	Title        string     `json:"title,omitempty" yaml:"title,omitempty" xml:"title,omitempty"`
	Style        string     `json:"style,omitempty" yaml:"style,omitempty" xml:"style,omitempty"`
	Driver       string     `json:"driver" yaml:"driver" xml:"driver"`
	BBoxWgs84    BBox       `json:"bbox_wgs84" yaml:"bbox_wgs84" xml:"bbox_wgs84"`
	Source       DataSource `json:"source" yaml:"source" xml:"source"`
	ID           string     `json:"id" yaml:"id" xml:"id"`
	Crs          Crs        `json:"crs" yaml:"crs" xml:"crs"`
	BBox         BBox       `json:"bbox" yaml:"bbox" xml:"bbox"`
	MinimumScale float64    `json:"minimum_scale,omitempty" yaml:"minimum_scale,omitempty" xml:"minimum_scale,omitempty"`
	MaximumScale float64    `json:"maximum_scale,omitempty" yaml:"maximum_scale,omitempty" xml:"maximum_scale,omitempty"`
}

// Custom is a dataset outside the vector/raster families (vector tiles).
type Custom struct {
	Path         string     `json:"path" yaml:"path" xml:"path"`
	Name         string     `json:"name" yaml:"name" xml:"name" validate:"required"`
	Title        string     `json:"title,omitempty" yaml:"title,omitempty" xml:"title,omitempty"`
	Style        string     `json:"style,omitempty" yaml:"style,omitempty" xml:"style,omitempty"`
	Driver       string     `json:"driver" yaml:"driver" xml:"driver"`
	BBoxWgs84    BBox       `json:"bbox_wgs84" yaml:"bbox_wgs84" xml:"bbox_wgs84"`
	Source       DataSource `json:"source" yaml:"source" xml:"source"`
	ID           string     `json:"id" yaml:"id" xml:"id"`
	Crs          Crs        `json:"crs" yaml:"crs" xml:"crs"`
	BBox         BBox       `json:"bbox" yaml:"bbox" xml:"bbox"`
	MinimumScale float64    `json:"minimum_scale,omitempty" yaml:"minimum_scale,omitempty" xml:"minimum_scale,omitempty"`
	MaximumScale float64    `json:"maximum_scale,omitempty" yaml:"maximum_scale,omitempty" xml:"maximum_scale,omitempty"`
}

// Group is a named layer group as published by the project.
type Group struct {
	Name  string `json:"name" yaml:"name" xml:"name"`
	Title string `json:"title,omitempty" yaml:"title,omitempty" xml:"title,omitempty"`
}
