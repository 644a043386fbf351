// -----------------------------------------------------------------------
// Datasource Decoding - Provider URI strings into typed sources
// -----------------------------------------------------------------------

package exporter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/atlas/pkg/models"
)

// decodeOgrSource splits a pipe-separated file URI such as
// "data/roads.gpkg|layername=roads|layerid=0".
func decodeOgrSource(uri string) *models.OgrSource {
	parts := strings.Split(uri, "|")
	src := &models.OgrSource{Path: parts[0]}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "layername":
			src.LayerName = value
		case "layerid":
			src.LayerID = value
		}
	}
	return src
}

// decodeGdalSource splits a raster file URI; gdal uses the ogr pipe form.
func decodeGdalSource(uri string) *models.GdalSource {
	ogr := decodeOgrSource(uri)
	return &models.GdalSource{Path: ogr.Path, LayerName: ogr.LayerName}
}

// decodePostgresSource parses a QGIS postgres datasource string, a run of
// space-separated key=value pairs with optional quoting, e.g.
//
//	dbname='gis' host=localhost port=5432 key='id' srid=2056
//	type=MultiPolygon table="public"."roads" (geom) sql=
func decodePostgresSource(uri string) (*models.PostgresSource, error) {
	src := &models.PostgresSource{}
	rest := strings.TrimSpace(uri)
	for rest != "" {
		eq := strings.Index(rest, "=")
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		if key == "table" {
			var err error
			rest, err = scanPgTable(rest, src)
			if err != nil {
				return nil, err
			}
			rest = strings.TrimLeft(rest, " ")
			continue
		}

		var value string
		value, rest = scanPgValue(rest)
		rest = strings.TrimLeft(rest, " ")

		switch key {
		case "dbname":
			src.Dbname = value
		case "host":
			src.Host = value
		case "port":
			src.Port = value
		case "user":
			src.Username = value
		case "password":
			src.Password = value
		case "key":
			src.Key = value
		case "srid":
			src.Srid = value
		case "type":
			src.Type = value
		}
	}
	if src.Table == "" {
		return nil, fmt.Errorf("postgres datasource names no table: %s", uri)
	}
	return src, nil
}

// scanPgValue consumes one parameter value, stripping quotes and
// backslash escapes, and returns the remainder of the input.
func scanPgValue(s string) (string, string) {
	if s == "" {
		return "", ""
	}
	if s[0] == '\'' || s[0] == '"' {
		quote := s[0]
		var sb strings.Builder
		i := 1
		for i < len(s) {
			switch s[i] {
			case '\\':
				if i+1 < len(s) {
					sb.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
			case quote:
				return sb.String(), s[i+1:]
			default:
				sb.WriteByte(s[i])
				i++
			}
		}
		return sb.String(), ""
	}
	if sp := strings.IndexByte(s, ' '); sp >= 0 {
		return s[:sp], s[sp:]
	}
	return s, ""
}

// scanPgTable consumes the `"schema"."table" (geometry)` form following a
// table= key. The schema segment and the geometry suffix are optional.
func scanPgTable(s string, src *models.PostgresSource) (string, error) {
	first, rest := scanPgValue(s)
	if strings.HasPrefix(rest, ".") {
		second, after := scanPgValue(rest[1:])
		src.Schema = first
		src.Table = second
		rest = after
	} else {
		src.Table = first
	}
	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return "", fmt.Errorf("unterminated geometry column in table %q", s)
		}
		src.GeometryColumn = strings.TrimSpace(rest[1:end])
		rest = rest[end+1:]
	}
	return rest, nil
}

// paramString is a parsed &-separated parameter list as used by the wms,
// wmts and vector-tile providers.
type paramString map[string][]string

// parseParamString splits "key=value&flag&key=value" datasource strings.
// Values are percent-decoded; repeated keys accumulate.
func parseParamString(raw string) paramString {
	params := paramString{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		params[key] = append(params[key], value)
	}
	return params
}

// first returns the first value of a key, or "".
func (p paramString) first(key string) string {
	if values := p[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// joined returns all values of a key joined with commas.
func (p paramString) joined(key string) string {
	return strings.Join(p[key], ",")
}

// has reports whether a key appears at all, valueless keys included.
func (p paramString) has(key string) bool {
	_, ok := p[key]
	return ok
}

// decodeWmsSource parses a cascading WMS datasource. A tileMatrixSet
// parameter marks the tiled variant and yields a WMTS source instead.
func decodeWmsSource(uri string) models.DataSource {
	params := parseParamString(uri)
	if params.has("tileMatrixSet") {
		return models.DataSource{Wmts: &models.WmtsSource{
			ContextualWmsLegend: params.first("contextualWMSLegend"),
			Crs:                 params.first("crs"),
			DpiMode:             params.first("dpiMode"),
			FeatureCount:        params.first("featureCount"),
			Format:              params.first("format"),
			Layers:              params.joined("layers"),
			Styles:              params.joined("styles"),
			TileDimensions:      params.first("tileDimensions"),
			TileMatrixSet:       params.first("tileMatrixSet"),
			TilePixelRatio:      params.first("tilePixelRatio"),
			URL:                 params.first("url"),
		}}
	}
	return models.DataSource{Wms: &models.WmsSource{
		ContextualWmsLegend: params.first("contextualWMSLegend"),
		Crs:                 params.first("crs"),
		DpiMode:             params.first("dpiMode"),
		FeatureCount:        params.first("featureCount"),
		Format:              params.first("format"),
		Layers:              params.joined("layers"),
		URL:                 params.first("url"),
	}}
}

// decodeVectorTileSource parses an XYZ vector-tile datasource.
func decodeVectorTileSource(uri string) *models.VectorTileSource {
	params := parseParamString(uri)
	return &models.VectorTileSource{
		StyleURL: params.first("styleUrl"),
		URL:      params.first("url"),
		Zmin:     params.first("zmin"),
		Zmax:     params.first("zmax"),
		Type:     params.first("type"),
	}
}
