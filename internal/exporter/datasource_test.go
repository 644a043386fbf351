package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/atlas/pkg/models"
)

func TestDecodeOgrSource(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want models.OgrSource
	}{
		{
			name: "path with layer name and id",
			uri:  "./data/roads.gpkg|layername=roads|layerid=0",
			want: models.OgrSource{Path: "./data/roads.gpkg", LayerName: "roads", LayerID: "0"},
		},
		{
			name: "bare path",
			uri:  "data/parks.shp",
			want: models.OgrSource{Path: "data/parks.shp"},
		},
		{
			name: "unknown options are skipped",
			uri:  "data/roads.gpkg|subset|layername=roads",
			want: models.OgrSource{Path: "data/roads.gpkg", LayerName: "roads"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeOgrSource(tt.uri)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestDecodeGdalSource(t *testing.T) {
	got := decodeGdalSource("./data/dem.tif|layername=band1")
	assert.Equal(t, models.GdalSource{Path: "./data/dem.tif", LayerName: "band1"}, *got)
}

func TestDecodePostgresSource(t *testing.T) {
	uri := `dbname='gis' host=localhost port=5432 user='mapper' password='s\'ecret' ` +
		`sslmode=disable key='fid' srid=2056 type=MultiLineString checkPrimaryKeyUnicity='1' ` +
		`table="public"."roads" (geom) sql=`

	src, err := decodePostgresSource(uri)
	require.NoError(t, err)

	assert.Equal(t, "gis", src.Dbname)
	assert.Equal(t, "localhost", src.Host)
	assert.Equal(t, "5432", src.Port)
	assert.Equal(t, "mapper", src.Username)
	assert.Equal(t, "s'ecret", src.Password)
	assert.Equal(t, "fid", src.Key)
	assert.Equal(t, "2056", src.Srid)
	assert.Equal(t, "MultiLineString", src.Type)
	assert.Equal(t, "public", src.Schema)
	assert.Equal(t, "roads", src.Table)
	assert.Equal(t, "geom", src.GeometryColumn)
}

func TestDecodePostgresSource_TableForms(t *testing.T) {
	src, err := decodePostgresSource(`dbname='gis' table=roads`)
	require.NoError(t, err)
	assert.Equal(t, "roads", src.Table)
	assert.Empty(t, src.Schema)
	assert.Empty(t, src.GeometryColumn)

	src, err = decodePostgresSource(`table="data"."rivers"`)
	require.NoError(t, err)
	assert.Equal(t, "data", src.Schema)
	assert.Equal(t, "rivers", src.Table)
}

func TestDecodePostgresSource_Errors(t *testing.T) {
	_, err := decodePostgresSource(`dbname='gis' host=localhost`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names no table")

	_, err = decodePostgresSource(`table="public"."roads" (geom`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated geometry column")
}

func TestParseParamString(t *testing.T) {
	params := parseParamString("crs=EPSG:2056&layers=a&layers=b&format=image%2Fpng&IgnoreGetMapUrl=1&flag")

	assert.Equal(t, "EPSG:2056", params.first("crs"))
	assert.Equal(t, "a", params.first("layers"))
	assert.Equal(t, "a,b", params.joined("layers"))
	assert.Equal(t, "image/png", params.first("format"))
	assert.True(t, params.has("flag"))
	assert.False(t, params.has("absent"))
	assert.Empty(t, params.first("absent"))
}

func TestDecodeWmsSource(t *testing.T) {
	uri := "contextualWMSLegend=0&crs=EPSG:2056&dpiMode=7&featureCount=10&format=image/jpeg" +
		"&layers=landeskarte&styles=&url=https://wms.geo.example.org/ch"

	source := decodeWmsSource(uri)
	require.NotNil(t, source.Wms)
	assert.Nil(t, source.Wmts)

	wms := source.Wms
	assert.Equal(t, "0", wms.ContextualWmsLegend)
	assert.Equal(t, "EPSG:2056", wms.Crs)
	assert.Equal(t, "7", wms.DpiMode)
	assert.Equal(t, "10", wms.FeatureCount)
	assert.Equal(t, "image/jpeg", wms.Format)
	assert.Equal(t, "landeskarte", wms.Layers)
	assert.Equal(t, "https://wms.geo.example.org/ch", wms.URL)
}

func TestDecodeWmsSource_TiledVariant(t *testing.T) {
	uri := "crs=EPSG:3857&format=image/png&layers=relief&styles=default" +
		"&tileDimensions=256;256&tileMatrixSet=GoogleMapsCompatible&tilePixelRatio=2" +
		"&url=https://wmts.example.org/1.0.0/WMTSCapabilities.xml"

	source := decodeWmsSource(uri)
	require.NotNil(t, source.Wmts)
	assert.Nil(t, source.Wms)

	wmts := source.Wmts
	assert.Equal(t, "GoogleMapsCompatible", wmts.TileMatrixSet)
	assert.Equal(t, "256;256", wmts.TileDimensions)
	assert.Equal(t, "2", wmts.TilePixelRatio)
	assert.Equal(t, "relief", wmts.Layers)
	assert.Equal(t, "default", wmts.Styles)
	assert.Equal(t, "https://wmts.example.org/1.0.0/WMTSCapabilities.xml", wmts.URL)
}

func TestDecodeVectorTileSource(t *testing.T) {
	uri := "styleUrl=https://tiles.example.org/style.json&type=xyz" +
		"&url=https://tiles.example.org/{z}/{x}/{y}.pbf&zmax=14&zmin=0"

	src := decodeVectorTileSource(uri)
	assert.Equal(t, "https://tiles.example.org/style.json", src.StyleURL)
	assert.Equal(t, "https://tiles.example.org/{z}/{x}/{y}.pbf", src.URL)
	assert.Equal(t, "0", src.Zmin)
	assert.Equal(t, "14", src.Zmax)
	assert.Equal(t, "xyz", src.Type)
}
