package exporter

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/atlas/pkg/models"
)

// cityProject covers the layer families the exporter understands: a
// top-level ogr vector, a gdal raster and cascading wms raster inside a
// group, and a vector-tile layer.
const cityProject = `<!DOCTYPE qgis PUBLIC 'http://mrcc.com/qgis.dtd' 'SYSTEM'>
<qgis projectname="" version="3.28.5-Firenze">
  <title>City Map</title>
  <layer-tree-group>
    <customproperties>
      <Option/>
    </customproperties>
    <layer-tree-layer id="roads_a1b2" name="Roads" source="./data/roads.gpkg|layername=roads" checked="Qt::Checked"/>
    <layer-tree-group name="Base" expanded="1">
      <customproperties>
        <Option type="Map">
          <Option type="QString" name="wmsShortName" value="base"/>
          <Option type="QString" name="wmsTitle" value="Base layers"/>
        </Option>
      </customproperties>
      <layer-tree-layer id="relief_c3d4" name="Relief"/>
      <layer-tree-layer id="basemap_e5f6" name="Basemap"/>
    </layer-tree-group>
    <layer-tree-layer id="vtiles_g7h8" name="vtiles"/>
  </layer-tree-group>
  <projectlayers>
    <maplayer type="vector" minScale="100000" maxScale="100" geometry="Line">
      <id>roads_a1b2</id>
      <datasource>./data/roads.gpkg|layername=roads</datasource>
      <shortname>roads</shortname>
      <layername>Roads</layername>
      <title>Road network</title>
      <extent>
        <xmin>2600000</xmin>
        <ymin>1180000</ymin>
        <xmax>2610000</xmax>
        <ymax>1190000</ymax>
      </extent>
      <wgs84extent>
        <xmin>7.3</xmin>
        <ymin>46.9</ymin>
        <xmax>7.5</xmax>
        <ymax>47.1</ymax>
      </wgs84extent>
      <srs>
        <spatialrefsys>
          <authid>EPSG:2056</authid>
          <srid>2056</srid>
        </spatialrefsys>
      </srs>
      <provider encoding="UTF-8">ogr</provider>
      <fieldConfiguration>
        <field name="name" configurationFlags="NoFlag">
          <editWidget type="TextEdit"/>
        </field>
        <field name="surface" configurationFlags="NoFlag"/>
      </fieldConfiguration>
      <renderer-v2 type="singleSymbol" enableorderby="0">
        <symbols>
          <symbol name="0" type="line" alpha="1"/>
        </symbols>
      </renderer-v2>
      <labeling type="simple">
        <settings calloutType="simple"/>
      </labeling>
    </maplayer>
    <maplayer type="raster">
      <id>relief_c3d4</id>
      <datasource>./data/dem.tif</datasource>
      <shortname>relief</shortname>
      <layername>Relief</layername>
      <title>Hillshade relief</title>
      <srs>
        <spatialrefsys>
          <authid>EPSG:2056</authid>
          <srid>2056</srid>
        </spatialrefsys>
      </srs>
      <provider>gdal</provider>
      <pipe>
        <rasterrenderer type="hillshade" band="1" zfactor="1"/>
      </pipe>
    </maplayer>
    <maplayer type="raster">
      <id>basemap_e5f6</id>
      <datasource>contextualWMSLegend=0&amp;crs=EPSG:2056&amp;dpiMode=7&amp;featureCount=10&amp;format=image/jpeg&amp;layers=landeskarte&amp;styles=&amp;url=https://wms.geo.example.org/ch</datasource>
      <shortname>basemap</shortname>
      <layername>Basemap</layername>
      <srs>
        <spatialrefsys>
          <authid>EPSG:2056</authid>
          <srid>2056</srid>
        </spatialrefsys>
      </srs>
      <provider>wms</provider>
    </maplayer>
    <maplayer type="vector-tile">
      <id>vtiles_g7h8</id>
      <datasource>styleUrl=https://tiles.example.org/style.json&amp;type=xyz&amp;url=https://tiles.example.org/{z}/{x}/{y}.pbf&amp;zmax=14&amp;zmin=0</datasource>
      <layername>vtiles</layername>
    </maplayer>
  </projectlayers>
  <properties>
    <Measurement>
      <AreaUnits type="QString">m2</AreaUnits>
    </Measurement>
    <WMSContactMail type="QString">gis@example.org</WMSContactMail>
    <WMSContactOrganization type="QString">City GIS Office</WMSContactOrganization>
    <WMSContactPerson type="QString">A. Surveyor</WMSContactPerson>
    <WMSKeywordList type="QStringList">
      <value>roads</value>
      <value>city</value>
    </WMSKeywordList>
    <WMSServiceTitle type="QString">City WMS</WMSServiceTitle>
    <WMSUrl type="QString">https://maps.example.org/wms</WMSUrl>
  </properties>
  <projectMetadata>
    <identifier></identifier>
    <language>en</language>
    <type>dataset</type>
    <title>City Map</title>
    <keywords vocabulary="gmd:topicCategory">
      <keyword>transportation</keyword>
    </keywords>
    <keywords vocabulary="user">
      <keyword>demo</keyword>
    </keywords>
    <links>
      <link url="https://example.org/about" name="About" type="WWW:LINK"/>
      <link url="" name="City data portal" type="WWW:LINK"/>
    </links>
    <author>City GIS Office</author>
    <creation>2024-03-01T09:00:00</creation>
  </projectMetadata>
</qgis>
`

func writeProject(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeArchive(t *testing.T, name, member, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(member)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func decodedStyle(t *testing.T, encoded string) string {
	t.Helper()
	doc, err := models.DecodeStyle(encoded)
	require.NoError(t, err)
	return string(doc)
}

func TestExporter_Extract(t *testing.T) {
	config, err := New().Extract(writeProject(t, "1.city.qgs", cityProject))
	require.NoError(t, err)

	assert.Equal(t, "city", config.Project.Name)
	assert.Equal(t, "1", config.Project.Version)
	require.NoError(t, config.Validate())

	require.Len(t, config.Tree.Members, 2)
	assert.Equal(t, models.TreeGroup{
		Name:     "",
		Children: []string{"roads", "base", "vtiles"},
	}, config.Tree.Members[0])
	assert.Equal(t, models.TreeGroup{
		Name:     "base",
		Children: []string{"relief", "basemap"},
	}, config.Tree.Members[1])
	assert.Equal(t, []models.Group{{Name: "base", Title: "Base layers"}}, config.Datasets.Group)

	require.Len(t, config.Datasets.Vector, 1)
	roads := config.Datasets.Vector[0]
	assert.Equal(t, "roads", roads.Name)
	assert.Equal(t, "Road network", roads.Title)
	assert.Equal(t, "ogr", roads.Driver)
	assert.Equal(t, "roads_a1b2", roads.ID)
	assert.Equal(t, "data/roads.gpkg|layername=roads", roads.Path)
	require.NotNil(t, roads.Source.Ogr)
	assert.Equal(t, models.OgrSource{Path: "./data/roads.gpkg", LayerName: "roads"}, *roads.Source.Ogr)
	assert.Equal(t, []models.Field{{Name: "name"}, {Name: "surface"}}, roads.Fields)
	assert.Equal(t, models.Crs{
		PostgisSrid: 2056,
		AuthID:      "EPSG:2056",
		OgcURI:      "http://www.opengis.net/def/crs/EPSG/0/2056",
	}, roads.Crs)
	assert.Equal(t, models.BBox{XMin: 2600000, YMin: 1180000, XMax: 2610000, YMax: 1190000}, roads.BBox)
	assert.Equal(t, models.BBox{XMin: 7.3, YMin: 46.9, XMax: 7.5, YMax: 47.1}, roads.BBoxWgs84)
	assert.Equal(t, float64(100000), roads.MinimumScale)
	assert.Equal(t, float64(100), roads.MaximumScale)

	roadsStyle := decodedStyle(t, roads.Style)
	assert.True(t, strings.HasPrefix(roadsStyle, "<qgis>"))
	assert.Contains(t, roadsStyle, "<renderer-v2")
	assert.Contains(t, roadsStyle, "<labeling")

	require.Len(t, config.Datasets.Raster, 2)
	relief := config.Datasets.Raster[0]
	assert.Equal(t, "relief", relief.Name)
	assert.Equal(t, "gdal", relief.Driver)
	require.NotNil(t, relief.Source.Gdal)
	assert.Equal(t, "./data/dem.tif", relief.Source.Gdal.Path)
	assert.Contains(t, decodedStyle(t, relief.Style), "<rasterrenderer")

	basemap := config.Datasets.Raster[1]
	assert.Equal(t, "basemap", basemap.Name)
	assert.Equal(t, "wms", basemap.Driver)
	assert.Empty(t, basemap.Style)
	require.NotNil(t, basemap.Source.Wms)
	assert.Equal(t, "landeskarte", basemap.Source.Wms.Layers)
	assert.Equal(t, "image/jpeg", basemap.Source.Wms.Format)
	assert.Equal(t, "https://wms.geo.example.org/ch", basemap.Source.Wms.URL)

	require.Len(t, config.Datasets.Custom, 1)
	vtiles := config.Datasets.Custom[0]
	assert.Equal(t, "vtiles", vtiles.Name)
	assert.Equal(t, "xyzvectortiles", vtiles.Driver)
	require.NotNil(t, vtiles.Source.VectorTile)
	assert.Equal(t, models.VectorTileSource{
		StyleURL: "https://tiles.example.org/style.json",
		URL:      "https://tiles.example.org/{z}/{x}/{y}.pbf",
		Zmin:     "0",
		Zmax:     "14",
		Type:     "xyz",
	}, *vtiles.Source.VectorTile)

	meta := config.MetaData
	assert.Equal(t, "City WMS", meta.Service.ServiceTitle)
	assert.Equal(t, "City GIS Office", meta.Service.ContactOrganization)
	assert.Equal(t, "gis@example.org", meta.Service.ContactMail)
	assert.Equal(t, "A. Surveyor", meta.Service.ContactPerson)
	assert.Equal(t, "roads, city", meta.Service.KeywordList)
	assert.Equal(t, "https://maps.example.org/wms", meta.Service.ResourceURL)
	assert.Equal(t, "City GIS Office", meta.Author)
	assert.Equal(t, "2024-03-01T09:00:00", meta.CreationDateTime)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, []string{"transportation"}, meta.Categories)
	assert.Equal(t, []string{"https://example.org/about", "City data portal"}, meta.Links)
}

func TestExporter_ExtractUnifiedNames(t *testing.T) {
	path := writeProject(t, "1.city.qgs", cityProject)
	config, err := New(WithUnifiedLayerNames(true)).Extract(path)
	require.NoError(t, err)

	require.Len(t, config.Datasets.Vector, 1)
	assert.Equal(t, "roads", config.Datasets.Vector[0].Name)
	require.Len(t, config.Datasets.Raster, 2)
	assert.Equal(t, "base.relief", config.Datasets.Raster[0].Name)
	assert.Equal(t, "base.basemap", config.Datasets.Raster[1].Name)
	require.Len(t, config.Datasets.Custom, 1)
	assert.Equal(t, "vtiles", config.Datasets.Custom[0].Name)

	require.Len(t, config.Tree.Members, 2)
	assert.Equal(t, []string{"roads", "base", "vtiles"}, config.Tree.Members[0].Children)
	assert.Equal(t, []string{"base.relief", "base.basemap"}, config.Tree.Members[1].Children)

	// Group names stay unqualified; only layers pick up the path prefix.
	assert.Equal(t, []models.Group{{Name: "base", Title: "Base layers"}}, config.Datasets.Group)
}

func TestExporter_ExtractArchived(t *testing.T) {
	path := writeArchive(t, "1.city.qgz", "project.qgs", cityProject)
	config, err := New().Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "city", config.Project.Name)
	assert.Equal(t, "1", config.Project.Version)
	assert.Len(t, config.Datasets.Vector, 1)
	assert.Len(t, config.Datasets.Raster, 2)
}

func TestExporter_ExtractTitleFallback(t *testing.T) {
	config, err := New().Extract(writeProject(t, "city.qgs", cityProject))
	require.NoError(t, err)

	assert.Equal(t, "city", config.Project.Version)
	assert.Equal(t, "City Map", config.Project.Name)
}

func miniProject(layerType, provider, datasource string) string {
	return fmt.Sprintf(`<qgis version="3.28">
  <title>Mini</title>
  <layer-tree-group>
    <layer-tree-layer id="lyr_1" name="One"/>
  </layer-tree-group>
  <projectlayers>
    <maplayer type=%q>
      <id>lyr_1</id>
      <datasource>%s</datasource>
      <layername>one</layername>
      <provider>%s</provider>
    </maplayer>
  </projectlayers>
</qgis>`, layerType, datasource, provider)
}

func TestExporter_ExtractErrors(t *testing.T) {
	orphanTree := `<qgis version="3.28">
  <title>Mini</title>
  <layer-tree-group>
    <layer-tree-layer id="ghost" name="Ghost"/>
  </layer-tree-group>
  <projectlayers/>
</qgis>`

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "tree layer without project entry",
			content: orphanTree,
			wantErr: "has no entry in projectlayers",
		},
		{
			name:    "unknown vector provider",
			content: miniProject("vector", "oracle", "data/one.db"),
			wantErr: `unknown vector provider "oracle"`,
		},
		{
			name:    "unknown raster provider",
			content: miniProject("raster", "grass", "data/one.tif"),
			wantErr: `unknown raster provider "grass"`,
		},
		{
			name:    "unknown layer type",
			content: miniProject("mesh", "mdal", "data/one.nc"),
			wantErr: `unknown layer type "mesh"`,
		},
		{
			name:    "postgres datasource without table",
			content: miniProject("vector", "postgres", "dbname='gis' host=localhost"),
			wantErr: "names no table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(writeProject(t, "1.mini.qgs", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExporter_ExtractRejectsUnknownExtension(t *testing.T) {
	_, err := New().Extract(filepath.Join(t.TempDir(), "project.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must end in .qgs or .qgz")
}

func TestExporter_ExtractArchiveWithoutProject(t *testing.T) {
	path := writeArchive(t, "empty.qgz", "metadata.json", "{}")
	_, err := New().Extract(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds no .qgs document")
}

func TestOgcURI(t *testing.T) {
	assert.Equal(t, "http://www.opengis.net/def/crs/EPSG/0/4326", ogcURI("EPSG:4326"))
	assert.Empty(t, ogcURI("EPSG"))
	assert.Empty(t, ogcURI(":4326"))
	assert.Empty(t, ogcURI(""))
}
