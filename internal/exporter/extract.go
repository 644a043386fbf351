// -----------------------------------------------------------------------
// Extract - Flatten a QGIS project into a portable theme config
// -----------------------------------------------------------------------

package exporter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/atlas/pkg/models"
)

// Exporter flattens QGIS project files into theme configs.
type Exporter struct {
	logger arbor.ILogger
	unify  bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithUnifiedLayerNames qualifies layer names with their group path, so a
// layer "roads" under group "base" publishes as "base.roads".
func WithUnifiedLayerNames(unify bool) Option {
	return func(e *Exporter) {
		e.unify = unify
	}
}

// New builds an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		logger: arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads a .qgs or .qgz project file and flattens its layer tree,
// datasets and metadata into a ThemeConfig.
func (e *Exporter) Extract(projectPath string) (*models.ThemeConfig, error) {
	doc, err := readProject(projectPath)
	if err != nil {
		return nil, err
	}

	version, name := projectIdentity(projectPath, doc)
	config := &models.ThemeConfig{
		Project:  models.Project{Name: name, Version: version},
		MetaData: extractMetadata(doc),
	}
	if err := e.walkGroup(doc, &doc.LayerTree, nil, config); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("project", name).
		Str("version", version).
		Int("vector", len(config.Datasets.Vector)).
		Int("raster", len(config.Datasets.Raster)).
		Int("custom", len(config.Datasets.Custom)).
		Int("groups", len(config.Datasets.Group)).
		Msg("Project extracted")
	return config, nil
}

// walkGroup records a tree group and descends into its children in
// document order. The root group carries no short name and contributes a
// tree member only.
func (e *Exporter) walkGroup(doc *projectFile, group *layerTreeGroup, path []string, config *models.ThemeConfig) error {
	shortName := group.CustomProperties.lookup("wmsShortName")
	if shortName != "" {
		path = append(path[:len(path):len(path)], shortName)
	}

	children := make([]string, 0, len(group.Children))
	for _, node := range group.Children {
		if node.Group != nil {
			children = append(children, node.Group.CustomProperties.lookup("wmsShortName"))
			continue
		}
		children = append(children, e.layerShortName(doc, node.Layer, path))
	}
	config.Tree.Members = append(config.Tree.Members, models.TreeGroup{
		Name:     shortName,
		Children: children,
	})
	if shortName != "" {
		config.Datasets.Group = append(config.Datasets.Group, models.Group{
			Name:  shortName,
			Title: group.CustomProperties.lookup("wmsTitle"),
		})
	}

	for _, node := range group.Children {
		if node.Group != nil {
			if err := e.walkGroup(doc, node.Group, path, config); err != nil {
				return err
			}
			continue
		}
		if err := e.extractLayer(doc, node.Layer, path, config); err != nil {
			return err
		}
	}
	return nil
}

// layerShortName resolves the published name of a tree layer: the server
// short name when set, else the layer name, qualified by the group path
// when unified naming is on.
func (e *Exporter) layerShortName(doc *projectFile, treeLayer *layerTreeLayer, path []string) string {
	name := treeLayer.Name
	if layer, ok := doc.layerByID(treeLayer.ID); ok {
		switch {
		case layer.ShortName != "":
			name = layer.ShortName
		case layer.LayerName != "":
			name = layer.LayerName
		}
	}
	if e.unify {
		return strings.Join(append(path[:len(path):len(path)], name), ".")
	}
	return name
}

// extractLayer classifies one tree layer by its project entry and appends
// the typed dataset.
func (e *Exporter) extractLayer(doc *projectFile, treeLayer *layerTreeLayer, path []string, config *models.ThemeConfig) error {
	layer, ok := doc.layerByID(treeLayer.ID)
	if !ok {
		return fmt.Errorf("layer %q has no entry in projectlayers", treeLayer.ID)
	}
	name := e.layerShortName(doc, treeLayer, path)

	style, err := models.EncodeStyle(layer.styleDocument())
	if err != nil {
		return fmt.Errorf("encode style of layer %q: %w", name, err)
	}

	crs := models.Crs{
		PostgisSrid: layer.Srs.Srid,
		AuthID:      layer.Srs.AuthID,
		OgcURI:      ogcURI(layer.Srs.AuthID),
	}
	bbox := layer.Extent.bbox()
	bboxWgs84 := layer.Wgs84Extent.bbox()

	provider := strings.ToLower(layer.Provider)
	if provider == "" && layer.Type == "vector-tile" {
		provider = "xyzvectortiles"
	}

	switch layer.Type {
	case "vector":
		var source models.DataSource
		switch provider {
		case "ogr":
			source = models.DataSource{Ogr: decodeOgrSource(layer.Datasource)}
		case "postgres":
			pg, err := decodePostgresSource(layer.Datasource)
			if err != nil {
				return fmt.Errorf("layer %q: %w", name, err)
			}
			source = models.DataSource{Postgres: pg}
		case "wfs":
			source = models.DataSource{Wfs: &models.WfsSource{}}
		default:
			return fmt.Errorf("unknown vector provider %q on layer %q", provider, name)
		}
		fields := make([]models.Field, 0, len(layer.Fields.Fields))
		for _, f := range layer.Fields.Fields {
			fields = append(fields, models.Field{Name: f.Name, Type: f.Type})
		}
		config.Datasets.Vector = append(config.Datasets.Vector, models.Vector{
			Path:         normalizePath(layer.Datasource),
			Name:         name,
			Title:        layer.Title,
			Style:        style,
			Driver:       provider,
			BBoxWgs84:    bboxWgs84,
			Fields:       fields,
			Source:       source,
			ID:           layer.ID,
			Crs:          crs,
			BBox:         bbox,
			MinimumScale: layer.MinScale,
			MaximumScale: layer.MaxScale,
		})

	case "raster":
		var source models.DataSource
		switch provider {
		case "gdal":
			source = models.DataSource{Gdal: decodeGdalSource(layer.Datasource)}
		case "wms":
			source = decodeWmsSource(layer.Datasource)
		default:
			return fmt.Errorf("unknown raster provider %q on layer %q", provider, name)
		}
		config.Datasets.Raster = append(config.Datasets.Raster, models.Raster{
			Path:         normalizePath(layer.Datasource),
			Name:         name,
			Title:        layer.Title,
			Style:        style,
			Driver:       provider,
			BBoxWgs84:    bboxWgs84,
			Source:       source,
			ID:           layer.ID,
			Crs:          crs,
			BBox:         bbox,
			MinimumScale: layer.MinScale,
			MaximumScale: layer.MaxScale,
		})

	case "vector-tile":
		if provider != "xyzvectortiles" {
			return fmt.Errorf("unknown custom provider %q on layer %q", provider, name)
		}
		config.Datasets.Custom = append(config.Datasets.Custom, models.Custom{
			Path:         normalizePath(layer.Datasource),
			Name:         name,
			Title:        layer.Title,
			Style:        style,
			Driver:       provider,
			BBoxWgs84:    bboxWgs84,
			Source:       models.DataSource{VectorTile: decodeVectorTileSource(layer.Datasource)},
			ID:           layer.ID,
			Crs:          crs,
			BBox:         bbox,
			MinimumScale: layer.MinScale,
			MaximumScale: layer.MaxScale,
		})

	default:
		return fmt.Errorf("unknown layer type %q on layer %q", layer.Type, name)
	}

	e.logger.Debug().
		Str("layer", name).
		Str("family", layer.Type).
		Str("provider", provider).
		Msg("Layer extracted")
	return nil
}

// extractMetadata maps the project metadata and WMS server properties.
func extractMetadata(doc *projectFile) models.MetaData {
	links := make([]string, 0, len(doc.Metadata.Links))
	for _, link := range doc.Metadata.Links {
		switch {
		case link.URL != "":
			links = append(links, link.URL)
		case link.Name != "":
			links = append(links, link.Name)
		}
	}
	return models.MetaData{
		Service: models.Service{
			ContactOrganization: doc.Properties.lookup("WMSContactOrganization"),
			ContactMail:         doc.Properties.lookup("WMSContactMail"),
			ContactPerson:       doc.Properties.lookup("WMSContactPerson"),
			ContactPhone:        doc.Properties.lookup("WMSContactPhone"),
			ContactPosition:     doc.Properties.lookup("WMSContactPosition"),
			Fees:                doc.Properties.lookup("WMSFees"),
			KeywordList:         doc.Properties.lookup("WMSKeywordList"),
			OnlineResource:      doc.Properties.lookup("WMSOnlineResource"),
			ServiceAbstract:     doc.Properties.lookup("WMSServiceAbstract"),
			ServiceTitle:        doc.Properties.lookup("WMSServiceTitle"),
			ResourceURL:         doc.Properties.lookup("WMSUrl"),
		},
		Author:           doc.Metadata.Author,
		Categories:       doc.Metadata.categories(),
		CreationDateTime: doc.Metadata.Creation,
		Language:         doc.Metadata.Language,
		Links:            links,
	}
}

// projectIdentity derives {version, name} from the project file base name.
// The leading dot-segment is the version, the rest the name; a project
// named without dots falls back to the document title for the name.
func projectIdentity(projectPath string, doc *projectFile) (string, string) {
	base := filepath.Base(projectPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	version, name, _ := strings.Cut(base, ".")
	if name == "" {
		name = doc.Title
	}
	return version, name
}

// ogcURI renders an authority id such as "EPSG:2056" as its OGC CRS URI.
func ogcURI(authID string) string {
	authority, code, ok := strings.Cut(authID, ":")
	if !ok || authority == "" || code == "" {
		return ""
	}
	return fmt.Sprintf("http://www.opengis.net/def/crs/%s/0/%s", authority, code)
}

// normalizePath strips the project-relative prefix from datasource paths.
func normalizePath(p string) string {
	return strings.TrimPrefix(p, "./")
}

// bbox converts a parsed extent; z stays zero for planar extents.
func (e xmlExtent) bbox() models.BBox {
	return models.BBox{
		XMin: e.XMin,
		YMin: e.YMin,
		XMax: e.XMax,
		YMax: e.YMax,
	}
}
