// -----------------------------------------------------------------------
// Project File - QGIS project document model and readers
// -----------------------------------------------------------------------

package exporter

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// projectFile is the subset of a QGIS project document the exporter reads.
type projectFile struct {
	XMLName     xml.Name         `xml:"qgis"`
	ProjectName string           `xml:"projectname,attr"`
	Version     string           `xml:"version,attr"`
	Title       string           `xml:"title"`
	LayerTree   layerTreeGroup   `xml:"layer-tree-group"`
	Layers      []mapLayer       `xml:"projectlayers>maplayer"`
	Properties  serverProperties `xml:"properties"`
	Metadata    projectMetadata  `xml:"projectMetadata"`
}

// layerByID finds a project layer definition by its layer-tree id.
func (p *projectFile) layerByID(id string) (*mapLayer, bool) {
	for i := range p.Layers {
		if p.Layers[i].ID == id {
			return &p.Layers[i], true
		}
	}
	return nil, false
}

// treeNode is one layer-tree child; exactly one member is set.
type treeNode struct {
	Group *layerTreeGroup
	Layer *layerTreeLayer
}

// layerTreeGroup mirrors a layer-tree-group element. Children keeps groups
// and layers in document order, which fixes the published drawing order.
type layerTreeGroup struct {
	Name             string
	CustomProperties customProperties
	Children         []treeNode
}

func (g *layerTreeGroup) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "name" {
			g.Name = attr.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "customproperties":
				if err := d.DecodeElement(&g.CustomProperties, &t); err != nil {
					return err
				}
			case "layer-tree-group":
				child := &layerTreeGroup{}
				if err := d.DecodeElement(child, &t); err != nil {
					return err
				}
				g.Children = append(g.Children, treeNode{Group: child})
			case "layer-tree-layer":
				child := &layerTreeLayer{}
				if err := d.DecodeElement(child, &t); err != nil {
					return err
				}
				g.Children = append(g.Children, treeNode{Layer: child})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

// layerTreeLayer mirrors a layer-tree-layer element.
type layerTreeLayer struct {
	ID     string `xml:"id,attr"`
	Name   string `xml:"name,attr"`
	Source string `xml:"source,attr"`
}

// customProperties holds the Option map of a layer-tree node.
type customProperties struct {
	Options []optionEntry `xml:"Option>Option"`
}

type optionEntry struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// lookup returns the value of a named custom property, or "".
func (p customProperties) lookup(name string) string {
	for _, opt := range p.Options {
		if opt.Name == name {
			return opt.Value
		}
	}
	return ""
}

// mapLayer mirrors a projectlayers/maplayer element.
type mapLayer struct {
	Type        string             `xml:"type,attr"`
	MinScale    float64            `xml:"minScale,attr"`
	MaxScale    float64            `xml:"maxScale,attr"`
	ID          string             `xml:"id"`
	Datasource  string             `xml:"datasource"`
	ShortName   string             `xml:"shortname"`
	LayerName   string             `xml:"layername"`
	Title       string             `xml:"title"`
	Extent      xmlExtent          `xml:"extent"`
	Wgs84Extent xmlExtent          `xml:"wgs84extent"`
	Srs         spatialRefSys      `xml:"srs>spatialrefsys"`
	Provider    string             `xml:"provider"`
	Fields      fieldConfiguration `xml:"fieldConfiguration"`
	RendererV2  rawElement         `xml:"renderer-v2"`
	Labeling    rawElement         `xml:"labeling"`
	Pipe        rawElement         `xml:"pipe"`
}

// styleDocument assembles the captured style elements into one document.
// Vector layers carry renderer-v2 and labeling, raster layers a pipe.
func (l *mapLayer) styleDocument() []byte {
	var parts []string
	for _, raw := range []rawElement{l.RendererV2, l.Labeling, l.Pipe} {
		if raw.XML != "" {
			parts = append(parts, raw.XML)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return []byte("<qgis>" + strings.Join(parts, "") + "</qgis>")
}

// rawElement captures an element verbatim, tags and attributes included.
type rawElement struct {
	XML string
}

func (r *rawElement) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	r.XML = buf.String()
	return nil
}

type xmlExtent struct {
	XMin float64 `xml:"xmin"`
	YMin float64 `xml:"ymin"`
	XMax float64 `xml:"xmax"`
	YMax float64 `xml:"ymax"`
}

type spatialRefSys struct {
	Srid   int    `xml:"srid"`
	AuthID string `xml:"authid"`
}

// fieldConfiguration lists the attribute columns of a vector layer. The
// project file records names only; a type attribute is read when present.
type fieldConfiguration struct {
	Fields []fieldEntry `xml:"field"`
}

type fieldEntry struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

// serverProperties collects the flat entries of the properties element.
type serverProperties struct {
	Entries []propertyEntry `xml:",any"`
}

type propertyEntry struct {
	XMLName xml.Name
	Type    string   `xml:"type,attr"`
	Value   string   `xml:",chardata"`
	Values  []string `xml:"value"`
}

// text renders an entry as a single string; list entries join with ", ".
func (e propertyEntry) text() string {
	if len(e.Values) > 0 {
		return strings.Join(e.Values, ", ")
	}
	return strings.TrimSpace(e.Value)
}

// lookup returns the text of a named property entry, or "".
func (p serverProperties) lookup(name string) string {
	for _, entry := range p.Entries {
		if entry.XMLName.Local == name {
			return entry.text()
		}
	}
	return ""
}

// projectMetadata mirrors the projectMetadata element.
type projectMetadata struct {
	Language string         `xml:"language"`
	Title    string         `xml:"title"`
	Author   string         `xml:"author"`
	Creation string         `xml:"creation"`
	Keywords []keywordSet   `xml:"keywords"`
	Links    []metadataLink `xml:"links>link"`
}

type keywordSet struct {
	Vocabulary string   `xml:"vocabulary,attr"`
	Keywords   []string `xml:"keyword"`
}

type metadataLink struct {
	Name string `xml:"name,attr"`
	URL  string `xml:"url,attr"`
}

// categories returns the topic-category keywords of the project.
func (m projectMetadata) categories() []string {
	for _, set := range m.Keywords {
		if set.Vocabulary == "gmd:topicCategory" {
			return set.Keywords
		}
	}
	return nil
}

// readProject loads and parses a .qgs document, unpacking .qgz containers.
func readProject(path string) (*projectFile, error) {
	var data []byte
	var err error
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".qgz"):
		data, err = readZippedProject(path)
	case strings.HasSuffix(strings.ToLower(path), ".qgs"):
		data, err = os.ReadFile(path)
	default:
		return nil, fmt.Errorf("project file %s must end in .qgs or .qgz", path)
	}
	if err != nil {
		return nil, err
	}

	doc := &projectFile{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", path, err)
	}
	return doc, nil
}

// readZippedProject extracts the .qgs member of a .qgz archive.
func readZippedProject(path string) ([]byte, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open project archive %s: %w", path, err)
	}
	defer archive.Close()

	for _, member := range archive.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".qgs") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("archive %s holds no .qgs document", path)
}
