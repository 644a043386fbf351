package models

import "encoding/json"

// Content types of the structured result documents.
const (
	ContentTypeGeoJSON         = "application/json"
	ContentTypeQueryCollection = "application/vnd.atlas.query-collection+json"
)

// GeoJSONFeature is one identified feature in a GetFeatureInfo response.
// Geometry is deliberately omitted; identification reports attribute
// values only.
type GeoJSONFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// NewGeoJSONFeature returns a feature with the fixed GeoJSON type tag.
func NewGeoJSONFeature(properties map[string]any) GeoJSONFeature {
	if properties == nil {
		properties = map[string]any{}
	}
	return GeoJSONFeature{Type: "Feature", Properties: properties}
}

// GeoJSONFeatureCollection is the GetFeatureInfo response document.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// NewGeoJSONFeatureCollection wraps features in a collection document.
// A nil slice marshals as an empty feature list, never null.
func NewGeoJSONFeatureCollection(features []GeoJSONFeature) *GeoJSONFeatureCollection {
	if features == nil {
		features = []GeoJSONFeature{}
	}
	return &GeoJSONFeatureCollection{Type: "FeatureCollection", Features: features}
}

// Encode marshals the collection to its wire JSON.
func (c *GeoJSONFeatureCollection) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Attribute is one named value of a queried feature. Geometry attributes
// carry WKB bytes, which marshal as base64.
type Attribute struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// GeometryAttribute wraps WKB geometry bytes in the fixed attribute name.
func GeometryAttribute(wkb []byte) Attribute {
	return Attribute{Name: "geometry", Value: wkb}
}

// QueryFeature is one feature in a GetFeature response: its geometry plus
// the remaining attributes in layer field order.
type QueryFeature struct {
	Geometry   Attribute   `json:"geometry"`
	Attributes []Attribute `json:"attributes"`
}

// FeatureSet groups the features matched in one queried layer. Layer
// carries the dataset name, or its positional alias when one was given.
type FeatureSet struct {
	Layer    string         `json:"layer"`
	Features []QueryFeature `json:"features"`
}

// QueryCollection is the GetFeature response document. NumbersMatched is
// the total match count across all layers before paging, omitted when
// zero.
type QueryCollection struct {
	FeatureCollections []FeatureSet `json:"feature_collections"`
	NumbersMatched     *int         `json:"numbers_matched,omitempty"`
}

// NewQueryCollection builds the response document. A nil set slice
// marshals as an empty list; matched is attached only when positive.
func NewQueryCollection(sets []FeatureSet, matched int) *QueryCollection {
	if sets == nil {
		sets = []FeatureSet{}
	}
	qc := &QueryCollection{FeatureCollections: sets}
	if matched > 0 {
		qc.NumbersMatched = &matched
	}
	return qc
}

// Encode marshals the collection to its wire JSON.
func (c *QueryCollection) Encode() ([]byte, error) {
	return json.Marshal(c)
}
