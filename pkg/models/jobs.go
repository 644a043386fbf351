package models

import "fmt"

// JobKind is the canonical discriminator of the closed job variant set.
type JobKind string

const (
	KindGetMap         JobKind = "GetMap"
	KindGetFeatureInfo JobKind = "GetFeatureInfo"
	KindGetFeature     JobKind = "GetFeature"
	KindLegend         JobKind = "Legend"
)

// JobKinds returns the closed variant set in routing order.
func JobKinds() []JobKind {
	return []JobKind{KindGetMap, KindGetFeatureInfo, KindGetFeature, KindLegend}
}

// Valid reports whether k names a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case KindGetMap, KindGetFeatureInfo, KindGetFeature, KindLegend:
		return true
	}
	return false
}

// Job is the closed union of submittable payloads.
type Job interface {
	Kind() JobKind
	Validate() error
}

// DatasetRef is the flattened view of one dataset resolved from a job's
// inline layer definitions, regardless of family.
type DatasetRef struct {
	Family string // "vector", "raster" or "custom"
	Name   string
	Title  string
	Style  string
	Driver string
	ID     string
	Crs    Crs
	BBox   BBox

	Vector *Vector
	Raster *Raster
	Custom *Custom
}

// GetMapJob renders the referenced layers into one image.
type GetMapJob struct {
	SvgPaths      []string     `json:"svg_paths"`
	ServiceParams WmsMapParams `json:"service_params"`
	RasterLayers  []Raster     `json:"raster_layers"`
	VectorLayers  []Vector     `json:"vector_layers"`
	CustomLayers  []Custom     `json:"custom_layers"`
	ExtentBuffer  float64      `json:"extent_buffer,omitempty"`
}

func (j *GetMapJob) Kind() JobKind { return KindGetMap }

func (j *GetMapJob) Validate() error {
	return j.ServiceParams.Validate()
}

// DatasetByName resolves a requested layer name against the inline dataset
// definitions, searching rasters, vectors, then customs.
func (j *GetMapJob) DatasetByName(name string) (*DatasetRef, error) {
	for i := range j.RasterLayers {
		if j.RasterLayers[i].Name == name {
			r := &j.RasterLayers[i]
			return &DatasetRef{
				Family: "raster",
				Name:   r.Name, Title: r.Title, Style: r.Style, Driver: r.Driver,
				ID: r.ID, Crs: r.Crs, BBox: r.BBox,
				Raster: r,
			}, nil
		}
	}
	for i := range j.VectorLayers {
		if j.VectorLayers[i].Name == name {
			v := &j.VectorLayers[i]
			return &DatasetRef{
				Family: "vector",
				Name:   v.Name, Title: v.Title, Style: v.Style, Driver: v.Driver,
				ID: v.ID, Crs: v.Crs, BBox: v.BBox,
				Vector: v,
			}, nil
		}
	}
	for i := range j.CustomLayers {
		if j.CustomLayers[i].Name == name {
			c := &j.CustomLayers[i]
			return &DatasetRef{
				Family: "custom",
				Name:   c.Name, Title: c.Title, Style: c.Style, Driver: c.Driver,
				ID: c.ID, Crs: c.Crs, BBox: c.BBox,
				Custom: c,
			}, nil
		}
	}
	return nil, fmt.Errorf("no layer with name %q", name)
}

// GetFeatureInfoJob identifies features at a pixel position. Query layers
// are referenced by name; the executor resolves them against its own data
// context.
type GetFeatureInfoJob struct {
	SvgPaths      []string             `json:"svg_paths"`
	ServiceParams WmsFeatureInfoParams `json:"service_params"`
}

func (j *GetFeatureInfoJob) Kind() JobKind { return KindGetFeatureInfo }

func (j *GetFeatureInfoJob) Validate() error {
	return j.ServiceParams.Validate()
}

// FeatureQuery is one member of a GetFeature request: the datasets to
// query, optional per-dataset aliases (positional) and an optional OGC
// filter expression applied to every dataset of the query.
type FeatureQuery struct {
	Datasets []Vector `json:"datasets"`
	Alias    []string `json:"alias,omitempty"`
	Filter   string   `json:"filter,omitempty"`
}

// Validate enforces the positional alias rule.
func (q *FeatureQuery) Validate() error {
	if len(q.Datasets) == 0 {
		return fmt.Errorf("%w: queries[].datasets", ErrMissingRequiredField)
	}
	if len(q.Alias) > 0 && len(q.Alias) != len(q.Datasets) {
		return fmt.Errorf("%w: %d aliases for %d datasets (aliases are positional)",
			ErrMalformedEnvelope, len(q.Alias), len(q.Datasets))
	}
	return nil
}

// GetFeatureJob retrieves features for an ordered list of queries, with
// global paging across the concatenated results. A nil Count means no
// limit.
type GetFeatureJob struct {
	Queries    []FeatureQuery `json:"queries"`
	StartIndex int            `json:"start_index,omitempty"`
	Count      *int           `json:"count,omitempty"`
}

func (j *GetFeatureJob) Kind() JobKind { return KindGetFeature }

func (j *GetFeatureJob) Validate() error {
	if len(j.Queries) == 0 {
		return fmt.Errorf("%w: queries", ErrMissingRequiredField)
	}
	for i := range j.Queries {
		if err := j.Queries[i].Validate(); err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
	}
	if j.StartIndex < 0 {
		return fmt.Errorf("%w: start_index %d", ErrMalformedEnvelope, j.StartIndex)
	}
	if j.Count != nil && *j.Count < 0 {
		return fmt.Errorf("%w: count %d", ErrMalformedEnvelope, *j.Count)
	}
	return nil
}

// LegendJob renders a legend image. Detail beyond the SVG search paths is
// reserved.
type LegendJob struct {
	SvgPaths []string `json:"svg_paths"`
}

func (j *LegendJob) Kind() JobKind { return KindLegend }

func (j *LegendJob) Validate() error { return nil }
