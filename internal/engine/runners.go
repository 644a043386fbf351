package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/atlas/internal/interfaces"
	"github.com/ternarybob/atlas/pkg/models"
)

// runGetMap renders the requested layers into one image in the requested
// format.
func (e *Engine) runGetMap(ctx context.Context, job *models.GetMapJob) (*models.JobResult, error) {
	params := &job.ServiceParams
	bbox, err := params.BBoxValues()
	if err != nil {
		return nil, err
	}
	width, height, err := params.SizePx()
	if err != nil {
		return nil, err
	}

	names := params.LayerNames()
	handles := make([]interfaces.LayerHandle, 0, len(names))
	for _, name := range names {
		ref, err := job.DatasetByName(name)
		if err != nil {
			return nil, err
		}
		handle, err := e.prepareDataset(ref)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}

	format := params.ImageFormat()
	data, err := e.backend.RenderMap(&interfaces.MapRequest{
		Layers:       handles,
		BBox:         bbox,
		Crs:          params.Crs,
		Width:        width,
		Height:       height,
		Dpi:          params.EffectiveDpi(DefaultDpi),
		Format:       format,
		ExtentBuffer: job.ExtentBuffer,
	})
	if err != nil {
		return nil, err
	}
	return &models.JobResult{ContentType: format, Data: data}, nil
}

// runGetFeatureInfo identifies features at the requested pixel position
// and returns a GeoJSON feature collection.
func (e *Engine) runGetFeatureInfo(ctx context.Context, job *models.GetFeatureInfoJob) (*models.JobResult, error) {
	params := &job.ServiceParams
	bbox, err := params.BBoxValues()
	if err != nil {
		return nil, err
	}
	width, height, err := params.SizePx()
	if err != nil {
		return nil, err
	}
	pixelX, err := params.PixelX()
	if err != nil {
		return nil, err
	}
	pixelY, err := params.PixelY()
	if err != nil {
		return nil, err
	}

	names := params.QueryLayerNames()
	handles := make([]interfaces.LayerHandle, 0, len(names))
	for _, name := range names {
		handle, err := e.resolveQueryLayer(ctx, name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}

	// 2 mm identification rule: physical radius at the render dpi, scaled
	// into map units through the request geometry.
	dpi := params.EffectiveDpi(DefaultDpi)
	tolerancePx := 0.002 * 39.37 * float64(dpi)
	tolerance := tolerancePx * bbox.Width() / float64(width)

	features, err := e.backend.IdentifyFeatures(&interfaces.IdentifyRequest{
		Layers:    handles,
		BBox:      bbox,
		Crs:       params.Crs,
		Width:     width,
		Height:    height,
		Dpi:       dpi,
		PixelX:    pixelX,
		PixelY:    pixelY,
		Tolerance: tolerance,
	})
	if err != nil {
		return nil, err
	}

	data, err := models.NewGeoJSONFeatureCollection(features).Encode()
	if err != nil {
		return nil, err
	}
	return &models.JobResult{ContentType: models.ContentTypeGeoJSON, Data: data}, nil
}

// resolveQueryLayer finds a dataset definition for a bare layer name:
// layers already prepared in this process first, then the theme registry.
func (e *Engine) resolveQueryLayer(ctx context.Context, name string) (interfaces.LayerHandle, error) {
	if handle, ok := e.cache.getByName(name); ok {
		return handle, nil
	}
	if e.themes != nil {
		vector, theme, err := e.themes.ResolveVector(ctx, name)
		if err == nil {
			e.logger.Debug().Str("layer", name).Str("theme", theme).Msg("Query layer resolved from registry")
			return e.prepareVector(vector)
		}
		if !errors.Is(err, interfaces.ErrDatasetNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no layer with name %q", name)
}

// runGetFeature executes the queries in order and applies global paging
// across the concatenated feature list.
func (e *Engine) runGetFeature(ctx context.Context, job *models.GetFeatureJob) (*models.JobResult, error) {
	var sets []models.FeatureSet
	matched := 0

	for qi := range job.Queries {
		query := &job.Queries[qi]
		for di := range query.Datasets {
			dataset := &query.Datasets[di]
			handle, err := e.prepareVector(dataset)
			if err != nil {
				return nil, err
			}
			res, err := e.backend.QueryFeatures(&interfaces.FeatureRequest{
				Layer:  handle,
				Filter: query.Filter,
			})
			if err != nil {
				return nil, fmt.Errorf("query layer %s: %w", dataset.Name, err)
			}

			name := dataset.Name
			if len(query.Alias) > 0 {
				name = query.Alias[di]
			}
			features := res.Features
			if features == nil {
				features = []models.QueryFeature{}
			}
			sets = append(sets, models.FeatureSet{Layer: name, Features: features})
			matched += res.Matched
		}
	}

	sets = window(sets, job.StartIndex, job.Count)

	data, err := models.NewQueryCollection(sets, matched).Encode()
	if err != nil {
		return nil, err
	}
	return &models.JobResult{ContentType: models.ContentTypeQueryCollection, Data: data}, nil
}

// window pages the concatenated feature list while preserving per-layer
// grouping; emptied members stay in place so layer order remains visible.
func window(sets []models.FeatureSet, start int, count *int) []models.FeatureSet {
	if start <= 0 && count == nil {
		return sets
	}

	skip := start
	take := 0
	unlimited := count == nil
	if !unlimited {
		take = *count
	}

	out := make([]models.FeatureSet, 0, len(sets))
	for _, set := range sets {
		features := set.Features
		if skip > 0 {
			if skip >= len(features) {
				skip -= len(features)
				features = nil
			} else {
				features = features[skip:]
				skip = 0
			}
		}
		if !unlimited {
			if take <= 0 {
				features = nil
			} else if len(features) > take {
				features = features[:take]
			}
			take -= len(features)
		}
		if features == nil {
			features = []models.QueryFeature{}
		}
		out = append(out, models.FeatureSet{Layer: set.Layer, Features: features})
	}
	return out
}

// runLegend draws a legend sheet. The payload reserves everything beyond
// the SVG search paths, so the sheet covers the layers currently prepared
// in this process.
func (e *Engine) runLegend(ctx context.Context, job *models.LegendJob) (*models.JobResult, error) {
	data, err := e.backend.RenderLegend(&interfaces.LegendRequest{
		Layers: e.cache.snapshot(),
		Dpi:    DefaultDpi,
	})
	if err != nil {
		return nil, err
	}
	return &models.JobResult{ContentType: models.DefaultImageFormat, Data: data}, nil
}
