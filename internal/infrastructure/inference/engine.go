// Package inference defines the segmentation inference collaborator. The
// scheduler core treats the engine as opaque: it hands over a tile raster and
// gets back labeled regions.
package inference

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tissuelab/slideflow/internal/infrastructure/slide"
)

// Region is one labeled instance found in a tile. The bounding box is in
// tile-local pixels, (y0, x0) inclusive top-left to (y1, x1) exclusive
// bottom-right.
type Region struct {
	Label int
	Y0    int
	X0    int
	Y1    int
	X1    int
	Area  float64
}

// Engine runs segmentation inference on a single tile raster.
type Engine interface {
	Infer(ctx context.Context, raster *slide.Raster) ([]Region, error)
}

// NopEngine returns no regions for every tile. It stands in when no inference
// backend is available; the pipeline still completes successfully.
type NopEngine struct{}

// Infer returns an empty region list.
func (NopEngine) Infer(ctx context.Context, raster *slide.Raster) ([]Region, error) {
	return nil, nil
}

// Factory constructs an inference engine. Implementations may fail when the
// backing model or service is unavailable.
type Factory func() (Engine, error)

// New builds an engine from the factory, downgrading to NopEngine when the
// factory is nil or fails. A failed construction is logged once and every
// tile then yields an empty result.
func New(factory Factory) Engine {
	if factory == nil {
		return NopEngine{}
	}
	engine, err := factory()
	if err != nil {
		log.Warn().Err(err).Msg("inference engine unavailable, using empty-result fallback")
		return NopEngine{}
	}
	return engine
}
