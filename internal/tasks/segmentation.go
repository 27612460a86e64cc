package tasks

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/inference"
	"github.com/tissuelab/slideflow/internal/infrastructure/slide"
	"github.com/tissuelab/slideflow/internal/tile"
)

// CellSegmentationTask runs tiled segmentation inference over a slide and
// collects one bounding-box polygon per detected region. Inference is bounded
// to MaxConcurrentInference tiles in flight; tile-scoped failures are skipped
// without failing the job.
type CellSegmentationTask struct {
	opener     slide.Opener
	engine     inference.Engine
	resultsDir string
	onProgress ProgressFunc
}

// NewCellSegmentationTask creates the routine with its collaborators.
func NewCellSegmentationTask(opener slide.Opener, engine inference.Engine, resultsDir string, onProgress ProgressFunc) *CellSegmentationTask {
	return &CellSegmentationTask{
		opener:     opener,
		engine:     engine,
		resultsDir: resultsDir,
		onProgress: onProgress,
	}
}

// tileInference carries one tile's inference outcome back to the collector.
type tileInference struct {
	origin  tile.Coords
	regions []inference.Region
	err     error
}

// Run executes the routine. Only opening the slide, creating the results
// directory, and writing the artifact can fail the job.
func (t *CellSegmentationTask) Run(ctx context.Context, job *domain.Job) error {
	s, err := t.opener.Open(job.SlidePath())
	if err != nil {
		return err
	}
	defer s.Close()

	width, height := s.Dimensions()
	tiles := tile.Grid(width, height, tile.DefaultSize, tile.DefaultOverlap)
	total := len(tiles)
	polygons := make([]Polygon, 0)

	if total == 0 {
		job.SetProgress(100.0)
		return writeArtifact(t.resultsDir, job.ID()+"_cells.json", &CellsDocument{JobID: job.ID(), Polygons: polygons})
	}

	log.Info().Str("job_id", job.ID()).Int("tiles", total).Msg("processing slide")

	results := make(chan tileInference, MaxConcurrentInference)
	inFlight := 0
	processed := 0

	// collect receives one finished inference, folds its polygons in, and
	// advances progress. Failed tiles count as processed and are skipped.
	collect := func() {
		res := <-results
		inFlight--
		if res.err != nil {
			log.Error().Err(res.err).Str("job_id", job.ID()).
				Int("x", res.origin.X).Int("y", res.origin.Y).
				Msg("tile inference failed, skipping tile")
		} else {
			for _, region := range res.regions {
				polygons = append(polygons, regionPolygon(region, res.origin))
			}
		}
		processed++
		advanceProgress(job, processed, total, t.onProgress)
	}

	for _, tc := range tiles {
		raster, err := s.ReadRegion(tc.X, tc.Y, tc.W, tc.H)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID()).
				Int("x", tc.X).Int("y", tc.Y).
				Msg("tile read failed, skipping tile")
			processed++
			advanceProgress(job, processed, total, t.onProgress)
			continue
		}

		if !containsTissue(raster) {
			processed++
			advanceProgress(job, processed, total, t.onProgress)
			continue
		}

		// Drain one in-flight inference before submitting past the cap.
		for inFlight >= MaxConcurrentInference {
			collect()
		}
		inFlight++
		go func(tc tile.Coords, raster *slide.Raster) {
			regions, err := t.engine.Infer(ctx, raster)
			results <- tileInference{origin: tc, regions: regions, err: err}
		}(tc, raster)
	}

	// All submitted inferences must land before the artifact is written.
	for inFlight > 0 {
		collect()
	}

	log.Info().Str("job_id", job.ID()).Int("polygons", len(polygons)).
		Int("tiles", processed).Msg("slide processed")

	return writeArtifact(t.resultsDir, job.ID()+"_cells.json", &CellsDocument{JobID: job.ID(), Polygons: polygons})
}

// regionPolygon converts a labeled region's bounding box into a clockwise
// 4-vertex ring in slide-global pixels.
func regionPolygon(r inference.Region, origin tile.Coords) Polygon {
	return Polygon{
		Points: [][2]int{
			{r.X0 + origin.X, r.Y0 + origin.Y},
			{r.X1 + origin.X, r.Y0 + origin.Y},
			{r.X1 + origin.X, r.Y1 + origin.Y},
			{r.X0 + origin.X, r.Y1 + origin.Y},
		},
		Label:      r.Label,
		Area:       r.Area,
		TileOrigin: TileOrigin{X: origin.X, Y: origin.Y},
	}
}

var _ Task = (*CellSegmentationTask)(nil)
