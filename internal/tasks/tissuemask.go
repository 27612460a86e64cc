package tasks

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tissuelab/slideflow/internal/domain"
	"github.com/tissuelab/slideflow/internal/infrastructure/slide"
	"github.com/tissuelab/slideflow/internal/tile"
)

// TissueMaskTask computes per-tile tissue statistics over a slide. No
// inference is involved and tiles are processed strictly one at a time.
type TissueMaskTask struct {
	opener     slide.Opener
	resultsDir string
	onProgress ProgressFunc
}

// NewTissueMaskTask creates the routine with its collaborators.
func NewTissueMaskTask(opener slide.Opener, resultsDir string, onProgress ProgressFunc) *TissueMaskTask {
	return &TissueMaskTask{
		opener:     opener,
		resultsDir: resultsDir,
		onProgress: onProgress,
	}
}

// Run executes the routine. Only opening the slide and writing the artifact
// can fail the job; an unreadable tile is skipped.
func (t *TissueMaskTask) Run(ctx context.Context, job *domain.Job) error {
	s, err := t.opener.Open(job.SlidePath())
	if err != nil {
		return err
	}
	defer s.Close()

	width, height := s.Dimensions()
	tiles := tile.Grid(width, height, tile.DefaultSize, tile.DefaultOverlap)
	total := len(tiles)
	maskTiles := make([]MaskTile, 0, total)

	if total == 0 {
		job.SetProgress(100.0)
		return writeArtifact(t.resultsDir, job.ID()+"_tissue_mask.json", &MaskDocument{JobID: job.ID(), Tiles: maskTiles})
	}

	for i, tc := range tiles {
		raster, err := s.ReadRegion(tc.X, tc.Y, tc.W, tc.H)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID()).
				Int("x", tc.X).Int("y", tc.Y).
				Msg("tile read failed, skipping tile")
			advanceProgress(job, i+1, total, t.onProgress)
			continue
		}

		maskTiles = append(maskTiles, MaskTile{
			X:        tc.X,
			Y:        tc.Y,
			W:        tc.W,
			H:        tc.H,
			MaskMean: tissueRatio(raster),
		})
		advanceProgress(job, i+1, total, t.onProgress)
	}

	return writeArtifact(t.resultsDir, job.ID()+"_tissue_mask.json", &MaskDocument{JobID: job.ID(), Tiles: maskTiles})
}

var _ Task = (*TissueMaskTask)(nil)
