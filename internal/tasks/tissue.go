package tasks

import "github.com/tissuelab/slideflow/internal/infrastructure/slide"

// tissueRatio returns the fraction of raster pixels whose mean channel
// brightness falls below TissueIntensityThreshold.
func tissueRatio(r *slide.Raster) float64 {
	total := r.Width * r.Height
	if total == 0 {
		return 0
	}
	// mean(r,g,b) < threshold  <=>  r+g+b < 3*threshold, exact in integers
	limit := 3 * TissueIntensityThreshold
	tissue := 0
	for i := 0; i < len(r.Pix); i += 3 {
		if int(r.Pix[i])+int(r.Pix[i+1])+int(r.Pix[i+2]) < limit {
			tissue++
		}
	}
	return float64(tissue) / float64(total)
}

// containsTissue is the background-tile heuristic: skip tiles with less than
// MinTissueRatio tissue pixels.
func containsTissue(r *slide.Raster) bool {
	return tissueRatio(r) >= MinTissueRatio
}
