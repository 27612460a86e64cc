// Package tile provides the overlapping tiling of a slide image.
package tile

import "fmt"

// Default tiling parameters for slide processing.
const (
	DefaultSize    = 512
	DefaultOverlap = 64
)

// Coords represents one tile: its origin in slide pixels and its clipped size.
type Coords struct {
	X int // left edge in slide pixels
	Y int // top edge in slide pixels
	W int // tile width, clipped at the slide boundary
	H int // tile height, clipped at the slide boundary
}

// String returns the tile coordinate as a string in format "x{X}_y{Y}"
func (c Coords) String() string {
	return fmt.Sprintf("x%d_y%d", c.X, c.Y)
}

// Grid generates the tile coordinates covering a width x height slide with
// overlapping tiles. Origins advance by size-overlap; trailing tiles are
// clipped to the slide boundary, never padded. A zero-area slide yields no
// tiles.
func Grid(width, height, size, overlap int) []Coords {
	if width <= 0 || height <= 0 || size <= 0 || overlap >= size {
		return nil
	}
	step := size - overlap
	var tiles []Coords
	for y := 0; y < height; y += step {
		h := min(size, height-y)
		for x := 0; x < width; x += step {
			w := min(size, width-x)
			tiles = append(tiles, Coords{X: x, Y: y, W: w, H: h})
		}
	}
	return tiles
}

// Count returns the number of tiles Grid produces without materializing them.
func Count(width, height, size, overlap int) int {
	if width <= 0 || height <= 0 || size <= 0 || overlap >= size {
		return 0
	}
	step := size - overlap
	cols := (width + step - 1) / step
	rows := (height + step - 1) / step
	return cols * rows
}
