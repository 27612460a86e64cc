// Package slide provides read access to whole-slide images. The scheduler
// core only needs level-0 region reads; anything smarter (pyramids, remote
// tile servers) can hide behind the same interfaces.
package slide

import (
	"fmt"
	"image"
	"os"

	xdraw "golang.org/x/image/draw"

	// Register decoders for the slide formats we accept.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is a packed 8-bit RGB pixel region.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8 // len == Width*Height*3, row-major RGB
}

// RGBAt returns the pixel at (x, y) in raster-local coordinates.
func (r *Raster) RGBAt(x, y int) (uint8, uint8, uint8) {
	i := (y*r.Width + x) * 3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// Slide exposes a single open slide image.
type Slide interface {
	// Dimensions returns the level-0 width and height in pixels.
	Dimensions() (int, int)

	// ReadRegion reads a w x h region with its top-left corner at (x, y),
	// at full resolution.
	ReadRegion(x, y, w, h int) (*Raster, error)

	// Close releases the slide.
	Close() error
}

// Opener opens slides by path.
type Opener interface {
	Open(path string) (Slide, error)
}

// FileOpener decodes slide files from the local filesystem. Supported formats
// are PNG, JPEG, GIF, TIFF, BMP, and WebP; the whole level-0 image is decoded
// at open.
type FileOpener struct{}

// NewFileOpener creates a FileOpener.
func NewFileOpener() *FileOpener {
	return &FileOpener{}
}

// Open decodes the image at path.
func (o *FileOpener) Open(path string) (Slide, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open slide %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode slide %s: %w", path, err)
	}
	return NewMemorySlide(img), nil
}

// MemorySlide serves regions from a decoded in-memory image.
type MemorySlide struct {
	img image.Image
}

// NewMemorySlide wraps a decoded image as a Slide.
func NewMemorySlide(img image.Image) *MemorySlide {
	return &MemorySlide{img: img}
}

// Dimensions returns the image width and height.
func (s *MemorySlide) Dimensions() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// ReadRegion extracts the region as a packed RGB raster. The requested region
// must lie within the slide bounds.
func (s *MemorySlide) ReadRegion(x, y, w, h int) (*Raster, error) {
	b := s.img.Bounds()
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > b.Dx() || y+h > b.Dy() {
		return nil, fmt.Errorf("region (%d,%d %dx%d) outside slide bounds %dx%d", x, y, w, h, b.Dx(), b.Dy())
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	src := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+h)
	xdraw.Copy(rgba, image.Point{}, s.img, src, xdraw.Src, nil)

	raster := &Raster{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	for py := 0; py < h; py++ {
		si := rgba.PixOffset(0, py)
		di := py * w * 3
		for px := 0; px < w; px++ {
			raster.Pix[di] = rgba.Pix[si]
			raster.Pix[di+1] = rgba.Pix[si+1]
			raster.Pix[di+2] = rgba.Pix[si+2]
			si += 4
			di += 3
		}
	}
	return raster, nil
}

// Close is a no-op for in-memory slides.
func (s *MemorySlide) Close() error {
	return nil
}
