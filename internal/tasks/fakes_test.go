package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tissuelab/slideflow/internal/infrastructure/inference"
	"github.com/tissuelab/slideflow/internal/infrastructure/slide"
)

// fakeSlide serves synthetic rasters with a constant fill value and can fail
// reads for chosen tile origins.
type fakeSlide struct {
	width  int
	height int
	fill   uint8
	failAt map[[2]int]bool
}

func (s *fakeSlide) Dimensions() (int, int) {
	return s.width, s.height
}

func (s *fakeSlide) ReadRegion(x, y, w, h int) (*slide.Raster, error) {
	if s.failAt[[2]int{x, y}] {
		return nil, fmt.Errorf("read region (%d, %d): corrupt tile", x, y)
	}
	raster := &slide.Raster{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	for i := range raster.Pix {
		raster.Pix[i] = s.fill
	}
	return raster, nil
}

func (s *fakeSlide) Close() error { return nil }

// fakeOpener hands out a fixed slide or fails.
type fakeOpener struct {
	slide slide.Slide
	err   error
}

func (o *fakeOpener) Open(path string) (slide.Slide, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.slide, nil
}

// fakeEngine produces one fixed region per call, tracks the maximum number of
// concurrent calls, and can fail a chosen call.
type fakeEngine struct {
	mu          sync.Mutex
	calls       int
	failCall    int // 1-based call number that errors, 0 for none
	region      inference.Region
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

var errInference = errors.New("inference backend crashed")

func (e *fakeEngine) Infer(ctx context.Context, raster *slide.Raster) ([]inference.Region, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxInFlight.Load()
		if n <= max || e.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()

	if e.failCall != 0 && call == e.failCall {
		return nil, errInference
	}
	return []inference.Region{e.region}, nil
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
