package optics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Source is an ordered set of (wavelength, weight) pairs. Weights must be
// non-negative; they need not sum to one.
type Source struct {
	Wavelengths []float64 // meters
	Weights     []float64
}

// Monochromatic returns a single-wavelength source of unit weight.
func Monochromatic(wavelength float64) Source {
	return Source{Wavelengths: []float64{wavelength}, Weights: []float64{1}}
}

func (s Source) validate() error {
	if len(s.Wavelengths) == 0 {
		return fmt.Errorf("%w: source has no wavelengths", ErrConfiguration)
	}
	if len(s.Wavelengths) != len(s.Weights) {
		return fmt.Errorf("%w: %d wavelengths but %d weights",
			ErrConfiguration, len(s.Wavelengths), len(s.Weights))
	}
	for i, wl := range s.Wavelengths {
		if wl <= 0 {
			return fmt.Errorf("%w: wavelength %g m at index %d must be positive", ErrConfiguration, wl, i)
		}
		if s.Weights[i] < 0 {
			return fmt.Errorf("%w: weight %g at index %d must be non-negative", ErrConfiguration, s.Weights[i], i)
		}
	}
	return nil
}

// Result is the outcome of one CalcPSF call. Depending on Options.Mode,
// Oversampled, Detector, or both are populated.
type Result struct {
	Oversampled [][]float64 // intensity at PixelScale/oversample sampling
	Detector    [][]float64 // intensity block-summed to detector pixels

	OversampledPixelScale float64 // arcsec per oversampled pixel
	DetectorPixelScale    float64 // arcsec per detector pixel

	Wavelengths []float64
	Weights     []float64

	// Snapshots holds per-plane wavefront copies for the first wavelength
	// when Options.SaveIntermediates was set.
	Snapshots []PlaneSnapshot
}

// CalcPSF propagates every wavelength of the source through the
// prescription and accumulates the weighted intensity on a single output
// grid. Wavelengths run concurrently; each owns its wavefront and
// intermediate arrays, and only the final reduction is shared. The result is
// all-or-nothing: a failure on any wavelength aborts the call and reports
// the offending wavelength.
func (s *OpticalSystem) CalcPSF(ctx context.Context, src Source, opts Options) (*Result, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	detPixels, err := opts.Detector.resolvePixels()
	if err != nil {
		return nil, err
	}

	nwave := len(src.Wavelengths)
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > nwave {
		workers = nwave
	}

	start := time.Now()
	log.WithFields(log.Fields{
		"system":      s.Name,
		"wavelengths": nwave,
		"workers":     workers,
		"detector_px": detPixels,
		"oversample":  s.Oversample,
	}).Debug("starting PSF calculation")

	grids := make([][][]float64, nwave)
	snaps := make([][]PlaneSnapshot, nwave)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	jobs := make(chan int)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	aborted := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if aborted() || ctx.Err() != nil {
					continue
				}
				wl := src.Wavelengths[idx]
				t := time.Now()
				grid, sn, err := s.propagateOne(wl, opts, detPixels, opts.SaveIntermediates && idx == 0)
				if err != nil {
					fail(fmt.Errorf("wavelength %g m: %w", wl, err))
					continue
				}
				grids[idx] = grid
				snaps[idx] = sn
				log.WithFields(log.Fields{
					"wavelength": wl,
					"elapsed":    time.Since(t),
				}).Debug("wavelength propagated")
			}
		}()
	}
	for idx := 0; idx < nwave; idx++ {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("PSF calculation canceled: %w", err)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	// Deterministic reduction in wavelength order. Partial results are
	// discarded on any shape divergence.
	n := len(grids[0])
	acc := make([][]float64, n)
	for y := range acc {
		acc[y] = make([]float64, n)
	}
	for idx, grid := range grids {
		if len(grid) != n || len(grid[0]) != n {
			return nil, fmt.Errorf("%w: wavelength %g m produced %dx%d, expected %dx%d",
				ErrDimensionMismatch, src.Wavelengths[idx], len(grid), len(grid[0]), n, n)
		}
		wgt := src.Weights[idx]
		for y := range grid {
			row := acc[y]
			for x, v := range grid[y] {
				row[x] += wgt * v
			}
		}
	}

	if opts.Normalize == NormalizeLast {
		tot := 0.0
		for _, row := range acc {
			for _, v := range row {
				tot += v
			}
		}
		if tot <= 0 {
			return nil, fmt.Errorf("%w: accumulated intensity total %g cannot be normalized", ErrNumericalInstability, tot)
		}
		for _, row := range acc {
			for x := range row {
				row[x] /= tot
			}
		}
	}

	ovPS := opts.Detector.PixelScale / float64(s.Oversample)
	if opts.JitterSigma > 0 {
		acc, err = ConvolveGaussian(acc, opts.JitterSigma/ovPS)
		if err != nil {
			return nil, fmt.Errorf("jitter convolution: %w", err)
		}
	}

	res := &Result{
		OversampledPixelScale: ovPS,
		DetectorPixelScale:    opts.Detector.PixelScale,
		Wavelengths:           append([]float64(nil), src.Wavelengths...),
		Weights:               append([]float64(nil), src.Weights...),
		Snapshots:             snaps[0],
	}
	if opts.Mode == OutputBoth || opts.Mode == OutputOversampled {
		res.Oversampled = acc
	}
	if opts.Mode == OutputBoth || opts.Mode == OutputDetector {
		res.Detector = binByFactor(acc, s.Oversample)
	}

	log.WithFields(log.Fields{
		"system":  s.Name,
		"elapsed": time.Since(start),
	}).Info("PSF calculation finished")
	return res, nil
}

// binByFactor block-sums a square grid by an integer factor, preserving
// total intensity.
func binByFactor(m [][]float64, factor int) [][]float64 {
	if factor <= 1 {
		out := make([][]float64, len(m))
		for y := range m {
			out[y] = append([]float64(nil), m[y]...)
		}
		return out
	}
	n := len(m) / factor
	out := make([][]float64, n)
	for y := 0; y < n; y++ {
		row := make([]float64, n)
		for x := 0; x < n; x++ {
			sum := 0.0
			for dy := 0; dy < factor; dy++ {
				src := m[y*factor+dy]
				for dx := 0; dx < factor; dx++ {
					sum += src[x*factor+dx]
				}
			}
			row[x] = sum
		}
		out[y] = row
	}
	return out
}
