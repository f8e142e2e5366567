package optics

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// OpticalSystem is an ordered prescription of optical elements terminated by
// a detector. The pupil diameter, pupil grid size, and oversample factor are
// fixed for the life of the system; wavelength and source parameters vary
// per calculation.
type OpticalSystem struct {
	Name       string
	Diam       float64 // entrance pupil diameter, meters
	NPix       int     // pixels across the pupil diameter
	Oversample int     // computational subpixels per detector pixel

	elements []OpticalElement
}

// NewOpticalSystem validates the fixed geometry and returns an empty
// prescription.
func NewOpticalSystem(name string, diam float64, npix, oversample int) (*OpticalSystem, error) {
	if diam <= 0 {
		return nil, fmt.Errorf("%w: aperture diameter %g m must be positive", ErrConfiguration, diam)
	}
	if npix < 2 {
		return nil, fmt.Errorf("%w: pupil grid of %d pixels is too small", ErrConfiguration, npix)
	}
	if oversample < 1 {
		return nil, fmt.Errorf("%w: oversample %d must be a positive integer", ErrConfiguration, oversample)
	}
	return &OpticalSystem{Name: name, Diam: diam, NPix: npix, Oversample: oversample}, nil
}

// AddElement appends an element to the prescription. Plane transitions are
// inserted automatically during propagation: whenever the next element lives
// in a different plane type, an FFT transform is applied first.
func (s *OpticalSystem) AddElement(e OpticalElement) {
	s.elements = append(s.elements, e)
}

// Elements returns the prescription in application order.
func (s *OpticalSystem) Elements() []OpticalElement {
	out := make([]OpticalElement, len(s.elements))
	copy(out, s.elements)
	return out
}

// DetectorSpec fixes the output grid geometry. Either Pixels or FOVArcsec
// must be given; PixelScale is always required.
type DetectorSpec struct {
	Pixels     int     // output size in detector pixels
	PixelScale float64 // arcsec per detector pixel
	FOVArcsec  float64 // alternative to Pixels: field of view per side
}

// resolvePixels returns the detector pixel count implied by the spec.
func (d DetectorSpec) resolvePixels() (int, error) {
	if d.PixelScale <= 0 {
		return 0, fmt.Errorf("%w: detector pixel scale %g arcsec must be positive", ErrConfiguration, d.PixelScale)
	}
	if d.Pixels > 0 {
		return d.Pixels, nil
	}
	if d.FOVArcsec > 0 {
		return int(math.Round(d.FOVArcsec / d.PixelScale)), nil
	}
	return 0, fmt.Errorf("%w: detector spec needs a pixel count or field of view", ErrConfiguration)
}

// OutputMode selects which sampling(s) of the final intensity to return.
type OutputMode int

const (
	// OutputBoth returns the oversampled grid and the detector-binned grid.
	OutputBoth OutputMode = iota
	// OutputOversampled returns only the oversampled grid.
	OutputOversampled
	// OutputDetector returns only the detector-binned grid.
	OutputDetector
)

// Normalization selects how the PSF intensity is scaled.
type Normalization int

const (
	// NormalizeNone leaves the raw propagated intensity.
	NormalizeNone Normalization = iota
	// NormalizeFirst scales each wavefront to unit total intensity after
	// the first optic, so the returned PSF is the fraction of the light
	// entering the system that reaches each output pixel.
	NormalizeFirst
	// NormalizeLast scales the accumulated PSF to unit total on the final
	// output grid.
	NormalizeLast
)

// Options carries the per-calculation parameters of CalcPSF.
type Options struct {
	Detector  DetectorSpec
	Mode      OutputMode
	Normalize Normalization

	// OffsetR and OffsetPA place the source off axis: radial offset in
	// arcseconds at a position angle in degrees counterclockwise from +y.
	OffsetR  float64
	OffsetPA float64

	// JitterSigma applies Gaussian pointing-jitter smoothing of the given
	// sigma, in arcseconds, to the accumulated oversampled grid.
	JitterSigma float64

	// SaveIntermediates collects read-only snapshots of every plane for
	// the first wavelength of the calculation.
	SaveIntermediates bool

	// MaxWorkers caps how many wavelengths propagate concurrently.
	// Zero means one worker per CPU.
	MaxWorkers int
}

// PlaneSnapshot is a read-only copy of a wavefront at one plane of the
// prescription, for display and diagnostics.
type PlaneSnapshot struct {
	Name       string
	Plane      PlaneType
	Wavelength float64 // meters
	PixelScale float64 // native units of Plane
	Amplitude  *mat.CDense
}

func snapshotOf(name string, w *Wavefront) PlaneSnapshot {
	c := w.Copy()
	return PlaneSnapshot{
		Name:       name,
		Plane:      c.Plane,
		Wavelength: c.Wavelength,
		PixelScale: c.PixelScale,
		Amplitude:  c.amp,
	}
}

// propagateOne runs the full prescription for a single wavelength and
// returns the oversampled detector-plane intensity.
func (s *OpticalSystem) propagateOne(wavelength float64, opts Options, detPixels int, keepSnaps bool) ([][]float64, []PlaneSnapshot, error) {
	w, err := NewWavefront(wavelength, s.Diam, s.NPix, s.Oversample)
	if err != nil {
		return nil, nil, err
	}

	cornerX, cornerY := CornerTilt(detPixels, s.Oversample)
	offX, offY, err := OffsetTilt(opts.OffsetR, opts.OffsetPA, wavelength, s.Diam)
	if err != nil {
		return nil, nil, err
	}
	if err := w.applyInitialTilt(cornerX, cornerY, offX, offY); err != nil {
		return nil, nil, err
	}

	var snaps []PlaneSnapshot
	if keepSnaps {
		snaps = append(snaps, snapshotOf("entrance pupil", w))
	}

	for i, e := range s.elements {
		if err := w.PropagateFFT(e.Plane()); err != nil {
			return nil, nil, fmt.Errorf("before element %q: %w", e.Name(), err)
		}
		if err := e.Apply(w); err != nil {
			return nil, nil, err
		}
		if i == 0 && opts.Normalize == NormalizeFirst {
			if err := w.normalizeTotal(); err != nil {
				return nil, nil, fmt.Errorf("after element %q: %w", e.Name(), err)
			}
		}
		if keepSnaps {
			snaps = append(snaps, snapshotOf(e.Name(), w))
		}
		log.WithFields(log.Fields{
			"element":    e.Name(),
			"plane":      w.Plane.String(),
			"pixelscale": w.PixelScale,
		}).Debug("applied element")
	}
	if len(s.elements) == 0 && opts.Normalize == NormalizeFirst {
		if err := w.normalizeTotal(); err != nil {
			return nil, nil, err
		}
	}

	// The detector transform is defined from a pupil plane. A prescription
	// ending at an image plane is propagated back first.
	if err := w.PropagateFFT(PlanePupil); err != nil {
		return nil, nil, err
	}
	if err := w.removeCornerTilt(); err != nil {
		return nil, nil, err
	}

	lamD := wavelength / s.Diam * RadToArcsec
	det, err := w.PropagateMFT(MFTSpec{
		Pixels:     detPixels * s.Oversample,
		PixelScale: opts.Detector.PixelScale / float64(s.Oversample) / lamD,
	})
	if err != nil {
		return nil, nil, err
	}
	if keepSnaps {
		snaps = append(snaps, snapshotOf("detector", det))
	}

	return det.Intensity(), snaps, nil
}

// normalizeTotal scales the wavefront to unit total intensity.
func (w *Wavefront) normalizeTotal() error {
	tot := w.TotalIntensity()
	if tot <= 0 || math.IsNaN(tot) || math.IsInf(tot, 0) {
		return fmt.Errorf("%w: total intensity %g cannot be normalized", ErrNumericalInstability, tot)
	}
	w.scaleAmplitude(1 / math.Sqrt(tot))
	return nil
}
