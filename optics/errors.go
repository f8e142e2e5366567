package optics

import "errors"

// Sentinel errors returned by propagation operations. All are deterministic
// configuration or logic faults: they abort the whole calculation and are
// never retried. Use errors.Is to classify wrapped instances.
var (
	// ErrConfiguration is returned for invalid inputs such as a
	// non-positive wavelength or aperture diameter, or an inconsistent
	// oversample factor.
	ErrConfiguration = errors.New("optics: invalid configuration")

	// ErrShapeMismatch is returned when an optical element grid does not
	// match the wavefront array shape. Element grids must be resampled to
	// the wavefront sampling before propagation starts.
	ErrShapeMismatch = errors.New("optics: element grid does not match wavefront shape")

	// ErrDimensionMismatch is returned when two wavelengths of one
	// calculation produce different output shapes.
	ErrDimensionMismatch = errors.New("optics: wavelengths produced divergent output shapes")

	// ErrNumericalInstability is returned when a propagation step produces
	// non-finite amplitude values, typically from a degenerate pixel scale.
	ErrNumericalInstability = errors.New("optics: propagation produced non-finite values")
)
