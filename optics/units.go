package optics

import "fmt"

// RadToArcsec converts an angle in radians to arcseconds.
const RadToArcsec = 206264.80624709636

// LamDArcsec returns the angular size of one resolution element (lambda/D)
// in arcseconds for the given wavelength and aperture diameter, both in
// meters.
func LamDArcsec(wavelength, diam float64) (float64, error) {
	if wavelength <= 0 {
		return 0, fmt.Errorf("%w: wavelength %g m must be positive", ErrConfiguration, wavelength)
	}
	if diam <= 0 {
		return 0, fmt.Errorf("%w: aperture diameter %g m must be positive", ErrConfiguration, diam)
	}
	return wavelength / diam * RadToArcsec, nil
}
