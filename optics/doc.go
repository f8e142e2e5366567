// Package optics implements diffraction-limited point-spread-function
// simulation by Fourier propagation of monochromatic wavefronts through an
// ordered set of optical planes.
//
// A calculation starts from a uniformly illuminated pupil-plane Wavefront,
// applies pupil and image plane elements (apertures, OPD maps, occulters)
// with FFT transforms between planes, and lands on the requested detector
// sampling with an exact matrix Fourier transform. Multi-wavelength results
// are accumulated as weighted intensity sums by OpticalSystem.CalcPSF.
package optics
