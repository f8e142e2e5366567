package main

import json "github.com/KevinWang15/go-json5"

// SimulationRun collects everything a parameter file can request: the
// telescope geometry, the detector, the source spectrum, and the output and
// display options.
type SimulationRun struct {
	Title            string
	ShowInput        bool
	WindowSizePixels int
	OutputPrefix     string
	LogLevel         string

	PupilDiameterM  float64
	PupilGridPixels int
	Oversample      int

	SecondaryDiameterM float64
	StrutWidthM        float64
	OcculterRadiusAs   float64
	FieldStopAs        float64

	DetectorPixels       int
	DetectorFOVAs        float64
	DetectorPixelScaleAs float64

	WavelengthUm        float64
	PathToSpectrumTable string
	SpectrumTable       [][2]float64 // (wavelength um, weight)

	SourceOffsetAs    float64
	SourceOffsetPaDeg float64
	JitterSigmaAs     float64

	Normalize         string
	SaveIntermediates bool
	MaxWorkers        int
}

func parseArrayFormat(data []byte) ([][2]float64, error) {
	var pairs [][2]float64
	err := json.Unmarshal(data, &pairs)
	return pairs, err
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func validateJsonFileAndFillRun(jsonTable map[string]interface{}, run *SimulationRun) (string, bool) {
	msg := "No problem found in json file" // Initialize msg to presumed success.

	showInput, ok := getLeafValue(jsonTable, "show_input_bool")
	if !ok {
		run.ShowInput = false // default to false if this field is missing
	} else {
		run.ShowInput, ok = showInput.(bool)
		if !ok {
			msg = "show_input_bool: is not a bool"
			return msg, false
		}
	}

	windowSize, ok := getLeafValue(jsonTable, "window_size_pixels")
	if !ok {
		run.WindowSizePixels = 500 // Default to 500 pixels if this field is missing
	} else {
		wSize, ok := windowSize.(float64)
		if !ok {
			msg = "window_size_pixels: is not a float64"
			return msg, false
		}
		run.WindowSizePixels = int(wSize)
	}

	title, ok := getLeafValue(jsonTable, "title")
	if ok {
		run.Title, ok = title.(string)
		if !ok {
			msg = "title: is not a string"
			return msg, false
		}
	}

	prefix, ok := getLeafValue(jsonTable, "output_file_prefix")
	if !ok {
		run.OutputPrefix = "psf" // Default prefix
	} else {
		run.OutputPrefix, ok = prefix.(string)
		if !ok {
			msg = "output_file_prefix: is not a string"
			return msg, false
		}
	}

	logLevel, ok := getLeafValue(jsonTable, "log_level")
	if ok {
		run.LogLevel, ok = logLevel.(string)
		if !ok {
			msg = "log_level: is not a string"
			return msg, false
		}
	}

	// Telescope group - required
	_, ok = getLeafValue(jsonTable, "telescope")
	if !ok {
		msg = "telescope group not found and is required."
		return msg, false
	}

	v, ok := getLeafValue(jsonTable, "telescope", "pupil_diameter_m")
	if ok {
		value, ok := v.(float64)
		if ok {
			run.PupilDiameterM = value
		} else {
			msg = "telescope.pupil_diameter_m: is not a float64"
			return msg, false
		}
	} else {
		msg = "telescope.pupil_diameter_m: not found"
		return msg, false
	}

	v, ok = getLeafValue(jsonTable, "telescope", "pupil_grid_pixels")
	if ok {
		value, ok := v.(float64)
		if ok {
			run.PupilGridPixels = int(value)
		} else {
			msg = "telescope.pupil_grid_pixels: is not a float64"
			return msg, false
		}
	} else {
		msg = "telescope.pupil_grid_pixels: not found"
		return msg, false
	}

	v, ok = getLeafValue(jsonTable, "telescope", "oversample")
	if !ok {
		run.Oversample = 4 // Default oversampling
	} else {
		value, ok := v.(float64)
		if !ok {
			msg = "telescope.oversample: is not a float64"
			return msg, false
		}
		run.Oversample = int(value)
	}

	v, ok = getLeafValue(jsonTable, "telescope", "secondary_diameter_m")
	if ok { // We allow this field to be missing - if missing, it defaults to 0
		run.SecondaryDiameterM, ok = v.(float64)
		if !ok {
			msg = "telescope.secondary_diameter_m: is not a float64"
			return msg, false
		}
	}

	v, ok = getLeafValue(jsonTable, "telescope", "strut_width_m")
	if ok {
		run.StrutWidthM, ok = v.(float64)
		if !ok {
			msg = "telescope.strut_width_m: is not a float64"
			return msg, false
		}
	}

	// Coronagraph masks are optional
	v, ok = getLeafValue(jsonTable, "occulter_radius_arcsec")
	if ok {
		run.OcculterRadiusAs, ok = v.(float64)
		if !ok {
			msg = "occulter_radius_arcsec: is not a float64"
			return msg, false
		}
	}

	v, ok = getLeafValue(jsonTable, "field_stop_arcsec")
	if ok {
		run.FieldStopAs, ok = v.(float64)
		if !ok {
			msg = "field_stop_arcsec: is not a float64"
			return msg, false
		}
	}

	// Detector group - required
	_, ok = getLeafValue(jsonTable, "detector")
	if !ok {
		msg = "detector group not found and is required."
		return msg, false
	}

	v, ok = getLeafValue(jsonTable, "detector", "pixel_scale_arcsec")
	if ok {
		value, ok := v.(float64)
		if ok {
			run.DetectorPixelScaleAs = value
		} else {
			msg = "detector.pixel_scale_arcsec: is not a float64"
			return msg, false
		}
	} else {
		msg = "detector.pixel_scale_arcsec: not found"
		return msg, false
	}

	needFOV := true
	v, ok = getLeafValue(jsonTable, "detector", "pixels")
	if ok {
		value, ok := v.(float64)
		if !ok {
			msg = "detector.pixels: is not a float64"
			return msg, false
		}
		run.DetectorPixels = int(value)
		needFOV = false // Now we don't need fov_arcsec
	}

	v, ok = getLeafValue(jsonTable, "detector", "fov_arcsec")
	if !ok {
		if needFOV {
			msg = "detector.fov_arcsec: not found (either detector.pixels or detector.fov_arcsec is required)"
			return msg, false
		}
	} else {
		run.DetectorFOVAs, ok = v.(float64)
		if !ok {
			msg = "detector.fov_arcsec: is not a float64"
			return msg, false
		}
	}

	// The source is either a single wavelength or a weighted spectrum file.
	needWavelength := true
	spectrumPath, ok := getLeafValue(jsonTable, "path_to_spectrum_file")
	if ok {
		run.PathToSpectrumTable, ok = spectrumPath.(string)
		if !ok {
			msg = "path_to_spectrum_file: is not a string"
			return msg, false
		}
		needWavelength = false
	}

	wavelength, ok := getLeafValue(jsonTable, "observation_wavelength_um")
	if !ok {
		if needWavelength {
			msg = "observation_wavelength_um: not found"
			return msg, false
		}
	} else {
		run.WavelengthUm, ok = wavelength.(float64)
		if !ok {
			msg = "observation_wavelength_um: is not a float64"
			return msg, false
		}
	}

	v, ok = getLeafValue(jsonTable, "source_offset_arcsec")
	if ok {
		run.SourceOffsetAs, ok = v.(float64)
		if !ok {
			msg = "source_offset_arcsec: is not a float64"
			return msg, false
		}
	}

	v, ok = getLeafValue(jsonTable, "source_offset_pa_degrees")
	if ok {
		run.SourceOffsetPaDeg, ok = v.(float64)
		if !ok {
			msg = "source_offset_pa_degrees: is not a float64"
			return msg, false
		}
	}

	v, ok = getLeafValue(jsonTable, "jitter_sigma_arcsec")
	if ok {
		run.JitterSigmaAs, ok = v.(float64)
		if !ok {
			msg = "jitter_sigma_arcsec: is not a float64"
			return msg, false
		}
	}

	normalize, ok := getLeafValue(jsonTable, "normalize")
	if !ok {
		run.Normalize = "first" // Default value
	} else {
		run.Normalize, ok = normalize.(string)
		if !ok {
			msg = "normalize: is not a string"
			return msg, false
		}
		switch run.Normalize {
		case "first", "last", "none":
		default:
			msg = "normalize: must be one of first, last, none"
			return msg, false
		}
	}

	saveIntermediates, ok := getLeafValue(jsonTable, "save_intermediates_bool")
	if ok {
		run.SaveIntermediates, ok = saveIntermediates.(bool)
		if !ok {
			msg = "save_intermediates_bool: is not a bool"
			return msg, false
		}
	}

	v, ok = getLeafValue(jsonTable, "max_workers")
	if ok {
		value, ok := v.(float64)
		if !ok {
			msg = "max_workers: is not a float64"
			return msg, false
		}
		run.MaxWorkers = int(value)
	}

	return msg, true
}
