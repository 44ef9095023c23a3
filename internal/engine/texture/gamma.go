package texture

import gomath "math"

const (
	// DefaultFileGamma is assumed when a PNG carries no gAMA chunk.
	DefaultFileGamma = 1 / 2.2

	// ScreenGamma is the display gamma images are corrected for.
	ScreenGamma = 2.2

	// gammaThreshold is the smallest deviation from 1 that is applied.
	gammaThreshold = 0.05
)

// CorrectionExponent returns the exponent that maps file-encoded values to
// the screen: 1 / (fileGamma * ScreenGamma).
func CorrectionExponent(fileGamma float64) float64 {
	if !(fileGamma > 0) {
		fileGamma = DefaultFileGamma
	}
	return 1 / (fileGamma * ScreenGamma)
}

// GammaTable builds the 8-bit lookup table for exponent, or returns nil when
// the correction is insignificant.
func GammaTable(exponent float64) *[256]uint8 {
	if gomath.Abs(exponent-1) < gammaThreshold {
		return nil
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(gomath.Floor(255*gomath.Pow(float64(i)/255, exponent) + 0.5))
	}
	return &lut
}

// GammaTable16 maps 16-bit channel values straight to corrected 8-bit
// output, or returns nil when the correction is insignificant.
func GammaTable16(exponent float64) *[65536]uint8 {
	if gomath.Abs(exponent-1) < gammaThreshold {
		return nil
	}
	lut := new([65536]uint8)
	for i := range lut {
		lut[i] = uint8(gomath.Floor(255*gomath.Pow(float64(i)/65535, exponent) + 0.5))
	}
	return lut
}
