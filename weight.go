// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goppp

import (
	"math"
)

// Weight model constants
const (
	MIN_WEIGHT               = 0.001 // Minimum weight value
	MIN_ELEVATION_FOR_WEIGHT = 5.0   // Minimum elevation angle for weight calculation [deg]
)

// WeightModel gives the relative variance (cofactor) of a satellite's observation.
// The result is scaled by VarPr or VarCp.
type WeightModel interface {
	Cofactor(elev, snr float64) float64
}

// WeightFunc adapts a plain function to WeightModel
type WeightFunc func(elev, snr float64) float64

func (f WeightFunc) Cofactor(elev, snr float64) float64 {
	return f(elev, snr)
}

// NewWeightModel returns one of the built-in models.
//   - 0: equal weights
//   - 1: RTKLIB, a^2 + b^2/sin^2(el) with a = b, normalized to 1 at zenith
//   - 2: RTK Core, 90/el[deg]
//   - 3: GPS Programming, 0.8^2/sin^2(el)
//   - 4: SNR sigma-epsilon, 10^((snrRef-snr)/10)
//   - 5: elevation x SNR, 10^((snrRef-snr)/10)/sin^2(el)
//
// Unknown modes fall back to equal weights.
func NewWeightModel(mode int, snrRef float64) WeightModel {
	return WeightFunc(func(elev, snr float64) float64 {
		return cofactor(mode, snrRef, elev, snr)
	})
}

func cofactor(mode int, snrRef, elev, snr float64) (q float64) {
	el := elev
	if !(el > ToRad(MIN_ELEVATION_FOR_WEIGHT)) {
		el = ToRad(MIN_ELEVATION_FOR_WEIGHT)
	}
	sinel := math.Sin(el)

	switch mode {
	case 1: // RTKLIB
		q = 0.5 * (1 + 1/SQ(sinel))
	case 2: // RTK Core
		q = 90.0 / ToDeg(el)
	case 3: // GPS Programming
		const VER_ZNH = 0.8 * 0.8
		q = VER_ZNH / SQ(sinel)
	case 4: // SNR
		q = snrFactor(snrRef, snr)
	case 5: // Elevation x SNR
		q = snrFactor(snrRef, snr) / SQ(sinel)
	default:
		return 1.0
	}
	if !(q <= 1/MIN_WEIGHT) {
		q = 1 / MIN_WEIGHT
	}
	return
}

// Unknown signal strength (0) gives a factor of 1
func snrFactor(snrRef, snr float64) float64 {
	if !(snr > 0) {
		return 1.0
	}
	return math.Pow(10, (snrRef-snr)/10)
}
