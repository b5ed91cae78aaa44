// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package goppp

const (
	PI  = 3.1415926535897932  // Pi
	C   = 2.99792458e8        // Speed of light [m/s]
	Re  = 6378137.0           // Earth's radius [m]
	Fe  = 1.0 / 298.257223563 // Earth's flattening
	L1  = 1575420000.0        // L1 frequency of G/J [Hz]
	L2  = 1227600000.0        // L2 frequency of G/J [Hz]
	L5  = 1176450000.0        // L5 frequency of G/J, E5a of Galileo [Hz]
	B1  = 1561098000.0        // B1 frequency of Beidou [Hz]
	E1  = 1575420000.0        // E1 frequency of Galileo [Hz]
	G1  = 1602000000.0        // G1 frequency of Glonass
	G1d = 562500.0            // Frequency division step of Glonass G1 [Hz]
)

// Wavelength [m] of a carrier frequency [Hz]
func Wavelength(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return C / freq
}
