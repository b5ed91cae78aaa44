// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package goppp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type representing satellite name like "G10"
type SatType string

// Type representing satellite system like 'G'
type SysType byte

// Extract satellite system from satellite name
func (p SatType) Sys() SysType {
	if len(p) == 0 {
		return 0
	}
	return SysType(p[0])
}

// Extract satellite number from satellite name
func (p SatType) Num() int {
	if len(p) < 2 {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimSpace(string(p[1:])))
	if err != nil {
		return 0
	}
	return i
}

// Check validity of satellite system
func (p SysType) IsValid() bool {
	return p == 'G' || p == 'J' || p == 'E' || p == 'R' || p == 'C' || p == 'S'
}

// System tag used for the inter-system bias layout.
// GPS and QZSS share a time frame and therefore a tag. SBAS is left untagged.
func (p SysType) Tag() int {
	switch p {
	case 'G', 'J':
		return 1
	case 'E':
		return 2
	case 'R':
		return 3
	case 'C':
		return 4
	default:
		return 0
	}
}

// SatObs holds everything the estimator needs for one satellite in one epoch.
// Satellite position, clock and atmospheric delays are computed by the caller.
type SatObs struct {
	Sat    SatType // Satellite name
	Sys    int     // System tag (0: unused, see SysType.Tag)
	SatPos PosXYZ  // Satellite position (ECEF) [m]
	Range  float64 // Approximate geometric range from ApproxPos [m]
	Pr     float64 // Pseudorange [m]
	HasCp  bool    // Whether carrier phase is tracked
	Cp     float64 // Carrier phase [cycle]
	Snr    float64 // Signal strength [dB-Hz]
	Elev   float64 // Elevation [rad]
	SatClk float64 // Satellite clock error [s]
	Trop   float64 // Tropospheric delay [m]
	Iono   float64 // Ionospheric delay on the code signal [m]
	WindUp float64 // Phase wind-up [cycle]
	Lambda float64 // Carrier wavelength [m] (phase satellites only)
}

// Epoch is the input of a single estimation.
type Epoch struct {
	Time      time.Time // Epoch time (informational)
	ApproxPos PosXYZ    // Approximate receiver position [m]
	Sats      []SatObs  // Code-tracked satellites
}

// Number of code and phase observations
func (e *Epoch) Counts() (nCode, nPhase int) {
	for i := range e.Sats {
		if e.Sats[i].HasCp {
			nPhase++
		}
	}
	return len(e.Sats), nPhase
}

// Indices into Sats of the phase-tracked satellites, in epoch order
func (e *Epoch) PhaseIdx() []int {
	idx := make([]int, 0, len(e.Sats))
	for i := range e.Sats {
		if e.Sats[i].HasCp {
			idx = append(idx, i)
		}
	}
	return idx
}

// Satellite names in epoch order
func (e *Epoch) SatNames() []SatType {
	s := make([]SatType, len(e.Sats))
	for i := range e.Sats {
		s[i] = e.Sats[i].Sat
	}
	return s
}

// Filter returns a copy of the epoch keeping only satellites accepted by keep
func (e *Epoch) Filter(keep func(*SatObs) bool) *Epoch {
	e2 := &Epoch{
		Time:      e.Time,
		ApproxPos: e.ApproxPos,
		Sats:      make([]SatObs, 0, len(e.Sats)),
	}
	for i := range e.Sats {
		if keep(&e.Sats[i]) {
			e2.Sats = append(e2.Sats, e.Sats[i])
		}
	}
	return e2
}

// Check the inputs that are not geometry related.
// Geometry (range) checks are done by the geometry builder.
func (e *Epoch) validate() error {
	if e == nil || len(e.Sats) == 0 {
		return fmt.Errorf("%w: no satellites", ErrInvalidEpoch)
	}
	if !isFinite(e.ApproxPos.X) || !isFinite(e.ApproxPos.Y) || !isFinite(e.ApproxPos.Z) {
		return fmt.Errorf("%w: approximate position is not finite", ErrInvalidEpoch)
	}
	for i := range e.Sats {
		s := &e.Sats[i]
		if !isFinite(s.Pr) || !isFinite(s.SatClk) || !isFinite(s.Trop) || !isFinite(s.Iono) {
			return fmt.Errorf("%w: %s: non-finite code observation or correction", ErrInvalidEpoch, s.Sat)
		}
		if s.HasCp {
			if !isFinite(s.Cp) || !isFinite(s.WindUp) {
				return fmt.Errorf("%w: %s: non-finite phase observation", ErrInvalidEpoch, s.Sat)
			}
			if !(s.Lambda > 0) || !isFinite(s.Lambda) {
				return fmt.Errorf("%w: %s: invalid wavelength %v", ErrInvalidEpoch, s.Sat, s.Lambda)
			}
		}
	}
	return nil
}
