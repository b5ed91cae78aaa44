// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goppp

import (
	"fmt"
)

// Unit line-of-sight vector from the receiver to a satellite
type losVec [3]float64

// lineOfSight computes (sat - rcv)/range for every code satellite.
// The caller-supplied range is used as is.
func lineOfSight(ep *Epoch) ([]losVec, error) {
	los := make([]losVec, len(ep.Sats))
	for i := range ep.Sats {
		s := &ep.Sats[i]
		if s.Range == 0 || !isFinite(s.Range) {
			return nil, fmt.Errorf("%w: %s: range=%v", ErrDegenerateGeometry, s.Sat, s.Range)
		}
		los[i] = losVec{
			(s.SatPos.X - ep.ApproxPos.X) / s.Range,
			(s.SatPos.Y - ep.ApproxPos.Y) / s.Range,
			(s.SatPos.Z - ep.ApproxPos.Z) / s.Range,
		}
		if !isFinite(los[i][0]) || !isFinite(los[i][1]) || !isFinite(los[i][2]) {
			return nil, fmt.Errorf("%w: %s: non-finite satellite position", ErrDegenerateGeometry, s.Sat)
		}
	}
	return los, nil
}
