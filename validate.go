// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goppp

import (
	"fmt"
)

// ValidateFloatSol validates the solution quality using chi-square test and PDOP check.
// dop may be nil, in which case the PDOP check is skipped.
func ValidateFloatSol(sol *FloatSol, dop *Dop, opt FloatOpt) error {

	// Chi-square test
	if !opt.NoChiTest {
		nM, nX := sol.NumObs, sol.NumPar // nM: num of measurements, nX: num of parameters
		if nM > nX {
			vv := sol.Vtpv
			if th := ChiSqr(nM - nX - 1); th > 0 && vv > th {
				return fmt.Errorf("chi-Square test failed: nM=%d, nX=%d, |w dr|=%f > %f", nM, nX, vv, th)
			}
		}
	}

	// Check if PDOP exceeds threshold
	if opt.MaxDop > 0 && dop != nil {
		if dop.PDOP > opt.MaxDop {
			return fmt.Errorf("PDOP exceeded threshold, PDOP=%.3f > %f", dop.PDOP, opt.MaxDop)
		}
	}

	return nil
}
