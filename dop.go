// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goppp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dop holds geometry-only precision diagnostics
type Dop struct {
	PDOP   float64       // Position DOP
	HDOP   float64       // Horizontal DOP
	VDOP   float64       // Vertical DOP
	CovXYZ *mat.SymDense // (Ag^t Ag)^-1 in ECEF
	CovENU *mat.SymDense // CovXYZ rotated to the local frame at the estimated position
}

// CalcFloatWithDop computes the float solution and its DOP.
// Both results are populated when err is nil.
func CalcFloatWithDop(ep *Epoch, opt FloatOpt) (*FloatSol, *Dop, error) {
	sol, err := CalcFloat(ep, opt)
	if err != nil {
		return nil, nil, err
	}
	dop, err := calcDop(sol, opt.localFrame())
	if err != nil {
		return nil, nil, fmt.Errorf("calcDop() failed, err=%w", err)
	}
	return sol, dop, nil
}

// calcDop uses the code rows and position columns of the design matrix only
func calcDop(sol *FloatSol, frame LocalFrame) (*Dop, error) {
	Ag := sol.DesMat.Slice(0, sol.NumCode, 0, 3)

	// Ag^t Ag
	G := mat.NewSymDense(3, nil)
	G.SymOuterK(1, Ag.T())

	var ch mat.Cholesky
	if ok := ch.Factorize(G); !ok {
		return nil, fmt.Errorf("%w: position geometry", ErrSingularNormalMatrix)
	}
	cxyz := mat.NewSymDense(3, nil)
	if err := ch.InverseTo(cxyz); err != nil {
		var ce mat.Condition
		if !errors.As(err, &ce) {
			return nil, fmt.Errorf("%w: %v", ErrSingularNormalMatrix, err)
		}
	}
	cenu := frame.CovENU(sol.Pos, cxyz)

	return &Dop{
		PDOP:   math.Sqrt(cxyz.At(0, 0) + cxyz.At(1, 1) + cxyz.At(2, 2)),
		HDOP:   math.Sqrt(cenu.At(0, 0) + cenu.At(1, 1)),
		VDOP:   math.Sqrt(cenu.At(2, 2)),
		CovXYZ: cxyz,
		CovENU: cenu,
	}, nil
}
