// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package goppp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// makeB builds the known term of every row
//   - code : rho - c*dts + T + I
//   - phase: rho - c*dts + T - I + lambda*w
func makeB(ep *Epoch, l *paramLayout) *mat.VecDense {
	b := mat.NewVecDense(l.n, nil)
	for i := 0; i < l.nCode; i++ {
		s := &ep.Sats[i]
		b.SetVec(i, s.Range-C*s.SatClk+s.Trop+s.Iono)
	}
	for j, i := range l.phaseIdx {
		s := &ep.Sats[i]
		b.SetVec(l.nCode+j, s.Range-C*s.SatClk+s.Trop-s.Iono+s.Lambda*s.WindUp)
	}
	return b
}

// makeY builds the observation vector: pseudoranges, then phases in metres
func makeY(ep *Epoch, l *paramLayout) *mat.VecDense {
	y := mat.NewVecDense(l.n, nil)
	for i := 0; i < l.nCode; i++ {
		y.SetVec(i, ep.Sats[i].Pr)
	}
	for j, i := range l.phaseIdx {
		s := &ep.Sats[i]
		y.SetVec(l.nCode+j, s.Lambda*s.Cp)
	}
	return y
}

// makeW builds the weight matrix, the inverse of the observation covariance.
// The covariance is diagonal: VarPr*Q for code and VarCp*Q restricted
// to the phase satellites.
func makeW(ep *Epoch, l *paramLayout, opt *FloatOpt) (*mat.DiagDense, error) {
	wm := opt.weightModel()
	q := make([]float64, l.nCode)
	for i := range ep.Sats {
		s := &ep.Sats[i]
		q[i] = wm.Cofactor(s.Elev, s.Snr)
		if !(q[i] > 0) || !isFinite(q[i]) {
			return nil, fmt.Errorf("%w: %s: invalid cofactor %v", ErrInvalidEpoch, s.Sat, q[i])
		}
	}

	w := make([]float64, l.n)
	for i := 0; i < l.nCode; i++ {
		w[i] = 1 / (opt.VarPr * q[i])
	}
	for j, i := range l.phaseIdx {
		w[l.nCode+j] = 1 / (opt.VarCp * q[i])
	}
	return mat.NewDiagDense(l.n, w), nil
}
