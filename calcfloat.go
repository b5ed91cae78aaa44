// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

// Implements single epoch float solution combining pseudorange and carrier phase.

package goppp

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// CalcFloat computes the float solution of one epoch by weighted least squares.
// It estimates receiver position, receiver clock, inter-system biases and
// float ambiguities of the phase satellites.
//
// Parameters:
//   - ep: Observations and precomputed corrections of the epoch
//   - opt: Calculation options
//
// Returns:
//   - FloatSol: Estimated parameters. Cov is nil if there is no redundancy
//   - error: ErrInvalidEpoch, ErrDegenerateGeometry or ErrSingularNormalMatrix
func CalcFloat(ep *Epoch, opt FloatOpt) (*FloatSol, error) {
	if err := opt.check(); err != nil {
		return nil, err
	}
	if err := ep.validate(); err != nil {
		return nil, err
	}

	// Line-of-sight vectors from the approximate position
	los, err := lineOfSight(ep)
	if err != nil {
		return nil, err
	}

	// Unknown layout and observation equations
	l := newLayout(ep)
	if l.n < l.m {
		return nil, fmt.Errorf("%w: %d observations < %d unknowns", ErrSingularNormalMatrix, l.n, l.m)
	}
	A := makeA(ep, l, los)
	b := makeB(ep, l)
	y := makeY(ep, l)
	W, err := makeW(ep, l, &opt)
	if err != nil {
		return nil, err
	}
	var dy mat.VecDense
	dy.SubVec(y, b)

	// Solve normal equations
	dx, chol, err := SolveLS(A, &dy, W, opt.RankTol)
	if err != nil {
		return nil, fmt.Errorf("SolveLS() failed, err=%w", err)
	}

	// Post-fit residuals v = y - (A dx + b)
	var v mat.VecDense
	v.MulVec(A, dx)
	v.SubVec(&dy, &v)

	sol := setFloatSol(ep, l, dx)
	sol.DesMat = A
	sol.WghMat = W
	sol.ResVec = &v
	sol.Vtpv = weightedSquare(&v, W)

	// Covariance only with redundancy
	if l.n > l.m {
		sol.Cov, err = makeCov(l, chol, sol.Vtpv/float64(l.n-l.m))
		if err != nil {
			return nil, fmt.Errorf("makeCov() failed, err=%w", err)
		}
	}
	return sol, nil
}

// FloatSol contains the results of float solution calculation
type FloatSol struct {
	Time    time.Time      // Epoch time
	Pos     PosXYZ         // Estimated receiver position (ECEF) [m]
	Clk     float64        // Receiver clock offset [s]
	RefSys  int            // System tag the clock refers to
	Isb     []float64      // Inter-system biases relative to RefSys [s]
	IsbSys  []int          // System tag of each Isb
	Amb     []float64      // Float ambiguities, coefficients of -lambda [cycle]
	AmbM    []float64      // Float ambiguities scaled by lambda [m]
	AmbSats []SatType      // Satellite of each Amb
	Sats    []SatType      // Satellites of the code rows
	Cov     *FloatCov      // Covariance of the estimates. nil if NumObs == NumPar
	ResVec  *mat.VecDense  // Post-fit residuals [m]
	DesMat  *mat.Dense     // Design matrix
	WghMat  *mat.DiagDense // Weight matrix
	Vtpv    float64        // Weighted sum of squared residuals v^t W v
	NumObs  int            // Number of observations (n)
	NumPar  int            // Number of unknowns (m)
	NumCode int            // Number of code observations
}

// FloatCov holds the blocks of sigma0^2 * N^-1
type FloatCov struct {
	Sigma0Sq float64       // A posteriori variance of unit weight
	Full     *mat.SymDense // Full covariance (Amb in [cycle^2], others in [m^2])
	Pos      *mat.SymDense // Position (ECEF) [m^2]
	Amb      *mat.SymDense // Ambiguities [cycle^2]. nil without phase
	Clk      float64       // Receiver clock [s^2]
	Isb      *mat.SymDense // Inter-system biases [s^2]. nil without Isb
}

// Redundancy returns n - m
func (sol *FloatSol) Redundancy() int {
	return sol.NumObs - sol.NumPar
}

// Unit-weight variance, or 0 without redundancy
func (sol *FloatSol) Sigma0Sq() float64 {
	if sol.Cov == nil {
		return 0
	}
	return sol.Cov.Sigma0Sq
}

// setFloatSol extracts the estimates from the unknown vector
func setFloatSol(ep *Epoch, l *paramLayout, dx *mat.VecDense) *FloatSol {
	sol := &FloatSol{
		Time:    ep.Time,
		Sats:    ep.SatNames(),
		RefSys:  l.refSys(),
		NumObs:  l.n,
		NumPar:  l.m,
		NumCode: l.nCode,
	}
	sol.Pos = ep.ApproxPos.Add(PosXYZ{X: dx.AtVec(0), Y: dx.AtVec(1), Z: dx.AtVec(2)})

	sol.Amb = make([]float64, l.nPhase)
	sol.AmbM = make([]float64, l.nPhase)
	sol.AmbSats = make([]SatType, l.nPhase)
	for j, i := range l.phaseIdx {
		sol.Amb[j] = dx.AtVec(l.iAmb + j)
		sol.AmbM[j] = ep.Sats[i].Lambda * sol.Amb[j]
		sol.AmbSats[j] = ep.Sats[i].Sat
	}

	sol.Clk = dx.AtVec(l.iClk) / C

	nIsb := l.numIsb()
	sol.Isb = make([]float64, nIsb)
	sol.IsbSys = make([]int, nIsb)
	for k := 0; k < nIsb; k++ {
		sol.Isb[k] = dx.AtVec(l.iIsb+k) / C
		sol.IsbSys[k] = l.sysTags[k+1]
	}
	return sol
}

// makeCov propagates sigma0^2 * N^-1 and slices it into blocks
func makeCov(l *paramLayout, chol *mat.Cholesky, s0 float64) (*FloatCov, error) {
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		var ce mat.Condition
		if !errors.As(err, &ce) {
			return nil, err
		}
	}
	full := mat.NewSymDense(l.m, nil)
	full.ScaleSym(s0, &inv)

	cov := &FloatCov{
		Sigma0Sq: s0,
		Full:     full,
		Pos:      subSym(full, 0, 3, 1),
		Clk:      full.At(l.iClk, l.iClk) / SQ(C),
	}
	if l.nPhase > 0 {
		cov.Amb = subSym(full, l.iAmb, l.iAmb+l.nPhase, 1)
	}
	if n := l.numIsb(); n > 0 {
		cov.Isb = subSym(full, l.iIsb, l.iIsb+n, 1/SQ(C))
	}
	return cov, nil
}

// Copy of the block [i, k) of a symmetric matrix scaled by f
func subSym(a *mat.SymDense, i, k int, f float64) *mat.SymDense {
	s := mat.NewSymDense(k-i, nil)
	s.ScaleSym(f, a.SliceSym(i, k))
	return s
}

// v^t W v for a diagonal W
func weightedSquare(v mat.Vector, W *mat.DiagDense) float64 {
	vv := 0.0
	for k := 0; k < v.Len(); k++ {
		vv += v.AtVec(k) * v.AtVec(k) * W.At(k, k)
	}
	return vv
}
