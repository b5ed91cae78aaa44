// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goppp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveLS(t *testing.T) {
	// y = 1 + 2x
	A := mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2})
	dy := mat.NewVecDense(3, []float64{1, 3, 5})
	W := mat.NewDiagDense(3, []float64{1, 1, 1})

	dx, chol, err := SolveLS(A, dy, W, 1e-9)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, dx.RawVector().Data, 1e-12)

	// Inverse normal matrix of the line fit
	inv := mat.NewSymDense(2, nil)
	require.NoError(t, chol.InverseTo(inv))
	want := mat.NewSymDense(2, []float64{5.0 / 6, -0.5, -0.5, 0.5})
	assert.True(t, mat.EqualApprox(inv, want, 1e-12))
}

func TestSolveLSWeighted(t *testing.T) {
	// Weighted mean of two observations of one unknown
	A := mat.NewDense(2, 1, []float64{1, 1})
	dy := mat.NewVecDense(2, []float64{1, 4})
	W := mat.NewDiagDense(2, []float64{2, 1})

	dx, _, err := SolveLS(A, dy, W, 1e-9)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, dx.AtVec(0), 1e-12)
}

func TestSolveLSError(t *testing.T) {
	tests := []struct {
		name     string
		A        *mat.Dense
		dy       *mat.VecDense
		W        *mat.DiagDense
		singular bool
	}{
		{
			name:     "duplicate columns",
			A:        mat.NewDense(3, 2, []float64{1, 1, 1, 1, 1, 1}),
			dy:       mat.NewVecDense(3, []float64{1, 2, 3}),
			W:        mat.NewDiagDense(3, []float64{1, 1, 1}),
			singular: true,
		},
		{
			name:     "fewer rows than columns",
			A:        mat.NewDense(1, 2, []float64{1, 2}),
			dy:       mat.NewVecDense(1, []float64{1}),
			W:        mat.NewDiagDense(1, []float64{1}),
			singular: true,
		},
		{
			name: "weight size mismatch",
			A:    mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2}),
			dy:   mat.NewVecDense(3, []float64{1, 3, 5}),
			W:    mat.NewDiagDense(2, []float64{1, 1}),
		},
		{
			name: "observation size mismatch",
			A:    mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2}),
			dy:   mat.NewVecDense(2, []float64{1, 3}),
			W:    mat.NewDiagDense(3, []float64{1, 1, 1}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dx, chol, err := SolveLS(tt.A, tt.dy, tt.W, 1e-9)
			require.Error(t, err)
			assert.Nil(t, dx)
			assert.Nil(t, chol)
			if tt.singular {
				assert.ErrorIs(t, err, ErrSingularNormalMatrix)
			} else {
				assert.NotErrorIs(t, err, ErrSingularNormalMatrix)
			}
		})
	}
}

func TestMatrixRank(t *testing.T) {
	tests := []struct {
		name string
		A    *mat.Dense
		tol  float64
		want int
	}{
		{"full", mat.NewDense(3, 2, []float64{1, 0, 1, 1, 1, 2}), 1e-9, 2},
		{"dependent", mat.NewDense(3, 2, []float64{1, 2, 2, 4, 3, 6}), 1e-9, 1},
		{"zero", mat.NewDense(2, 2, nil), 1e-9, 0},
		{"below tolerance", mat.NewDense(2, 2, []float64{1, 0, 0, 1e-12}), 1e-9, 1},
		{"zero tolerance", mat.NewDense(2, 2, []float64{1, 0, 0, 1e-12}), 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matrixRank(tt.A, tt.tol))
		})
	}
}
