// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package goppp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Solve the observation equation using weighted least squares
// - dx = (A^t W A)^-1 A^t W dy
// - Return the Cholesky factor of the normal matrix A^t W A as chol
//
// A is rejected as singular when it has fewer rows than columns, when its
// numerical rank is below the number of columns, or when the normal matrix
// is not positive definite.
func SolveLS(A mat.Matrix, dy mat.Vector, W mat.Matrix, rankTol float64) (dx *mat.VecDense, chol *mat.Cholesky, err error) {

	n1, m1 := A.Dims()
	n2, m2 := W.Dims()
	if n1 != n2 || n2 != m2 {
		return nil, nil, fmt.Errorf("invalid matrix size. A^T(%d x %d), W(%d x %d)", m1, n1, n2, m2)
	}
	l1 := dy.Len()
	if l1 != m2 {
		return nil, nil, fmt.Errorf("invalid matrix size. W(%d x %d), dy(%d x 1)", n2, m2, l1)
	}
	if n1 < m1 {
		return nil, nil, fmt.Errorf("%w: %d observations < %d unknowns", ErrSingularNormalMatrix, n1, m1)
	}
	if rank := matrixRank(A, rankTol); rank < m1 {
		return nil, nil, fmt.Errorf("%w: rank(A)=%d < %d", ErrSingularNormalMatrix, rank, m1)
	}

	// N (A^t W A)
	var WA mat.Dense
	WA.Mul(W, A)
	var AtWA mat.Dense
	AtWA.Mul(A.T(), &WA)
	N := mat.NewSymDense(m1, nil)
	for i := 0; i < m1; i++ {
		for j := i; j < m1; j++ {
			N.SetSym(i, j, 0.5*(AtWA.At(i, j)+AtWA.At(j, i)))
		}
	}

	// b (A^t W dy)
	var b mat.VecDense
	b.MulVec(WA.T(), dy)

	// Solve N x = b by Cholesky factorization
	chol = &mat.Cholesky{}
	if ok := chol.Factorize(N); !ok {
		return nil, nil, fmt.Errorf("%w: normal matrix is not positive definite", ErrSingularNormalMatrix)
	}
	dx = &mat.VecDense{}
	if err = chol.SolveVecTo(dx, &b); err != nil {
		var ce mat.Condition
		if !errors.As(err, &ce) {
			return nil, nil, fmt.Errorf("%w: %v", ErrSingularNormalMatrix, err)
		}
	}
	return dx, chol, nil
}

// Numerical rank of A: number of singular values above tol * s_max
func matrixRank(A mat.Matrix, tol float64) int {
	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDNone); !ok {
		return 0
	}

	// Retrieve singular values (descending)
	s := svd.Values(nil)
	if len(s) == 0 || !(s[0] > 0) {
		return 0
	}

	// Count singular values that are greater than the threshold
	rank := 0
	for _, v := range s {
		if v > tol*s[0] {
			rank++
		}
	}
	return rank
}
