// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package goppp

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// Layout of the unknown vector
//
//	x = [dX dY dZ | N_1 .. N_np | clk | isb_1 .. isb_k-1]
//
// Rows are the code observations of every satellite followed by the
// phase observations of the phase satellites, both in epoch order.
type paramLayout struct {
	nCode    int   // Number of code rows
	nPhase   int   // Number of phase rows (= ambiguity columns)
	phaseIdx []int // Satellite index of each phase row
	sysTags  []int // Distinct non-zero system tags, ascending
	iAmb     int   // First ambiguity column
	iClk     int   // Receiver clock column
	iIsb     int   // First inter-system bias column
	n        int   // Number of observations
	m        int   // Number of unknowns
}

func newLayout(ep *Epoch) *paramLayout {
	l := &paramLayout{}
	l.nCode = len(ep.Sats)
	l.phaseIdx = ep.PhaseIdx()
	l.nPhase = len(l.phaseIdx)

	// Phase satellites are a subset of code satellites, so the tags
	// of the code rows already cover the combined sequence
	for i := range ep.Sats {
		if t := ep.Sats[i].Sys; t != 0 {
			l.sysTags = append(l.sysTags, t)
		}
	}
	slices.Sort(l.sysTags)
	l.sysTags = slices.Compact(l.sysTags)

	l.iAmb = 3
	l.iClk = l.iAmb + l.nPhase
	l.iIsb = l.iClk + 1
	l.n = l.nCode + l.nPhase
	l.m = l.iIsb + l.numIsb()
	return l
}

// Number of inter-system bias columns. The lowest tag is the reference.
func (l *paramLayout) numIsb() int {
	if len(l.sysTags) <= 1 {
		return 0
	}
	return len(l.sysTags) - 1
}

// Reference system tag (0 if no tagged satellite)
func (l *paramLayout) refSys() int {
	if len(l.sysTags) == 0 {
		return 0
	}
	return l.sysTags[0]
}

// Column of the inter-system bias of a tag, or -1 for the reference and tag 0
func (l *paramLayout) isbCol(tag int) int {
	if tag == 0 || l.numIsb() == 0 {
		return -1
	}
	k, ok := slices.BinarySearch(l.sysTags, tag)
	if !ok || k == 0 {
		return -1
	}
	return l.iIsb + k - 1
}

// makeA builds the n x m design matrix
func makeA(ep *Epoch, l *paramLayout, los []losVec) *mat.Dense {
	A := mat.NewDense(l.n, l.m, nil)

	setRow := func(row, i int) {
		A.Set(row, 0, -los[i][0])
		A.Set(row, 1, -los[i][1])
		A.Set(row, 2, -los[i][2])
		A.Set(row, l.iClk, 1)
		if c := l.isbCol(ep.Sats[i].Sys); c >= 0 {
			A.Set(row, c, 1)
		}
	}

	// Code rows
	for i := 0; i < l.nCode; i++ {
		setRow(i, i)
	}

	// Phase rows
	for j, i := range l.phaseIdx {
		row := l.nCode + j
		setRow(row, i)
		A.Set(row, l.iAmb+j, -ep.Sats[i].Lambda)
	}
	return A
}
