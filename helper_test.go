// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goppp

import (
	"math"
	"time"
)

// GEONET site 0255 (KOMATSU), RINEX header position
var geonet0255 = PosXYZ{X: -3721695.1985, Y: 3545492.6126, Z: 3763541.7139}

// IGS rapid orbit igr23230.sp3, 2024-07-14 00:00:00
// x(km), y(km), z(km), clock(microsec)
var igr23230 = []struct {
	sat        SatType
	x, y, z, c float64
}{
	{"G14", -12005.459353, 22848.755674, 5796.967796, 448.162636},
	{"G04", -26293.588245, -625.514504, -4190.661860, 403.210910},
	{"G22", -6559.774102, 22208.149128, 13685.049829, -39.250385},
	{"G06", 3709.341143, 24439.380765, 9629.909454, 163.114980},
	{"G17", -7463.615200, 13958.181703, 21770.913274, 678.028776},
	{"G03", -19010.942887, 7137.091598, 16892.674725, 456.857028},
	{"G21", -19057.263732, -12281.672714, 15058.503648, 109.105768},
	{"G19", 3212.240631, 15559.603142, 21180.943665, 510.053160},
	{"G02", -18350.488725, -6421.169947, 18706.745770, -399.560198},
}

// Synthetic epoch parameters. Zero values give 9 GPS satellites with
// code and phase and no noise.
type simOpt struct {
	nSats  int             // Number of satellites from igr23230 (0: all)
	offset PosXYZ          // Approximate position minus truth [m]
	clk    float64         // Receiver clock [m]
	tags   []int           // System tag per satellite (nil: all 1)
	isb    map[int]float64 // Inter-system bias per tag [m]
	phase  []bool          // Phase tracked per satellite (nil: all)
	amb    []float64       // Ambiguity per satellite [cycle]
	noise  bool            // Add deterministic noise
}

var simAmb = []float64{10, -7, 25, 3, -15, 8, 1, -4, 12}

func simEpoch(o simOpt) *Epoch {
	if o.nSats == 0 {
		o.nSats = len(igr23230)
	}
	if o.amb == nil {
		o.amb = simAmb
	}
	lam := Wavelength(L1)
	approx := geonet0255.Add(o.offset)
	ep := &Epoch{
		Time:      time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC),
		ApproxPos: approx,
	}
	for i := 0; i < o.nSats; i++ {
		d := igr23230[i]
		sp := PosXYZ{X: d.x * 1000, Y: d.y * 1000, Z: d.z * 1000}
		tag := 1
		if o.tags != nil {
			tag = o.tags[i]
		}
		hasCp := o.phase == nil || o.phase[i]
		el := approx.Elevation(sp)
		so := SatObs{
			Sat:    d.sat,
			Sys:    tag,
			SatPos: sp,
			Range:  EucDist(&approx, &sp),
			HasCp:  hasCp,
			Snr:    35 + 15*math.Sin(el),
			Elev:   el,
			SatClk: d.c * 1e-6,
			Trop:   2.3 / math.Sin(el),
			Iono:   1.5 + 0.25*float64(i),
			WindUp: 0.05 * float64(i),
		}

		// Common part of code and phase
		rho := EucDist(&geonet0255, &sp)
		com := rho + o.clk + o.isb[tag] - C*so.SatClk + so.Trop
		so.Pr = com + so.Iono
		if o.noise {
			so.Pr += 0.3 * math.Sin(1.7*float64(i)+0.3)
		}
		if hasCp {
			so.Lambda = lam
			lcp := com - so.Iono + lam*so.WindUp - lam*o.amb[i]
			if o.noise {
				lcp += 0.003 * math.Cos(2.3*float64(i))
			}
			so.Cp = lcp / lam
		}
		ep.Sats = append(ep.Sats, so)
	}
	return ep
}

func repeatBool(v bool, n int) []bool {
	b := make([]bool, n)
	for i := range b {
		b[i] = v
	}
	return b
}
