// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package goppp

import (
	"math"
	"strings"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func EucDist(a, b *PosXYZ) float64 {
	return math.Sqrt(SQ(a.X-b.X) + SQ(a.Y-b.Y) + SQ(a.Z-b.Z))
}

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ------------------------------------
// For command argument parsing
// ------------------------------------

type SysVar []SysType

func (p *SysVar) Set(s string) error {
	*p = []SysType{}
	for _, a := range strings.Split(s, ",") {
		if len(a) == 0 {
			continue
		}
		*p = append(*p, SysType(a[0]))
	}
	return nil
}

func (p *SysVar) String() string {
	if p == nil {
		return ""
	}
	a := make([]string, 0, len(*p))
	for _, s := range *p {
		a = append(a, string(rune(s)))
	}
	return strings.Join(a, ",")
}

// Empty list means all systems
func (p *SysVar) Contains(s SysType) bool {
	if p == nil || len(*p) == 0 {
		return true
	}
	for _, v := range *p {
		if s == v {
			return true
		}
	}
	return false
}

type SatVar []SatType

func (p *SatVar) Set(s string) error {
	*p = []SatType{}
	for _, a := range strings.Split(s, ",") {
		if len(a) == 0 {
			continue
		}
		*p = append(*p, SatType(a))
	}
	return nil
}

func (p *SatVar) String() string {
	if p == nil {
		return ""
	}
	a := make([]string, 0, len(*p))
	for _, s := range *p {
		a = append(a, string(s))
	}
	return strings.Join(a, ",")
}

// ------------------------------------
// Others
// ------------------------------------

// Chi-squared test (α=0.001)
func ChiSqr(i int) float64 {
	v := [...]float64{
		10.8, 13.8, 16.3, 18.5, 20.5, 22.5, 24.3, 26.1, 27.9, 29.6,
		31.3, 32.9, 34.5, 36.1, 37.7, 39.3, 40.8, 42.3, 43.8, 45.3,
		46.8, 48.3, 49.7, 51.2, 52.6, 54.1, 55.5, 56.9, 58.3, 59.7,
		61.1, 62.5, 63.9, 65.2, 66.6, 68.0, 69.3, 70.7, 72.1, 73.4,
		74.7, 76.0, 77.3, 78.6, 80.0, 81.3, 82.6, 84.0, 85.4, 86.7,
		88.0, 89.3, 90.6, 91.9, 93.3, 94.7, 96.0, 97.4, 98.7, 100,
		101, 102, 103, 104, 105, 107, 108, 109, 110, 112,
		113, 114, 115, 116, 118, 119, 120, 122, 123, 125,
		126, 127, 128, 129, 131, 132, 133, 134, 135, 137,
		138, 139, 140, 142, 143, 144, 145, 147, 148, 149}
	if i >= 0 && i < len(v) {
		return v[i]
	} else {
		return 0
	}
}
