// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goppp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//-------------------------------------------------------------------
// PosLLH
//-------------------------------------------------------------------

type PosLLH struct {
	Lat float64
	Lon float64
	Hei float64
}

func (llh *PosLLH) ToXYZ() PosXYZ {
	// Ellipsoid parameters
	f := Fe                     // Flattening
	a := Re                     // Semi-major axis
	e := math.Sqrt(f * (2 - f)) // Eccentricity

	// Conversion to Cartesian coordinates
	n := a / math.Sqrt(1-e*e*math.Sin(llh.Lat)*math.Sin(llh.Lat))
	return PosXYZ{
		X: (n + llh.Hei) * math.Cos(llh.Lat) * math.Cos(llh.Lon),
		Y: (n + llh.Hei) * math.Cos(llh.Lat) * math.Sin(llh.Lon),
		Z: (n*(1-e*e) + llh.Hei) * math.Sin(llh.Lat),
	}
}

// Convert to string
func (llh *PosLLH) String() string {
	return fmt.Sprintf("%.8f %.8f %.4f", ToDeg(llh.Lat), ToDeg(llh.Lon), llh.Hei)
}

//-------------------------------------------------------------------
// PosXYZ
//-------------------------------------------------------------------

type PosXYZ struct {
	X float64
	Y float64
	Z float64
}

func (pos *PosXYZ) ToLLH() PosLLH {
	// In case of origin
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return PosLLH{Lat: 0, Lon: 0, Hei: -Re}
	}

	// Ellipsoid parameters
	f := Fe                     // Flattening
	a := Re                     // Semi-major axis
	b := a * (1 - f)            // Semi-minor axis
	e := math.Sqrt(f * (2 - f)) // Eccentricity

	// Parameters for coordinate transformation
	h := a*a - b*b
	p := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y)
	t := math.Atan2(pos.Z*a, p*b)
	sint := math.Sin(t)
	cost := math.Cos(t)

	// Conversion to latitude and longitude
	lat := math.Atan2(pos.Z+h/b*sint*sint*sint, p-h/a*cost*cost*cost)
	lon := math.Atan2(pos.Y, pos.X)
	n := a / math.Sqrt(1-e*e*math.Sin(lat)*math.Sin(lat)) // Radius of curvature in the prime vertical
	hei := p/math.Cos(lat) - n
	return PosLLH{Lat: lat, Lon: lon, Hei: hei}
}

func (pos *PosXYZ) ToENU(base PosXYZ) PosENU {
	// Relative position from the reference location
	x := pos.X - base.X
	y := pos.Y - base.Y
	z := pos.Z - base.Z

	// Rotate the relative position to convert to ENU coordinates
	r := EnuRot(base)
	return PosENU{
		E: r.At(0, 0)*x + r.At(0, 1)*y + r.At(0, 2)*z,
		N: r.At(1, 0)*x + r.At(1, 1)*y + r.At(1, 2)*z,
		U: r.At(2, 0)*x + r.At(2, 1)*y + r.At(2, 2)*z,
	}
}

func (pos *PosXYZ) Add(d PosXYZ) PosXYZ {
	return PosXYZ{X: pos.X + d.X, Y: pos.Y + d.Y, Z: pos.Z + d.Z}
}

func (pos *PosXYZ) String() string {
	return fmt.Sprintf("%.4f %.4f %.4f", pos.X, pos.Y, pos.Z)
}

// Elevation of sat seen from usr [rad]
func (usr *PosXYZ) Elevation(sat PosXYZ) float64 {
	enu := sat.ToENU(*usr)
	return enu.Elevation()
}

// Azimuth of sat seen from usr [rad], clockwise from north
func (usr *PosXYZ) Azimuth(sat PosXYZ) float64 {
	enu := sat.ToENU(*usr)
	return enu.Azimuth()
}

//-------------------------------------------------------------------
// PosENU
//-------------------------------------------------------------------

type PosENU struct {
	E float64
	N float64
	U float64
}

func (enu *PosENU) Elevation() float64 {
	return math.Atan2(enu.U, math.Sqrt(enu.E*enu.E+enu.N*enu.N))
}

func (enu *PosENU) Azimuth() float64 {
	return math.Atan2(enu.E, enu.N)
}

//-------------------------------------------------------------------
// Local frame
//-------------------------------------------------------------------

// Rotation matrix from ECEF to the local ENU frame at base.
// Rows are the E, N and U unit vectors.
func EnuRot(base PosXYZ) *mat.Dense {
	llh := base.ToLLH()
	s1 := math.Sin(llh.Lon)
	c1 := math.Cos(llh.Lon)
	s2 := math.Sin(llh.Lat)
	c2 := math.Cos(llh.Lat)
	return mat.NewDense(3, 3, []float64{
		-s1, c1, 0,
		-c1 * s2, -s1 * s2, c2,
		c1 * c2, s1 * c2, s2,
	})
}

// LocalFrame rotates an ECEF position covariance into a local frame
type LocalFrame interface {
	CovENU(ref PosXYZ, cov mat.Symmetric) *mat.SymDense
}

// WGS-84 geodetic ENU frame
type GeodeticFrame struct{}

// R * C * R^T at the latitude and longitude of ref
func (GeodeticFrame) CovENU(ref PosXYZ, cov mat.Symmetric) *mat.SymDense {
	r := EnuRot(ref)
	var rc, rcr mat.Dense
	rc.Mul(r, cov)
	rcr.Mul(&rc, r.T())

	// Symmetrize to remove round-off
	out := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			out.SetSym(i, j, 0.5*(rcr.At(i, j)+rcr.At(j, i)))
		}
	}
	return out
}
