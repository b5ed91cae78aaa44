// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goppp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch file format
//
//	% comment (also #)
//	> yyyy mm dd hh mm ss.sss  X Y Z
//	SAT SYS SX SY SZ RANGE PR CP SNR ELEV SATCLK TROP IONO WINDUP LAMBDA
//
// Positions, ranges and delays are in metres, CP and WINDUP in cycles,
// ELEV in degrees and SATCLK in seconds. CP "-" means no phase.
// SYS "-" derives the tag from the satellite name, ELEV "-" computes the
// elevation from the approximate position, TROP "-" leaves the delay
// unknown (NaN) to be filled by the caller.

const numSatFields = 15

// ReadEpochs reads all epochs of an epoch file
func ReadEpochs(r io.Reader) ([]*Epoch, error) {
	epochs := []*Epoch{}
	var ep *Epoch

	// Reader to read line by line with newline as delimiter
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// Read line by line
	ln := 0
	for s.Scan() {
		ln++
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || line[0] == '%' || line[0] == '#' {
			continue
		}

		// Epoch line
		if line[0] == '>' {
			var err error
			ep, err = getEpochLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln, err)
			}
			epochs = append(epochs, ep)
			continue
		}

		// Satellite line
		if ep == nil {
			return nil, fmt.Errorf("line %d: satellite line before epoch line", ln)
		}
		so, err := getSatLine(line, &ep.ApproxPos)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}
		ep.Sats = append(ep.Sats, *so)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return epochs, nil
}

// Read date, time and approximate position from an epoch line
func getEpochLine(l string) (*Epoch, error) {
	la := strings.Fields(l)
	if len(la) != 10 {
		return nil, fmt.Errorf("not enough fields in epoch line: %s (%d)", l, len(la))
	}
	iv := [5]int{}
	for i := range iv {
		v, err := strconv.Atoi(la[i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid epoch time: %s", l)
		}
		iv[i] = v
	}
	sec, err := strconv.ParseFloat(la[6], 64)
	if err != nil || sec < 0 || sec >= 61 {
		return nil, fmt.Errorf("invalid epoch seconds: %s", la[6])
	}
	isec := math.Floor(sec)
	nsec := int(math.Round((sec - isec) * 1e9))

	fv := [3]float64{}
	for i := range fv {
		fv[i], err = strconv.ParseFloat(la[i+7], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid approximate position: %s", l)
		}
	}
	return &Epoch{
		Time:      time.Date(iv[0], time.Month(iv[1]), iv[2], iv[3], iv[4], int(isec), nsec, time.UTC),
		ApproxPos: PosXYZ{X: fv[0], Y: fv[1], Z: fv[2]},
		Sats:      []SatObs{},
	}, nil
}

// Fields that may be "-"
const (
	fieldCp   = 7
	fieldElev = 9
	fieldTrop = 11
)

// Read one satellite line
func getSatLine(l string, apos *PosXYZ) (*SatObs, error) {
	la := strings.Fields(l)
	if len(la) != numSatFields {
		return nil, fmt.Errorf("invalid number of fields in satellite line: %s (%d)", l, len(la))
	}
	so := &SatObs{Sat: SatType(la[0])}
	if !so.Sat.Sys().IsValid() {
		return nil, fmt.Errorf("invalid satellite: %s", la[0])
	}

	if la[1] == "-" {
		so.Sys = so.Sat.Sys().Tag()
	} else {
		t, err := strconv.Atoi(la[1])
		if err != nil || t < 0 {
			return nil, fmt.Errorf("%s: invalid system tag: %s", la[0], la[1])
		}
		so.Sys = t
	}

	v := [numSatFields]float64{}
	for i := 2; i < numSatFields; i++ {
		if la[i] == "-" && (i == fieldCp || i == fieldElev || i == fieldTrop) {
			v[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(la[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid value in field %d: %s", la[0], i+1, la[i])
		}
		v[i] = f
	}
	so.SatPos = PosXYZ{X: v[2], Y: v[3], Z: v[4]}
	so.Range = v[5]
	so.Pr = v[6]
	if !math.IsNaN(v[fieldCp]) {
		so.HasCp = true
		so.Cp = v[fieldCp]
	}
	so.Snr = v[8]
	if math.IsNaN(v[fieldElev]) {
		so.Elev = apos.Elevation(so.SatPos)
	} else {
		so.Elev = ToRad(v[fieldElev])
	}
	so.SatClk = v[10]
	so.Trop = v[fieldTrop]
	so.Iono = v[12]
	so.WindUp = v[13]
	so.Lambda = v[14]
	return so, nil
}

// WriteEpoch writes an epoch in the format read by ReadEpochs
func WriteEpoch(w io.Writer, ep *Epoch) error {
	t := ep.Time.UTC()
	sec := float64(t.Second()) + float64(t.Nanosecond())/1e9
	_, err := fmt.Fprintf(w, "> %04d %02d %02d %02d %02d %06.3f %.4f %.4f %.4f\n",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), sec,
		ep.ApproxPos.X, ep.ApproxPos.Y, ep.ApproxPos.Z)
	if err != nil {
		return err
	}
	for i := range ep.Sats {
		s := &ep.Sats[i]
		cp := "-"
		if s.HasCp {
			cp = strconv.FormatFloat(s.Cp, 'f', 4, 64)
		}
		trop := "-"
		if !math.IsNaN(s.Trop) {
			trop = strconv.FormatFloat(s.Trop, 'f', 4, 64)
		}
		_, err = fmt.Fprintf(w, "%s %d %.4f %.4f %.4f %.4f %.4f %s %.1f %.3f %.12e %s %.4f %.4f %.15g\n",
			s.Sat, s.Sys, s.SatPos.X, s.SatPos.Y, s.SatPos.Z, s.Range, s.Pr, cp,
			s.Snr, ToDeg(s.Elev), s.SatClk, trop, s.Iono, s.WindUp, s.Lambda)
		if err != nil {
			return err
		}
	}
	return nil
}
