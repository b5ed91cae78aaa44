// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.15
//

package goppp

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// FloatOpt contains options for the single epoch float solution.
// It is passed by value and never modified during a solve.
type FloatOpt struct {
	VarPr     float64     `yaml:"var_pr"`      // A priori variance of pseudorange [m^2]
	VarCp     float64     `yaml:"var_cp"`      // A priori variance of carrier phase [m^2]
	WghMode   int         `yaml:"wgh_mode"`    // Weighting mode: 0(OFF), 1(RTKLIB), 2(RTK Core), 3(GPS Programming), 4(SNR), 5(Elevation x SNR)
	SnrRef    float64     `yaml:"snr_ref"`     // Reference signal strength of the SNR models [dB-Hz]
	Wgh       WeightModel `yaml:"-"`           // Weight model. If nil, selected by WghMode
	Frame     LocalFrame  `yaml:"-"`           // Local frame for DOP. If nil, GeodeticFrame
	RankTol   float64     `yaml:"rank_tol"`    // Relative singular value tolerance of the rank check
	MaxDop    float64     `yaml:"max_dop"`     // Maximum allowed PDOP. 0 means no check
	NoChiTest bool        `yaml:"no_chi_test"` // If true, skip chi-square test in ValidateFloatSol
}

// NewFloatOpt creates a new FloatOpt with default values
func NewFloatOpt() FloatOpt {
	return FloatOpt{
		VarPr:     SQ(0.3),   // Pseudorange noise 0.3 [m]
		VarCp:     SQ(0.003), // Carrier phase noise 3 [mm]
		WghMode:   5,         // Elevation x SNR
		SnrRef:    50,        // [dB-Hz]
		Wgh:       nil,       // Select by WghMode
		Frame:     nil,       // GeodeticFrame
		RankTol:   1e-9,      // Relative to the largest singular value
		MaxDop:    0,         // No PDOP check
		NoChiTest: false,     // Perform chi-square test
	}
}

// LoadFloatOpt reads YAML options over the defaults.
// Keys absent from the document keep their default values.
func LoadFloatOpt(r io.Reader) (FloatOpt, error) {
	opt := NewFloatOpt()
	b, err := io.ReadAll(r)
	if err != nil {
		return opt, fmt.Errorf("read option failed, err=%w", err)
	}
	if err := yaml.UnmarshalStrict(b, &opt); err != nil {
		return opt, fmt.Errorf("parse option failed, err=%w", err)
	}
	if err := opt.check(); err != nil {
		return opt, err
	}
	return opt, nil
}

func (opt *FloatOpt) weightModel() WeightModel {
	if opt.Wgh != nil {
		return opt.Wgh
	}
	return NewWeightModel(opt.WghMode, opt.SnrRef)
}

func (opt *FloatOpt) localFrame() LocalFrame {
	if opt.Frame != nil {
		return opt.Frame
	}
	return GeodeticFrame{}
}

func (opt *FloatOpt) check() error {
	if !(opt.VarPr > 0) || !isFinite(opt.VarPr) {
		return fmt.Errorf("%w: pseudorange variance must be positive, VarPr=%v", ErrInvalidEpoch, opt.VarPr)
	}
	if !(opt.VarCp > 0) || !isFinite(opt.VarCp) {
		return fmt.Errorf("%w: carrier phase variance must be positive, VarCp=%v", ErrInvalidEpoch, opt.VarCp)
	}
	if opt.WghMode < 0 || opt.WghMode > 5 {
		return fmt.Errorf("%w: unknown weighting mode %d", ErrInvalidEpoch, opt.WghMode)
	}
	if opt.RankTol < 0 {
		return fmt.Errorf("%w: negative rank tolerance %v", ErrInvalidEpoch, opt.RankTol)
	}
	return nil
}
