// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	m "github.com/mkhts/goppp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEpochFn = "../../testdata/0255.epo"

func discardLogger() *slog.Logger {
	return newLogger(io.Discard, 0)
}

func TestLoadFloatOpt(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "opt.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("var_pr: 0.5\nwgh_mode: 2\nmax_dop: 4\n"), 0o644))

	t.Run("defaults", func(t *testing.T) {
		opt, err := loadFloatOpt(cmdOpt{})
		require.NoError(t, err)
		assert.Equal(t, m.NewFloatOpt(), opt)
	})

	t.Run("file over defaults", func(t *testing.T) {
		opt, err := loadFloatOpt(cmdOpt{optFn: fn})
		require.NoError(t, err)
		assert.Equal(t, 0.5, opt.VarPr)
		assert.Equal(t, 2, opt.WghMode)
		assert.Equal(t, 4.0, opt.MaxDop)
		assert.Equal(t, m.NewFloatOpt().VarCp, opt.VarCp)
	})

	t.Run("flags over file", func(t *testing.T) {
		args := cmdOpt{
			optFn:    fn,
			wghMode:  0,
			varPr:    0.7, // not set explicitly
			varCp:    1e-4,
			setFlags: map[string]bool{"w": true, "varCp": true},
		}
		opt, err := loadFloatOpt(args)
		require.NoError(t, err)
		assert.Equal(t, 0, opt.WghMode)
		assert.Equal(t, 1e-4, opt.VarCp)
		assert.Equal(t, 0.5, opt.VarPr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadFloatOpt(cmdOpt{optFn: filepath.Join(t.TempDir(), "none.yaml")})
		assert.Error(t, err)
	})
}

func TestSelectSatellites(t *testing.T) {
	ep := &m.Epoch{Sats: []m.SatObs{{Sat: "G01"}, {Sat: "E02"}, {Sat: "C03"}, {Sat: "G04"}}}

	var args cmdOpt
	assert.Len(t, selectSatellites(args, ep).Sats, 4)

	require.NoError(t, args.sys.Set("G,C"))
	require.NoError(t, args.exSats.Set("G04"))
	sel := selectSatellites(args, ep)
	assert.Equal(t, []m.SatType{"G01", "C03"}, sel.SatNames())
	assert.Len(t, ep.Sats, 4)
}

func TestSelectSatellitesMask(t *testing.T) {
	epochs, err := readEpochs(testEpochFn)
	require.NoError(t, err)
	ep := epochs[0]

	tests := []struct {
		name   string
		elMask float64
		cnMask float64
		want   []m.SatType
	}{
		{"no mask", 0, 0, ep.SatNames()},
		{"elevation 20deg", 20, 0, []m.SatType{"G14", "G22", "G06", "G17", "G03", "G19", "G02"}},
		{"elevation 50deg", 50, 0, []m.SatType{"G14", "G22", "G17", "G03"}},
		{"signal strength 45dB-Hz", 0, 45, []m.SatType{"G14", "G22", "G17", "G03"}},
		{"both", 20, 43, []m.SatType{"G14", "G22", "G17", "G03", "G19"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := selectSatellites(cmdOpt{elMask: tt.elMask, cnMask: tt.cnMask}, ep)
			assert.Equal(t, tt.want, sel.SatNames())
		})
	}
}

func TestFillTrop(t *testing.T) {
	epochs, err := readEpochs(testEpochFn)
	require.NoError(t, err)
	ep := epochs[1]
	require.True(t, math.IsNaN(ep.Sats[1].Trop))

	modeled := selectSatellites(cmdOpt{}, ep)
	fillTrop(modeled, false)
	assert.InDelta(t, 9.1, modeled.Sats[1].Trop, 0.5)
	assert.Equal(t, ep.Sats[0].Trop, modeled.Sats[0].Trop)

	zero := selectSatellites(cmdOpt{}, ep)
	fillTrop(zero, true)
	assert.Equal(t, 0.0, zero.Sats[1].Trop)
}

func TestProcessEpochs(t *testing.T) {
	epochs, err := readEpochs(testEpochFn)
	require.NoError(t, err)

	// Last epoch has no satellites
	epochs = append(epochs, &m.Epoch{Time: epochs[1].Time.Add(30e9), ApproxPos: epochs[1].ApproxPos})

	args := cmdOpt{jobs: 2}
	results, err := processEpochs(context.Background(), args, m.NewFloatOpt(), epochs, discardLogger())
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := range results {
		assert.Equal(t, epochs[i].Time, results[i].time)
	}

	r := results[0]
	require.NoError(t, r.err)
	assert.False(t, r.rejected)
	assert.Len(t, r.sol.Amb, 9)
	assert.InDelta(t, 1234.5, r.sol.Clk*m.C, 1e-3)
	assert.InDelta(t, 1.15, r.dop.PDOP, 0.01)

	assert.ErrorIs(t, results[2].err, m.ErrInvalidEpoch)
	assert.False(t, results[2].rejected)

	// Input epochs are not modified
	assert.True(t, math.IsNaN(epochs[1].Sats[1].Trop))
}

func TestProcessEpochsCanceled(t *testing.T) {
	epochs, err := readEpochs(testEpochFn)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = processEpochs(ctx, cmdOpt{jobs: 1}, m.NewFloatOpt(), epochs, discardLogger())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPrintPos(t *testing.T) {
	epochs, err := readEpochs(testEpochFn)
	require.NoError(t, err)
	sol, dop, err := m.CalcFloatWithDop(epochs[0], m.NewFloatOpt())
	require.NoError(t, err)

	var buf bytes.Buffer
	printPosHeader(&buf, "/usr/bin/goppp", "0255.epo", "run-1", epochs)
	printPos(&buf, sol, dop)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "% program   : goppp", lines[0])
	assert.Equal(t, "% obs start : 2024/07/14 00:00:00.000(UTC)", lines[3])
	assert.Equal(t, "% obs end   : 2024/07/14 00:00:30.000(UTC)", lines[4])

	f := strings.Fields(lines[6])
	require.Len(t, f, 16)
	assert.Equal(t, "2024/07/14", f[0])
	assert.Equal(t, "00:00:00.000", f[1])
	assert.Equal(t, "2", f[5]) // Float
	assert.Equal(t, "9", f[6])
	assert.Equal(t, "9", f[7])
	assert.Equal(t, "1.155", f[12])
}

// Output whose final flush fails
type failingCloser struct {
	bytes.Buffer
}

func (*failingCloser) Close() error { return errors.New("disk full") }

func TestCloseOutput(t *testing.T) {
	assert.NoError(t, closeOutput(nil))
	assert.NoError(t, closeOutput(&nopCloser{io.Discard}))
	assert.EqualError(t, closeOutput(&failingCloser{}), "disk full")

	fn := filepath.Join(t.TempDir(), "out.pos")
	pos, err := prepareOutput(cmdOpt{posFn: fn})
	require.NoError(t, err)
	assert.NoError(t, closeOutput(pos))
	assert.Error(t, closeOutput(pos)) // already closed
}

func TestProcessEpochsDebugLog(t *testing.T) {
	epochs, err := readEpochs(testEpochFn)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := newLogger(&buf, 1)
	results, err := processEpochs(context.Background(), cmdOpt{jobs: 1}, m.NewFloatOpt(), epochs[:1], logger)
	require.NoError(t, err)
	require.NoError(t, results[0].err)

	log := buf.String()
	assert.Contains(t, log, `"msg":"satellite"`)
	assert.Contains(t, log, `"sat":"G14"`)
	assert.Contains(t, log, `"az":`)
	assert.Contains(t, log, `"msg":"solution"`)
	assert.Contains(t, log, `"xyz":"-3721695.`)
}

func TestRunMetrics(t *testing.T) {
	rm := newRunMetrics("run-1")

	sol := &m.FloatSol{Cov: &m.FloatCov{Sigma0Sq: 0.25}}
	rm.observe(&epochResult{sol: sol, dop: &m.Dop{PDOP: 1.2}})
	rm.observe(&epochResult{err: errors.New("chi"), rejected: true})
	rm.observe(&epochResult{err: errors.New("singular")})
	rm.observe(&epochResult{err: errors.New("singular")})

	assert.Equal(t, 1.0, testutil.ToFloat64(rm.epochsTotal.WithLabelValues(resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.epochsTotal.WithLabelValues(resultRejected)))
	assert.Equal(t, 2.0, testutil.ToFloat64(rm.epochsTotal.WithLabelValues(resultFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(rm.pdop))
	assert.Equal(t, 3, testutil.CollectAndCount(rm.epochsTotal))

	fn := filepath.Join(t.TempDir(), "goppp.prom")
	require.NoError(t, rm.writeTextfile(fn))
	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(b), `goppp_epochs_total{result="failed",run_id="run-1"} 2`)
	assert.Contains(t, string(b), "goppp_sigma0_sum")
}
