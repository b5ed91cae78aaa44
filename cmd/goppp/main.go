// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	m "github.com/mkhts/goppp"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	// Structured log on stderr, pos file on stdout or -o
	runID := uuid.New().String()
	logger := newLogger(os.Stderr, args.dbg).With("run_id", runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run the main application
	if err := runApplication(ctx, args, runID, logger); err != nil {
		logger.Error("goppp failed", "error", err)
		os.Exit(1)
	}
}

// Debug level 0 logs info and above, 1 or more adds debug records
func newLogger(w io.Writer, dbg int) *slog.Logger {
	level := slog.LevelInfo
	if dbg >= 1 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Main application processing
func runApplication(ctx context.Context, args cmdOpt, runID string, logger *slog.Logger) (err error) {

	// Load options
	opt, err := loadFloatOpt(args)
	if err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}
	logger.Debug("options", "var_pr", opt.VarPr, "var_cp", opt.VarCp, "wgh_mode", opt.WghMode,
		"rank_tol", opt.RankTol, "max_dop", opt.MaxDop, "no_chi_test", opt.NoChiTest)

	// Load input file
	epochs, err := readEpochs(args.epochFn)
	if err != nil {
		return fmt.Errorf("failed to read epoch file: %w", err)
	}
	logger.Info("epochs loaded", "file", args.epochFn, "epochs", len(epochs))

	// Prepare output file
	pos, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer func() {
		if cerr := closeOutput(pos); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	// Print header
	if !args.noPosHeader {
		printPosHeader(pos, os.Args[0], args.epochFn, runID, epochs)
	}

	// Process epochs
	rm := newRunMetrics(runID)
	results, err := processEpochs(ctx, args, opt, epochs, logger)
	if err != nil {
		return err
	}

	// Output results in epoch order
	nOK := 0
	for i := range results {
		r := &results[i]
		rm.observe(r)
		if r.err != nil {
			logger.Warn("epoch skipped", "epoch", r.time, "error", r.err)
			continue
		}
		nOK++
		printPos(pos, r.sol, r.dop)
	}
	logger.Info("epochs processed", "solved", nOK, "skipped", len(results)-nOK)

	// Write metrics
	if len(args.metricsFn) > 0 {
		if err := rm.writeTextfile(args.metricsFn); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// Result of a single epoch
type epochResult struct {
	time     time.Time
	sol      *m.FloatSol
	dop      *m.Dop
	err      error
	rejected bool // Solved but failed validation
	elapsed  time.Duration
}

// Process epochs concurrently. Results keep the input order.
func processEpochs(ctx context.Context, args cmdOpt, opt m.FloatOpt, epochs []*m.Epoch, logger *slog.Logger) ([]epochResult, error) {
	results := make([]epochResult, len(epochs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(args.jobs)
	for i, ep := range epochs {
		i, ep := i, ep
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = processSingleEpoch(args, opt, ep, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("processing interrupted: %w", err)
	}
	return results, nil
}

// Process single epoch
func processSingleEpoch(args cmdOpt, opt m.FloatOpt, ep *m.Epoch, logger *slog.Logger) (r epochResult) {
	start := time.Now()
	r.time = ep.Time
	defer func() {
		r.elapsed = time.Since(start)
	}()

	// Select satellites
	ep = selectSatellites(args, ep)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		for i := range ep.Sats {
			s := &ep.Sats[i]
			logger.Debug("satellite", "epoch", ep.Time, "sat", s.Sat,
				"az", m.ToDeg(ep.ApproxPos.Azimuth(s.SatPos)), "el", m.ToDeg(s.Elev), "snr", s.Snr, "phase", s.HasCp)
		}
	}

	// Fill tropospheric delays not given in the file
	fillTrop(ep, args.noTrop)

	// Calculate float solution
	sol, dop, err := m.CalcFloatWithDop(ep, opt)
	if err != nil {
		r.err = fmt.Errorf("failed to calculate float solution: %w", err)
		if errors.Is(err, m.ErrSingularNormalMatrix) || errors.Is(err, m.ErrDegenerateGeometry) {
			logger.Debug("no solution", "epoch", ep.Time, "sats", len(ep.Sats), "error", err)
		}
		return
	}
	llh := sol.Pos.ToLLH()
	logger.Debug("solution", "epoch", ep.Time, "xyz", sol.Pos.String(), "llh", llh.String(),
		"amb_m", sol.AmbM)
	if args.dbg >= 2 {
		logger.Debug("design matrix", "epoch", ep.Time, "A", fmt.Sprintf("%.4g", mat.Formatted(sol.DesMat, mat.Squeeze())))
		logger.Debug("residuals", "epoch", ep.Time, "v", fmt.Sprintf("%.4g", mat.Formatted(sol.ResVec.T(), mat.Squeeze())))
	}

	// Validate solution
	if err := m.ValidateFloatSol(sol, dop, opt); err != nil {
		r.err = fmt.Errorf("solution rejected: %w", err)
		r.rejected = true
		return
	}
	r.sol = sol
	r.dop = dop
	return
}

// Satellites of the selected systems, not excluded and above the masks
func selectSatellites(args cmdOpt, ep *m.Epoch) *m.Epoch {
	return ep.Filter(func(s *m.SatObs) bool {
		if !args.sys.Contains(s.Sat.Sys()) || slices.Contains(args.exSats, s.Sat) {
			return false
		}
		if args.elMask > 0 && s.Elev < m.ToRad(args.elMask) {
			return false
		}
		if args.cnMask > 0 && s.Snr < args.cnMask {
			return false
		}
		return true
	})
}

// Replace unknown (NaN) tropospheric delays with the model value or 0
func fillTrop(ep *m.Epoch, noTrop bool) {
	for i := range ep.Sats {
		s := &ep.Sats[i]
		if !math.IsNaN(s.Trop) {
			continue
		}
		if noTrop {
			s.Trop = 0
		} else {
			s.Trop = m.TropDelay(ep.Time, &ep.ApproxPos, s.Elev)
		}
	}
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(args.posFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	// Create output file
	posf, err := os.Create(args.posFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return posf, nil
}

// Close output file. The error of the final flush is returned.
func closeOutput(pos io.WriteCloser) error {
	if pos == nil {
		return nil
	}
	return pos.Close()
}

// Structure to hold command line argument information
type cmdOpt struct {
	epochFn     string
	posFn       string
	optFn       string
	metricsFn   string
	noPosHeader bool
	sys         m.SysVar
	exSats      m.SatVar
	elMask      float64
	cnMask      float64
	wghMode     int
	varPr       float64
	varCp       float64
	maxDop      float64
	noChiTest   bool
	noTrop      bool
	jobs        int
	dbg         int
	setFlags    map[string]bool
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `
[Usage]
	%s [Options] epochs.txt

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	fOpt := m.NewFloatOpt()
	flag.StringVar(&a.posFn, "o", "", "Output pos file path. If not specified, output to stdout.")
	flag.StringVar(&a.optFn, "c", "", "Option file (YAML). Command line options override the file.")
	flag.StringVar(&a.metricsFn, "metrics", "", "Write run metrics to this file in Prometheus text format.")
	flag.BoolVar(&a.noPosHeader, "nh", false, "Do not output header section of pos file.")
	flag.Var(&a.sys, "sys", "Satellite systems to use for calculation. G(GPS), J(QZSS), E(Galileo), R(Glonass), C(Beidou). Comma-separated without spaces. Default: all")
	flag.Var(&a.exSats, "ex", "List of satellites to exclude. Comma-separated satellite names without spaces like C02,E14.")
	flag.Float64Var(&a.elMask, "m", 0, "Elevation mask [deg]. Set to 0 for no mask.")
	flag.Float64Var(&a.cnMask, "cn", 0, "Signal strength mask [dB-Hz]. Set to 0 for no mask.")
	flag.IntVar(&a.wghMode, "w", fOpt.WghMode, "Weighting method. 0(no weighting),1(RTKLIB method),2(RTK core method),3(GPS practical programming book method),4(SNR),5(elevation and SNR)")
	flag.Float64Var(&a.varPr, "varPr", fOpt.VarPr, "A priori variance of pseudorange [m^2]")
	flag.Float64Var(&a.varCp, "varCp", fOpt.VarCp, "A priori variance of carrier phase [m^2]")
	flag.Float64Var(&a.maxDop, "dop", fOpt.MaxDop, "Output no results when PDOP exceeds this value. Set to 0 to always output regardless of PDOP.")
	flag.BoolVar(&a.noChiTest, "nx2", fOpt.NoChiTest, "Specify to not perform solution evaluation by chi-square test. Default is to perform.")
	flag.BoolVar(&a.noTrop, "ntr", false, "Do not fill missing tropospheric delays with the model (use 0).")
	flag.IntVar(&a.jobs, "j", runtime.NumCPU(), "Number of epochs solved concurrently.")
	flag.IntVar(&a.dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(with matrices)")
	flag.Parse()

	if flag.NArg() != 1 {
		return a, fmt.Errorf("too less or many arguments")
	}
	a.epochFn = flag.Arg(0)
	if a.jobs < 1 {
		a.jobs = 1
	}

	// Remember explicitly set flags so that they override the option file
	a.setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		a.setFlags[f.Name] = true
	})
	return
}

// Options: defaults, then the option file, then explicit flags
func loadFloatOpt(args cmdOpt) (m.FloatOpt, error) {
	opt := m.NewFloatOpt()
	if len(args.optFn) > 0 {
		f, err := os.Open(args.optFn)
		if err != nil {
			return opt, err
		}
		defer f.Close()
		opt, err = m.LoadFloatOpt(f)
		if err != nil {
			return opt, err
		}
	}
	if args.setFlags["w"] {
		opt.WghMode = args.wghMode
	}
	if args.setFlags["varPr"] {
		opt.VarPr = args.varPr
	}
	if args.setFlags["varCp"] {
		opt.VarCp = args.varCp
	}
	if args.setFlags["dop"] {
		opt.MaxDop = args.maxDop
	}
	if args.setFlags["nx2"] {
		opt.NoChiTest = args.noChiTest
	}
	return opt, nil
}

// Read epoch file
func readEpochs(fn string) ([]*m.Epoch, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	epochs, err := m.ReadEpochs(f)
	if err != nil {
		return nil, err
	}
	return epochs, nil
}

// Print pos file header
func printPosHeader(pos io.Writer, cmd, epochFn, runID string, epochs []*m.Epoch) {
	fmt.Fprintf(pos, "%% program   : %s\n", filepath.Base(cmd))
	fmt.Fprintf(pos, "%% run id    : %s\n", runID)
	fmt.Fprintf(pos, "%% inp file  : %s\n", epochFn)
	if len(epochs) > 0 {
		fmt.Fprintf(pos, "%% obs start : %s(UTC)\n", epochs[0].Time.UTC().Format("2006/01/02 15:04:05.000"))
		fmt.Fprintf(pos, "%% obs end   : %s(UTC)\n", epochs[len(epochs)-1].Time.UTC().Format("2006/01/02 15:04:05.000"))
	}
	fmt.Fprintf(pos, "%%  UTC                  latitude(deg) longitude(deg)  height(m)   Q  ns  na      clk_bias(s)      isb(E)(s)      isb(R)(s)      isb(C)(s)       pdop       hdop       vdop     sigma0\n")
}

// Output POS file
func printPos(pos io.Writer, sol *m.FloatSol, dop *m.Dop) {
	Q := 2 // Float
	if len(sol.Amb) == 0 {
		Q = 5 // Code only
	}
	llh := sol.Pos.ToLLH()
	tStr := sol.Time.UTC().Format("2006/01/02 15:04:05.000")

	// Inter-system biases of E, R and C
	isb := [3]float64{}
	for k, tag := range sol.IsbSys {
		if tag >= 2 && tag <= 4 {
			isb[tag-2] = sol.Isb[k]
		}
	}
	fmt.Fprintf(pos, "%s %13.9f %14.9f %10.4f %3d %3d %3d %16.4e %14.4e %14.4e %14.4e %10.3f %10.3f %10.3f %10.4f\n",
		tStr, m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei, Q, len(sol.Sats), len(sol.Amb),
		sol.Clk, isb[0], isb[1], isb[2], dop.PDOP, dop.HDOP, dop.VDOP, math.Sqrt(sol.Sigma0Sq()))
}
