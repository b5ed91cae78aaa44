// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package main

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch metrics written to a node-exporter textfile at the end of a run
type runMetrics struct {
	reg         *prometheus.Registry
	epochsTotal *prometheus.CounterVec
	pdop        prometheus.Histogram
	sigma0      prometheus.Histogram
	solveTime   prometheus.Histogram
}

func newRunMetrics(runID string) *runMetrics {
	labels := prometheus.Labels{"run_id": runID}
	rm := &runMetrics{
		reg: prometheus.NewRegistry(),
		epochsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "goppp_epochs_total",
				Help:        "Total number of processed epochs by result.",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		pdop: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "goppp_pdop",
				Help:        "PDOP of solved epochs.",
				ConstLabels: labels,
				Buckets:     []float64{1, 1.5, 2, 3, 5, 10, 20},
			},
		),
		sigma0: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "goppp_sigma0",
				Help:        "A posteriori standard deviation of unit weight of solved epochs.",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(0.1, 2, 8),
			},
		),
		solveTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "goppp_solve_duration_seconds",
				Help:        "Time to solve one epoch in seconds.",
				ConstLabels: labels,
				Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 8),
			},
		),
	}
	rm.reg.MustRegister(rm.epochsTotal, rm.pdop, rm.sigma0, rm.solveTime)
	return rm
}

// Result label values
const (
	resultOK       = "ok"
	resultFailed   = "failed"
	resultRejected = "rejected"
)

func (rm *runMetrics) observe(r *epochResult) {
	switch {
	case r.err == nil:
		rm.epochsTotal.WithLabelValues(resultOK).Inc()
		if r.dop != nil {
			rm.pdop.Observe(r.dop.PDOP)
		}
		if r.sol.Cov != nil {
			rm.sigma0.Observe(math.Sqrt(r.sol.Cov.Sigma0Sq))
		}
	case r.rejected:
		rm.epochsTotal.WithLabelValues(resultRejected).Inc()
	default:
		rm.epochsTotal.WithLabelValues(resultFailed).Inc()
	}
	rm.solveTime.Observe(r.elapsed.Seconds())
}

// Write all metrics to path in the text exposition format
func (rm *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, rm.reg)
}
