// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "github.com/prometheus/client_golang/prometheus"

var (
	linesWrittenDesc = prometheus.NewDesc("benchtop_transport_lines_written_total",
		"Command lines written to the instrument.", []string{"address"}, nil)
	linesReadDesc = prometheus.NewDesc("benchtop_transport_lines_read_total",
		"Response lines read from the instrument.", []string{"address"}, nil)
	bytesWrittenDesc = prometheus.NewDesc("benchtop_transport_bytes_written_total",
		"Bytes written to the instrument.", []string{"address"}, nil)
	bytesReadDesc = prometheus.NewDesc("benchtop_transport_bytes_read_total",
		"Bytes read from the instrument.", []string{"address"}, nil)
	timeoutsDesc = prometheus.NewDesc("benchtop_transport_timeouts_total",
		"Reads that timed out.", []string{"address"}, nil)
	errorsDesc = prometheus.NewDesc("benchtop_transport_errors_total",
		"Failed reads and writes other than timeouts.", []string{"address"}, nil)
)

var _ prometheus.Collector = (*Registry)(nil)

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- linesWrittenDesc
	ch <- linesReadDesc
	ch <- bytesWrittenDesc
	ch <- bytesReadDesc
	ch <- timeoutsDesc
	ch <- errorsDesc
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.Range(func(address string, s *Statistics) bool {
		counter := func(desc *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), address)
		}
		counter(linesWrittenDesc, s.LinesWritten.Load())
		counter(linesReadDesc, s.LinesRead.Load())
		counter(bytesWrittenDesc, s.BytesWritten.Load())
		counter(bytesReadDesc, s.BytesRead.Load())
		counter(timeoutsDesc, s.Timeouts.Load())
		counter(errorsDesc, s.Errors.Load())
		return true
	})
}
