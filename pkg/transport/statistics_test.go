// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsString(t *testing.T) {
	s := NewStatistics()
	s.incLinesWritten()
	s.addBytesWritten(7)

	out := s.String()
	assert.Contains(t, out, "Lines Written:          1")
	assert.Contains(t, out, "Bytes Written:          7")
	assert.NotContains(t, out, "Timeouts")

	s.incTimeouts()
	assert.Contains(t, s.String(), "Timeouts:               1")
}

func TestRegistryConcurrent(t *testing.T) {
	reg := NewRegistry()
	addresses := []string{"GPIB0::7::INSTR", "GPIB0::8::INSTR", "/dev/ttyUSB0"}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			reg.For(addr).incLinesWritten()
		}(addresses[i%len(addresses)])
	}
	wg.Wait()

	seen := map[string]uint64{}
	reg.Range(func(addr string, s *Statistics) bool {
		seen[addr] = s.LinesWritten.Load()
		return true
	})
	assert.Equal(t, map[string]uint64{
		"GPIB0::7::INSTR": 10,
		"GPIB0::8::INSTR": 10,
		"/dev/ttyUSB0":    10,
	}, seen)
}

func TestRegistryCollector(t *testing.T) {
	reg := NewRegistry()
	reg.For("GPIB0::7::INSTR").addBytesRead(42)
	reg.For("/dev/ttyUSB0").incTimeouts()

	pr := prometheus.NewPedanticRegistry()
	require.NoError(t, pr.Register(reg))

	assert.Equal(t, 12, testutil.CollectAndCount(reg))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "benchtop_transport_bytes_read_total"))

	families, err := pr.Gather()
	require.NoError(t, err)

	var bytesRead float64
	for _, mf := range families {
		if mf.GetName() != "benchtop_transport_bytes_read_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetLabel()[0].GetValue() == "GPIB0::7::INSTR" {
				bytesRead = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 42.0, bytesRead)
}
