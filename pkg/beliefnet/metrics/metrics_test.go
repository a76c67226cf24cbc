package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector(nil)
	if c.Registry() == nil {
		t.Fatal("Prometheus registry not initialized")
	}

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	// Vectors without observations are not exported yet
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"beliefnet_compile_duration_seconds",
		"beliefnet_calibrations_total",
		"beliefnet_calibration_duration_seconds",
		"beliefnet_max_clique_table_size",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	if c.Registry() != reg {
		t.Error("collector should use the given registry")
	}

	defer func() {
		if recover() == nil {
			t.Error("registering twice on one registry should panic")
		}
	}()
	NewCollector(reg)
}

func TestRecordCompile(t *testing.T) {
	c := NewCollector(nil)

	c.RecordCompile(2*time.Millisecond, 3, 8, nil)
	c.RecordCompile(time.Millisecond, 0, 0, errors.New("boom"))
	c.RecordCompile(time.Millisecond, 4, 16, nil)

	var metric dto.Metric
	counter, err := c.CompilationsTotal.GetMetricWithLabelValues("ok")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("ok compilations = %v, want 2", metric.Counter.GetValue())
	}

	metric.Reset()
	counter, _ = c.CompilationsTotal.GetMetricWithLabelValues("error")
	counter.Write(&metric)
	if metric.Counter.GetValue() != 1 {
		t.Errorf("failed compilations = %v, want 1", metric.Counter.GetValue())
	}

	metric.Reset()
	c.MaxCliqueTableSize.Write(&metric)
	if metric.Gauge.GetValue() != 16 {
		t.Errorf("max table size = %v, want 16", metric.Gauge.GetValue())
	}

	metric.Reset()
	c.CompileDuration.Write(&metric)
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("compile duration samples = %d, want 2", metric.Histogram.GetSampleCount())
	}
}

func TestRecordCalibrationAndEvidence(t *testing.T) {
	c := NewCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordCalibration(time.Microsecond)
			c.RecordEvidence("enter")
		}()
	}
	wg.Wait()
	c.RecordEvidence("retract")

	var metric dto.Metric
	c.CalibrationsTotal.Write(&metric)
	if metric.Counter.GetValue() != 10 {
		t.Errorf("calibrations = %v, want 10", metric.Counter.GetValue())
	}

	metric.Reset()
	counter, _ := c.EvidenceUpdatesTotal.GetMetricWithLabelValues("enter")
	counter.Write(&metric)
	if metric.Counter.GetValue() != 10 {
		t.Errorf("enter updates = %v, want 10", metric.Counter.GetValue())
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordCompile(time.Second, 1, 1, nil)
	c.RecordCalibration(time.Second)
	c.RecordEvidence("enter")
	if c.Registry() != nil {
		t.Error("nil collector should have no registry")
	}
}
