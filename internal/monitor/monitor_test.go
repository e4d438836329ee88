package monitor

import (
	"errors"
	"testing"
	"time"
)

type recordingReporter struct {
	rttMs   []float64
	healthy []bool
}

func (r *recordingReporter) SetLink(rttMs float64, healthy bool) {
	r.rttMs = append(r.rttMs, rttMs)
	r.healthy = append(r.healthy, healthy)
}

func TestSampleReportsSmoothedRTT(t *testing.T) {
	rep := &recordingReporter{}
	m := New("grid.example.org", time.Second, rep)
	m.pingFn = func(host string, timeout time.Duration) (time.Duration, float64, error) {
		return 40 * time.Millisecond, 0, nil
	}

	for i := 0; i < 12; i++ {
		m.sample()
	}

	if len(rep.rttMs) != 12 {
		t.Fatalf("reports = %d, want 12", len(rep.rttMs))
	}
	// constant 40ms input settles the moving average at 40
	last := rep.rttMs[len(rep.rttMs)-1]
	if last < 39 || last > 41 {
		t.Errorf("smoothed rtt = %v, want ~40", last)
	}
	if !rep.healthy[len(rep.healthy)-1] {
		t.Error("link reported unhealthy on clean pings")
	}
}

func TestSampleTotalLossUnhealthy(t *testing.T) {
	rep := &recordingReporter{}
	m := New("grid.example.org", time.Second, rep)
	m.pingFn = func(host string, timeout time.Duration) (time.Duration, float64, error) {
		return 0, 100, nil
	}

	m.sample()

	if rep.healthy[0] {
		t.Error("link reported healthy at 100% packet loss")
	}
}

func TestSamplePingFailure(t *testing.T) {
	rep := &recordingReporter{}
	m := New("grid.example.org", time.Second, rep)
	m.pingFn = func(host string, timeout time.Duration) (time.Duration, float64, error) {
		return 0, 0, errors.New("host unreachable")
	}

	m.sample()

	if rep.healthy[0] {
		t.Error("link reported healthy after ping failure")
	}
	if rep.rttMs[0] != 0 {
		t.Errorf("rtt = %v, want 0 on failure", rep.rttMs[0])
	}
}
