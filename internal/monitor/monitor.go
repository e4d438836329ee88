// Package monitor runs a background link check against a reference host so
// the health endpoint can report connectivity between probing sessions. It
// is independent of the grid client: losing the link surfaces here early,
// while the client itself only notices on its next send.
package monitor

import (
	"context"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/go-ping/ping"
	"github.com/rs/zerolog/log"
)

// Reporter receives link updates; satisfied by *health.Server.
type Reporter interface {
	SetLink(rttMs float64, healthy bool)
}

type Monitor struct {
	host     string
	interval time.Duration
	reporter Reporter
	avg      ewma.MovingAverage

	// injectable for tests
	pingFn func(host string, timeout time.Duration) (rtt time.Duration, loss float64, err error)
}

func New(host string, interval time.Duration, reporter Reporter) *Monitor {
	return &Monitor{
		host:     host,
		interval: interval,
		reporter: reporter,
		avg:      ewma.NewMovingAverage(),
		pingFn:   icmpPing,
	}
}

func (m *Monitor) Run(ctx context.Context) {
	log.Info().Str("host", m.host).Dur("interval", m.interval).Msg("link monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("link monitor stopping")
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	rtt, loss, err := m.pingFn(m.host, m.interval)
	if err != nil {
		log.Warn().Err(err).Str("host", m.host).Msg("link check failed")
		m.reporter.SetLink(0, false)
		return
	}

	m.avg.Add(float64(rtt) / float64(time.Millisecond))
	healthy := loss < 100
	m.reporter.SetLink(m.avg.Value(), healthy)

	log.Debug().
		Float64("rtt_ms", m.avg.Value()).
		Float64("packet_loss", loss).
		Msg("link sampled")
}

func icmpPing(host string, timeout time.Duration) (time.Duration, float64, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, 0, err
	}
	pinger.Count = 3
	pinger.Timeout = timeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return 0, 0, err
	}
	stats := pinger.Statistics()
	return stats.AvgRtt, stats.PacketLoss, nil
}
