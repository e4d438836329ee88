// Package probe measures a worker's connection quality against a grid
// server: round-trip latency, upload throughput, and an adaptively sized
// streaming download measurement. The server uses the result to admit or
// schedule federated-learning cycles.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/openfed/gridworker/internal/transport"
)

// Tuning of the download probe. One probing window reads
// bufferSize/ChunkSize chunks; windows that finish under minWindow grow by
// SpeedMultFactor up to MaxBufferSize and are discarded rather than sampled.
const (
	ChunkSize       = 8192
	MaxBufferSize   = 1 << 20
	SpeedMultFactor = 10
	CheckSpeedIter  = 10

	minWindow           = 500 * time.Millisecond
	convergenceBandKBps = 20.0

	// The upload probe posts one fixed 64 MiB body.
	uploadPayloadSize = 64 * MaxBufferSize
)

const speedTestPath = "/federated/speed-test"

// ErrInsufficientSamples means the download probe never completed a full
// measurement window, so no average speed can be formed.
var ErrInsufficientSamples = errors.New("probe: insufficient download samples")

// Speed is the result of one probing session. Field names match the
// federated/cycle-request wire contract.
type Speed struct {
	PingMs       float64 `json:"ping"`
	DownloadKBps float64 `json:"download"`
	UploadKBps   float64 `json:"upload"`
}

// Transport is the slice of the HTTP transport the prober needs.
type Transport interface {
	Do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error)
	StreamingGet(ctx context.Context, path string, params url.Values, chunkSize int) (*transport.Stream, error)
}

// Prober runs speed measurements over a Transport. One Prober is safe to
// reuse across sessions; each Measure call is an independent session.
type Prober struct {
	transport Transport
	limiter   *rate.Limiter
	now       func() time.Time
}

// New builds a prober. rateLimitMB > 0 caps download-probe reads at that
// many MB/s so the probe stays bounded on metered links; 0 disables the cap.
func New(t Transport, rateLimitMB float64) *Prober {
	p := &Prober{transport: t, now: time.Now}
	if rateLimitMB > 0 {
		bps := rateLimitMB * 1024 * 1024
		p.limiter = rate.NewLimiter(rate.Limit(bps), int(bps))
	}
	return p
}

// Measure runs the ping, upload and download probes strictly in that order,
// sharing one random correlation token so the server can group the three
// requests into a single session.
func (p *Prober) Measure(ctx context.Context, workerID string) (Speed, error) {
	token := uuid.NewString()

	ping, err := p.pingMs(ctx, workerID, token)
	if err != nil {
		return Speed{}, fmt.Errorf("ping probe: %w", err)
	}
	upload, err := p.uploadKBps(ctx, workerID, token)
	if err != nil {
		return Speed{}, fmt.Errorf("upload probe: %w", err)
	}
	download, err := p.downloadKBps(ctx, workerID, token)
	if err != nil {
		return Speed{}, fmt.Errorf("download probe: %w", err)
	}

	log.Info().
		Float64("ping_ms", ping).
		Float64("upload_kbps", upload).
		Float64("download_kbps", download).
		Msg("connection speed measured")
	return Speed{PingMs: ping, DownloadKBps: download, UploadKBps: upload}, nil
}

// pingMs is a single wall-clock round trip, no retry, no averaging.
func (p *Prober) pingMs(ctx context.Context, workerID, token string) (float64, error) {
	params := url.Values{
		"is_ping":   {"1"},
		"worker_id": {workerID},
		"random":    {token},
	}
	start := p.now()
	if _, err := p.transport.Do(ctx, http.MethodGet, speedTestPath, params, nil); err != nil {
		return 0, err
	}
	return float64(p.now().Sub(start)) / float64(time.Millisecond), nil
}

// uploadKBps times one POST of a fixed synthetic payload.
func (p *Prober) uploadKBps(ctx context.Context, workerID, token string) (float64, error) {
	params := url.Values{
		"worker_id": {workerID},
		"random":    {token},
	}
	payload := bytes.Repeat([]byte{'x'}, uploadPayloadSize)

	start := p.now()
	if _, err := p.transport.Do(ctx, http.MethodPost, speedTestPath, params, payload); err != nil {
		return 0, err
	}
	elapsed := p.now().Sub(start).Seconds()
	if elapsed <= 0 {
		return 0, errors.New("non-positive upload duration")
	}
	return float64(uploadPayloadSize) / 1024 / elapsed, nil
}

// downloadKBps consumes the streaming speed-test body in timed windows. A
// window that finishes under minWindow is too small to give a stable rate:
// it is discarded and the window grows for the next attempt. Recorded
// samples are checked for convergence every CheckSpeedIter entries; once the
// running average sits within convergenceBandKBps of the minimum sample the
// link is considered stable and the probe stops early.
func (p *Prober) downloadKBps(ctx context.Context, workerID, token string) (float64, error) {
	params := url.Values{
		"worker_id": {workerID},
		"random":    {token},
	}
	stream, err := p.transport.StreamingGet(ctx, speedTestPath, params, ChunkSize)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	var history []float64
	bufferSize := ChunkSize
	windowStart := p.now()
	for {
		exhausted, err := p.readWindow(ctx, stream, bufferSize/ChunkSize)
		if err != nil {
			return 0, err
		}
		if exhausted {
			// Body ended mid-window; the partial window is discarded and
			// whatever samples exist decide the result.
			break
		}
		elapsed := p.now().Sub(windowStart)
		windowStart = p.now()

		if elapsed < minWindow {
			bufferSize *= SpeedMultFactor
			if bufferSize > MaxBufferSize {
				bufferSize = MaxBufferSize
			}
			continue
		}

		history = append(history, float64(bufferSize)/(elapsed.Seconds()*1024))
		if len(history)%CheckSpeedIter == 0 && converged(history) {
			break
		}
	}

	if len(history) == 0 {
		return 0, ErrInsufficientSamples
	}
	return mean(history), nil
}

// readWindow consumes n chunks. exhausted reports a clean end of body; any
// other read failure aborts the probe.
func (p *Prober) readWindow(ctx context.Context, stream *transport.Stream, n int) (exhausted bool, err error) {
	for i := 0; i < n; i++ {
		if p.limiter != nil {
			if err := p.limiter.WaitN(ctx, ChunkSize); err != nil {
				return false, err
			}
		}
		if _, err := stream.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}

func converged(history []float64) bool {
	avg := mean(history)
	low := history[0]
	for _, s := range history[1:] {
		if s < low {
			low = s
		}
	}
	return avg-low < convergenceBandKBps && avg > 0
}

func mean(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
