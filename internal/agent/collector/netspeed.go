package collector

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"storewatch/internal/monitor"
)

const (
	// speedMeasureInterval amortizes the cost of probing: once at startup,
	// then roughly every 30 minutes.
	speedMeasureInterval = 30 * time.Minute
	speedProbeTimeout    = 10 * time.Second
	speedHistorySize     = 5

	bitsPerByte = 8
)

// defaultProbeURLs are small, well-distributed payloads. A sample is the
// arithmetic mean of per-URL throughput; individual probe failures are
// tolerated.
var defaultProbeURLs = []string{
	"https://speed.cloudflare.com/__down?bytes=1000000",
	"https://proof.ovh.net/files/1Mb.dat",
}

// SpeedProber measures downstream throughput on a long cadence and caches
// the result between samples.
type SpeedProber struct {
	urls   []string
	client *http.Client
	clock  monitor.Clock

	mu      sync.Mutex
	current *float64
	history []monitor.SpeedSample
	lastRun time.Time
}

func NewSpeedProber(urls []string, clock monitor.Clock) *SpeedProber {
	if len(urls) == 0 {
		urls = defaultProbeURLs
	}
	if clock == nil {
		clock = monitor.RealClock{}
	}
	return &SpeedProber{
		urls:   urls,
		client: &http.Client{Timeout: speedProbeTimeout},
		clock:  clock,
	}
}

// Snapshot returns the cached speed and a copy of the sample history.
func (p *SpeedProber) Snapshot() (*float64, []monitor.SpeedSample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var current *float64
	if p.current != nil {
		v := *p.current
		current = &v
	}
	return current, append([]monitor.SpeedSample(nil), p.history...)
}

// MeasureIfDue runs a measurement when none has run yet or the cadence has
// elapsed. Returns true when a measurement was attempted.
func (p *SpeedProber) MeasureIfDue(ctx context.Context) bool {
	p.mu.Lock()
	due := p.lastRun.IsZero() || p.clock.Now().Sub(p.lastRun) >= speedMeasureInterval
	if due {
		p.lastRun = p.clock.Now()
	}
	p.mu.Unlock()

	if !due {
		return false
	}
	p.measure(ctx)
	return true
}

func (p *SpeedProber) measure(ctx context.Context) {
	var total float64
	var ok int
	for _, url := range p.urls {
		mbps, err := p.probeOne(ctx, url)
		if err != nil {
			slog.Debug("network speed probe failed", "url", url, "err", err)
			continue
		}
		total += mbps
		ok++
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ok == 0 {
		// Total failure: report unknown rather than a stale number.
		p.current = nil
		return
	}
	mean := total / float64(ok)
	p.current = &mean
	p.history = append(p.history, monitor.SpeedSample{Timestamp: p.clock.Now(), Mbps: mean})
	if len(p.history) > speedHistorySize {
		p.history = p.history[len(p.history)-speedHistorySize:]
	}
	slog.Info("network speed measured", "mbps", mean, "probes", ok)
}

func (p *SpeedProber) probeOne(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		elapsed = time.Millisecond.Seconds()
	}
	return float64(n) * bitsPerByte / elapsed / 1e6, nil
}
