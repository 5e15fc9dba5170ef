// Package health provides liveness and readiness probes for the HTTP server.
//
// Probes run on a single background scheduler. Consecutive-failure and
// consecutive-success thresholds keep a flaky dependency from flapping the
// reported state on every poll.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailAfter = 3
	defaultRiseAfter = 1
)

// probe is one registered check plus its observed state. State transitions
// happen only on the scheduler goroutine; handlers read under mu.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	down    bool
	lastErr error
	fails   int
	oks     int
}

// observe runs the check once and applies the thresholds.
func (p *probe) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= defaultFailAfter {
			p.down = true
		}
		return
	}
	p.fails = 0
	if p.oks++; p.oks >= defaultRiseAfter {
		p.down = false
	}
}

// failure returns the failure message when the probe is down.
func (p *probe) failure() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.down {
		return "", false
	}
	if p.lastErr != nil {
		return p.lastErr.Error(), true
	}
	return "check is unhealthy", true
}

// Health aggregates liveness and readiness probes. The zero readiness state
// is not-ready; call SetReady(true) once startup completes and SetReady(false)
// when draining.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	live      []*probe
	readiness []*probe
	stop      context.CancelFunc
}

// New creates an empty, not-ready Health.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a process-level probe (goroutine leaks, GC
// pauses). A failing liveness probe signals the process should be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = append(h.live, &probe{name: name, timeout: timeout, check: check})
}

// AddReadinessCheck registers a dependency probe (database, downstream
// service). A failing readiness probe takes the instance out of rotation
// without restarting it.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, &probe{name: name, timeout: timeout, check: check})
}

// Start runs every registered probe once immediately and then on each tick
// of interval, until Stop or context cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := make([]*probe, 0, len(h.live)+len(h.readiness))
	probes = append(probes, h.live...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for _, p := range probes {
			p.observe(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, p := range probes {
					p.observe(ctx)
				}
			}
		}
	}()
}

// Stop cancels the scheduler. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady flips the manual readiness gate.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// is passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return len(h.failures(h.snapshot(&h.readiness))) == 0
}

// LiveEndpoint serves the liveness probe: 200 when every liveness check
// passes, 503 with per-check failure messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(h.snapshot(&h.live)))
}

// ReadyEndpoint serves the readiness probe. The manual gate shows up as a
// synthetic "_readiness" failure so drains are visible in the body.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(h.snapshot(&h.readiness))
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func (h *Health) snapshot(src *[]*probe) []*probe {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*probe, len(*src))
	copy(out, *src)
	return out
}

func (h *Health) failures(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if msg, down := p.failure(); down {
			failures[p.name] = msg
		}
	}
	return failures
}

// writeStatus renders {"status":"ok"} or an unhealthy body with the failing
// checks, using 503 so load balancers stop routing.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status := http.StatusOK
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		for name, msg := range failures {
			e.FieldStart(name)
			e.Str(msg)
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
