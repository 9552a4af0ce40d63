package peers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

const (
	pollInterval      = 30 * time.Second
	probeBudget       = 3 * time.Second
	failureThreshold  = 3
	failureQuietPause = 120 * time.Second
	maxProbeHistory   = 50
)

// Sink receives liveness transitions the Registry fires on the Bus
// (spec §4.E: "every transition into or out of online fires a bus event").
type Sink interface {
	PeerOnline(peer, host string)
	PeerOffline(peer, host string)
}

// Registry owns PeerConfig and the live status table, and drives the
// periodic probe loop.
type Registry struct {
	root   string
	logger hclog.Logger
	sinks  []Sink
	client *http.Client
	start  time.Time

	mu        sync.RWMutex
	cfg       PeerConfig
	cfgMtime  time.Time
	statuses  map[string]*LiveStatus
	backoffs  map[string]*backoff.ExponentialBackOff
	nextProbe map[string]time.Time
	history   map[string][]ProbeOutcome

	cancel context.CancelFunc
}

// New loads (or synthesizes) the peer config at root and builds an empty
// status table; call Start to begin probing.
func New(root string, logger hclog.Logger) (*Registry, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cfg, mtime, err := loadOrSynthesize(root)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		root:      root,
		logger:    logger.Named("peers"),
		client:    &http.Client{},
		start:     time.Now(),
		cfg:       cfg,
		cfgMtime:  mtime,
		statuses:  make(map[string]*LiveStatus),
		backoffs:  make(map[string]*backoff.ExponentialBackOff),
		nextProbe: make(map[string]time.Time),
		history:   make(map[string][]ProbeOutcome),
	}
	r.syncStatusTable()
	return r, nil
}

// AddSink registers a listener for online/offline transitions.
func (r *Registry) AddSink(s Sink) { r.sinks = append(r.sinks, s) }

// Self returns this instance's own federation identity.
func (r *Registry) Self() Self {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Self
}

// Uptime reports how long the Registry has been running, for hello responses.
func (r *Registry) Uptime() time.Duration { return time.Since(r.start) }

// Statuses returns a snapshot of every configured peer's live status.
func (r *Registry) Statuses() []LiveStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LiveStatus, 0, len(r.cfg.Peers))
	for _, p := range r.cfg.Peers {
		if s, ok := r.statuses[p.Name]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Get returns the configured peer and its live status by name.
func (r *Registry) Get(name string) (ConfiguredPeer, LiveStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.cfg.Peers {
		if p.Name == name {
			s := r.statuses[name]
			if s == nil {
				return p, LiveStatus{}, false
			}
			return p, *s, true
		}
	}
	return ConfiguredPeer{}, LiveStatus{}, false
}

// Online returns the configured peers currently marked online.
func (r *Registry) Online() []ConfiguredPeer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ConfiguredPeer
	for _, p := range r.cfg.Peers {
		if s, ok := r.statuses[p.Name]; ok && s.Status == StatusOnline {
			out = append(out, p)
		}
	}
	return out
}

// Start launches the hot-reload + probe loop; it returns immediately.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.loop(ctx)
}

// Stop halts the probe loop.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Registry) loop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	r.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reloadIfChanged()
			r.probeAll(ctx)
		}
	}
}

// reloadIfChanged re-reads the config file when its mtime has advanced,
// adding new peers in "unknown" state, dropping removed ones, and leaving
// existing peers' live state untouched (spec §4.E).
func (r *Registry) reloadIfChanged() {
	mtime := statMtime(r.root)
	r.mu.RLock()
	unchanged := mtime.Equal(r.cfgMtime) || mtime.IsZero()
	r.mu.RUnlock()
	if unchanged {
		return
	}

	cfg, newMtime, err := loadOrSynthesize(r.root)
	if err != nil {
		r.logger.Warn("failed to hot-reload peer config", "error", err)
		return
	}

	r.mu.Lock()
	r.cfg = cfg
	r.cfgMtime = newMtime
	r.mu.Unlock()
	r.syncStatusTable()
	r.logger.Info("peer config hot-reloaded", "peers", len(cfg.Peers))
}

// syncStatusTable adds unknown-status entries for newly configured peers
// and drops entries for peers no longer configured.
func (r *Registry) syncStatusTable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool, len(r.cfg.Peers))
	for _, p := range r.cfg.Peers {
		want[p.Name] = true
		if _, ok := r.statuses[p.Name]; !ok {
			r.statuses[p.Name] = &LiveStatus{
				Name:     p.Name,
				Host:     p.Host,
				Port:     p.Port,
				Protocol: p.Protocol,
				Status:   StatusUnknown,
			}
		}
	}
	for name := range r.statuses {
		if !want[name] {
			delete(r.statuses, name)
			delete(r.backoffs, name)
			delete(r.nextProbe, name)
			delete(r.history, name)
		}
	}
}

// History returns the last probe outcomes recorded for name, oldest
// first, or an empty slice if the peer has never been probed or isn't
// configured.
func (r *Registry) History(name string) []ProbeOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.history[name]
	out := make([]ProbeOutcome, len(h))
	copy(out, h)
	return out
}

// recordProbe appends to name's bounded probe-history ring buffer.
// Callers must hold r.mu for writing.
func (r *Registry) recordProbe(name string, outcome ProbeOutcome) {
	h := append(r.history[name], outcome)
	if n := len(h); n > maxProbeHistory {
		h = h[n-maxProbeHistory:]
	}
	r.history[name] = h
}

func (r *Registry) probeAll(ctx context.Context) {
	r.mu.RLock()
	peersCopy := make([]ConfiguredPeer, len(r.cfg.Peers))
	copy(peersCopy, r.cfg.Peers)
	r.mu.RUnlock()

	for _, p := range peersCopy {
		if r.shouldSkip(p.Name) {
			continue
		}
		r.probeOne(ctx, p)
	}
}

// shouldSkip implements the 120s re-probe throttle once a peer has hit
// the failure threshold (spec §4.E).
func (r *Registry) shouldSkip(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[name]
	if !ok || s.ConsecutiveFailures < failureThreshold {
		return false
	}
	if s.LastSeen.IsZero() {
		return false
	}
	return time.Since(s.LastSeen) < failureQuietPause
}

func (r *Registry) probeOne(ctx context.Context, p ConfiguredPeer) {
	probeCtx, cancel := context.WithTimeout(ctx, probeBudget)
	defer cancel()

	started := time.Now()
	resp, err := r.hello(probeCtx, p)
	latency := time.Since(started)

	r.mu.Lock()
	s := r.statuses[p.Name]
	if s == nil {
		s = &LiveStatus{Name: p.Name, Host: p.Host, Port: p.Port, Protocol: p.Protocol}
		r.statuses[p.Name] = s
	}
	wasOnline := s.Status == StatusOnline

	if err != nil {
		s.Status = StatusOffline
		s.ConsecutiveFailures++
		s.LastSeen = started
		r.bump(p.Name)
		r.recordProbe(p.Name, ProbeOutcome{At: started, Online: false, Error: err.Error()})
		r.mu.Unlock()

		if wasOnline {
			r.logger.Info("peer went offline", "peer", p.Name, "error", err)
			r.fireOffline(p.Name, p.Host)
		}
		return
	}

	s.Status = StatusOnline
	s.InstanceID = resp.InstanceID
	s.DisplayName = resp.DisplayName
	s.SharedFolders = resp.SharedFolders
	s.SharedTags = resp.SharedTags
	s.DocumentCount = resp.DocumentCount
	s.LatencyMs = latency.Milliseconds()
	s.LastSeen = time.Now()
	s.ConsecutiveFailures = 0
	delete(r.backoffs, p.Name)
	r.recordProbe(p.Name, ProbeOutcome{At: started, Online: true, LatencyMs: latency.Milliseconds()})
	r.mu.Unlock()

	if !wasOnline {
		r.logger.Info("peer came online", "peer", p.Name, "latencyMs", latency.Milliseconds())
		r.fireOnline(p.Name, p.Host)
	}
}

// bump advances (and lazily creates) the per-peer exponential backoff
// sequence on failure. It's bookkeeping only: the hard 120s/3-failure
// gate in shouldSkip is what actually governs re-probe eligibility per
// §4.E; this tracks a smoothly growing interval for logging/diagnostics
// between the 30s ticker and that gate.
func (r *Registry) bump(name string) time.Duration {
	b, ok := r.backoffs[name]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = pollInterval
		b.MaxInterval = failureQuietPause
		b.Multiplier = 2
		b.RandomizationFactor = 0
		r.backoffs[name] = b
	}
	next := b.NextBackOff()
	r.nextProbe[name] = time.Now().Add(next)
	return next
}

func (r *Registry) fireOnline(name, host string) {
	for _, s := range r.sinks {
		s.PeerOnline(name, host)
	}
}

func (r *Registry) fireOffline(name, host string) {
	for _, s := range r.sinks {
		s.PeerOffline(name, host)
	}
}

// hello issues the "hello" probe (spec §4.G peer-facing contract).
func (r *Registry) hello(ctx context.Context, p ConfiguredPeer) (*HelloResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL()+"/api/federation/peer/hello", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	var out HelloResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return "peer hello returned status " + http.StatusText(e.status)
}
