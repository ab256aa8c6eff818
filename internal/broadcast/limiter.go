package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	peerIdleTimeout = 10 * time.Minute
	sweepInterval   = 5 * time.Minute
)

// RejectReason describes why a connection was refused.
type RejectReason string

const (
	RejectGlobal RejectReason = "global_limit"
	RejectPerIP  RejectReason = "per_ip_limit"
	RejectRate   RejectReason = "rate_limit"
)

// LimitsConfig bounds inbound connections. Rate is new connections per second per IP.
type LimitsConfig struct {
	MaxConnections int
	MaxPerIP       int
	Rate           float64
	Burst          int
}

type peer struct {
	open     int
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limits enforces a global connection cap, a per-IP cap and a per-IP token bucket for new connections.
type Limits struct {
	cfg   LimitsConfig
	clock clockwork.Clock
	total atomic.Int64

	mu      sync.Mutex
	peers   map[string]*peer
	sweepAt time.Time
}

func NewLimits(cfg LimitsConfig, clock clockwork.Clock) *Limits {
	return &Limits{
		cfg:     cfg,
		clock:   clock,
		peers:   make(map[string]*peer),
		sweepAt: clock.Now().Add(sweepInterval),
	}
}

// Acquire reserves a slot for a connection from ip. On success the caller must Release it.
func (l *Limits) Acquire(ip string) (bool, RejectReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.sweepAt) {
		l.sweep(now)
		l.sweepAt = now.Add(sweepInterval)
	}

	p, ok := l.peers[ip]
	if !ok {
		p = &peer{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.peers[ip] = p
	}
	p.lastSeen = now

	// order: rate, global, per-IP
	if !p.limiter.AllowN(now, 1) {
		return false, RejectRate
	}
	if !l.acquireGlobal() {
		return false, RejectGlobal
	}
	if p.open >= l.cfg.MaxPerIP {
		l.total.Add(-1)
		return false, RejectPerIP
	}
	p.open++
	return true, ""
}

func (l *Limits) acquireGlobal() bool {
	max := int64(l.cfg.MaxConnections)
	for {
		current := l.total.Load()
		if current >= max {
			return false
		}
		if l.total.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *Limits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.peers[ip]; ok && p.open > 0 {
		p.open--
		p.lastSeen = l.clock.Now()
		l.total.Add(-1)
	}
}

// Open returns the number of connections currently holding a slot.
func (l *Limits) Open() int64 {
	return l.total.Load()
}

// OpenFrom returns the number of connections currently holding a slot for ip.
func (l *Limits) OpenFrom(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.peers[ip]; ok {
		return p.open
	}
	return 0
}

// Peers returns the number of addresses with tracked state.
func (l *Limits) Peers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.peers)
}

// sweep drops idle peers without open connections. Must be called with mu held.
func (l *Limits) sweep(now time.Time) {
	cutoff := now.Add(-peerIdleTimeout)
	for ip, p := range l.peers {
		if p.open == 0 && p.lastSeen.Before(cutoff) {
			delete(l.peers, ip)
		}
	}
}
