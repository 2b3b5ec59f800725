package proxy

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
)

type endpoint struct {
	address  string
	useCount int
	lastUsed time.Time
	banned   bool
}

// Pool hands out proxy endpoints with a per-endpoint cooldown and a
// least-used bias, so no single exit address burns through its reputation.
// Banned endpoints are never returned again for the lifetime of the pool.
type Pool struct {
	mu       sync.Mutex
	eps      []*endpoint
	cooldown time.Duration
	rng      *rand.Rand
	log      *zap.Logger
	now      func() time.Time
}

// NewPool builds a pool from the configured endpoint list, merged with the
// contents of cfg.File when set (one endpoint per line, # comments allowed).
func NewPool(cfg config.ProxyConfig, logger *zap.Logger) (*Pool, error) {
	addresses := append([]string(nil), cfg.Endpoints...)
	if cfg.File != "" {
		fromFile, err := readEndpointFile(cfg.File)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, fromFile...)
	}

	seen := make(map[string]bool, len(addresses))
	p := &Pool{
		cooldown: time.Duration(cfg.CooldownSeconds) * time.Second,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logger.Named("proxy"),
		now:      time.Now,
	}
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		p.eps = append(p.eps, &endpoint{address: addr})
	}
	if len(p.eps) == 0 {
		return nil, fmt.Errorf("proxy pool enabled but no endpoints configured")
	}

	p.log.Info("Proxy pool initialized", zap.Int("endpoints", len(p.eps)))
	return p, nil
}

func readEndpointFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening proxy file %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading proxy file %s: %w", path, err)
	}
	return out, nil
}

// Acquire returns the next proxy address to use. Endpoints used within the
// cooldown window are skipped; if every live endpoint is cooling down, the
// least recently used one is handed out anyway with a degraded-mode warning.
// Returns schemas.ErrProxyExhausted once every endpoint is banned.
func (p *Pool) Acquire() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	live := make([]*endpoint, 0, len(p.eps))
	for _, ep := range p.eps {
		if !ep.banned {
			live = append(live, ep)
		}
	}
	if len(live) == 0 {
		return "", schemas.ErrProxyExhausted
	}

	eligible := make([]*endpoint, 0, len(live))
	for _, ep := range live {
		if ep.lastUsed.IsZero() || now.Sub(ep.lastUsed) >= p.cooldown {
			eligible = append(eligible, ep)
		}
	}

	var chosen *endpoint
	if len(eligible) == 0 {
		// Degraded mode: everything is cooling down, reuse the coldest.
		chosen = live[0]
		for _, ep := range live[1:] {
			if ep.lastUsed.Before(chosen.lastUsed) {
				chosen = ep
			}
		}
		p.log.Warn("All proxies cooling down, reusing least recently used endpoint",
			zap.String("proxy", MaskAddress(chosen.address)))
	} else {
		// Pick randomly within the least-used third to spread load without
		// becoming a predictable round robin.
		sort.SliceStable(eligible, func(i, j int) bool {
			return eligible[i].useCount < eligible[j].useCount
		})
		cut := len(eligible)/3 + 1
		chosen = eligible[p.rng.Intn(cut)]
	}

	chosen.useCount++
	chosen.lastUsed = now
	p.log.Debug("Proxy acquired",
		zap.String("proxy", MaskAddress(chosen.address)),
		zap.Int("use_count", chosen.useCount))
	return chosen.address, nil
}

// MarkBad permanently bans an endpoint after a connection-level failure.
// Unknown addresses and repeat calls are no-ops.
func (p *Pool) MarkBad(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.eps {
		if ep.address != address || ep.banned {
			continue
		}
		ep.banned = true
		p.log.Warn("Proxy banned", zap.String("proxy", MaskAddress(address)))
		return
	}
}

// Size returns total and banned endpoint counts.
func (p *Pool) Size() (total, banned int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.eps {
		if ep.banned {
			banned++
		}
	}
	return len(p.eps), banned
}

// MaskAddress redacts credentials and most of the host so proxy addresses can
// be logged without leaking the endpoint.
func MaskAddress(address string) string {
	masked := address
	if at := strings.LastIndex(masked, "@"); at != -1 {
		scheme := ""
		if i := strings.Index(masked, "://"); i != -1 {
			scheme = masked[:i+3]
		}
		masked = scheme + "***@" + masked[at+1:]
	}
	host := masked
	prefix := ""
	if i := strings.Index(masked, "@"); i != -1 {
		prefix = masked[:i+1]
		host = masked[i+1:]
	} else if i := strings.Index(masked, "://"); i != -1 {
		prefix = masked[:i+3]
		host = masked[i+3:]
	}
	if len(host) > 8 {
		host = host[:4] + "***" + host[len(host)-4:]
	}
	return prefix + host
}
