package scraper

import (
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
)

// preservedNameFragments mark cookies that carry login or anti-bot state.
// Pruning those would undo the very clearance a bypass just earned.
var preservedNameFragments = []string{"session", "auth", "token", "id", "csrf"}

// cookieJar carries cookies between the attempts of one scrape and applies
// the occasional pruning that keeps the jar from looking machine-stable.
type cookieJar struct {
	cfg config.ScraperConfig
	rng *rand.Rand
	log *zap.Logger

	cookies []schemas.Cookie
}

func newCookieJar(cfg config.ScraperConfig, rng *rand.Rand, logger *zap.Logger) *cookieJar {
	return &cookieJar{cfg: cfg, rng: rng, log: logger.Named("cookies")}
}

// remember stores the session's final cookie state for the next attempt.
func (j *cookieJar) remember(cookies []schemas.Cookie) {
	j.cookies = cookies
}

// forNextSession returns the cookies to seed a new session with. With the
// configured probability the jar is pruned first, dropping everything except
// identity-bearing cookies and cookies on always-preserved domains.
func (j *cookieJar) forNextSession() []schemas.Cookie {
	if len(j.cookies) == 0 {
		return nil
	}
	if j.rng.Float64() >= j.cfg.CookiePruneChance {
		return j.cookies
	}

	kept := j.cookies[:0:0]
	for _, c := range j.cookies {
		if j.preserve(c) {
			kept = append(kept, c)
		}
	}
	j.log.Debug("Pruned cookie jar",
		zap.Int("before", len(j.cookies)),
		zap.Int("after", len(kept)),
	)
	j.cookies = kept
	return j.cookies
}

func (j *cookieJar) preserve(c schemas.Cookie) bool {
	name := strings.ToLower(c.Name)
	for _, fragment := range preservedNameFragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	domain := strings.ToLower(c.Domain)
	for _, keep := range j.cfg.PreserveCookieDomains {
		if domain == keep || strings.HasSuffix(domain, keep) {
			return true
		}
	}
	return false
}
