package scraper

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
)

func jarWithPruneChance(chance float64) *cookieJar {
	return newCookieJar(config.ScraperConfig{
		CookiePruneChance:     chance,
		PreserveCookieDomains: []string{".cloudflare.com", ".google.com"},
	}, rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestCookieJarPrune(t *testing.T) {
	cookies := []schemas.Cookie{
		{Name: "session_key", Domain: "shop.example.com"},
		{Name: "PHPSESSID", Domain: "shop.example.com"},
		{Name: "auth_state", Domain: "shop.example.com"},
		{Name: "csrf_token", Domain: "shop.example.com"},
		{Name: "cf_clearance", Domain: ".cloudflare.com"},
		{Name: "ab_bucket", Domain: "shop.example.com"},
		{Name: "tracker", Domain: "ads.example.net"},
	}

	t.Run("chance one always prunes", func(t *testing.T) {
		jar := jarWithPruneChance(1)
		jar.remember(cookies)

		kept := jar.forNextSession()
		names := make([]string, 0, len(kept))
		for _, c := range kept {
			names = append(names, c.Name)
		}
		assert.ElementsMatch(t,
			[]string{"session_key", "PHPSESSID", "auth_state", "csrf_token", "cf_clearance"},
			names)
	})

	t.Run("chance zero never prunes", func(t *testing.T) {
		jar := jarWithPruneChance(0)
		jar.remember(cookies)
		assert.Len(t, jar.forNextSession(), len(cookies))
	})

	t.Run("empty jar stays empty", func(t *testing.T) {
		jar := jarWithPruneChance(1)
		assert.Nil(t, jar.forNextSession())
	})
}

func TestCookieJarPreserveRules(t *testing.T) {
	jar := jarWithPruneChance(1)

	tests := []struct {
		cookie schemas.Cookie
		keep   bool
	}{
		{schemas.Cookie{Name: "SESSIONID", Domain: "x.example.com"}, true},
		{schemas.Cookie{Name: "jwt_token", Domain: "x.example.com"}, true},
		{schemas.Cookie{Name: "user_id", Domain: "x.example.com"}, true},
		{schemas.Cookie{Name: "banner_seen", Domain: "accounts.google.com"}, true},
		{schemas.Cookie{Name: "banner_seen", Domain: "x.example.com"}, false},
		{schemas.Cookie{Name: "analytics", Domain: "cdn.example.net"}, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.keep, jar.preserve(tc.cookie), "cookie %s on %s", tc.cookie.Name, tc.cookie.Domain)
	}
}
