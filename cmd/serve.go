package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/browser"
	"github.com/Nasapan23/undetected-scrape-api/internal/bypass"
	"github.com/Nasapan23/undetected-scrape-api/internal/captcha"
	"github.com/Nasapan23/undetected-scrape-api/internal/challenge"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
	"github.com/Nasapan23/undetected-scrape-api/internal/humanoid"
	"github.com/Nasapan23/undetected-scrape-api/internal/identity"
	"github.com/Nasapan23/undetected-scrape-api/internal/observability"
	"github.com/Nasapan23/undetected-scrape-api/internal/proxy"
	"github.com/Nasapan23/undetected-scrape-api/internal/scraper"
	"github.com/Nasapan23/undetected-scrape-api/internal/server"
	"github.com/Nasapan23/undetected-scrape-api/internal/stealth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scrape orchestration HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

// runServe constructs the full service graph explicitly and blocks until the
// context ends.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()
	defer observability.Sync()

	logger.Info("Starting scrape service", zap.String("version", Version))

	orch, identities, shutdown, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	srv := server.New(cfg.Server, orch, identities, logger)
	return srv.Run(ctx)
}

// buildOrchestrator wires every component explicitly. The returned shutdown
// func closes the browser driver.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*scraper.Orchestrator, *identity.Store, func(), error) {
	identities, err := identity.NewStore(cfg.Identity, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	var pool scraper.ProxyPool
	if cfg.Proxy.Enabled {
		p, err := proxy.NewPool(cfg.Proxy, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		pool = p
	}

	var solver schemas.CaptchaSolver
	if cfg.Captcha.Enabled {
		solver = captcha.NewSolver(cfg.Captcha, logger)
	}

	driver := browser.NewDriver(ctx, cfg.Browser, logger)
	shutdown := func() {
		if err := driver.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser driver shutdown failed", zap.Error(err))
		}
	}

	classifier := challenge.NewClassifier(logger)
	sim := humanoid.NewSimulator(logger, 0)
	dispatcher := bypass.NewDispatcher(classifier, sim, solver, cfg.Scraper.ChallengePollTimeout, logger)
	payloads := stealth.NewGenerator(logger)

	orch := scraper.NewOrchestrator(driver, identities, pool, classifier, dispatcher, sim, payloads, *cfg, logger)
	return orch, identities, shutdown, nil
}
