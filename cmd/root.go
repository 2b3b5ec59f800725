package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/internal/config"
	"github.com/Nasapan23/undetected-scrape-api/internal/observability"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "scrape-api",
	Short:   "Scrape-API drives hardened headless browsers through anti-bot defenses.",
	Version: Version,
}

// Execute runs the CLI. The context flows into every subcommand for graceful
// shutdown.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads defaults, the config file and SCRAPE_ environment
// variables, then validates the result and initializes logging.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets come from the environment, never the config file.
	_ = v.BindEnv("captcha.api_key", "SCRAPE_CAPTCHA_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	observability.InitializeLogger(cfg.Logger)
	return cfg, nil
}
