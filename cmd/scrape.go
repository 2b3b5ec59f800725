package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/observability"
)

var (
	scrapeWaitMs      int
	scrapeMaxRetries  int
	scrapeExtractHTML bool
	scrapeProfileID   string
	scrapeBrowser     string
	scrapeOS          string
	scrapeDevice      string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape a single URL and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := observability.GetLogger()
		defer observability.Sync()

		orch, _, shutdown, err := buildOrchestrator(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer shutdown()

		result, err := orch.Scrape(cmd.Context(), schemas.ScrapeRequest{
			URL:         args[0],
			WaitTimeMs:  scrapeWaitMs,
			MaxRetries:  scrapeMaxRetries,
			ExtractHTML: scrapeExtractHTML,
			ProfileID:   scrapeProfileID,
			BrowserType: scrapeBrowser,
			OSType:      scrapeOS,
			DeviceType:  scrapeDevice,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))

		if result.Status == schemas.StatusFailure {
			return fmt.Errorf("scrape failed: %s", result.Error)
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeWaitMs, "wait-ms", 0, "post-navigation wait in milliseconds (default: a few random seconds)")
	scrapeCmd.Flags().IntVar(&scrapeMaxRetries, "max-retries", 0, "attempt budget, 1-5 (default: from config)")
	scrapeCmd.Flags().BoolVar(&scrapeExtractHTML, "html", false, "include the full page HTML in the output")
	scrapeCmd.Flags().StringVar(&scrapeProfileID, "profile", "", "use a stored fingerprint profile")
	scrapeCmd.Flags().StringVar(&scrapeBrowser, "browser", "", "constrain the generated fingerprint's browser")
	scrapeCmd.Flags().StringVar(&scrapeOS, "os", "", "constrain the generated fingerprint's operating system")
	scrapeCmd.Flags().StringVar(&scrapeDevice, "device", "", "constrain the generated fingerprint's device type")
}
