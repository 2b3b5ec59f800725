package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Nasapan23/undetected-scrape-api/internal/identity"
	"github.com/Nasapan23/undetected-scrape-api/internal/observability"
)

var (
	profileBrowser string
	profileOS      string
	profileDevice  string
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage stored fingerprint profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored fingerprint profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		summaries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBROWSER\tOS\tDEVICE\tLAST USED")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.BrowserType, s.OSType, s.DeviceType, s.LastUsedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var profilesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate and store a new fingerprint profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		profile, err := store.GetOrCreate(cmd.Context(), "", profileBrowser, profileOS, profileDevice)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored fingerprint profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

func openStore() (*identity.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return identity.NewStore(cfg.Identity, observability.GetLogger())
}

func init() {
	profilesCreateCmd.Flags().StringVar(&profileBrowser, "browser", "", "browser type (chrome, firefox, safari, edge)")
	profilesCreateCmd.Flags().StringVar(&profileOS, "os", "", "os type (windows, macos, linux)")
	profilesCreateCmd.Flags().StringVar(&profileDevice, "device", "", "device type (desktop, mobile, tablet)")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesCreateCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
}
