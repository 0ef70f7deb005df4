package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"iac-crawler/internal/config"
	"iac-crawler/internal/git"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize iac-crawler configuration",
	Long: `Create a .iac-crawler.yaml configuration file in the current directory
with default values, and make sure it is gitignored (the file will hold the
CXM API key).

Example:
  iac-crawler init`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := fmt.Sprintf("%s.%s", config.ConfigFileName, config.ConfigFileType)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	if err := config.Save(config.DefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Printf("✓ Created %s\n", configPath)
	fmt.Println("  Fill in 'endpoint' and 'api_key', or export CXM_API_ENDPOINT and CXM_API_KEY.")
	fmt.Println()

	return git.EnsureIgnored([]string{configPath})
}

func init() {
	rootCmd.AddCommand(initCmd)
}
