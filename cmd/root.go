package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"iac-crawler/internal/config"
	"iac-crawler/internal/logging"
	"iac-crawler/internal/runner"
)

var rootCmd = &cobra.Command{
	Use:   "iac-crawler <repository-path>",
	Short: "Scan Terraform infrastructure and send resources to the CXM API",
	Long: `iac-crawler scans a repository for Terraform configurations, extracts the
deployed resources via 'terraform show -json', redacts sensitive values and
sends the results to the CXM collector API in batches.

Entry points are discovered by locating .terraform.lock.hcl files; pass
--path to scan specific directories instead.

Examples:
  # Scan a repository and send resources to the collector
  CXM_API_KEY=... CXM_API_ENDPOINT=https://cxm.example.com iac-crawler . --repository-url=https://github.com/acme/infra

  # Parse and log without sending anything
  iac-crawler . --dry-run

  # Scan two specific Terraform directories
  iac-crawler . --path=prod/network --path=prod/compute`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runScan,
}

// Execute runs the CLI. Interrupted runs exit 130; any other failure exits 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd, args)
	if err != nil {
		return err
	}
	logging.Init(cfg.Verbose)

	if cfg.RepositoryURL == "" {
		log.Warn().Msg("repository URL not provided, using 'unknown'")
		cfg.RepositoryURL = "unknown"
	}

	log.Info().Str("repository", cfg.RepositoryPath).Msg("starting IAC scan")
	if err := runner.Run(cmd.Context(), cfg); err != nil {
		log.Error().Err(err).Msg("IAC scan failed")
		return err
	}
	log.Info().Msg("IAC scan completed successfully")
	return nil
}

func init() {
	rootCmd.Flags().String("repository-url", "", "URL of the repository being crawled (included in API requests)")
	rootCmd.Flags().String("platform", "", "CI/CD platform (github, gitlab, or generic) - auto-detected if not provided")
	rootCmd.Flags().StringArray("path", nil, "Terraform entry point to scan (repeatable, skips lock file discovery)")
	rootCmd.Flags().Int("batch-size", 1000, "Number of resources per delivery request")
	rootCmd.Flags().Int("max-retries", 3, "Delivery attempts per batch before giving up")
	rootCmd.Flags().Bool("dry-run", false, "Parse and log without sending data to the API")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging (DEBUG level)")
}
