package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"iac-crawler/internal/collector"
	"iac-crawler/internal/config"
	"iac-crawler/internal/redact"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate iac-crawler configuration",
	Long: `Validate the iac-crawler configuration without scanning anything.

This command will:
  1. Load the configuration from the environment and .iac-crawler.yaml
  2. Verify the sensitive field patterns do not clash with required fields
  3. Verify the collector credentials are present

Example:
  iac-crawler check`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !config.Exists() {
		fmt.Println("⚠ Warning: No configuration file found.")
		fmt.Println("  Run 'iac-crawler init' to create one, or configure via environment.")
		fmt.Println()
	}

	classifier := redact.NewClassifier(cfg.SensitivePatterns())
	fmt.Println("Crawler Settings:")
	fmt.Printf("  Endpoint:           %s\n", valueOrUnset(cfg.Endpoint))
	fmt.Printf("  API key:            %s\n", maskValue(cfg.APIKey))
	fmt.Printf("  Batch size:         %d\n", cfg.BatchSize)
	fmt.Printf("  Max retries:        %d\n", cfg.MaxRetries)
	fmt.Printf("  Sensitive patterns: %s\n", strings.Join(classifier.Patterns(), ", "))
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Reuse the delivery pre-flight check: missing credentials are fatal.
	if _, err := collector.NewClient(collector.Config{
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.RequestTimeout(),
	}); err != nil {
		return err
	}

	fmt.Println("✓ Configuration is valid.")
	return nil
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func maskValue(v string) string {
	if v == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
