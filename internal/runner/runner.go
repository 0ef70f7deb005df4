package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"iac-crawler/internal/collector"
	"iac-crawler/internal/config"
	"iac-crawler/internal/discover"
	"iac-crawler/internal/metadata"
	"iac-crawler/internal/pipeline"
	"iac-crawler/internal/redact"
	"iac-crawler/internal/terraform"
)

// showFunc is swapped out in tests to avoid spawning real terraform
// processes.
var showFunc = terraform.Show

// Run processes every Terraform entry point in the repository: show,
// flatten+redact, project, deliver. Entry points are handled sequentially; a
// terraform failure aborts the run, any other per-entry-point failure is
// logged and accumulated into the returned aggregate error.
func Run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	platform, err := metadata.DetectPlatform(cfg.Platform)
	if err != nil {
		return err
	}
	meta, err := metadata.New(platform)
	if err != nil {
		return err
	}
	log.Info().Str("platform", meta.Platform).Str("run_id", meta.RunID).Msg("starting scan")

	client, err := collector.NewClient(collector.Config{
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.RequestTimeout(),
		DryRun:     cfg.DryRun,
	})
	if err != nil {
		return err
	}

	red := redact.NewRedactor(redact.NewClassifier(cfg.SensitivePatterns()))

	entryPoints := cfg.Paths
	if len(entryPoints) > 0 {
		log.Info().Int("count", len(entryPoints)).Msg("using specified paths, skipping lock file discovery")
	} else {
		if entryPoints, err = discover.LockFileDirs(cfg.RepositoryPath); err != nil {
			return err
		}
	}

	processed := 0
	var failures []error
	for _, dir := range entryPoints {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Info().Str("entry_point", dir).Msg("processing terraform configuration")

		err := processEntryPoint(ctx, dir, cfg, red, client, meta)
		if err == nil {
			processed++
			continue
		}

		var runErr *terraform.RunError
		if errors.As(err, &runErr) {
			// Terraform itself failed; every remaining entry point would
			// fail the same way.
			return fmt.Errorf("terraform show failed, aborting scan: %w", err)
		}

		log.Error().Str("entry_point", dir).Err(err).Msg("failed to process entry point")
		failures = append(failures, fmt.Errorf("%s: %w", dir, err))
	}

	found := len(entryPoints)
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d entry points failed: %w", len(failures), found, errors.Join(failures...))
	}
	if found == 0 {
		log.Warn().Msg("no terraform entry points found")
	}
	log.Info().Int("processed", processed).Int("found", found).Msg("scan complete")
	return nil
}

func processEntryPoint(ctx context.Context, dir string, cfg *config.Config, red *redact.Redactor, client *collector.Client, meta *metadata.ScanMetadata) error {
	out, err := showFunc(ctx, dir, cfg.ShowTimeout())
	if err != nil {
		return err
	}
	records := pipeline.Project(pipeline.Flatten(out, red))
	return client.Send(ctx, records, meta, cfg.RepositoryURL)
}
