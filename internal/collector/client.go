package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"iac-crawler/internal/metadata"
	"iac-crawler/internal/pipeline"
	"iac-crawler/internal/version"
)

// resourcesPath is appended to the configured endpoint for batch delivery.
const resourcesPath = "/ci/events/resources"

// ErrNotConfigured reports missing delivery credentials or endpoint. It is a
// fatal pre-flight error: it cannot possibly succeed on retry.
var ErrNotConfigured = errors.New("CXM_API_KEY and CXM_API_ENDPOINT must be configured")

// Config holds the resolved settings the client needs.
type Config struct {
	Endpoint   string
	APIKey     string
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
	DryRun     bool
}

// Client delivers batches of projected records to the CXM collector API.
type Client struct {
	endpoint   string
	apiKey     string
	batchSize  int
	maxRetries int
	dryRun     bool
	httpClient *http.Client
	log        zerolog.Logger
}

// envelope is the JSON body of one delivery request.
type envelope struct {
	Resources      []*pipeline.Record     `json:"resources"`
	SchemaVersion  int                    `json:"schema_version"`
	RepositoryURL  string                 `json:"repository_url"`
	ScanMetadata   *metadata.ScanMetadata `json:"scan_metadata"`
	ScanTimestamp  string                 `json:"scan_timestamp"`
	CrawlerVersion string                 `json:"crawler_version"`
}

// NewClient validates the delivery configuration and returns a client.
// Missing credentials are fatal in live mode; in dry-run mode they only
// produce a warning so operators notice the misconfiguration before
// disabling dry-run.
func NewClient(cfg Config) (*Client, error) {
	configured := cfg.APIKey != "" && cfg.Endpoint != ""
	if !configured {
		if !cfg.DryRun {
			return nil, ErrNotConfigured
		}
		log.Warn().Msg("DRY-RUN MODE: CXM_API_KEY and/or CXM_API_ENDPOINT not configured - data will only be parsed")
	}

	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		dryRun:     cfg.DryRun,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "collector").Logger(),
	}, nil
}

// Send pulls the record stream, groups it into batches and delivers each
// batch independently. A batch failure fails the whole send, but batches
// already delivered stay delivered.
func (c *Client) Send(ctx context.Context, records iter.Seq[*pipeline.Record], meta *metadata.ScanMetadata, repositoryURL string) error {
	if c.dryRun {
		c.log.Info().Int("batch_size", c.batchSize).Msg("DRY-RUN MODE: processing data without sending")
	} else {
		c.log.Info().Int("batch_size", c.batchSize).Msg("starting batch send")
	}

	totalResources := 0
	totalBatches := 0
	index := 0
	for batch := range pipeline.Chunk(records, c.batchSize) {
		totalResources += len(batch)
		totalBatches++

		if c.dryRun {
			c.log.Info().Int("batch", index+1).Int("resources", len(batch)).Msg("DRY-RUN: would send batch")
		} else if err := c.sendBatch(ctx, batch, index, meta, repositoryURL); err != nil {
			return err
		}
		index++
	}

	if totalBatches == 0 {
		c.log.Warn().Msg("no resources were processed")
		return nil
	}
	if c.dryRun {
		c.log.Info().Int("batches", totalBatches).Int("resources", totalResources).Msg("DRY-RUN: processed all batches without sending")
	} else {
		c.log.Info().Int("batches", totalBatches).Int("resources", totalResources).Msg("successfully sent all batches")
	}
	return nil
}

// outcome classifies one delivery attempt.
type outcome uint8

const (
	outcomeSuccess outcome = iota
	outcomeRetry
	outcomeFatal
)

// classify decides the next state of the per-batch retry machine. A transport
// failure on the final attempt is fatal; earlier failures are retried.
func classify(err error, attempt, maxRetries int) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if attempt < maxRetries {
		return outcomeRetry
	}
	return outcomeFatal
}

// sendBatch delivers one batch, retrying transport failures up to the
// configured ceiling. The batch is all-or-nothing: there is no resumption of
// a partially sent batch.
func (c *Client) sendBatch(ctx context.Context, batch []*pipeline.Record, index int, meta *metadata.ScanMetadata, repositoryURL string) error {
	if c.apiKey == "" || c.endpoint == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(envelope{
		Resources:      batch,
		SchemaVersion:  0,
		RepositoryURL:  repositoryURL,
		ScanMetadata:   meta,
		ScanTimestamp:  meta.ScanTimestamp,
		CrawlerVersion: version.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to encode batch %d: %w", index+1, err)
	}

	for attempt := 1; ; attempt++ {
		err := c.post(ctx, payload)
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("sending batch %d interrupted: %w", index+1, ctx.Err())
		}

		switch classify(err, attempt, c.maxRetries) {
		case outcomeSuccess:
			c.log.Info().Int("batch", index+1).Int("resources", len(batch)).Msg("successfully sent batch")
			return nil
		case outcomeRetry:
			c.log.Warn().Int("batch", index+1).Int("attempt", attempt).Int("max_retries", c.maxRetries).
				Err(err).Msg("failed to send batch, retrying")
		case outcomeFatal:
			c.log.Error().Int("batch", index+1).Int("attempts", c.maxRetries).Err(err).Msg("failed to send batch")
			return fmt.Errorf("failed to send batch %d after %d attempts: %w", index+1, c.maxRetries, err)
		}
	}
}

// post performs a single HTTP delivery attempt. Any transport error or
// non-2xx status is returned as an error.
func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+resourcesPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("CXM-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %s", resp.Status)
	}
	return nil
}
