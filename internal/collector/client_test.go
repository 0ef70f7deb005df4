package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iac-crawler/internal/metadata"
	"iac-crawler/internal/pipeline"
	"iac-crawler/internal/state"
	"iac-crawler/internal/version"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		BatchSize:  1000,
		MaxRetries: 3,
		Timeout:    5 * time.Second,
	}
}

func testMetadata() *metadata.ScanMetadata {
	return &metadata.ScanMetadata{
		Platform:       metadata.PlatformGeneric,
		ScanTimestamp:  "2026-08-24T10:00:00Z",
		CrawlerVersion: version.Version,
		RunID:          "run-1",
	}
}

func records(n int) []*pipeline.Record {
	out := make([]*pipeline.Record, n)
	for i := range out {
		out[i] = &pipeline.Record{
			Address: fmt.Sprintf("aws_instance.web[%d]", i),
			Values:  pipeline.Values{ARN: state.StringNode(fmt.Sprintf("arn:aws:ec2:::instance/i-%d", i))},
		}
	}
	return out
}

func TestNewClientMissingCredentials(t *testing.T) {
	cfg := testConfig("http://collector.local")

	for _, broken := range []func(*Config){
		func(c *Config) { c.APIKey = "" },
		func(c *Config) { c.Endpoint = "" },
		func(c *Config) { c.APIKey = ""; c.Endpoint = "" },
	} {
		c := cfg
		broken(&c)
		_, err := NewClient(c)
		require.ErrorIs(t, err, ErrNotConfigured)
	}
}

func TestNewClientDryRunMissingCredentials(t *testing.T) {
	cfg := testConfig("")
	cfg.APIKey = ""
	cfg.DryRun = true

	// Dry-run only warns about missing credentials.
	_, err := NewClient(cfg)
	require.NoError(t, err)
}

func TestSendSingleBatch(t *testing.T) {
	var requests int
	var gotPath, gotKey, gotContentType string
	var gotBody envelope

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotPath = r.URL.Path
		gotKey = r.Header.Get("CXM-API-KEY")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL + "/"))
	require.NoError(t, err)

	meta := testMetadata()
	err = client.Send(context.Background(), slices.Values(records(2)), meta, "https://github.com/acme/infra")
	require.NoError(t, err)

	assert.Equal(t, 1, requests, "success on the first attempt, no further requests")
	assert.Equal(t, "/ci/events/resources", gotPath, "trailing endpoint slash trimmed")
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotContentType)

	assert.Len(t, gotBody.Resources, 2)
	assert.Equal(t, 0, gotBody.SchemaVersion)
	assert.Equal(t, "https://github.com/acme/infra", gotBody.RepositoryURL)
	assert.Equal(t, meta.ScanTimestamp, gotBody.ScanTimestamp)
	assert.Equal(t, version.Version, gotBody.CrawlerVersion)
	require.NotNil(t, gotBody.ScanMetadata)
	assert.Equal(t, "run-1", gotBody.ScanMetadata.RunID)
}

func TestSendSplitsBatches(t *testing.T) {
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sizes = append(sizes, len(body.Resources))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = 1000
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(2500)), testMetadata(), "repo")
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 1000, 500}, sizes)
}

func TestSendEmptyStream(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(0)), testMetadata(), "repo")
	require.NoError(t, err)
	assert.Zero(t, requests, "an empty stream makes no delivery calls")
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(1)), testMetadata(), "repo")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSendExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 3
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(1)), testMetadata(), "repo")
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "exactly maxRetries attempts in total")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestSendTransportError(t *testing.T) {
	// A server that is already closed produces transport-level failures.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(1)), testMetadata(), "repo")
	require.Error(t, err)
}

func TestSendDryRun(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DryRun = true
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(5)), testMetadata(), "repo")
	require.NoError(t, err)
	assert.Zero(t, requests, "dry-run never performs the network call")
}

func TestSendFirstBatchFailureSkipsRest(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchSize = 2
	cfg.MaxRetries = 1
	client, err := NewClient(cfg)
	require.NoError(t, err)

	err = client.Send(context.Background(), slices.Values(records(6)), testMetadata(), "repo")
	require.Error(t, err)
	assert.Equal(t, 1, requests, "remaining batches are not attempted after a fatal batch failure")
}

func TestClassify(t *testing.T) {
	someErr := fmt.Errorf("boom")

	assert.Equal(t, outcomeSuccess, classify(nil, 1, 3))
	assert.Equal(t, outcomeSuccess, classify(nil, 3, 3))
	assert.Equal(t, outcomeRetry, classify(someErr, 1, 3))
	assert.Equal(t, outcomeRetry, classify(someErr, 2, 3))
	assert.Equal(t, outcomeFatal, classify(someErr, 3, 3))
	assert.Equal(t, outcomeFatal, classify(someErr, 1, 1))
}
