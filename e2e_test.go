package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iac-crawler/internal/config"
	"iac-crawler/internal/runner"
)

const e2eShowOutput = `{
  "format_version": "1.0",
  "values": {
    "root_module": {
      "resources": [
        {
          "address": "aws_instance.web",
          "mode": "managed",
          "type": "aws_instance",
          "name": "web",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "schema_version": 1,
          "values": {
            "arn": "arn:aws:ec2:eu-west-1:123456789012:instance/i-0abc",
            "id": "i-123",
            "ami": "ami-1"
          },
          "sensitive_values": {}
        },
        {
          "address": "aws_key_pair.deployer",
          "mode": "managed",
          "type": "aws_key_pair",
          "name": "deployer",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "schema_version": 1,
          "values": {
            "arn": "arn:aws:ec2:eu-west-1:123456789012:key-pair/deployer",
            "id": "deployer",
            "description": "deploy key",
            "public_key": "ssh-rsa AAAA"
          },
          "sensitive_values": {
            "id": true
          }
        }
      ]
    }
  }
}`

// fakeTerraform puts a stand-in terraform binary on PATH that answers
// `terraform show -json` with the canned state above.
func fakeTerraform(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake terraform script requires a POSIX shell")
	}

	binDir := t.TempDir()
	fixture := filepath.Join(binDir, "show.json")
	require.NoError(t, os.WriteFile(fixture, []byte(e2eShowOutput), 0644))

	script := "#!/bin/sh\nif [ \"$1\" = \"show\" ]; then cat \"" + fixture + "\"; fi\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "terraform"), []byte(script), 0755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestE2E_ScanRepository(t *testing.T) {
	fakeTerraform(t)

	repo := t.TempDir()
	entryPoint := filepath.Join(repo, "prod")
	require.NoError(t, os.MkdirAll(entryPoint, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(entryPoint, ".terraform.lock.hcl"), nil, 0644))

	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ci/events/resources", r.URL.Path)
		require.Equal(t, "e2e-key", r.Header.Get("CXM-API-KEY"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.RepositoryPath = repo
	cfg.RepositoryURL = "https://github.com/acme/infra"
	cfg.Platform = "generic"
	cfg.Endpoint = srv.URL
	cfg.APIKey = "e2e-key"
	cfg.SensitiveFields = "description"

	require.NoError(t, runner.Run(context.Background(), cfg))
	require.Len(t, bodies, 1, "both resources fit in one batch")

	body := bodies[0]
	assert.Equal(t, float64(0), body["schema_version"])
	assert.Equal(t, "https://github.com/acme/infra", body["repository_url"])
	require.Contains(t, body, "scan_metadata")
	meta := body["scan_metadata"].(map[string]any)
	assert.Equal(t, "generic", meta["platform"])
	assert.Equal(t, meta["scan_timestamp"], body["scan_timestamp"])

	resources := body["resources"].([]any)
	require.Len(t, resources, 2)

	web := resources[0].(map[string]any)
	assert.Equal(t, "aws_instance.web", web["address"])
	webValues := web["values"].(map[string]any)
	assert.Equal(t, "i-123", webValues["id"])
	assert.NotContains(t, webValues, "ami", "non-allow-listed fields are discarded")

	keyPair := resources[1].(map[string]any)
	kpValues := keyPair["values"].(map[string]any)
	assert.Equal(t, "**SENSITIVE**", kpValues["id"], "marker-flagged value")
	assert.Equal(t, "**REDACTED**", kpValues["description"], "name-pattern-flagged value")
	assert.NotContains(t, kpValues, "public_key", "redacted but outside the projection allow-list")
}

func TestE2E_DryRunSendsNothing(t *testing.T) {
	fakeTerraform(t)

	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, ".terraform.lock.hcl"), nil, 0644))

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.RepositoryPath = repo
	cfg.RepositoryURL = "https://github.com/acme/infra"
	cfg.Platform = "generic"
	cfg.Endpoint = srv.URL
	cfg.APIKey = "e2e-key"
	cfg.DryRun = true

	require.NoError(t, runner.Run(context.Background(), cfg))
	assert.Zero(t, requests)
}
