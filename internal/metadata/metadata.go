package metadata

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"iac-crawler/internal/version"
)

// Supported CI/CD platforms.
const (
	PlatformGitHub  = "github"
	PlatformGitLab  = "gitlab"
	PlatformGeneric = "generic"
)

// ScanMetadata identifies one crawler invocation. It is built once per run
// and attached unchanged to every delivered batch. Empty optional fields are
// omitted from the payload.
type ScanMetadata struct {
	Platform       string `json:"platform"`
	ScanTimestamp  string `json:"scan_timestamp"`
	CrawlerVersion string `json:"crawler_version"`
	RunID          string `json:"run_id"`

	WorkflowID              string `json:"workflow_id,omitempty"`
	Actor                   string `json:"actor,omitempty"`
	TriggerEvent            string `json:"trigger_event,omitempty"`
	RepositoryOwner         string `json:"repository_owner,omitempty"`
	RepositoryName          string `json:"repository_name,omitempty"`
	RepositoryDefaultBranch string `json:"repository_default_branch,omitempty"`
	RunnerOS                string `json:"runner_os,omitempty"`
	RunnerArch              string `json:"runner_arch,omitempty"`
}

// DetectPlatform resolves the CI/CD platform, preferring an explicit hint
// over environment auto-detection.
func DetectPlatform(hint string) (string, error) {
	if hint != "" {
		platform := strings.ToLower(hint)
		switch platform {
		case PlatformGitHub, PlatformGitLab, PlatformGeneric:
			return platform, nil
		}
		return "", fmt.Errorf("unsupported platform: %s (supported: %s, %s, %s)",
			hint, PlatformGeneric, PlatformGitHub, PlatformGitLab)
	}
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		return PlatformGitHub, nil
	}
	if os.Getenv("GITLAB_CI") != "" {
		return PlatformGitLab, nil
	}
	return PlatformGeneric, nil
}

// New creates the scan metadata for the given platform, including a fresh run
// ID and any platform-specific fields available in the environment.
func New(platform string) (*ScanMetadata, error) {
	meta := &ScanMetadata{
		Platform:       platform,
		ScanTimestamp:  time.Now().UTC().Format(time.RFC3339),
		CrawlerVersion: version.Version,
		RunID:          uuid.NewString(),
	}

	switch platform {
	case PlatformGitHub:
		meta.WorkflowID = os.Getenv("GITHUB_WORKFLOW")
		meta.Actor = os.Getenv("GITHUB_ACTOR")
		meta.TriggerEvent = os.Getenv("GITHUB_EVENT_NAME")
		meta.RepositoryOwner = os.Getenv("GITHUB_REPOSITORY_OWNER")
		if repo := os.Getenv("GITHUB_REPOSITORY"); repo != "" {
			parts := strings.Split(repo, "/")
			meta.RepositoryName = parts[len(parts)-1]
		}
		if ref := os.Getenv("GITHUB_REF_NAME"); ref == "main" || ref == "master" {
			meta.RepositoryDefaultBranch = ref
		}
		meta.RunnerOS = os.Getenv("RUNNER_OS")
		meta.RunnerArch = os.Getenv("RUNNER_ARCH")
	case PlatformGitLab:
		meta.WorkflowID = os.Getenv("CI_PIPELINE_ID")
		meta.Actor = os.Getenv("GITLAB_USER_LOGIN")
		meta.TriggerEvent = os.Getenv("CI_PIPELINE_SOURCE")
		meta.RepositoryOwner = os.Getenv("CI_PROJECT_NAMESPACE")
		meta.RepositoryName = os.Getenv("CI_PROJECT_NAME")
		meta.RepositoryDefaultBranch = os.Getenv("CI_DEFAULT_BRANCH")
		meta.RunnerOS = "linux"
	case PlatformGeneric:
		// No platform-specific fields.
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}

	return meta, nil
}
