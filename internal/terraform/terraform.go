package terraform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"iac-crawler/internal/state"
)

const terraformCmd = "terraform"

// RunError reports a failed terraform invocation. The caller treats it as a
// strong signal that every other entry point will fail the same way and
// aborts the scan.
type RunError struct {
	Dir    string
	Args   []string
	Stderr string
	Err    error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("terraform %s failed in %s: %v", strings.Join(e.Args, " "), e.Dir, e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// Show runs `terraform init` followed by `terraform show -json` in dir and
// parses the reported state. Each command is bounded by timeout.
func Show(ctx context.Context, dir string, timeout time.Duration) (*state.ShowOutput, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory does not exist: %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	log.Info().Str("dir", dir).Msg("running terraform init")
	if _, err := run(ctx, dir, timeout, "init"); err != nil {
		return nil, err
	}

	log.Info().Str("dir", dir).Msg("running terraform show")
	output, err := run(ctx, dir, timeout, "show", "-json")
	if err != nil {
		return nil, err
	}
	log.Debug().Str("dir", dir).Int("bytes", len(output)).Msg("parsed terraform show output")

	return state.ParseShowOutput(output)
}

func run(ctx context.Context, dir string, timeout time.Duration, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, terraformCmd, args...)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		runErr := &RunError{Dir: dir, Args: args, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			runErr.Stderr = string(exitErr.Stderr)
		}
		if runCtx.Err() == context.DeadlineExceeded {
			runErr.Err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return nil, runErr
	}
	return output, nil
}
