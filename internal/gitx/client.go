// Package gitx wraps the git CLI. Argument shapes are part of the contract
// with the surrounding tooling, so everything shells out to the real binary
// with interactive credential prompts disabled.
package gitx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golden-go/internal/golden"
	"golden-go/internal/run"
)

// noPromptEnv disables every interactive credential path git knows about.
var noPromptEnv = []string{
	"GIT_TERMINAL_PROMPT=0",
	"GCM_INTERACTIVE=never",
}

// Client invokes git subcommands with per-operation timeouts.
type Client struct {
	runner       run.Runner
	fetchTimeout time.Duration
	cloneTimeout time.Duration
}

// NewClient creates a git client. Timeouts of zero disable the per-call
// deadline and rely on the caller's context.
func NewClient(runner run.Runner, fetchTimeout, cloneTimeout time.Duration) *Client {
	return &Client{
		runner:       runner,
		fetchTimeout: fetchTimeout,
		cloneTimeout: cloneTimeout,
	}
}

// git runs one git invocation and converts failures into *golden.FetchError
// with a classified category. Timeouts classify as transient.
func (c *Client) git(ctx context.Context, dir string, timeout time.Duration, args ...string) (run.Result, error) {
	spec := run.Spec{
		Name:    "git",
		Args:    args,
		Dir:     dir,
		Env:     noPromptEnv,
		Timeout: timeout,
	}
	res, err := c.runner.Run(ctx, spec)
	if err != nil {
		return res, &golden.FetchError{Category: golden.FetchTransient, Err: err}
	}
	if res.TimedOut {
		return res, &golden.FetchError{
			Category: golden.FetchTransient,
			Stderr:   res.Stderr,
			Err:      run.Errorf(spec, res),
		}
	}
	if res.ExitCode != 0 {
		return res, &golden.FetchError{
			Category: Classify(res.Stderr),
			Stderr:   res.Stderr,
			Err:      run.Errorf(spec, res),
		}
	}
	return res, nil
}

// LsRemoteHeads lists remote branch heads as ref name → commit hash.
func (c *Client) LsRemoteHeads(ctx context.Context, url string) (map[string]string, error) {
	res, err := c.git(ctx, "", c.fetchTimeout, "ls-remote", "--heads", url)
	if err != nil {
		return nil, err
	}

	heads := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		heads[strings.TrimPrefix(fields[1], "refs/heads/")] = fields[0]
	}
	return heads, nil
}

// DefaultBranch discovers the remote's default branch via the HEAD symref.
func (c *Client) DefaultBranch(ctx context.Context, url string) (string, error) {
	res, err := c.git(ctx, "", c.fetchTimeout, "ls-remote", "--symref", url, "HEAD")
	if err != nil {
		return "", err
	}

	// First line of symref output: "ref: refs/heads/<branch>\tHEAD"
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !strings.HasPrefix(line, "ref:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			return strings.TrimPrefix(fields[1], "refs/heads/"), nil
		}
	}
	return "", fmt.Errorf("no symref in ls-remote output for %s", url)
}

// Pull fast-forwards the clone at dir from its upstream.
func (c *Client) Pull(ctx context.Context, dir string) error {
	_, err := c.git(ctx, dir, c.fetchTimeout, "pull", "--ff-only")
	return err
}

// RevParse resolves a ref to a commit hash inside dir.
func (c *Client) RevParse(ctx context.Context, dir, ref string) (string, error) {
	res, err := c.git(ctx, dir, c.fetchTimeout, "rev-parse", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Clone clones url into dir.
func (c *Client) Clone(ctx context.Context, url, dir string) error {
	_, err := c.git(ctx, "", c.cloneTimeout, "clone", url, dir)
	return err
}

// RefreshIndex runs `git update-index --refresh` inside dir. Exit status 1
// only means entries needed refreshing, so it is not a failure.
func (c *Client) RefreshIndex(ctx context.Context, dir string) error {
	spec := run.Spec{
		Name:    "git",
		Args:    []string{"update-index", "--refresh"},
		Dir:     dir,
		Env:     noPromptEnv,
		Timeout: c.fetchTimeout,
	}
	res, err := c.runner.Run(ctx, spec)
	if err != nil {
		return err
	}
	if res.TimedOut || res.ExitCode > 1 {
		return run.Errorf(spec, res)
	}
	return nil
}

// RestoreAll runs `git restore .` inside dir, discarding working-tree edits
// so the snapshot reflects a clean tree.
func (c *Client) RestoreAll(ctx context.Context, dir string) error {
	spec := run.Spec{
		Name:    "git",
		Args:    []string{"restore", "."},
		Dir:     dir,
		Env:     noPromptEnv,
		Timeout: c.fetchTimeout,
	}
	res, err := c.runner.Run(ctx, spec)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return run.Errorf(spec, res)
	}
	return nil
}
