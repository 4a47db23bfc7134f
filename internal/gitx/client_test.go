package gitx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golden-go/internal/gitx"
	"golden-go/internal/golden"
	"golden-go/internal/run"
	"golden-go/internal/testutil"
)

func newClient(runner run.Runner) *gitx.Client {
	return gitx.NewClient(runner, time.Minute, time.Minute)
}

func assertNoPrompt(t *testing.T, spec run.Spec) {
	t.Helper()
	var sawPrompt bool
	for _, e := range spec.Env {
		if e == "GIT_TERMINAL_PROMPT=0" {
			sawPrompt = true
		}
	}
	if !sawPrompt {
		t.Errorf("git invocation missing GIT_TERMINAL_PROMPT=0: %v", spec.Env)
	}
}

func TestClient_LsRemoteHeads(t *testing.T) {
	runner := testutil.NewScriptedRunner()
	runner.Handle(testutil.Match("git", "ls-remote", "--heads"), func(run.Spec) (run.Result, error) {
		return run.Result{Stdout: "aaa111\trefs/heads/main\nbbb222\trefs/heads/dev\n"}, nil
	})

	heads, err := newClient(runner).LsRemoteHeads(context.Background(), "https://example.com/r.git")
	if err != nil {
		t.Fatalf("LsRemoteHeads() error = %v", err)
	}
	if heads["main"] != "aaa111" || heads["dev"] != "bbb222" {
		t.Errorf("heads = %v", heads)
	}
	assertNoPrompt(t, runner.Calls()[0])
}

func TestClient_DefaultBranch(t *testing.T) {
	t.Run("parses the HEAD symref", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		runner.Handle(testutil.Match("git", "ls-remote", "--symref"), func(run.Spec) (run.Result, error) {
			return run.Result{Stdout: "ref: refs/heads/trunk\tHEAD\nccc333\tHEAD\n"}, nil
		})

		branch, err := newClient(runner).DefaultBranch(context.Background(), "https://example.com/r.git")
		if err != nil {
			t.Fatalf("DefaultBranch() error = %v", err)
		}
		if branch != "trunk" {
			t.Errorf("DefaultBranch() = %q, want trunk", branch)
		}
	})

	t.Run("missing symref is an error", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		runner.Handle(testutil.Match("git"), func(run.Spec) (run.Result, error) {
			return run.Result{Stdout: "ccc333\tHEAD\n"}, nil
		})

		if _, err := newClient(runner).DefaultBranch(context.Background(), "https://example.com/r.git"); err == nil {
			t.Error("expected error without symref line")
		}
	})
}

func TestClient_Pull(t *testing.T) {
	t.Run("fast-forward only, in the clone", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		c := newClient(runner)

		if err := c.Pull(context.Background(), "/data/repos/repo-a"); err != nil {
			t.Fatalf("Pull() error = %v", err)
		}

		call := runner.Calls()[0]
		if call.Args[0] != "pull" || call.Args[1] != "--ff-only" {
			t.Errorf("args = %v, want pull --ff-only", call.Args)
		}
		if call.Dir != "/data/repos/repo-a" {
			t.Errorf("dir = %q", call.Dir)
		}
	})

	t.Run("failures carry a classified category", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		runner.Fail(testutil.Match("git", "pull"), 128, "fatal: bad object HEAD")

		err := newClient(runner).Pull(context.Background(), "/data/repos/repo-a")
		var fe *golden.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.Category != golden.FetchCorruption {
			t.Errorf("category = %v, want corruption", fe.Category)
		}
	})

	t.Run("timeouts classify as transient", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		runner.Handle(testutil.Match("git", "pull"), func(run.Spec) (run.Result, error) {
			return run.Result{ExitCode: -1, TimedOut: true}, nil
		})

		err := newClient(runner).Pull(context.Background(), "/data/repos/repo-a")
		category, ok := golden.IsFetchError(err)
		if !ok || category != golden.FetchTransient {
			t.Errorf("error = %v, want transient FetchError", err)
		}
	})
}

func TestClient_RevParse(t *testing.T) {
	runner := testutil.NewScriptedRunner()
	runner.Handle(testutil.Match("git", "rev-parse"), func(run.Spec) (run.Result, error) {
		return run.Result{Stdout: "abc123\n"}, nil
	})

	head, err := newClient(runner).RevParse(context.Background(), "/data/repos/repo-a", "HEAD")
	if err != nil {
		t.Fatalf("RevParse() error = %v", err)
	}
	if head != "abc123" {
		t.Errorf("RevParse() = %q, want abc123", head)
	}
}

func TestClient_RefreshIndex(t *testing.T) {
	t.Run("exit 1 is not a failure", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		runner.Fail(testutil.Match("git", "update-index"), 1, "needs update")

		if err := newClient(runner).RefreshIndex(context.Background(), "/v/repo-a/v_1"); err != nil {
			t.Errorf("RefreshIndex() error = %v, want nil for exit 1", err)
		}
	})

	t.Run("exit 2 is a failure", func(t *testing.T) {
		runner := testutil.NewScriptedRunner()
		runner.Fail(testutil.Match("git", "update-index"), 2, "fatal: index corrupt")

		if err := newClient(runner).RefreshIndex(context.Background(), "/v/repo-a/v_1"); err == nil {
			t.Error("expected error for exit 2")
		}
	})
}

func TestClient_Clone(t *testing.T) {
	runner := testutil.NewScriptedRunner()
	c := newClient(runner)

	if err := c.Clone(context.Background(), "https://example.com/r.git", "/data/repos/repo-a"); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	call := runner.Calls()[0]
	if call.Args[0] != "clone" || call.Args[1] != "https://example.com/r.git" || call.Args[2] != "/data/repos/repo-a" {
		t.Errorf("args = %v", call.Args)
	}
	assertNoPrompt(t, call)
}
