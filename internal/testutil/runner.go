package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golden-go/internal/run"
)

// ScriptedRunner is a run.Runner for tests. Handlers are consulted in
// registration order; the first whose matcher accepts the spec responds.
// Unmatched commands succeed with exit 0, so tests only script what they
// assert on.
type ScriptedRunner struct {
	mu       sync.Mutex
	calls    []run.Spec
	handlers []scriptHandler
}

type scriptHandler struct {
	match   func(run.Spec) bool
	respond func(run.Spec) (run.Result, error)
}

func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{}
}

// Handle registers a matcher/responder pair.
func (r *ScriptedRunner) Handle(match func(run.Spec) bool, respond func(run.Spec) (run.Result, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, scriptHandler{match: match, respond: respond})
}

// Fail registers a responder that fails every matched command with the
// given exit code and stderr.
func (r *ScriptedRunner) Fail(match func(run.Spec) bool, exitCode int, stderr string) {
	r.Handle(match, func(run.Spec) (run.Result, error) {
		return run.Result{ExitCode: exitCode, Stderr: stderr}, nil
	})
}

func (r *ScriptedRunner) Run(_ context.Context, spec run.Spec) (run.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	handlers := make([]scriptHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		if h.match(spec) {
			return h.respond(spec)
		}
	}
	return run.Result{ExitCode: 0}, nil
}

// Calls returns a copy of every spec seen so far, in order.
func (r *ScriptedRunner) Calls() []run.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]run.Spec, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallStrings renders calls as "name arg arg" for easy assertions.
func (r *ScriptedRunner) CallStrings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
	}
	return out
}

// Match builds a matcher on command name and leading arguments.
func Match(name string, argPrefix ...string) func(run.Spec) bool {
	return func(s run.Spec) bool {
		if s.Name != name || len(s.Args) < len(argPrefix) {
			return false
		}
		for i, a := range argPrefix {
			if s.Args[i] != a {
				return false
			}
		}
		return true
	}
}

// CopyDirResponder makes a scripted `cp` behave like the real thing: the
// last two arguments are treated as source and destination directories.
func CopyDirResponder() func(run.Spec) (run.Result, error) {
	return func(s run.Spec) (run.Result, error) {
		if len(s.Args) < 2 {
			return run.Result{ExitCode: 1, Stderr: "cp: missing operand"}, nil
		}
		src := s.Args[len(s.Args)-2]
		dst := s.Args[len(s.Args)-1]
		if err := CopyDir(src, dst); err != nil {
			return run.Result{ExitCode: 1, Stderr: err.Error()}, nil
		}
		return run.Result{ExitCode: 0}, nil
	}
}

// CopyDir recursively copies src into dst (dst must not exist).
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

// TouchFile creates (or truncates) a file with the given content, creating
// parent directories as needed.
func TouchFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// MkVersionDir creates a version directory v_<unix> under versionsDir and
// returns its path.
func MkVersionDir(versionsDir string, unix int64) (string, error) {
	p := filepath.Join(versionsDir, fmt.Sprintf("v_%d", unix))
	return p, os.MkdirAll(p, 0755)
}
