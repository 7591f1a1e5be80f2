package collab

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ExecRunner invokes a collaborator from a configured command line,
// e.g. "python3 ~/tools/qualify.py --min-score 60". The line is split
// with shell quoting rules once at construction.
type ExecRunner struct {
	name    string
	command string
	args    []string
	workDir string
	env     []string
}

// NewExecRunner parses commandLine and returns a runner for it.
func NewExecRunner(name, commandLine, workDir string) (*ExecRunner, error) {
	words, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("collaborator %s: parsing %q: %w", name, commandLine, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("collaborator %s: empty command line", name)
	}
	return &ExecRunner{name: name, command: words[0], args: words[1:], workDir: workDir}, nil
}

// Name returns the collaborator identifier.
func (r *ExecRunner) Name() string { return r.name }

// CommandLine reassembles the configured command for display.
func (r *ExecRunner) CommandLine() string {
	return shellquote.Join(append([]string{r.command}, r.args...)...)
}

// SetEnv adds extra environment entries ("KEY=value") to every run.
func (r *ExecRunner) SetEnv(env []string) { r.env = env }

// Available reports whether the executable can be resolved: by path
// when the command contains a separator, via PATH lookup otherwise.
func (r *ExecRunner) Available() bool {
	if strings.ContainsRune(r.command, os.PathSeparator) {
		info, err := os.Stat(r.command)
		return err == nil && !info.IsDir()
	}
	_, err := exec.LookPath(r.command)
	return err == nil
}

// Run executes the collaborator with its configured arguments plus
// extra. The exit code lands in the Result; only spawn failures are
// returned as errors.
func (r *ExecRunner) Run(ctx context.Context, extra ...string) (*Result, error) {
	args := append(append([]string{}, r.args...), extra...)

	cmd := exec.CommandContext(ctx, r.command, args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("collaborator %s: %w", r.name, err)
		}
	}

	return &Result{
		Tool:     r.name,
		Command:  r.command,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
