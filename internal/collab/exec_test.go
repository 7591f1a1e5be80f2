package collab

import (
	"context"
	"strings"
	"testing"
)

func TestNewExecRunnerParsesQuoting(t *testing.T) {
	r, err := NewExecRunner("qualify", `python3 "/home/me/my tools/qualify.py" --min-score 60`, "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}
	if r.command != "python3" {
		t.Errorf("command = %q, want python3", r.command)
	}
	if len(r.args) != 3 || r.args[0] != "/home/me/my tools/qualify.py" {
		t.Errorf("args = %v, want quoted path kept as one word", r.args)
	}
}

func TestNewExecRunnerRejectsEmpty(t *testing.T) {
	if _, err := NewExecRunner("scrape", "   ", ""); err == nil {
		t.Error("expected error for empty command line")
	}
}

func TestNewExecRunnerRejectsUnbalancedQuote(t *testing.T) {
	if _, err := NewExecRunner("scrape", `sh -c "oops`, ""); err == nil {
		t.Error("expected error for unbalanced quote")
	}
}

func TestRunCapturesExitCode(t *testing.T) {
	r, err := NewExecRunner("qualify", "sh -c 'exit 3'", "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v (exit codes must be results, not errors)", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunCapturesOutput(t *testing.T) {
	r, err := NewExecRunner("discovery", "sh -c 'echo found 7 listings'", "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stdout, "found 7 listings") {
		t.Errorf("Stdout = %q, want echo output", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunAppendsExtraArgs(t *testing.T) {
	r, err := NewExecRunner("write", "echo base", "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}

	res, err := r.Run(context.Background(), "--folder", "Acme_Engineer")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stdout, "base --folder Acme_Engineer") {
		t.Errorf("Stdout = %q, want extra args appended", res.Stdout)
	}
}

func TestRunSpawnFailureIsError(t *testing.T) {
	r, err := NewExecRunner("scrape", "/definitely/not/a/binary", "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}

	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected spawn error for missing binary")
	}
}

func TestAvailable(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"on PATH", "sh", true},
		{"missing from PATH", "jobflow-no-such-tool", false},
		{"missing absolute path", "/definitely/not/a/binary", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewExecRunner("x", tt.command, "")
			if err != nil {
				t.Fatalf("NewExecRunner: %v", err)
			}
			if got := r.Available(); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	sh, err := NewExecRunner("discovery", "sh -c true", "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}
	missing, err := NewExecRunner("write", "jobflow-no-such-tool", "")
	if err != nil {
		t.Fatalf("NewExecRunner: %v", err)
	}

	infos := Detect(sh, nil, missing)
	if len(infos) != 2 {
		t.Fatalf("Detect returned %d infos, want 2 (nil skipped)", len(infos))
	}
	if !infos[0].Available {
		t.Error("sh should be available")
	}
	if infos[1].Available {
		t.Error("missing tool should not be available")
	}
}
