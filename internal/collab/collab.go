// Package collab runs the external collaborator tools the pipeline
// delegates whole phases to: the discovery scraper, the posting
// enricher, the qualifier and the material writer. Collaborators are
// plain executables configured as command lines; a collaborator that is
// not installed simply makes its phase a no-op.
package collab

import "context"

// Result holds the outcome of one collaborator invocation. A non-zero
// exit code is a result, not an error: errors are reserved for commands
// that could not be started at all.
type Result struct {
	Tool     string   `json:"tool"`
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Runner abstracts one collaborator tool.
type Runner interface {
	// Name returns the collaborator identifier.
	Name() string

	// Available reports whether the tool can be invoked right now.
	Available() bool

	// Run executes the tool with its configured arguments plus extra.
	Run(ctx context.Context, extra ...string) (*Result, error)
}

// Info describes one collaborator for status output.
type Info struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
}

// Detect probes each runner, skipping nils, so status can show which
// collaborators a run would actually use.
func Detect(runners ...Runner) []Info {
	infos := make([]Info, 0, len(runners))
	for _, r := range runners {
		if r == nil {
			continue
		}
		info := Info{Name: r.Name(), Available: r.Available()}
		if er, ok := r.(*ExecRunner); ok {
			info.Command = er.CommandLine()
		}
		infos = append(infos, info)
	}
	return infos
}
