// Package execute implements the ExternalCommand collaborator (spec §6):
// allocation of a script invocation, $TOKEN substitution, and synchronous
// execution with a timeout.
package execute

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/clustermon/core/internal/monitor"
)

// command is the concrete handle behind monitor.Cmd.
type command struct {
	cmdline string
	timeout time.Duration
	tokens  map[string]string
}

// Runner implements monitor.ExternalCommand over os/exec.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

func (r *Runner) Allocate(cmdline string, timeout time.Duration) (monitor.Cmd, error) {
	return &command{cmdline: cmdline, timeout: timeout, tokens: make(map[string]string)}, nil
}

func (r *Runner) Substitute(cmd monitor.Cmd, token, value string) {
	cmd.(*command).tokens[token] = value
}

func (r *Runner) Matches(cmd monitor.Cmd, token string) bool {
	_, ok := cmd.(*command).tokens[token]
	return ok
}

// Execute substitutes every $TOKEN in the configured cmdline and runs it
// through the shell, returning a negative value on internal failure
// (couldn't start the process, or its context deadline was exceeded) and
// the process's exit status otherwise.
func (r *Runner) Execute(c monitor.Cmd) int {
	cmd := c.(*command)

	replacer := make([]string, 0, len(cmd.tokens)*2)
	for token, value := range cmd.tokens {
		replacer = append(replacer, "$"+token, value)
	}
	expanded := strings.NewReplacer(replacer...).Replace(cmd.cmdline)

	ctx, cancel := context.WithTimeout(context.Background(), cmd.timeout)
	defer cancel()

	execCmd := exec.CommandContext(ctx, "/bin/sh", "-c", expanded)
	err := execCmd.Run()
	if err == nil {
		return 0
	}
	if ctx.Err() != nil {
		return -1
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func (r *Runner) Free(monitor.Cmd) {}
