// Package command runs the external tools the control plane depends on
// (wg, wg-quick) and reports their outcome as data.
//
// A Runner returns an error only when the process could not be run at all.
// A tool that ran and exited non-zero is reported through Result.Success;
// Check turns such a result into an *errors.CommandError carrying stderr.
package command

import (
	"context"
	"strings"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
)

// Cmd describes a single invocation.
type Cmd struct {
	Name  string
	Args  []string
	Stdin []byte
}

// New builds a Cmd without standard input.
func New(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

// WithStdin returns a copy of c that feeds data on standard input.
func (c Cmd) WithStdin(data []byte) Cmd {
	c.Stdin = data
	return c
}

// String renders the command line. Stdin is not included.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the captured outcome of a command that was started.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Cmd) (Result, error)

// Run calls f(ctx, cmd).
func (f RunnerFunc) Run(ctx context.Context, cmd Cmd) (Result, error) {
	return f(ctx, cmd)
}

// Check converts an unsuccessful result into a *CommandError.
func Check(cmd Cmd, res Result) error {
	if res.Success {
		return nil
	}
	return &apperrors.CommandError{
		Command:  cmd.Name,
		Args:     cmd.Args,
		ExitCode: res.ExitCode,
		Stderr:   string(res.Stderr),
	}
}

// Output runs cmd and returns its standard output, or an error if it could
// not be started or exited non-zero.
func Output(ctx context.Context, r Runner, cmd Cmd) ([]byte, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := Check(cmd, res); err != nil {
		return nil, err
	}
	return res.Stdout, nil
}
