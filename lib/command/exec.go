package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/metrics"
)

// Exec runs commands as child processes of the current process.
type Exec struct {
	// Timeout bounds each invocation. Zero means no timeout.
	Timeout time.Duration
	// Env, if non-nil, replaces the child's environment.
	Env []string
}

// Run starts the process, waits for it and captures both output streams.
func (e Exec) Run(ctx context.Context, c Cmd) (Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	if e.Env != nil {
		cmd.Env = e.Env
	}

	log.WithField("command", c.String()).Debug("running external command")

	start := time.Now()
	err := cmd.Run()
	metrics.CommandDuration.WithLabelValues(c.Name).Observe(time.Since(start).Seconds())

	res := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err == nil {
		res.Success = true
		metrics.CommandsTotal.WithLabelValues(c.Name, "ok").Inc()
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.CommandsTotal.WithLabelValues(c.Name, "canceled").Inc()
		return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		metrics.CommandsTotal.WithLabelValues(c.Name, "failed").Inc()
		log.WithField("command", c.String()).
			WithField("exit_code", res.ExitCode).
			Debug("external command exited non-zero")
		return res, nil
	}

	metrics.CommandsTotal.WithLabelValues(c.Name, "unavailable").Inc()
	log.WithField("command", c.Name).WithError(err).Warn("could not start external command")
	res.ExitCode = -1
	return res, apperrors.Unavailable(c.Name, err)
}
