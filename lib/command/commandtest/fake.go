// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/go-i2p/wgadmin/lib/command"
	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Handler produces the outcome of one scripted invocation.
type Handler func(cmd command.Cmd) (command.Result, error)

type rule struct {
	prefix  string
	handler Handler
}

// Fake is a command.Runner that records every call and answers from rules
// matched against the command line. The longest matching prefix wins;
// unmatched commands succeed with empty output.
type Fake struct {
	mu    sync.Mutex
	rules []rule
	calls []command.Cmd
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{}
}

// On registers a handler for command lines starting with prefix.
func (f *Fake) On(prefix string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, handler: h})
	return f
}

// Respond makes matching commands succeed with the given stdout.
func (f *Fake) Respond(prefix, stdout string) *Fake {
	return f.On(prefix, func(command.Cmd) (command.Result, error) {
		return command.Result{Success: true, Stdout: []byte(stdout)}, nil
	})
}

// Fail makes matching commands exit with code and stderr.
func (f *Fake) Fail(prefix, stderr string, code int) *Fake {
	return f.On(prefix, func(command.Cmd) (command.Result, error) {
		return command.Result{ExitCode: code, Stderr: []byte(stderr)}, nil
	})
}

// Unavailable makes matching commands fail to start.
func (f *Fake) Unavailable(prefix string) *Fake {
	return f.On(prefix, func(cmd command.Cmd) (command.Result, error) {
		return command.Result{ExitCode: -1}, apperrors.Unavailable(cmd.Name, errNotInstalled)
	})
}

// Keys scripts "wg genkey" and "wg pubkey" with real, freshly generated keys.
func (f *Fake) Keys() *Fake {
	f.On("wg genkey", func(command.Cmd) (command.Result, error) {
		k, err := wgtypes.GeneratePrivateKey()
		if err != nil {
			return command.Result{}, err
		}
		return command.Result{Success: true, Stdout: []byte(k.String() + "\n")}, nil
	})
	return f.On("wg pubkey", func(cmd command.Cmd) (command.Result, error) {
		k, err := wgtypes.ParseKey(strings.TrimSpace(string(cmd.Stdin)))
		if err != nil {
			return command.Result{ExitCode: 1, Stderr: []byte("Key is not the correct length or format\n")}, nil
		}
		return command.Result{Success: true, Stdout: []byte(k.PublicKey().String() + "\n")}, nil
	})
}

// Live scripts "wg show interfaces" to report the given interface names.
func (f *Fake) Live(names ...string) *Fake {
	return f.Respond("wg show interfaces", strings.Join(names, " ")+"\n")
}

// Run implements command.Runner.
func (f *Fake) Run(ctx context.Context, cmd command.Cmd) (command.Result, error) {
	if err := ctx.Err(); err != nil {
		return command.Result{}, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	line := cmd.String()
	var match *rule
	for i := range f.rules {
		r := &f.rules[i]
		if strings.HasPrefix(line, r.prefix) && (match == nil || len(r.prefix) >= len(match.prefix)) {
			match = r
		}
	}
	f.mu.Unlock()

	if match == nil {
		return command.Result{Success: true}, nil
	}
	return match.handler(cmd)
}

// Calls returns a copy of every recorded invocation.
func (f *Fake) Calls() []command.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Cmd(nil), f.calls...)
}

// Lines returns the recorded invocations as command lines.
func (f *Fake) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// LinesWithPrefix returns recorded command lines starting with prefix.
func (f *Fake) LinesWithPrefix(prefix string) []string {
	var out []string
	for _, l := range f.Lines() {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

// Reset forgets recorded calls; rules are kept.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type notInstalled struct{}

func (notInstalled) Error() string { return "executable file not found in $PATH" }

var errNotInstalled error = notInstalled{}
