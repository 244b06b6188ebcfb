package hostsvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrCommand is returned when an external command exits unsuccessfully.
var ErrCommand = errors.New("command failed")

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env, when set, replaces the process environment of every command.
	Env []string
}

// Run executes name with args and waits for it to finish or ctx to end.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("%s: %w", name, ctxErr)
		}
		msg := string(bytes.TrimSpace(out))
		if msg == "" {
			return out, fmt.Errorf("%w: %s: %v", ErrCommand, commandLabel(name, args), err)
		}
		return out, fmt.Errorf("%w: %s: %v: %s", ErrCommand, commandLabel(name, args), err, msg)
	}
	return out, nil
}

// commandLabel names a command for error messages. Only the first argument is
// kept so key material never ends up in logs.
func commandLabel(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + args[0]
}
