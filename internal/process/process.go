// Package process runs the external helper programs some tasks delegate to
// (sass, linters, the lodash and modernizr builders, font converters).
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/validation"
)

// Command describes one invocation of an external program.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin []byte
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// FromArgs builds a Command from a configured argv. The first element is
// the program.
func FromArgs(argv []string) (Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Command{}, errors.NewConfigError(errors.ErrCodeConfigInvalid, "command cannot be empty")
	}
	return Command{Name: argv[0], Args: append([]string(nil), argv[1:]...)}, nil
}

// Expand replaces {key} placeholders in every argument with vars[key].
// Unknown placeholders are left as they are.
func (c Command) Expand(vars map[string]string) Command {
	out := c
	out.Args = make([]string, len(c.Args))
	for i, arg := range c.Args {
		for key, value := range vars {
			arg = strings.ReplaceAll(arg, "{"+key+"}", value)
		}
		out.Args[i] = arg
	}
	return out
}

// Runner executes commands and returns their standard output.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger logging.Logger
}

// NewExecRunner creates a runner that logs every invocation at debug level.
func NewExecRunner(logger logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ExecRunner{logger: logger.WithComponent("process")}
}

// Run executes cmd. A rejected program or argument is a ConfigError. A
// missing program or a non-zero exit status is a ProcessError; the error
// message carries the program's standard error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(programPath(cmd))
	if err != nil {
		return nil, errors.NewProcessError(errors.ErrCodeProcessMissing,
			fmt.Sprintf("%s not found", cmd.Name), err).
			WithContext("command", cmd.String())
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	r.logger.Debug(ctx, "Running command", "command", cmd.String(), "dir", cmd.Dir)

	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		msg := fmt.Sprintf("%s failed", cmd.Name)
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			msg += ": " + detail
		}
		perr := errors.NewProcessError(errors.ErrCodeProcessFailed, msg, err).
			WithContext("command", cmd.String())
		if exitErr, ok := err.(*exec.ExitError); ok {
			perr = perr.WithContext("exit_code", exitErr.ExitCode())
		}
		return nil, perr
	}

	return stdout.Bytes(), nil
}

// programPath resolves a project-local program such as
// node_modules/.bin/lodash against the command's directory. Bare names are
// looked up in PATH.
func programPath(cmd Command) string {
	name := cmd.Name
	if cmd.Dir == "" || filepath.IsAbs(name) || !strings.ContainsRune(filepath.ToSlash(name), '/') {
		return name
	}
	return filepath.Join(cmd.Dir, name)
}

// validateCommand checks the program strictly. Arguments are often file
// names expanded from globs, so they only need to be passable to exec.
func validateCommand(cmd Command) error {
	if err := validation.ValidateArgument(cmd.Name); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid command %q: %v", cmd.Name, err)).
			WithContext("command", cmd.String())
	}
	for _, arg := range cmd.Args {
		if err := validation.ValidateFileArgument(arg); err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidArgument,
				fmt.Sprintf("invalid argument %q: %v", arg, err)).
				WithContext("command", cmd.String())
		}
	}
	return nil
}
