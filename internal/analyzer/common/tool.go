package common

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// ErrToolMissing is returned when an external analyzer is not installed.
var ErrToolMissing = errors.New("external tool not found")

// Tool is an external command line analyzer. Arguments given to Run are
// appended to the configured command line.
type Tool struct {
	argv []string
	// exec runs a command and returns its stdout; replaced in tests.
	exec func(ctx context.Context, argv []string) ([]byte, error)
}

// NewTool parses a shell-style command line such as
// "licensee detect --confidence=98 --json".
func NewTool(cmdline string) (*Tool, error) {
	argv, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing command %q", cmdline)
	}
	if len(argv) == 0 {
		return nil, errors.Newf("empty command %q", cmdline)
	}
	return &Tool{argv: argv, exec: runCommand}, nil
}

// StubTool returns a tool whose output is produced by fn instead of a
// process. It is meant for tests.
func StubTool(name string, fn func(args []string) ([]byte, error)) *Tool {
	return &Tool{
		argv: []string{name},
		exec: func(_ context.Context, argv []string) ([]byte, error) { return fn(argv[1:]) },
	}
}

// Name returns the program name.
func (t *Tool) Name() string {
	return t.argv[0]
}

// Run executes the tool with extra arguments and returns stdout. A non-zero
// exit status is not an error when the tool still produced output; linters
// report findings that way.
func (t *Tool) Run(ctx context.Context, args ...string) ([]byte, error) {
	argv := append(append([]string(nil), t.argv...), args...)
	return t.exec(ctx, argv)
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, errors.WithHintf(errors.Wrap(ErrToolMissing, argv[0]), "install %s or point the tools config at it", argv[0])
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && stdout.Len() > 0 {
		return stdout.Bytes(), nil
	}
	return nil, errors.Wrapf(err, "%s: %s", argv[0], strings.TrimSpace(stderr.String()))
}
