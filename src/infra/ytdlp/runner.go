package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/contre95/soulfetch/src/features/acquisition"
)

var (
	// ErrOutputTooLarge is returned when a process writes more than the
	// configured maximum to stdout. The process is killed.
	ErrOutputTooLarge = errors.New("command output exceeds limit")
	// ErrTimeout is returned when an invocation runs past its timeout.
	ErrTimeout = errors.New("command timed out")
)

const defaultWaitDelay = 5 * time.Second

// Runner runs the external tool with bounded output and optional timeouts.
type Runner struct {
	binary    string
	maxOutput int
	waitDelay time.Duration
}

// NewRunner creates a runner for binary. maxOutput <= 0 disables the stdout limit.
func NewRunner(binary string, maxOutput int) *Runner {
	return &Runner{binary: binary, maxOutput: maxOutput, waitDelay: defaultWaitDelay}
}

// Binary returns the executable the runner invokes.
func (r *Runner) Binary() string {
	return r.binary
}

// CommandLine renders args as a shell-like command line for logs and the
// failure ledger.
func (r *Runner) CommandLine(args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, r.binary)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Output runs the command and collects its stdout. A timeout of 0 means no
// timeout beyond ctx.
func (r *Runner) Output(ctx context.Context, timeout time.Duration, args ...string) (acquisition.ToolOutput, error) {
	runCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	cmd := r.command(runCtx, args)
	stdout := &limitedBuffer{max: r.maxOutput, onOverflow: cancel}
	stderr := &limitedBuffer{max: r.stderrLimit(), truncate: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.Debug("Running command", "command", r.CommandLine(args...))
	err := cmd.Run()
	res := acquisition.ToolOutput{Stdout: stdout.Bytes(), Stderr: stderr.String(), ExitCode: exitCode(cmd)}
	return res, r.finish(ctx, runCtx, args, err, stdout.overflowed())
}

// Stream runs the command and hands every stdout line to onLine as it is
// written. Lines are delivered on the calling goroutine.
func (r *Runner) Stream(ctx context.Context, timeout time.Duration, onLine func(string), args ...string) (acquisition.ToolOutput, error) {
	runCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	cmd := r.command(runCtx, args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return acquisition.ToolOutput{ExitCode: -1}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &limitedBuffer{max: r.stderrLimit(), truncate: true}
	cmd.Stderr = stderr

	slog.Debug("Streaming command", "command", r.CommandLine(args...))
	if err := cmd.Start(); err != nil {
		return acquisition.ToolOutput{ExitCode: -1}, fmt.Errorf("failed to start %s: %w", r.binary, err)
	}

	var (
		collected bytes.Buffer
		read      int
		overflow  bool
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		read += len(line) + 1
		if r.maxOutput > 0 && read > r.maxOutput {
			if !overflow {
				overflow = true
				cancel()
			}
			continue
		}
		collected.WriteString(line)
		collected.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("Stopped reading command output", "command", r.binary, "error", err)
		io.Copy(io.Discard, stdout)
	}

	err = cmd.Wait()
	res := acquisition.ToolOutput{Stdout: collected.Bytes(), Stderr: stderr.String(), ExitCode: exitCode(cmd)}
	return res, r.finish(ctx, runCtx, args, err, overflow)
}

func (r *Runner) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.WaitDelay = r.waitDelay
	return cmd
}

func (r *Runner) stderrLimit() int {
	if r.maxOutput > 0 {
		return r.maxOutput
	}
	return 1024 * 1024
}

// finish maps the raw process error to the package errors. Parent
// cancellation wins over timeouts, timeouts win over overflows.
func (r *Runner) finish(parent, runCtx context.Context, args []string, err error, overflow bool) error {
	if err == nil && !overflow {
		return nil
	}
	if parent.Err() != nil {
		return fmt.Errorf("%s: %w", r.binary, parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", r.binary, firstArg(args), ErrTimeout)
	}
	if overflow {
		return fmt.Errorf("%s %s: %w", r.binary, firstArg(args), ErrOutputTooLarge)
	}
	return fmt.Errorf("%s %s failed: %w", r.binary, firstArg(args), err)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// limitedBuffer keeps at most max bytes. With truncate set, extra bytes are
// dropped silently; otherwise onOverflow is called once.
type limitedBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	max        int
	truncate   bool
	overflow   bool
	onOverflow func()
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max <= 0 {
		return b.buf.Write(p)
	}
	room := b.max - b.buf.Len()
	if len(p) <= room {
		return b.buf.Write(p)
	}
	if room > 0 {
		b.buf.Write(p[:room])
	}
	if !b.truncate && !b.overflow {
		b.overflow = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *limitedBuffer) overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}
