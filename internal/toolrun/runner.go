package toolrun

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
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// LineFunc receives every non-empty output line as it arrives.
type LineFunc func(stream OutputStream, line string)

type Invocation struct {
	Path string
	Args []string
}

func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Path}, inv.Args...), " ")
}

// Runner invokes an external tool synchronously. A non-zero exit is reported
// through the exit code; err is set only when the process could not start.
type Runner interface {
	Run(ctx context.Context, inv Invocation, onLine LineFunc) (int, error)
}

type ExecRunner struct {
	Logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// Run launches inv and waits for it. ctx is only checked before launch: once
// started, the process runs to completion.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation, onLine LineFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if strings.TrimSpace(inv.Path) == "" {
		return -1, errors.New("tool path is required")
	}

	cmd := exec.Command(inv.Path, inv.Args...)
	hideWindow(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("setup stderr pipe: %w", err)
	}

	r.logger().Debug("starting tool", "cmd", inv.String())
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", inv.Path, err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	read := func(stream OutputStream, rd io.Reader) {
		defer wg.Done()
		err := readLines(rd, func(line string) {
			line = strings.TrimRight(line, " \t")
			if line == "" || onLine == nil {
				return
			}
			mu.Lock()
			onLine(stream, line)
			mu.Unlock()
		})
		if err != nil {
			r.logger().Warn("read tool output", "cmd", inv.Path, "stream", string(stream), "error", err)
			_, _ = io.Copy(io.Discard, rd)
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	err = cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, fmt.Errorf("wait %s: %w", inv.Path, err)
		}
		code = exitErr.ExitCode()
	}
	r.logger().Debug("tool finished", "cmd", inv.Path, "exit_code", code)
	return code, nil
}

func (r *ExecRunner) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// Capture runs inv and returns its stdout lines; every line (both streams)
// is still forwarded to onLine.
func Capture(ctx context.Context, r Runner, inv Invocation, onLine LineFunc) (int, []string, error) {
	var out []string
	code, err := r.Run(ctx, inv, func(stream OutputStream, line string) {
		if stream == StreamStdout {
			out = append(out, line)
		}
		if onLine != nil {
			onLine(stream, line)
		}
	})
	return code, out, err
}

// Succeeded folds a Run result into a single pass/fail answer.
func Succeeded(code int, err error) bool {
	return err == nil && code == 0
}

// readLines splits r on LF or CR. Lines have no length limit: yt-dlp
// --dump-json records regularly exceed a megabyte.
func readLines(r io.Reader, emit func(line string)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var pending []byte
	for {
		chunk, err := br.ReadSlice('\n')
		for len(chunk) > 0 {
			i := bytes.IndexAny(chunk, "\r\n")
			if i < 0 {
				pending = append(pending, chunk...)
				break
			}
			pending = append(pending, chunk[:i]...)
			if len(pending) > 0 {
				emit(string(pending))
			}
			pending = pending[:0]
			chunk = chunk[i+1:]
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if len(pending) > 0 {
				emit(string(pending))
			}
			return nil
		default:
			return err
		}
	}
}
