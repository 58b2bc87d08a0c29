// Package media вызывает ffmpeg и ffprobe: рендер видео, измерение
// длительности и проверка готового файла.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Runner запускает внешнюю программу и ждет завершения.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*RunResult, error)
}

// RunResult - вывод завершившегося процесса.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ExitError - процесс завершился с ошибкой или был убит по таймауту.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ExitError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s killed after timeout: %v", e.Command, e.Err)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s exited with code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// stderrTailBytes - сколько хвоста stderr сохраняем в ошибке.
const stderrTailBytes = 2000

// ExecRunner - Runner на os/exec. По истечении контекста процесс получает SIGKILL.
type ExecRunner struct {
	logger *zap.Logger
}

// NewExecRunner создает ExecRunner.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{logger: logger}
}

// Run запускает name с аргументами. Таймаут задается контекстом.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// CommandContext по умолчанию шлет Kill, WaitDelay не дает зависнуть на открытых pipe
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Debug("Running command", zap.String("cmd", name), zap.Strings("args", args))
	err := cmd.Run()
	res := &RunResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: time.Since(start)}
	if err == nil {
		r.logger.Debug("Command finished", zap.String("cmd", name), zap.Duration("duration", res.Duration))
		return res, nil
	}

	exitErr := &ExitError{
		Command:  name,
		ExitCode: -1,
		Stderr:   tail(stderr.String(), stderrTailBytes),
		Err:      err,
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		exitErr.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		exitErr.Err = ctxErr
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		exitErr.ExitCode = ee.ExitCode()
	}
	r.logger.Warn("Command failed",
		zap.String("cmd", name),
		zap.Int("exit_code", exitErr.ExitCode),
		zap.Bool("timed_out", exitErr.TimedOut),
		zap.Duration("duration", res.Duration),
		zap.String("stderr_tail", exitErr.Stderr),
	)
	return res, exitErr
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
