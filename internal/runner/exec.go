package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/card"
)

// Exit codes reported for jobs that never produced a real exit status.
const (
	SpawnFailedExitCode = -1
	TimedOutExitCode    = -2
)

// Exec runs the simulator once per job.
//
// The process starts in WorkDir with the job's driver file as stdin and its
// log file as stdout and stderr. It runs in its own process group so that
// cancellation kills every descendant.
type Exec struct {
	Executable string
	WorkDir    string

	// Timeout kills a job that runs longer. Zero means no limit.
	Timeout time.Duration
}

// Path resolves the executable against the working directory.
func (e *Exec) Path() string {
	return resolve(e.WorkDir, e.Executable)
}

func resolve(workDir, exe string) string {
	if filepath.IsAbs(exe) {
		return exe
	}
	return filepath.Join(workDir, exe)
}

// Run executes job d and returns its exit status. A non-zero status is not an
// error. Errors are a *SpawnError when the process could not be started, or
// wrap ErrCancelled when ctx was cancelled before the process exited.
func (e *Exec) Run(ctx context.Context, d card.Descriptor) (int, error) {
	stdin, err := os.Open(d.Driver)
	if err != nil {
		return SpawnFailedExitCode, &SpawnError{ID: d.ID, Err: err}
	}
	defer stdin.Close()

	logFile, err := os.Create(d.Log)
	if err != nil {
		return SpawnFailedExitCode, &SpawnError{ID: d.ID, Err: err}
	}
	defer logFile.Close()

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.Command(e.Path())
	cmd.Dir = e.WorkDir
	cmd.Stdin = stdin
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return SpawnFailedExitCode, &SpawnError{ID: d.ID, Err: err}
	}
	entry := log.WithFields(log.Fields{"job": d.ID, "pid": cmd.Process.Pid})
	entry.Debug("job started")

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-done
		if ctx.Err() != nil {
			entry.Debug("job killed")
			return SpawnFailedExitCode, fmt.Errorf("job %d: %w: %v", d.ID, ErrCancelled, ctx.Err())
		}
		entry.WithField("timeout", e.Timeout).Warn("job timed out")
		fmt.Fprintf(logFile, "\nbbngrid: killed after %s\n", e.Timeout)
		return TimedOutExitCode, nil
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return SpawnFailedExitCode, &SpawnError{ID: d.ID, Err: err}
		}
		exitCode = exitErr.ExitCode()
	}
	entry.WithField("exit", exitCode).Debug("job exited")
	return exitCode, nil
}

// ShellCommand is the equivalent shell invocation of one job, for humans
// re-running it by hand.
func ShellCommand(exe, driver, logPath string) string {
	if !filepath.IsAbs(exe) {
		exe = "./" + exe
	}
	return fmt.Sprintf("%s < %s | tee %s > /dev/null", exe, driver, logPath)
}
