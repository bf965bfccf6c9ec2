package archive

import (
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/logging"
)

// ExecLauncher starts the archiver as an independent process. The launch
// is fire-and-forget: Launch returns as soon as the process has started,
// and a reporter goroutine waits for the exit status and logs it. There is
// no shared memory with the acquisition loop; the process receives only
// the manifest path (and optional archive path) as arguments.
type ExecLauncher struct {
	command []string
	log     *slog.Logger
}

// NewExecLauncher creates a launcher for the given archiver command line.
// The job's manifest path and, in bundle mode, archive path are appended
// as arguments.
func NewExecLauncher(command []string) *ExecLauncher {
	return &ExecLauncher{
		command: command,
		log:     logging.Component("archiver"),
	}
}

// Launch starts the archiver for one job. A start failure (binary not
// found, permission denied) is returned to the dispatcher, which keeps the
// manifest in place; source files are never deleted on this path.
func (l *ExecLauncher) Launch(job Job) error {
	args := append([]string(nil), l.command[1:]...)
	args = append(args, job.ManifestPath)
	if job.ArchivePath != "" {
		args = append(args, job.ArchivePath)
	}

	cmd := exec.Command(l.command[0], args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(errors.ErrDispatchFailed, "%s: %v", l.command[0], err)
	}

	l.log.Info("archiver launched",
		"pid", cmd.Process.Pid, "manifest", job.ManifestPath, "files", len(job.Paths))

	// Reap the child and report its outcome. This goroutine only logs;
	// nothing flows back into acquisition.
	started := time.Now()
	go func() {
		err := cmd.Wait()
		if err != nil {
			l.log.Error("archiver exited with failure",
				"pid", cmd.Process.Pid,
				"manifest", job.ManifestPath,
				"elapsed", time.Since(started).Round(time.Millisecond),
				"error", err)
			return
		}
		l.log.Info("archiver completed",
			"pid", cmd.Process.Pid,
			"manifest", job.ManifestPath,
			"elapsed", time.Since(started).Round(time.Millisecond))
	}()

	return nil
}

// detachAttr places the archiver in its own session so it outlives the
// run if acquisition exits first.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// Verify the launcher binary exists up front so a misconfigured archiver
// command is reported at startup rather than at the first dispatch.
func (l *ExecLauncher) Check() error {
	if _, err := exec.LookPath(l.command[0]); err != nil {
		if _, statErr := os.Stat(l.command[0]); statErr != nil {
			return errors.Wrapf(errors.ErrDispatchFailed, "%s: %v", l.command[0], err)
		}
	}
	return nil
}
