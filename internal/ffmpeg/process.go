package ffmpeg

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// Process supervises a running ffmpeg child. The child is placed in its own
// process group so a kill takes any spawned helpers with it.
type Process struct {
	cmd  *exec.Cmd
	log  *slog.Logger
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

// ProcessOptions configures how an ffmpeg child is started.
type ProcessOptions struct {
	// Dir is the working directory for the child.
	Dir string
	// Env holds extra environment entries appended to the inherited
	// environment, e.g. FFREPORT.
	Env []string
	// LogOutput, when true, forwards the child's stderr lines to the
	// logger at debug level.
	LogOutput bool
}

// StartProcess launches the binary with the given arguments and begins
// reaping it in the background.
func StartProcess(log *slog.Logger, binary string, args []string, opts ProcessOptions) (*Process, error) {
	if log == nil {
		log = slog.Default()
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &Process{
		cmd:  cmd,
		log:  log,
		done: make(chan struct{}),
	}

	if opts.LogOutput {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("creating stderr pipe: %w", err)
		}
		go p.forwardOutput(stderr)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", binary, err)
	}

	log.Debug("process started",
		slog.String("binary", binary),
		slog.Int("pid", cmd.Process.Pid),
	)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

func (p *Process) forwardOutput(r interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.log.Debug("ffmpeg", slog.String("line", scanner.Text()))
	}
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done returns a channel closed when the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Running reports whether the child is still alive.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits and returns its exit error, if any.
func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Kill sends SIGKILL to the child's process group and waits for the reaper.
// Killing an already exited process is not an error.
func (p *Process) Kill() {
	if p.Running() {
		pid := p.cmd.Process.Pid
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			// Fall back to the single process if the group is gone.
			_ = p.cmd.Process.Kill()
		}
	}
	<-p.done
}
