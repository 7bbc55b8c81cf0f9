package pipeline

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"overhear/config"
	"overhear/log"
	"overhear/worker"
)

// Worker is the controller's view of the capture subprocess: a signal
// line in, a decoded event stream out. The event channel closes when
// the process exits, which is how the controller notices a crash.
type Worker interface {
	Signal(s worker.Signal) error
	Events() <-chan worker.Event
	Stop(timeout time.Duration)
}

// SpawnFunc starts a capture worker. Swapped for an in-memory fake in
// tests.
type SpawnFunc func(cfg config.Config) (Worker, error)

// procWorker runs the capture loop in a re-exec of this binary. The
// child process keeps the OS audio device isolated from the parent, so
// a misbehaving driver cannot take the whole assistant down.
type procWorker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan worker.Event
	exited chan struct{}
}

// SpawnProcess re-execs the current binary with the capture-worker
// flag and the audio settings on the command line.
func SpawnProcess(cfg config.Config) (Worker, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot locate own executable: %w", err)
	}

	args := append([]string{"-capture-worker"}, cfg.WorkerArgs()...)
	cmd := exec.Command(exe, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start capture worker: %w", err)
	}
	log.Infof("capture worker started, pid %d", cmd.Process.Pid)

	p := &procWorker{
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan worker.Event, 64),
		exited: make(chan struct{}),
	}
	go p.decode(stdout)
	go func() {
		cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *procWorker) decode(r io.Reader) {
	defer close(p.events)
	for {
		ev, err := worker.ReadEvent(r)
		if err != nil {
			return
		}
		p.events <- ev
	}
}

func (p *procWorker) Signal(s worker.Signal) error {
	_, err := fmt.Fprintln(p.stdin, string(s))
	return err
}

func (p *procWorker) Events() <-chan worker.Event {
	return p.events
}

// Stop asks the worker to exit and waits up to timeout before killing
// it outright.
func (p *procWorker) Stop(timeout time.Duration) {
	p.Signal(worker.SignalStop)
	p.stdin.Close()

	select {
	case <-p.exited:
	case <-time.After(timeout):
		log.Warn("capture worker did not exit in time, killing")
		p.cmd.Process.Kill()
		<-p.exited
	}
}
