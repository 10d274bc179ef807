// Package shutdown turns process termination requests into cooperative
// cancellation of the producer engine, with a forced exit when the user
// interrupts twice.
package shutdown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// State of the coordinator
type State int32

const (
	Running State = iota
	StopRequested
	Stopped
	ForcedExit
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	case ForcedExit:
		return "forced_exit"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ForcedExitCode is the status the process exits with on a second interrupt
const ForcedExitCode = 1

// Status lines printed on each transition
const (
	msgTerminate = "Received SIGTERM, shutting down..."
	msgInterrupt = "Shutting down... (press Ctrl+C again to force)"
	msgForce     = "Forcing exit..."
)

// Stopper is anything the coordinator stops once termination is requested
type Stopper interface {
	Stop() error
}

// Coordinator owns the process-wide stop signal. Create one per process.
type Coordinator struct {
	state      atomic.Int32
	interrupts atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	exit  func(code int)
	out   io.Writer
	outMu sync.Mutex
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithExit replaces os.Exit for the forced exit path
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// WithOutput sets where status lines are printed
func WithOutput(w io.Writer) Option {
	return func(c *Coordinator) {
		c.out = w
	}
}

// NewCoordinator creates a coordinator in the Running state
func NewCoordinator(opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		exit:   os.Exit,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context is cancelled as soon as a stop is requested
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// State returns the current state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// StopRequested reports whether any termination request has arrived
func (c *Coordinator) StopRequested() bool {
	return c.State() != Running
}

// Interrupts returns how many user interrupts have been received
func (c *Coordinator) Interrupts() int {
	return int(c.interrupts.Load())
}

// Terminate handles a graceful termination request
func (c *Coordinator) Terminate() {
	c.requestStop(msgTerminate, "terminate")
}

// Interrupt handles a user interrupt. The second and later interrupts force
// the process to exit without waiting for producers.
func (c *Coordinator) Interrupt() {
	if c.interrupts.Add(1) == 1 {
		c.requestStop(msgInterrupt, "interrupt")
		return
	}

	c.cancel()
	c.state.Store(int32(ForcedExit))
	c.println(msgForce)
	slog.Warn("Forced exit", "interrupts", c.Interrupts())
	c.exit(ForcedExitCode)
}

func (c *Coordinator) requestStop(msg, reason string) {
	c.state.CompareAndSwap(int32(Running), int32(StopRequested))
	c.cancel()
	c.println(msg)
	slog.Info("Stop requested", "reason", reason)
}

// Wait blocks until a stop is requested
func (c *Coordinator) Wait() {
	<-c.ctx.Done()
}

// Complete marks the shutdown as finished. It does not override a forced exit.
func (c *Coordinator) Complete() {
	c.state.CompareAndSwap(int32(StopRequested), int32(Stopped))
}

// Run waits for a stop request, stops s and marks the shutdown complete
func (c *Coordinator) Run(s Stopper) error {
	c.Wait()
	err := s.Stop()
	c.Complete()
	return err
}

// Notify routes SIGINT and SIGTERM to Interrupt and Terminate until the
// returned release function is called.
func (c *Coordinator) Notify() (release func()) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-signals:
				c.Handle(sig)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(signals)
			close(done)
		})
	}
}

// Handle dispatches a received signal
func (c *Coordinator) Handle(sig os.Signal) {
	switch sig {
	case syscall.SIGTERM:
		c.Terminate()
	case os.Interrupt:
		c.Interrupt()
	default:
		slog.Debug("Ignoring signal", "signal", sig)
	}
}

func (c *Coordinator) println(msg string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, "\n%s\n", msg)
}
