package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/leadflow"
)

// ErrInterrupted is returned by InterruptibleReader once its context is done.
var ErrInterrupted = errors.New("interrupted")

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// InterruptibleReader wraps an io.Reader (like os.Stdin) and stops returning
// data once ctx is done.
type InterruptibleReader struct {
	base io.Reader
	ctx  context.Context
}

func NewInterruptibleReader(ctx context.Context, base io.Reader) *InterruptibleReader {
	return &InterruptibleReader{base: base, ctx: ctx}
}

func (r *InterruptibleReader) Read(p []byte) (int, error) {
	if r.ctx.Err() != nil {
		return 0, ErrInterrupted
	}

	// Blocks until the user types or stdin closes.
	n, err := r.base.Read(p)

	if r.ctx.Err() != nil {
		return 0, ErrInterrupted
	}
	return n, err
}

// IsInterrupted reports whether err only means the user left the questionnaire.
func IsInterrupted(err error) bool {
	return errors.Is(err, leadflow.ErrQuit) ||
		errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.Canceled)
}
