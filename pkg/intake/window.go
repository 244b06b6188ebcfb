package intake

import (
	"sync"
)

// resultBuffer is the stream capacity; error results beyond it wait for the
// reader.
const resultBuffer = 4

// WindowState is the state of an activation window.
type WindowState uint8

const (
	// WindowClosed means the window was stopped without a candidate.
	WindowClosed WindowState = iota

	// WindowOpen means the window accepts input.
	WindowOpen

	// WindowDelivered means the window produced its candidate.
	WindowDelivered
)

// String returns the state name.
func (s WindowState) String() string {
	switch s {
	case WindowClosed:
		return "CLOSED"
	case WindowOpen:
		return "OPEN"
	case WindowDelivered:
		return "DELIVERED"
	default:
		return "UNKNOWN"
	}
}

// window is one activation of an intake. The first candidate closes it.
type window struct {
	mu    sync.Mutex
	state WindowState

	results chan Result
	stop    chan struct{}

	senders   sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
}

func newWindow() *window {
	return &window{
		state:   WindowOpen,
		results: make(chan Result, resultBuffer),
		stop:    make(chan struct{}),
	}
}

// State returns the window state.
func (w *window) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// deliver emits the window's candidate and closes the window. It returns
// false if the window was no longer open or was stopped before the reader
// took the candidate.
func (w *window) deliver(c Candidate) bool {
	w.mu.Lock()
	if w.state != WindowOpen {
		w.mu.Unlock()
		return false
	}
	w.state = WindowDelivered
	w.senders.Add(1)
	w.mu.Unlock()

	sent := w.send(Result{Candidate: c})
	w.senders.Done()
	w.shutdown()
	return sent
}

// report emits an error result and leaves the window open.
func (w *window) report(err error) bool {
	w.mu.Lock()
	if w.state != WindowOpen {
		w.mu.Unlock()
		return false
	}
	w.senders.Add(1)
	w.mu.Unlock()

	sent := w.send(Result{Err: err})
	w.senders.Done()
	return sent
}

func (w *window) send(r Result) bool {
	select {
	case w.results <- r:
		return true
	case <-w.stop:
		return false
	}
}

// shutdown stops the window and closes the stream once in-flight sends
// have finished.
func (w *window) shutdown() {
	w.mu.Lock()
	if w.state == WindowOpen {
		w.state = WindowClosed
	}
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.stop) })
	w.senders.Wait()
	w.closeOnce.Do(func() { close(w.results) })
}
