// Package editortest provides an in-memory editor instance for tests.
package editortest

import (
	"context"
	"errors"
	"sync"

	"schedule-designgen/internal/editor"
)

var ErrNoInstance = errors.New("no fake instance queued")

// Instance records what was sent to it and lets the test push inbound events.
type Instance struct {
	mu      sync.Mutex
	sent    []editor.Outbound
	sendErr error

	events    chan editor.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func NewInstance() *Instance {
	return &Instance{
		events: make(chan editor.Event, 64),
		closed: make(chan struct{}),
	}
}

func (f *Instance) Send(ctx context.Context, msg editor.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *Instance) Events() <-chan editor.Event {
	return f.events
}

func (f *Instance) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// FailSends makes every later Send return err.
func (f *Instance) FailSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

// Emit delivers a text message as the editor would send it.
func (f *Instance) Emit(msg string) {
	f.events <- editor.DecodeText(msg)
}

// EmitPayload delivers a binary export payload.
func (f *Instance) EmitPayload(data []byte) {
	f.events <- editor.DecodeBinary(data)
}

// Disconnect closes the event stream.
func (f *Instance) Disconnect() {
	close(f.events)
}

func (f *Instance) Closed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// Texts returns the text messages sent so far, in order.
func (f *Instance) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if !m.Binary {
			out = append(out, string(m.Data))
		}
	}
	return out
}

// Binaries returns the binary messages sent so far, in order.
func (f *Instance) Binaries() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, m := range f.sent {
		if m.Binary {
			out = append(out, m.Data)
		}
	}
	return out
}

// HasSent reports whether text was sent verbatim.
func (f *Instance) HasSent(text string) bool {
	for _, t := range f.Texts() {
		if t == text {
			return true
		}
	}
	return false
}

// Launcher hands out queued instances in order, or fresh ones when AutoCreate is set.
type Launcher struct {
	mu         sync.Mutex
	queue      []*Instance
	launched   []*Instance
	AutoCreate bool
	Err        error
}

func NewLauncher(instances ...*Instance) *Launcher {
	return &Launcher{queue: instances}
}

func (l *Launcher) Launch(ctx context.Context) (editor.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}

	var inst *Instance
	switch {
	case len(l.queue) > 0:
		inst, l.queue = l.queue[0], l.queue[1:]
	case l.AutoCreate:
		inst = NewInstance()
	default:
		return nil, ErrNoInstance
	}
	l.launched = append(l.launched, inst)
	return inst, nil
}

// Launched returns every instance handed out so far.
func (l *Launcher) Launched() []*Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Instance(nil), l.launched...)
}
