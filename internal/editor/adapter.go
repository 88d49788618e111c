// Package editor drives disposable headless editor instances over a one-way message protocol.
//
// Every response from the editor is an unsolicited event tagged only with a namespace, so the
// adapter infers progress: the first layer count means the template loaded, a layer count that
// stops changing for IdleTimeout means the editor went idle, and export descriptors are paired
// with binary payloads by arrival order.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/common/metrics"
)

var (
	ErrAdapterClosed    = errors.New("EDITOR_ADAPTER_CLOSED")
	ErrMissingNamespace = errors.New("EDITOR_NAMESPACE_REQUIRED")
	ErrMissingFormats   = errors.New("EDITOR_FORMATS_REQUIRED")
)

// State is the per-namespace protocol state.
type State int

const (
	StateInit State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "LOADED"
	}
	return "INIT"
}

type OutcomeKind string

const (
	OutcomeExported  OutcomeKind = "EXPORTED"
	OutcomeIdle      OutcomeKind = "IDLE"
	OutcomeTimedOut  OutcomeKind = "TIMED_OUT"
	OutcomeFailed    OutcomeKind = "FAILED"
	OutcomeCancelled OutcomeKind = "CANCELLED"
)

// Outcome is the single result of one editor run.
type Outcome struct {
	Kind    OutcomeKind
	Exports map[string][]byte
	Err     error
}

// Request describes one run. Script is the compiled plan; Formats are the exports required
// before the run counts as exported. Timeout of zero means no caller deadline.
type Request struct {
	Namespace string
	Template  []byte
	Script    string
	Formats   []string
	Timeout   time.Duration
}

// Callbacks receive the terminal event of a run. Exactly one of them fires, on its own goroutine,
// after the namespace has been cleared.
type Callbacks struct {
	OnExport  func(exports map[string][]byte)
	OnIdle    func()
	OnTimeout func()
	OnError   func(err error)
}

type Config struct {
	IdleTimeout   time.Duration
	ProbeInterval time.Duration
	SendTimeout   time.Duration
}

// SessionInfo is a read-only view of a live namespace.
type SessionInfo struct {
	Namespace string
	State     State
	LastCount int
	StartedAt time.Time
}

type session struct {
	ns        string
	req       Request
	inst      Instance
	cb        Callbacks
	startedAt time.Time

	state     State
	lastCount int
	seenCount bool

	idleTimer *time.Timer
	idleGen   uint64
	deadline  *time.Timer

	descriptors []string
	payloads    [][]byte
	exports     map[string][]byte

	outbox chan Outbound
	ctx    context.Context
	cancel context.CancelFunc
}

// Adapter owns every live namespace. All session state is touched only by the actor goroutine;
// other goroutines submit closures to its mailbox.
type Adapter struct {
	launcher Launcher
	config   Config
	logger   logger.Logger

	mailbox   chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	sessions map[string]*session
}

func NewAdapter(launcher Launcher, config Config, log logger.Logger) *Adapter {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 5 * time.Second
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 500 * time.Millisecond
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}

	a := &Adapter{
		launcher: launcher,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"component": "editor-adapter"}),
		mailbox:  make(chan func(), 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		sessions: make(map[string]*session),
	}
	go a.loop()
	return a
}

func (a *Adapter) loop() {
	defer close(a.done)
	for {
		select {
		case fn := <-a.mailbox:
			fn()
		case <-a.quit:
			for _, s := range a.sessions {
				a.teardown(s)
			}
			return
		}
	}
}

func (a *Adapter) post(fn func()) bool {
	select {
	case a.mailbox <- fn:
		return true
	case <-a.done:
		return false
	}
}

// call runs fn on the actor and waits for it.
func (a *Adapter) call(fn func()) bool {
	finished := make(chan struct{})
	if !a.post(func() {
		fn()
		close(finished)
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-a.done:
		return false
	}
}

// Close tears down every live namespace without firing callbacks.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() { close(a.quit) })
	<-a.done
}

// Start launches a fresh editor instance and initializes req.Namespace, replacing any prior
// state for it. It returns once the namespace is installed; the outcome arrives through cb.
func (a *Adapter) Start(ctx context.Context, req Request, cb Callbacks) error {
	_, err := a.start(ctx, req, cb)
	return err
}

func (a *Adapter) start(ctx context.Context, req Request, cb Callbacks) (*session, error) {
	if req.Namespace == "" {
		return nil, ErrMissingNamespace
	}
	if len(req.Formats) == 0 {
		return nil, ErrMissingFormats
	}
	formats := make([]string, len(req.Formats))
	for i, f := range req.Formats {
		formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	req.Formats = formats

	inst, err := a.launcher.Launch(ctx)
	if err != nil {
		return nil, apperrors.NewEditorLaunchFailedError(err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		ns:        req.Namespace,
		req:       req,
		inst:      inst,
		cb:        cb,
		startedAt: time.Now(),
		exports:   make(map[string][]byte),
		outbox:    make(chan Outbound, 4),
		ctx:       sctx,
		cancel:    cancel,
	}

	if !a.call(func() { a.install(s) }) {
		cancel()
		_ = inst.Close()
		return nil, ErrAdapterClosed
	}
	return s, nil
}

// install is the INIT transition.
func (a *Adapter) install(s *session) {
	if prev, ok := a.sessions[s.ns]; ok {
		a.logger.Warn("Namespace re-initialized, clearing prior state", map[string]interface{}{
			"namespace": s.ns,
			"state":     prev.state.String(),
		})
		a.teardown(prev)
	}
	a.sessions[s.ns] = s

	go a.writer(s)
	go a.pump(s)

	s.outbox <- BinaryMessage(s.req.Template)
	s.outbox <- TextMessage(ProbeScript(s.ns))
	a.armIdle(s)

	if s.req.Timeout > 0 {
		s.deadline = time.AfterFunc(s.req.Timeout, func() {
			a.post(func() { a.onDeadline(s) })
		})
	}

	a.logger.Debug("Namespace initialized", map[string]interface{}{
		"namespace": s.ns,
		"formats":   s.req.Formats,
		"timeout":   s.req.Timeout.String(),
	})
}

// writer serializes outbound messages and the periodic layer-count probe.
func (a *Adapter) writer(s *session) {
	ticker := time.NewTicker(a.config.ProbeInterval)
	defer ticker.Stop()
	probe := TextMessage(ProbeScript(s.ns))

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.outbox:
			a.send(s, msg)
		case <-ticker.C:
			a.send(s, probe)
		}
	}
}

func (a *Adapter) send(s *session, msg Outbound) {
	ctx, cancel := context.WithTimeout(s.ctx, a.config.SendTimeout)
	defer cancel()

	if err := s.inst.Send(ctx, msg); err != nil && s.ctx.Err() == nil {
		a.post(func() { a.fail(s, err) })
	}
}

func (a *Adapter) pump(s *session) {
	events := s.inst.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				a.post(func() {
					if a.sessions[s.ns] == s {
						a.logger.Warn("Editor instance disconnected", map[string]interface{}{"namespace": s.ns})
					}
				})
				return
			}
			a.post(func() { a.handle(s, ev) })
		}
	}
}

func (a *Adapter) handle(s *session, ev Event) {
	if a.sessions[s.ns] != s {
		return
	}
	metrics.EditorEvents.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case EventLayerCount:
		if ev.Namespace != s.ns {
			return
		}
		if s.state == StateInit {
			s.state = StateLoaded
			s.outbox <- TextMessage(s.req.Script)
			a.logger.Debug("Template loaded, script sent", map[string]interface{}{
				"namespace": s.ns,
				"layers":    ev.Count,
			})
		}
		if !s.seenCount || ev.Count != s.lastCount {
			s.seenCount = true
			s.lastCount = ev.Count
			a.armIdle(s)
		}

	case EventExportFile:
		if ev.Namespace != s.ns {
			return
		}
		s.descriptors = append(s.descriptors, ev.Format)
		a.pairExports(s)

	case EventPayload:
		s.payloads = append(s.payloads, ev.Data)
		a.pairExports(s)

	default:
		a.logger.Debug("Ignoring unrecognized editor message", map[string]interface{}{
			"namespace": s.ns,
			"raw":       ev.Raw,
		})
	}
}

// pairExports matches the Nth descriptor with the Nth payload. Nothing in the protocol ties a
// payload to its descriptor other than arrival order.
func (a *Adapter) pairExports(s *session) {
	for len(s.descriptors) > 0 && len(s.payloads) > 0 {
		s.exports[s.descriptors[0]] = s.payloads[0]
		s.descriptors = s.descriptors[1:]
		s.payloads = s.payloads[1:]
	}

	for _, f := range s.req.Formats {
		if _, ok := s.exports[f]; !ok {
			return
		}
	}

	exports := s.exports
	a.logger.Info("Export complete", map[string]interface{}{
		"namespace": s.ns,
		"formats":   len(exports),
		"elapsed":   time.Since(s.startedAt).String(),
	})
	a.finish(s, func() {
		if s.cb.OnExport != nil {
			s.cb.OnExport(exports)
		}
	})
}

// armIdle restarts the single idle timer of s. Stale timers are ignored by generation.
func (a *Adapter) armIdle(s *session) {
	s.idleGen++
	gen := s.idleGen
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(a.config.IdleTimeout, func() {
		a.post(func() { a.onIdle(s, gen) })
	})
}

func (a *Adapter) onIdle(s *session, gen uint64) {
	if a.sessions[s.ns] != s || gen != s.idleGen {
		return
	}
	a.logger.Warn("Editor idle, abandoning namespace", map[string]interface{}{
		"namespace": s.ns,
		"state":     s.state.String(),
		"lastCount": s.lastCount,
	})
	a.finish(s, func() {
		if s.cb.OnIdle != nil {
			s.cb.OnIdle()
		}
	})
}

func (a *Adapter) onDeadline(s *session) {
	if a.sessions[s.ns] != s {
		return
	}
	a.logger.Warn("Caller deadline passed without export", map[string]interface{}{
		"namespace": s.ns,
		"timeout":   s.req.Timeout.String(),
	})
	a.finish(s, func() {
		if s.cb.OnTimeout != nil {
			s.cb.OnTimeout()
		}
	})
}

func (a *Adapter) fail(s *session, err error) {
	if a.sessions[s.ns] != s {
		return
	}
	a.logger.Error("Editor send failed", map[string]interface{}{
		"namespace": s.ns,
		"error":     err.Error(),
	})
	a.finish(s, func() {
		if s.cb.OnError != nil {
			s.cb.OnError(err)
		}
	})
}

func (a *Adapter) finish(s *session, fire func()) {
	a.teardown(s)
	go fire()
}

// teardown is the TERMINAL transition. It is safe to call more than once.
func (a *Adapter) teardown(s *session) {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.deadline != nil {
		s.deadline.Stop()
	}
	s.cancel()
	if a.sessions[s.ns] == s {
		delete(a.sessions, s.ns)
		go func() { _ = s.inst.Close() }()
	}
}

// Clear drops all state for ns. Clearing an unknown namespace is a no-op.
func (a *Adapter) Clear(ns string) {
	a.call(func() {
		if s, ok := a.sessions[ns]; ok {
			a.teardown(s)
		}
	})
}

func (a *Adapter) clearSession(s *session) {
	a.call(func() { a.teardown(s) })
}

// Sessions returns a snapshot of live namespaces.
func (a *Adapter) Sessions() []SessionInfo {
	var out []SessionInfo
	a.call(func() {
		out = make([]SessionInfo, 0, len(a.sessions))
		for _, s := range a.sessions {
			out = append(out, SessionInfo{
				Namespace: s.ns,
				State:     s.state,
				LastCount: s.lastCount,
				StartedAt: s.startedAt,
			})
		}
	})
	return out
}

// Run starts req and blocks until exactly one outcome is known. Cancelling ctx clears the
// namespace and reports CANCELLED.
func (a *Adapter) Run(ctx context.Context, req Request) Outcome {
	result := make(chan Outcome, 1)
	deliver := func(o Outcome) {
		select {
		case result <- o:
		default:
		}
	}

	cb := Callbacks{
		OnExport: func(exports map[string][]byte) {
			deliver(Outcome{Kind: OutcomeExported, Exports: exports})
		},
		OnIdle: func() {
			deliver(Outcome{Kind: OutcomeIdle, Err: apperrors.NewProtocolIdleTimeoutError(req.Namespace, a.config.IdleTimeout)})
		},
		OnTimeout: func() {
			deliver(Outcome{Kind: OutcomeTimedOut, Err: apperrors.NewJobTimeoutError(req.Namespace, req.Timeout)})
		},
		OnError: func(err error) {
			deliver(Outcome{Kind: OutcomeFailed, Err: err})
		},
	}

	s, err := a.start(ctx, req, cb)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: OutcomeCancelled, Err: apperrors.NewJobCancelledError(req.Namespace)}
		}
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	select {
	case o := <-result:
		return o
	case <-ctx.Done():
		a.clearSession(s)
		select {
		case o := <-result:
			return o
		default:
		}
		return Outcome{Kind: OutcomeCancelled, Err: apperrors.NewJobCancelledError(req.Namespace)}
	}
}
