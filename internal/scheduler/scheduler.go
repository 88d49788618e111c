// Package scheduler admits design jobs through a single control loop. The loop owns the queued
// and active sets and every cache read or write; editor runs happen on their own goroutines and
// report back to the loop when they end.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"schedule-designgen/internal/cache"
	awsnotify "schedule-designgen/internal/common/aws"
	apperrors "schedule-designgen/internal/common/errors"
	"schedule-designgen/internal/common/logger"
	"schedule-designgen/internal/common/metrics"
	"schedule-designgen/internal/common/observability"

	"github.com/google/uuid"
)

var ErrStopped = errors.New("SCHEDULER_STOPPED")

// Notifier publishes terminal outcomes.
type Notifier interface {
	Notify(ctx context.Context, msg awsnotify.OutcomeMessage) error
}

type Config struct {
	MaxJobsInProgress int
	MaxDesignsInCache int
	JobTimeout        time.Duration
	SnapshotTick      time.Duration
	CacheOpTimeout    time.Duration
}

type entry struct {
	job      *Job
	info     JobInfo
	cancel   context.CancelFunc
	endSpan  func(outcome string)
	hash     string
	rendered bool
}

type Scheduler struct {
	config    Config
	store     cache.Store
	overrides cache.OverrideStore
	renderer  Renderer
	notifier  Notifier
	obs       *observability.Observability
	errs      *apperrors.ErrorHandler
	logger    logger.Logger
	now       func() time.Time

	mailbox  chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup

	// Owned by the control loop.
	queue    []*entry
	running  []*entry
	watchers map[int]chan Snapshot
	nextID   int
	dirty    bool
}

type Option func(*Scheduler)

func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Scheduler) { s.obs = o }
}

func WithOverrides(o cache.OverrideStore) Option {
	return func(s *Scheduler) { s.overrides = o }
}

// New starts the control loop. Call Stop to end it.
func New(config Config, store cache.Store, renderer Renderer, log logger.Logger, opts ...Option) *Scheduler {
	if config.MaxJobsInProgress <= 0 {
		config.MaxJobsInProgress = 5
	}
	if config.MaxDesignsInCache <= 0 {
		config.MaxDesignsInCache = 50
	}
	if config.SnapshotTick <= 0 {
		config.SnapshotTick = 250 * time.Millisecond
	}
	if config.CacheOpTimeout <= 0 {
		config.CacheOpTimeout = 3 * time.Second
	}

	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	s := &Scheduler{
		config:    config,
		store:     store,
		overrides: cache.NoopOverrides{},
		renderer:  renderer,
		errs:      apperrors.NewErrorHandler(log),
		logger:    log,
		now:       time.Now,
		mailbox:   make(chan func(), 128),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		watchers:  make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.config.SnapshotTick)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.mailbox:
			fn()
		case <-ticker.C:
			s.flushWatchers()
		case <-s.quit:
			for _, e := range s.running {
				if e.cancel != nil {
					e.cancel()
				}
			}
			for id, ch := range s.watchers {
				close(ch)
				delete(s.watchers, id)
			}
			return
		}
	}
}

func (s *Scheduler) post(fn func()) bool {
	select {
	case s.mailbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Scheduler) call(fn func()) bool {
	finished := make(chan struct{})
	if !s.post(func() {
		fn()
		close(finished)
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-s.done:
		return false
	}
}

// Stop ends the control loop, cancels active runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
	s.inflight.Wait()
}

// ==========================
// Public API
// ==========================

// AddJob queues job. A job whose key is already queued or active is rejected with JOB_PENDING.
func (s *Scheduler) AddJob(job *Job) error {
	if job == nil || strings.TrimSpace(job.Key) == "" {
		return apperrors.NewInvalidJobError("job key is required")
	}
	if strings.TrimSpace(job.Template.ID) == "" {
		return apperrors.NewInvalidJobError("template id is required")
	}
	if job.ScheduleData == nil {
		job.ScheduleData = map[string]interface{}{}
	}
	if job.Timeout <= 0 {
		job.Timeout = s.config.JobTimeout
	}

	var err error
	ok := s.call(func() {
		if s.find(job.Key) != nil {
			err = apperrors.NewJobPendingError(job.Key)
			return
		}
		e := &entry{
			job: job,
			info: JobInfo{
				Key:          job.Key,
				RunID:        uuid.NewString(),
				TemplateID:   job.Template.ID,
				State:        StateQueued,
				ForceRefresh: job.ForceRefresh,
				QueuedAt:     s.now(),
			},
		}
		s.queue = append(s.queue, e)
		s.logger.Info("Job queued", map[string]interface{}{
			"key":        job.Key,
			"runId":      e.info.RunID,
			"templateId": job.Template.ID,
			"queued":     len(s.queue),
		})
		s.promote()
		s.changed()
	})
	if !ok {
		return ErrStopped
	}
	return err
}

// RemoveJob drops key from the queued and active sets. An active run is detached and its
// editor namespace cleared; it reports CANCELLED. It returns false when key was not pending.
func (s *Scheduler) RemoveJob(key string) bool {
	removed := false
	s.call(func() {
		for i, e := range s.queue {
			if e.job.Key == key {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				s.complete(e, StateCancelled, nil, apperrors.NewJobCancelledError(key))
				removed = true
				break
			}
		}
		if e := s.findRunning(key); e != nil {
			s.complete(e, StateCancelled, nil, apperrors.NewJobCancelledError(key))
			removed = true
		}
		if removed {
			s.promote()
			s.changed()
		}
	})
	return removed
}

// IsJobPending reports whether a queued or active job has key, or a key starting with key.
// The prefix form covers carousel slides whose keys share a common stem.
func (s *Scheduler) IsJobPending(key string) bool {
	if key == "" {
		return false
	}
	pending := false
	s.call(func() {
		for _, list := range [][]*entry{s.running, s.queue} {
			for _, e := range list {
				if e.job.Key == key || strings.HasPrefix(e.job.Key, key) {
					pending = true
					return
				}
			}
		}
	})
	return pending
}

func (s *Scheduler) ActiveJobs() []JobInfo {
	return s.Snapshot().Active
}

func (s *Scheduler) QueuedJobs() []JobInfo {
	return s.Snapshot().Queued
}

func (s *Scheduler) Snapshot() Snapshot {
	var snap Snapshot
	s.call(func() { snap = s.snapshot() })
	return snap
}

// Watch delivers snapshots after changes, at most one per tick. A slow reader only ever sees
// the latest snapshot. The returned func stops the subscription.
func (s *Scheduler) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	var id int
	if !s.call(func() {
		id = s.nextID
		s.nextID++
		s.watchers[id] = ch
		s.dirty = true
	}) {
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.call(func() {
				if w, ok := s.watchers[id]; ok {
					close(w)
					delete(s.watchers, id)
				}
			})
		})
	}
}

// ==========================
// Control Loop Internals
// ==========================

func (s *Scheduler) find(key string) *entry {
	if e := s.findRunning(key); e != nil {
		return e
	}
	for _, e := range s.queue {
		if e.job.Key == key {
			return e
		}
	}
	return nil
}

func (s *Scheduler) findRunning(key string) *entry {
	for _, e := range s.running {
		if e.job.Key == key {
			return e
		}
	}
	return nil
}

// promote moves jobs from the head of the queue while there is room. Jobs served from cache
// complete during activation and free their slot immediately.
func (s *Scheduler) promote() {
	for len(s.running) < s.config.MaxJobsInProgress && len(s.queue) > 0 {
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.activate(e)
	}
	s.updateGauges()
}

func (s *Scheduler) activate(e *entry) {
	job := e.job
	e.info.State = StateActive
	e.info.StartedAt = s.now()
	s.running = append(s.running, e)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.CacheOpTimeout)
	defer cancel()

	report, err := cache.Evict(ctx, s.store, s.now(), s.config.MaxDesignsInCache)
	if err != nil {
		s.logger.Warn("Cache eviction failed", map[string]interface{}{"error": err.Error()})
	} else if report.Total() > 0 {
		s.logger.Info("Cache evicted", map[string]interface{}{
			"expired": report.Expired,
			"trimmed": report.Trimmed,
		})
	}

	hash, err := cache.Hash(job.Template.ID, job.ScheduleData)
	if err != nil {
		s.complete(e, StateFailed, nil, apperrors.NewInvalidJobError(err.Error()))
		return
	}
	e.hash = hash

	cached, err := s.store.Get(ctx, job.Key)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn("Cache read failed, rendering anyway", map[string]interface{}{
			"key":   job.Key,
			"error": err.Error(),
		})
		cached = nil
	}

	switch {
	case cached == nil:
		s.obs.RecordCacheDecision(ctx, "miss")
	case cached.Hash == hash && !job.ForceRefresh:
		s.obs.RecordCacheDecision(ctx, "hit")
		s.complete(e, StateSkipped, cached, nil)
		return
	case cached.Hash == hash:
		s.obs.RecordCacheDecision(ctx, "refresh")
	default:
		s.obs.RecordCacheDecision(ctx, "invalidated")
		if err := s.store.Delete(ctx, job.Key); err != nil {
			s.logger.Warn("Stale artifact delete failed", map[string]interface{}{"key": job.Key, "error": err.Error()})
		}
		if err := s.overrides.DeleteOverride(ctx, job.Key); err != nil {
			s.logger.Warn("User override delete failed", map[string]interface{}{"key": job.Key, "error": err.Error()})
		}
		s.logger.Info("Artifact invalidated", map[string]interface{}{
			"key":     job.Key,
			"oldHash": cached.Hash,
			"newHash": hash,
		})
	}

	s.launch(e)
}

// launch runs the render off the loop. Its result comes back through finished.
func (s *Scheduler) launch(e *entry) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx, endSpan := s.obs.StartJobSpan(ctx, e.job.Key, e.job.Template.ID)
	e.cancel = cancel
	e.endSpan = endSpan
	e.rendered = true

	s.logger.Info("Job activated", map[string]interface{}{
		"key":    e.job.Key,
		"runId":  e.info.RunID,
		"active": len(s.running),
	})

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		var (
			art *cache.Artifact
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("render panic: %v", r)
				}
			}()
			art, err = s.renderer.Render(ctx, e.job, e.hash)
		}()

		s.post(func() { s.finished(e, art, err) })
	}()
}

func (s *Scheduler) finished(e *entry, art *cache.Artifact, err error) {
	if s.findRunning(e.job.Key) != e {
		return
	}

	if err != nil {
		s.complete(e, stateFor(err), nil, err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.CacheOpTimeout)
		perr := s.store.Put(ctx, art)
		cancel()
		if perr != nil {
			s.complete(e, StateFailed, nil, perr)
		} else {
			s.complete(e, StateExported, art, nil)
		}
	}
	s.promote()
	s.changed()
}

// complete retires e with its terminal state and fires the job callbacks off the loop.
func (s *Scheduler) complete(e *entry, state State, art *cache.Artifact, err error) {
	for i, r := range s.running {
		if r == e {
			s.running = append(s.running[:i], s.running[i+1:]...)
			break
		}
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.info.State = state

	var duration time.Duration
	if !e.info.StartedAt.IsZero() {
		duration = s.now().Sub(e.info.StartedAt)
	}
	result := Result{
		Key:      e.job.Key,
		RunID:    e.info.RunID,
		State:    state,
		Hash:     e.hash,
		Artifact: art,
		Duration: duration,
	}
	if err != nil {
		result.Err = s.errs.HandleJobError(e.job.Key, err)
	}

	metrics.JobsTotal.WithLabelValues(string(state)).Inc()
	metrics.JobDuration.WithLabelValues(string(state)).Observe(duration.Seconds())
	s.obs.RecordJobProcessed(context.Background(), string(state))
	s.obs.RecordJobDuration(context.Background(), duration, string(state))
	if e.endSpan != nil {
		e.endSpan(string(state))
	}
	s.updateGauges()

	s.logger.Info("Job finished", map[string]interface{}{
		"key":      e.job.Key,
		"runId":    e.info.RunID,
		"state":    string(state),
		"rendered": e.rendered,
		"duration": duration.String(),
	})

	job := e.job
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if (state == StateIdle || state == StateTimedOut) && job.OnTimeout != nil {
			job.OnTimeout(job.Key)
		}
		if job.OnComplete != nil {
			job.OnComplete(result)
		}
		s.notify(job, result)
	}()
}

func (s *Scheduler) notify(job *Job, r Result) {
	if s.notifier == nil {
		return
	}
	msg := awsnotify.OutcomeMessage{
		Key:        r.Key,
		TemplateID: job.Template.ID,
		State:      string(r.State),
		Hash:       r.Hash,
		FinishedAt: s.now().UTC(),
	}
	if r.Err != nil {
		msg.ErrorCode = string(r.Err.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("Outcome notification failed", map[string]interface{}{
			"key":   r.Key,
			"error": err.Error(),
		})
	}
}

func (s *Scheduler) updateGauges() {
	metrics.JobsActive.Set(float64(len(s.running)))
	metrics.JobsQueued.Set(float64(len(s.queue)))
}

func (s *Scheduler) snapshot() Snapshot {
	snap := Snapshot{
		Active:  make([]JobInfo, 0, len(s.running)),
		Queued:  make([]JobInfo, 0, len(s.queue)),
		TakenAt: s.now(),
	}
	for _, e := range s.running {
		snap.Active = append(snap.Active, e.info)
	}
	for _, e := range s.queue {
		snap.Queued = append(snap.Queued, e.info)
	}
	return snap
}

func (s *Scheduler) changed() {
	s.dirty = true
}

// flushWatchers replaces whatever snapshot a watcher has not read yet with the latest one.
func (s *Scheduler) flushWatchers() {
	if !s.dirty || len(s.watchers) == 0 {
		return
	}
	s.dirty = false
	snap := s.snapshot()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
