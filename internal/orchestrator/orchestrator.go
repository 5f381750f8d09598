package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"github.com/genricoloni/wozplayer/internal/governor"
	"go.uber.org/zap"
)

// Timings holds the scheduling delays of the state machine
type Timings struct {
	// Startup is the delay between preloading idle and playing it
	Startup time.Duration
	// ReturnToIdle follows the natural end of a non-idle cue
	ReturnToIdle time.Duration
	// AfterStop follows an operator stop
	AfterStop time.Duration
	// AfterConditionChange follows a condition swap
	AfterConditionChange time.Duration
	// Settle is the delay before a deferred command is drained
	Settle time.Duration
}

// DefaultTimings returns the production delays
func DefaultTimings() Timings {
	return Timings{
		Startup:              500 * time.Millisecond,
		ReturnToIdle:         200 * time.Millisecond,
		AfterStop:            300 * time.Millisecond,
		AfterConditionChange: 100 * time.Millisecond,
		Settle:               50 * time.Millisecond,
	}
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithTimings overrides the scheduling delays
func WithTimings(t Timings) Option {
	return func(o *Orchestrator) { o.timings = t }
}

// WithClock overrides the clock used to time errors
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns the playback state of the participant display.
// Every state change happens on a single event-loop goroutine: commands,
// engine events, timers and async load results are posted to its inbox.
// Async work is tagged with the epoch it started in; Stop and a condition
// change bump the epoch so late results are dropped.
type Orchestrator struct {
	logger   *zap.Logger
	engines  map[domain.MediaKind]domain.MediaEngine
	gov      *governor.Governor
	notifier domain.Notifier
	banner   domain.Banner
	metrics  domain.Metrics
	timings  Timings
	now      func() time.Time

	inbox chan func()
	done  chan struct{}

	// loop-owned
	ctx      context.Context
	state    domain.PlaybackState
	epoch    uint64
	inflight context.CancelFunc
	auto     *time.Timer
	timers   map[*time.Timer]struct{}

	mu       sync.Mutex
	snapshot domain.PlaybackState
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an orchestrator over one engine per media kind
func New(
	logger *zap.Logger,
	cfg domain.Config,
	engines []domain.MediaEngine,
	gov *governor.Governor,
	notifier domain.Notifier,
	banner domain.Banner,
	metrics domain.Metrics,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		logger:   logger,
		engines:  make(map[domain.MediaKind]domain.MediaEngine, len(engines)),
		gov:      gov,
		notifier: notifier,
		banner:   banner,
		metrics:  metrics,
		timings:  DefaultTimings(),
		now:      time.Now,
		inbox:    make(chan func(), 64),
		done:     make(chan struct{}),
		timers:   make(map[*time.Timer]struct{}),
		state: domain.PlaybackState{
			Condition:  cfg.GetCondition(),
			Phase:      domain.PhaseIdle,
			Volume:     cfg.GetVolume(),
			FadeMillis: cfg.GetFadeDuration().Milliseconds(),
		},
	}
	for _, e := range engines {
		o.engines[e.Kind()] = e
	}
	for _, opt := range opts {
		opt(o)
	}
	if !o.state.Condition.Valid() {
		o.state.Condition = domain.ConditionHuman
	}
	o.snapshot = o.state
	return o
}

// Start launches the event loop and schedules the startup idle.
// It returns immediately (non-blocking).
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		return nil
	}
	if _, ok := o.engines[o.state.Condition.Kind()]; !ok {
		return fmt.Errorf("no engine for condition %s", o.state.Condition)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.ctx = loopCtx

	for _, e := range o.engines {
		e.SetVolume(o.state.Volume)
		e.SetFadeDuration(time.Duration(o.state.FadeMillis) * time.Millisecond)
		o.wg.Add(1)
		go o.forward(loopCtx, e)
	}

	o.wg.Add(1)
	go o.run(loopCtx)

	o.post(o.startup)
	o.logger.Info("Orchestrator started", zap.String("condition", string(o.state.Condition)))
	return nil
}

// Stop cancels timers and in-flight work, halts the engines and waits for
// the loop to exit
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	if cancel == nil {
		return nil
	}

	finished := make(chan struct{})
	o.post(func() {
		o.shutdown()
		close(finished)
	})

	select {
	case <-finished:
	case <-ctx.Done():
		o.logger.Warn("Orchestrator shutdown timed out", zap.Error(ctx.Err()))
	}

	cancel()
	o.wg.Wait()
	o.logger.Info("Orchestrator stopped")
	return nil
}

// PlayMedia requests a cue on the current condition's engine
func (o *Orchestrator) PlayMedia(cmd domain.MediaCommand) {
	o.command("play")
	o.post(func() { o.playMedia(cmd, true) })
}

// StopMedia halts playback and returns to idle
func (o *Orchestrator) StopMedia() {
	o.command("stop")
	o.post(o.stopMedia)
}

// PreloadMedia warms the current engine's cache
func (o *Orchestrator) PreloadMedia(ids []domain.MediaID) {
	o.command("preload")
	o.post(func() { o.preload(ids) })
}

// ChangeCondition switches the experimental arm. The same condition is a no-op.
func (o *Orchestrator) ChangeCondition(c domain.Condition) {
	o.command("condition")
	o.post(func() { o.changeCondition(c) })
}

// SetVolume applies a volume in [0, 1] to every engine
func (o *Orchestrator) SetVolume(volume float64) {
	o.command("volume")
	o.post(func() {
		volume = max(0, min(1, volume))
		o.state.Volume = volume
		for _, e := range o.engines {
			e.SetVolume(volume)
		}
	})
}

// SetFadeSpeed sets the crossfade duration used by the next transition
func (o *Orchestrator) SetFadeSpeed(d time.Duration) {
	o.command("fade")
	o.post(func() {
		d = max(0, d)
		o.state.FadeMillis = d.Milliseconds()
		for _, e := range o.engines {
			e.SetFadeDuration(d)
		}
	})
}

// Snapshot returns a copy of the playback state
func (o *Orchestrator) Snapshot() domain.PlaybackState {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.snapshot
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	return s
}

func (o *Orchestrator) command(name string) {
	if o.metrics != nil {
		o.metrics.CommandReceived(name)
	}
}

// post hands fn to the loop. It is dropped once the loop has exited.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.inbox <- fn:
	case <-o.done:
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	defer o.wg.Done()
	defer close(o.done)

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-o.inbox:
			fn()
			o.publish()
		}
	}
}

// forward moves engine events onto the loop
func (o *Orchestrator) forward(ctx context.Context, e domain.MediaEngine) {
	defer o.wg.Done()

	events := e.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.post(func() { o.engineEvent(e, ev) })
		}
	}
}

func (o *Orchestrator) publish() {
	o.mu.Lock()
	o.snapshot = o.state
	o.mu.Unlock()
}

func (o *Orchestrator) current() domain.MediaEngine {
	return o.engines[o.state.Condition.Kind()]
}

func (o *Orchestrator) setPhase(p domain.Phase) {
	if o.state.Phase == p {
		return
	}
	o.logger.Debug("Phase change",
		zap.String("from", string(o.state.Phase)),
		zap.String("to", string(p)))
	o.state.Phase = p
	if o.metrics != nil {
		o.metrics.PhaseChanged(p)
	}
}

func (o *Orchestrator) startup() {
	for kind, e := range o.engines {
		if kind == o.state.Condition.Kind() {
			e.Show()
		} else {
			e.Hide()
		}
	}
	o.preload([]domain.MediaID{domain.MediaIdle})
	o.scheduleAuto(o.timings.Startup, o.playIdle)
}

func (o *Orchestrator) playIdle() {
	o.playMedia(domain.MediaCommand{Media: domain.MediaIdle, Loop: true}, false)
}

// playMedia starts a cue. Operator commands cancel a scheduled automatic
// idle or retry once they are accepted.
func (o *Orchestrator) playMedia(cmd domain.MediaCommand, operator bool) {
	log := o.logger.With(zap.String("media", string(cmd.Media)), zap.Bool("loop", cmd.Loop))

	if cmd.Media == domain.MediaIdle && o.state.IsIdleLooping && o.state.CurrentMedia == domain.MediaIdle {
		log.Debug("Idle already looping, ignored")
		return
	}

	if o.state.Phase == domain.PhaseLoading || o.state.Phase == domain.PhaseTransitioning {
		if o.state.Pending != nil {
			log.Info("Replacing deferred command", zap.String("replaced", string(o.state.Pending.Media)))
		} else {
			log.Info("Transition in progress, command deferred")
		}
		o.state.Pending = &cmd
		return
	}

	if operator {
		o.stopAuto()
	}

	e := o.current()
	o.state.CurrentMedia = cmd.Media
	o.state.IsIdleLooping = cmd.Loop && cmd.Media == domain.MediaIdle
	o.setPhase(domain.PhaseLoading)

	req := domain.LoadRequest{
		Media:           cmd.Media,
		Loop:            cmd.Loop,
		ReturningToIdle: o.state.ReturningToIdle,
	}
	epoch := o.epoch
	ctx, cancel := context.WithCancel(o.ctx)
	o.inflight = cancel

	log.Info("Loading media", zap.String("engine", string(e.Kind())))
	go func() {
		err := e.Load(ctx, req)
		o.post(func() { o.loaded(epoch, e, cmd, err) })
	}()
}

func (o *Orchestrator) loaded(epoch uint64, e domain.MediaEngine, cmd domain.MediaCommand, err error) {
	if epoch != o.epoch {
		o.logger.Debug("Discarding stale load result", zap.String("media", string(cmd.Media)))
		return
	}
	o.state.ReturningToIdle = false

	if err != nil {
		o.endInflight()
		o.handleError(loadMessage(e.Kind(), cmd.Media, err))
		return
	}

	o.setPhase(domain.PhaseTransitioning)
	o.state.IsTransitioning = true

	ctx := o.ctx
	go func() {
		err := e.Play(ctx)
		o.post(func() { o.played(epoch, e, cmd, err) })
	}()
}

func (o *Orchestrator) played(epoch uint64, e domain.MediaEngine, cmd domain.MediaCommand, err error) {
	if epoch != o.epoch {
		o.logger.Debug("Discarding stale play result", zap.String("media", string(cmd.Media)))
		return
	}
	o.endInflight()
	o.state.IsTransitioning = false

	if err != nil {
		o.handleError(loadMessage(e.Kind(), cmd.Media, err))
		return
	}

	o.setPhase(domain.PhasePlaying)
	if o.gov.Count() > 0 || o.state.Failed {
		o.banner.Hide()
	}
	o.gov.Reset()
	o.state.Failed = false
	o.logger.Info("Media playing", zap.String("media", string(cmd.Media)))

	if o.state.Pending != nil {
		o.after(o.timings.Settle, o.drain)
	}
}

func (o *Orchestrator) endInflight() {
	if o.inflight != nil {
		o.inflight()
		o.inflight = nil
	}
}

// drain replays the deferred command, if any
func (o *Orchestrator) drain() {
	if o.state.Pending == nil {
		return
	}
	if o.state.Phase == domain.PhaseLoading || o.state.Phase == domain.PhaseTransitioning {
		return
	}
	cmd := *o.state.Pending
	o.state.Pending = nil
	o.playMedia(cmd, true)
}

func (o *Orchestrator) engineEvent(e domain.MediaEngine, ev domain.EngineEvent) {
	if e != o.current() {
		return
	}

	switch ev.Kind {
	case domain.EventEnded:
		o.mediaEnded(ev.Media)
	case domain.EventError:
		// load and play failures arrive through their own results
		if o.state.Phase == domain.PhaseLoading || o.state.Phase == domain.PhaseTransitioning {
			return
		}
		o.handleError(runtimeMessage(e.Kind(), ev.Err))
	}
}

func (o *Orchestrator) mediaEnded(id domain.MediaID) {
	s := o.state
	if s.CurrentMedia == "" || s.CurrentMedia != id || s.IsIdleLooping {
		return
	}
	if s.Phase == domain.PhaseLoading || s.Phase == domain.PhaseTransitioning {
		return
	}

	o.logger.Info("Media ended", zap.String("media", string(id)))
	o.notifier.MediaEnded(id)

	o.state.ReturningToIdle = true
	o.setPhase(domain.PhaseIdle)
	o.scheduleAuto(o.timings.ReturnToIdle, o.playIdle)
}

func (o *Orchestrator) handleError(message string) {
	o.state.CurrentMedia = ""
	o.state.IsIdleLooping = false
	o.state.IsTransitioning = false
	o.setPhase(domain.PhaseErrorRecovering)

	count, exhausted := o.gov.Record(o.now())
	o.logger.Error("Media error", zap.String("error", message), zap.Int("count", count))

	if exhausted {
		o.logger.Error("Too many consecutive errors, automatic retry disabled", zap.Int("attempts", count))
		o.state.Failed = true
		o.stopAuto()
		o.notifier.MediaError(fmt.Sprintf("Erreur critique: %s. Arrêt après %d tentatives.", message, count))
		o.banner.Show("Erreur critique: Vérifiez les fichiers médias.\n"+message, true)
	} else {
		o.notifier.MediaError(message)
		o.banner.Show(message, false)

		delay := o.gov.RetryDelay(count)
		o.logger.Info("Retrying idle", zap.Duration("delay", delay), zap.Int("attempt", count))
		if o.metrics != nil {
			o.metrics.RetryScheduled(delay)
		}
		o.scheduleAuto(delay, func() {
			o.banner.Hide()
			if !o.gov.Exhausted() {
				o.playIdle()
			}
		})
	}

	o.drain()
}

func (o *Orchestrator) stopMedia() {
	o.logger.Info("Stopping media")
	o.reset()
	o.current().Stop()
	o.scheduleAuto(o.timings.AfterStop, o.playIdle)
}

func (o *Orchestrator) changeCondition(c domain.Condition) {
	if !c.Valid() {
		o.logger.Warn("Ignoring invalid condition", zap.String("condition", string(c)))
		return
	}
	if c == o.state.Condition {
		o.logger.Debug("Condition unchanged", zap.String("condition", string(c)))
		return
	}
	next, ok := o.engines[c.Kind()]
	if !ok {
		o.logger.Error("No engine for condition", zap.String("condition", string(c)))
		return
	}

	o.logger.Info("Changing condition",
		zap.String("from", string(o.state.Condition)),
		zap.String("to", string(c)))

	prev := o.current()
	o.reset()
	prev.Stop()
	prev.Hide()

	o.state.Condition = c
	next.Show()
	o.scheduleAuto(o.timings.AfterConditionChange, o.playIdle)
}

// reset drops in-flight work and returns the state to Idle
func (o *Orchestrator) reset() {
	o.epoch++
	o.endInflight()
	o.stopAuto()
	o.state.Pending = nil
	o.state.CurrentMedia = ""
	o.state.IsIdleLooping = false
	o.state.IsTransitioning = false
	o.state.ReturningToIdle = false
	o.setPhase(domain.PhaseIdle)
}

func (o *Orchestrator) preload(ids []domain.MediaID) {
	if len(ids) == 0 {
		return
	}
	e := o.current()
	ctx := o.ctx
	go e.Preload(ctx, ids)
}

func (o *Orchestrator) shutdown() {
	o.epoch++
	o.endInflight()
	o.stopAuto()
	for t := range o.timers {
		t.Stop()
	}
	clear(o.timers)
	for _, e := range o.engines {
		e.Stop()
	}
	o.state.Pending = nil
	o.state.IsTransitioning = false
	o.setPhase(domain.PhaseIdle)
}

// after runs fn on the loop once d elapsed, unless the epoch moved on
func (o *Orchestrator) after(d time.Duration, fn func()) *time.Timer {
	epoch := o.epoch
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		o.post(func() {
			delete(o.timers, t)
			if epoch != o.epoch {
				return
			}
			fn()
		})
	})
	o.timers[t] = struct{}{}
	return t
}

// scheduleAuto replaces the automatic idle or retry timer
func (o *Orchestrator) scheduleAuto(d time.Duration, fn func()) {
	o.stopAuto()
	var t *time.Timer
	t = o.after(d, func() {
		// fired before stopAuto but queued behind a newer command
		if o.auto != t {
			return
		}
		o.auto = nil
		fn()
	})
	o.auto = t
}

func (o *Orchestrator) stopAuto() {
	if o.auto == nil {
		return
	}
	o.auto.Stop()
	delete(o.timers, o.auto)
	o.auto = nil
}

func loadMessage(kind domain.MediaKind, id domain.MediaID, err error) string {
	if kind == domain.KindAudio {
		return "Erreur lecture audio: " + err.Error()
	}
	var le *domain.LoadError
	var te *domain.LoadTimeoutError
	if errors.As(err, &le) || errors.As(err, &te) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", id, err)
}

func runtimeMessage(kind domain.MediaKind, err error) string {
	msg := "Inconnue"
	if err != nil {
		msg = err.Error()
	}
	if kind == domain.KindAudio {
		return "Erreur audio: " + msg
	}
	return "Vidéo: " + msg
}
