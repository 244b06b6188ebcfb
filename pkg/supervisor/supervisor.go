package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/intake"
	"github.com/mash-protocol/wifiprov-go/pkg/journal"
	plog "github.com/mash-protocol/wifiprov-go/pkg/log"
	"github.com/mash-protocol/wifiprov-go/pkg/radio"
	"github.com/mash-protocol/wifiprov-go/pkg/verify"
)

// DefaultMaxAttempts is how many failed attempts end a session.
const DefaultMaxAttempts = 3

// Config configures a Supervisor.
type Config struct {
	// AccessPoint is the setup hotspot (default radio.DefaultAPConfig()).
	AccessPoint radio.APConfig

	// MaxAttempts is the number of failed attempts that ends a session
	// (default 3).
	MaxAttempts int

	// VerifyTimeout bounds each verification (default verify.DefaultTimeout).
	VerifyTimeout time.Duration

	// Store persists the verified credential. Optional.
	Store CredentialStore

	// Journal records every attempt. Optional.
	Journal journal.Journal

	// Advertising runs while intakes are armed. Optional.
	Advertising Advertising

	// EventLogger receives the provisioning trace. Optional.
	EventLogger plog.Logger

	// StatusWriter receives one status line per finished session. Optional.
	StatusWriter io.Writer

	// Logger is the optional logger for operational output.
	Logger *slog.Logger
}

// Supervisor runs provisioning sessions. One goroutine, the caller of Run,
// drives every state change and radio transition; intakes only feed the
// candidate queue.
type Supervisor struct {
	radio    Radio
	verifier Verifier
	intakes  []intake.Intake
	config   Config
	logger   *slog.Logger
	events   plog.Logger
	now      func() time.Time

	running atomic.Bool
	queue   *candidateQueue

	// armed and forwarders are only touched by the run loop.
	armed      bool
	forwarders sync.WaitGroup

	mu            sync.RWMutex
	session       Session
	eventHandlers []EventHandler
	onStateChange func(old, new State)
}

// New creates a Supervisor.
func New(r Radio, v Verifier, intakes []intake.Intake, config Config) *Supervisor {
	if config.AccessPoint.SSID == "" {
		config.AccessPoint = radio.DefaultAPConfig()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.VerifyTimeout <= 0 {
		config.VerifyTimeout = verify.DefaultTimeout
	}
	if config.Journal == nil {
		config.Journal = journal.Nop{}
	}
	events := config.EventLogger
	if events == nil {
		events = plog.NoopLogger{}
	}
	return &Supervisor{
		radio:    r,
		verifier: v,
		intakes:  intakes,
		config:   config,
		logger:   config.Logger,
		events:   events,
		now:      time.Now,
		queue:    newCandidateQueue(),
	}
}

// OnEvent registers a handler for supervisor events. Handlers run on their
// own goroutine.
func (s *Supervisor) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// OnStateChange sets a callback invoked synchronously on every state change.
func (s *Supervisor) OnStateChange(fn func(old, new State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// Session returns a copy of the current or last session.
func (s *Supervisor) Session() Session {
	s.mu.RLock()
	sess := s.session
	s.mu.RUnlock()
	sess.Queued = s.queue.len()
	return sess
}

// State returns the current session state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.State
}

// MaxAttempts returns the configured attempt limit.
func (s *Supervisor) MaxAttempts() int {
	return s.config.MaxAttempts
}

// Running reports whether Run is active.
func (s *Supervisor) Running() bool {
	return s.running.Load()
}

// PortalStatus reports the session for the setup page.
func (s *Supervisor) PortalStatus() intake.PortalStatus {
	sess := s.Session()
	st := intake.PortalStatus{
		State:       sess.State.String(),
		Role:        s.radio.CurrentRole().String(),
		Attempt:     sess.AttemptCount,
		MaxAttempts: s.config.MaxAttempts,
		SSID:        sess.ActiveCandidate.SSID(),
		Joined:      s.radio.ClientSSID(),
	}
	if sess.LastError != nil {
		st.LastError = sess.LastError.Error()
	}
	return st
}

// Enqueue offers a candidate outside the intakes, e.g. from the operator
// shell while an attempt is in flight. It is used by the next attempt if the
// current one fails.
func (s *Supervisor) Enqueue(c intake.Candidate) error {
	if c.IsZero() {
		return radio.ErrSSIDEmpty
	}
	if !s.running.Load() || s.State().Terminal() {
		return ErrSessionEnded
	}
	s.offer(c)
	return nil
}

// ObserveRoleChange records a radio role change in the event trace. Wire it
// to radio.ModeController.OnRoleChange.
func (s *Supervisor) ObserveRoleChange(old, new radio.Role) {
	s.debugLog("radio role changed", "old", old, "new", new)
	s.logEvent(plog.ComponentRadio, plog.CategoryState, func(e *plog.Event) {
		e.StateChange = &plog.StateChangeEvent{
			Entity:   plog.StateEntityRadio,
			OldState: old.String(),
			NewState: new.String(),
		}
	})
}

// Run drives one provisioning session until it connects, exhausts its
// attempts, or ctx ends while waiting for a candidate. A transition already
// under way is never interrupted by ctx.
func (s *Supervisor) Run(ctx context.Context) (Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return OutcomeNone, ErrAlreadyRunning
	}
	defer s.running.Store(false)
	defer s.disarm()

	s.startSession()

	for {
		s.setState(StateHostingAP, "")
		s.hostAP(ctx)

		if err := ctx.Err(); err != nil {
			return OutcomeCancelled, err
		}

		if s.queue.len() == 0 {
			s.arm(ctx)
		}
		s.setState(StateAwaitingCandidate, "")

		cand, err := s.queue.wait(ctx)
		if err != nil {
			s.debugLog("session cancelled while awaiting a candidate", "error", err)
			return OutcomeCancelled, err
		}
		s.disarm()

		if err := s.attempt(ctx, cand); err == nil {
			s.finishConnected()
			return OutcomeConnected, nil
		}

		if s.Session().AttemptCount >= s.config.MaxAttempts {
			s.finishExhausted(ctx)
			return OutcomeExhausted, ErrAttemptsExhausted
		}
	}
}

func (s *Supervisor) startSession() {
	dropped := s.queue.discard()

	s.mu.Lock()
	s.session = Session{
		ID:        uuid.NewString(),
		State:     StateIdle,
		StartedAt: s.now(),
	}
	id := s.session.ID
	s.mu.Unlock()

	s.info("provisioning session started", "session", id, "max_attempts", s.config.MaxAttempts)
	if dropped > 0 {
		s.debugLog("dropped candidates from previous session", "count", dropped)
	}

	if s.config.Store != nil {
		if saved, err := s.config.Store.LoadLast(); err == nil {
			s.info("previously provisioned network", "ssid", saved.SSID, "saved_at", saved.SavedAt)
		} else if !errors.Is(err, credstore.ErrNotFound) {
			s.warn("saved credential unreadable", "error", err)
		}
	}
}

// hostAP brings the access point up. A failure leaves a degraded AP that the
// next EnterAPHost retries; the session carries on so the intakes stay
// reachable on whatever part of the AP came up.
func (s *Supervisor) hostAP(ctx context.Context) {
	if _, err := s.radio.EnterAPHost(context.WithoutCancel(ctx), s.config.AccessPoint); err != nil {
		s.warn("access point degraded", "error", err)
		s.logError(plog.ComponentRadio, "enter ap host", err)
	}
}

// arm starts every intake and the advertisers.
func (s *Supervisor) arm(ctx context.Context) {
	if s.armed {
		return
	}
	s.armed = true

	for _, in := range s.intakes {
		results, err := in.Start(ctx)
		if err != nil {
			s.warn("intake failed to start", "source", in.Source(), "error", err)
			s.logError(plog.ComponentIntake, "start "+in.Source().String(), err)
			continue
		}
		s.forwarders.Add(1)
		go s.forward(in.Source(), results)
	}

	if s.config.Advertising != nil {
		if err := s.config.Advertising.Start(ctx); err != nil {
			s.warn("advertising failed to start", "error", err)
		}
	}
	s.debugLog("intakes armed", "count", len(s.intakes))
}

// disarm stops every intake and the advertisers and waits for the intake
// streams to drain into the queue.
func (s *Supervisor) disarm() {
	if !s.armed {
		return
	}
	s.armed = false

	if s.config.Advertising != nil {
		if err := s.config.Advertising.Stop(); err != nil {
			s.debugLog("advertising stop failed", "error", err)
		}
	}
	for _, in := range s.intakes {
		if err := in.Stop(); err != nil {
			s.debugLog("intake stop failed", "source", in.Source(), "error", err)
		}
	}
	s.forwarders.Wait()
	s.debugLog("intakes disarmed", "queued", s.queue.len())
}

// forward moves an intake's results into the queue until its stream closes.
func (s *Supervisor) forward(src intake.Source, results <-chan intake.Result) {
	defer s.forwarders.Done()

	for r := range results {
		if r.Err != nil {
			s.debugLog("intake reported an error", "source", src, "error", r.Err)
			s.logError(plog.ComponentIntake, src.String(), r.Err)
			continue
		}
		s.offer(r.Candidate)
	}
}

func (s *Supervisor) offer(c intake.Candidate) {
	inFlight := s.State().InFlight()
	n := s.queue.push(c)

	s.info("candidate received", "source", c.Source(), "ssid", c.SSID(), "queued", n)
	s.logEvent(plog.ComponentIntake, plog.CategoryCandidate, func(e *plog.Event) {
		e.Candidate = &plog.CandidateEvent{
			Source: c.Source().String(),
			SSID:   c.SSID(),
			Queued: inFlight,
		}
	})
	s.emitEvent(Event{
		Type:   EventCandidateReceived,
		SSID:   c.SSID(),
		Source: c.Source(),
	})
}

// attempt applies and verifies c. On failure the session moves to
// ROLLING_BACK and the radio is back in AP role when it returns.
func (s *Supervisor) attempt(ctx context.Context, c intake.Candidate) error {
	work := context.WithoutCancel(ctx)
	started := s.now()

	s.mu.Lock()
	s.session.ActiveCandidate = c
	s.mu.Unlock()
	s.setState(StateApplyingClient, c.String())

	if _, err := s.radio.EnterSTAClient(work, c.SSID(), c.Passphrase()); err != nil {
		outcome := journal.OutcomeApplyFailed
		if radio.IsValidationError(err) {
			outcome = journal.OutcomeRejected
		}
		s.rollBack(ctx, c, started, outcome, err)
		return err
	}

	s.setState(StateVerifying, "")
	if err := s.verifier.Verify(work, s.config.VerifyTimeout); err != nil {
		s.rollBack(ctx, c, started, journal.OutcomeVerifyFailed, err)
		return err
	}

	s.record(c, started, journal.OutcomeConnected, nil)
	return nil
}

func (s *Supervisor) rollBack(ctx context.Context, c intake.Candidate, started time.Time, outcome journal.Outcome, cause error) {
	s.mu.Lock()
	s.session.AttemptCount++
	s.session.LastError = cause
	s.session.ActiveCandidate = intake.Candidate{}
	attempts := s.session.AttemptCount
	s.mu.Unlock()

	s.warn("provisioning attempt failed",
		"ssid", c.SSID(), "source", c.Source(), "outcome", outcome,
		"attempt", attempts, "max_attempts", s.config.MaxAttempts, "error", cause)
	s.record(c, started, outcome, cause)
	s.emitEvent(Event{
		Type:    EventAttemptFailed,
		SSID:    c.SSID(),
		Source:  c.Source(),
		Attempt: attempts,
		Error:   cause,
	})

	s.setState(StateRollingBack, outcome.String())
	if outcome == journal.OutcomeVerifyFailed {
		s.hostAP(ctx)
	}
}

func (s *Supervisor) finishConnected() {
	sess := s.Session()
	c := sess.ActiveCandidate

	if s.config.Store != nil {
		if err := s.config.Store.Persist(c.SSID(), c.Passphrase()); err != nil {
			s.warn("credential not persisted", "ssid", c.SSID(), "error", err)
			s.logError(plog.ComponentStore, "persist", err)
		}
	}
	if n := s.queue.discard(); n > 0 {
		s.debugLog("discarded queued candidates after connecting", "count", n)
	}

	s.setState(StateConnected, "")
	s.info("provisioning succeeded", "ssid", c.SSID(), "source", c.Source(), "failed_attempts", sess.AttemptCount)
	s.emitEvent(Event{
		Type:    EventConnected,
		SSID:    c.SSID(),
		Source:  c.Source(),
		Attempt: sess.AttemptCount,
	})
	s.reportStatus("CONNECTED", c.SSID(), ConnectedLine(s.Session()))
}

func (s *Supervisor) finishExhausted(ctx context.Context) {
	// The radio is already back in AP role; make sure a degraded AP is retried.
	s.hostAP(ctx)

	s.setState(StateFailedTerminal, "")
	sess := s.Session()
	s.errorLog("provisioning attempts exhausted",
		"attempts", sess.AttemptCount, "last_error", sess.LastError)
	s.emitEvent(Event{
		Type:    EventExhausted,
		Attempt: sess.AttemptCount,
		Error:   sess.LastError,
	})
	s.reportStatus("FAILED_TERMINAL", "", FailedLine(sess, s.config.MaxAttempts))
}

func (s *Supervisor) reportStatus(status, ssid, line string) {
	if err := writeStatusLine(s.config.StatusWriter, line); err != nil {
		s.warn("status line not written", "error", err)
	}
	attempts := s.Session().AttemptCount
	s.logEvent(plog.ComponentSupervisor, plog.CategoryStatus, func(e *plog.Event) {
		e.Status = &plog.StatusEvent{
			Status:   status,
			SSID:     ssid,
			Attempts: attempts,
			Line:     line,
		}
	})
}

// record writes the attempt to the journal and the event trace.
func (s *Supervisor) record(c intake.Candidate, started time.Time, outcome journal.Outcome, cause error) {
	sess := s.Session()
	a := journal.Attempt{
		SessionID:  sess.ID,
		Number:     sess.AttemptCount,
		Source:     c.Source().String(),
		SSID:       c.SSID(),
		Outcome:    outcome,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	// A failed attempt has already been counted.
	if outcome == journal.OutcomeConnected {
		a.Number++
	}
	if cause != nil {
		a.Error = cause.Error()
	}
	if err := s.config.Journal.Record(a); err != nil {
		s.warn("attempt not journaled", "error", err)
	}

	s.logEvent(plog.ComponentSupervisor, plog.CategoryAttempt, func(e *plog.Event) {
		e.Outcome = &plog.AttemptEvent{
			Number:   a.Number,
			SSID:     a.SSID,
			Source:   a.Source,
			Outcome:  outcome.String(),
			Error:    a.Error,
			Duration: a.Duration(),
		}
	})
}

func (s *Supervisor) setState(state State, reason string) {
	s.mu.Lock()
	old := s.session.State
	s.session.State = state
	id := s.session.ID
	attempts := s.session.AttemptCount
	fn := s.onStateChange
	s.mu.Unlock()

	if old == state {
		return
	}
	s.debugLog("state changed", "session", id, "old", old, "new", state, "reason", reason)

	s.logEvent(plog.ComponentSupervisor, plog.CategoryState, func(e *plog.Event) {
		e.StateChange = &plog.StateChangeEvent{
			Entity:   plog.StateEntitySession,
			OldState: old.String(),
			NewState: state.String(),
			Reason:   reason,
		}
	})
	if fn != nil {
		fn(old, state)
	}
	s.emitEvent(Event{
		Type:     EventStateChanged,
		OldState: old,
		NewState: state,
		Attempt:  attempts,
	})
}

func (s *Supervisor) logEvent(component plog.Component, category plog.Category, fill func(*plog.Event)) {
	s.mu.RLock()
	id, attempts := s.session.ID, s.session.AttemptCount
	s.mu.RUnlock()

	e := plog.Event{
		Timestamp: s.now(),
		SessionID: id,
		Component: component,
		Category:  category,
		Attempt:   attempts,
	}
	fill(&e)
	s.events.Log(e)
}

func (s *Supervisor) logError(component plog.Component, op string, err error) {
	s.logEvent(component, plog.CategoryError, func(e *plog.Event) {
		e.Error = &plog.ErrorEventData{
			Component: component,
			Message:   err.Error(),
			Context:   op,
		}
	})
}

func (s *Supervisor) emitEvent(event Event) {
	s.mu.RLock()
	handlers := s.eventHandlers
	if event.SessionID == "" {
		event.SessionID = s.session.ID
	}
	s.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

func (s *Supervisor) errorLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

func (s *Supervisor) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Supervisor) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Supervisor) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
