package supervisor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/wifiprov-go/pkg/credstore"
	"github.com/mash-protocol/wifiprov-go/pkg/intake"
	"github.com/mash-protocol/wifiprov-go/pkg/journal"
	"github.com/mash-protocol/wifiprov-go/pkg/radio"
	"github.com/mash-protocol/wifiprov-go/pkg/radio/radiotest"
	"github.com/mash-protocol/wifiprov-go/pkg/supervisor"
	"github.com/mash-protocol/wifiprov-go/pkg/supervisor/mocks"
	"github.com/mash-protocol/wifiprov-go/pkg/verify"
)

const waitFor = 3 * time.Second

// verifyFunc adapts a function to supervisor.Verifier.
type verifyFunc func(ctx context.Context, timeout time.Duration) error

func (f verifyFunc) Verify(ctx context.Context, timeout time.Duration) error { return f(ctx, timeout) }

// syncBuffer is a bytes.Buffer safe for the supervisor goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type harness struct {
	svc     *radiotest.FakeServiceManager
	radio   *radio.ModeController
	console *intake.ConsoleIntake
	store   *credstore.Store
	journal journal.Journal
	status  *syncBuffer
	sup     *supervisor.Supervisor

	mu     sync.Mutex
	states []supervisor.State
}

func newHarness(t *testing.T, v supervisor.Verifier, config supervisor.Config, extra ...intake.Intake) *harness {
	t.Helper()
	dir := t.TempDir()

	j, err := journal.OpenBolt(filepath.Join(dir, "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	h := &harness{
		svc:     radiotest.New(),
		console: intake.NewConsoleIntake(),
		store:   credstore.NewStore(filepath.Join(dir, "wifi_credentials.json")),
		journal: j,
		status:  &syncBuffer{},
	}
	h.radio = radio.NewModeController(h.svc, radio.ControllerConfig{OperationTimeout: time.Second})

	config.Store = h.store
	config.Journal = j
	config.StatusWriter = h.status
	if config.VerifyTimeout == 0 {
		config.VerifyTimeout = time.Second
	}

	intakes := append([]intake.Intake{h.console}, extra...)
	h.sup = supervisor.New(h.radio, v, intakes, config)
	h.sup.OnStateChange(func(_, new supervisor.State) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.states = append(h.states, new)
	})
	return h
}

type runResult struct {
	outcome supervisor.Outcome
	err     error
}

func (h *harness) start(ctx context.Context) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		outcome, err := h.sup.Run(ctx)
		done <- runResult{outcome, err}
	}()
	return done
}

func (h *harness) States() []supervisor.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]supervisor.State(nil), h.states...)
}

// lastState is the most recent state seen by the OnStateChange callback.
func (h *harness) lastState() supervisor.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.states) == 0 {
		return supervisor.StateIdle
	}
	return h.states[len(h.states)-1]
}

func (h *harness) waitArmed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.console.Armed() && h.lastState() == supervisor.StateAwaitingCandidate
	}, waitFor, 5*time.Millisecond, "intakes never armed")
}

func (h *harness) submit(t *testing.T, ssid, passphrase string) {
	t.Helper()
	h.waitArmed(t)
	require.NoError(t, h.console.Submit(ssid, passphrase))
}

func waitResult(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return runResult{}
	}
}

func TestScenarioWebFormConnects(t *testing.T) {
	var sup *supervisor.Supervisor
	web := intake.NewWebFormIntake(intake.WebConfig{
		ListenAddr: "127.0.0.1:0",
		Status:     func() intake.PortalStatus { return sup.PortalStatus() },
	})

	verified := verifyFunc(func(context.Context, time.Duration) error { return nil })
	h := newHarness(t, verified, supervisor.Config{}, web)
	sup = h.sup

	done := h.start(context.Background())

	require.Eventually(t, func() bool {
		return web.Addr() != nil && sup.State() == supervisor.StateAwaitingCandidate
	}, waitFor, 5*time.Millisecond)

	resp, err := http.PostForm("http://"+web.Addr().String()+"/connect",
		url.Values{"ssid": {"HomeNet"}, "passphrase": {"testpass123"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, supervisor.OutcomeConnected, r.outcome)

	assert.Equal(t, []supervisor.State{
		supervisor.StateHostingAP,
		supervisor.StateAwaitingCandidate,
		supervisor.StateApplyingClient,
		supervisor.StateVerifying,
		supervisor.StateConnected,
	}, h.States())

	saved, err := h.store.LoadLast()
	require.NoError(t, err)
	assert.Equal(t, "HomeNet", saved.SSID)
	assert.Equal(t, "testpass123", saved.Passphrase)

	up, ssid := h.svc.ClientRunning()
	assert.True(t, up)
	assert.Equal(t, "HomeNet", ssid)
	assert.False(t, h.svc.APRunning())
	assert.Equal(t, radio.RoleSTA, h.radio.CurrentRole())
	assert.Equal(t, "HomeNet", h.sup.PortalStatus().Joined)
	assert.Nil(t, web.Addr(), "web intake stopped after the candidate")

	lines := h.status.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "WIFIPROV_STATUS=CONNECTED "))
	assert.Contains(t, lines[0], `ssid="HomeNet"`)
	assert.Contains(t, lines[0], "source=web")
	assert.NotContains(t, lines[0], "testpass123")

	attempts, err := h.journal.List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, journal.OutcomeConnected, attempts[0].Outcome)
	assert.Equal(t, 1, attempts[0].Number)
	assert.Equal(t, h.sup.Session().ID, attempts[0].SessionID)
}

func TestScenarioWrongPassphraseRollsBack(t *testing.T) {
	v := verifyFunc(func(context.Context, time.Duration) error {
		return fmt.Errorf("%w after 1s: %w", verify.ErrVerifyTimeout, verify.ErrNoLease)
	})
	h := newHarness(t, v, supervisor.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.submit(t, "HomeNet", "wrongpass1")

	require.Eventually(t, func() bool {
		sess := h.sup.Session()
		return sess.AttemptCount == 1 && h.lastState() == supervisor.StateAwaitingCandidate && h.console.Armed()
	}, waitFor, 5*time.Millisecond)

	sess := h.sup.Session()
	assert.ErrorIs(t, sess.LastError, verify.ErrVerifyTimeout)
	assert.True(t, sess.ActiveCandidate.IsZero())
	assert.True(t, h.svc.APRunning())
	assert.Equal(t, radio.RoleAP, h.radio.CurrentRole())
	assert.Zero(t, h.svc.Violations())

	assert.Equal(t, []supervisor.State{
		supervisor.StateHostingAP,
		supervisor.StateAwaitingCandidate,
		supervisor.StateApplyingClient,
		supervisor.StateVerifying,
		supervisor.StateRollingBack,
		supervisor.StateHostingAP,
		supervisor.StateAwaitingCandidate,
	}, h.States())

	cancel()
	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, supervisor.OutcomeCancelled, r.outcome)
	assert.False(t, h.console.Armed(), "intakes disarmed when Run returns")
	assert.Empty(t, h.status.Lines(), "no status line for a cancelled session")

	_, err := h.store.LoadLast()
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestScenarioAttemptsExhausted(t *testing.T) {
	v := verifyFunc(func(context.Context, time.Duration) error {
		return fmt.Errorf("%w: dns check: no answer", verify.ErrVerify)
	})
	h := newHarness(t, v, supervisor.Config{MaxAttempts: 3})

	done := h.start(context.Background())
	for i := 1; i <= 3; i++ {
		h.submit(t, "HomeNet", fmt.Sprintf("wrongpass%d", i))
	}

	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, supervisor.ErrAttemptsExhausted)
	assert.Equal(t, supervisor.OutcomeExhausted, r.outcome)

	sess := h.sup.Session()
	assert.Equal(t, supervisor.StateFailedTerminal, sess.State)
	assert.Equal(t, 3, sess.AttemptCount)
	assert.Equal(t, radio.RoleAP, h.radio.CurrentRole())
	assert.True(t, h.svc.APRunning())
	assert.False(t, h.console.Armed())

	lines := h.status.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "WIFIPROV_STATUS=FAILED_TERMINAL "))
	assert.Contains(t, lines[0], "attempts=3 max_attempts=3")

	attempts, err := h.journal.List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, journal.OutcomeVerifyFailed, a.Outcome)
		assert.Equal(t, 3-i, a.Number, "newest first")
	}

	assert.ErrorIs(t, h.sup.Enqueue(mustCandidate(t, "Late", "latepass1")), supervisor.ErrSessionEnded)
}

func TestScenarioQueuedCandidateUsedAfterRollback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan error)
	var calls atomic.Int32
	v := verifyFunc(func(context.Context, time.Duration) error {
		if calls.Add(1) == 1 {
			close(entered)
			return <-release
		}
		return nil
	})
	h := newHarness(t, v, supervisor.Config{})

	done := h.start(context.Background())
	h.submit(t, "FirstNet", "firstpass1")

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("verification never started")
	}
	require.Equal(t, supervisor.StateVerifying, h.sup.State())

	require.NoError(t, h.sup.Enqueue(mustCandidate(t, "SecondNet", "secondpass")))
	assert.Equal(t, 1, h.sup.Session().Queued)
	assert.Equal(t, supervisor.StateVerifying, h.sup.State(), "queued candidate does not interrupt verification")
	assert.Equal(t, 0, h.svc.CountCalls("StartClient(SecondNet)"))

	release <- verify.ErrVerifyTimeout

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, supervisor.OutcomeConnected, r.outcome)

	sess := h.sup.Session()
	assert.Equal(t, "SecondNet", sess.ActiveCandidate.SSID())
	assert.Equal(t, 1, sess.AttemptCount)

	calls2 := h.svc.Calls()
	first := indexOf(calls2, "StartClient(FirstNet)")
	restore := indexOfAfter(calls2, "StartAccessPoint(PiWiFiSetup)", first)
	second := indexOf(calls2, "StartClient(SecondNet)")
	require.True(t, first >= 0 && restore > first && second > restore, "calls: %v", calls2)

	states := h.States()
	rollback := indexOfState(states, supervisor.StateRollingBack)
	require.GreaterOrEqual(t, rollback, 0)
	assert.Equal(t, supervisor.StateConnected, states[len(states)-1])

	saved, err := h.store.LoadLast()
	require.NoError(t, err)
	assert.Equal(t, "SecondNet", saved.SSID)
}

func TestQueuedCandidateDiscardedOnConnect(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	v := verifyFunc(func(context.Context, time.Duration) error {
		close(entered)
		<-release
		return nil
	})
	h := newHarness(t, v, supervisor.Config{})

	done := h.start(context.Background())
	h.submit(t, "FirstNet", "firstpass1")
	<-entered

	require.NoError(t, h.sup.Enqueue(mustCandidate(t, "SecondNet", "secondpass")))
	close(release)

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 0, h.sup.Session().Queued)
	assert.Equal(t, 0, h.svc.CountCalls("StartClient(SecondNet)"))

	saved, err := h.store.LoadLast()
	require.NoError(t, err)
	assert.Equal(t, "FirstNet", saved.SSID)
}

func TestApplyFailureRollsBack(t *testing.T) {
	v := verifyFunc(func(context.Context, time.Duration) error {
		t.Error("verify must not run after a failed apply")
		return nil
	})
	h := newHarness(t, v, supervisor.Config{})
	h.svc.SetStartClientHook(func(context.Context, string, string) error {
		return errors.New("wpa_supplicant failed to start")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.start(ctx)
	h.submit(t, "HomeNet", "testpass123")

	require.Eventually(t, func() bool {
		return h.sup.Session().AttemptCount == 1 && h.console.Armed()
	}, waitFor, 5*time.Millisecond)

	assert.ErrorIs(t, h.sup.Session().LastError, radio.ErrApply)
	assert.True(t, h.svc.APRunning())
	assert.NotContains(t, h.States(), supervisor.StateVerifying)

	cancel()
	waitResult(t, done)

	attempts, err := h.journal.List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, journal.OutcomeApplyFailed, attempts[0].Outcome)
	assert.Contains(t, attempts[0].Error, "wpa_supplicant failed to start")
}

// rejectingRadio refuses every client configuration as invalid.
type rejectingRadio struct {
	mu   sync.Mutex
	role radio.Role
}

func (r *rejectingRadio) EnterAPHost(context.Context, radio.APConfig) (radio.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.role = radio.RoleAP
	return r.role, nil
}

func (r *rejectingRadio) EnterSTAClient(context.Context, string, string) (radio.Role, error) {
	return radio.RoleAP, fmt.Errorf("%w: %w", radio.ErrValidation, radio.ErrPassphraseEncoding)
}

func (r *rejectingRadio) ClientSSID() string { return "" }

func (r *rejectingRadio) CurrentRole() radio.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

func TestValidationErrorCountsAsAttempt(t *testing.T) {
	console := intake.NewConsoleIntake()
	j, err := journal.OpenBolt(filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	defer j.Close()

	sup := supervisor.New(&rejectingRadio{}, verifyFunc(func(context.Context, time.Duration) error { return nil }),
		[]intake.Intake{console}, supervisor.Config{MaxAttempts: 1, Journal: j})

	done := make(chan error, 1)
	go func() {
		_, err := sup.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, console.Armed, waitFor, 5*time.Millisecond)
	require.NoError(t, console.Submit("HomeNet", "testpass123"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, supervisor.ErrAttemptsExhausted)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}

	assert.ErrorIs(t, sup.Session().LastError, radio.ErrValidation)
	attempts, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, journal.OutcomeRejected, attempts[0].Outcome)
}

func TestVerifyTimeoutPassedThrough(t *testing.T) {
	v := mocks.NewMockVerifier(t)
	v.EXPECT().Verify(mock.Anything, 7*time.Second).Return(nil).Once()

	h := newHarness(t, v, supervisor.Config{VerifyTimeout: 7 * time.Second})
	done := h.start(context.Background())
	h.submit(t, "HomeNet", "testpass123")

	r := waitResult(t, done)
	require.NoError(t, r.err)
}

func TestVerifyIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	entered := make(chan struct{})
	v := verifyFunc(func(vctx context.Context, _ time.Duration) error {
		close(entered)
		cancel()
		time.Sleep(20 * time.Millisecond)
		return vctx.Err()
	})
	h := newHarness(t, v, supervisor.Config{})

	done := h.start(ctx)
	h.submit(t, "HomeNet", "testpass123")
	<-entered

	r := waitResult(t, done)
	require.NoError(t, r.err, "a started attempt runs to completion")
	assert.Equal(t, supervisor.OutcomeConnected, r.outcome)
}

func TestAdvertisingFollowsIntakes(t *testing.T) {
	adv := mocks.NewMockAdvertising(t)
	adv.EXPECT().Start(mock.Anything).Return(nil).Once()
	adv.EXPECT().Stop().Return(nil).Once()

	h := newHarness(t, verifyFunc(func(context.Context, time.Duration) error { return nil }),
		supervisor.Config{Advertising: adv})
	done := h.start(context.Background())
	h.submit(t, "HomeNet", "testpass123")

	r := waitResult(t, done)
	require.NoError(t, r.err)
}

func TestRunTwiceConcurrently(t *testing.T) {
	h := newHarness(t, verifyFunc(func(context.Context, time.Duration) error { return nil }), supervisor.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.start(ctx)
	h.waitArmed(t)

	_, err := h.sup.Run(ctx)
	assert.ErrorIs(t, err, supervisor.ErrAlreadyRunning)

	cancel()
	waitResult(t, done)
}

func TestRestartResetsSession(t *testing.T) {
	v := verifyFunc(func(context.Context, time.Duration) error { return verify.ErrVerify })
	h := newHarness(t, v, supervisor.Config{MaxAttempts: 1})

	done := h.start(context.Background())
	h.submit(t, "HomeNet", "wrongpass1")
	r := waitResult(t, done)
	require.ErrorIs(t, r.err, supervisor.ErrAttemptsExhausted)
	firstID := h.sup.Session().ID

	ctx, cancel := context.WithCancel(context.Background())
	done = h.start(ctx)
	h.waitArmed(t)

	sess := h.sup.Session()
	assert.NotEqual(t, firstID, sess.ID)
	assert.Zero(t, sess.AttemptCount)
	assert.Nil(t, sess.LastError)

	cancel()
	waitResult(t, done)
}

func TestEventsDelivered(t *testing.T) {
	h := newHarness(t, verifyFunc(func(context.Context, time.Duration) error { return nil }), supervisor.Config{})

	connected := make(chan supervisor.Event, 1)
	h.sup.OnEvent(func(e supervisor.Event) {
		if e.Type == supervisor.EventConnected {
			connected <- e
		}
	})

	done := h.start(context.Background())
	h.submit(t, "HomeNet", "testpass123")
	waitResult(t, done)

	select {
	case e := <-connected:
		assert.Equal(t, "HomeNet", e.SSID)
		assert.Equal(t, intake.SourceConsole, e.Source)
		assert.Equal(t, h.sup.Session().ID, e.SessionID)
	case <-time.After(waitFor):
		t.Fatal("no connected event")
	}
}

func TestPortalStatus(t *testing.T) {
	h := newHarness(t, verifyFunc(func(context.Context, time.Duration) error { return nil }),
		supervisor.Config{MaxAttempts: 5})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := h.start(ctx)
	h.waitArmed(t)

	st := h.sup.PortalStatus()
	assert.Equal(t, "AWAITING_CANDIDATE", st.State)
	assert.Equal(t, "AP", st.Role)
	assert.Equal(t, 0, st.Attempt)
	assert.Equal(t, 5, st.MaxAttempts)
	assert.Empty(t, st.Joined)

	cancel()
	waitResult(t, done)
}

func TestEnqueueBeforeRun(t *testing.T) {
	h := newHarness(t, verifyFunc(func(context.Context, time.Duration) error { return nil }), supervisor.Config{})
	assert.ErrorIs(t, h.sup.Enqueue(mustCandidate(t, "HomeNet", "testpass123")), supervisor.ErrSessionEnded)
}

func mustCandidate(t *testing.T, ssid, passphrase string) intake.Candidate {
	t.Helper()
	c, err := intake.NewCandidate(ssid, passphrase, intake.SourceConsole)
	require.NoError(t, err)
	return c
}

func indexOf(calls []string, call string) int {
	return indexOfAfter(calls, call, -1)
}

func indexOfAfter(calls []string, call string, after int) int {
	for i := after + 1; i < len(calls); i++ {
		if calls[i] == call {
			return i
		}
	}
	return -1
}

func indexOfState(states []supervisor.State, s supervisor.State) int {
	for i, st := range states {
		if st == s {
			return i
		}
	}
	return -1
}
