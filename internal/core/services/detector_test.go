package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novatrust/bio-gateway/internal/cache"
	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/event"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/pubsub"
	"github.com/novatrust/bio-gateway/internal/repositories"
)

// fakeGateway scripts provider answers per status query. Once the script is
// exhausted the last entry repeats.
type fakeGateway struct {
	mu           sync.Mutex
	created      *ports.CreatedOperation
	createErr    error
	statusScript []*ports.StatusOutcome
	statusCalls  int
	result       *domain.ProofResult
	resultErr    error
}

func (g *fakeGateway) CreateOperation(_ context.Context, _ domain.OperationKind, _ string) (*ports.CreatedOperation, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	if g.created != nil {
		return g.created, nil
	}
	return &ports.CreatedOperation{OperationID: "op-1", Secret: "s3cret", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, _ string) (*ports.StatusOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.statusCalls
	if idx >= len(g.statusScript) {
		idx = len(g.statusScript) - 1
	}
	g.statusCalls++
	return g.statusScript[idx], nil
}

func (g *fakeGateway) FetchResult(_ context.Context, _ string) (*domain.ProofResult, error) {
	if g.resultErr != nil {
		return nil, g.resultErr
	}
	return g.result, nil
}

func (g *fakeGateway) queries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

// countingIssuer counts credential issuing invocations
type countingIssuer struct {
	mu    sync.Mutex
	calls int
}

func (i *countingIssuer) Issue(_ context.Context, userID string) (*domain.Credentials, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	return &domain.Credentials{AccessToken: "access-" + userID, RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (i *countingIssuer) Refresh(_ context.Context, _ string) (*domain.Credentials, error) {
	return nil, ErrInvalidRefreshToken
}

func (i *countingIssuer) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

// inspectingIssuer runs a callback just before every issuance
type inspectingIssuer struct {
	countingIssuer
	observe func()
}

func (i *inspectingIssuer) Issue(ctx context.Context, userID string) (*domain.Credentials, error) {
	if i.observe != nil {
		i.observe()
	}
	return i.countingIssuer.Issue(ctx, userID)
}

type fixture struct {
	ops      *Operations
	detector *Detector
	gateway  *fakeGateway
	issuer   *countingIssuer
	ps       *pubsub.Mock
}

func newFixture(t *testing.T, gateway *fakeGateway, maxAttempts int) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	issuer := &countingIssuer{}
	ps := pubsub.NewMock()
	ops := NewOperations(
		repositories.NewOperationsInMemory(),
		repositories.NewEnrollmentsInMemory(),
		gateway,
		NewValidator(0.80, 0.85),
		issuer,
		ps,
		cache.NewMemoryCache(),
		time.Hour,
		time.Hour,
	)
	detector := NewDetector(ctx, gateway, ops, ops.operationsRepo, ps, 5*time.Millisecond, maxAttempts, time.Hour)
	ops.SetDetector(detector)
	detector.Start(ctx)
	return &fixture{ops: ops, detector: detector, gateway: gateway, issuer: issuer, ps: ps}
}

func notFoundOutcome() *ports.StatusOutcome {
	return &ports.StatusOutcome{NotYetQueryable: true, RemoteState: domain.RemoteStateNotYetQueryable}
}

func terminalSuccess(completedAt *time.Time) *ports.StatusOutcome {
	return &ports.StatusOutcome{Terminal: true, RemoteState: "DONE", ResultCode: domain.ResultCodeSuccess, CompletedAt: completedAt}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}

func TestPollingCompletesAfterRegistrationLag(t *testing.T) {
	completedAt := time.Now()
	gateway := &fakeGateway{
		statusScript: []*ports.StatusOutcome{
			notFoundOutcome(),
			notFoundOutcome(),
			notFoundOutcome(),
			terminalSuccess(&completedAt),
		},
		result: goodResult(),
	}
	f := newFixture(t, gateway, 10)

	started, err := f.ops.StartAuthentication(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)

	waitFor(t, func() bool {
		status, err := f.ops.Get(context.Background(), started.Operation.OperationID)
		return err == nil && status.Outcome == ports.OutcomeCompleted
	})

	assert.Equal(t, 4, f.gateway.queries())
	assert.Equal(t, 1, f.issuer.count())

	status, err := f.ops.Get(context.Background(), started.Operation.OperationID)
	require.NoError(t, err)
	require.NotNil(t, status.Credentials)
	assert.Equal(t, "access-user-1", status.Credentials.AccessToken)
}

func TestBudgetExhaustionExpiresWithoutExtraPoll(t *testing.T) {
	gateway := &fakeGateway{statusScript: []*ports.StatusOutcome{notFoundOutcome()}}
	f := newFixture(t, gateway, 4)

	started, err := f.ops.StartEnrollment(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)

	waitFor(t, func() bool {
		status, err := f.ops.Get(context.Background(), started.Operation.OperationID)
		return err == nil && status.Outcome == ports.OutcomeExpired
	})

	assert.Equal(t, 4, f.gateway.queries())

	// no further query fires after expiry
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, f.gateway.queries())
	assert.Equal(t, 0, f.issuer.count())
}

func TestSuccessCodeWithNullCompletedAtNeverCompletes(t *testing.T) {
	gateway := &fakeGateway{
		statusScript: []*ports.StatusOutcome{terminalSuccess(nil)},
		result:       goodResult(),
	}
	f := newFixture(t, gateway, 5)

	started, err := f.ops.StartAuthentication(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)

	waitFor(t, func() bool { return f.gateway.queries() >= 5 })

	status, err := f.ops.Get(context.Background(), started.Operation.OperationID)
	require.NoError(t, err)
	assert.NotEqual(t, ports.OutcomeCompleted, status.Outcome)
	assert.Equal(t, 0, f.issuer.count())
}

func TestEventSignalCompletesBeforePolling(t *testing.T) {
	completedAt := time.Now()
	result := goodResult()
	result.CompletedAt = &completedAt
	gateway := &fakeGateway{
		// status endpoint lags, it would never report terminal
		statusScript: []*ports.StatusOutcome{notFoundOutcome()},
		result:       result,
	}
	f := newFixture(t, gateway, 1000)

	started, err := f.ops.StartAuthentication(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)

	require.NoError(t, f.ops.SubmitCaptureEvent(context.Background(), &event.CaptureSurface{
		OperationID: started.Operation.OperationID,
		Type:        "pageChange",
		PageName:    "verifiedPage",
		Success:     true,
	}))

	waitFor(t, func() bool {
		status, err := f.ops.Get(context.Background(), started.Operation.OperationID)
		return err == nil && status.Outcome == ports.OutcomeCompleted
	})
	assert.Equal(t, 1, f.issuer.count())
}

func TestEventAndPollProduceExactlyOneTransition(t *testing.T) {
	completedAt := time.Now()
	result := goodResult()
	result.CompletedAt = &completedAt
	gateway := &fakeGateway{
		statusScript: []*ports.StatusOutcome{terminalSuccess(&completedAt)},
		result:       result,
	}
	f := newFixture(t, gateway, 1000)

	started, err := f.ops.StartAuthentication(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)
	opID := started.Operation.OperationID

	// event signal races the poll signal
	require.NoError(t, f.ops.SubmitCaptureEvent(context.Background(), &event.CaptureSurface{
		OperationID: opID,
		PageName:    "verifiedPage",
		Success:     true,
	}))

	waitFor(t, func() bool {
		status, err := f.ops.Get(context.Background(), opID)
		return err == nil && status.Outcome == ports.OutcomeCompleted
	})

	// let the poller observe the already-terminal operation a few times
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, f.issuer.count())

	// a late duplicate event is a no-op as well
	require.NoError(t, f.ops.SubmitCaptureEvent(context.Background(), &event.CaptureSurface{
		OperationID: opID,
		PageName:    "verifiedPage",
		Success:     true,
	}))
	assert.Equal(t, 1, f.issuer.count())
}

func TestUnrecognizedCaptureEventsAreIgnored(t *testing.T) {
	completedAt := time.Now()
	result := goodResult()
	result.CompletedAt = &completedAt
	gateway := &fakeGateway{
		statusScript: []*ports.StatusOutcome{notFoundOutcome()},
		result:       result,
	}
	f := newFixture(t, gateway, 1000)

	started, err := f.ops.StartAuthentication(context.Background(), "user-1", "subject-1")
	require.NoError(t, err)
	opID := started.Operation.OperationID

	for _, ev := range []*event.CaptureSurface{
		{OperationID: opID, PageName: "verifiedPage", Success: false},
		{OperationID: opID, PageName: "welcomePage", Success: true},
		{OperationID: opID, Type: "heartbeat"},
	} {
		require.NoError(t, f.ops.SubmitCaptureEvent(context.Background(), ev))
	}

	time.Sleep(20 * time.Millisecond)
	status, err := f.ops.Get(context.Background(), opID)
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomePending, status.Outcome)
	assert.Equal(t, 0, f.issuer.count())
}

func TestResumeReattachesWatchers(t *testing.T) {
	completedAt := time.Now()
	gateway := &fakeGateway{
		statusScript: []*ports.StatusOutcome{terminalSuccess(&completedAt)},
		result:       goodResult(),
	}
	f := newFixture(t, gateway, 10)

	// simulate an operation persisted by a previous process: stored as
	// pending with no live watcher
	op := domain.NewOperation("op-resumed", "user-1", domain.KindAuthentication, time.Now().Add(time.Hour))
	op.State = domain.StatePending
	require.NoError(t, f.ops.operationsRepo.Save(context.Background(), op))

	require.NoError(t, f.detector.Resume(context.Background()))

	waitFor(t, func() bool {
		status, err := f.ops.Get(context.Background(), "op-resumed")
		return err == nil && status.Outcome == ports.OutcomeCompleted
	})
}

func TestResumeExpiresStaleOperations(t *testing.T) {
	gateway := &fakeGateway{statusScript: []*ports.StatusOutcome{notFoundOutcome()}}
	f := newFixture(t, gateway, 10)

	op := domain.NewOperation("op-stale", "user-1", domain.KindEnrollment, time.Now().Add(-time.Minute))
	op.State = domain.StatePending
	require.NoError(t, f.ops.operationsRepo.Save(context.Background(), op))

	require.NoError(t, f.detector.Resume(context.Background()))

	status, err := f.ops.Get(context.Background(), "op-stale")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeExpired, status.Outcome)
	assert.Equal(t, 0, f.gateway.queries())
}
