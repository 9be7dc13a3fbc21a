package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/saga/retry"
	"github.com/paymentops/transaction-saga/internal/saga/signal"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// memoryStore is an in-memory saga.InstanceStore for orchestrator tests
type memoryStore struct {
	mu        sync.Mutex
	instances map[string]*saga.Instance
}

func newMemoryStore() *memoryStore {
	return &memoryStore{instances: make(map[string]*saga.Instance)}
}

func (s *memoryStore) Create(_ context.Context, instance *saga.Instance, policy saga.ReusePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[instance.ID]; ok {
		switch policy {
		case saga.ReusePolicyAllowDuplicate:
		case saga.ReusePolicyAllowDuplicateFailed:
			if existing.State != saga.StateFailed {
				return saga.ErrDuplicateInstance{ID: instance.ID}
			}
		default:
			return saga.ErrDuplicateInstance{ID: instance.ID}
		}
	}
	copied := *instance
	s.instances[instance.ID] = &copied
	return nil
}

func (s *memoryStore) UpdateState(_ context.Context, id string, state saga.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[id]
	if !ok {
		return saga.ErrInstanceNotFound
	}
	instance.State = state
	return nil
}

func (s *memoryStore) SetAppliedMovements(_ context.Context, id string, movements []transaction.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[id]
	if !ok {
		return saga.ErrInstanceNotFound
	}
	instance.AppliedMovements = append([]transaction.Movement(nil), movements...)
	return nil
}

func (s *memoryStore) Complete(_ context.Context, id string, state saga.State, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[id]
	if !ok {
		return saga.ErrInstanceNotFound
	}
	instance.State = state
	instance.Result = result
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*saga.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[id]
	if !ok {
		return nil, saga.ErrInstanceNotFound
	}
	copied := *instance
	return &copied, nil
}

// scriptedExecutor runs movements in order, failing those listed in failOn
type scriptedExecutor struct {
	mu       sync.Mutex
	executed []string
	failOn   map[string]error
}

func (e *scriptedExecutor) Execute(_ context.Context, movement *transaction.Movement) (string, error) {
	key := fmt.Sprintf("%d-%d", movement.Order, movement.SubOrder)
	if err, ok := e.failOn[key]; ok {
		return "", err
	}
	e.mu.Lock()
	e.executed = append(e.executed, key)
	e.mu.Unlock()
	return fmt.Sprintf("processed %s", key), nil
}

// fixedSignals replies with a canned confirmation to every await
type fixedSignals struct {
	confirmation signal.Confirmation
	awaits       int
}

func (f *fixedSignals) AwaitConfirmation(_ context.Context, _ string, _ time.Duration) signal.Confirmation {
	f.awaits++
	return f.confirmation
}

// recordingCompensator captures the applied prefix handed to it
type recordingCompensator struct {
	applied []transaction.Movement
	ownerID string
	reason  string
}

func (c *recordingCompensator) Compensate(_ context.Context, applied []transaction.Movement, ownerID, reason string) string {
	c.applied = append([]transaction.Movement(nil), applied...)
	c.ownerID = ownerID
	c.reason = reason
	return fmt.Sprintf("Rollback completed. Reason: %s. Results: reverted %d", reason, len(applied))
}

// stubWebhooks returns a fixed summary or error
type stubWebhooks struct {
	summary string
	err     error
	calls   int
}

func (w *stubWebhooks) Deliver(_ context.Context, _ string, _ *transaction.Request) (string, error) {
	w.calls++
	if w.err != nil {
		return "", w.err
	}
	return w.summary, nil
}

func testRequest(callbackURL string) *transaction.Request {
	return &transaction.Request{
		ProfileID:           42,
		ExternalOperationID: "10000",
		OperationType:       "MailOrder",
		CallbackURL:         callbackURL,
		Movements: []transaction.Movement{
			{Order: 2, SubOrder: 2, Destination: transaction.DestinationBalance, Type: transaction.TypeChargeStripeAccount, Amount: -79.75},
			{Order: 1, SubOrder: 1, Destination: transaction.DestinationStripe, Type: transaction.TypeChargeStripeAccount, Amount: 79.75},
			{Order: 2, SubOrder: 1, Destination: transaction.DestinationBalance, Type: transaction.TypeCreditStripeFunds, Amount: 79.75},
		},
	}
}

func testConfig() Config {
	return Config{
		SignalTimeout:  100 * time.Millisecond,
		MovementPolicy: retry.Policy{MaxAttempts: 2, PerAttemptTimeout: time.Second},
		WebhookPolicy:  retry.Policy{MaxAttempts: 2, PerAttemptTimeout: time.Second},
	}
}

func TestOrchestrator_Execute_PositiveConfirmationCompletes(t *testing.T) {
	store := newMemoryStore()
	exec := &scriptedExecutor{}
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: true, Success: true, Message: "charged"}}
	compensator := &recordingCompensator{}
	webhooks := &stubWebhooks{summary: "Webhook sent successfully to http://cb. Status: 200"}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, compensator, webhooks, store, testConfig(), newTestLogger())

	req := testRequest("http://cb")
	instance := saga.NewInstance("run-1", req)
	require.NoError(t, store.Create(context.Background(), instance, saga.ReusePolicyRejectDuplicate))

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, []string{"1-1", "2-1", "2-2"}, exec.executed, "movements run in (order, subOrder) sequence")
	assert.Equal(t, 1, signals.awaits, "only the Stripe movement awaits confirmation")
	assert.Equal(t,
		"processed 1-1; processed 2-1; processed 2-2; Webhook sent successfully to http://cb. Status: 200",
		outcome.Result,
	)
	assert.Nil(t, compensator.applied)

	persisted, err := store.Get(context.Background(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompleted, persisted.State)
	assert.Len(t, persisted.AppliedMovements, 3)
}

func TestOrchestrator_Execute_NoCallbackSkipsWebhook(t *testing.T) {
	store := newMemoryStore()
	exec := &scriptedExecutor{}
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: true, Success: true}}
	webhooks := &stubWebhooks{summary: "should not be called"}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, &recordingCompensator{}, webhooks, store, testConfig(), newTestLogger())

	req := testRequest("")
	instance := saga.NewInstance("run-1", req)
	require.NoError(t, store.Create(context.Background(), instance, saga.ReusePolicyRejectDuplicate))

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, 0, webhooks.calls)
	assert.Equal(t, "processed 1-1; processed 2-1; processed 2-2", outcome.Result)
}

func TestOrchestrator_Execute_NegativeConfirmationCompensates(t *testing.T) {
	store := newMemoryStore()
	exec := &scriptedExecutor{}
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: true, Success: false, Message: "card declined"}}
	compensator := &recordingCompensator{}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, compensator, &stubWebhooks{}, store, testConfig(), newTestLogger())

	req := testRequest("http://cb")
	instance := saga.NewInstance("run-1", req)
	require.NoError(t, store.Create(context.Background(), instance, saga.ReusePolicyRejectDuplicate))

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateFailed, outcome.State)
	assert.Contains(t, outcome.Result, "Transaction failed. Rollback initiated: ")
	assert.Contains(t, outcome.Result, "card declined")

	// Only the first (Stripe) movement was applied before the rejection
	require.Len(t, compensator.applied, 1)
	assert.Equal(t, 1, compensator.applied[0].Order)
	assert.Equal(t, "card declined", compensator.reason)
	assert.Equal(t, instance.ID, compensator.ownerID)

	// The rollback is recorded as a completed child saga
	child, err := store.Get(context.Background(), saga.RollbackID(instance.ID))
	require.NoError(t, err)
	assert.Equal(t, saga.StateCompleted, child.State)
	assert.Contains(t, child.Result, "Rollback completed")
}

func TestOrchestrator_Execute_SignalTimeoutCompensates(t *testing.T) {
	store := newMemoryStore()
	exec := &scriptedExecutor{}
	// Timeout surfaces as an unreceived confirmation with the timeout message
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: false, Success: false, Message: signal.TimeoutMessage}}
	compensator := &recordingCompensator{}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, compensator, &stubWebhooks{}, store, testConfig(), newTestLogger())

	req := testRequest("")
	instance := saga.NewInstance("run-1", req)
	require.NoError(t, store.Create(context.Background(), instance, saga.ReusePolicyRejectDuplicate))

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateFailed, outcome.State)
	assert.Contains(t, outcome.Result, signal.TimeoutMessage)
	assert.Equal(t, signal.TimeoutMessage, compensator.reason)
	assert.Equal(t, []string{"1-1"}, exec.executed, "movements after the timed-out signal never run")
}

func TestOrchestrator_Execute_MovementExhaustionCompensates(t *testing.T) {
	store := newMemoryStore()
	exec := &scriptedExecutor{failOn: map[string]error{"2-1": errors.New("balance service down")}}
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: true, Success: true}}
	compensator := &recordingCompensator{}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, compensator, &stubWebhooks{}, store, testConfig(), newTestLogger())

	req := testRequest("")
	instance := saga.NewInstance("run-1", req)
	require.NoError(t, store.Create(context.Background(), instance, saga.ReusePolicyRejectDuplicate))

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateFailed, outcome.State)
	assert.Contains(t, outcome.Result, "balance service down")
	require.Len(t, compensator.applied, 1, "only the applied prefix is compensated")
	assert.Equal(t, 1, compensator.applied[0].Order)
}

func TestOrchestrator_Execute_WebhookFailureStillCompletes(t *testing.T) {
	store := newMemoryStore()
	exec := &scriptedExecutor{}
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: true, Success: true}}
	compensator := &recordingCompensator{}
	webhooks := &stubWebhooks{err: errors.New("connection refused")}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, compensator, webhooks, store, testConfig(), newTestLogger())

	req := testRequest("http://cb")
	instance := saga.NewInstance("run-1", req)
	require.NoError(t, store.Create(context.Background(), instance, saga.ReusePolicyRejectDuplicate))

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateCompleted, outcome.State, "webhook exhaustion never fails the saga")
	assert.Contains(t, outcome.Result, "Webhook delivery failed: ")
	assert.Contains(t, outcome.Result, "connection refused")
	assert.Nil(t, compensator.applied)
	assert.Equal(t, 2, webhooks.calls, "webhook retried per its policy")
}

func TestOrchestrator_Execute_StoreFailuresDoNotFailSaga(t *testing.T) {
	// A store that was never given the instance: every write returns not-found
	store := newMemoryStore()
	exec := &scriptedExecutor{}
	signals := &fixedSignals{confirmation: signal.Confirmation{Received: true, Success: true}}

	orch := New(exec, retry.NewCoordinator(newTestLogger()), signals, &recordingCompensator{}, &stubWebhooks{}, store, testConfig(), newTestLogger())

	req := testRequest("")
	instance := saga.NewInstance("run-1", req)

	outcome := orch.Execute(context.Background(), instance, req)

	assert.Equal(t, saga.StateCompleted, outcome.State)
	assert.Equal(t, "processed 1-1; processed 2-1; processed 2-2", outcome.Result)
}
