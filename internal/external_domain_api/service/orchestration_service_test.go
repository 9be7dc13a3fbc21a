package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/saga/relay"
)

// fakeRemote stands in for the transaction domain on the other side of the
// relay. It records the request it was started with and replies with a
// scripted result or error.
type fakeRemote struct {
	mu       sync.Mutex
	started  []*transaction.Request
	startErr error
	result   string
	awaitErr error
}

func (f *fakeRemote) Start(_ context.Context, req *transaction.Request) (relay.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return relay.Handle{}, f.startErr
	}
	f.started = append(f.started, req)
	return relay.Handle{
		SagaID: saga.InstanceID(req.OperationType, req.ExternalOperationID),
		RunID:  "remote-run-1",
	}, nil
}

func (f *fakeRemote) AwaitResult(_ context.Context, _ relay.Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.awaitErr != nil {
		return "", f.awaitErr
	}
	return f.result, nil
}

func (f *fakeRemote) startedRequests() []*transaction.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*transaction.Request(nil), f.started...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestService(t *testing.T, remote *fakeRemote) *OrchestrationService {
	t.Helper()
	logger := newTestLogger()
	svc, err := NewOrchestrationService(context.Background(), 4, relay.New(remote, logger), logger)
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)
	return svc
}

func awaitTerminal(t *testing.T, svc *OrchestrationService, id string) *Record {
	t.Helper()
	var record *Record
	require.Eventually(t, func() bool {
		r, err := svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		record = r
		return r.State.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)
	return record
}

func TestOrchestrationService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("CompletesWithRemoteResult", func(t *testing.T) {
		remote := &fakeRemote{result: "All movements processed"}
		svc := newTestService(t, remote)

		record, err := svc.Start(ctx, &StartRequest{
			ProfileID:           42,
			ExternalOperationID: "10000",
			OperationType:       "MailOrder",
			AppCaller:           "mail-order-app",
		})
		require.NoError(t, err)
		assert.Equal(t, "external-domain-MailOrder-10000", record.ID)
		assert.NotEmpty(t, record.RunID)
		assert.Equal(t, saga.StateRunning, record.State)

		final := awaitTerminal(t, svc, record.ID)
		assert.Equal(t, saga.StateCompleted, final.State)
		assert.Equal(t, "All movements processed", final.Result)

		started := remote.startedRequests()
		require.Len(t, started, 1)
		assert.Equal(t, int64(42), started[0].ProfileID)
		assert.Equal(t, "10000", started[0].ExternalOperationID)
		assert.NotEmpty(t, started[0].Movements)
	})

	t.Run("RemoteBusinessFailureStillCompletes", func(t *testing.T) {
		remote := &fakeRemote{result: "Transaction failed. Rollback initiated: movement declined"}
		svc := newTestService(t, remote)

		record, err := svc.Start(ctx, &StartRequest{
			ProfileID:           42,
			ExternalOperationID: "10001",
			OperationType:       "MailOrder",
		})
		require.NoError(t, err)

		final := awaitTerminal(t, svc, record.ID)
		assert.Equal(t, saga.StateCompleted, final.State)
		assert.Contains(t, final.Result, "Rollback initiated")
	})

	t.Run("TransportFailureFailsSaga", func(t *testing.T) {
		remote := &fakeRemote{startErr: errors.New("connection refused")}
		svc := newTestService(t, remote)

		record, err := svc.Start(ctx, &StartRequest{
			ProfileID:           42,
			ExternalOperationID: "10002",
			OperationType:       "MailOrder",
		})
		require.NoError(t, err)

		final := awaitTerminal(t, svc, record.ID)
		assert.Equal(t, saga.StateFailed, final.State)
		assert.Contains(t, final.Result, "Remote transaction saga failed")
		assert.Contains(t, final.Result, "connection refused")
	})

	t.Run("AwaitFailureFailsSaga", func(t *testing.T) {
		remote := &fakeRemote{awaitErr: errors.New("poll timed out")}
		svc := newTestService(t, remote)

		record, err := svc.Start(ctx, &StartRequest{
			ProfileID:           42,
			ExternalOperationID: "10003",
			OperationType:       "MailOrder",
		})
		require.NoError(t, err)

		final := awaitTerminal(t, svc, record.ID)
		assert.Equal(t, saga.StateFailed, final.State)
		assert.Contains(t, final.Result, "poll timed out")
	})

	t.Run("DuplicateOperationRejected", func(t *testing.T) {
		remote := &fakeRemote{result: "done"}
		svc := newTestService(t, remote)

		req := &StartRequest{ProfileID: 42, ExternalOperationID: "10004", OperationType: "MailOrder"}
		_, err := svc.Start(ctx, req)
		require.NoError(t, err)

		_, err = svc.Start(ctx, req)
		var dup saga.ErrDuplicateInstance
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "external-domain-MailOrder-10004", dup.ID)
	})

	t.Run("MissingExternalOperationID", func(t *testing.T) {
		svc := newTestService(t, &fakeRemote{})

		_, err := svc.Start(ctx, &StartRequest{OperationType: "MailOrder"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "external operation id is required")
	})

	t.Run("MissingOperationType", func(t *testing.T) {
		svc := newTestService(t, &fakeRemote{})

		_, err := svc.Start(ctx, &StartRequest{ExternalOperationID: "10005"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "operation type is required")
	})
}

func TestOrchestrationService_Get(t *testing.T) {
	t.Run("UnknownIDReturnsNotFound", func(t *testing.T) {
		svc := newTestService(t, &fakeRemote{})

		_, err := svc.Get(context.Background(), "external-domain-MailOrder-0")
		assert.ErrorIs(t, err, saga.ErrInstanceNotFound)
	})

	t.Run("ReturnsCopy", func(t *testing.T) {
		remote := &fakeRemote{result: "done"}
		svc := newTestService(t, remote)

		record, err := svc.Start(context.Background(), &StartRequest{
			ProfileID:           42,
			ExternalOperationID: "10006",
			OperationType:       "MailOrder",
		})
		require.NoError(t, err)
		awaitTerminal(t, svc, record.ID)

		got, err := svc.Get(context.Background(), record.ID)
		require.NoError(t, err)
		got.Result = "mutated by caller"

		again, err := svc.Get(context.Background(), record.ID)
		require.NoError(t, err)
		assert.Equal(t, "done", again.Result)
	})
}

var _ relay.RemoteService = (*fakeRemote)(nil)
